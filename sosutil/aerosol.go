/*
Copyright © 2019 the SOS authors.
This file is part of SOS.

SOS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SOS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SOS.  If not, see <http://www.gnu.org/licenses/>.
*/

package sosutil

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/mie"
)

// Aerosol models.
const (
	NoAerosol   = -1
	MonoModal   = 0
	WMO         = 1
	ShettleFenn = 2
	BiModal     = 3
	External    = 4
	Expression  = 5
	Mixture     = 6
)

// Aerosol describes the aerosols of a run.
type Aerosol struct {
	Model int
	// AOT is the aerosol optical thickness at RefWavelength [µm].
	AOT, RefWavelength float64
	Truncate           bool

	// models returns the particle models at wavelength and the fraction of
	// the optical thickness at the reference wavelength due to each.
	models func(wavelength float64, ref bool) ([]mie.Model, []float64, error)

	external        *mie.External
	externalCextRef float64
}

// AerosolResult holds the computed aerosol modes.
type AerosolResult struct {
	Modes []atmosphere.Mode
	// AOT is the aerosol optical thickness at the simulation wavelength.
	AOT float64
}

// AerosolConfig returns the aerosol configuration in cfg.
func AerosolConfig(cfg *viper.Viper) (*Aerosol, error) {
	a := &Aerosol{
		Model:         cfg.GetInt("AER.Model"),
		AOT:           cfg.GetFloat64("AER.AOT"),
		RefWavelength: cfg.GetFloat64("AER.Waref"),
		Truncate:      cfg.GetBool("AER.Tronca"),
	}
	if a.Model == NoAerosol {
		return a, nil
	}
	if a.AOT < 0 {
		return nil, &rterr.InputValidationError{Field: "AER.AOT", Reason: fmt.Sprintf("negative value %g", a.AOT)}
	}
	index := func(ref bool) complex128 {
		if ref {
			return complex(cfg.GetFloat64("AER.MMD.MRwaref"), cfg.GetFloat64("AER.MMD.MIwaref"))
		}
		return complex(cfg.GetFloat64("AER.MMD.MRwa"), cfg.GetFloat64("AER.MMD.MIwa"))
	}
	one := []float64{1}
	switch a.Model {
	case MonoModal:
		var d mie.Distribution
		switch t := cfg.GetInt("AER.MMD.SDtype"); t {
		case 1:
			d = mie.LogNormal{Radius: cfg.GetFloat64("AER.MMD.LNDradius"), LogSigma: cfg.GetFloat64("AER.MMD.LNDvar")}
		case 2:
			d = mie.Junge{Slope: cfg.GetFloat64("AER.MMD.JD.slope"),
				RMin: cfg.GetFloat64("AER.MMD.JD.rmin"), RMax: cfg.GetFloat64("AER.MMD.JD.rmax")}
		default:
			return nil, &rterr.ConfigurationError{Param: "AER.MMD.SDtype", Reason: fmt.Sprintf("unknown size distribution %d", t)}
		}
		a.models = func(_ float64, ref bool) ([]mie.Model, []float64, error) {
			return []mie.Model{mie.Mono("mono-modal", d, index(ref))}, one, nil
		}
	case WMO:
		kind := cfg.GetString("AER.WMO.Model")
		fractions, err := getStringMapFloat64("AER.WMO.Fractions", cfg)
		if err != nil {
			return nil, err
		}
		a.models = func(wl float64, _ bool) ([]mie.Model, []float64, error) {
			m, err := mie.WMO(kind, wl, fractions)
			return []mie.Model{m}, one, err
		}
	case ShettleFenn:
		kind, rh := cfg.GetString("AER.SF.Model"), cfg.GetFloat64("AER.SF.RH")
		a.models = func(wl float64, _ bool) ([]mie.Model, []float64, error) {
			m, err := mie.ShettleFenn(kind, wl, rh)
			return []mie.Model{m}, one, err
		}
	case BiModal:
		fine, err := modeConfig(cfg, "AER.BMD.Fine")
		if err != nil {
			return nil, err
		}
		coarse, err := modeConfig(cfg, "AER.BMD.Coarse")
		if err != nil {
			return nil, err
		}
		ratio := cfg.GetFloat64("AER.BMD.AOTratio")
		if ratio < 0 || ratio > 1 {
			return nil, &rterr.InputValidationError{Field: "AER.BMD.AOTratio", Reason: fmt.Sprintf("%g is not in [0, 1]", ratio)}
		}
		a.models = func(float64, bool) ([]mie.Model, []float64, error) {
			return []mie.Model{fine, coarse}, []float64{ratio, 1 - ratio}, nil
		}
	case External:
		f, err := os.Open(os.ExpandEnv(cfg.GetString("AER.ExtData")))
		if err != nil {
			return nil, fmt.Errorf("sos: opening external phase function: %v", err)
		}
		defer f.Close()
		if a.external, err = mie.ReadExternal(f, cfg.GetFloat64("AER.Ext.SSA"), cfg.GetFloat64("AER.Ext.Cext")); err != nil {
			return nil, err
		}
		a.externalCextRef = cfg.GetFloat64("AER.Ext.CextRef")
	case Expression:
		r, err := toFloat64SliceE(cfg.Get("AER.Expr.Range"))
		if err != nil {
			return nil, fmt.Errorf("AER.Expr.Range: %v", err)
		}
		if len(r) != 2 {
			return nil, &rterr.ConfigurationError{Param: "AER.Expr.Range", Reason: fmt.Sprintf("needs 2 values, got %d", len(r))}
		}
		d, err := mie.NewExpression(cfg.GetString("AER.Expr.Formula"), r[0], r[1])
		if err != nil {
			return nil, err
		}
		a.models = func(_ float64, ref bool) ([]mie.Model, []float64, error) {
			return []mie.Model{mie.Mono("expression", d, index(ref))}, one, nil
		}
	case Mixture:
		models, refModels, rates, err := readMixture(os.ExpandEnv(cfg.GetString("AER.DefMixture")))
		if err != nil {
			return nil, err
		}
		a.models = func(_ float64, ref bool) ([]mie.Model, []float64, error) {
			if ref {
				return refModels, rates, nil
			}
			return models, rates, nil
		}
	default:
		return nil, &rterr.ConfigurationError{Param: "AER.Model", Reason: fmt.Sprintf("unknown aerosol model %d", a.Model)}
	}
	return a, nil
}

// modeConfig reads the radius, log standard deviation and refractive
// index of one log-normal mode.
func modeConfig(cfg *viper.Viper, name string) (mie.Model, error) {
	v, err := toFloat64SliceE(cfg.Get(name))
	if err != nil {
		return mie.Model{}, fmt.Errorf("%s: %v", name, err)
	}
	if len(v) != 4 {
		return mie.Model{}, &rterr.ConfigurationError{Param: name, Reason: fmt.Sprintf("needs 4 values, got %d", len(v))}
	}
	return mie.Mono(name, mie.LogNormal{Radius: v[0], LogSigma: v[1]}, complex(v[2], v[3])), nil
}

// mixtureMode is one log-normal mode of a user-defined aerosol mixture.
// Index and IndexRef are the real and imaginary parts of the refractive
// index at the simulation and reference wavelengths.
type mixtureMode struct {
	Radius, LogSigma float64
	Index, IndexRef  []float64
	Rate             float64
}

// readMixture reads a user-defined aerosol mixture from the TOML file f,
// which lists the modes as [[mode]] tables.
func readMixture(f string) (models, refModels []mie.Model, rates []float64, err error) {
	var mix struct {
		Mode []mixtureMode
	}
	if _, err := toml.DecodeFile(f, &mix); err != nil {
		return nil, nil, nil, fmt.Errorf("sos: reading aerosol mixture: %v", err)
	}
	if len(mix.Mode) == 0 {
		return nil, nil, nil, &rterr.ConfigurationError{Param: "AER.DefMixture", Reason: "no aerosol modes"}
	}
	for i, m := range mix.Mode {
		if len(m.Index) != 2 || len(m.IndexRef) != 2 {
			return nil, nil, nil, &rterr.ConfigurationError{Param: "AER.DefMixture",
				Reason: fmt.Sprintf("mode %d: refractive indices need 2 values", i)}
		}
		name := fmt.Sprintf("mixture mode %d", i)
		d := mie.LogNormal{Radius: m.Radius, LogSigma: m.LogSigma}
		models = append(models, mie.Mono(name, d, complex(m.Index[0], m.Index[1])))
		refModels = append(refModels, mie.Mono(name, d, complex(m.IndexRef[0], m.IndexRef[1])))
		rates = append(rates, m.Rate)
	}
	return models, refModels, rates, nil
}

// Compute calculates the phase matrices of the aerosols on grid g and
// scales the optical thickness from the reference wavelength to
// wavelength by the ratio of extinction cross sections.
func (a *Aerosol) Compute(lim limits.Limits, g *angles.Grid, wavelength float64, log logrus.FieldLogger) (*AerosolResult, error) {
	r := new(AerosolResult)
	if a == nil || a.Model == NoAerosol || a.AOT == 0 {
		return r, nil
	}
	e := mie.NewEngine(lim, g)
	if log != nil {
		e.Log = log
	}
	if a.external != nil {
		p, err := e.FromExternal(a.external, a.Truncate)
		if err != nil {
			return nil, err
		}
		r.AOT = a.AOT
		if p.Cext > 0 && a.externalCextRef > 0 {
			r.AOT *= p.Cext / a.externalCextRef
		}
		r.Modes = []atmosphere.Mode{{Phase: p, Rate: 1}}
		return r, nil
	}
	models, rates, err := a.models(wavelength, false)
	if err != nil {
		return nil, err
	}
	if _, err := atmosphere.CheckRates(lim, rates); err != nil {
		return nil, err
	}
	scale := make([]float64, len(models))
	for i := range scale {
		scale[i] = 1
	}
	if a.RefWavelength > 0 && a.RefWavelength != wavelength {
		ref, _, err := a.models(a.RefWavelength, true)
		if err != nil {
			return nil, err
		}
		for i, m := range ref {
			p, err := e.Compute(m, a.RefWavelength, false)
			if err != nil {
				return nil, err
			}
			scale[i] = 1 / p.Cext
		}
	}
	var total float64
	for i, m := range models {
		p, err := e.Compute(m, wavelength, a.Truncate)
		if err != nil {
			return nil, err
		}
		if a.RefWavelength > 0 && a.RefWavelength != wavelength {
			scale[i] *= p.Cext
		}
		rate := rates[i] * scale[i]
		total += rate
		r.Modes = append(r.Modes, atmosphere.Mode{Phase: p, Rate: rate})
	}
	r.AOT = a.AOT * total
	for i := range r.Modes {
		r.Modes[i].Rate /= total
	}
	e.Log.WithFields(logrus.Fields{
		"aot":       r.AOT,
		"reference": a.AOT,
		"modes":     len(r.Modes),
	}).Info("sos: aerosol phase functions complete")
	return r, nil
}
