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

package mie

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/sos/rterr"
	"gonum.org/v1/gonum/interp"
)

// Component is one particle type of an aerosol model.
type Component struct {
	Name string
	Dist Distribution
	// Index is the refractive index relative to air, n + ik.
	Index complex128
	// Number is the relative number concentration of the component.
	Number float64
	// MaxAlpha is the largest admissible size parameter. Zero means the
	// limit is set by the maximum number of series terms.
	MaxAlpha float64
}

// Model is an external mixture of particle types.
type Model struct {
	Name       string
	Components []Component
}

// Mono returns a model with a single particle type.
func Mono(name string, d Distribution, index complex128) Model {
	return Model{Name: name, Components: []Component{{Name: name, Dist: d, Index: index, Number: 1}}}
}

//go:embed models.toml
var modelsTOML string

type indexTable struct {
	N []float64 `toml:"n"`
	K []float64 `toml:"k"`
}

type wmoComponent struct {
	Description string    `toml:"description"`
	Radius      float64   `toml:"radius"`
	Sigma       float64   `toml:"sigma"`
	MaxAlpha    float64   `toml:"maxalpha"`
	N           []float64 `toml:"n"`
	K           []float64 `toml:"k"`
}

type sfComponent struct {
	Description string    `toml:"description"`
	Index       string    `toml:"index"`
	Sigma       float64   `toml:"sigma"`
	MaxAlpha    float64   `toml:"maxalpha"`
	Radius      []float64 `toml:"radius"`
}

type referenceData struct {
	Wavelengths []float64 `toml:"wavelengths"`
	WMO         struct {
		DL     wmoComponent                  `toml:"DL"`
		WS     wmoComponent                  `toml:"WS"`
		OC     wmoComponent                  `toml:"OC"`
		SO     wmoComponent                  `toml:"SO"`
		Models map[string]map[string]float64 `toml:"models"`
	} `toml:"wmo"`
	SF struct {
		RH     []float64                     `toml:"rh"`
		Water  indexTable                    `toml:"water"`
		SR     sfComponent                   `toml:"SR"`
		LR     sfComponent                   `toml:"LR"`
		SU     sfComponent                   `toml:"SU"`
		LU     sfComponent                   `toml:"LU"`
		OM     sfComponent                   `toml:"OM"`
		Index  map[string]indexTable         `toml:"index"`
		Models map[string]map[string]float64 `toml:"models"`
	} `toml:"sf"`
}

var (
	refData     referenceData
	refDataErr  error
	refDataOnce sync.Once
)

func reference() (*referenceData, error) {
	refDataOnce.Do(func() {
		if _, err := toml.Decode(modelsTOML, &refData); err != nil {
			refDataErr = fmt.Errorf("mie: decoding reference aerosol data: %v", err)
		}
	})
	return &refData, refDataErr
}

// interpolate evaluates the table (xs, ys) at x, failing outside of the
// tabulated range.
func interpolate(table, axis string, xs, ys []float64, x float64) (float64, error) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, fmt.Errorf("mie: %s table has %d %s values and %d data values", table, len(xs), axis, len(ys))
	}
	if x < xs[0] || x > xs[len(xs)-1] {
		return 0, &rterr.TableRangeError{Table: table, Axis: axis, Value: x, Min: xs[0], Max: xs[len(xs)-1]}
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return 0, fmt.Errorf("mie: %s table: %v", table, err)
	}
	return pl.Predict(x), nil
}

func (d *referenceData) index(name string, t indexTable, wavelength float64) (complex128, error) {
	n, err := interpolate(name+" refractive index", "wavelength", d.Wavelengths, t.N, wavelength)
	if err != nil {
		return 0, err
	}
	k, err := interpolate(name+" refractive index", "wavelength", d.Wavelengths, t.K, wavelength)
	if err != nil {
		return 0, err
	}
	return complex(n, k), nil
}

func (d *referenceData) wmoComponent(name string) (wmoComponent, bool) {
	switch name {
	case "DL":
		return d.WMO.DL, true
	case "WS":
		return d.WMO.WS, true
	case "OC":
		return d.WMO.OC, true
	case "SO":
		return d.WMO.SO, true
	}
	return wmoComponent{}, false
}

// WMOModels are the predefined WMO aerosol models.
var WMOModels = []string{"continental", "maritime", "urban"}

// WMO returns a WMO model at the given wavelength [µm]. kind is one of
// WMOModels, or "user" in which case volumeFractions gives the volume
// fraction of each of the dust-like (DL), water-soluble (WS), oceanic (OC)
// and soot (SO) components.
func WMO(kind string, wavelength float64, volumeFractions map[string]float64) (Model, error) {
	d, err := reference()
	if err != nil {
		return Model{}, err
	}
	fractions := volumeFractions
	if kind != "user" {
		var ok bool
		if fractions, ok = d.WMO.Models[kind]; !ok {
			return Model{}, fmt.Errorf("mie: unknown WMO model %q", kind)
		}
	}
	if len(fractions) == 0 {
		return Model{}, fmt.Errorf("mie: WMO %s model has no components", kind)
	}
	names := make([]string, 0, len(fractions))
	for name := range fractions {
		names = append(names, name)
	}
	sort.Strings(names)
	m := Model{Name: "WMO " + kind}
	for _, name := range names {
		v := fractions[name]
		if v < 0 {
			return Model{}, fmt.Errorf("mie: WMO component %s has negative volume fraction %g", name, v)
		}
		if v == 0 {
			continue
		}
		c, ok := d.wmoComponent(name)
		if !ok {
			return Model{}, fmt.Errorf("mie: unknown WMO component %q", name)
		}
		index, err := d.index("WMO "+name, indexTable{N: c.N, K: c.K}, wavelength)
		if err != nil {
			return Model{}, err
		}
		ln := LogNormal{Radius: c.Radius, LogSigma: math.Log(c.Sigma)}
		m.Components = append(m.Components, Component{
			Name:     name,
			Dist:     ln,
			Index:    index,
			Number:   v / ln.MeanVolume(),
			MaxAlpha: c.MaxAlpha,
		})
	}
	return m, nil
}

func (d *referenceData) sfComponent(name string) (sfComponent, bool) {
	switch name {
	case "SR":
		return d.SF.SR, true
	case "LR":
		return d.SF.LR, true
	case "SU":
		return d.SF.SU, true
	case "LU":
		return d.SF.LU, true
	case "OM":
		return d.SF.OM, true
	}
	return sfComponent{}, false
}

// ShettleFennModels are the predefined Shettle & Fenn aerosol models.
var ShettleFennModels = []string{"rural", "urban", "maritime", "tropospheric"}

// ShettleFenn returns a Shettle & Fenn model at the given wavelength [µm]
// and relative humidity [%]. Particles grow with humidity, and their
// refractive index is the volume-weighted mean of the dry particle index
// and the index of water.
func ShettleFenn(kind string, wavelength, rh float64) (Model, error) {
	d, err := reference()
	if err != nil {
		return Model{}, err
	}
	numbers, ok := d.SF.Models[kind]
	if !ok {
		return Model{}, fmt.Errorf("mie: unknown Shettle & Fenn model %q", kind)
	}
	water, err := d.index("water", d.SF.Water, wavelength)
	if err != nil {
		return Model{}, err
	}
	names := make([]string, 0, len(numbers))
	for name := range numbers {
		names = append(names, name)
	}
	sort.Strings(names)
	m := Model{Name: "Shettle & Fenn " + kind}
	for _, name := range names {
		c, ok := d.sfComponent(name)
		if !ok {
			return Model{}, fmt.Errorf("mie: unknown Shettle & Fenn component %q", name)
		}
		r, err := interpolate("Shettle & Fenn "+name+" radius", "relative humidity", d.SF.RH, c.Radius, rh)
		if err != nil {
			return Model{}, err
		}
		dry, ok := d.SF.Index[c.Index]
		if !ok {
			return Model{}, fmt.Errorf("mie: Shettle & Fenn component %s: unknown index table %q", name, c.Index)
		}
		dryIndex, err := d.index("Shettle & Fenn "+c.Index, dry, wavelength)
		if err != nil {
			return Model{}, err
		}
		v := math.Pow(c.Radius[0]/r, 3)
		index := water + (dryIndex-water)*complex(v, 0)
		m.Components = append(m.Components, Component{
			Name:     name,
			Dist:     LogNormal{Radius: r, LogSigma: c.Sigma * math.Ln10},
			Index:    index,
			Number:   numbers[name],
			MaxAlpha: c.MaxAlpha,
		})
	}
	return m, nil
}
