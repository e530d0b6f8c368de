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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/unit"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/absorption/ckd"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/surface"
	"github.com/spf13/cast"
)

// View kinds.
const (
	PlaneView = 1
	ScanView  = 2
)

// View selects the output directions.
type View struct {
	Kind int
	// Phi is the azimuth [degrees] of a PlaneView and Dphi the azimuth
	// step of a ScanView.
	Phi, Dphi float64
}

// Config holds everything needed to run a simulation.
type Config struct {
	Limits     limits.Limits
	Angles     angles.Config
	Wavelength float64

	Aerosol *Aerosol
	// Profile is the atmosphere configuration without aerosol modes, which
	// are computed by Aerosol.
	Profile atmosphere.Config

	Surface      surface.Model
	SurfaceOrder int

	Absorption *ckd.Config

	MaxFourierOrder int
	// Polarized selects the computation of the Stokes parameters Q and U.
	Polarized bool
	View      View

	Log logrus.FieldLogger
}

// Load builds a run configuration from cfg.
func Load(cfg *viper.Viper) (*Config, error) {
	c := &Config{Log: logrus.StandardLogger()}
	var err error
	if c.Limits, err = LimitsConfig(cfg); err != nil {
		return nil, err
	}
	if c.Angles, err = AngleConfig(cfg); err != nil {
		return nil, err
	}
	c.Wavelength = cfg.GetFloat64("Wavelength")
	if !(c.Wavelength > 0) {
		return nil, &rterr.InputValidationError{Field: "Wavelength",
			Reason: fmt.Sprintf("must be positive, got %g", c.Wavelength)}
	}
	if c.Aerosol, err = AerosolConfig(cfg); err != nil {
		return nil, err
	}
	if c.Profile, err = ProfileConfig(cfg, c.Wavelength); err != nil {
		return nil, err
	}
	if c.Surface, err = SurfaceConfig(cfg, c.Limits); err != nil {
		return nil, err
	}
	c.SurfaceOrder = cfg.GetInt("SURF.Order")
	if c.SurfaceOrder == 0 {
		c.SurfaceOrder = c.Limits.DefaultSurfaceOrder
	}
	if c.SurfaceOrder < 0 || c.SurfaceOrder > c.Limits.MaxSurfaceOrder {
		return nil, &rterr.ConfigurationError{Param: "SURF.Order",
			Reason: fmt.Sprintf("%d is not in [1, %d]", c.SurfaceOrder, c.Limits.MaxSurfaceOrder)}
	}
	if c.Absorption, err = AbsorptionConfig(cfg, c.Wavelength); err != nil {
		return nil, err
	}
	c.MaxFourierOrder = cfg.GetInt("SOS.MaxFourier")
	switch p := cfg.GetInt("SOS.IPolar"); p {
	case 0, 1:
		c.Polarized = p == 1
	default:
		return nil, &rterr.ConfigurationError{Param: "SOS.IPolar",
			Reason: fmt.Sprintf("%d is neither 0 nor 1", p)}
	}
	c.View = View{
		Kind: cfg.GetInt("SOS.View.Type"),
		Phi:  cfg.GetFloat64("SOS.View.Phi"),
		Dphi: cfg.GetFloat64("SOS.View.Dphi"),
	}
	switch c.View.Kind {
	case PlaneView:
	case ScanView:
		if !(c.View.Dphi > 0) || c.View.Dphi > 360 {
			return nil, &rterr.ConfigurationError{Param: "SOS.View.Dphi",
				Reason: fmt.Sprintf("%g is not in (0, 360]", c.View.Dphi)}
		}
	default:
		return nil, &rterr.ConfigurationError{Param: "SOS.View.Type",
			Reason: fmt.Sprintf("unknown view type %d", c.View.Kind)}
	}
	return c, nil
}

// LimitsConfig returns the run limits selected in cfg.
func LimitsConfig(cfg *viper.Viper) (limits.Limits, error) {
	var l limits.Limits
	switch v := cfg.GetString("Limits"); v {
	case "default", "":
		l = limits.Default()
	case "extended":
		l = limits.Extended()
	default:
		return l, &rterr.ConfigurationError{Param: "Limits",
			Reason: fmt.Sprintf("%q is neither \"default\" nor \"extended\"", v)}
	}
	if n := cfg.GetInt("SOS.IGmax"); n != 0 {
		l.MaxScatteringOrders = n
	}
	return l, l.Validate()
}

// AngleConfig returns the angle grid configuration in cfg.
func AngleConfig(cfg *viper.Viper) (angles.Config, error) {
	rad, err := toFloat64SliceE(cfg.Get("ANG.Rad.UserAngles"))
	if err != nil {
		return angles.Config{}, fmt.Errorf("ANG.Rad.UserAngles: %v", err)
	}
	mie, err := toFloat64SliceE(cfg.Get("ANG.Aer.UserAngles"))
	if err != nil {
		return angles.Config{}, fmt.Errorf("ANG.Aer.UserAngles: %v", err)
	}
	return angles.Config{
		Radiance:    angles.Request{Gauss: cfg.GetInt("ANG.Rad.NbGauss"), UserAngles: rad},
		Mie:         angles.Request{Gauss: cfg.GetInt("ANG.Aer.NbGauss"), UserAngles: mie},
		SolarZenith: cfg.GetFloat64("ANG.Thetas"),
	}, nil
}

// ProfileConfig returns the atmosphere configuration in cfg.
func ProfileConfig(cfg *viper.Viper, wavelength float64) (atmosphere.Config, error) {
	c := atmosphere.Config{
		RayleighDepth:       cfg.GetFloat64("AP.MOT"),
		RayleighScaleHeight: cfg.GetFloat64("AP.HR"),
		Depolarization:      cfg.GetFloat64("AP.MDF"),
		ScaleHeight:         cfg.GetFloat64("AP.HA"),
		ZMin:                cfg.GetFloat64("AP.Zmin"),
		ZMax:                cfg.GetFloat64("AP.Zmax"),
		Layers:              cfg.GetInt("AP.Layers"),
	}
	if c.RayleighDepth < 0 {
		p := unit.New(cfg.GetFloat64("AP.Psurf")*100, unit.Pascal)
		tau, err := atmosphere.RayleighDepth(wavelength, p)
		if err != nil {
			return c, err
		}
		c.RayleighDepth = tau
	}
	if z := cfg.GetFloat64("SOS.OutputAlt"); z >= 0 {
		c.OutputAltitude, c.HasOutputAltitude = z, true
	}
	switch t := cfg.GetString("AP.Type"); t {
	case "exponential":
		c.Vertical = atmosphere.Exponential
	case "confined":
		c.Vertical = atmosphere.Confined
	case "user":
		c.Vertical = atmosphere.UserDefined
		f := os.ExpandEnv(cfg.GetString("AP.UserFile"))
		if f == "" {
			return c, &rterr.ConfigurationError{Param: "AP.UserFile", Reason: "required for a user profile"}
		}
		var levels struct {
			Level []atmosphere.Level
		}
		if _, err := toml.DecodeFile(f, &levels); err != nil {
			return c, fmt.Errorf("sos: reading user profile: %v", err)
		}
		c.Levels = levels.Level
	default:
		return c, &rterr.ConfigurationError{Param: "AP.Type", Reason: fmt.Sprintf("unknown profile type %q", t)}
	}
	return c, nil
}

// SurfaceConfig returns the surface reflectance model in cfg.
func SurfaceConfig(cfg *viper.Viper, lim limits.Limits) (surface.Model, error) {
	albedo := cfg.GetFloat64("SURF.Alb")
	var m surface.Model
	switch t := cfg.GetString("SURF.Type"); t {
	case "lambert":
		return surface.NewLambert(albedo)
	case "glitter":
		g, err := surface.NewGlitter(lim, cfg.GetFloat64("SURF.Ind"), cfg.GetFloat64("SURF.Glitter.Wind"))
		if err != nil {
			return nil, err
		}
		m = g
	case "roujean":
		k, err := kernelCoefficients(cfg, "SURF.Roujean")
		if err != nil {
			return nil, err
		}
		m = surface.NewRoujean(lim, k[0], k[1], k[2])
	case "rossli":
		k, err := kernelCoefficients(cfg, "SURF.RossLi")
		if err != nil {
			return nil, err
		}
		m = surface.NewRossLi(lim, k[0], k[1], k[2])
	case "tabulated":
		f, err := os.Open(os.ExpandEnv(cfg.GetString("SURF.File")))
		if err != nil {
			return nil, fmt.Errorf("sos: opening surface reflectance table: %v", err)
		}
		defer f.Close()
		tab, err := surface.ReadTabulated(f)
		if err != nil {
			return nil, err
		}
		m = tab
	default:
		return nil, &rterr.ConfigurationError{Param: "SURF.Type", Reason: fmt.Sprintf("unknown surface type %q", t)}
	}
	return surface.WithLambert(m, albedo)
}

func kernelCoefficients(cfg *viper.Viper, name string) ([]float64, error) {
	k, err := toFloat64SliceE(cfg.Get(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	if len(k) != 3 {
		return nil, &rterr.ConfigurationError{Param: name, Reason: fmt.Sprintf("needs 3 coefficients, got %d", len(k))}
	}
	return k, nil
}

// AbsorptionConfig returns the gas absorption configuration in cfg.
func AbsorptionConfig(cfg *viper.Viper, wavelength float64) (*ckd.Config, error) {
	c := &ckd.Config{
		Mode:       cfg.GetInt("ABS.Mode"),
		Wavelength: wavelength,
		Tables:     make(map[string]*ckd.Table),
		Amounts:    make(map[string]float64),
	}
	if c.Mode == ckd.None {
		return c, nil
	}
	for _, f := range expandStringSlice(cfg.GetStringSlice("ABS.Tables")) {
		t, err := ckd.ReadTableFile(f)
		if err != nil {
			return nil, err
		}
		c.Tables[t.Gas] = t
	}
	amounts, err := getStringMapFloat64("ABS.Amounts", cfg)
	if err != nil {
		return nil, err
	}
	for g, v := range amounts {
		c.Amounts[g] = v
	}
	return c, nil
}

// Output configures the files written by a run.
type Output struct {
	Dir, LogFile string
	Formats      []string
	NoOverwrite  bool
}

var outputFormats = []string{"text", "gob", "netcdf", "xlsx", "png"}

// OutputConfig returns the output configuration in cfg.
func OutputConfig(cfg *viper.Viper) (*Output, error) {
	o := &Output{
		Dir:         os.ExpandEnv(cfg.GetString("OutputDir")),
		LogFile:     os.ExpandEnv(cfg.GetString("LogFile")),
		Formats:     cfg.GetStringSlice("OutputFormats"),
		NoOverwrite: cfg.GetBool("nooverwrite"),
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	if fi, err := os.Stat(o.Dir); err != nil {
		return nil, fmt.Errorf("sos: the OutputDir directory doesn't exist: %v", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("sos: OutputDir %s is not a directory", o.Dir)
	}
	if o.LogFile == "" {
		o.LogFile = filepath.Join(o.Dir, "SOS_Main.Log")
	}
	for _, f := range o.Formats {
		ok := false
		for _, v := range outputFormats {
			if f == v {
				ok = true
			}
		}
		if !ok {
			return nil, &rterr.ConfigurationError{Param: "OutputFormats",
				Reason: fmt.Sprintf("unknown format %q; valid formats are %s", f, strings.Join(outputFormats, ", "))}
		}
	}
	return o, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// toFloat64SliceE converts a configuration value to a slice of floats,
// accounting for the fact that command line arguments are strings.
func toFloat64SliceE(i interface{}) ([]float64, error) {
	if s, ok := i.(string); ok {
		s = strings.Trim(strings.TrimSpace(s), "[]")
		if s == "" {
			return nil, nil
		}
		i = strings.Split(s, ",")
	}
	v, err := cast.ToSliceE(i)
	if err != nil {
		if ss, ok := i.([]string); ok {
			v = make([]interface{}, len(ss))
			for j, s := range ss {
				v[j] = s
			}
		} else {
			return nil, err
		}
	}
	o := make([]float64, len(v))
	for j, x := range v {
		if s, ok := x.(string); ok {
			x = strings.TrimSpace(s)
		}
		if o[j], err = cast.ToFloat64E(x); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		var raw map[string]interface{}
		if err := d.Decode(&raw); err != nil {
			return nil, fmt.Errorf("sos: parsing %s: %v", varName, err)
		}
		return cast.ToStringMapStringE(raw)
	default:
		return nil, fmt.Errorf("sos: invalid type for %s: %#v", varName, i)
	}
}

// getStringMapFloat64 returns a map of numbers from a viper configuration.
func getStringMapFloat64(varName string, cfg *viper.Viper) (map[string]float64, error) {
	m, err := GetStringMapString(varName, cfg)
	if err != nil {
		return nil, err
	}
	o := make(map[string]float64, len(m))
	for k, v := range m {
		f, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("sos: %s[%s]: %v", varName, k, err)
		}
		o[k] = f
	}
	return o, nil
}
