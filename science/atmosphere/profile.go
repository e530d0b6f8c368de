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

// Package atmosphere builds the plane-parallel layered atmosphere through
// which radiation is propagated: molecular and aerosol scattering optical
// thickness, gas absorption and the resulting layer phase function
// expansions.
package atmosphere

import (
	"fmt"
	"math"
	"sort"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/mie"
	"gonum.org/v1/gonum/floats"
)

// TopAltitude [km] is the altitude reported for the top of the atmosphere.
// All optical thickness above the highest boundary is included in the
// first layer.
const TopAltitude = 100.

// mixtureSurplusSlack is the amount by which mixture rates may exceed 1,
// allowing only for floating point rounding: a surplus would create more
// aerosol optical thickness than requested.
const mixtureSurplusSlack = 1e-12

// Layer is one homogeneous layer of the atmosphere.
type Layer struct {
	// Top and Bottom are the boundary altitudes [km].
	Top, Bottom float64
	// Rayleigh, Aerosol and Absorption are the molecular scattering,
	// aerosol extinction and gas absorption optical thickness of the layer.
	// Aerosol extinction is reduced for truncated phase functions.
	Rayleigh, Aerosol, Absorption float64
	// ModeAerosol holds the aerosol extinction per mixture mode.
	ModeAerosol []float64
	// Scattering holds Σ τ_i ω_i β_l,i over the layer's scatterers: the
	// Legendre moments of the phase function weighted by scattering
	// optical thickness.
	Scattering []float64
	// SSA is the single-scattering albedo, and Moments the Legendre moments
	// of the layer phase function scaled by SSA.
	SSA     float64
	Moments []float64
	// PolarizedScattering and Polarization hold the expansion of the
	// polarized elements of the scattering matrix, weighted like
	// Scattering and scaled like Moments respectively.
	PolarizedScattering Expansion
	Polarization        Expansion
}

// Expansion holds the coefficients of the polarized elements of a
// scattering matrix in generalized spherical functions. Together with the
// Legendre moments α1 of F11 they describe the matrix for the Stokes
// parameters I, Q and U; see mie.PhaseMatrix.
type Expansion struct {
	Alpha2, Alpha3, Beta1 []float64
}

func newExpansion(n int) Expansion {
	return Expansion{Alpha2: make([]float64, n), Alpha3: make([]float64, n), Beta1: make([]float64, n)}
}

// add adds s times the coefficients of o, which must not be longer.
func (e Expansion) add(s float64, o Expansion) {
	floats.AddScaled(e.Alpha2[:len(o.Alpha2)], s, o.Alpha2)
	floats.AddScaled(e.Alpha3[:len(o.Alpha3)], s, o.Alpha3)
	floats.AddScaled(e.Beta1[:len(o.Beta1)], s, o.Beta1)
}

func (e Expansion) copy() Expansion {
	return Expansion{
		Alpha2: append([]float64(nil), e.Alpha2...),
		Alpha3: append([]float64(nil), e.Alpha3...),
		Beta1:  append([]float64(nil), e.Beta1...),
	}
}

// Tau returns the extinction optical thickness of the layer.
func (l *Layer) Tau() float64 { return l.Rayleigh + l.Aerosol + l.Absorption }

// Profile is an ordered sequence of layers from the top of the atmosphere
// to the surface.
type Profile struct {
	Layers []Layer
	// Depth holds the cumulative extinction optical depth at each of the
	// len(Layers)+1 boundaries, starting with 0 at the top.
	Depth []float64
	// Altitude holds the boundary altitudes [km].
	Altitude []float64
	// OutputLevel is the boundary index at which radiances are reported,
	// or -1 to report upward radiance at the top and downward radiance at
	// the surface.
	OutputLevel int
}

// Mode is one aerosol type of a mixture.
type Mode struct {
	Phase *mie.PhaseMatrix
	// Rate is the fraction of the aerosol optical thickness due to this mode.
	Rate float64
}

// Vertical aerosol distributions.
const (
	Exponential = "exponential"
	Confined    = "confined"
	UserDefined = "user"
)

// Level is a boundary of a user-defined profile.
type Level struct {
	// Altitude [km].
	Altitude float64
	// Rayleigh and Aerosol are the optical depths from the top of the
	// atmosphere down to Altitude.
	Rayleigh, Aerosol float64
}

// Config describes the atmosphere to build.
type Config struct {
	// RayleighDepth is the total molecular optical thickness and
	// RayleighScaleHeight [km] its scale height.
	RayleighDepth       float64
	RayleighScaleHeight float64
	// Depolarization is the molecular depolarization factor.
	Depolarization float64

	// AerosolDepth is the total aerosol optical thickness, before any
	// truncation scaling, and Modes the aerosol mixture.
	AerosolDepth float64
	Modes        []Mode

	// Vertical is one of Exponential, Confined or UserDefined.
	Vertical string
	// ScaleHeight [km] of the aerosols for Exponential profiles.
	ScaleHeight float64
	// ZMin and ZMax [km] bound the aerosols for Confined profiles.
	ZMin, ZMax float64
	// Levels define a UserDefined profile, from the top down.
	Levels []Level

	// Layers is the requested number of layers. Zero selects MaxLayers.
	Layers int

	// OutputAltitude [km] adds a boundary at which radiances are reported
	// if HasOutputAltitude is true.
	OutputAltitude    float64
	HasOutputAltitude bool
}

// RayleighMoments returns the Legendre moments of the molecular phase
// function with the given depolarization factor.
func RayleighMoments(depolarization float64) []float64 {
	g := depolarization / (2 - depolarization)
	return []float64{1, 0, (1 - g) / (2 * (1 + 2*g))}
}

// RayleighExpansion returns the expansion of the polarized elements of
// the molecular scattering matrix with the given depolarization factor.
func RayleighExpansion(depolarization float64) Expansion {
	d := 2 * RayleighMoments(depolarization)[2]
	return Expansion{
		Alpha2: []float64{0, 0, 3 * d},
		Alpha3: []float64{0, 0, 0},
		Beta1:  []float64{0, 0, -math.Sqrt(6) / 2 * d},
	}
}

// CheckRates returns the sum of the aerosol mixture rates, or an error if
// a rate is negative or the sum exceeds 1 or falls short of it by more
// than lim.MixtureTolerance.
func CheckRates(lim limits.Limits, rates []float64) (float64, error) {
	var sum float64
	for i, r := range rates {
		if r < 0 || math.IsNaN(r) {
			return 0, &rterr.InputValidationError{Field: fmt.Sprintf("aerosol mode %d", i),
				Reason: fmt.Sprintf("negative mixture rate %g", r)}
		}
		sum += r
	}
	if sum-1 > mixtureSurplusSlack || 1-sum > lim.MixtureTolerance {
		return 0, &rterr.MixtureRateError{Sum: sum, Tolerance: lim.MixtureTolerance}
	}
	return sum, nil
}

// checkMixture validates the mixture rates and returns them normalized.
func checkMixture(lim limits.Limits, modes []Mode) ([]float64, error) {
	rates := make([]float64, len(modes))
	for i, m := range modes {
		if m.Phase == nil {
			return nil, &rterr.InputValidationError{Field: fmt.Sprintf("aerosol mode %d", i),
				Reason: "has no phase matrix"}
		}
		rates[i] = m.Rate
	}
	sum, err := CheckRates(lim, rates)
	if err != nil {
		return nil, err
	}
	floats.Scale(1/sum, rates)
	return rates, nil
}

func (c *Config) validate() error {
	for _, v := range []struct {
		name string
		v    float64
	}{
		{"molecular optical thickness", c.RayleighDepth},
		{"aerosol optical thickness", c.AerosolDepth},
		{"depolarization factor", c.Depolarization},
	} {
		if v.v < 0 || math.IsNaN(v.v) || math.IsInf(v.v, 0) {
			return &rterr.InputValidationError{Field: v.name, Reason: fmt.Sprintf("invalid value %g", v.v)}
		}
	}
	if c.Depolarization >= 1 {
		return &rterr.InputValidationError{Field: "depolarization factor",
			Reason: fmt.Sprintf("%g must be less than 1", c.Depolarization)}
	}
	if c.Vertical != UserDefined {
		if c.RayleighDepth > 0 && !(c.RayleighScaleHeight > 0) {
			return &rterr.InputValidationError{Field: "molecular scale height",
				Reason: fmt.Sprintf("must be positive, got %g", c.RayleighScaleHeight)}
		}
		if c.AerosolDepth > 0 && len(c.Modes) == 0 {
			return &rterr.InputValidationError{Field: "aerosols", Reason: "optical thickness without aerosol modes"}
		}
	}
	switch c.Vertical {
	case Exponential:
		if c.AerosolDepth > 0 && !(c.ScaleHeight > 0) {
			return &rterr.InputValidationError{Field: "aerosol scale height",
				Reason: fmt.Sprintf("must be positive, got %g", c.ScaleHeight)}
		}
	case Confined:
		if !(c.ZMin >= 0 && c.ZMax > c.ZMin && c.ZMax < TopAltitude) {
			return &rterr.InputValidationError{Field: "aerosol layer",
				Reason: fmt.Sprintf("altitudes must satisfy 0 <= zmin < zmax < %g, got %g and %g",
					TopAltitude, c.ZMin, c.ZMax)}
		}
	case UserDefined:
		if len(c.Levels) < 2 {
			return &rterr.InputValidationError{Field: "user profile", Reason: "needs at least 2 levels"}
		}
		for i, l := range c.Levels {
			if l.Rayleigh < 0 || l.Aerosol < 0 {
				return &rterr.InputValidationError{Field: "user profile",
					Reason: fmt.Sprintf("negative optical depth at level %d", i)}
			}
			if i == 0 {
				continue
			}
			p := c.Levels[i-1]
			if !(l.Altitude < p.Altitude) || l.Rayleigh < p.Rayleigh || l.Aerosol < p.Aerosol {
				return &rterr.InputValidationError{Field: "user profile",
					Reason: fmt.Sprintf("level %d: altitude must decrease and optical depth must not", i)}
			}
		}
		if c.Levels[0].Rayleigh != 0 || c.Levels[0].Aerosol != 0 {
			return &rterr.InputValidationError{Field: "user profile",
				Reason: "optical depth must be zero at the first level"}
		}
		if c.Levels[len(c.Levels)-1].Aerosol > 0 && len(c.Modes) == 0 {
			return &rterr.InputValidationError{Field: "aerosols", Reason: "optical thickness without aerosol modes"}
		}
	default:
		return &rterr.InputValidationError{Field: "aerosol vertical distribution",
			Reason: fmt.Sprintf("unknown type %q", c.Vertical)}
	}
	return nil
}

// Build partitions the atmosphere into layers. Layer boundaries are placed
// at equal increments of scattering optical depth, except that the first
// layer is kept below lim.FirstLayerTauMax, and the number of layers is
// reduced if layers would otherwise be thinner than lim.LayerTauFloor.
// Confined aerosol layers get additional boundaries at their edges and
// at least lim.MinConfinedLayers sub-layers.
func Build(lim limits.Limits, c Config) (*Profile, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	var rates []float64
	if len(c.Modes) > 0 {
		var err error
		if rates, err = checkMixture(lim, c.Modes); err != nil {
			return nil, err
		}
	}
	n := c.Layers
	if n == 0 {
		n = lim.MaxLayers
	}
	if n < lim.MinLayers || n > lim.MaxLayers {
		return nil, &rterr.ProfileThicknessError{
			Reason: fmt.Sprintf("%d layers requested; the number of layers must be in [%d, %d]",
				n, lim.MinLayers, lim.MaxLayers)}
	}
	if lim.FirstLayerTauMax < lim.LayerTauFloor {
		return nil, &rterr.ProfileThicknessError{
			Reason: fmt.Sprintf("the first layer optical thickness ceiling %g is below the floor %g",
				lim.FirstLayerTauMax, lim.LayerTauFloor)}
	}

	var col column
	var z []float64
	var err error
	if c.Vertical == UserDefined {
		col, z, err = userColumn(lim, c.Levels)
	} else {
		col = newColumn(lim, c)
		z, err = layering(lim, col, c, n)
	}
	if err != nil {
		return nil, err
	}

	p := &Profile{OutputLevel: -1}
	if c.HasOutputAltitude {
		z = insertBoundary(z, c.OutputAltitude)
	}
	p.Altitude = z
	if c.HasOutputAltitude {
		p.OutputLevel = nearest(z, c.OutputAltitude)
	}

	rayleigh := RayleighMoments(c.Depolarization)
	rayleighPol := RayleighExpansion(c.Depolarization)
	order := len(rayleigh) - 1
	for _, m := range c.Modes {
		if m.Phase.Order() > order {
			order = m.Phase.Order()
		}
	}
	p.Layers = make([]Layer, len(z)-1)
	for i := range p.Layers {
		l := &p.Layers[i]
		l.Top, l.Bottom = z[i], z[i+1]
		top := z[i]
		if i == 0 {
			top = math.Inf(1)
		}
		l.Rayleigh = col.rayleigh(l.Bottom) - col.rayleigh(top)
		aer := col.aerosol(l.Bottom) - col.aerosol(top)
		l.Scattering = make([]float64, order+1)
		for k, b := range rayleigh {
			l.Scattering[k] = l.Rayleigh * b
		}
		l.PolarizedScattering = newExpansion(order + 1)
		l.PolarizedScattering.add(l.Rayleigh, rayleighPol)
		l.ModeAerosol = make([]float64, len(c.Modes))
		for j, m := range c.Modes {
			t := aer * rates[j] * m.Phase.ExtinctionScaling()
			l.ModeAerosol[j] = t
			l.Aerosol += t
			for k, b := range m.Phase.Moments {
				l.Scattering[k] += t * b
			}
			l.PolarizedScattering.add(t, Expansion{Alpha2: m.Phase.Alpha2, Alpha3: m.Phase.Alpha3, Beta1: m.Phase.Beta1})
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// WithAbsorption returns a copy of p in which the gas absorption optical
// thickness of each layer is replaced by tau, capped at
// lim.MaxAbsorptionTau.
func (p *Profile) WithAbsorption(lim limits.Limits, tau []float64) (*Profile, error) {
	if len(tau) != len(p.Layers) {
		return nil, &rterr.InputValidationError{Field: "absorption",
			Reason: fmt.Sprintf("%d values for %d layers", len(tau), len(p.Layers))}
	}
	o := &Profile{
		Layers:      make([]Layer, len(p.Layers)),
		Altitude:    append([]float64(nil), p.Altitude...),
		OutputLevel: p.OutputLevel,
	}
	for i, l := range p.Layers {
		if tau[i] < 0 || math.IsNaN(tau[i]) {
			return nil, &rterr.InputValidationError{Field: "absorption",
				Reason: fmt.Sprintf("invalid optical thickness %g in layer %d", tau[i], i)}
		}
		l.Absorption = math.Min(tau[i], lim.MaxAbsorptionTau)
		l.ModeAerosol = append([]float64(nil), l.ModeAerosol...)
		l.Scattering = append([]float64(nil), l.Scattering...)
		l.PolarizedScattering = l.PolarizedScattering.copy()
		o.Layers[i] = l
	}
	if err := o.finish(); err != nil {
		return nil, err
	}
	return o, nil
}

// finish computes the cumulative depths and layer single-scattering
// properties.
func (p *Profile) finish() error {
	p.Depth = make([]float64, len(p.Layers)+1)
	for i := range p.Layers {
		l := &p.Layers[i]
		tau := l.Tau()
		p.Depth[i+1] = p.Depth[i] + tau
		l.Moments = make([]float64, len(l.Scattering))
		l.Polarization = newExpansion(len(l.Scattering))
		if tau > 0 {
			for k, s := range l.Scattering {
				l.Moments[k] = s / tau
			}
			l.Polarization.add(1/tau, l.PolarizedScattering)
		}
		l.SSA = math.Min(1, l.Moments[0])
	}
	return p.Validate()
}

// Validate checks that the profile is physically consistent.
func (p *Profile) Validate() error {
	if len(p.Layers) == 0 || len(p.Depth) != len(p.Layers)+1 {
		return &rterr.InputValidationError{Field: "profile", Reason: "no layers or inconsistent depths"}
	}
	for i, l := range p.Layers {
		for _, v := range []float64{l.Rayleigh, l.Aerosol, l.Absorption} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return &rterr.InputValidationError{Field: fmt.Sprintf("layer %d", i),
					Reason: fmt.Sprintf("invalid optical thickness %g", v)}
			}
		}
		if l.SSA < 0 || l.SSA > 1 || math.IsNaN(l.SSA) {
			return &rterr.InputValidationError{Field: fmt.Sprintf("layer %d", i),
				Reason: fmt.Sprintf("single-scattering albedo %g is not in [0, 1]", l.SSA)}
		}
		if len(l.Moments) == 0 {
			return &rterr.InputValidationError{Field: fmt.Sprintf("layer %d", i), Reason: "no phase function moments"}
		}
		for _, m := range l.Moments {
			if math.IsNaN(m) || math.IsInf(m, 0) {
				return &rterr.InputValidationError{Field: fmt.Sprintf("layer %d", i),
					Reason: "phase function moments are not finite"}
			}
		}
		if p.Depth[i+1] < p.Depth[i] {
			return &rterr.InputValidationError{Field: "profile", Reason: "optical depth decreases downward"}
		}
	}
	if p.OutputLevel < -1 || p.OutputLevel > len(p.Layers) {
		return &rterr.InputValidationError{Field: "profile",
			Reason: fmt.Sprintf("output level %d out of range", p.OutputLevel)}
	}
	return nil
}

// insertBoundary adds altitude z to the decreasing boundary list unless a
// boundary already lies within a millimeter.
func insertBoundary(bounds []float64, z float64) []float64 {
	if z <= 0 || z >= bounds[0] {
		return bounds
	}
	if i := nearest(bounds, z); math.Abs(bounds[i]-z) < 1e-6 {
		return bounds
	}
	out := append([]float64(nil), bounds...)
	out = append(out, z)
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// nearest returns the index of the boundary closest to z.
func nearest(bounds []float64, z float64) int {
	best := 0
	for i, b := range bounds {
		if math.Abs(b-z) < math.Abs(bounds[best]-z) {
			best = i
		}
	}
	return best
}
