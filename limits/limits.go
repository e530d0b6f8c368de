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

// Package limits holds the dimensioning ceilings and numerical thresholds
// that govern a radiative transfer run. A Limits value is built once,
// validated once, and then passed by value to every builder and to the
// solver, so a run always records exactly which thresholds were in force.
package limits

import (
	"fmt"

	"github.com/spatialmodel/sos/rterr"
)

// Limits is the set of cross-component dimension ceilings and thresholds.
type Limits struct {
	// MaxMieAngles is the maximum number of positive polar angles in the
	// grid used for phase-function computations.
	MaxMieAngles int
	// MaxRadianceAngles is the maximum number of positive polar angles in
	// the grid used for radiance and surface reflection computations.
	MaxRadianceAngles int
	// MaxAngles bounds either grid: Gauss angles + user angles + the solar angle.
	MaxAngles int
	// MaxUserAngles is the maximum number of user-supplied angles
	// added to a Gauss grid.
	MaxUserAngles int
	// DefaultMieGauss and DefaultRadianceGauss are the number of positive
	// Gauss angles used when none are requested.
	DefaultMieGauss      int
	DefaultRadianceGauss int
	// AngleTolerance is the distance in cosine below which two angles are
	// considered to be the same.
	AngleTolerance float64

	// MaxLegendreOrder is the ceiling on the Legendre expansion of phase
	// functions and on the Fourier expansion of the radiance field.
	MaxLegendreOrder int
	// MaxFresnelOrder is the ceiling on the Legendre expansion of the
	// Fresnel matrix elements.
	MaxFresnelOrder int
	// MaxSurfaceOrder is the ceiling on the Fourier expansion of surface
	// reflection matrices.
	MaxSurfaceOrder int
	// Default orders used when the caller doesn't specify them.
	DefaultLegendreOrder int
	DefaultFresnelOrder  int
	DefaultSurfaceOrder  int

	// MieDim is the maximum number of terms in the Mie series.
	MieDim int
	// MaxExternalAngles is the maximum number of scattering angles in an
	// externally supplied phase function.
	MaxExternalAngles int
	// MinSizeParameter is the smallest admissible maximum size parameter.
	MinSizeParameter float64
	// SizeDistributionCutoff is n(r)/n(r)max below which the size
	// distribution is considered negligible.
	SizeDistributionCutoff float64
	// TruncationThreshold is the fraction of the forward peak of the
	// phase function above which the phase function is truncated.
	TruncationThreshold float64

	// MinLayers and MaxLayers bound the number of atmospheric layers.
	MinLayers, MaxLayers int
	// MinConfinedLayers is the minimum number of sub-layers inserted where
	// aerosols are confined between two altitudes.
	MinConfinedLayers int
	// TransitionThickness [km] is the thickness of the layers bounding a
	// confined aerosol layer.
	TransitionThickness float64
	// LayerTauFloor is the smallest allowed layer optical thickness.
	LayerTauFloor float64
	// FirstLayerTauMax is the largest allowed optical thickness of the
	// layer at the top of the atmosphere.
	FirstLayerTauMax float64
	// MaxAbsorptionTau caps the gas absorption optical thickness of a layer.
	MaxAbsorptionTau float64
	// MixtureTolerance is the allowed deviation of aerosol mixture
	// rates from 1.
	MixtureTolerance float64

	// AzimuthSamples is the number of azimuths used for surface Fourier
	// decompositions. It must be a power of two.
	AzimuthSamples int
	// GlitterTest is the ratio between the largest and smallest
	// contribution of the slope distribution below which glitter Fourier
	// components are not worth computing.
	GlitterTest float64
	// RoujeanThreshold and NadalThreshold stop the Fourier decomposition
	// of the corresponding surface models.
	RoujeanThreshold float64
	NadalThreshold   float64
	// RoujeanSolarLimit and RoujeanViewLimit [degrees] are the zenith
	// angles above which the Roujean model is not valid.
	RoujeanSolarLimit float64
	RoujeanViewLimit  float64

	// MinFourierOrder is the first azimuthal Fourier order computed.
	MinFourierOrder int
	// GeometricThreshold is the allowed relative change between successive
	// order ratios for the series to be considered geometric.
	GeometricThreshold float64
	// SumThreshold is the estimated residual, relative to the accumulated
	// sum, below which the scattering order iteration stops.
	SumThreshold float64
	// FourierThreshold is the relative contribution of a Fourier order
	// below which the Fourier series is considered converged.
	FourierThreshold float64
	// FourierStopCount is the number of consecutive Fourier orders that
	// must fall below FourierThreshold to stop the series.
	FourierStopCount int
	// ContributionFloor is the absolute contribution of a scattering order
	// below which the iteration stops.
	ContributionFloor float64
	// MaxScatteringOrders is the default scattering order ceiling.
	MaxScatteringOrders int
	// SmallOpticalPath is the layer optical path (Δτ/μ) below which series
	// expansions replace the exponential integrals.
	SmallOpticalPath float64
	// RotationThreshold and MatrixThreshold are numerical guards used when
	// computing rotation angles in the meridian plane.
	RotationThreshold float64
	MatrixThreshold   float64
	// SolarDiscSolidAngle [sr] is the solid angle of the solar disc.
	SolarDiscSolidAngle float64
}

// Default returns the standard run limits (68 radiance angles).
func Default() Limits {
	return Limits{
		MaxMieAngles:         100,
		MaxRadianceAngles:    68,
		MaxAngles:            100,
		MaxUserAngles:        20,
		DefaultMieGauss:      40,
		DefaultRadianceGauss: 24,
		AngleTolerance:       1.e-5,

		MaxLegendreOrder:     200,
		MaxFresnelOrder:      136,
		MaxSurfaceOrder:      336,
		DefaultLegendreOrder: 80,
		DefaultFresnelOrder:  48,
		DefaultSurfaceOrder:  128,

		MieDim:                 10000,
		MaxExternalAngles:      200,
		MinSizeParameter:       1.e-4,
		SizeDistributionCutoff: 1.e-4,
		TruncationThreshold:    0.1,

		MinLayers:           3,
		MaxLayers:           100,
		MinConfinedLayers:   3,
		TransitionThickness: 0.010,
		LayerTauFloor:       1.e-6,
		FirstLayerTauMax:    0.02,
		MaxAbsorptionTau:    50,
		MixtureTolerance:    1.e-6,

		AzimuthSamples:    1024,
		GlitterTest:       10000,
		RoujeanThreshold:  0.001,
		NadalThreshold:    0.001,
		RoujeanSolarLimit: 60,
		RoujeanViewLimit:  60,

		MinFourierOrder:     0,
		GeometricThreshold:  0.01,
		SumThreshold:        1.e-5,
		FourierThreshold:    1.e-4,
		FourierStopCount:    3,
		ContributionFloor:   1.e-12,
		MaxScatteringOrders: 100,
		SmallOpticalPath:    1.e-3,
		RotationThreshold:   1.e-4,
		MatrixThreshold:     1.e-5,
		SolarDiscSolidAngle: 6.8e-5,
	}
}

// Extended returns limits for the larger 80-angle radiance grid. Output
// produced under these limits is not guaranteed to be binary compatible
// with output produced under Default.
func Extended() Limits {
	l := Default()
	l.MaxRadianceAngles = 80
	l.MaxFresnelOrder = 160
	l.MaxSurfaceOrder = 360
	return l
}

// Validate checks the cross-component invariants between the ceilings.
func (l Limits) Validate() error {
	positiveInts := []struct {
		name string
		v    int
	}{
		{"MaxMieAngles", l.MaxMieAngles},
		{"MaxRadianceAngles", l.MaxRadianceAngles},
		{"MaxAngles", l.MaxAngles},
		{"DefaultMieGauss", l.DefaultMieGauss},
		{"DefaultRadianceGauss", l.DefaultRadianceGauss},
		{"MaxLegendreOrder", l.MaxLegendreOrder},
		{"MaxFresnelOrder", l.MaxFresnelOrder},
		{"MaxSurfaceOrder", l.MaxSurfaceOrder},
		{"MieDim", l.MieDim},
		{"MaxExternalAngles", l.MaxExternalAngles},
		{"MinLayers", l.MinLayers},
		{"MinConfinedLayers", l.MinConfinedLayers},
		{"AzimuthSamples", l.AzimuthSamples},
		{"FourierStopCount", l.FourierStopCount},
		{"MaxScatteringOrders", l.MaxScatteringOrders},
	}
	for _, p := range positiveInts {
		if p.v <= 0 {
			return &rterr.ConfigurationError{Param: p.name, Reason: fmt.Sprintf("must be positive, got %d", p.v)}
		}
	}
	positiveFloats := []struct {
		name string
		v    float64
	}{
		{"AngleTolerance", l.AngleTolerance},
		{"MinSizeParameter", l.MinSizeParameter},
		{"SizeDistributionCutoff", l.SizeDistributionCutoff},
		{"TruncationThreshold", l.TruncationThreshold},
		{"TransitionThickness", l.TransitionThickness},
		{"LayerTauFloor", l.LayerTauFloor},
		{"FirstLayerTauMax", l.FirstLayerTauMax},
		{"MaxAbsorptionTau", l.MaxAbsorptionTau},
		{"MixtureTolerance", l.MixtureTolerance},
		{"GlitterTest", l.GlitterTest},
		{"RoujeanThreshold", l.RoujeanThreshold},
		{"NadalThreshold", l.NadalThreshold},
		{"RoujeanSolarLimit", l.RoujeanSolarLimit},
		{"RoujeanViewLimit", l.RoujeanViewLimit},
		{"GeometricThreshold", l.GeometricThreshold},
		{"SumThreshold", l.SumThreshold},
		{"FourierThreshold", l.FourierThreshold},
		{"ContributionFloor", l.ContributionFloor},
		{"SmallOpticalPath", l.SmallOpticalPath},
	}
	for _, p := range positiveFloats {
		if !(p.v > 0) {
			return &rterr.ConfigurationError{Param: p.name, Reason: fmt.Sprintf("must be positive, got %g", p.v)}
		}
	}
	switch {
	case l.MaxMieAngles < l.DefaultMieGauss+l.MaxUserAngles:
		return &rterr.ConfigurationError{Param: "MaxMieAngles",
			Reason: "must be at least DefaultMieGauss + MaxUserAngles"}
	case l.MaxRadianceAngles < l.DefaultRadianceGauss+l.MaxUserAngles:
		return &rterr.ConfigurationError{Param: "MaxRadianceAngles",
			Reason: "must be at least DefaultRadianceGauss + MaxUserAngles"}
	case l.MaxAngles < l.MaxMieAngles || l.MaxAngles < l.MaxRadianceAngles:
		return &rterr.ConfigurationError{Param: "MaxAngles",
			Reason: "must be at least MaxMieAngles and MaxRadianceAngles"}
	case l.MaxUserAngles < 0:
		return &rterr.ConfigurationError{Param: "MaxUserAngles", Reason: "must not be negative"}
	case l.DefaultLegendreOrder > l.MaxLegendreOrder:
		return &rterr.ConfigurationError{Param: "DefaultLegendreOrder",
			Reason: "must not exceed MaxLegendreOrder"}
	case l.DefaultFresnelOrder > l.MaxFresnelOrder:
		return &rterr.ConfigurationError{Param: "DefaultFresnelOrder",
			Reason: "must not exceed MaxFresnelOrder"}
	case l.DefaultSurfaceOrder > l.MaxSurfaceOrder:
		return &rterr.ConfigurationError{Param: "DefaultSurfaceOrder",
			Reason: "must not exceed MaxSurfaceOrder"}
	case l.MaxSurfaceOrder < l.MaxLegendreOrder:
		return &rterr.ConfigurationError{Param: "MaxSurfaceOrder",
			Reason: "must be at least MaxLegendreOrder"}
	case l.MinLayers > l.MaxLayers:
		return &rterr.ConfigurationError{Param: "MinLayers", Reason: "must not exceed MaxLayers"}
	case l.MinFourierOrder < 0 || l.MinFourierOrder > l.MaxLegendreOrder:
		return &rterr.ConfigurationError{Param: "MinFourierOrder",
			Reason: "must be between 0 and MaxLegendreOrder"}
	case l.AzimuthSamples&(l.AzimuthSamples-1) != 0:
		return &rterr.ConfigurationError{Param: "AzimuthSamples", Reason: "must be a power of two"}
	case l.AzimuthSamples < 2*l.MaxSurfaceOrder:
		return &rterr.ConfigurationError{Param: "AzimuthSamples",
			Reason: "must be at least twice MaxSurfaceOrder"}
	case l.FirstLayerTauMax < l.LayerTauFloor:
		return &rterr.ConfigurationError{Param: "FirstLayerTauMax",
			Reason: "must not be smaller than LayerTauFloor"}
	}
	return nil
}

// CheckGauss checks a requested number of Gauss angles against the
// ceiling of the given grid kind, returning the default when n is zero.
func (l Limits) CheckGauss(n int, mie bool) (int, error) {
	maxN, def, name := l.MaxRadianceAngles, l.DefaultRadianceGauss, "radiance"
	if mie {
		maxN, def, name = l.MaxMieAngles, l.DefaultMieGauss, "mie"
	}
	switch {
	case n == 0:
		return def, nil
	case n < 0:
		return 0, &rterr.ConfigurationError{Param: name + " Gauss angles",
			Reason: fmt.Sprintf("must be positive, got %d", n)}
	case n > maxN:
		return 0, &rterr.ConfigurationError{Param: name + " Gauss angles",
			Reason: fmt.Sprintf("%d exceeds the maximum of %d", n, maxN)}
	}
	return n, nil
}
