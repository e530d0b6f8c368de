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

package sos

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/surface"
	"gonum.org/v1/gonum/floats"
)

// Inputs holds everything needed to compute the radiance field.
type Inputs struct {
	Limits limits.Limits
	// Grid is the radiance angle grid, including the solar and user angles.
	Grid *angles.Grid
	// Profile is the layered atmosphere.
	Profile *atmosphere.Profile
	// Surface holds the Fourier components of the surface reflectance on
	// Grid. A nil Surface is black.
	Surface *surface.Fourier
	// MaxFourierOrder caps the Fourier series. Zero selects the highest
	// order of the layer phase functions and surface reflectance.
	MaxFourierOrder int
	// Polarized selects the Stokes parameters (I, Q, U) rather than the
	// intensity alone.
	Polarized bool

	Log logrus.FieldLogger
}

// Validate checks the consistency of the inputs.
func (in *Inputs) Validate() error {
	if in.Grid == nil || in.Grid.Len() == 0 {
		return &rterr.InputValidationError{Field: "angle grid", Reason: "missing"}
	}
	if in.Profile == nil {
		return &rterr.InputValidationError{Field: "profile", Reason: "missing"}
	}
	if err := in.Profile.Validate(); err != nil {
		return err
	}
	if mu0 := in.Grid.Solar(); !(mu0 > 0 && mu0 <= 1) {
		return &rterr.InputValidationError{Field: "solar zenith angle", Reason: fmt.Sprintf("cosine %g is not in (0, 1]", mu0)}
	}
	if in.Surface != nil && len(in.Surface.Mu) != in.Grid.Len() {
		return &rterr.InputValidationError{Field: "surface",
			Reason: fmt.Sprintf("reflectance computed on %d angles; the grid has %d", len(in.Surface.Mu), in.Grid.Len())}
	}
	if in.MaxFourierOrder < 0 {
		return &rterr.InputValidationError{Field: "maximum Fourier order", Reason: fmt.Sprintf("negative value %d", in.MaxFourierOrder)}
	}
	return nil
}

// fourierOrders returns the highest Fourier order to compute and whether
// it was capped below the order at which the series ends.
func (in *Inputs) fourierOrders() (int, bool) {
	var n int
	for _, l := range in.Profile.Layers {
		if o := len(l.Moments) - 1; o > n {
			n = o
		}
	}
	if in.Surface != nil && in.Surface.Order() > n {
		n = in.Surface.Order()
	}
	if in.MaxFourierOrder > 0 && in.MaxFourierOrder < n {
		return in.MaxFourierOrder, true
	}
	return n, false
}

// stokes returns the number of Stokes parameters computed.
func (in *Inputs) stokes() int {
	if in.Polarized {
		return 3
	}
	return 1
}

// Solution is the computed radiance field.
type Solution struct {
	Field *RadianceField
	Grid  *angles.Grid
	// Depth and Altitude [km] describe each level. For combined
	// solutions Depth is the weighted mean optical depth.
	Depth    []float64
	Altitude []float64
	// Direct is the normalized direct solar irradiance on a horizontal
	// surface at each level.
	Direct []float64
	// OutputLevel is the level at which radiances are reported, or -1
	// for upward radiance at the top of the atmosphere and downward
	// radiance at the surface.
	OutputLevel int
}

// outputLevels returns the levels at which upward and downward radiances
// are reported.
func (s *Solution) outputLevels() (up, down int) {
	if s.OutputLevel >= 0 {
		return s.OutputLevel, s.OutputLevel
	}
	return 0, len(s.Depth) - 1
}

// Solve computes the radiance field. Fourier orders are computed
// concurrently in batches. The series is truncated once
// Limits.FourierStopCount successive orders contribute less than
// Limits.FourierThreshold of the azimuthally averaged radiance at the
// output levels; orders computed beyond that point are discarded, so the
// result does not depend on the number of processors. Non-fatal problems
// are returned as warnings.
func Solve(in *Inputs) (*Solution, rterr.Warnings, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	lim := in.Limits
	log := in.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	mMax, capped := in.fourierOrders()
	levels := len(in.Profile.Depth)
	sol := &Solution{
		Field:       newRadianceField(mMax+1, levels, in.Grid.Directions(), in.stokes()),
		Grid:        in.Grid,
		Depth:       in.Profile.Depth,
		Altitude:    in.Profile.Altitude,
		OutputLevel: in.Profile.OutputLevel,
		Direct:      make([]float64, levels),
	}
	mu0 := in.Grid.Solar()
	for v, tau := range in.Profile.Depth {
		sol.Direct[v] = mu0 * math.Exp(-tau/mu0)
	}
	var warnings rterr.Warnings

	nprocs := runtime.GOMAXPROCS(0)
	var ref float64 // largest azimuthally averaged output radiance
	small, stop := 0, -1
	var lastRel float64
	for start := 0; start <= mMax && stop < 0; start += nprocs {
		end := start + nprocs
		if end > mMax+1 {
			end = mMax + 1
		}
		results := make([][][]float64, end-start)
		errs := make([]error, end-start)
		states := make([]ConvergenceState, end-start)
		var wg sync.WaitGroup
		wg.Add(end - start)
		for m := start; m < end; m++ {
			go func(m int) {
				defer wg.Done()
				o := newOrders(newMode(m, lim, in.Grid, in.Profile, in.Surface, in.Polarized))
				for o.Next() {
				}
				results[m-start], errs[m-start] = o.Result()
				states[m-start] = o.State()
			}(m)
		}
		wg.Wait()

		for m := start; m < end; m++ {
			r := results[m-start]
			if err := sol.Field.set(m, r); err != nil {
				return nil, warnings, err
			}
			warnings.Add(errs[m-start])
			st := states[m-start]
			log.WithFields(logrus.Fields{
				"fourier order": m,
				"orders":        st.Order,
				"ratio":         st.Ratio,
			}).Debug("sos: Fourier order complete")

			c := sol.outputMax(r)
			if m == 0 {
				ref = c
			}
			lastRel = 0
			if ref > 0 {
				lastRel = c / ref
			}
			if m >= lim.MinFourierOrder && m > 0 && lastRel < lim.FourierThreshold {
				small++
			} else {
				small = 0
			}
			if small >= lim.FourierStopCount {
				stop = m
				break
			}
		}
	}
	if stop < 0 && capped && lastRel >= lim.FourierThreshold {
		warnings.Add(&rterr.ConvergenceWarning{FourierOrder: rterr.FourierSeries, Orders: mMax + 1, Contribution: lastRel, Sum: 1})
	}
	log.WithFields(logrus.Fields{
		"fourier orders": sol.Field.Finalized,
		"warnings":       len(warnings),
	}).Info("sos: radiance field complete")
	return sol, warnings, nil
}

// outputMax returns the largest magnitude of one Fourier order of the
// Stokes parameters at the output levels.
func (s *Solution) outputMax(f [][]float64) float64 {
	up, down := s.outputLevels()
	ns := s.Field.Stokes()
	var c float64
	for i := range s.Grid.Mu {
		u, d := s.Grid.Up(i)*ns, s.Grid.Down(i)*ns
		c = math.Max(c, floats.Norm(f[up][u:u+ns], math.Inf(1)))
		c = math.Max(c, floats.Norm(f[down][d:d+ns], math.Inf(1)))
	}
	return c
}
