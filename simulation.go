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

// Package sos computes the radiance field of a plane-parallel atmosphere
// illuminated by the sun, above a reflecting surface, by the method of
// successive orders of scattering.
//
// Radiances are normalized: the solar irradiance on a surface
// perpendicular to the sun is taken to be π, so the computed value for a
// physical radiance L under solar irradiance E_s is π L / E_s. Direction
// cosines are positive for light propagating downward.
package sos

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/absorption/ckd"
	"github.com/spatialmodel/sos/science/atmosphere"
)

// Version gives the version number.
const Version = "1.0.0"

// Simulation holds the state of a radiative transfer calculation.
type Simulation struct {
	// InitFuncs are run once before the calculation, RunFuncs repeatedly
	// until Done is set, and CleanupFuncs once after.
	InitFuncs, RunFuncs, CleanupFuncs []DomainManipulator

	Inputs   *Inputs
	Solution *Solution
	Warnings rterr.Warnings

	// Done is set when the calculation is complete.
	Done bool
}

// DomainManipulator is a function that operates on a simulation.
type DomainManipulator func(s *Simulation) error

// Init runs the initialization functions.
func (s *Simulation) Init() error {
	for i, f := range s.InitFuncs {
		if err := f(s); err != nil {
			return fmt.Errorf("sos: initialization step %d: %v", i, err)
		}
	}
	return nil
}

// Run runs the run functions until the simulation is done.
func (s *Simulation) Run() error {
	if len(s.RunFuncs) == 0 {
		return fmt.Errorf("sos: no run functions")
	}
	for !s.Done {
		for _, f := range s.RunFuncs {
			if err := f(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup runs the cleanup functions.
func (s *Simulation) Cleanup() error {
	for _, f := range s.CleanupFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// SetInputs sets the inputs of the simulation.
func SetInputs(in *Inputs) DomainManipulator {
	return func(s *Simulation) error {
		if err := in.Validate(); err != nil {
			return err
		}
		s.Inputs = in
		return nil
	}
}

// SolveRadiance computes the radiance field and marks the simulation as
// done.
func SolveRadiance() DomainManipulator {
	return func(s *Simulation) error {
		if s.Inputs == nil {
			return fmt.Errorf("sos: inputs not set")
		}
		sol, w, err := Solve(s.Inputs)
		if err != nil {
			return err
		}
		s.Solution = sol
		s.Warnings = append(s.Warnings, w...)
		s.Done = true
		return nil
	}
}

// CorrelatedK computes one radiance field per absorption term per run
// step, replacing the absorption of the base profile of the inputs, and
// combines them with the term weights. The simulation is done after the
// last term.
func CorrelatedK(base *atmosphere.Profile, terms []ckd.Term) DomainManipulator {
	var solutions []*Solution
	weights := make([]float64, len(terms))
	for i, t := range terms {
		weights[i] = t.Weight
	}
	return func(s *Simulation) error {
		if s.Inputs == nil {
			return fmt.Errorf("sos: inputs not set")
		}
		if len(terms) == 0 {
			return fmt.Errorf("sos: no absorption terms")
		}
		t := terms[len(solutions)]
		p, err := base.WithAbsorption(s.Inputs.Limits, t.Tau)
		if err != nil {
			return err
		}
		in := *s.Inputs
		in.Profile = p
		sol, w, err := Solve(&in)
		if err != nil {
			return err
		}
		s.Warnings = append(s.Warnings, w...)
		solutions = append(solutions, sol)
		if len(solutions) < len(terms) {
			return nil
		}
		if s.Solution, err = Combine(weights, solutions); err != nil {
			return err
		}
		s.Done = true
		return nil
	}
}

// Log returns a function that logs the progress of the simulation.
func Log(log logrus.FieldLogger) DomainManipulator {
	start := time.Now()
	step := 0
	return func(s *Simulation) error {
		step++
		log.WithFields(logrus.Fields{
			"step":     step,
			"walltime": time.Since(start).Seconds(),
			"warnings": len(s.Warnings),
		}).Info("sos: run step")
		return nil
	}
}

// Combine returns the weighted sum of solutions computed on the same
// grid and layering.
func Combine(weights []float64, solutions []*Solution) (*Solution, error) {
	if len(solutions) == 0 || len(weights) != len(solutions) {
		return nil, fmt.Errorf("sos: %d weights for %d solutions", len(weights), len(solutions))
	}
	first := solutions[0]
	modes := 0
	for _, s := range solutions {
		if s.Field.Finalized > modes {
			modes = s.Field.Finalized
		}
		if s.Field.Shape[1] != first.Field.Shape[1] || s.Field.Shape[2] != first.Field.Shape[2] ||
			s.Field.Shape[3] != first.Field.Shape[3] {
			return nil, fmt.Errorf("sos: combining solutions of different shapes %v and %v", s.Field.Shape, first.Field.Shape)
		}
	}
	out := &Solution{
		Field:       newRadianceField(modes, first.Field.Shape[1], first.Field.Directions, first.Field.Stokes()),
		Grid:        first.Grid,
		Altitude:    first.Altitude,
		OutputLevel: first.OutputLevel,
		Depth:       make([]float64, len(first.Depth)),
		Direct:      make([]float64, len(first.Direct)),
	}
	for i, s := range solutions {
		for m := 0; m < s.Field.Finalized; m++ {
			for v := 0; v < s.Field.Shape[1]; v++ {
				for d := 0; d < s.Field.Shape[2]; d++ {
					for k := 0; k < s.Field.Shape[3]; k++ {
						out.Field.AddVal(weights[i]*s.Field.Get(m, v, d, k), m, v, d, k)
					}
				}
			}
		}
		for v, dep := range s.Depth {
			out.Depth[v] += weights[i] * dep
			out.Direct[v] += weights[i] * s.Direct[v]
		}
	}
	out.Field.Finalized = modes
	for m := range out.Field.written {
		out.Field.written[m] = true
	}
	return out, nil
}
