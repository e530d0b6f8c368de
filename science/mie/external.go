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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spatialmodel/sos/rterr"
	"gonum.org/v1/gonum/interp"
)

// External is a phase matrix supplied by the user rather than computed
// from Mie theory.
type External struct {
	// Angles are the scattering angles [degrees], increasing from 0 to 180.
	Angles []float64
	// F11 is required; F12, F33 and F34 may be empty, in which case the
	// matrix does not polarize: F12 = F34 = 0 and F33 = F11.
	F11, F12, F33, F34 []float64
	// SSA is the single-scattering albedo.
	SSA float64
	// Cext is the mean extinction cross section per particle [µm²], used
	// only to scale optical thickness between wavelengths. It may be zero.
	Cext float64
}

// ReadExternal reads a phase matrix table with one scattering angle per
// line: angle [degrees], F11 and optionally F12, F33 and F34. Blank lines
// and lines starting with '#' are ignored.
func ReadExternal(r io.Reader, ssa, cext float64) (*External, error) {
	e := &External{SSA: ssa, Cext: cext}
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 && len(fields) != 5 {
			return nil, fmt.Errorf("mie: external phase function line %d: want 2 or 5 columns, have %d",
				line, len(fields))
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("mie: external phase function line %d: %v", line, err)
			}
			vals[i] = v
		}
		e.Angles = append(e.Angles, vals[0])
		e.F11 = append(e.F11, vals[1])
		if len(vals) == 5 {
			e.F12 = append(e.F12, vals[2])
			e.F33 = append(e.F33, vals[3])
			e.F34 = append(e.F34, vals[4])
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("mie: reading external phase function: %v", err)
	}
	return e, nil
}

func (x *External) validate(maxAngles int) error {
	n := len(x.Angles)
	if n > maxAngles {
		return &rterr.ExternalPhaseFunctionTooLarge{N: n, Max: maxAngles}
	}
	if n < 2 || len(x.F11) != n {
		return &rterr.InputValidationError{Field: "external phase function",
			Reason: fmt.Sprintf("needs at least 2 angles with one F11 value each; have %d angles and %d values",
				n, len(x.F11))}
	}
	for _, f := range [][]float64{x.F12, x.F33, x.F34} {
		if len(f) != 0 && len(f) != n {
			return &rterr.InputValidationError{Field: "external phase function",
				Reason: "F12, F33 and F34 must have one value per angle"}
		}
	}
	for i := 1; i < n; i++ {
		if !(x.Angles[i] > x.Angles[i-1]) {
			return &rterr.InputValidationError{Field: "external phase function",
				Reason: "scattering angles must be strictly increasing"}
		}
	}
	if x.Angles[0] > 0 || x.Angles[n-1] < 180 {
		missing := 0.
		if x.Angles[0] <= 0 {
			missing = 180
		}
		return &rterr.TableRangeError{Table: "external phase function", Axis: "scattering angle",
			Value: missing, Min: x.Angles[0], Max: x.Angles[n-1]}
	}
	for _, v := range x.F11 {
		if v < 0 {
			return &rterr.InputValidationError{Field: "external phase function",
				Reason: "F11 must not be negative"}
		}
	}
	if !(x.SSA > 0 && x.SSA <= 1) {
		return &rterr.InputValidationError{Field: "external phase function",
			Reason: fmt.Sprintf("single-scattering albedo %g is not in (0, 1]", x.SSA)}
	}
	return nil
}

// FromExternal resamples an external phase matrix onto the grid of e and
// computes its Legendre expansion.
func (e *Engine) FromExternal(x *External, truncate bool) (*PhaseMatrix, error) {
	if err := x.validate(e.lim.MaxExternalAngles); err != nil {
		return nil, err
	}
	order, err := e.order()
	if err != nil {
		return nil, err
	}
	theta := make([]float64, len(e.mu))
	for i, mu := range e.mu {
		theta[i] = math.Acos(mu) * 180 / math.Pi
	}
	resample := func(f []float64) ([]float64, error) {
		out := make([]float64, len(theta))
		if len(f) == 0 {
			return out, nil
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(x.Angles, f); err != nil {
			return nil, fmt.Errorf("mie: external phase function: %v", err)
		}
		for i, t := range theta {
			out[i] = pl.Predict(t)
		}
		return out, nil
	}
	p := &PhaseMatrix{
		Model: "external",
		Mu:    e.mu,
		SSA:   x.SSA,
		Cext:  x.Cext,
		Csca:  x.Cext * x.SSA,
	}
	if p.F11, err = resample(x.F11); err != nil {
		return nil, err
	}
	if p.F12, err = resample(x.F12); err != nil {
		return nil, err
	}
	if p.F33, err = resample(x.F33); err != nil {
		return nil, err
	}
	if len(x.F33) == 0 {
		copy(p.F33, p.F11)
	}
	if p.F34, err = resample(x.F34); err != nil {
		return nil, err
	}
	if err := e.finish(p, order, truncate); err != nil {
		return nil, err
	}
	return p, nil
}
