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

package ckd

import (
	"fmt"
	"math"
	"sort"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/atmosphere"
)

// Absorption modes.
const (
	// None disables gas absorption.
	None = 0
	// Equivalent replaces the k distribution of each layer with the single
	// optical thickness giving the same band transmittance.
	Equivalent = 1
	// Correlated runs one radiative transfer calculation per k term of
	// the most absorbing gas.
	Correlated = 2
)

// Config selects the absorbing gases.
type Config struct {
	Mode int
	// Wavelength [µm].
	Wavelength float64
	// Tables holds the k distribution of each absorbing gas.
	Tables map[string]*Table
	// Amounts overrides the default column amount of a gas.
	Amounts map[string]float64
}

// Term is one radiative transfer calculation: the absorption optical
// thickness of each layer and the weight of the result.
type Term struct {
	Weight float64
	Tau    []float64
}

// gasLayers holds the k coefficients and amounts of one gas in each
// layer.
type gasLayers struct {
	gas     string
	weights []float64
	k       [][]float64
	u       []float64
}

// equivalent returns the optical thickness in each layer that gives the
// band-averaged transmittance.
func (g *gasLayers) equivalent() []float64 {
	tau := make([]float64, len(g.u))
	for l := range tau {
		var tr float64
		for j, w := range g.weights {
			tr += w * math.Exp(-g.k[l][j]*g.u[l])
		}
		tau[l] = -math.Log(tr)
	}
	return tau
}

// Terms returns the absorption terms for profile p. Equivalent mode
// returns a single term. In Correlated mode, the gas with the largest
// equivalent column absorption contributes one term per k value and the
// other gases are added as equivalent absorption.
func (c *Config) Terms(lim limits.Limits, p *atmosphere.Profile) ([]Term, error) {
	n := len(p.Layers)
	if c.Mode == None || len(c.Tables) == 0 {
		return []Term{{Weight: 1, Tau: make([]float64, n)}}, nil
	}
	if c.Mode != Equivalent && c.Mode != Correlated {
		return nil, &rterr.ConfigurationError{Param: "absorption mode", Reason: fmt.Sprintf("unknown mode %d", c.Mode)}
	}
	gases := make([]string, 0, len(c.Tables))
	for g := range c.Tables {
		gases = append(gases, g)
	}
	sort.Strings(gases)

	layers := make([]*gasLayers, len(gases))
	for i, g := range gases {
		gl, err := c.gas(g, c.Tables[g], p)
		if err != nil {
			return nil, err
		}
		layers[i] = gl
	}
	equiv := make([][]float64, len(layers))
	principal, most := 0, -1.
	for i, gl := range layers {
		equiv[i] = gl.equivalent()
		var sum float64
		for _, v := range equiv[i] {
			sum += v
		}
		if sum > most {
			principal, most = i, sum
		}
	}

	if c.Mode == Equivalent {
		tau := make([]float64, n)
		for _, e := range equiv {
			for l, v := range e {
				tau[l] += v
			}
		}
		capTau(lim, tau)
		return []Term{{Weight: 1, Tau: tau}}, nil
	}

	other := make([]float64, n)
	for i, e := range equiv {
		if i == principal {
			continue
		}
		for l, v := range e {
			other[l] += v
		}
	}
	pg := layers[principal]
	terms := make([]Term, 0, len(pg.weights))
	for j, w := range pg.weights {
		if w == 0 {
			continue
		}
		tau := make([]float64, n)
		for l := range tau {
			tau[l] = pg.k[l][j]*pg.u[l] + other[l]
		}
		capTau(lim, tau)
		terms = append(terms, Term{Weight: w, Tau: tau})
	}
	return terms, nil
}

func capTau(lim limits.Limits, tau []float64) {
	for i, v := range tau {
		if v > lim.MaxAbsorptionTau || math.IsInf(v, 1) {
			tau[i] = lim.MaxAbsorptionTau
		}
	}
}

// gas computes the amounts and interpolated coefficients of one gas. The
// layer state is taken from the standard atmosphere at the layer
// midpoint.
func (c *Config) gas(gas string, t *Table, p *atmosphere.Profile) (*gasLayers, error) {
	if t.Gas != gas {
		return nil, &rterr.InputValidationError{Field: "ckd table", Reason: fmt.Sprintf("table for %s given for %s", t.Gas, gas)}
	}
	amount, ok := c.Amounts[gas]
	if !ok {
		var err error
		if amount, err = DefaultAmount(gas); err != nil {
			return nil, err
		}
	}
	if amount < 0 {
		return nil, &rterr.InputValidationError{Field: gas + " amount", Reason: fmt.Sprintf("negative value %g", amount)}
	}
	b, err := t.Bin(c.Wavelength)
	if err != nil {
		return nil, err
	}
	air := airColumn()
	gl := &gasLayers{gas: gas, weights: b.Weights, k: make([][]float64, len(p.Layers)), u: make([]float64, len(p.Layers))}
	for i, l := range p.Layers {
		top := l.Top
		if i == 0 {
			top = math.Inf(1)
		}
		gl.u[i] = layerColumn(gas, amount, top, l.Bottom)
		temp, pres := atmosphere.Standard((l.Top + l.Bottom) / 2)
		var conc float64
		if da := air * (fractionAbove(O2, l.Bottom) - fractionAbove(O2, top)); da > 0 {
			conc = gl.u[i] / da
		}
		if gl.k[i], err = t.Coefficients(b, temp.Value(), pres.Value(), conc); err != nil {
			return nil, err
		}
	}
	return gl, nil
}

// Combine returns the weighted sum of per-term results.
func Combine(weights []float64, values [][]float64) ([]float64, error) {
	if len(weights) != len(values) || len(values) == 0 {
		return nil, fmt.Errorf("ckd: %d weights for %d results", len(weights), len(values))
	}
	out := make([]float64, len(values[0]))
	for i, v := range values {
		if len(v) != len(out) {
			return nil, fmt.Errorf("ckd: result %d has length %d; want %d", i, len(v), len(out))
		}
		for j, x := range v {
			out[j] += weights[i] * x
		}
	}
	return out, nil
}
