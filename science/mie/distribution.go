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
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
)

// Distribution is a particle size distribution.
type Distribution interface {
	// Density returns the number of particles per unit radius at radius
	// r [µm], in arbitrary units.
	Density(r float64) float64

	// Support returns the radius range [µm] over which the distribution
	// is searched for its non-negligible part.
	Support() (rmin, rmax float64)
}

// LogNormal is a log-normal size distribution.
type LogNormal struct {
	// Radius is the modal radius [µm].
	Radius float64
	// LogSigma is the standard deviation of ln(r).
	LogSigma float64
}

// Density implements Distribution.
func (d LogNormal) Density(r float64) float64 {
	if r <= 0 {
		return 0
	}
	x := math.Log(r/d.Radius) / d.LogSigma
	return math.Exp(-0.5*x*x) / (math.Sqrt(2*math.Pi) * d.LogSigma * r)
}

// Support implements Distribution.
func (d LogNormal) Support() (rmin, rmax float64) {
	return d.Radius * math.Exp(-8*d.LogSigma), d.Radius * math.Exp(8*d.LogSigma)
}

// MeanVolume returns the mean particle volume [µm³].
func (d LogNormal) MeanVolume() float64 {
	return 4. / 3. * math.Pi * math.Pow(d.Radius, 3) * math.Exp(4.5*d.LogSigma*d.LogSigma)
}

func (d LogNormal) validate() error {
	if !(d.Radius > 0) || !(d.LogSigma > 0) {
		return fmt.Errorf("mie: log-normal radius and sigma must be positive, got %g and %g",
			d.Radius, d.LogSigma)
	}
	return nil
}

// Junge is a power-law size distribution n(r) = r^-(Slope+1) between
// RMin and RMax.
type Junge struct {
	Slope      float64
	RMin, RMax float64
}

// Density implements Distribution.
func (d Junge) Density(r float64) float64 {
	if r < d.RMin || r > d.RMax {
		return 0
	}
	return math.Pow(r, -(d.Slope + 1))
}

// Support implements Distribution.
func (d Junge) Support() (rmin, rmax float64) { return d.RMin, d.RMax }

func (d Junge) validate() error {
	if !(d.RMin > 0) || !(d.RMax > d.RMin) {
		return fmt.Errorf("mie: Junge radius bounds must satisfy 0 < rmin < rmax, got %g and %g",
			d.RMin, d.RMax)
	}
	return nil
}

// Expression is a size distribution defined by an arithmetic expression of
// the radius r [µm], for example "exp(-0.5*pow(log(r/0.1)/0.5, 2))/r".
// The functions exp, log, log10, sqrt and pow are available.
type Expression struct {
	expr       *govaluate.EvaluableExpression
	source     string
	rmin, rmax float64
}

var expressionFunctions = map[string]govaluate.ExpressionFunction{
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"sqrt":  unary(math.Sqrt),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow takes 2 arguments, got %d", len(args))
		}
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return nil, fmt.Errorf("pow: arguments must be numbers")
		}
		return math.Pow(a, b), nil
	},
}

func unary(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("function takes 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument must be a number")
		}
		return f(v), nil
	}
}

// NewExpression parses a size distribution expression valid between
// rmin and rmax [µm].
func NewExpression(expression string, rmin, rmax float64) (*Expression, error) {
	if !(rmin > 0) || !(rmax > rmin) {
		return nil, fmt.Errorf("mie: expression radius bounds must satisfy 0 < rmin < rmax, got %g and %g",
			rmin, rmax)
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, expressionFunctions)
	if err != nil {
		return nil, fmt.Errorf("mie: parsing size distribution %q: %v", expression, err)
	}
	e := &Expression{expr: expr, source: expression, rmin: rmin, rmax: rmax}
	if _, err := e.eval(math.Sqrt(rmin * rmax)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Expression) eval(r float64) (float64, error) {
	v, err := e.expr.Evaluate(map[string]interface{}{"r": r})
	if err != nil {
		return 0, fmt.Errorf("mie: evaluating size distribution %q at r=%g: %v", e.source, r, err)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("mie: size distribution %q doesn't evaluate to a number", e.source)
	}
	return f, nil
}

// Density implements Distribution. Evaluation errors and negative values
// are treated as zero density.
func (e *Expression) Density(r float64) float64 {
	if r < e.rmin || r > e.rmax {
		return 0
	}
	v, err := e.eval(r)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// Support implements Distribution.
func (e *Expression) Support() (rmin, rmax float64) { return e.rmin, e.rmax }

// sizeRange returns the radius range over which d is at least cutoff
// times its maximum value.
func sizeRange(d Distribution, cutoff float64) (rlo, rhi float64, err error) {
	const n = 4000
	smin, smax := d.Support()
	if !(smin > 0) || !(smax > smin) {
		return 0, 0, fmt.Errorf("mie: invalid size distribution support [%g, %g]", smin, smax)
	}
	lmin, dl := math.Log(smin), (math.Log(smax)-math.Log(smin))/(n-1)
	vals := make([]float64, n)
	var peak float64
	for i := range vals {
		vals[i] = d.Density(math.Exp(lmin + float64(i)*dl))
		peak = math.Max(peak, vals[i])
	}
	if !(peak > 0) {
		return 0, 0, fmt.Errorf("mie: size distribution is zero everywhere in [%g, %g]", smin, smax)
	}
	lo, hi := -1, -1
	for i, v := range vals {
		if v >= cutoff*peak {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return math.Exp(lmin + float64(lo)*dl), math.Exp(lmin + float64(hi)*dl), nil
}
