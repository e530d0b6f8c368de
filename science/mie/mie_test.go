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
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
)

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

func TestParticle(t *testing.T) {
	tests := []struct {
		x          float64
		m          complex128
		qext, qsca float64
		g          float64
		tolerance  float64
	}{
		{x: 5.2128, m: 1.55, qext: 3.105472, qsca: 3.105472, g: 0.633140, tolerance: 1e-5},
		{x: 3, m: complex(1.5, 0.01), qext: 3.363057, qsca: 3.226580, g: 0.741161, tolerance: 1e-5},
		{x: 10, m: 1.5, qext: 2.881999, qsca: 2.881999, g: 0.742913, tolerance: 1e-5},
		{x: 1000, m: complex(1.5, 0.1), qext: 2.019703, qsca: 1.106932, g: 0.950880, tolerance: 1e-4},
	}
	mu := []float64{-1, -0.5, 0, 0.5, 1}
	for _, test := range tests {
		s, err := Particle(test.x, test.m, mu, 10000)
		if err != nil {
			t.Fatal(err)
		}
		if different(s.Qext, test.qext, test.tolerance) {
			t.Errorf("x=%g: Qext = %.7g, want %.7g", test.x, s.Qext, test.qext)
		}
		if different(s.Qsca, test.qsca, test.tolerance) {
			t.Errorf("x=%g: Qsca = %.7g, want %.7g", test.x, s.Qsca, test.qsca)
		}
		if different(s.G, test.g, test.tolerance) {
			t.Errorf("x=%g: g = %.7g, want %.7g", test.x, s.G, test.g)
		}
		// Optical theorem.
		fwd := 4 / (test.x * test.x) * real(s.S1[4])
		if different(fwd, s.Qext, 1e-8*s.Qext) {
			t.Errorf("x=%g: forward amplitude gives Qext = %g, series gives %g", test.x, fwd, s.Qext)
		}
		if cmplx.Abs(s.S1[4]-s.S2[4]) > 1e-8*cmplx.Abs(s.S1[4]) {
			t.Errorf("x=%g: S1 and S2 differ in the forward direction", test.x)
		}
	}
}

func TestParticleRayleighLimit(t *testing.T) {
	x, m := 0.01, 1.5
	s, err := Particle(x, complex(m, 0), []float64{0}, 10000)
	if err != nil {
		t.Fatal(err)
	}
	k := (m*m - 1) / (m*m + 2)
	want := 8. / 3. * math.Pow(x, 4) * k * k
	if different(s.Qsca/want, 1, 1e-4) {
		t.Errorf("Qsca = %g, want %g", s.Qsca, want)
	}
	// At 90° S1 is isotropic and S2 vanishes for small spheres.
	if cmplx.Abs(s.S2[0]) > 1e-3*cmplx.Abs(s.S1[0]) {
		t.Errorf("S2(90°) = %v should vanish compared to S1 = %v", s.S2[0], s.S1[0])
	}
}

func TestParticleTooLarge(t *testing.T) {
	if _, err := Particle(20000, 1.33, []float64{1}, 10000); err == nil {
		t.Error("expected an error for a size parameter beyond the series limit")
	}
}

func testEngine(t *testing.T) *Engine {
	lim := limits.Default()
	g, err := angles.NewGrid(lim, angles.Request{}, 30, true)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(lim, g)
	e.SizeSteps = 80
	return e
}

func TestComputeMoments(t *testing.T) {
	e := testEngine(t)
	model := Mono("fine", LogNormal{Radius: 0.1, LogSigma: 0.5}, complex(1.45, 0.001))
	p, err := e.Compute(model, 0.55, false)
	if err != nil {
		t.Fatal(err)
	}
	if !(p.SSA > 0.9 && p.SSA < 1) {
		t.Errorf("SSA = %g", p.SSA)
	}
	if !(p.Asymmetry > 0.3 && p.Asymmetry < 0.9) {
		t.Errorf("asymmetry = %g", p.Asymmetry)
	}
	if different(p.Moments[0], p.SSA, 1e-12) {
		t.Errorf("zeroth moment %g != SSA %g", p.Moments[0], p.SSA)
	}
	if different(p.Moments[1]/p.SSA/3, p.Asymmetry, 1e-12) {
		t.Errorf("first moment %g doesn't match asymmetry %g", p.Moments[1], p.Asymmetry)
	}
	if p.Order() != limits.Default().DefaultLegendreOrder {
		t.Errorf("order = %d", p.Order())
	}
	if p.TruncationFactor != 0 || p.EffectiveSSA != p.SSA || p.ExtinctionScaling() != 1 {
		t.Error("untruncated phase matrix has truncation properties")
	}
	if !(p.Cext > p.Csca && p.Csca > 0) {
		t.Errorf("cross sections: Cext %g, Csca %g", p.Cext, p.Csca)
	}
}

func TestComputePolarizedRayleighLimit(t *testing.T) {
	e := testEngine(t)
	model := Mono("small", LogNormal{Radius: 0.005, LogSigma: 0.1}, complex(1.5, 0))
	p, err := e.Compute(model, 0.55, false)
	if err != nil {
		t.Fatal(err)
	}
	// Small spheres scatter like molecules: F12 = -3/4 sin²Θ and
	// F33 = 3/2 cos Θ, so only the second order is left.
	want := map[string][]float64{
		"alpha1": {1, 0, 0.5, 0, 0},
		"alpha2": {0, 0, 3, 0, 0},
		"alpha3": {0, 0, 0, 0, 0},
		"beta1":  {0, 0, -math.Sqrt(6) / 2, 0, 0},
	}
	have := map[string][]float64{
		"alpha1": p.Moments, "alpha2": p.Alpha2, "alpha3": p.Alpha3, "beta1": p.Beta1,
	}
	for name, w := range want {
		h := have[name]
		if len(h) != len(p.Moments) {
			t.Fatalf("%s: %d coefficients for %d moments", name, len(h), len(p.Moments))
		}
		for l, v := range w {
			if different(h[l]/p.EffectiveSSA, v, 2e-2) {
				t.Errorf("%s[%d] = %g, want %g", name, l, h[l]/p.EffectiveSSA, v)
			}
		}
	}
	// The expansion reproduces the tabulated polarized elements.
	d := make([]float64, p.Order()+1)
	for i, mu := range p.Mu {
		angles.Wigner(d, 0, 2, mu)
		var f12 float64
		for l, b := range p.Beta1 {
			f12 += b / p.EffectiveSSA * d[l]
		}
		if different(f12, p.F12[i], 1e-6) {
			t.Errorf("F12(%g) = %g, expansion gives %g", mu, p.F12[i], f12)
		}
	}
}

func TestComputeTruncation(t *testing.T) {
	e := testEngine(t)
	model := Mono("coarse", LogNormal{Radius: 1, LogSigma: 0.4}, complex(1.5, 0.005))
	p, err := e.Compute(model, 0.55, true)
	if err != nil {
		t.Fatal(err)
	}
	if !(p.TruncationFactor > 0 && p.TruncationFactor < 1) {
		t.Fatalf("truncation factor = %g", p.TruncationFactor)
	}
	if different(p.RawMoments[0], p.SSA, 1e-12) {
		t.Errorf("before truncation: zeroth moment %g != SSA %g", p.RawMoments[0], p.SSA)
	}
	if different(p.Moments[0], p.EffectiveSSA, 1e-12) {
		t.Errorf("after truncation: zeroth moment %g != SSA %g", p.Moments[0], p.EffectiveSSA)
	}
	if !(p.EffectiveSSA < p.SSA) {
		t.Errorf("effective SSA %g should be below SSA %g", p.EffectiveSSA, p.SSA)
	}
	// The scattered energy is conserved: ω'(1-ωf) = ω(1-f).
	if different(p.EffectiveSSA*p.ExtinctionScaling(), p.SSA*(1-p.TruncationFactor), 1e-12) {
		t.Error("truncation doesn't conserve scattered energy")
	}
	var norm float64
	w := e.Grid().DirectionWeights()
	for i, f := range p.F11 {
		norm += w[i] * f / 2
	}
	if different(norm, 1, 1e-12) {
		t.Errorf("truncated phase function integrates to %g", norm)
	}
	if !(p.Moments[1]/p.EffectiveSSA/3 < p.Asymmetry) {
		t.Error("truncation should reduce the asymmetry of the phase function")
	}
}

func TestComputeCache(t *testing.T) {
	e := testEngine(t)
	model := Mono("fine", LogNormal{Radius: 0.1, LogSigma: 0.5}, complex(1.45, 0.001))
	p1, err := e.Compute(model, 0.55, false)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := e.Compute(model, 0.55, false)
	if err != nil {
		t.Fatal(err)
	}
	if e.cache.hits == 0 {
		t.Error("second computation didn't use the cache")
	}
	for i := range p1.Moments {
		if p1.Moments[i] != p2.Moments[i] {
			t.Fatalf("moment %d differs between runs: %g, %g", i, p1.Moments[i], p2.Moments[i])
		}
	}
}

func TestSizeParameterOutOfRange(t *testing.T) {
	e := testEngine(t)
	for _, model := range []Model{
		Mono("huge", LogNormal{Radius: 2000, LogSigma: 0.5}, 1.5),
		Mono("tiny", LogNormal{Radius: 1e-6, LogSigma: 0.1}, 1.5),
		{Name: "capped", Components: []Component{{Name: "c", Dist: LogNormal{Radius: 1, LogSigma: 0.5},
			Index: 1.5, Number: 1, MaxAlpha: 10}}},
	} {
		_, err := e.Compute(model, 0.55, false)
		var se *rterr.SizeParameterOutOfRange
		if !errors.As(err, &se) {
			t.Errorf("%s: want SizeParameterOutOfRange, have %v", model.Name, err)
		}
	}
}

func TestJunge(t *testing.T) {
	e := testEngine(t)
	e.SizeSteps = 40
	p, err := e.Compute(Mono("junge", Junge{Slope: 3, RMin: 0.01, RMax: 2}, 1.5), 0.55, false)
	if err != nil {
		t.Fatal(err)
	}
	if different(p.Moments[0], 1, 1e-12) {
		t.Errorf("non-absorbing Junge aerosols have SSA %g", p.Moments[0])
	}
}

func TestExpression(t *testing.T) {
	d, err := NewExpression("exp(-0.5*pow(log(r/0.1)/0.5, 2))/r", 0.001, 10)
	if err != nil {
		t.Fatal(err)
	}
	if different(d.Density(0.1), 10, 1e-12) {
		t.Errorf("density at the mode = %g", d.Density(0.1))
	}
	if d.Density(20) != 0 {
		t.Error("density outside of the bounds should be zero")
	}
	ln := LogNormal{Radius: 0.1, LogSigma: 0.5}
	for _, r := range []float64{0.02, 0.1, 0.5} {
		if different(d.Density(r)/ln.Density(r), d.Density(0.1)/ln.Density(0.1), 1e-9) {
			t.Errorf("expression and log-normal densities aren't proportional at r=%g", r)
		}
	}
	if _, err := NewExpression("exp(r", 0.1, 1); err == nil {
		t.Error("expected a parse error")
	}
	if _, err := NewExpression("r", 1, 0.1); err == nil {
		t.Error("expected a bounds error")
	}
}

func TestWMO(t *testing.T) {
	m, err := WMO("continental", 0.55, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Components) != 3 {
		t.Fatalf("continental model has %d components", len(m.Components))
	}
	for _, c := range m.Components {
		if !(c.Number > 0) || c.MaxAlpha == 0 {
			t.Errorf("component %s: number %g, max alpha %g", c.Name, c.Number, c.MaxAlpha)
		}
		if c.Name == "DL" && c.Index != complex(1.53, 0.008) {
			t.Errorf("dust-like index = %v", c.Index)
		}
	}
	// Water-soluble particles are much smaller, so they are far more numerous.
	var dl, ws float64
	for _, c := range m.Components {
		switch c.Name {
		case "DL":
			dl = c.Number
		case "WS":
			ws = c.Number
		}
	}
	if !(ws > 1000*dl) {
		t.Errorf("WS/DL number ratio = %g", ws/dl)
	}
	if _, err := WMO("user", 0.55, map[string]float64{"DL": 0.5, "XX": 0.5}); err == nil {
		t.Error("expected an error for an unknown component")
	}
	_, err = WMO("maritime", 5, nil)
	var tr *rterr.TableRangeError
	if !errors.As(err, &tr) {
		t.Errorf("want TableRangeError, have %v", err)
	}
}

func TestShettleFenn(t *testing.T) {
	m, err := ShettleFenn("rural", 0.55, 80)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Components) != 2 {
		t.Fatalf("rural model has %d components", len(m.Components))
	}
	for _, c := range m.Components {
		if c.Name == "SR" {
			ln := c.Dist.(LogNormal)
			if different(ln.Radius, 0.03274, 1e-12) {
				t.Errorf("SR radius at 80%% = %g", ln.Radius)
			}
			if !(real(c.Index) < 1.53 && real(c.Index) > 1.333) {
				t.Errorf("wet index %v should lie between the dry and water indices", c.Index)
			}
		}
	}
	dry, err := ShettleFenn("rural", 0.55, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range dry.Components {
		if c.Name == "SR" && different(real(c.Index), 1.53, 1e-12) {
			t.Errorf("dry index = %v", c.Index)
		}
	}
	_, err = ShettleFenn("rural", 0.55, 100)
	var tr *rterr.TableRangeError
	if !errors.As(err, &tr) {
		t.Errorf("want TableRangeError, have %v", err)
	}
}

func TestExternal(t *testing.T) {
	e := testEngine(t)
	x, err := ReadExternal(strings.NewReader(`# isotropic
0 1
90 1
180 1
`), 0.9, 0)
	if err != nil {
		t.Fatal(err)
	}
	p, err := e.FromExternal(x, true)
	if err != nil {
		t.Fatal(err)
	}
	if different(p.Moments[0], 0.9, 1e-12) {
		t.Errorf("zeroth moment = %g", p.Moments[0])
	}
	for l := 1; l < len(p.Moments); l++ {
		if different(p.Moments[l], 0, 1e-10) {
			t.Errorf("moment %d of an isotropic phase function = %g", l, p.Moments[l])
		}
	}
	if p.TruncationFactor != 0 {
		t.Errorf("isotropic phase function truncated by %g", p.TruncationFactor)
	}
	for l := range p.Beta1 {
		if p.Beta1[l] != 0 || different(p.Alpha2[l], p.Alpha3[l], 1e-10) {
			t.Errorf("order %d of a non-polarizing matrix: beta1 %g, alpha2 %g, alpha3 %g",
				l, p.Beta1[l], p.Alpha2[l], p.Alpha3[l])
		}
	}

	big := &External{SSA: 1}
	for i := 0; i <= 200; i++ {
		big.Angles = append(big.Angles, float64(i)*0.9)
		big.F11 = append(big.F11, 1)
	}
	_, err = e.FromExternal(big, false)
	var tl *rterr.ExternalPhaseFunctionTooLarge
	if !errors.As(err, &tl) {
		t.Errorf("want ExternalPhaseFunctionTooLarge, have %v", err)
	}

	short := &External{SSA: 1, Angles: []float64{10, 180}, F11: []float64{1, 1}}
	_, err = e.FromExternal(short, false)
	var tr *rterr.TableRangeError
	if !errors.As(err, &tr) {
		t.Errorf("want TableRangeError, have %v", err)
	}
}
