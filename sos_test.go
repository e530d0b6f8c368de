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
	"bytes"
	"math"
	"runtime"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/absorption/ckd"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/surface"
)

func different(a, b, tol float64) bool {
	return math.Abs(a-b) > tol*math.Max(1e-12, math.Abs(b))
}

func testGrid(t *testing.T, lim limits.Limits, sza float64) *angles.Grid {
	g, err := angles.NewGrid(lim, angles.Request{Gauss: 12, UserAngles: []float64{0, 30, 60}}, sza, false)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func rayleighProfile(t *testing.T, lim limits.Limits, tau float64, layers int) *atmosphere.Profile {
	p, err := atmosphere.Build(lim, atmosphere.Config{
		RayleighDepth: tau, RayleighScaleHeight: 8, Depolarization: 0.0279,
		Vertical: atmosphere.Exponential, Layers: layers,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// transparentProfile has no optical thickness.
func transparentProfile(t *testing.T, lim limits.Limits) *atmosphere.Profile {
	p, err := atmosphere.Build(lim, atmosphere.Config{
		Vertical: atmosphere.UserDefined,
		Levels:   []atmosphere.Level{{Altitude: 100}, {Altitude: 10}, {Altitude: 5}, {Altitude: 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func lambert(t *testing.T, lim limits.Limits, g *angles.Grid, albedo float64) *surface.Fourier {
	l, err := surface.NewLambert(albedo)
	if err != nil {
		t.Fatal(err)
	}
	f, err := surface.Decompose(lim, l, g, lim.DefaultSurfaceOrder)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func solve(t *testing.T, in *Inputs) (*Solution, rterr.Warnings) {
	sol, w, err := Solve(in)
	if err != nil {
		t.Fatal(err)
	}
	return sol, w
}

func TestLinearSourceWeights(t *testing.T) {
	const small = 1e-3
	e1, n1, f1 := linearSourceWeights(small*(1-1e-9), small)
	e2, n2, f2 := linearSourceWeights(small*(1+1e-9), small)
	if different(e1, e2, 1e-8) || different(n1, n2, 1e-8) || different(f1, f2, 1e-8) {
		t.Errorf("discontinuity at the series threshold: %g %g, %g %g", n1, n2, f1, f2)
	}
	// A constant source S gives S(1-e^-x).
	for _, x := range []float64{1e-5, 0.3, 5} {
		e, n, f := linearSourceWeights(x, small)
		if different(n+f, 1-e, 1e-12) {
			t.Errorf("x=%g: %g != %g", x, n+f, 1-e)
		}
		if n >= f {
			t.Errorf("x=%g: the entering source should be attenuated more", x)
		}
	}
}

func rayleighPhase(cosTheta float64) float64 {
	b := atmosphere.RayleighMoments(0.0279)
	return 1 + b[2]*(3*cosTheta*cosTheta-1)/2
}

// With a single order of scattering the radiance has a closed form.
func TestSingleScattering(t *testing.T) {
	lim := limits.Default()
	lim.MaxScatteringOrders = 1
	g := testGrid(t, lim, 40)
	p := rayleighProfile(t, lim, 0.1, 10)
	sol, w := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p})
	var cw *rterr.ConvergenceWarning
	if !w.Has(&cw) {
		t.Error("expected a convergence warning with a single order")
	}
	tau := p.Depth[len(p.Depth)-1]
	mu0 := g.Solar()
	s0 := math.Sqrt(1 - mu0*mu0)
	for _, i := range g.UserIndex {
		mu := g.Mu[i]
		s := math.Sqrt(1 - mu*mu)
		for _, phi := range []float64{0, 60, 180} {
			c := math.Cos(phi * deg)
			up := rayleighPhase(-mu*mu0+s*s0*c) / 4 * mu0 / (mu + mu0) * (1 - math.Exp(-tau*(1/mu0+1/mu)))
			if v := sol.view(true, i, phi); different(v.Radiance, up, 1e-9) {
				t.Errorf("up μ=%g φ=%g: %g != %g", mu, phi, v.Radiance, up)
			}
			down := rayleighPhase(mu*mu0+s*s0*c) / 4 * mu0 / (mu0 - mu) * (math.Exp(-tau/mu0) - math.Exp(-tau/mu))
			if v := sol.view(false, i, phi); different(v.Radiance, down, 1e-9) {
				t.Errorf("down μ=%g φ=%g: %g != %g", mu, phi, v.Radiance, down)
			}
		}
	}
}

func TestLambertOnly(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	sol, w := solve(t, &Inputs{Limits: lim, Grid: g, Profile: transparentProfile(t, lim), Surface: lambert(t, lim, g, 0.3)})
	if len(w) != 0 {
		t.Errorf("warnings: %v", w)
	}
	mu0 := g.Solar()
	for _, v := range sol.Plane(true, 0) {
		if different(v.Radiance, 0.3*mu0, 1e-12) {
			t.Errorf("zenith %g: %g", v.Zenith, v.Radiance)
		}
	}
	for _, v := range sol.Plane(false, 0) {
		if v.Radiance != 0 {
			t.Errorf("downward diffuse radiance %g", v.Radiance)
		}
	}
	// The hemispheric integral uses the grid quadrature.
	var hemi float64
	for i, mu := range g.Mu {
		hemi += 2 * g.Weights[i] * mu
	}
	tr := sol.Transmission()
	if different(tr.Direct, 1, 1e-12) || tr.Diffuse != 0 || different(tr.Reflectance, 0.3*hemi, 1e-12) {
		t.Errorf("transmission %+v", tr)
	}
}

// For a Lambertian surface the radiance at the top of the atmosphere is
// I(A) = I0 + A X / (1 - A S).
func TestLambertAlbedoDependence(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	p := rayleighProfile(t, lim, 0.3, 20)
	radiance := func(a float64) []View {
		sol, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p, Surface: lambert(t, lim, g, a)})
		return sol.User(true, 45)
	}
	i0, i1, i2, i3 := radiance(0), radiance(0.1), radiance(0.2), radiance(0.3)
	for k := range i0 {
		d1 := (i1[k].Radiance - i0[k].Radiance) / 0.1
		d3 := (i3[k].Radiance - i0[k].Radiance) / 0.3
		s := (d1 - d3) / (0.1*d1 - 0.3*d3)
		x := d1 * (1 - 0.1*s)
		want := i0[k].Radiance + 0.2*x/(1-0.2*s)
		if different(i2[k].Radiance, want, 1e-4) {
			t.Errorf("zenith %g: %g != %g", i2[k].Zenith, i2[k].Radiance, want)
		}
		if s <= 0 || s >= 0.5 {
			t.Errorf("spherical albedo %g", s)
		}
	}
}

func TestEnergyConservation(t *testing.T) {
	lim := limits.Default()
	g, err := angles.NewGrid(lim, angles.Request{Gauss: 24}, 30, false)
	if err != nil {
		t.Fatal(err)
	}
	sol, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: rayleighProfile(t, lim, 0.5, 50)})
	f := sol.Fluxes()
	top, bottom := f[0], f[len(f)-1]
	total := top.DiffuseUp + bottom.Direct + bottom.DiffuseDown
	if different(total, g.Solar(), 1e-4) {
		t.Errorf("reflected + transmitted = %g; incident %g", total, g.Solar())
	}
	for v := 1; v < len(f); v++ {
		if f[v].Direct >= f[v-1].Direct {
			t.Errorf("direct irradiance increases at level %d", v)
		}
	}
}

func TestOrdersConverge(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	md := newMode(0, lim, g, rayleighProfile(t, lim, 0.5, 20), lambert(t, lim, g, 0.2), false)
	o := newOrders(md)
	var last ConvergenceState
	for o.Next() {
		st := o.State()
		if st.Order > 2 && st.Contribution >= last.Contribution {
			t.Errorf("order %d: contribution %g after %g", st.Order, st.Contribution, last.Contribution)
		}
		if st.Sum < last.Sum {
			t.Errorf("order %d: sum decreased", st.Order)
		}
		last = st
	}
	if !last.Converged || last.Order >= lim.MaxScatteringOrders {
		t.Errorf("final state %+v", last)
	}
	if _, err := o.Result(); err != nil {
		t.Error(err)
	}
	if o.Next() {
		t.Error("Next after convergence")
	}
}

func TestDeterministic(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 50)
	gl, err := surface.NewGlitter(lim, 1.34, 7)
	if err != nil {
		t.Fatal(err)
	}
	sf, err := surface.Decompose(lim, gl, g, lim.DefaultSurfaceOrder)
	if err != nil && !rterr.IsWarning(err) {
		t.Fatal(err)
	}
	in := &Inputs{Limits: lim, Grid: g, Profile: rayleighProfile(t, lim, 0.2, 10), Surface: sf}
	procs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(procs)
	a, _ := solve(t, in)
	runtime.GOMAXPROCS(3)
	b, _ := solve(t, in)
	if a.Field.Finalized != b.Field.Finalized {
		t.Fatalf("%d != %d Fourier orders", a.Field.Finalized, b.Field.Finalized)
	}
	if !bytes.Equal(floatBytes(a.Field.Elements), floatBytes(b.Field.Elements)) {
		t.Error("results depend on the number of processors")
	}
}

func floatBytes(f []float64) []byte {
	var b bytes.Buffer
	for _, v := range f {
		bits := math.Float64bits(v)
		for k := 0; k < 8; k++ {
			b.WriteByte(byte(bits >> (8 * k)))
		}
	}
	return b.Bytes()
}

func TestFieldWriteOnce(t *testing.T) {
	f := newRadianceField(2, 3, []float64{-1, 1}, 1)
	r := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	if err := f.set(0, r); err != nil {
		t.Fatal(err)
	}
	if err := f.set(0, r); err == nil {
		t.Error("expected an error writing an order twice")
	}
	if err := f.set(2, r); err == nil {
		t.Error("expected an error for an order out of range")
	}
	if f.Component(0, 2, 1) != 6 || f.Component(1, 2, 1) != 0 {
		t.Errorf("components %g %g", f.Component(0, 2, 1), f.Component(1, 2, 1))
	}
}

func TestFieldStokes(t *testing.T) {
	f := newRadianceField(2, 1, []float64{-1, 1}, 3)
	if err := f.set(0, [][]float64{{1, 0.1, 0, 2, 0.2, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := f.set(1, [][]float64{{0.5, 0.05, 0.3, 0, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	phi := 0.4
	i, q, u := f.StokesVector(0, 0, phi)
	c, s := math.Cos(phi), math.Sin(phi)
	if math.Abs(i-(1+c)) > 1e-12 || math.Abs(q-(0.1+0.1*c)) > 1e-12 || math.Abs(u-0.6*s) > 1e-12 {
		t.Errorf("stokes (%g, %g, %g)", i, q, u)
	}
	if r := f.Radiance(0, 0, phi); math.Abs(r-i) > 1e-12 {
		t.Errorf("radiance %g != %g", r, i)
	}
	if i, q, u := f.StokesVector(0, 1, phi); i != 2 || q != 0.2 || u != 0 {
		t.Errorf("second direction (%g, %g, %g)", i, q, u)
	}
}

func TestValidate(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	p := rayleighProfile(t, lim, 0.1, 5)
	other, err := angles.NewGrid(lim, angles.Request{Gauss: 4}, 30, false)
	if err != nil {
		t.Fatal(err)
	}
	for name, in := range map[string]*Inputs{
		"no grid":       {Limits: lim, Profile: p},
		"no profile":    {Limits: lim, Grid: g},
		"surface grid":  {Limits: lim, Grid: g, Profile: p, Surface: lambert(t, lim, other, 0.1)},
		"fourier order": {Limits: lim, Grid: g, Profile: p, MaxFourierOrder: -1},
	} {
		_, _, err := Solve(in)
		if _, ok := err.(*rterr.InputValidationError); !ok {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestPlane(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	sol, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: rayleighProfile(t, lim, 0.2, 10)})
	pl := sol.Plane(true, 0)
	if len(pl) != 2*g.Len() {
		t.Fatalf("%d directions", len(pl))
	}
	if pl[0].Zenith >= 0 || pl[len(pl)-1].Zenith <= 0 {
		t.Errorf("zenith ordering %g ... %g", pl[0].Zenith, pl[len(pl)-1].Zenith)
	}
	// The nadir view appears on both sides of the plane.
	n := g.Len()
	if different(pl[n-1].Radiance, pl[n].Radiance, 1e-12) {
		t.Errorf("nadir: %g != %g", pl[n-1].Radiance, pl[n].Radiance)
	}
	// Backscattering at the solar zenith angle on the sun's side.
	i := g.SolarIndex
	if v := sol.view(true, i, 180); math.Abs(v.Scattering-180) > 1e-6 {
		t.Errorf("scattering angle %g", v.Scattering)
	}
	scan, err := sol.Scan(true, 90)
	if err != nil {
		t.Fatal(err)
	}
	if len(scan) != 5 || different(scan[0][3].Radiance, scan[4][3].Radiance, 1e-12) {
		t.Errorf("scan: %d azimuths", len(scan))
	}
	if _, err := sol.Scan(true, 0); err == nil {
		t.Error("expected an error for a zero azimuth step")
	}
}

func TestSimulationSaveLoad(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	buf := new(bytes.Buffer)
	s := &Simulation{
		InitFuncs:    []DomainManipulator{SetInputs(&Inputs{Limits: lim, Grid: g, Profile: rayleighProfile(t, lim, 0.2, 10)})},
		RunFuncs:     []DomainManipulator{SolveRadiance()},
		CleanupFuncs: []DomainManipulator{Save(buf)},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if err := s.Cleanup(); err != nil {
		t.Fatal(err)
	}
	s2 := &Simulation{InitFuncs: []DomainManipulator{Load(buf)}}
	if err := s2.Init(); err != nil {
		t.Fatal(err)
	}
	if !s2.Done {
		t.Error("loaded simulation should be done")
	}
	a, b := s.Solution.Plane(true, 30), s2.Solution.Plane(true, 30)
	for i := range a {
		if a[i].Zenith != b[i].Zenith || a[i].Radiance != b[i].Radiance || a[i].Scattering != b[i].Scattering {
			t.Errorf("%d: %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestCorrelatedK(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	p := rayleighProfile(t, lim, 0.2, 5)
	zero := make([]float64, len(p.Layers))
	thick := make([]float64, len(p.Layers))
	for i := range thick {
		thick[i] = 10
	}
	run := func(terms []ckd.Term) *Solution {
		s := &Simulation{
			InitFuncs: []DomainManipulator{SetInputs(&Inputs{Limits: lim, Grid: g, Profile: p})},
			RunFuncs:  []DomainManipulator{CorrelatedK(p, terms)},
		}
		if err := s.Init(); err != nil {
			t.Fatal(err)
		}
		if err := s.Run(); err != nil {
			t.Fatal(err)
		}
		return s.Solution
	}
	clear := run([]ckd.Term{{Weight: 1, Tau: zero}})
	split := run([]ckd.Term{{Weight: 0.25, Tau: zero}, {Weight: 0.75, Tau: zero}})
	half := run([]ckd.Term{{Weight: 0.5, Tau: zero}, {Weight: 0.5, Tau: thick}})
	a, c, b := clear.User(true, 0), split.User(true, 0), half.User(true, 0)
	for i := range a {
		if different(c[i].Radiance, a[i].Radiance, 1e-12) {
			t.Errorf("%g: %g != %g", a[i].Zenith, c[i].Radiance, a[i].Radiance)
		}
		// The opaque term only adds light scattered near the top.
		if b[i].Radiance < a[i].Radiance/2 || different(b[i].Radiance, a[i].Radiance/2, 3e-2) {
			t.Errorf("%g: %g != %g/2", a[i].Zenith, b[i].Radiance, a[i].Radiance)
		}
	}
	if tr := half.Transmission(); different(tr.Direct, clear.Transmission().Direct/2, 1e-6) {
		t.Errorf("direct transmission %g", tr.Direct)
	}
}

// rayleighLambert is a radiance table of a molecular atmosphere over a
// Lambertian surface computed by doubling and adding.
type rayleighLambert struct {
	RayleighDepth  float64 `toml:"rayleigh_depth"`
	Depolarization float64
	Albedo         float64
	SolarZenith    float64 `toml:"solar_zenith"`
	Gauss          int
	UserAngles     []float64 `toml:"user_angles"`
	Radiance       []struct {
		Zenith, Azimuth, Up, Down float64
	}
	// Mean holds the azimuthally averaged radiance.
	Mean []struct {
		Zenith, Up, Down float64
	}
}

func readRayleighLambert(t *testing.T) (*rayleighLambert, *angles.Grid, *atmosphere.Profile, *surface.Fourier) {
	var ref rayleighLambert
	if _, err := toml.DecodeFile("testdata/rayleigh_lambert.toml", &ref); err != nil {
		t.Fatal(err)
	}
	lim := limits.Default()
	g, err := angles.NewGrid(lim, angles.Request{Gauss: ref.Gauss, UserAngles: ref.UserAngles}, ref.SolarZenith, false)
	if err != nil {
		t.Fatal(err)
	}
	p, err := atmosphere.Build(lim, atmosphere.Config{
		RayleighDepth: ref.RayleighDepth, RayleighScaleHeight: 8, Depolarization: ref.Depolarization,
		Vertical: atmosphere.Exponential, Layers: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &ref, g, p, lambert(t, lim, g, ref.Albedo)
}

// userIndex returns the grid index of the user angle zenith [degrees].
func userIndex(t *testing.T, g *angles.Grid, ref *rayleighLambert, zenith float64) int {
	for k, a := range ref.UserAngles {
		if a == zenith {
			return g.UserIndex[k]
		}
	}
	t.Fatalf("no user angle %g", zenith)
	return -1
}

func TestRayleighLambertReference(t *testing.T) {
	ref, g, p, sf := readRayleighLambert(t)
	lim := limits.Default()
	sol, w := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p, Surface: sf})
	if len(w) != 0 {
		t.Errorf("warnings: %v", w)
	}
	if len(ref.Radiance) == 0 {
		t.Fatal("empty reference table")
	}
	for _, r := range ref.Radiance {
		i := userIndex(t, g, ref, r.Zenith)
		if v := sol.view(true, i, r.Azimuth); math.Abs(v.Radiance-r.Up) > 1e-4 {
			t.Errorf("up %g° φ=%g: %.6f; want %.6f", r.Zenith, r.Azimuth, v.Radiance, r.Up)
		}
		if v := sol.view(false, i, r.Azimuth); math.Abs(v.Radiance-r.Down) > 1e-4 {
			t.Errorf("down %g° φ=%g: %.6f; want %.6f", r.Zenith, r.Azimuth, v.Radiance, r.Down)
		}
	}
}

// Each scattering order brings the azimuthally averaged radiance closer
// to the reference.
func TestOrdersApproachReference(t *testing.T) {
	ref, g, p, sf := readRayleighLambert(t)
	o := newOrders(newMode(0, limits.Default(), g, p, sf, false))
	last := make([]float64, len(ref.Mean))
	for o.Next() {
		st := o.State()
		sum, _ := o.Result()
		for k, r := range ref.Mean {
			i := userIndex(t, g, ref, r.Zenith)
			d := math.Abs(sum[0][g.Up(i)] - r.Up)
			if st.Order > 2 && d >= last[k] {
				t.Errorf("order %d, %g°: distance %g after %g", st.Order, r.Zenith, d, last[k])
			}
			last[k] = d
		}
	}
	for k, r := range ref.Mean {
		if last[k] > 1e-4 {
			t.Errorf("%g°: converged %g from the reference", r.Zenith, last[k])
		}
	}
}

func TestPolarizedSingleScattering(t *testing.T) {
	lim := limits.Default()
	lim.MaxScatteringOrders = 1
	g := testGrid(t, lim, 40)
	p := rayleighProfile(t, lim, 0.1, 10)
	sol, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p, Polarized: true})
	scalar, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p})
	if sol.Field.Stokes() != 3 {
		t.Fatalf("%d Stokes parameters", sol.Field.Stokes())
	}
	b := atmosphere.RayleighMoments(0.0279)
	mu0 := g.Solar()
	s0 := math.Sqrt(1 - mu0*mu0)
	for _, i := range g.UserIndex {
		mu := g.Mu[i]
		s := math.Sqrt(1 - mu*mu)
		for _, up := range []bool{true, false} {
			sign := 1.
			if up {
				sign = -1
			}
			for _, phi := range []float64{0, 60, 180} {
				c := sign*mu*mu0 + s*s0*math.Cos(phi*deg)
				f11 := rayleighPhase(c)
				f12 := -1.5 * b[2] * (1 - c*c)
				v, ref := sol.view(up, i, phi), scalar.view(up, i, phi)
				if different(v.Radiance, ref.Radiance, 1e-9) {
					t.Errorf("%s μ=%g φ=%g: I %g != %g", direction(up), mu, phi, v.Radiance, ref.Radiance)
				}
				// Single scattering of sunlight is polarized by F12/F11.
				if math.Abs(v.Rate/100-math.Abs(f12)/f11) > 1e-9 {
					t.Errorf("%s μ=%g φ=%g: degree of polarization %g; want %g", direction(up), mu, phi, v.Rate/100, math.Abs(f12)/f11)
				}
				if phi == 60 {
					continue
				}
				// In the principal plane the light is polarized
				// perpendicular to the scattering plane.
				if math.Abs(v.Q/v.Radiance-f12/f11) > 1e-9 || math.Abs(v.U) > 1e-12 {
					t.Errorf("%s μ=%g φ=%g: Q/I %g, U %g; want Q/I %g", direction(up), mu, phi, v.Q/v.Radiance, v.U, f12/f11)
				}
			}
		}
	}
}

func direction(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

// Without I-Q coupling the radiance is that of the scalar solution and the
// light remains unpolarized.
func TestPolarizedDecoupled(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	p := rayleighProfile(t, lim, 0.3, 20)
	for _, l := range p.Layers {
		for k := range l.Polarization.Beta1 {
			l.Polarization.Beta1[k] = 0
		}
	}
	sf := lambert(t, lim, g, 0.1)
	pol, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p, Surface: sf, Polarized: true})
	scalar, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p, Surface: sf})
	for _, up := range []bool{true, false} {
		a, b := pol.Plane(up, 45), scalar.Plane(up, 45)
		for k := range a {
			if different(a[k].Radiance, b[k].Radiance, 1e-9) {
				t.Errorf("%s %g: %g != %g", direction(up), a[k].Zenith, a[k].Radiance, b[k].Radiance)
			}
			if a[k].Q != 0 || a[k].U != 0 || !math.IsNaN(a[k].Angle) {
				t.Errorf("%s %g: Q %g U %g angle %g", direction(up), a[k].Zenith, a[k].Q, a[k].U, a[k].Angle)
			}
		}
	}
}

func TestPolarizedRayleigh(t *testing.T) {
	ref, g, p, sf := readRayleighLambert(t)
	lim := limits.Default()
	pol, w := solve(t, &Inputs{Limits: lim, Grid: g, Profile: p, Surface: sf, Polarized: true})
	if len(w) != 0 {
		t.Errorf("warnings: %v", w)
	}
	var largest float64
	for _, r := range ref.Radiance {
		i := userIndex(t, g, ref, r.Zenith)
		for _, up := range []bool{true, false} {
			v := pol.view(up, i, r.Azimuth)
			want := r.Down
			if up {
				want = r.Up
			}
			// Polarization changes the radiance by a few percent.
			d := math.Abs(v.Radiance-want) / want
			largest = math.Max(largest, d)
			if d > 0.08 {
				t.Errorf("%s %g° φ=%g: %g; scalar %g", direction(up), r.Zenith, r.Azimuth, v.Radiance, want)
			}
		}
	}
	if largest < 1e-3 {
		t.Errorf("polarization does not affect the radiance (%g)", largest)
	}
	for _, up := range []bool{true, false} {
		scan, err := pol.Scan(up, 30)
		if err != nil {
			t.Fatal(err)
		}
		for _, row := range scan {
			for _, v := range row {
				if v.Rate < 0 || v.Rate > 100 || math.Abs(v.Polarized-math.Hypot(v.Q, v.U)) > 1e-15 {
					t.Errorf("%s %g° φ=%g: %+v", direction(up), v.Zenith, v.Azimuth, v)
				}
			}
		}
	}
	// Backscattering at the solar zenith angle is nearly unpolarized.
	if v := pol.view(true, g.SolarIndex, 180); v.Rate > 2 {
		t.Errorf("backscattering polarized by %g%%", v.Rate)
	}
	// Energy is conserved without absorption.
	bare, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: rayleighProfile(t, lim, 0.5, 50), Polarized: true})
	f := bare.Fluxes()
	top, bottom := f[0], f[len(f)-1]
	if total := top.DiffuseUp + bottom.Direct + bottom.DiffuseDown; different(total, g.Solar(), 1e-4) {
		t.Errorf("reflected + transmitted = %g; incident %g", total, g.Solar())
	}
}

// Light reflected by a sea surface under a transparent atmosphere is that
// of the facets' reflection matrix.
func TestPolarizedGlitter(t *testing.T) {
	lim := limits.Default()
	g := testGrid(t, lim, 30)
	gl, err := surface.NewGlitter(lim, 1.34, 7)
	if err != nil {
		t.Fatal(err)
	}
	sf, err := surface.Decompose(lim, gl, g, lim.DefaultSurfaceOrder)
	if err != nil && !rterr.IsWarning(err) {
		t.Fatal(err)
	}
	sol, _ := solve(t, &Inputs{Limits: lim, Grid: g, Profile: transparentProfile(t, lim), Surface: sf, Polarized: true})
	mu0 := g.Solar()
	type stokes struct{ i, q, u float64 }
	var got, want []stokes
	var peak float64
	for _, i := range g.UserIndex {
		for _, phi := range []float64{0, 60, 120, 180} {
			v := sol.view(true, i, phi)
			r := gl.Mueller(mu0, g.Mu[i], phi*deg)
			got = append(got, stokes{v.Radiance, v.Q, v.U})
			want = append(want, stokes{mu0 * r[0][0], mu0 * r[1][0], mu0 * r[2][0]})
			peak = math.Max(peak, mu0*r[0][0])
		}
	}
	for k := range got {
		a, b := got[k], want[k]
		if math.Abs(a.i-b.i) > 2e-3*peak || math.Abs(a.q-b.q) > 2e-3*peak || math.Abs(a.u-b.u) > 2e-3*peak {
			t.Errorf("%d: %+v; want %+v", k, a, b)
		}
	}
}
