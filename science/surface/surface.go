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

// Package surface provides models of the reflection of light by the
// ground or ocean surface and their azimuthal Fourier decomposition.
//
// Reflectances are normalized so that a Lambertian surface of albedo A has
// reflectance A everywhere. The relative azimuth is zero when the sun and
// the observer are on opposite sides of the vertical, which is the
// direction of specular reflection.
package surface

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model is a bidirectional surface reflectance model.
type Model interface {
	Name() string
	// Reflectance returns the reflectance for light incident at cosine of
	// zenith angle mui and reflected at mur, with relative azimuth phi
	// [rad].
	Reflectance(mui, mur, phi float64) float64
	// Limits returns the largest solar and view zenith angles [degrees]
	// for which the model is valid.
	Limits() (solar, view float64)
	// Threshold is the relative magnitude below which Fourier components
	// are dropped.
	Threshold() float64
}

// Polarizer is implemented by models whose reflection polarizes light.
type Polarizer interface {
	Model
	// Mueller returns the reflection matrix for the Stokes parameters
	// (I, Q, U), each referred to the meridian plane of its direction.
	// Its first element is the reflectance.
	Mueller(mui, mur, phi float64) [3][3]float64
}

// mueller returns the reflection matrix function of m, or nil if m does
// not polarize.
func mueller(m Model) func(mui, mur, phi float64) [3][3]float64 {
	switch m := m.(type) {
	case Polarizer:
		return m.Mueller
	case Sum:
		fs := make([]func(mui, mur, phi float64) [3][3]float64, len(m))
		var pol bool
		for i, c := range m {
			fs[i] = mueller(c)
			pol = pol || fs[i] != nil
		}
		if !pol {
			return nil
		}
		return func(mui, mur, phi float64) [3][3]float64 {
			var out [3][3]float64
			for i, f := range fs {
				if f == nil {
					out[0][0] += m[i].Reflectance(mui, mur, phi)
					continue
				}
				r := f(mui, mur, phi)
				for a := range out {
					for b := range out[a] {
						out[a][b] += r[a][b]
					}
				}
			}
			return out
		}
	}
	return nil
}

// Lambert is an isotropic reflector.
type Lambert struct {
	Albedo float64
}

// NewLambert returns a Lambertian surface.
func NewLambert(albedo float64) (*Lambert, error) {
	if albedo < 0 || albedo > 1 || math.IsNaN(albedo) {
		return nil, &rterr.InputValidationError{Field: "surface albedo", Reason: fmt.Sprintf("%g is not in [0, 1]", albedo)}
	}
	return &Lambert{Albedo: albedo}, nil
}

func (l *Lambert) Name() string                        { return "lambert" }
func (l *Lambert) Reflectance(_, _, _ float64) float64 { return l.Albedo }
func (l *Lambert) Limits() (float64, float64)          { return 90, 90 }

// Threshold returns 1: only the azimuthally averaged component of a
// Lambertian surface is nonzero.
func (l *Lambert) Threshold() float64 { return 1 }

// Sum is the sum of several reflectance models, for example a sea surface
// with a Lambertian contribution from below the surface.
type Sum []Model

// WithLambert adds a Lambertian component of the given albedo to m.
func WithLambert(m Model, albedo float64) (Model, error) {
	l, err := NewLambert(albedo)
	if err != nil {
		return nil, err
	}
	if albedo == 0 {
		return m, nil
	}
	return Sum{m, l}, nil
}

func (s Sum) Name() string {
	n := s[0].Name()
	for _, m := range s[1:] {
		n += "+" + m.Name()
	}
	return n
}

func (s Sum) Reflectance(mui, mur, phi float64) float64 {
	var r float64
	for _, m := range s {
		r += m.Reflectance(mui, mur, phi)
	}
	return r
}

func (s Sum) Limits() (float64, float64) {
	solar, view := 90., 90.
	for _, m := range s {
		a, b := m.Limits()
		solar, view = math.Min(solar, a), math.Min(view, b)
	}
	return solar, view
}

func (s Sum) Threshold() float64 {
	t := math.Inf(1)
	for _, m := range s {
		if th := m.Threshold(); th > 0 {
			t = math.Min(t, th)
		}
	}
	if math.IsInf(t, 1) {
		return 0
	}
	return t
}

// Fourier holds the azimuthal Fourier components of a surface
// reflectance on an angle grid, such that
//
//	ρ(μ, μ', φ) = Σ_m (2-δ_0m) ρ^m(μ, μ') cos(mφ).
type Fourier struct {
	Model string
	// Mu is the grid of cosines.
	Mu []float64
	// Components holds one matrix per Fourier order, with rows indexed by
	// reflected direction and columns by incident direction.
	Components []*mat.Dense
	// Polarized holds, for models that polarize, the components of the
	// (I, Q, U) reflection matrix with element (3i+a, 3j+b) for Stokes
	// parameters a and b. Elements coupling U with I or Q are the sine
	// components, negated in the U column. Nil for other models.
	Polarized []*mat.Dense
}

// Order returns the highest Fourier order.
func (f *Fourier) Order() int { return len(f.Components) - 1 }

// At returns ρ^m for reflected direction i and incident direction j, or
// zero beyond the truncation order.
func (f *Fourier) At(m, i, j int) float64 {
	if m >= len(f.Components) {
		return 0
	}
	return f.Components[m].At(i, j)
}

// Matrix returns the (I, Q, U) reflection matrix of order m for reflected
// direction i and incident direction j. Models that do not polarize
// reflect intensity only.
func (f *Fourier) Matrix(m, i, j int) [3][3]float64 {
	var r [3][3]float64
	if m >= len(f.Components) {
		return r
	}
	if f.Polarized == nil {
		r[0][0] = f.Components[m].At(i, j)
		return r
	}
	p := f.Polarized[m]
	for a := range r {
		for b := range r[a] {
			r[a][b] = p.At(3*i+a, 3*j+b)
		}
	}
	return r
}

// Reflectance reconstructs the reflectance from the Fourier components.
func (f *Fourier) Reflectance(i, j int, phi float64) float64 {
	var r float64
	for m, c := range f.Components {
		v := c.At(i, j) * math.Cos(float64(m)*phi)
		if m > 0 {
			v *= 2
		}
		r += v
	}
	return r
}

// Decompose computes the Fourier components of m on grid g up to
// maxOrder. The solar angle and user angles of the grid must be within the
// model's validity limits; Gauss angles beyond them are clamped to the
// limit. One component beyond maxOrder is computed to check the
// truncation. Components are dropped from the first order where that
// component and the next, if any, fall below the model threshold relative
// to the azimuthally averaged component. If the component beyond maxOrder
// is not negligible, the components up to maxOrder are returned along with
// a *rterr.FourierTruncationFailed warning.
func Decompose(lim limits.Limits, m Model, g *angles.Grid, maxOrder int) (*Fourier, error) {
	solarLimit, viewLimit := m.Limits()
	if d := g.Degrees(g.SolarIndex); d > solarLimit {
		return nil, &rterr.AngleOutOfValidityRange{Model: m.Name(), Kind: "solar", Degrees: d, Limit: solarLimit}
	}
	for _, i := range g.UserIndex {
		if d := g.Degrees(i); d > viewLimit {
			return nil, &rterr.AngleOutOfValidityRange{Model: m.Name(), Kind: "view", Degrees: d, Limit: viewLimit}
		}
	}
	nu := lim.AzimuthSamples
	if maxOrder > nu/2 {
		maxOrder = nu / 2
	}
	if maxOrder > lim.MaxSurfaceOrder {
		maxOrder = lim.MaxSurfaceOrder
	}
	if maxOrder < 0 {
		maxOrder = 0
	}
	top := maxOrder + 1
	if top > nu/2 {
		top = nu / 2
	}
	n := g.Len()
	clamp := func(mu, limit float64) float64 {
		return math.Max(mu, math.Cos(limit*math.Pi/180))
	}
	comps := make([]*mat.Dense, top+1)
	for k := range comps {
		comps[k] = mat.NewDense(n, n, nil)
	}
	mf := mueller(m)
	var pcomps []*mat.Dense
	if mf != nil {
		pcomps = make([]*mat.Dense, top+1)
		for k := range pcomps {
			pcomps[k] = mat.NewDense(3*n, 3*n, nil)
		}
	}

	var wg sync.WaitGroup
	rows := make(chan int)
	nprocs := runtime.GOMAXPROCS(0)
	wg.Add(nprocs)
	for p := 0; p < nprocs; p++ {
		go func() {
			defer wg.Done()
			fft := fourier.NewFFT(nu)
			seq := make([]float64, nu)
			var mseq [3][3][]float64
			if mf != nil {
				for a := range mseq {
					for b := range mseq[a] {
						mseq[a][b] = make([]float64, nu)
					}
				}
			}
			var coef []complex128
			for i := range rows {
				mur := clamp(g.Mu[i], viewLimit)
				for j := 0; j < n; j++ {
					mui := clamp(g.Mu[j], solarLimit)
					for k := range seq {
						phi := 2 * math.Pi * float64(k) / float64(nu)
						if mf == nil {
							seq[k] = m.Reflectance(mui, mur, phi)
							continue
						}
						r := mf(mui, mur, phi)
						seq[k] = r[0][0]
						for a := range r {
							for b := range r[a] {
								mseq[a][b][k] = r[a][b]
							}
						}
					}
					coef = fft.Coefficients(coef, seq)
					for o := range comps {
						// Rows are written by a single worker.
						comps[o].Set(i, j, real(coef[o])/float64(nu))
					}
					if mf == nil {
						continue
					}
					for a := range mseq {
						for b := range mseq[a] {
							coef = fft.Coefficients(coef, mseq[a][b])
							for o := range pcomps {
								c, s := real(coef[o])/float64(nu), -imag(coef[o])/float64(nu)
								v := c
								switch {
								case a == 2 && b == 2:
								case b == 2:
									v = -s
								case a == 2:
									v = s
								}
								pcomps[o].Set(3*i+a, 3*j+b, v)
							}
						}
					}
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()

	ref := maxAbs(comps[0])
	th := m.Threshold()
	small := func(o int) bool { return o >= len(comps) || maxAbs(comps[o]) <= th*ref }
	// Two consecutive small components, since symmetric reflectances can
	// have vanishing odd or even orders.
	for o := 1; o < len(comps); o++ {
		if small(o) && small(o+1) {
			return newFourier(m, g, comps, pcomps, o), nil
		}
	}
	f := newFourier(m, g, comps, pcomps, maxOrder+1)
	var ratio float64
	if ref > 0 {
		ratio = maxAbs(comps[top]) / ref
	}
	return f, &rterr.FourierTruncationFailed{Model: m.Name(), MaxOrder: maxOrder, Ratio: ratio}
}

func newFourier(m Model, g *angles.Grid, comps, pcomps []*mat.Dense, n int) *Fourier {
	f := &Fourier{Model: m.Name(), Mu: g.Mu, Components: comps[:n]}
	if pcomps != nil {
		f.Polarized = pcomps[:n]
	}
	return f
}

func maxAbs(m *mat.Dense) float64 {
	return floats.Norm(m.RawMatrix().Data, math.Inf(1))
}
