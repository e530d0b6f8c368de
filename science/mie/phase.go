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

// Package mie computes aerosol phase matrices and their Legendre expansions
// from Mie theory for homogeneous spheres.
package mie

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
	"gonum.org/v1/gonum/floats"
)

// PhaseMatrix holds the reduced scattering matrix of an aerosol model on
// the directions of an angle grid, and its expansion in generalized
// spherical functions.
type PhaseMatrix struct {
	Model string
	// Wavelength [µm].
	Wavelength float64
	// Mu holds the cosines of the scattering angles, increasing. They are
	// the signed directions of the grid the matrix was computed on.
	Mu []float64
	// F11, F12, F33 and F34 are the scattering matrix elements, normalized
	// so that the integral of F11 over the sphere divided by 4π is 1. If
	// the matrix was truncated they hold the truncated elements.
	F11, F12, F33, F34 []float64
	// Moments are the Legendre moments β_l of F11, scaled by EffectiveSSA:
	// F11(cos Θ) = Σ_l Moments[l]/EffectiveSSA P_l(cos Θ), so that
	// Moments[0] equals EffectiveSSA.
	Moments []float64
	// RawMoments are the moments of the untruncated F11 scaled by SSA.
	RawMoments []float64
	// Alpha2, Alpha3 and Beta1 expand the polarized elements, scaled like
	// Moments. With F22 = F11 for spheres,
	//
	//	F11+F33 = Σ_l (Alpha2+Alpha3)[l]/EffectiveSSA d^l_22(cos Θ)
	//	F11-F33 = Σ_l (Alpha2-Alpha3)[l]/EffectiveSSA d^l_2,-2(cos Θ)
	//	F12     = Σ_l Beta1[l]/EffectiveSSA d^l_02(cos Θ)
	Alpha2, Alpha3, Beta1 []float64
	// SSA is the single-scattering albedo of the particles.
	SSA float64
	// TruncationFactor is the fraction of scattered energy removed from
	// the forward peak, and EffectiveSSA the single-scattering albedo
	// after the removed energy has been treated as unscattered.
	TruncationFactor float64
	EffectiveSSA     float64
	// Asymmetry is the asymmetry parameter of the untruncated F11.
	Asymmetry float64
	// Cext and Csca are the mean extinction and scattering cross
	// sections per particle [µm²].
	Cext, Csca float64
	// MaxAlpha is the largest size parameter used.
	MaxAlpha float64
}

// Order returns the order of the Legendre expansion.
func (p *PhaseMatrix) Order() int { return len(p.Moments) - 1 }

// ExtinctionScaling returns the factor 1 - ωf by which the optical thickness
// of aerosols described by p is reduced to account for truncation.
func (p *PhaseMatrix) ExtinctionScaling() float64 {
	return 1 - p.SSA*p.TruncationFactor
}

// Engine computes phase matrices on one angle grid.
type Engine struct {
	lim   limits.Limits
	grid  *angles.Grid
	mu, w []float64
	cache *particleCache

	// SizeSteps is the number of size parameter samples used to integrate
	// over each size distribution.
	SizeSteps int
	// LegendreOrder is the order of the moment expansions. Zero selects
	// the default order.
	LegendreOrder int
	// Log receives progress information.
	Log logrus.FieldLogger
}

// NewEngine returns an engine computing phase matrices on grid.
func NewEngine(lim limits.Limits, grid *angles.Grid) *Engine {
	return &Engine{
		lim:       lim,
		grid:      grid,
		mu:        grid.Directions(),
		w:         grid.DirectionWeights(),
		cache:     newParticleCache(20000),
		SizeSteps: 300,
		Log:       logrus.StandardLogger(),
	}
}

// Grid returns the grid e computes phase matrices on.
func (e *Engine) Grid() *angles.Grid { return e.grid }

func (e *Engine) order() (int, error) {
	l := e.LegendreOrder
	if l == 0 {
		l = e.lim.DefaultLegendreOrder
	}
	if l < 2 || l > e.lim.MaxLegendreOrder {
		return 0, &rterr.ConfigurationError{Param: "Legendre order",
			Reason: fmt.Sprintf("%d is not in [2, %d]", l, e.lim.MaxLegendreOrder)}
	}
	return l, nil
}

// alphaLimit returns the largest size parameter that can be computed with
// the configured number of series terms.
func (e *Engine) alphaLimit() float64 {
	lo, hi := 0., float64(e.lim.MieDim)
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if Terms(mid) > e.lim.MieDim {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// Compute calculates the phase matrix of model at wavelength [µm]. If
// truncate is true the forward peak of the phase function is truncated.
func (e *Engine) Compute(model Model, wavelength float64, truncate bool) (*PhaseMatrix, error) {
	if !(wavelength > 0) {
		return nil, &rterr.InputValidationError{Field: "wavelength",
			Reason: fmt.Sprintf("must be positive, got %g", wavelength)}
	}
	if len(model.Components) == 0 {
		return nil, &rterr.InputValidationError{Field: "aerosol model " + model.Name,
			Reason: "has no components"}
	}
	order, err := e.order()
	if err != nil {
		return nil, err
	}
	n := len(e.mu)
	p11 := make([]float64, n)
	p12 := make([]float64, n)
	p33 := make([]float64, n)
	p34 := make([]float64, n)
	var cext, csca, number, maxAlpha float64
	for _, c := range model.Components {
		if !(c.Number > 0) {
			return nil, &rterr.InputValidationError{Field: model.Name + " " + c.Name,
				Reason: fmt.Sprintf("number concentration must be positive, got %g", c.Number)}
		}
		cr, err := e.component(model.Name, c, wavelength)
		if err != nil {
			return nil, err
		}
		cext += c.Number * cr.cext
		csca += c.Number * cr.csca
		for i := range p11 {
			p11[i] += c.Number * cr.p11[i]
			p12[i] += c.Number * cr.p12[i]
			p33[i] += c.Number * cr.p33[i]
			p34[i] += c.Number * cr.p34[i]
		}
		number += c.Number
		maxAlpha = math.Max(maxAlpha, cr.maxAlpha)
	}
	if !(cext > 0) {
		return nil, fmt.Errorf("mie: %s aerosols have zero extinction", model.Name)
	}
	p := &PhaseMatrix{
		Model:      model.Name,
		Wavelength: wavelength,
		Mu:         e.mu,
		F11:        p11, F12: p12, F33: p33, F34: p34,
		SSA:      math.Min(1, csca/cext),
		Cext:     cext / number,
		Csca:     csca / number,
		MaxAlpha: maxAlpha,
	}
	if err := e.finish(p, order, truncate); err != nil {
		return nil, err
	}
	e.Log.WithFields(logrus.Fields{
		"model":      model.Name,
		"wavelength": wavelength,
		"ssa":        p.SSA,
		"g":          p.Asymmetry,
		"truncation": p.TruncationFactor,
		"alphamax":   maxAlpha,
	}).Debug("computed phase matrix")
	return p, nil
}

type componentResult struct {
	cext, csca, maxAlpha float64
	p11, p12, p33, p34   []float64
}

// component integrates the single particle results over the size
// distribution of c, normalized to one particle.
func (e *Engine) component(model string, c Component, wavelength float64) (*componentResult, error) {
	rlo, rhi, err := sizeRange(c.Dist, e.lim.SizeDistributionCutoff)
	if err != nil {
		return nil, fmt.Errorf("mie: %s %s: %v", model, c.Name, err)
	}
	k := 2 * math.Pi / wavelength
	alo, ahi := k*rlo, k*rhi
	amax := c.MaxAlpha
	if amax == 0 {
		amax = e.alphaLimit()
	}
	if ahi < e.lim.MinSizeParameter || ahi > amax {
		name := model
		if c.Name != model {
			name = model + " " + c.Name
		}
		return nil, &rterr.SizeParameterOutOfRange{Model: name, Alpha: ahi,
			Min: e.lim.MinSizeParameter, Max: amax}
	}
	alo = math.Max(alo, e.lim.MinSizeParameter)

	steps := e.SizeSteps
	if steps < 2 {
		steps = 2
	}
	h := (math.Log(ahi) - math.Log(alo)) / float64(steps-1)
	scat := make([]*Scattering, steps)
	alpha := func(i int) float64 { return math.Exp(math.Log(alo) + float64(i)*h) }

	// Single particle computations are independent, so they are spread
	// over the available processors.
	idx := make(chan int)
	errs := make([]error, steps)
	var wg sync.WaitGroup
	nprocs := runtime.GOMAXPROCS(0)
	wg.Add(nprocs)
	for p := 0; p < nprocs; p++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				x := alpha(i)
				if s, ok := e.cache.get(x, c.Index); ok {
					scat[i] = s
					continue
				}
				s, err := Particle(x, c.Index, e.mu, e.lim.MieDim)
				if err != nil {
					errs[i] = err
					continue
				}
				e.cache.add(s, c.Index)
				scat[i] = s
			}
		}()
	}
	for i := 0; i < steps; i++ {
		idx <- i
	}
	close(idx)
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	n := len(e.mu)
	cr := &componentResult{
		maxAlpha: ahi,
		p11:      make([]float64, n),
		p12:      make([]float64, n),
		p33:      make([]float64, n),
		p34:      make([]float64, n),
	}
	var total float64
	for i, s := range scat {
		r := s.X / k
		w := h * c.Dist.Density(r) * r
		if i == 0 || i == steps-1 {
			w /= 2
		}
		total += w
		area := math.Pi * r * r
		cr.cext += w * area * s.Qext
		cr.csca += w * area * s.Qsca
		for j := range cr.p11 {
			a1, a2 := sq(s.S1[j]), sq(s.S2[j])
			x := s.S2[j] * complexConj(s.S1[j])
			cr.p11[j] += w * (a1 + a2) / 2
			cr.p12[j] += w * (a2 - a1) / 2
			cr.p33[j] += w * real(x)
			cr.p34[j] += w * imag(x)
		}
	}
	if !(total > 0) {
		return nil, fmt.Errorf("mie: %s %s: size distribution integrates to zero", model, c.Name)
	}
	cr.cext /= total
	cr.csca /= total
	for j := range cr.p11 {
		cr.p11[j] /= total
		cr.p12[j] /= total
		cr.p33[j] /= total
		cr.p34[j] /= total
	}
	return cr, nil
}

func complexConj(c complex128) complex128 { return complex(real(c), -imag(c)) }

// finish normalizes the matrix, truncates it if requested, and computes
// its Legendre moments.
func (e *Engine) finish(p *PhaseMatrix, order int, truncate bool) error {
	norm := 0.5 * floats.Dot(e.w, p.F11)
	if !(norm > 0) {
		return fmt.Errorf("mie: %s phase function integrates to %g", p.Model, norm)
	}
	for _, f := range [][]float64{p.F11, p.F12, p.F33, p.F34} {
		for i := range f {
			f[i] /= norm
		}
	}
	wmu := make([]float64, len(e.mu))
	floats.MulTo(wmu, e.w, e.mu)
	p.Asymmetry = 0.5 * floats.Dot(wmu, p.F11)
	p.RawMoments = moments(e.mu, e.w, p.F11, order, p.SSA)

	p.EffectiveSSA = p.SSA
	if truncate {
		p.TruncationFactor = truncateForwardPeak(e.mu, e.w, [][]float64{p.F11, p.F12, p.F33, p.F34},
			e.lim.TruncationThreshold)
		f := p.TruncationFactor
		p.EffectiveSSA = p.SSA * (1 - f) / (1 - p.SSA*f)
	}
	p.Moments = moments(e.mu, e.w, p.F11, order, p.EffectiveSSA)
	p.Alpha2, p.Alpha3, p.Beta1 = polarizedMoments(e.mu, e.w, p.F11, p.F12, p.F33, order, p.EffectiveSSA)
	return nil
}

// moments returns scale × (2l+1)/2 ∫ f P_l for l = 0..order.
func moments(mu, w, f []float64, order int, scale float64) []float64 {
	m := make([]float64, order+1)
	p := make([]float64, order+1)
	for j, x := range mu {
		if w[j] == 0 {
			continue
		}
		angles.Legendre(p, 0, x)
		for l := range m {
			m[l] += w[j] * f[j] * p[l]
		}
	}
	for l := range m {
		m[l] *= scale * float64(2*l+1) / 2
	}
	return m
}

// polarizedMoments returns the expansion coefficients α2, α3 and β1 of a
// scattering matrix with F22 = F11, scaled by scale.
func polarizedMoments(mu, w, f11, f12, f33 []float64, order int, scale float64) (a2, a3, b1 []float64) {
	a2 = make([]float64, order+1)
	a3 = make([]float64, order+1)
	b1 = make([]float64, order+1)
	dp := make([]float64, order+1)
	dm := make([]float64, order+1)
	d0 := make([]float64, order+1)
	for j, x := range mu {
		if w[j] == 0 {
			continue
		}
		angles.Wigner(dp, 2, 2, x)
		angles.Wigner(dm, 2, -2, x)
		angles.Wigner(d0, 0, 2, x)
		sum, diff := w[j]*(f11[j]+f33[j]), w[j]*(f11[j]-f33[j])
		for l := 2; l <= order; l++ {
			p, m := sum*dp[l], diff*dm[l]
			a2[l] += (p + m) / 2
			a3[l] += (p - m) / 2
			b1[l] += w[j] * f12[j] * d0[l]
		}
	}
	for l := range a2 {
		f := scale * float64(2*l+1) / 2
		a2[l] *= f
		a3[l] *= f
		b1[l] *= f
	}
	return a2, a3, b1
}

// truncateForwardPeak replaces the phase function in the forward peak,
// where F11 exceeds threshold times its forward value, by a smooth branch
// ln F = ln F(Θt) + s/(2Θt) (Θ² - Θt²) matching the value and logarithmic
// slope s of F11 at the truncation angle Θt. The other elements are scaled
// with F11 and all are renormalized. It returns the fraction of scattered
// energy removed, or zero if the phase function has no forward peak to
// truncate. mu must be increasing.
func truncateForwardPeak(mu, w []float64, f [][]float64, threshold float64) float64 {
	f11 := f[0]
	fwd := len(mu) - 1
	peak := f11[fwd]
	t := -1
	for i := fwd - 1; i >= 0; i-- {
		if f11[i] <= threshold*peak {
			t = i
			break
		}
	}
	if t < 1 || !(f11[t] > 0) || !(f11[t-1] > 0) {
		return 0
	}
	thetaT := math.Acos(mu[t])
	slope := (math.Log(f11[t-1]) - math.Log(f11[t])) / (math.Acos(mu[t-1]) - thetaT)
	if !(slope < 0) || !(thetaT > 0) {
		return 0
	}
	ratio := make([]float64, len(mu))
	for i := range ratio {
		ratio[i] = 1
	}
	for i := t + 1; i <= fwd; i++ {
		theta := math.Acos(mu[i])
		ftr := f11[t] * math.Exp(slope/(2*thetaT)*(theta*theta-thetaT*thetaT))
		ratio[i] = ftr / f11[i]
	}
	var kept float64
	for i := range mu {
		kept += w[i] * f11[i] * ratio[i]
	}
	frac := 1 - kept/2
	if !(frac > 0) {
		return 0
	}
	for _, fe := range f {
		for i := range fe {
			fe[i] *= ratio[i] / (1 - frac)
		}
	}
	return frac
}
