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
	"math"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/surface"
	"gonum.org/v1/gonum/floats"
)

// mode holds the quantities shared by all scattering orders of one
// Fourier order. Radiance fields are indexed by [level][direction·ns +
// Stokes component], with directions ordered as in angles.Grid.Directions.
// The components are I for radiance only, or I, Q and U, where I and Q
// are the coefficients of cos mφ and U that of sin mφ.
type mode struct {
	m    int
	lim  limits.Limits
	grid *angles.Grid
	prof *atmosphere.Profile
	surf *surface.Fourier

	dirs, wts []float64
	n, ns     int
	mu0       float64
	order     int
	// pl holds the angular functions of each direction, indexed
	// [function][direction][l]: P̃_l^m for radiance only, or d^l_m0 and
	// the R and T combinations of d^l_m2 and d^l_m-2 for polarized light.
	// p0 holds those of the solar direction, indexed [function][l].
	pl [][][]float64
	p0 [][]float64
	// coef holds the expansion coefficients of each layer, padded to
	// order, indexed [layer][coefficient][l]: α1 and for polarized light
	// α2, α3 and β1.
	coef [][][]float64
	// trans, near and far are the layer transmission and source weights
	// of linearSourceWeights, indexed by [layer][positive grid index].
	trans, near, far [][]float64
}

func newMode(m int, lim limits.Limits, g *angles.Grid, p *atmosphere.Profile, s *surface.Fourier, polarized bool) *mode {
	md := &mode{
		m: m, lim: lim, grid: g, prof: p, surf: s,
		dirs: g.Directions(),
		wts:  g.DirectionWeights(),
		n:    g.Len(),
		ns:   1,
		mu0:  g.Solar(),
	}
	for _, l := range p.Layers {
		if o := len(l.Moments) - 1; o > md.order {
			md.order = o
		}
	}
	pad := func(x []float64) []float64 {
		out := make([]float64, md.order+1)
		copy(out, x)
		return out
	}
	md.coef = make([][][]float64, len(p.Layers))
	for l, layer := range p.Layers {
		md.coef[l] = [][]float64{pad(layer.Moments)}
		if polarized {
			pz := layer.Polarization
			md.coef[l] = append(md.coef[l], pad(pz.Alpha2), pad(pz.Alpha3), pad(pz.Beta1))
		}
	}
	if polarized {
		md.ns = 3
		md.pl = polarizedFunctions(m, md.order, md.dirs)
		for _, f := range polarizedFunctions(m, md.order, []float64{md.mu0}) {
			md.p0 = append(md.p0, f[0])
		}
	} else {
		md.pl = [][][]float64{angles.LegendreTable(m, md.order, md.dirs)}
		md.p0 = [][]float64{angles.LegendreTable(m, md.order, []float64{md.mu0})[0]}
	}

	md.trans = make([][]float64, len(p.Layers))
	md.near = make([][]float64, len(p.Layers))
	md.far = make([][]float64, len(p.Layers))
	for l := range p.Layers {
		dt := p.Depth[l+1] - p.Depth[l]
		md.trans[l] = make([]float64, md.n)
		md.near[l] = make([]float64, md.n)
		md.far[l] = make([]float64, md.n)
		for i, mu := range g.Mu {
			md.trans[l][i], md.near[l][i], md.far[l][i] = linearSourceWeights(dt/mu, lim.SmallOpticalPath)
		}
	}
	return md
}

// polarizedFunctions returns d^l_m0, R = (d^l_m2 + d^l_m-2)/2 and
// T = (d^l_m-2 - d^l_m2)/2 for each of mu, indexed [function][i][l]. The
// Fourier component of the phase matrix for (I, Q, U) is then
// Σ_l P_l(μ) B_l P_l(μ') with
//
//	P_l = | d 0 0 |    B_l = | α1 β1 0  |
//	      | 0 R T |          | β1 α2 0  |
//	      | 0 T R |          | 0  0  α3 |
func polarizedFunctions(m, order int, mu []float64) [][][]float64 {
	d0 := angles.WignerTable(m, 0, order, mu)
	dp := angles.WignerTable(m, 2, order, mu)
	dm := angles.WignerTable(m, -2, order, mu)
	r := make([][]float64, len(mu))
	t := make([][]float64, len(mu))
	for i := range mu {
		r[i] = make([]float64, order+1)
		t[i] = make([]float64, order+1)
		for l := range r[i] {
			r[i][l] = (dp[i][l] + dm[i][l]) / 2
			t[i][l] = (dm[i][l] - dp[i][l]) / 2
		}
	}
	return [][][]float64{d0, r, t}
}

// linearSourceWeights returns the transmission e^-x of a layer of optical
// path x and the weights of the sources at the boundary where the beam
// enters the layer (near) and where it leaves (far), for a source varying
// linearly in optical depth.
func linearSourceWeights(x, small float64) (e, near, far float64) {
	e = math.Exp(-x)
	if x < small {
		x2 := x * x
		return e, x/2 - x2/3 + x2*x/8 - x2*x2/30, x/2 - x2/6 + x2*x/24 - x2*x2/120
	}
	g := -math.Expm1(-x) / x
	return e, g - e, 1 - g
}

// newField returns a new field of zeros.
func (md *mode) newField() [][]float64 {
	f := make([][]float64, len(md.prof.Depth))
	for v := range f {
		f[v] = make([]float64, 2*md.n*md.ns)
	}
	return f
}

// phase sets out to the Fourier component of the phase matrix of a layer
// with coefficients c, in direction d, applied to light with angular
// moments mom: Σ_l P_l(μ_d) B_l mom[·][l].
func (md *mode) phase(out []float64, c [][]float64, d int, mom [][]float64) {
	if md.ns == 1 {
		pl, a1, m0 := md.pl[0][d], c[0], mom[0]
		var s float64
		for l := md.m; l <= md.order; l++ {
			s += a1[l] * pl[l] * m0[l]
		}
		out[0] = s
		return
	}
	a1, a2, a3, b1 := c[0], c[1], c[2], c[3]
	p0, r, t := md.pl[0][d], md.pl[1][d], md.pl[2][d]
	var i, q, u float64
	for l := md.m; l <= md.order; l++ {
		m0, m1, m2 := mom[0][l], mom[1][l], mom[2][l]
		bi := a1[l]*m0 + b1[l]*m1
		bq := b1[l]*m0 + a2[l]*m1
		bu := a3[l] * m2
		i += p0[l] * bi
		q += r[l]*bq + t[l]*bu
		u += t[l]*bq + r[l]*bu
	}
	out[0], out[1], out[2] = i, q, u
}

// moments returns the angular moments Σ_d w_d P_l(μ_d) f[d] of one level
// of a field, indexed [component][l].
func (md *mode) moments(f []float64) [][]float64 {
	mom := make([][]float64, md.ns)
	for k := range mom {
		mom[k] = make([]float64, md.order+1)
	}
	ns := md.ns
	for d, w := range md.wts {
		if w == 0 {
			continue
		}
		if ns == 1 {
			floats.AddScaled(mom[0][md.m:], w*f[d], md.pl[0][d][md.m:])
			continue
		}
		i, q, u := w*f[d*ns], w*f[d*ns+1], w*f[d*ns+2]
		p0, r, t := md.pl[0][d], md.pl[1][d], md.pl[2][d]
		for l := md.m; l <= md.order; l++ {
			mom[0][l] += p0[l] * i
			mom[1][l] += r[l]*q + t[l]*u
			mom[2][l] += t[l]*q + r[l]*u
		}
	}
	return mom
}

// reflect sets the upward radiance at the surface from the downward
// radiance there, adding the reflected direct beam if direct is true.
// Surfaces without a polarized reflection matrix reflect I only.
func (md *mode) reflect(f [][]float64, direct bool) {
	if md.surf == nil {
		return
	}
	bottom := f[len(f)-1]
	mu := md.grid.Mu
	w := md.grid.Weights
	ns := md.ns
	pol := ns == 3 && md.surf.Polarized != nil
	var beam float64
	if direct {
		beam = md.mu0 * math.Exp(-md.prof.Depth[len(md.prof.Depth)-1]/md.mu0)
	}
	out := make([]float64, ns)
	for i := range mu {
		for k := range out {
			out[k] = 0
		}
		for j := range mu {
			if w[j] == 0 {
				continue
			}
			dj := md.grid.Down(j) * ns
			s := 2 * w[j] * mu[j]
			if !pol {
				out[0] += s * md.surf.At(md.m, i, j) * bottom[dj]
				continue
			}
			r := md.surf.Matrix(md.m, i, j)
			for a := range out {
				for b := range out {
					out[a] += s * r[a][b] * bottom[dj+b]
				}
			}
		}
		if direct {
			if pol {
				r := md.surf.Matrix(md.m, i, md.grid.SolarIndex)
				for a := range out {
					out[a] += r[a][0] * beam
				}
			} else {
				out[0] += md.surf.At(md.m, i, md.grid.SolarIndex) * beam
			}
		}
		copy(bottom[md.grid.Up(i)*ns:], out)
	}
}

// single computes the radiance scattered once by the atmosphere or
// reflected once by the surface, integrating the exponentially
// attenuated solar source exactly within each layer. The solar beam is
// unpolarized.
func (md *mode) single() [][]float64 {
	f := md.newField()
	ns := md.ns
	nl := len(md.prof.Layers)
	solar := make([][]float64, ns)
	solar[0] = md.p0[0]
	for k := 1; k < ns; k++ {
		solar[k] = make([]float64, md.order+1)
	}
	amp := make([][]float64, nl)
	for l := range md.prof.Layers {
		amp[l] = make([]float64, 2*md.n*ns)
		for d := range md.dirs {
			md.phase(amp[l][d*ns:], md.coef[l], d, solar)
		}
		floats.Scale(0.25, amp[l])
	}
	mu0 := md.mu0
	for l := 0; l < nl; l++ {
		ta := md.prof.Depth[l]
		dt := md.prof.Depth[l+1] - ta
		att := math.Exp(-ta / mu0)
		for i, mu := range md.grid.Mu {
			d := md.grid.Down(i) * ns
			c := 1/mu - 1/mu0
			var src float64
			if cd := c * dt; math.Abs(cd) < 1e-8 {
				src = math.Exp(-dt/mu) * dt * (1 + cd/2)
			} else {
				src = (math.Exp(-dt/mu0) - math.Exp(-dt/mu)) / c
			}
			for k := d; k < d+ns; k++ {
				f[l+1][k] = f[l][k]*md.trans[l][i] + amp[l][k]/mu*att*src
			}
		}
	}
	md.reflect(f, true)
	for l := nl - 1; l >= 0; l-- {
		ta := md.prof.Depth[l]
		dt := md.prof.Depth[l+1] - ta
		att := math.Exp(-ta / mu0)
		for i, mu := range md.grid.Mu {
			d := md.grid.Up(i) * ns
			s := att * mu0 / (mu + mu0) * (-math.Expm1(-dt * (1/mu0 + 1/mu)))
			for k := d; k < d+ns; k++ {
				f[l][k] = f[l+1][k]*md.trans[l][i] + amp[l][k]*s
			}
		}
	}
	return f
}

// scatter computes the radiance of the next scattering order from the
// radiance prev of the previous order. Sources are evaluated at the layer
// boundaries with each layer's phase matrix and vary linearly in
// optical depth within the layer.
func (md *mode) scatter(prev [][]float64) [][]float64 {
	ns := md.ns
	mom := make([][][]float64, len(prev))
	for v := range prev {
		mom[v] = md.moments(prev[v])
	}
	nl := len(md.prof.Layers)
	top := make([][]float64, nl)
	bot := make([][]float64, nl)
	for l := range md.prof.Layers {
		top[l] = make([]float64, 2*md.n*ns)
		bot[l] = make([]float64, 2*md.n*ns)
		for d := range md.dirs {
			md.phase(top[l][d*ns:], md.coef[l], d, mom[l])
			md.phase(bot[l][d*ns:], md.coef[l], d, mom[l+1])
		}
		floats.Scale(0.5, top[l])
		floats.Scale(0.5, bot[l])
	}

	f := md.newField()
	for l := 0; l < nl; l++ {
		for i := range md.grid.Mu {
			d := md.grid.Down(i) * ns
			tr, near, far := md.trans[l][i], md.near[l][i], md.far[l][i]
			for k := d; k < d+ns; k++ {
				f[l+1][k] = f[l][k]*tr + top[l][k]*near + bot[l][k]*far
			}
		}
	}
	md.reflect(f, false)
	for l := nl - 1; l >= 0; l-- {
		for i := range md.grid.Mu {
			d := md.grid.Up(i) * ns
			tr, near, far := md.trans[l][i], md.near[l][i], md.far[l][i]
			for k := d; k < d+ns; k++ {
				f[l][k] = f[l+1][k]*tr + bot[l][k]*near + top[l][k]*far
			}
		}
	}
	return f
}

// ConvergenceState describes the progress of the successive orders of
// scattering of one Fourier order.
type ConvergenceState struct {
	// Order is the number of scattering orders computed.
	Order int
	// Contribution is the largest radiance of the last order and Sum the
	// largest accumulated radiance.
	Contribution, Sum float64
	// Ratio is the ratio of the last two contributions.
	Ratio float64
	// Geometric is true once successive ratios agree, so that the
	// remaining orders can be summed as a geometric series.
	Geometric bool
	// Converged is true once the remaining orders are negligible.
	Converged bool
}

// Orders iterates over the successive orders of scattering of one
// Fourier order.
type Orders struct {
	md        *mode
	prev, sum [][]float64
	state     ConvergenceState
	lastRatio float64
	done      bool
	warning   error
}

func newOrders(md *mode) *Orders { return &Orders{md: md} }

// Next computes the next scattering order and adds it to the sum. It
// returns false once the series has converged or the maximum number of
// orders has been reached.
func (o *Orders) Next() bool {
	if o.done {
		return false
	}
	lim := o.md.lim
	var cur [][]float64
	if o.state.Order == 0 {
		cur = o.md.single()
		o.sum = o.md.newField()
	} else {
		cur = o.md.scatter(o.prev)
	}
	o.state.Order++
	c := maxAbs(cur)
	addScaled(o.sum, cur, 1)
	st := &o.state
	prevC := st.Contribution
	st.Contribution = c
	st.Sum = maxAbs(o.sum)
	o.lastRatio = st.Ratio
	if prevC > 0 {
		st.Ratio = c / prevC
	}
	st.Geometric = st.Order >= 3 && st.Ratio < 1 &&
		math.Abs(st.Ratio-o.lastRatio) <= lim.GeometricThreshold*st.Ratio
	switch {
	case c < lim.ContributionFloor:
		st.Converged = true
	case st.Geometric && c*st.Ratio/(1-st.Ratio) <= lim.SumThreshold*st.Sum:
		addScaled(o.sum, cur, st.Ratio/(1-st.Ratio))
		st.Sum = maxAbs(o.sum)
		st.Converged = true
	}
	o.prev = cur
	if st.Converged {
		o.done = true
	} else if st.Order >= lim.MaxScatteringOrders {
		o.done = true
		o.warning = &rterr.ConvergenceWarning{FourierOrder: o.md.m, Orders: st.Order,
			Contribution: c, Sum: st.Sum}
	}
	return true
}

// State returns the convergence state after the last call to Next.
func (o *Orders) State() ConvergenceState { return o.state }

// Result returns the summed radiance and a *rterr.ConvergenceWarning if
// the series did not converge.
func (o *Orders) Result() ([][]float64, error) { return o.sum, o.warning }

// maxAbs returns the largest magnitude in f.
func maxAbs(f [][]float64) float64 {
	var m float64
	for _, row := range f {
		m = math.Max(m, floats.Norm(row, math.Inf(1)))
	}
	return m
}

// addScaled adds s·src to dst.
func addScaled(dst, src [][]float64, s float64) {
	for v, row := range src {
		floats.AddScaled(dst[v], s, row)
	}
}
