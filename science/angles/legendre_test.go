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

package angles

import (
	"math"
	"testing"
)

func TestLegendre(t *testing.T) {
	for _, mu := range []float64{-0.9, -0.3, 0, 0.2, 0.77, 1} {
		s := math.Sqrt(1 - mu*mu)
		p := make([]float64, 4)
		Legendre(p, 0, mu)
		want := []float64{1, mu, (3*mu*mu - 1) / 2, (5*mu*mu*mu - 3*mu) / 2}
		for l := range want {
			if different(p[l], want[l], 1e-14) {
				t.Errorf("P_%d(%g) = %g, want %g", l, mu, p[l], want[l])
			}
		}
		Legendre(p, 1, mu)
		want = []float64{0, math.Sqrt(0.5) * s, math.Sqrt(1.5) * mu * s}
		for l := range want {
			if different(p[l], want[l], 1e-14) {
				t.Errorf("P̃_%d^1(%g) = %g, want %g", l, mu, p[l], want[l])
			}
		}
		Legendre(p, 2, mu)
		if different(p[2], math.Sqrt(3./8)*s*s, 1e-14) {
			t.Errorf("P̃_2^2(%g) = %g", mu, p[2])
		}
	}
}

func TestLegendreAdditionTheorem(t *testing.T) {
	const L = 12
	for _, c := range []struct{ mu1, mu2, dphi float64 }{
		{0.3, 0.8, 0.5}, {-0.6, 0.2, 2.9}, {0.95, -0.95, 0}, {0.1, 0.1, math.Pi},
	} {
		cosT := c.mu1*c.mu2 + math.Sqrt(1-c.mu1*c.mu1)*math.Sqrt(1-c.mu2*c.mu2)*math.Cos(c.dphi)
		want := make([]float64, L+1)
		Legendre(want, 0, cosT)
		have := make([]float64, L+1)
		p1 := make([]float64, L+1)
		p2 := make([]float64, L+1)
		for m := 0; m <= L; m++ {
			Legendre(p1, m, c.mu1)
			Legendre(p2, m, c.mu2)
			f := 2.
			if m == 0 {
				f = 1
			}
			for l := m; l <= L; l++ {
				have[l] += f * p1[l] * p2[l] * math.Cos(float64(m)*c.dphi)
			}
		}
		for l := range want {
			if different(have[l], want[l], 1e-12) {
				t.Errorf("%+v: l=%d: have %g, want %g", c, l, have[l], want[l])
			}
		}
	}
}

func TestWigner(t *testing.T) {
	for _, mu := range []float64{-1, -0.6, 0, 0.3, 0.9, 1} {
		d := make([]float64, 5)
		Wigner(d, 2, 2, mu)
		if different(d[2], (1+mu)*(1+mu)/4, 1e-14) || d[1] != 0 {
			t.Errorf("d^2_22(%g) = %g", mu, d[2])
		}
		Wigner(d, 2, -2, mu)
		if different(d[2], (1-mu)*(1-mu)/4, 1e-14) {
			t.Errorf("d^2_2-2(%g) = %g", mu, d[2])
		}
		Wigner(d, 0, 2, mu)
		if different(d[2], math.Sqrt(6)/4*(1-mu*mu), 1e-14) {
			t.Errorf("d^2_02(%g) = %g", mu, d[2])
		}
		if different(d[3], math.Sqrt(30)/4*mu*(1-mu*mu), 1e-14) {
			t.Errorf("d^3_02(%g) = %g", mu, d[3])
		}
		Wigner(d, 1, 0, mu)
		if different(d[1], -math.Sqrt((1-mu*mu)/2), 1e-14) {
			t.Errorf("d^1_10(%g) = %g", mu, d[1])
		}
		// The functions with n = 0 are the normalized associated Legendre
		// functions up to the sign (-1)^m.
		p := make([]float64, 12)
		w := make([]float64, 12)
		for m := 0; m < 6; m++ {
			Legendre(p, m, mu)
			Wigner(w, m, 0, mu)
			sign := 1.
			if m%2 == 1 {
				sign = -1
			}
			for l := range p {
				if different(w[l], sign*p[l], 1e-13) {
					t.Errorf("d^%d_%d0(%g) = %g, want %g", l, m, mu, w[l], sign*p[l])
				}
			}
		}
	}
}

func TestWignerOrthogonality(t *testing.T) {
	const L = 10
	pos, pw := GaussLegendre(12)
	var x, w []float64
	for i := range pos {
		x = append(x, -pos[i], pos[i])
		w = append(w, pw[i], pw[i])
	}
	for _, mn := range [][2]int{{0, 0}, {2, 2}, {2, -2}, {0, 2}, {3, 2}, {5, -2}} {
		d := WignerTable(mn[0], mn[1], L, x)
		for l := 0; l <= L; l++ {
			for k := 0; k <= L; k++ {
				var s float64
				for i := range x {
					s += w[i] * d[i][l] * d[i][k]
				}
				var want float64
				if l == k && l >= max(iabs(mn[0]), iabs(mn[1])) {
					want = 2 / float64(2*l+1)
				}
				if different(s, want, 1e-12) {
					t.Errorf("m=%d n=%d: <d^%d, d^%d> = %g, want %g", mn[0], mn[1], l, k, s, want)
				}
			}
		}
	}
}
