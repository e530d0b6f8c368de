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

import "math"

// Legendre fills dst[l] with the normalized associated Legendre function
//
//	P̃_l^m(mu) = sqrt((l-m)!/(l+m)!) P_l^m(mu)
//
// for m <= l < len(dst), and sets dst[l] = 0 for l < m. For m == 0 these
// are the Legendre polynomials. The normalization makes the addition
// theorem read P_l(cos Θ) = Σ_m (2-δ_m0) P̃_l^m(mu) P̃_l^m(mu') cos(m Δφ).
func Legendre(dst []float64, m int, mu float64) {
	for l := range dst {
		dst[l] = 0
	}
	if m >= len(dst) {
		return
	}
	s := math.Sqrt(math.Max(0, 1-mu*mu))
	pmm := 1.
	for k := 1; k <= m; k++ {
		pmm *= math.Sqrt(float64(2*k-1)/float64(2*k)) * s
	}
	dst[m] = pmm
	if m+1 >= len(dst) {
		return
	}
	dst[m+1] = math.Sqrt(float64(2*m+1)) * mu * pmm
	fm := float64(m * m)
	for l := m + 2; l < len(dst); l++ {
		fl := float64(l)
		dst[l] = ((2*fl-1)*mu*dst[l-1] - math.Sqrt((fl-1)*(fl-1)-fm)*dst[l-2]) /
			math.Sqrt(fl*fl-fm)
	}
}

// LegendreTable returns P̃_l^m(mu[i]) for l = 0..order, indexed [i][l].
func LegendreTable(m, order int, mu []float64) [][]float64 {
	t := make([][]float64, len(mu))
	for i, x := range mu {
		t[i] = make([]float64, order+1)
		Legendre(t[i], m, x)
	}
	return t
}

// Wigner fills dst[l] with the Wigner function d^l_mn(θ) of mu = cos θ for
// max(|m|, |n|) <= l < len(dst), and sets the lower orders to zero. The
// functions with n = 0 are (-1)^m P̃_l^m; those with n = ±2 expand the
// polarized elements of a scattering matrix.
func Wigner(dst []float64, m, n int, mu float64) {
	for l := range dst {
		dst[l] = 0
	}
	s := max(iabs(m), iabs(n))
	if s >= len(dst) {
		return
	}
	a, b := iabs(m-n), iabs(m+n)
	lf := func(k int) float64 {
		v, _ := math.Lgamma(float64(k + 1))
		return v
	}
	d := math.Exp(-float64(s)*math.Ln2+(lf(2*s)-lf(a)-lf(b))/2) *
		math.Pow(math.Max(0, 1-mu), float64(a)/2) * math.Pow(math.Max(0, 1+mu), float64(b)/2)
	if n < m && (m-n)%2 != 0 {
		d = -d
	}
	dst[s] = d
	fm, fn := float64(m), float64(n)
	for l := s; l+1 < len(dst); l++ {
		if l == 0 {
			dst[1] = mu * dst[0]
			continue
		}
		fl := float64(l)
		var prev float64
		if l > s {
			prev = dst[l-1]
		}
		dst[l+1] = ((2*fl+1)*(fl*(fl+1)*mu-fm*fn)*dst[l] -
			(fl+1)*math.Sqrt(fl*fl-fm*fm)*math.Sqrt(fl*fl-fn*fn)*prev) /
			(fl * math.Sqrt((fl+1)*(fl+1)-fm*fm) * math.Sqrt((fl+1)*(fl+1)-fn*fn))
	}
}

// WignerTable returns d^l_mn(mu[i]) for l = 0..order, indexed [i][l].
func WignerTable(m, n, order int, mu []float64) [][]float64 {
	t := make([][]float64, len(mu))
	for i, x := range mu {
		t[i] = make([]float64, order+1)
		Wigner(t[i], m, n, x)
	}
	return t
}

func iabs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
