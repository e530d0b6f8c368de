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
	"math/cmplx"
)

// Scattering holds the optical properties of a single homogeneous sphere.
type Scattering struct {
	// X is the size parameter 2πr/λ.
	X float64
	// Qext and Qsca are the extinction and scattering efficiencies and G
	// the asymmetry parameter.
	Qext, Qsca, G float64
	// S1 and S2 are the amplitude scattering functions at the requested
	// cosines of the scattering angle.
	S1, S2 []complex128
}

// Terms returns the number of terms needed in the Mie series for size
// parameter x.
func Terms(x float64) int {
	return int(x + 4*math.Cbrt(x) + 2)
}

// Particle computes the scattering of a sphere with size parameter x and
// relative refractive index m = n + ik (k >= 0 for absorbing particles) at
// the scattering angle cosines mu. It returns an error if the series needs
// more than maxTerms terms.
func Particle(x float64, m complex128, mu []float64, maxTerms int) (*Scattering, error) {
	if !(x > 0) {
		return nil, fmt.Errorf("mie: size parameter must be positive, got %g", x)
	}
	nstop := Terms(x)
	if nstop > maxTerms {
		return nil, fmt.Errorf("mie: size parameter %g needs %d series terms; the maximum is %d",
			x, nstop, maxTerms)
	}
	y := m * complex(x, 0)
	nmx := int(math.Max(float64(nstop), cmplx.Abs(y))) + 15

	// Logarithmic derivative by downward recurrence.
	d := make([]complex128, nmx+1)
	for n := nmx; n > 0; n-- {
		en := complex(float64(n), 0)
		d[n-1] = en/y - 1/(d[n]+en/y)
	}

	s := &Scattering{
		X:  x,
		S1: make([]complex128, len(mu)),
		S2: make([]complex128, len(mu)),
	}
	pi0 := make([]float64, len(mu))
	pi1 := make([]float64, len(mu))
	for i := range pi1 {
		pi1[i] = 1
	}

	psi0, psi1 := math.Cos(x), math.Sin(x)
	chi0, chi1 := -math.Sin(x), math.Cos(x)
	xi1 := complex(psi1, -chi1)
	var an1, bn1 complex128
	var qsca, qext, g float64
	for n := 1; n <= nstop; n++ {
		en := float64(n)
		fn := (2*en + 1) / (en * (en + 1))
		psi := (2*en-1)*psi1/x - psi0
		chi := (2*en-1)*chi1/x - chi0
		xi := complex(psi, -chi)
		dm := d[n]/m + complex(en/x, 0)
		dn := d[n]*m + complex(en/x, 0)
		an := (dm*complex(psi, 0) - complex(psi1, 0)) / (dm*xi - xi1)
		bn := (dn*complex(psi, 0) - complex(psi1, 0)) / (dn*xi - xi1)

		qsca += (2*en + 1) * (sq(an) + sq(bn))
		qext += (2*en + 1) * (real(an) + real(bn))
		if n > 1 {
			g += (en-1)*(en+1)/en*(real(an1*cmplx.Conj(an))+real(bn1*cmplx.Conj(bn))) +
				(2*en-1)/((en-1)*en)*real(an1*cmplx.Conj(bn1))
		}

		for i, c := range mu {
			p := pi1[i]
			t := en*c*p - (en+1)*pi0[i]
			s.S1[i] += complex(fn, 0) * (an*complex(p, 0) + bn*complex(t, 0))
			s.S2[i] += complex(fn, 0) * (an*complex(t, 0) + bn*complex(p, 0))
			pi0[i], pi1[i] = p, ((2*en+1)*c*p-(en+1)*pi0[i])/en
		}

		an1, bn1 = an, bn
		psi0, psi1 = psi1, psi
		chi0, chi1 = chi1, chi
		xi1 = complex(psi1, -chi1)
	}
	s.Qsca = 2 * qsca / (x * x)
	s.Qext = 2 * qext / (x * x)
	s.G = 4 * g / (s.Qsca * x * x)
	return s, nil
}

func sq(c complex128) float64 { return real(c)*real(c) + imag(c)*imag(c) }
