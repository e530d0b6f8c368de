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
	"fmt"
	"math"
	"sync"

	"github.com/ctessum/sparse"
)

// RadianceField holds the Fourier components of the diffuse radiance,
// indexed by [Fourier order][level][direction][Stokes component]. The
// Stokes axis holds the radiance alone, or (I, Q, U) for polarized
// solutions, where I and Q are cosine series and U a sine series in the
// relative azimuth. Each Fourier order is written once.
type RadianceField struct {
	*sparse.DenseArray

	// Directions are the signed direction cosines, positive downward.
	Directions []float64
	// Finalized is the number of Fourier orders in the field.
	Finalized int

	written []bool
	mu      sync.Mutex
}

func newRadianceField(modes, levels int, directions []float64, stokes int) *RadianceField {
	return &RadianceField{
		DenseArray: sparse.ZerosDense(modes, levels, len(directions), stokes),
		Directions: directions,
		written:    make([]bool, modes),
	}
}

// set stores Fourier order m. Storing an order twice is an error.
func (f *RadianceField) set(m int, radiance [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m < 0 || m >= len(f.written) {
		return fmt.Errorf("sos: Fourier order %d out of range [0, %d)", m, len(f.written))
	}
	if f.written[m] {
		return fmt.Errorf("sos: Fourier order %d already written", m)
	}
	ns := f.Stokes()
	for v, row := range radiance {
		for i, val := range row {
			f.Set(val, m, v, i/ns, i%ns)
		}
	}
	f.written[m] = true
	if m+1 > f.Finalized {
		f.Finalized = m + 1
	}
	return nil
}

// Stokes returns the number of Stokes parameters in the field.
func (f *RadianceField) Stokes() int { return f.Shape[3] }

// Levels returns the number of levels in the field.
func (f *RadianceField) Levels() int { return f.Shape[1] }

// Component returns Fourier order m of the radiance at a level and
// direction.
func (f *RadianceField) Component(m, level, dir int) float64 {
	if m >= f.Finalized {
		return 0
	}
	return f.Get(m, level, dir, 0)
}

// Radiance sums the Fourier series at relative azimuth phi [rad].
func (f *RadianceField) Radiance(level, dir int, phi float64) float64 {
	var r float64
	for m := 0; m < f.Finalized; m++ {
		v := f.Get(m, level, dir, 0)
		if m > 0 {
			v *= 2 * math.Cos(float64(m)*phi)
		}
		r += v
	}
	return r
}

// StokesVector sums the Fourier series of the Stokes parameters at
// relative azimuth phi [rad]. Q and U are zero for fields that are not
// polarized.
func (f *RadianceField) StokesVector(level, dir int, phi float64) (i, q, u float64) {
	pol := f.Stokes() == 3
	for m := 0; m < f.Finalized; m++ {
		c, s := 1., 0.
		if m > 0 {
			s, c = math.Sincos(float64(m) * phi)
			c, s = 2*c, 2*s
		}
		i += c * f.Get(m, level, dir, 0)
		if pol {
			q += c * f.Get(m, level, dir, 1)
			u += s * f.Get(m, level, dir, 2)
		}
	}
	return i, q, u
}
