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

package atmosphere

import (
	"fmt"
	"math"
	"sort"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
)

// column gives the scattering optical depth from the top of the
// atmosphere down to altitude z [km].
type column struct {
	rayleigh func(z float64) float64
	aerosol  func(z float64) float64
}

func (c column) total(z float64) float64 { return c.rayleigh(z) + c.aerosol(z) }

func newColumn(lim limits.Limits, c Config) column {
	col := column{
		rayleigh: func(z float64) float64 {
			if c.RayleighDepth == 0 {
				return 0
			}
			return c.RayleighDepth * math.Exp(-z/c.RayleighScaleHeight)
		},
		aerosol: func(float64) float64 { return 0 },
	}
	if c.AerosolDepth == 0 {
		return col
	}
	switch c.Vertical {
	case Exponential:
		col.aerosol = func(z float64) float64 { return c.AerosolDepth * math.Exp(-z/c.ScaleHeight) }
	case Confined:
		t := newTrapezoid(c.ZMin, c.ZMax, lim.TransitionThickness)
		scale := c.AerosolDepth / t.above(0)
		col.aerosol = func(z float64) float64 { return scale * t.above(z) }
	}
	return col
}

// trapezoid is a piecewise linear density profile with knots at
// increasing altitudes.
type trapezoid struct {
	z, s []float64
}

// newTrapezoid returns a unit density between zmin and zmax, with linear
// transitions of thickness dz above and below, cut at the ground.
func newTrapezoid(zmin, zmax, dz float64) trapezoid {
	var t trapezoid
	if lo := zmin - dz; zmin > 0 {
		if lo >= 0 {
			t.z, t.s = append(t.z, lo), append(t.s, 0)
		} else {
			t.z, t.s = append(t.z, 0), append(t.s, -lo/dz)
		}
	}
	t.z = append(t.z, zmin, zmax, zmax+dz)
	t.s = append(t.s, 1, 1, 0)
	return t
}

// above integrates the density from z upward.
func (t trapezoid) above(z float64) float64 {
	var sum float64
	for i := len(t.z) - 1; i > 0; i-- {
		a, b := t.z[i-1], t.z[i]
		if z >= b {
			break
		}
		lo := math.Max(a, z)
		sl := t.s[i-1] + (t.s[i]-t.s[i-1])*(lo-a)/(b-a)
		sum += (b - lo) * (sl + t.s[i]) / 2
	}
	return sum
}

// userColumn interpolates user levels linearly in altitude.
func userColumn(lim limits.Limits, levels []Level) (column, []float64, error) {
	n := len(levels) - 1
	if n < lim.MinLayers || n > lim.MaxLayers {
		return column{}, nil, &rterr.ProfileThicknessError{
			Reason: fmt.Sprintf("user profile has %d layers; the number of layers must be in [%d, %d]",
				n, lim.MinLayers, lim.MaxLayers)}
	}
	z := make([]float64, len(levels))
	for i, l := range levels {
		z[i] = l.Altitude
	}
	depth := func(v func(Level) float64) func(float64) float64 {
		return func(alt float64) float64 {
			if alt >= levels[0].Altitude {
				return v(levels[0])
			}
			for i := 1; i < len(levels); i++ {
				a, b := levels[i-1], levels[i]
				if alt >= b.Altitude {
					f := (a.Altitude - alt) / (a.Altitude - b.Altitude)
					return v(a) + f*(v(b)-v(a))
				}
			}
			return v(levels[len(levels)-1])
		}
	}
	return column{
		rayleigh: depth(func(l Level) float64 { return l.Rayleigh }),
		aerosol:  depth(func(l Level) float64 { return l.Aerosol }),
	}, z, nil
}

// layering returns the decreasing boundary altitudes of the layers.
func layering(lim limits.Limits, col column, c Config, n int) ([]float64, error) {
	total := col.total(0)
	if total > 0 && total/float64(n) < lim.LayerTauFloor {
		n = int(total / lim.LayerTauFloor)
		if n < lim.MinLayers {
			return nil, &rterr.ProfileThicknessError{
				Reason: fmt.Sprintf("optical thickness %g is too small for %d layers of at least %g",
					total, lim.MinLayers, lim.LayerTauFloor)}
		}
	}
	reserve := 0
	if c.HasOutputAltitude {
		reserve = 1
	}
	for {
		z := uniform(lim, col, total, n)
		if c.Vertical == Confined && c.AerosolDepth > 0 {
			z = confine(lim, z, c.ZMin, c.ZMax)
		}
		extra := len(z) - 1 + reserve - lim.MaxLayers
		if extra <= 0 {
			return z, nil
		}
		n -= extra
		if n < lim.MinLayers {
			return nil, &rterr.ProfileThicknessError{
				Reason: fmt.Sprintf("aerosol layer boundaries leave fewer than %d layers", lim.MinLayers)}
		}
	}
}

// uniform places n layers at equal optical depth increments, except for a
// thinner first layer.
func uniform(lim limits.Limits, col column, total float64, n int) []float64 {
	z := make([]float64, n+1)
	if total == 0 {
		for k := range z {
			z[k] = TopAltitude * float64(n-k) / float64(n)
		}
		return z
	}
	depth := func(k int) float64 { return total * float64(k) / float64(n) }
	if first := lim.FirstLayerTauMax; total/float64(n) > first {
		depth = func(k int) float64 {
			if k == 0 {
				return 0
			}
			return first + (total-first)*float64(k-1)/float64(n-1)
		}
	}
	top := TopAltitude
	for col.total(top) > depth(1) && top < 1e4 {
		top *= 2
	}
	z[0] = top
	for k := 1; k < n; k++ {
		d := depth(k)
		lo, hi := 0., top
		for i := 0; i < 100; i++ {
			mid := (lo + hi) / 2
			if col.total(mid) > d {
				lo = mid
			} else {
				hi = mid
			}
		}
		z[k] = (lo + hi) / 2
	}
	return dedupe(z)
}

// confine adds boundaries at the edges of a confined aerosol layer and
// ensures it spans at least lim.MinConfinedLayers layers.
func confine(lim limits.Limits, z []float64, zmin, zmax float64) []float64 {
	dz := lim.TransitionThickness
	for _, b := range []float64{zmax + dz, zmax, zmin, zmin - dz} {
		z = insertBoundary(z, b)
	}
	inside := 1
	for _, b := range z {
		if b > zmin && b < zmax {
			inside++
		}
	}
	if inside < lim.MinConfinedLayers {
		for j := 1; j < lim.MinConfinedLayers; j++ {
			z = insertBoundary(z, zmin+(zmax-zmin)*float64(j)/float64(lim.MinConfinedLayers))
		}
	}
	return z
}

// dedupe sorts boundaries by decreasing altitude and removes coincident
// ones.
func dedupe(z []float64) []float64 {
	sort.Sort(sort.Reverse(sort.Float64Slice(z)))
	out := z[:1]
	for _, b := range z[1:] {
		if out[len(out)-1]-b > 1e-9 {
			out = append(out, b)
		}
	}
	return out
}
