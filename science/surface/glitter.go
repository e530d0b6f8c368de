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

package surface

import (
	"fmt"
	"math"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"gonum.org/v1/gonum/spatial/r3"
)

// Glitter is a wind-roughened sea surface reflecting sunlight specularly
// from facets with the isotropic slope distribution of Cox and Munk.
type Glitter struct {
	// Index is the refractive index of water.
	Index float64
	// Wind is the wind speed [m/s].
	Wind float64

	threshold float64
}

// NewGlitter returns a sea surface model.
func NewGlitter(lim limits.Limits, index, wind float64) (*Glitter, error) {
	if !(index > 1) {
		return nil, &rterr.InputValidationError{Field: "surface refractive index", Reason: fmt.Sprintf("%g must be greater than 1", index)}
	}
	if wind < 0 {
		return nil, &rterr.InputValidationError{Field: "wind speed", Reason: fmt.Sprintf("negative value %g", wind)}
	}
	return &Glitter{Index: index, Wind: wind, threshold: 1 / float64(lim.GlitterTest)}, nil
}

func (g *Glitter) Name() string               { return "glitter" }
func (g *Glitter) Limits() (float64, float64) { return 90, 90 }
func (g *Glitter) Threshold() float64         { return g.threshold }

// SlopeVariance returns the mean square facet slope.
func (g *Glitter) SlopeVariance() float64 { return 0.003 + 0.00512*g.Wind }

// Reflectance returns the glint reflectance
// ρ = π R(ω) P(β) / (4 μi μr cos⁴β), where ω is the angle of incidence on
// the reflecting facet and β its tilt.
func (g *Glitter) Reflectance(mui, mur, phi float64) float64 {
	si := math.Sqrt(math.Max(0, 1-mui*mui))
	sr := math.Sqrt(math.Max(0, 1-mur*mur))
	cos2w := mui*mur - si*sr*math.Cos(phi)
	cosw := math.Sqrt(math.Max(0, (1+cos2w)/2))
	if cosw == 0 {
		return 0
	}
	cosb := (mui + mur) / (2 * cosw)
	if cosb <= 0 {
		return 0
	}
	cosb2 := cosb * cosb
	tanb2 := (1 - cosb2) / cosb2
	s2 := g.SlopeVariance()
	p := math.Exp(-tanb2/s2) / (math.Pi * s2)
	return math.Pi * Fresnel(g.Index, cosw) * p / (4 * mui * mur * cosb2 * cosb2)
}

// Mueller returns the reflection matrix of the facets for the Stokes
// parameters (I, Q, U), each referred to the meridian plane of its
// direction. Its first element equals Reflectance.
func (g *Glitter) Mueller(mui, mur, phi float64) [3][3]float64 {
	var out [3][3]float64
	rho := g.Reflectance(mui, mur, phi)
	if rho == 0 {
		return out
	}
	ki, ti, fi := meridian(mui, 0)
	kr, tr, fr := meridian(-mur, phi)
	n := r3.Unit(r3.Sub(kr, ki))
	s := r3.Cross(ki, n)
	if r3.Norm(s) < 1e-9 {
		s = fi
	}
	s = r3.Unit(s)
	pi, pr := r3.Cross(s, ki), r3.Cross(s, kr)
	rs, rp := fresnelAmplitudes(g.Index, -r3.Dot(ki, n))
	jones := func(er, ei r3.Vec) float64 {
		return rs*r3.Dot(er, s)*r3.Dot(s, ei) + rp*r3.Dot(er, pr)*r3.Dot(pi, ei)
	}
	out = muellerJones(jones(tr, ti), jones(tr, fi), jones(fr, ti), jones(fr, fi))
	scale := rho / out[0][0]
	for a := range out {
		for b := range out[a] {
			out[a][b] *= scale
		}
	}
	return out
}

// meridian returns the propagation direction with cosine mu (positive
// downward) and azimuth phi, along with the unit vectors along increasing
// zenith angle and azimuth.
func meridian(mu, phi float64) (k, theta, azimuth r3.Vec) {
	st := math.Sqrt(math.Max(0, 1-mu*mu))
	sp, cp := math.Sincos(phi)
	k = r3.Vec{X: st * cp, Y: st * sp, Z: mu}
	theta = r3.Vec{X: mu * cp, Y: mu * sp, Z: -st}
	azimuth = r3.Vec{X: -sp, Y: cp}
	return k, theta, azimuth
}

// muellerJones converts a real Jones matrix to the (I, Q, U) block of its
// Mueller matrix.
func muellerJones(j00, j01, j10, j11 float64) [3][3]float64 {
	h := [3]float64{j00*j00 + j10*j10, j00*j00 - j10*j10, 2 * j00 * j10}
	v := [3]float64{j01*j01 + j11*j11, j01*j01 - j11*j11, 2 * j01 * j11}
	a, b := j00+j01, j10+j11
	d := [3]float64{(a*a + b*b) / 2, (a*a - b*b) / 2, a * b}
	var m [3][3]float64
	for r := range m {
		m[r][0] = (h[r] + v[r]) / 2
		m[r][1] = (h[r] - v[r]) / 2
		m[r][2] = d[r] - m[r][0]
	}
	return m
}

// Fresnel returns the reflectance of unpolarized light incident at an
// angle with cosine cosi on a surface with refractive index n.
func Fresnel(n, cosi float64) float64 {
	rs, rp := fresnelAmplitudes(n, cosi)
	return (rs*rs + rp*rp) / 2
}

// fresnelAmplitudes returns the amplitude reflection coefficients for
// light polarized perpendicular and parallel to the plane of incidence.
func fresnelAmplitudes(n, cosi float64) (rs, rp float64) {
	sint := math.Sqrt(math.Max(0, 1-cosi*cosi)) / n
	if sint >= 1 {
		return 1, 1
	}
	cost := math.Sqrt(1 - sint*sint)
	rs = (cosi - n*cost) / (cosi + n*cost)
	rp = (n*cosi - cost) / (n*cosi + cost)
	return rs, rp
}
