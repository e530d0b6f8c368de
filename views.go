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
)

const deg = math.Pi / 180

// View is the radiance in one direction.
type View struct {
	// Zenith is the view zenith angle [degrees]. In a plane, it is
	// negative on the side of azimuth Azimuth+180.
	Zenith float64
	// Azimuth is the relative azimuth [degrees], zero when the sun and the
	// observer are on opposite sides.
	Azimuth float64
	// Scattering is the scattering angle [degrees].
	Scattering float64
	// Radiance is the normalized radiance.
	Radiance float64
	// Q and U are the Stokes parameters of linear polarization, referred
	// to the meridian plane. They are zero for solutions that are not
	// polarized.
	Q, U float64
	// Polarized is the polarized radiance √(Q²+U²).
	Polarized float64
	// Rate is the degree of polarization [%].
	Rate float64
	// Angle is the polarization angle [degrees] relative to the meridian
	// plane, or NaN if the light is not polarized.
	Angle float64
}

// scattering returns the scattering angle [degrees] between the solar
// beam and light propagating with signed cosine mu at relative azimuth
// phi [rad].
func (s *Solution) scattering(mu, phi float64) float64 {
	mu0 := s.Grid.Solar()
	c := mu*mu0 + math.Sqrt(math.Max(0, 1-mu*mu))*math.Sqrt(math.Max(0, 1-mu0*mu0))*math.Cos(phi)
	return math.Acos(math.Max(-1, math.Min(1, c))) / deg
}

// view returns the radiance at grid angle i, upward or downward at the
// output level, and relative azimuth phi [degrees].
func (s *Solution) view(up bool, i int, phi float64) View {
	lu, ld := s.outputLevels()
	level, d, mu := ld, s.Grid.Down(i), s.Grid.Mu[i]
	if up {
		level, d, mu = lu, s.Grid.Up(i), -mu
	}
	v := View{
		Zenith:     s.Grid.Degrees(i),
		Azimuth:    phi,
		Scattering: s.scattering(mu, phi*deg),
		Angle:      math.NaN(),
	}
	v.Radiance, v.Q, v.U = s.Field.StokesVector(level, d, phi*deg)
	v.Polarized = math.Hypot(v.Q, v.U)
	if v.Radiance > 0 {
		v.Rate = 100 * v.Polarized / v.Radiance
	}
	if v.Polarized > 0 {
		v.Angle = math.Atan2(v.U, v.Q) / 2 / deg
	}
	return v
}

// Plane returns the radiance in the plane of relative azimuth phi
// [degrees]: first the directions at azimuth phi+180 from the most
// grazing to the vertical, with negative zenith angles, then the
// directions at azimuth phi from the vertical to the most grazing. Upward
// radiance is reported if up is true, otherwise downward.
func (s *Solution) Plane(up bool, phi float64) []View {
	n := s.Grid.Len()
	out := make([]View, 0, 2*n)
	for i := 0; i < n; i++ {
		v := s.view(up, i, phi+180)
		v.Zenith = -v.Zenith
		out = append(out, v)
	}
	for i := n - 1; i >= 0; i-- {
		out = append(out, s.view(up, i, phi))
	}
	return out
}

// Scan returns the radiance for every grid angle at relative azimuths
// from 0 to 360 degrees in steps of dphi, indexed by [azimuth][angle].
func (s *Solution) Scan(up bool, dphi float64) ([][]View, error) {
	if !(dphi > 0) || dphi > 360 {
		return nil, fmt.Errorf("sos: azimuth step %g is not in (0, 360]", dphi)
	}
	var out [][]View
	for phi := 0.; phi <= 360+1e-9; phi += dphi {
		row := make([]View, s.Grid.Len())
		for i := range row {
			row[i] = s.view(up, s.Grid.Len()-1-i, phi)
		}
		out = append(out, row)
	}
	return out, nil
}

// User returns the radiance at the user angles of the grid for relative
// azimuth phi [degrees].
func (s *Solution) User(up bool, phi float64) []View {
	out := make([]View, len(s.Grid.UserIndex))
	for k, i := range s.Grid.UserIndex {
		out[k] = s.view(up, i, phi)
	}
	return out
}

// Flux holds the normalized irradiances on a horizontal surface at one
// level: the irradiance divided by the solar irradiance perpendicular to
// the beam, multiplied by π.
type Flux struct {
	Level    int
	Altitude float64
	Depth    float64
	Direct   float64
	// DiffuseDown and DiffuseUp are the hemispheric diffuse irradiances.
	DiffuseDown, DiffuseUp float64
}

// Fluxes returns the irradiances at every level.
func (s *Solution) Fluxes() []Flux {
	out := make([]Flux, s.Field.Levels())
	for v := range out {
		f := Flux{Level: v, Depth: s.Depth[v], Direct: s.Direct[v]}
		if v < len(s.Altitude) {
			f.Altitude = s.Altitude[v]
		}
		for i, mu := range s.Grid.Mu {
			w := s.Grid.Weights[i]
			if w == 0 {
				continue
			}
			f.DiffuseDown += 2 * w * mu * s.Field.Component(0, v, s.Grid.Down(i))
			f.DiffuseUp += 2 * w * mu * s.Field.Component(0, v, s.Grid.Up(i))
		}
		out[v] = f
	}
	return out
}

// Transmission holds the atmospheric transmission for the solar
// direction.
type Transmission struct {
	// Direct, Diffuse and Total are the fractions of the incident solar
	// irradiance reaching the surface.
	Direct, Diffuse, Total float64
	// Reflectance is the fraction reflected at the top of the atmosphere.
	Reflectance float64
}

// Transmission returns the transmission of the atmosphere along the solar
// direction and the reflectance of the atmosphere and surface.
func (s *Solution) Transmission() Transmission {
	f := s.Fluxes()
	mu0 := s.Grid.Solar()
	bottom, top := f[len(f)-1], f[0]
	t := Transmission{
		Direct:      bottom.Direct / mu0,
		Diffuse:     bottom.DiffuseDown / mu0,
		Reflectance: top.DiffuseUp / mu0,
	}
	t.Total = t.Direct + t.Diffuse
	return t
}
