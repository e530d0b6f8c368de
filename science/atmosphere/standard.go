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

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sos/rterr"
)

// Physical constants.
const (
	// Avogadro's number [molecules/mol].
	Avogadro = 6.02214076e23
	// Gravity is standard gravitational acceleration [m/s²].
	Gravity = 9.80665
	// AirMolarMass [kg/mol].
	AirMolarMass = 0.0289644
	// SurfacePressure [Pa].
	SurfacePressure = 101325.
)

// earthRadius [km] for the geopotential altitude conversion.
const earthRadius = 6356.766

// gmr is g₀M/R* [K/km].
const gmr = 34.1632

// usLayers are the base geopotential altitudes [km] and lapse rates [K/km]
// of the US Standard Atmosphere, 1976.
var usLayers = []struct{ h, lapse float64 }{
	{0, -6.5}, {11, 0}, {20, 1}, {32, 2.8}, {47, 0}, {51, -2.8}, {71, -2}, {84.852, 0},
}

// Standard returns the temperature and pressure of the US Standard
// Atmosphere, 1976 at geometric altitude z [km]. Above 86 km the
// atmosphere is extended isothermally.
func Standard(z float64) (temperature, pressure *unit.Unit) {
	h := earthRadius * z / (earthRadius + z)
	t, p := 288.15, SurfacePressure
	for i, l := range usLayers {
		top := math.Inf(1)
		if i+1 < len(usLayers) {
			top = usLayers[i+1].h
		}
		dh := math.Min(h, top) - l.h
		if l.lapse == 0 {
			p *= math.Exp(-gmr * dh / t)
		} else {
			tt := t + l.lapse*dh
			p *= math.Pow(t/tt, gmr/l.lapse)
			t = tt
		}
		if h <= top {
			break
		}
	}
	return unit.New(t, unit.Kelvin), unit.New(p, unit.Pascal)
}

// RayleighDepth returns the molecular optical thickness of the whole
// atmosphere at wavelength [µm] for surface pressure p, following
// Hansen and Travis (1974).
func RayleighDepth(wavelength float64, p *unit.Unit) (float64, error) {
	if err := p.Check(unit.Pascal); err != nil {
		return 0, err
	}
	if !(wavelength > 0) {
		return 0, &rterr.InputValidationError{Field: "wavelength",
			Reason: fmt.Sprintf("must be positive, got %g", wavelength)}
	}
	l2 := 1 / (wavelength * wavelength)
	l4 := l2 * l2
	return 0.008569 * l4 * (1 + 0.0113*l2 + 0.00013*l4) * p.Value() / SurfacePressure, nil
}
