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

package ckd

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/atmosphere"
)

// Absorbing gases.
const (
	H2O = "H2O"
	CO2 = "CO2"
	O3  = "O3"
	N2O = "N2O"
	CO  = "CO"
	CH4 = "CH4"
	O2  = "O2"
	NO2 = "NO2"
)

// Vertical distributions of the gases.
const (
	waterScaleHeight = 2.  // km
	ozonePeak        = 22. // km
	ozoneWidth       = 5.  // km
	dobson           = 2.687e16
	waterMolarMass   = 18.015 // g/mol
	oxygenFraction   = 0.2095
)

type gasProperty struct {
	// unit of the column amount, for messages.
	unit string
	// defaultAmount is used when no amount is given.
	defaultAmount float64
}

var gasProperties = map[string]gasProperty{
	H2O: {"g/cm²", 1.42},
	O3:  {"DU", 344},
	CO2: {"ppmv", 400},
	N2O: {"ppmv", 0.32},
	CO:  {"ppmv", 0.15},
	CH4: {"ppmv", 1.8},
	O2:  {"fraction", oxygenFraction},
	NO2: {"ppmv", 2.3e-5},
}

// Gases returns the names of the supported gases.
func Gases() []string { return []string{H2O, CO2, O3, N2O, CO, CH4, O2, NO2} }

// DefaultAmount returns the column amount used for gas when none is
// specified: precipitable water [g/cm²] for H2O, Dobson units for O3 and
// volume mixing ratio [ppmv] for well-mixed gases.
func DefaultAmount(gas string) (float64, error) {
	p, ok := gasProperties[gas]
	if !ok {
		return 0, &rterr.InputValidationError{Field: "gas", Reason: fmt.Sprintf("unknown gas %q", gas)}
	}
	return p.defaultAmount, nil
}

// airColumn returns the number of air molecules per cm² above the
// surface.
func airColumn() float64 {
	mass := unit.Div(unit.New(atmosphere.SurfacePressure, unit.Pascal), unit.New(atmosphere.Gravity, unit.MeterPerSecond2))
	if err := mass.Check(unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2}); err != nil {
		panic(err)
	}
	return mass.Value() / atmosphere.AirMolarMass * atmosphere.Avogadro / 1e4
}

// totalColumn returns the column amount of gas [molecules/cm²].
func totalColumn(gas string, amount float64) float64 {
	switch gas {
	case H2O:
		return amount * atmosphere.Avogadro / waterMolarMass
	case O3:
		return amount * dobson
	case O2:
		return amount * airColumn()
	default:
		return amount * 1e-6 * airColumn()
	}
}

// pressure returns the standard pressure [Pa] at z [km].
func pressure(z float64) float64 {
	_, p := atmosphere.Standard(z)
	if err := p.Check(unit.Pascal); err != nil {
		panic(err)
	}
	return p.Value()
}

// fractionAbove returns the fraction of the gas column above z [km].
func fractionAbove(gas string, z float64) float64 {
	if math.IsInf(z, 1) {
		return 0
	}
	switch gas {
	case H2O:
		return math.Exp(-z / waterScaleHeight)
	case O3:
		s := ozoneWidth * math.Sqrt2
		return math.Erfc((z-ozonePeak)/s) / math.Erfc(-ozonePeak/s)
	default:
		return pressure(z) / atmosphere.SurfacePressure
	}
}

// layerColumn returns the amount of gas between altitudes top and
// bottom [km] in molecules per cm².
func layerColumn(gas string, amount, top, bottom float64) float64 {
	return totalColumn(gas, amount) * (fractionAbove(gas, bottom) - fractionAbove(gas, top))
}
