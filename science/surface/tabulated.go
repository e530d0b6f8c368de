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
	"io"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/sos/rterr"
)

// Tabulated is a reflectance given on a grid of incident and reflected
// zenith angles and relative azimuths [degrees]. Azimuths cover 0 to 180
// and the reflectance is symmetric about the principal plane.
type Tabulated struct {
	Label     string    `toml:"name"`
	Incident  []float64 `toml:"incident"`
	Reflected []float64 `toml:"reflected"`
	Azimuth   []float64 `toml:"azimuth"`
	// Rho is indexed by [incident][reflected][azimuth], flattened.
	Rho []float64 `toml:"rho"`

	Cutoff float64 `toml:"threshold"`
}

// ReadTabulated decodes a TOML reflectance table.
func ReadTabulated(r io.Reader) (*Tabulated, error) {
	t := new(Tabulated)
	if _, err := toml.DecodeReader(r, t); err != nil {
		return nil, fmt.Errorf("surface: reading table: %v", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tabulated) validate() error {
	for name, axis := range map[string][]float64{"incident": t.Incident, "reflected": t.Reflected, "azimuth": t.Azimuth} {
		if len(axis) < 2 || axis[0] != 0 {
			return &rterr.InputValidationError{Field: "surface table", Reason: name + " angles must start at 0 with at least 2 values"}
		}
		for i := 1; i < len(axis); i++ {
			if axis[i] <= axis[i-1] {
				return &rterr.InputValidationError{Field: "surface table", Reason: name + " angles are not increasing"}
			}
		}
	}
	if t.Incident[len(t.Incident)-1] > 90 || t.Reflected[len(t.Reflected)-1] > 90 {
		return &rterr.InputValidationError{Field: "surface table", Reason: "zenith angles must not exceed 90 degrees"}
	}
	if t.Azimuth[len(t.Azimuth)-1] != 180 {
		return &rterr.InputValidationError{Field: "surface table", Reason: "azimuths must end at 180 degrees"}
	}
	if n := len(t.Incident) * len(t.Reflected) * len(t.Azimuth); len(t.Rho) != n {
		return &rterr.InputValidationError{Field: "surface table",
			Reason: fmt.Sprintf("%d reflectances for %d grid points", len(t.Rho), n)}
	}
	if t.Cutoff == 0 {
		t.Cutoff = 1e-3
	}
	return nil
}

func (t *Tabulated) Name() string {
	if t.Label == "" {
		return "tabulated"
	}
	return t.Label
}

// Limits returns the largest tabulated angles.
func (t *Tabulated) Limits() (float64, float64) {
	return t.Incident[len(t.Incident)-1], t.Reflected[len(t.Reflected)-1]
}

func (t *Tabulated) Threshold() float64 { return t.Cutoff }

// locate returns the lower index and weight of v on axis, clamped to the
// axis range.
func locate(axis []float64, v float64) (int, float64) {
	if v <= axis[0] {
		return 0, 0
	}
	n := len(axis)
	if v >= axis[n-1] {
		return n - 2, 1
	}
	i := 0
	for v > axis[i+1] {
		i++
	}
	return i, (v - axis[i]) / (axis[i+1] - axis[i])
}

// Reflectance interpolates the table linearly in angle.
func (t *Tabulated) Reflectance(mui, mur, phi float64) float64 {
	deg := 180 / math.Pi
	ii, fi := locate(t.Incident, math.Acos(mui)*deg)
	ir, fr := locate(t.Reflected, math.Acos(mur)*deg)
	ia, fa := locate(t.Azimuth, math.Abs(math.Remainder(phi, 2*math.Pi))*deg)
	nr, na := len(t.Reflected), len(t.Azimuth)
	var v float64
	for di, wi := range []float64{1 - fi, fi} {
		for dr, wr := range []float64{1 - fr, fr} {
			for da, wa := range []float64{1 - fa, fa} {
				if w := wi * wr * wa; w != 0 {
					v += w * t.Rho[((ii+di)*nr+ir+dr)*na+ia+da]
				}
			}
		}
	}
	return v
}
