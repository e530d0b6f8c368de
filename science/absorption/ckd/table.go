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

// Package ckd computes gaseous absorption optical thickness from
// correlated-k distribution tables, either as a single equivalent
// absorption or as a set of weighted k terms.
package ckd

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/sos/rterr"
)

// Table holds the k distribution of one gas over a set of spectral bins.
type Table struct {
	Gas string `toml:"gas"`
	// Temperature [K] and Pressure [Pa] are the interpolation axes, in
	// increasing order.
	Temperature []float64 `toml:"temperature"`
	Pressure    []float64 `toml:"pressure"`
	// Concentration is an optional volume mixing ratio axis.
	Concentration []float64 `toml:"concentration"`
	Bins          []Bin     `toml:"bin"`
}

// Bin is one spectral interval of a table.
type Bin struct {
	// Wavenumber is the center of the bin and Width its width [cm⁻¹].
	Wavenumber float64 `toml:"wavenumber"`
	Width      float64 `toml:"width"`
	// Weights of the k terms, summing to 1.
	Weights []float64 `toml:"weights"`
	// K holds the absorption coefficients [cm²/molecule] indexed by
	// [term][temperature][pressure][concentration], flattened.
	K []float64 `toml:"k"`
}

// ReadTable decodes a TOML k distribution table.
func ReadTable(r io.Reader) (*Table, error) {
	t := new(Table)
	if _, err := toml.DecodeReader(r, t); err != nil {
		return nil, fmt.Errorf("ckd: reading table: %v", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadTableFile reads a table from a file.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ckd: %v", err)
	}
	defer f.Close()
	return ReadTable(f)
}

func (t *Table) nc() int {
	if len(t.Concentration) == 0 {
		return 1
	}
	return len(t.Concentration)
}

func (t *Table) validate() error {
	if _, ok := gasProperties[t.Gas]; !ok {
		return &rterr.InputValidationError{Field: "ckd table", Reason: fmt.Sprintf("unknown gas %q", t.Gas)}
	}
	for name, axis := range map[string][]float64{
		"temperature": t.Temperature, "pressure": t.Pressure, "concentration": t.Concentration,
	} {
		if len(axis) == 0 && name != "concentration" {
			return &rterr.InputValidationError{Field: "ckd table " + t.Gas, Reason: "empty " + name + " axis"}
		}
		for i := 1; i < len(axis); i++ {
			if axis[i] <= axis[i-1] {
				return &rterr.InputValidationError{Field: "ckd table " + t.Gas,
					Reason: name + " axis is not increasing"}
			}
		}
	}
	if t.Pressure[0] <= 0 {
		return &rterr.InputValidationError{Field: "ckd table " + t.Gas, Reason: "pressures must be positive"}
	}
	if len(t.Bins) == 0 {
		return &rterr.InputValidationError{Field: "ckd table " + t.Gas, Reason: "no spectral bins"}
	}
	size := len(t.Temperature) * len(t.Pressure) * t.nc()
	for i, b := range t.Bins {
		if len(b.Weights) == 0 || len(b.K) != len(b.Weights)*size {
			return &rterr.InputValidationError{Field: fmt.Sprintf("ckd table %s bin %d", t.Gas, i),
				Reason: fmt.Sprintf("%d coefficients for %d terms and %d axis points", len(b.K), len(b.Weights), size)}
		}
		var sum float64
		for _, w := range b.Weights {
			if w < 0 {
				return &rterr.InputValidationError{Field: fmt.Sprintf("ckd table %s bin %d", t.Gas, i),
					Reason: "negative weight"}
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			return &rterr.InputValidationError{Field: fmt.Sprintf("ckd table %s bin %d", t.Gas, i),
				Reason: fmt.Sprintf("weights sum to %g", sum)}
		}
		if !(b.Width > 0) {
			return &rterr.InputValidationError{Field: fmt.Sprintf("ckd table %s bin %d", t.Gas, i),
				Reason: "bin width must be positive"}
		}
	}
	return nil
}

// Bin returns the spectral bin containing wavelength [µm].
func (t *Table) Bin(wavelength float64) (*Bin, error) {
	nu := 1e4 / wavelength
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range t.Bins {
		b := &t.Bins[i]
		if math.Abs(nu-b.Wavenumber) <= b.Width/2 {
			return b, nil
		}
		lo = math.Min(lo, b.Wavenumber-b.Width/2)
		hi = math.Max(hi, b.Wavenumber+b.Width/2)
	}
	return nil, &rterr.TableRangeError{Table: "ckd " + t.Gas, Axis: "wavenumber", Value: nu, Min: lo, Max: hi}
}

// axisWeight locates v on axis, returning the lower index and the
// interpolation weight of the upper point.
func (t *Table) axisWeight(name string, axis []float64, v float64, transform func(float64) float64) (int, float64, error) {
	if len(axis) == 1 {
		return 0, 0, nil
	}
	if v < axis[0] || v > axis[len(axis)-1] {
		return 0, 0, &rterr.TableRangeError{Table: "ckd " + t.Gas, Axis: name, Value: v,
			Min: axis[0], Max: axis[len(axis)-1]}
	}
	i := 0
	for i < len(axis)-2 && v > axis[i+1] {
		i++
	}
	a, b := transform(axis[i]), transform(axis[i+1])
	return i, (transform(v) - a) / (b - a), nil
}

func identity(v float64) float64 { return v }

// Coefficients interpolates the k coefficient of each term of bin b,
// linearly in temperature and concentration and logarithmically in
// pressure.
func (t *Table) Coefficients(b *Bin, temperature, pressure, concentration float64) ([]float64, error) {
	it, ft, err := t.axisWeight("temperature", t.Temperature, temperature, identity)
	if err != nil {
		return nil, err
	}
	ip, fp, err := t.axisWeight("pressure", t.Pressure, pressure, math.Log)
	if err != nil {
		return nil, err
	}
	ic, fc := 0, 0.
	if len(t.Concentration) > 0 {
		if ic, fc, err = t.axisWeight("concentration", t.Concentration, concentration, identity); err != nil {
			return nil, err
		}
	}
	nt, np, nc := len(t.Temperature), len(t.Pressure), t.nc()
	k := make([]float64, len(b.Weights))
	for term := range k {
		for dt := 0; dt < 2; dt++ {
			wt := 1 - ft
			if dt == 1 {
				if nt == 1 {
					continue
				}
				wt = ft
			}
			for dp := 0; dp < 2; dp++ {
				wp := 1 - fp
				if dp == 1 {
					if np == 1 {
						continue
					}
					wp = fp
				}
				for dc := 0; dc < 2; dc++ {
					wc := 1 - fc
					if dc == 1 {
						if nc == 1 {
							continue
						}
						wc = fc
					}
					idx := ((term*nt+it+dt)*np+ip+dp)*nc + ic + dc
					k[term] += wt * wp * wc * b.K[idx]
				}
			}
		}
	}
	return k, nil
}
