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

package rterr

import (
	"fmt"
	"testing"
)

func TestWarnings(t *testing.T) {
	var w Warnings
	w.Add(nil)
	if len(w) != 0 {
		t.Fatal("nil error added")
	}
	w.Add(fmt.Errorf("surface: %w", &FourierTruncationFailed{Model: "glitter", MaxOrder: 128, Ratio: 0.01}))
	var ft *FourierTruncationFailed
	if !w.Has(&ft) || ft.MaxOrder != 128 {
		t.Errorf("wrapped warning not found: %v", ft)
	}
	var cw *ConvergenceWarning
	if w.Has(&cw) {
		t.Error("unexpected convergence warning")
	}
	w.Add(&ConvergenceWarning{FourierOrder: FourierSeries, Orders: 40})
	if !w.Has(&cw) || cw.Orders != 40 {
		t.Error("convergence warning not found")
	}
}

func TestIsWarning(t *testing.T) {
	for _, test := range []struct {
		err  error
		want bool
	}{
		{&ConvergenceWarning{}, true},
		{fmt.Errorf("run: %w", &FourierTruncationFailed{}), true},
		{&ConfigurationError{Param: "MaxLayers"}, false},
		{&TableRangeError{Table: "ckd"}, false},
		{nil, false},
	} {
		if got := IsWarning(test.err); got != test.want {
			t.Errorf("%v: got %v", test.err, got)
		}
	}
}

func TestMessages(t *testing.T) {
	for _, test := range []struct {
		err  error
		want string
	}{
		{&ConfigurationError{Param: "MaxLayers", Reason: "must be positive"},
			"configuration error: MaxLayers: must be positive"},
		{&TableRangeError{Table: "CO2", Axis: "pressure", Value: 2, Min: 3, Max: 4},
			"CO2: pressure value 2 is outside of the tabulated range [3, 4]"},
		{&ConvergenceWarning{FourierOrder: 2, Orders: 100, Contribution: 0.001, Sum: 1},
			"Fourier order 2 did not converge after 100 scattering orders (last contribution 0.001 of 1)"},
		{&ConvergenceWarning{FourierOrder: FourierSeries, Orders: 40, Contribution: 0.002, Sum: 1},
			"Fourier series did not converge after 40 orders (last contribution 0.002 of 1)"},
		{&ProfileThicknessError{Reason: "too thin"}, "atmospheric profile: too thin"},
	} {
		if got := test.err.Error(); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}
