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

package limits

import (
	"testing"

	"github.com/spatialmodel/sos/rterr"
)

func TestDefaultValid(t *testing.T) {
	for name, l := range map[string]Limits{"default": Default(), "extended": Extended()} {
		if err := l.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		param  string
		modify func(*Limits)
	}{
		{"MaxScatteringOrders", func(l *Limits) { l.MaxScatteringOrders = 0 }},
		{"SumThreshold", func(l *Limits) { l.SumThreshold = -1 }},
		{"MaxRadianceAngles", func(l *Limits) { l.MaxRadianceAngles = l.DefaultRadianceGauss }},
		{"MaxAngles", func(l *Limits) { l.MaxAngles = l.MaxRadianceAngles - 1 }},
		{"DefaultSurfaceOrder", func(l *Limits) { l.DefaultSurfaceOrder = l.MaxSurfaceOrder + 1 }},
		{"MinLayers", func(l *Limits) { l.MinLayers = l.MaxLayers + 1 }},
		{"AzimuthSamples", func(l *Limits) { l.AzimuthSamples = 1000 }},
		{"AzimuthSamples", func(l *Limits) { l.AzimuthSamples = 256 }},
		{"FirstLayerTauMax", func(l *Limits) { l.FirstLayerTauMax = l.LayerTauFloor / 2 }},
	}
	for _, test := range tests {
		l := Default()
		test.modify(&l)
		err := l.Validate()
		ce, ok := err.(*rterr.ConfigurationError)
		if !ok {
			t.Errorf("%s: expected a configuration error, got %v", test.param, err)
			continue
		}
		if ce.Param != test.param {
			t.Errorf("%s: error names %s", test.param, ce.Param)
		}
	}
}

func TestCheckGauss(t *testing.T) {
	l := Default()
	if n, err := l.CheckGauss(0, false); err != nil || n != l.DefaultRadianceGauss {
		t.Errorf("default radiance: %d, %v", n, err)
	}
	if n, err := l.CheckGauss(0, true); err != nil || n != l.DefaultMieGauss {
		t.Errorf("default mie: %d, %v", n, err)
	}
	if _, err := l.CheckGauss(-2, false); err == nil {
		t.Error("expected an error for a negative count")
	}
	if _, err := l.CheckGauss(l.MaxRadianceAngles+1, false); err == nil {
		t.Error("expected an error above the radiance ceiling")
	}
	if _, err := Extended().CheckGauss(l.MaxRadianceAngles+1, false); err != nil {
		t.Errorf("extended limits: %v", err)
	}
}
