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

package sosutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func mieGrid(t *testing.T, lim limits.Limits) *angles.Grid {
	g, err := angles.New(lim, angles.Config{SolarZenith: 30})
	require.NoError(t, err)
	return g.Mie
}

func TestAerosolNone(t *testing.T) {
	a, err := AerosolConfig(newCfg(nil))
	require.NoError(t, err)
	r, err := a.Compute(limits.Default(), nil, 0.55, logrus.StandardLogger())
	require.NoError(t, err)
	require.Empty(t, r.Modes)
	require.Equal(t, 0., r.AOT)
}

func TestAerosolMonoModal(t *testing.T) {
	lim := limits.Default()
	g := mieGrid(t, lim)
	a, err := AerosolConfig(newCfg(map[string]interface{}{
		"AER.Model": MonoModal,
		"AER.AOT":   0.2,
	}))
	require.NoError(t, err)

	same, err := a.Compute(lim, g, 0.55, logrus.StandardLogger())
	require.NoError(t, err)
	require.Len(t, same.Modes, 1)
	require.InDelta(t, 0.2, same.AOT, 1e-12)
	require.InDelta(t, 1, same.Modes[0].Rate, 1e-12)
	require.InDelta(t, 1, same.Modes[0].Phase.SSA, 1e-6, "non-absorbing particles")

	// Small particles extinguish more at shorter wavelengths.
	a.RefWavelength = 0.865
	scaled, err := a.Compute(lim, g, 0.55, logrus.StandardLogger())
	require.NoError(t, err)
	require.True(t, scaled.AOT > 0.2, "aot %g", scaled.AOT)
	require.InDelta(t, 1, scaled.Modes[0].Rate, 1e-12)
}

func TestAerosolBiModal(t *testing.T) {
	lim := limits.Default()
	g := mieGrid(t, lim)
	a, err := AerosolConfig(newCfg(map[string]interface{}{
		"AER.Model":        BiModal,
		"AER.AOT":          0.3,
		"AER.BMD.AOTratio": 0.25,
	}))
	require.NoError(t, err)
	r, err := a.Compute(lim, g, 0.55, logrus.StandardLogger())
	require.NoError(t, err)
	require.Len(t, r.Modes, 2)
	rates := []float64{r.Modes[0].Rate, r.Modes[1].Rate}
	require.True(t, floats.EqualApprox(rates, []float64{0.25, 0.75}, 1e-12), "rates %v", rates)
	require.InDelta(t, 0.3, r.AOT, 1e-12)
}

func writeMixture(t *testing.T, rates ...float64) string {
	f := filepath.Join(t.TempDir(), "mixture.toml")
	var b []byte
	for i, r := range rates {
		b = append(b, fmt.Sprintf(`
[[mode]]
Radius = %g
LogSigma = 0.4
Index = [1.45, 0.0]
IndexRef = [1.45, 0.0]
Rate = %g
`, 0.1*float64(i+1), r)...)
	}
	require.NoError(t, os.WriteFile(f, b, 0644))
	return f
}

func TestAerosolMixture(t *testing.T) {
	lim := limits.Default()
	g := mieGrid(t, lim)
	a, err := AerosolConfig(newCfg(map[string]interface{}{
		"AER.Model":      Mixture,
		"AER.AOT":        0.2,
		"AER.DefMixture": writeMixture(t, 0.3, 0.7),
	}))
	require.NoError(t, err)
	r, err := a.Compute(lim, g, 0.55, logrus.StandardLogger())
	require.NoError(t, err)
	require.Len(t, r.Modes, 2)
	rates := []float64{r.Modes[0].Rate, r.Modes[1].Rate}
	require.True(t, floats.EqualApprox(rates, []float64{0.3, 0.7}, 1e-12), "rates %v", rates)
	require.InDelta(t, 0.2, r.AOT, 1e-12)
}

func TestAerosolMixtureRates(t *testing.T) {
	lim := limits.Default()
	g := mieGrid(t, lim)
	for _, test := range []struct {
		rates []float64
		fail  bool
	}{
		{rates: []float64{0.5, 0.5000005}, fail: true},
		{rates: []float64{1.0000005}, fail: true},
		{rates: []float64{0.4, 0.5}, fail: true},
		{rates: []float64{0.5, 0.4999995}},
	} {
		a, err := AerosolConfig(newCfg(map[string]interface{}{
			"AER.Model":      Mixture,
			"AER.AOT":        0.2,
			"AER.DefMixture": writeMixture(t, test.rates...),
		}))
		require.NoError(t, err)
		_, err = a.Compute(lim, g, 0.55, logrus.StandardLogger())
		var mix *rterr.MixtureRateError
		require.Equal(t, test.fail, errors.As(err, &mix), "rates %v: %v", test.rates, err)
		if !test.fail {
			require.NoError(t, err)
		}
	}
}

func TestAerosolMixtureFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "empty.toml")
	require.NoError(t, os.WriteFile(f, nil, 0644))
	_, err := AerosolConfig(newCfg(map[string]interface{}{"AER.Model": Mixture, "AER.DefMixture": f}))
	var c *rterr.ConfigurationError
	require.True(t, errors.As(err, &c), "%v", err)

	_, err = AerosolConfig(newCfg(map[string]interface{}{"AER.Model": Mixture,
		"AER.DefMixture": filepath.Join(t.TempDir(), "missing.toml")}))
	require.Error(t, err)
}
