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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sos"
	"github.com/spatialmodel/sos/rterr"
	"github.com/spatialmodel/sos/science/absorption/ckd"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/surface"
)

// profile computes the aerosol phase functions on grid g and builds the
// layered atmosphere.
func (c *Config) profile(g *angles.Grid) (*atmosphere.Profile, *AerosolResult, error) {
	aer, err := c.Aerosol.Compute(c.Limits, g, c.Wavelength, c.Log)
	if err != nil {
		return nil, nil, err
	}
	pc := c.Profile
	pc.Modes = aer.Modes
	pc.AerosolDepth = aer.AOT
	p, err := atmosphere.Build(c.Limits, pc)
	if err != nil {
		return nil, nil, err
	}
	c.Log.WithFields(logrus.Fields{
		"layers":   len(p.Layers),
		"rayleigh": pc.RayleighDepth,
		"aerosol":  pc.AerosolDepth,
	}).Info("sos: atmosphere profile complete")
	return p, aer, nil
}

// decompose computes the Fourier components of the surface reflectance
// on grid g. A failure to converge is returned as a warning.
func (c *Config) decompose(g *angles.Grid) (*surface.Fourier, rterr.Warnings, error) {
	var w rterr.Warnings
	f, err := surface.Decompose(c.Limits, c.Surface, g, c.SurfaceOrder)
	if err != nil {
		if !rterr.IsWarning(err) {
			return nil, nil, err
		}
		w.Add(err)
	}
	c.Log.WithFields(logrus.Fields{
		"model": f.Model,
		"order": f.Order(),
	}).Info("sos: surface reflectance decomposition complete")
	return f, w, nil
}

// Run computes the radiance field described by c and writes the results
// in the formats selected by out. Progress is logged to stdout and to the
// log file.
func Run(stdout io.Writer, c *Config, out *Output) (*sos.Simulation, error) {
	startTime := time.Now()

	var existing []string
	for _, f := range out.files() {
		if _, err := os.Stat(f); err == nil {
			if out.NoOverwrite {
				return nil, fmt.Errorf("sos: output file %s already exists and nooverwrite is set", f)
			}
			existing = append(existing, f)
		}
	}

	logfile, err := os.Create(out.LogFile)
	if err != nil {
		return nil, fmt.Errorf("sos: problem creating log file: %v", err)
	}
	defer logfile.Close()
	logger := logrus.New()
	logger.Out = io.MultiWriter(stdout, logfile)
	log := logger.WithField("run", uuid.New().String())
	c.Log = log
	for _, f := range existing {
		log.Warnf("sos: overwriting %s", f)
	}

	g, err := angles.New(c.Limits, c.Angles)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"mie angles":      g.Mie.Len(),
		"radiance angles": g.Radiance.Len(),
		"solar zenith":    c.Angles.SolarZenith,
	}).Info("sos: angle grids complete")

	p, aer, err := c.profile(g.Mie)
	if err != nil {
		return nil, err
	}
	f, warnings, err := c.decompose(g.Radiance)
	if err != nil {
		return nil, err
	}

	runFuncs := []sos.DomainManipulator{sos.SolveRadiance()}
	if c.Absorption != nil && c.Absorption.Mode != ckd.None {
		terms, err := c.Absorption.Terms(c.Limits, p)
		if err != nil {
			return nil, err
		}
		log.WithField("terms", len(terms)).Info("sos: gas absorption terms complete")
		runFuncs = []sos.DomainManipulator{sos.CorrelatedK(p, terms)}
	}
	runFuncs = append(runFuncs, sos.Log(log))

	s := &sos.Simulation{
		InitFuncs: []sos.DomainManipulator{
			sos.SetInputs(&sos.Inputs{
				Limits:          c.Limits,
				Grid:            g.Radiance,
				Profile:         p,
				Surface:         f,
				MaxFourierOrder: c.MaxFourierOrder,
				Polarized:       c.Polarized,
				Log:             log,
			}),
		},
		RunFuncs:     runFuncs,
		CleanupFuncs: out.writers(c, aer),
		Warnings:     warnings,
	}
	if err = s.Init(); err != nil {
		return nil, err
	}
	if err = s.Run(); err != nil {
		return nil, err
	}
	if err = s.Cleanup(); err != nil {
		return nil, err
	}
	for _, w := range s.Warnings {
		log.Warn(w)
	}
	log.WithField("walltime", time.Since(startTime).Seconds()).Info("sos: simulation complete")
	return s, nil
}
