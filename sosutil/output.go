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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/sos"
	"github.com/tealeg/xlsx"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Output file names.
const (
	UpFile           = "SOS_Up.txt"
	DownFile         = "SOS_Down.txt"
	FluxFile         = "FicFlux.txt"
	TransmissionFile = "SOS_Transm.txt"
	GobFile          = "SOS_Result.bin"
	NetCDFFile       = "SOS_Result.nc"
	XLSXFile         = "SOS_Result.xlsx"
	UpPlotFile       = "SOS_Up.png"
	DownPlotFile     = "SOS_Down.png"
)

func (o *Output) has(format string) bool {
	for _, f := range o.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// files returns the paths of the files written by a run.
func (o *Output) files() []string {
	var names []string
	if o.has("text") {
		names = append(names, UpFile, DownFile, FluxFile, TransmissionFile)
	}
	if o.has("gob") {
		names = append(names, GobFile)
	}
	if o.has("netcdf") {
		names = append(names, NetCDFFile)
	}
	if o.has("xlsx") {
		names = append(names, XLSXFile)
	}
	if o.has("png") {
		names = append(names, UpPlotFile, DownPlotFile)
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(o.Dir, n)
	}
	return paths
}

// writers returns the functions writing the results of a simulation.
func (o *Output) writers(c *Config, aer *AerosolResult) []sos.DomainManipulator {
	path := func(name string) string { return filepath.Join(o.Dir, name) }
	var w []sos.DomainManipulator
	if o.has("text") {
		w = append(w,
			textWriter(path(UpFile), func(w io.Writer, s *sos.Solution) error { return writeViews(w, s, c.View, true) }),
			textWriter(path(DownFile), func(w io.Writer, s *sos.Solution) error { return writeViews(w, s, c.View, false) }),
			textWriter(path(FluxFile), writeFluxes),
			textWriter(path(TransmissionFile), func(w io.Writer, s *sos.Solution) error {
				return writeTransmission(w, s, aer)
			}),
		)
	}
	if o.has("gob") {
		w = append(w, func(s *sos.Simulation) error {
			f, err := os.Create(path(GobFile))
			if err != nil {
				return fmt.Errorf("sos: creating result file: %v", err)
			}
			if err := sos.Save(f)(s); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	}
	if o.has("netcdf") {
		w = append(w, solutionWriter(func(s *sos.Solution) error { return writeNetCDF(path(NetCDFFile), s) }))
	}
	if o.has("xlsx") {
		w = append(w, solutionWriter(func(s *sos.Solution) error { return writeXLSX(path(XLSXFile), s, c.View) }))
	}
	if o.has("png") {
		w = append(w,
			solutionWriter(func(s *sos.Solution) error { return plotPlane(path(UpPlotFile), s, c.View, true) }),
			solutionWriter(func(s *sos.Solution) error { return plotPlane(path(DownPlotFile), s, c.View, false) }),
		)
	}
	return w
}

func solutionWriter(f func(*sos.Solution) error) sos.DomainManipulator {
	return func(s *sos.Simulation) error {
		if s.Solution == nil {
			return fmt.Errorf("sos: no solution to write")
		}
		return f(s.Solution)
	}
}

func textWriter(path string, f func(io.Writer, *sos.Solution) error) sos.DomainManipulator {
	return solutionWriter(func(s *sos.Solution) error {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("sos: creating output file: %v", err)
		}
		b := bufio.NewWriter(file)
		if err := f(b, s); err != nil {
			file.Close()
			return fmt.Errorf("sos: writing %s: %v", path, err)
		}
		if err := b.Flush(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	})
}

func direction(up bool) string {
	if up {
		return "upward"
	}
	return "downward"
}

// writeViews writes the upward or downward radiance in the directions
// selected by v.
func writeViews(w io.Writer, s *sos.Solution, v View, up bool) error {
	fmt.Fprintf(w, "# %s radiance, solar zenith angle %.4f\n", direction(up), s.Grid.Degrees(s.Grid.SolarIndex))
	switch v.Kind {
	case ScanView:
		rows, err := s.Scan(up, v.Dphi)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "# azimuth zenith scattering "+stokesHeader)
		for _, row := range rows {
			for _, x := range row {
				fmt.Fprintf(w, "%8.2f %9.4f %9.4f %s\n", x.Azimuth, x.Zenith, x.Scattering, stokesColumns(x))
			}
		}
	default:
		fmt.Fprintf(w, "# plane at relative azimuth %g\n", v.Phi)
		fmt.Fprintln(w, "# zenith scattering "+stokesHeader)
		for _, x := range s.Plane(up, v.Phi) {
			fmt.Fprintf(w, "%9.4f %9.4f %s\n", x.Zenith, x.Scattering, stokesColumns(x))
		}
	}
	if user := s.User(up, v.Phi); len(user) > 0 {
		fmt.Fprintln(w, "# user angles")
		for _, x := range user {
			fmt.Fprintf(w, "%9.4f %9.4f %s\n", x.Zenith, x.Scattering, stokesColumns(x))
		}
	}
	return nil
}

// stokesHeader names the columns written by stokesColumns.
const stokesHeader = "I Q U pol_ang pol_rate ipol"

// undefinedAngle is written for the polarization angle of unpolarized
// light.
const undefinedAngle = -999.

func polarizationAngle(x sos.View) float64 {
	if math.IsNaN(x.Angle) {
		return undefinedAngle
	}
	return x.Angle
}

// stokesColumns formats the Stokes parameters of x, its polarization
// angle [degrees], degree of polarization [%] and polarized radiance.
func stokesColumns(x sos.View) string {
	return fmt.Sprintf("%14.6e %14.6e %14.6e %9.3f %9.4f %14.6e",
		x.Radiance, x.Q, x.U, polarizationAngle(x), x.Rate, x.Polarized)
}

func writeFluxes(w io.Writer, s *sos.Solution) error {
	fmt.Fprintln(w, "# level altitude depth direct diffuse_down diffuse_up")
	for _, f := range s.Fluxes() {
		fmt.Fprintf(w, "%4d %9.4f %12.6f %14.6e %14.6e %14.6e\n",
			f.Level, f.Altitude, f.Depth, f.Direct, f.DiffuseDown, f.DiffuseUp)
	}
	return nil
}

func writeTransmission(w io.Writer, s *sos.Solution, aer *AerosolResult) error {
	t := s.Transmission()
	fmt.Fprintf(w, "direct transmission  %.6e\n", t.Direct)
	fmt.Fprintf(w, "diffuse transmission %.6e\n", t.Diffuse)
	fmt.Fprintf(w, "total transmission   %.6e\n", t.Total)
	fmt.Fprintf(w, "reflectance          %.6e\n", t.Reflectance)
	if aer != nil {
		fmt.Fprintf(w, "aerosol optical thickness %.6e\n", aer.AOT)
		for i, m := range aer.Modes {
			fmt.Fprintf(w, "mode %d %s rate %.6e truncation %.6e\n", i, m.Phase.Model, m.Rate, m.Phase.TruncationFactor)
		}
	}
	return nil
}

// writeNetCDF writes the Fourier components of the radiance, the level
// description and the fluxes to a netCDF file.
func writeNetCDF(path string, s *sos.Solution) error {
	shape := s.Field.Shape
	h := cdf.NewHeader([]string{"fourier", "level", "direction", "stokes"},
		[]int{shape[0], shape[1], shape[2], shape[3]})
	h.AddAttribute("", "comment", "normalized radiances; solar irradiance perpendicular to the beam is pi")
	h.AddAttribute("", "solar_zenith", []float64{s.Grid.Degrees(s.Grid.SolarIndex)})

	vars := map[string][]float64{
		"mu":       s.Field.Directions,
		"depth":    s.Depth,
		"direct":   s.Direct,
		"radiance": s.Field.Elements,
	}
	h.AddVariable("mu", []string{"direction"}, []float64{0})
	h.AddAttribute("mu", "description", "direction cosine, positive downward")
	h.AddVariable("depth", []string{"level"}, []float64{0})
	h.AddAttribute("depth", "description", "optical depth from the top of the atmosphere")
	h.AddVariable("direct", []string{"level"}, []float64{0})
	h.AddAttribute("direct", "description", "normalized direct irradiance on a horizontal surface")
	if len(s.Altitude) == shape[1] {
		vars["altitude"] = s.Altitude
		h.AddVariable("altitude", []string{"level"}, []float64{0})
		h.AddAttribute("altitude", "units", "km")
	}
	h.AddVariable("radiance", []string{"fourier", "level", "direction", "stokes"}, []float64{0})
	h.AddAttribute("radiance", "description", "azimuthal Fourier components of the diffuse radiance: "+
		"I and Q are cosine components, U sine components")
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("sos: creating netcdf file: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sos: creating netcdf file: %v", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return fmt.Errorf("sos: creating netcdf file: %v", err)
	}
	for _, v := range []string{"mu", "depth", "direct", "altitude", "radiance"} {
		data, ok := vars[v]
		if !ok {
			continue
		}
		var end []int
		if v == "radiance" {
			end = []int{shape[0], shape[1], shape[2], shape[3]}
		} else {
			end = []int{len(data)}
		}
		w := f.Writer(v, make([]int, len(end)), end)
		if _, err := w.Write(data); err != nil {
			ff.Close()
			return fmt.Errorf("sos: writing variable %s to netcdf file: %v", v, err)
		}
	}
	return ff.Close()
}

// writeXLSX writes the upward and downward radiances and the fluxes to
// a spreadsheet.
func writeXLSX(path string, s *sos.Solution, v View) error {
	file := xlsx.NewFile()
	for _, up := range []bool{true, false} {
		sheet, err := file.AddSheet(direction(up))
		if err != nil {
			return err
		}
		header(sheet, "azimuth", "zenith", "scattering", "I", "Q", "U", "pol_ang", "pol_rate", "ipol")
		var views []sos.View
		if v.Kind == ScanView {
			rows, err := s.Scan(up, v.Dphi)
			if err != nil {
				return err
			}
			for _, r := range rows {
				views = append(views, r...)
			}
		} else {
			views = s.Plane(up, v.Phi)
		}
		for _, x := range views {
			floatRow(sheet, x.Azimuth, x.Zenith, x.Scattering, x.Radiance, x.Q, x.U,
				polarizationAngle(x), x.Rate, x.Polarized)
		}
	}
	sheet, err := file.AddSheet("fluxes")
	if err != nil {
		return err
	}
	header(sheet, "level", "altitude", "depth", "direct", "diffuse down", "diffuse up")
	for _, f := range s.Fluxes() {
		floatRow(sheet, float64(f.Level), f.Altitude, f.Depth, f.Direct, f.DiffuseDown, f.DiffuseUp)
	}
	if err := file.Save(path); err != nil {
		return fmt.Errorf("sos: writing spreadsheet: %v", err)
	}
	return nil
}

func header(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}

func floatRow(sheet *xlsx.Sheet, vals ...float64) {
	row := sheet.AddRow()
	for _, v := range vals {
		row.AddCell().SetFloat(v)
	}
}

// plotPlane plots the radiance in the plane of the view against the
// signed zenith angle.
func plotPlane(path string, s *sos.Solution, v View, up bool) error {
	views := s.Plane(up, v.Phi)
	pts := make(plotter.XYs, len(views))
	for i, x := range views {
		pts[i].X = x.Zenith
		pts[i].Y = x.Radiance
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s radiance, azimuth %g", direction(up), v.Phi)
	p.X.Label.Text = "zenith angle (degrees)"
	p.Y.Label.Text = "normalized radiance"
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("sos: saving plot: %v", err)
	}
	return nil
}
