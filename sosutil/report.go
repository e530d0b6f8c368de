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
	"math"
	"text/tabwriter"

	"github.com/spatialmodel/sos/science/angles"
	"github.com/spatialmodel/sos/science/atmosphere"
	"github.com/spatialmodel/sos/science/mie"
	"github.com/spatialmodel/sos/science/surface"
)

func writeGrid(w io.Writer, g *angles.Grid) {
	fmt.Fprintf(w, "%s grid: %d Gauss angles, %d angles in total, solar angle index %d\n",
		g.Kind, g.Gauss, g.Len(), g.SolarIndex)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "index\tmu\tzenith\tweight\t")
	for i, mu := range g.Mu {
		fmt.Fprintf(tw, "%d\t%.8f\t%.4f\t%.8e\t\n", i, mu, g.Degrees(i), g.Weights[i])
	}
	tw.Flush()
}

func writePhase(w io.Writer, p *mie.PhaseMatrix) {
	fmt.Fprintf(w, "model %s at %g µm\n", p.Model, p.Wavelength)
	fmt.Fprintf(w, "Cext %.6e µm², Csca %.6e µm², SSA %.6f, asymmetry %.6f, truncation %.6f\n",
		p.Cext, p.Csca, p.SSA, p.Asymmetry, p.TruncationFactor)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "mu\tF11\tF12\tF33\tF34\t")
	for i, mu := range p.Mu {
		fmt.Fprintf(tw, "%.8f\t%.6e\t%.6e\t%.6e\t%.6e\t\n", mu, p.F11[i], p.F12[i], p.F33[i], p.F34[i])
	}
	tw.Flush()
	fmt.Fprintln(w, "Legendre moments")
	for l, b := range p.Moments {
		fmt.Fprintf(w, "%4d %.8e\n", l, b)
	}
}

func writeSurface(w io.Writer, f *surface.Fourier, g *angles.Grid) {
	fmt.Fprintf(w, "%s surface: %d Fourier orders\n", f.Model, f.Order()+1)
	s := g.SolarIndex
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "zenith\tphi=0\tphi=90\tphi=180\t")
	for i := range g.Mu {
		fmt.Fprintf(tw, "%.4f\t%.6e\t%.6e\t%.6e\t\n", g.Degrees(i),
			f.Reflectance(i, s, 0), f.Reflectance(i, s, math.Pi/2), f.Reflectance(i, s, math.Pi))
	}
	tw.Flush()
}

func writeProfile(w io.Writer, p *atmosphere.Profile) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "layer\ttop\tbottom\tdepth\trayleigh\taerosol\tabsorption\tssa\t")
	for i, l := range p.Layers {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.6e\t%.6e\t%.6e\t%.6e\t%.6f\t\n",
			i, l.Top, l.Bottom, p.Depth[i+1], l.Rayleigh, l.Aerosol, l.Absorption, l.SSA)
	}
	tw.Flush()
	if p.OutputLevel >= 0 {
		fmt.Fprintf(w, "output level %d at %.4f km\n", p.OutputLevel, p.Altitude[p.OutputLevel])
	}
}
