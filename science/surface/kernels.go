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
	"math"

	"github.com/spatialmodel/sos/limits"
)

// kernelGeometry holds the angles shared by the land surface kernels.
// phi is the relative azimuth in [0, π] in the kernel convention, zero in
// the backscattering direction.
type kernelGeometry struct {
	tani, tanr, phi, cosPhi, sinPhi, cosXi float64
	seci, secr                             float64
}

func newKernelGeometry(mui, mur, phi float64) kernelGeometry {
	si := math.Sqrt(math.Max(0, 1-mui*mui))
	sr := math.Sqrt(math.Max(0, 1-mur*mur))
	p := math.Abs(math.Remainder(math.Pi-phi, 2*math.Pi))
	cp := math.Cos(p)
	return kernelGeometry{
		tani:   si / mui,
		tanr:   sr / mur,
		phi:    p,
		cosPhi: cp,
		sinPhi: math.Sin(p),
		cosXi:  mui*mur + si*sr*cp,
		seci:   1 / mui,
		secr:   1 / mur,
	}
}

// volumetric returns the Ross-thick style term ((π/2 - ξ)cos ξ + sin ξ)/(μi + μr).
func (k kernelGeometry) volumetric() float64 {
	xi := math.Acos(math.Max(-1, math.Min(1, k.cosXi)))
	return ((math.Pi/2-xi)*k.cosXi + math.Sin(xi)) / (1/k.seci + 1/k.secr)
}

func (k kernelGeometry) delta() float64 {
	return math.Sqrt(math.Max(0, k.tani*k.tani+k.tanr*k.tanr-2*k.tani*k.tanr*k.cosPhi))
}

// Roujean is the three-parameter bidirectional reflectance model of
// Roujean et al. (1992).
type Roujean struct {
	K0, K1, K2 float64

	solar, view, threshold float64
}

// NewRoujean returns a Roujean model with the given coefficients.
func NewRoujean(lim limits.Limits, k0, k1, k2 float64) *Roujean {
	return &Roujean{K0: k0, K1: k1, K2: k2,
		solar: lim.RoujeanSolarLimit, view: lim.RoujeanViewLimit, threshold: lim.RoujeanThreshold}
}

func (r *Roujean) Name() string               { return "roujean" }
func (r *Roujean) Limits() (float64, float64) { return r.solar, r.view }
func (r *Roujean) Threshold() float64         { return r.threshold }

func (r *Roujean) Reflectance(mui, mur, phi float64) float64 {
	k := newKernelGeometry(mui, mur, phi)
	f1 := ((math.Pi-k.phi)*k.cosPhi+k.sinPhi)*k.tani*k.tanr/(2*math.Pi) - (k.tani+k.tanr+k.delta())/math.Pi
	f2 := 4/(3*math.Pi)*k.volumetric() - 1./3
	return r.K0 + r.K1*f1 + r.K2*f2
}

// RossLi is the kernel-driven RossThick-LiSparse reciprocal model.
type RossLi struct {
	Isotropic, Volumetric, Geometric float64

	solar, view, threshold float64
}

// NewRossLi returns a RossLi model with the given kernel weights.
func NewRossLi(lim limits.Limits, iso, vol, geo float64) *RossLi {
	return &RossLi{Isotropic: iso, Volumetric: vol, Geometric: geo,
		solar: lim.RoujeanSolarLimit, view: lim.RoujeanViewLimit, threshold: lim.NadalThreshold}
}

func (r *RossLi) Name() string               { return "rossli" }
func (r *RossLi) Limits() (float64, float64) { return r.solar, r.view }
func (r *RossLi) Threshold() float64         { return r.threshold }

func (r *RossLi) Reflectance(mui, mur, phi float64) float64 {
	k := newKernelGeometry(mui, mur, phi)
	vol := k.volumetric() - math.Pi/4
	// h/b = 2, b/r = 1.
	d := k.delta()
	x := k.tani * k.tanr * k.sinPhi
	cost := 2 * math.Sqrt(d*d+x*x) / (k.seci + k.secr)
	cost = math.Max(-1, math.Min(1, cost))
	t := math.Acos(cost)
	o := (t - math.Sin(t)*cost) * (k.seci + k.secr) / math.Pi
	geo := o - k.seci - k.secr + (1+k.cosXi)*k.seci*k.secr/2
	return r.Isotropic + r.Volumetric*vol + r.Geometric*geo
}
