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

// Package angles builds the polar angle grids shared by the phase function,
// surface and radiance computations of a run.
package angles

import (
	"fmt"
	"math"
	"sort"

	"github.com/spatialmodel/sos/limits"
	"github.com/spatialmodel/sos/rterr"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/integrate/quad"
)

// Grid is an ordered set of positive polar cosines: Gauss quadrature nodes,
// user angles and the solar zenith angle. Angles that are not Gauss nodes
// carry a zero weight. A Grid must not be modified once built.
type Grid struct {
	// Mu holds the cosines, strictly increasing.
	Mu []float64
	// Weights are the Gauss weights of a full-range [-1, 1] quadrature
	// restricted to the positive nodes; they sum to 1.
	Weights []float64
	// Gauss is the number of Gauss nodes.
	Gauss int
	// SolarIndex is the index of the solar zenith cosine in Mu.
	SolarIndex int
	// UserIndex holds the indices of the user angles in Mu, in the order
	// they were requested.
	UserIndex []int
	// Kind is "mie" or "radiance".
	Kind string
}

// Len returns the number of positive cosines in the grid.
func (g *Grid) Len() int { return len(g.Mu) }

// Solar returns the cosine of the solar zenith angle.
func (g *Grid) Solar() float64 { return g.Mu[g.SolarIndex] }

// Directions returns the signed direction cosines of the grid, strictly
// increasing: upward directions (negative cosines) from the vertical to
// the most grazing first, then downward directions.
func (g *Grid) Directions() []float64 {
	n := len(g.Mu)
	d := make([]float64, 2*n)
	for i, mu := range g.Mu {
		d[n-1-i] = -mu
		d[n+i] = mu
	}
	return d
}

// DirectionWeights returns the quadrature weights matching Directions.
// They sum to 2.
func (g *Grid) DirectionWeights() []float64 {
	n := len(g.Mu)
	w := make([]float64, 2*n)
	for i, wi := range g.Weights {
		w[n-1-i] = wi
		w[n+i] = wi
	}
	return w
}

// Up returns the index in Directions of the upward direction with
// cosine -Mu[i], and Down the index of the downward direction +Mu[i].
func (g *Grid) Up(i int) int   { return len(g.Mu) - 1 - i }
func (g *Grid) Down(i int) int { return len(g.Mu) + i }

// Index returns the index of mu in the grid, or -1 if no grid cosine is
// within tol of mu.
func (g *Grid) Index(mu, tol float64) int {
	i, _ := slices.BinarySearch(g.Mu, mu)
	best, bestDist := -1, tol
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(g.Mu) {
			continue
		}
		if d := math.Abs(g.Mu[j] - mu); d <= bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// Degrees returns the zenith angle of grid cosine i in degrees.
func (g *Grid) Degrees(i int) float64 {
	return math.Acos(g.Mu[i]) * 180 / math.Pi
}

// Request describes one of the grids to build.
type Request struct {
	// Gauss is the number of positive Gauss angles. Zero selects the default.
	Gauss int
	// UserAngles are zenith angles [degrees] to add to the Gauss angles.
	UserAngles []float64
}

// Config holds the angle configuration of a run.
type Config struct {
	Mie, Radiance Request
	// SolarZenith is the solar zenith angle [degrees].
	SolarZenith float64
}

// Grids holds the two grids of a run.
type Grids struct {
	Mie, Radiance *Grid
}

// New builds both the phase function and the radiance grids.
func New(lim limits.Limits, c Config) (*Grids, error) {
	mie, err := NewGrid(lim, c.Mie, c.SolarZenith, true)
	if err != nil {
		return nil, err
	}
	rad, err := NewGrid(lim, c.Radiance, c.SolarZenith, false)
	if err != nil {
		return nil, err
	}
	return &Grids{Mie: mie, Radiance: rad}, nil
}

// NewGrid builds a single grid. The user angles and then the solar angle
// are snapped to an existing cosine when one lies within
// lim.AngleTolerance, and inserted otherwise.
func NewGrid(lim limits.Limits, r Request, solarZenith float64, mie bool) (*Grid, error) {
	kind, maxAngles := "radiance", lim.MaxRadianceAngles
	if mie {
		kind, maxAngles = "mie", lim.MaxMieAngles
	}
	if maxAngles > lim.MaxAngles {
		maxAngles = lim.MaxAngles
	}
	n, err := lim.CheckGauss(r.Gauss, mie)
	if err != nil {
		return nil, err
	}
	if len(r.UserAngles) > lim.MaxUserAngles {
		return nil, &rterr.ConfigurationError{Param: kind + " user angles",
			Reason: fmt.Sprintf("%d angles requested; the maximum is %d", len(r.UserAngles), lim.MaxUserAngles)}
	}

	mu, w := GaussLegendre(n)
	g := &Grid{Mu: mu, Weights: w, Gauss: n, Kind: kind}

	for _, deg := range r.UserAngles {
		i, err := g.insert(deg, lim.AngleTolerance, "user angle")
		if err != nil {
			return nil, err
		}
		g.UserIndex = append(g.UserIndex, i)
	}
	g.SolarIndex, err = g.insert(solarZenith, lim.AngleTolerance, "solar zenith angle")
	if err != nil {
		return nil, err
	}
	if len(g.Mu) > maxAngles {
		return nil, &rterr.ConfigurationError{Param: kind + " angles",
			Reason: fmt.Sprintf("%d angles in the grid; the maximum is %d", len(g.Mu), maxAngles)}
	}
	return g, nil
}

// GaussLegendre returns the n positive nodes of the 2n-point Gauss-Legendre
// quadrature on [-1, 1] in increasing order, with their weights.
func GaussLegendre(n int) (mu, w []float64) {
	x := make([]float64, 2*n)
	wt := make([]float64, 2*n)
	quad.Legendre{}.FixedLocations(x, wt, -1, 1)
	type node struct{ x, w float64 }
	nodes := make([]node, 0, n)
	for i, xi := range x {
		if xi > 0 {
			nodes = append(nodes, node{x: xi, w: wt[i]})
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].x < nodes[j].x })
	mu = make([]float64, len(nodes))
	w = make([]float64, len(nodes))
	for i, nd := range nodes {
		mu[i], w[i] = nd.x, nd.w
	}
	return mu, w
}

// insert adds the cosine of zenith angle deg to the grid with zero
// weight, or returns the index of the nearest existing cosine within tol.
// Two existing cosines at the same distance within tol are an error.
func (g *Grid) insert(deg, tol float64, what string) (int, error) {
	if !(deg >= 0 && deg < 90) {
		return 0, &rterr.ConfigurationError{Param: g.Kind + " " + what,
			Reason: fmt.Sprintf("%g° is not in [0°, 90°)", deg)}
	}
	mu := math.Cos(deg * math.Pi / 180)
	best, tie := -1, false
	bestDist := math.Inf(1)
	for i, m := range g.Mu {
		d := math.Abs(m - mu)
		switch {
		case d > tol:
		case d < bestDist:
			best, bestDist, tie = i, d, false
		case d == bestDist:
			tie = true
		}
	}
	if tie {
		return 0, &rterr.ConfigurationError{Param: g.Kind + " " + what,
			Reason: fmt.Sprintf("%g° is equally close to two grid angles", deg)}
	}
	if best >= 0 {
		return best, nil
	}
	i, _ := slices.BinarySearch(g.Mu, mu)
	g.Mu = append(g.Mu, 0)
	copy(g.Mu[i+1:], g.Mu[i:])
	g.Mu[i] = mu
	g.Weights = append(g.Weights, 0)
	copy(g.Weights[i+1:], g.Weights[i:])
	g.Weights[i] = 0
	for j, u := range g.UserIndex {
		if u >= i {
			g.UserIndex[j] = u + 1
		}
	}
	return i, nil
}
