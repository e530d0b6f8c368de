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

// Package rterr defines the errors and warnings reported during a
// radiative transfer run. Fatal errors abort the component that produced
// them; warnings are returned alongside a usable result.
package rterr

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid or out-of-bound dimensioning request.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Param, e.Reason)
}

// InputValidationError reports physically inconsistent input data. It is
// always detected before any iteration begins.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// TableRangeError reports a lookup outside of the range of a tabulated axis.
type TableRangeError struct {
	Table    string
	Axis     string
	Value    float64
	Min, Max float64
}

func (e *TableRangeError) Error() string {
	return fmt.Sprintf("%s: %s value %g is outside of the tabulated range [%g, %g]",
		e.Table, e.Axis, e.Value, e.Min, e.Max)
}

// AngleOutOfValidityRange reports a zenith angle outside of the range
// where a surface model is valid.
type AngleOutOfValidityRange struct {
	Model string
	// Kind is "solar" or "view".
	Kind           string
	Degrees, Limit float64
}

func (e *AngleOutOfValidityRange) Error() string {
	return fmt.Sprintf("%s surface model: %s zenith angle %.3g° exceeds the limit of %.3g°",
		e.Model, e.Kind, e.Degrees, e.Limit)
}

// SizeParameterOutOfRange reports a maximum Mie size parameter outside of
// the admissible range for an aerosol model.
type SizeParameterOutOfRange struct {
	Model    string
	Alpha    float64
	Min, Max float64
}

func (e *SizeParameterOutOfRange) Error() string {
	return fmt.Sprintf("%s aerosols: maximum size parameter %g is outside of [%g, %g]",
		e.Model, e.Alpha, e.Min, e.Max)
}

// ExternalPhaseFunctionTooLarge reports an external phase function with
// more angles than allowed.
type ExternalPhaseFunctionTooLarge struct {
	N, Max int
}

func (e *ExternalPhaseFunctionTooLarge) Error() string {
	return fmt.Sprintf("external phase function has %d angles; the maximum is %d", e.N, e.Max)
}

// ProfileThicknessError reports an infeasible combination of layer count
// and layer optical thickness constraints.
type ProfileThicknessError struct {
	Reason string
}

func (e *ProfileThicknessError) Error() string {
	return "atmospheric profile: " + e.Reason
}

// MixtureRateError reports aerosol mixture rates that don't sum to 1.
type MixtureRateError struct {
	Sum, Tolerance float64
}

func (e *MixtureRateError) Error() string {
	return fmt.Sprintf("aerosol mixture rates sum to %.10g, which differs from 1 by more than %g",
		e.Sum, e.Tolerance)
}

// FourierSeries is the ConvergenceWarning.FourierOrder of a Fourier series
// that was truncated before it converged.
const FourierSeries = -1

// ConvergenceWarning reports a series that did not meet its convergence
// threshold before reaching its ceiling. The associated result holds the
// best available estimate.
type ConvergenceWarning struct {
	// FourierOrder is the azimuthal order concerned, or FourierSeries for
	// the Fourier series itself.
	FourierOrder int
	// Orders is the number of terms accumulated.
	Orders int
	// Contribution is the magnitude of the last term, and Sum the
	// magnitude of the accumulated series.
	Contribution, Sum float64
}

func (e *ConvergenceWarning) Error() string {
	if e.FourierOrder == FourierSeries {
		return fmt.Sprintf("Fourier series did not converge after %d orders "+
			"(last contribution %.3g of %.3g)", e.Orders, e.Contribution, e.Sum)
	}
	return fmt.Sprintf("Fourier order %d did not converge after %d scattering orders "+
		"(last contribution %.3g of %.3g)", e.FourierOrder, e.Orders, e.Contribution, e.Sum)
}

// FourierTruncationFailed reports a surface Fourier decomposition that
// reached its maximum order without meeting its threshold.
type FourierTruncationFailed struct {
	Model    string
	MaxOrder int
	// Ratio is the relative contribution of the last order computed.
	Ratio float64
}

func (e *FourierTruncationFailed) Error() string {
	return fmt.Sprintf("%s surface model: Fourier decomposition reached order %d "+
		"with relative contribution %.3g", e.Model, e.MaxOrder, e.Ratio)
}

// IsWarning returns whether err is a non-fatal warning.
func IsWarning(err error) bool {
	var cw *ConvergenceWarning
	var ft *FourierTruncationFailed
	return errors.As(err, &cw) || errors.As(err, &ft)
}

// Warnings is a list of non-fatal problems.
type Warnings []error

// Add appends err if it is not nil.
func (w *Warnings) Add(err error) {
	if err != nil {
		*w = append(*w, err)
	}
}

// Has returns whether any of the warnings matches the type of target,
// as in errors.As.
func (w Warnings) Has(target interface{}) bool {
	for _, err := range w {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
