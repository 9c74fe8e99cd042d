// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package analysis

import (
	"fmt"

	"github.com/backmanlab/pwsgo/internal/cube"
)

// Named result fields, used by compilers and by the results store.
type Field string

const (
	FieldMeanReflectance      Field = "meanReflectance"
	FieldRMS                  Field = "rms"
	FieldPolynomialRMS        Field = "polynomialRms"
	FieldAutoCorrelationSlope Field = "autoCorrelationSlope"
	FieldRSquared             Field = "rSquared"
	FieldLd                   Field = "ld"
	FieldRMSTSquared          Field = "rms_t_squared"
	FieldDiffusion            Field = "diffusion"
)

// Returned when a compiler or store lookup asks for a field the
// analysis did not produce, e.g. an advanced metric after a run with
// SkipAdvanced set.
type FieldAbsentError struct {
	Field Field
}

func (e *FieldAbsentError) Error() string { return fmt.Sprintf("result field %q was not produced by this analysis", e.Field) }

// Results of a spectral analysis run. Per-pixel maps are row-major
// [y][x] over the cube's spatial extent. Advanced fields (polynomial
// RMS, slope, R-squared, Ld) are nil when the run skipped them.
type PWSResults struct {
	Time                 string      `json:"time"`
	Settings             PWSSettings `json:"settings"`
	CubeIDTag            string      `json:"imCubeIdTag"`
	ReferenceIDTag       string      `json:"referenceIdTag"`
	ExtraReflectionIDTag string      `json:"extraReflectionIdTag"`

	Reflectance          *cube.KCube `json:"-"` // detrended reflectance in wavenumber space
	MeanReflectance      []float32   `json:"-"`
	RMS                  []float32   `json:"-"`
	PolynomialRMS        []float32   `json:"-"`
	AutoCorrelationSlope []float32   `json:"-"`
	RSquared             []float32   `json:"-"`
	Ld                   []float32   `json:"-"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// Returns the named per-pixel map, or a FieldAbsentError if the run
// did not produce it.
func (r *PWSResults) Map(f Field) ([]float32, error) {
	var m []float32
	switch f {
	case FieldMeanReflectance:
		m=r.MeanReflectance
	case FieldRMS:
		m=r.RMS
	case FieldPolynomialRMS:
		m=r.PolynomialRMS
	case FieldAutoCorrelationSlope:
		m=r.AutoCorrelationSlope
	case FieldRSquared:
		m=r.RSquared
	case FieldLd:
		m=r.Ld
	default:
		return nil, fmt.Errorf("unknown result field %q", f)
	}
	if m==nil { return nil, &FieldAbsentError{Field: f} }
	return m, nil
}

// Computes the per-pixel optical path difference spectrum from the
// stored reflectance cube. Derived on demand rather than stored, since
// the OPD stack is as large as the cube itself.
func (r *PWSResults) OPD(hannWindow bool, stopIndex int) (opd []float32, opdAxis []float64, err error) {
	if r.Reflectance==nil { return nil, nil, &FieldAbsentError{Field: "opd"} }
	opd, opdAxis=r.Reflectance.GetOpd(hannWindow, stopIndex)
	return opd, opdAxis, nil
}

// Results of a dynamics analysis run. Diffusion is NaN at pixels
// masked out for insufficient signal to noise; DiffusionMask is true
// where the fit was performed.
type DynResults struct {
	Time                 string      `json:"time"`
	Settings             DynSettings `json:"settings"`
	CubeIDTag            string      `json:"imCubeIdTag"`
	ReferenceIDTag       string      `json:"referenceIdTag"`
	ExtraReflectionIDTag string      `json:"extraReflectionIdTag"`
	Width                int32       `json:"width"`
	Height               int32       `json:"height"`

	MeanReflectance []float32 `json:"-"`
	RMSTSquared     []float32 `json:"-"`
	Diffusion       []float32 `json:"-"`
	DiffusionMask   []bool    `json:"-"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// Returns the named per-pixel map, or a FieldAbsentError if the run
// did not produce it.
func (r *DynResults) Map(f Field) ([]float32, error) {
	var m []float32
	switch f {
	case FieldMeanReflectance:
		m=r.MeanReflectance
	case FieldRMSTSquared:
		m=r.RMSTSquared
	case FieldDiffusion:
		m=r.Diffusion
	default:
		return nil, fmt.Errorf("unknown result field %q", f)
	}
	if m==nil { return nil, &FieldAbsentError{Field: f} }
	return m, nil
}
