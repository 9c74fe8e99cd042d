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


package cube

import (
	"fmt"
)

// A calibration cube of the optical system's internal reflectance, in
// absolute reflectance units within [0,1]. Persisted once per system
// configuration and reused across experiments.
type ExtraReflectanceCube struct {
	Width, Height     int32
	Wavelengths       []float64
	Data              []float32 // row-major [y][x][n], reflectance fraction
	NumericalAperture float64
	SystemName        string
	IDTag             string
}

// Creates an extra reflectance cube, validating shape and value range
func NewExtraReflectanceCube(width, height int32, wavelengths []float64, data []float32, na float64, system, idTag string) (*ExtraReflectanceCube, error) {
	if int64(len(data))!=int64(width)*int64(height)*int64(len(wavelengths)) {
		return nil, fmt.Errorf("extra reflectance data has %d values for %dx%dx%d", len(data), width, height, len(wavelengths))
	}
	for _,v:=range data {
		if v!=v || v<0 || v>1 {
			return nil, fmt.Errorf("extra reflectance value %v outside [0,1]", v)
		}
	}
	return &ExtraReflectanceCube{Width:width, Height:height, Wavelengths:wavelengths, Data:data,
		NumericalAperture:na, SystemName:system, IDTag:idTag}, nil
}

// Number of spectral bands
func (c *ExtraReflectanceCube) Bands() int { return len(c.Wavelengths) }

// Number of pixels
func (c *ExtraReflectanceCube) Pixels() int { return int(c.Width)*int(c.Height) }

// The system's internal reflection expressed in the counts/ms units of a
// specific reference acquisition, ready to subtract from acquisitions
// taken under the same illumination
type ExtraReflectionCube struct {
	Cube  *ImageCube // counts per millisecond
	IDTag string
}

// Converts an extra reflectance calibration to counts/ms using a reference
// acquisition of a material with known theoretical reflectance:
// I0 = ref/(theoryR+Rextra) recovers the illumination intensity, and
// Iextra = Rextra*I0 is the stray signal to subtract. The reference must
// be exposure normalized.
func NewExtraReflectionCube(er *ExtraReflectanceCube, theoryR []float64, ref *ImageCube) (*ExtraReflectionCube, error) {
	if !ref.Status.ExposureNormalized {
		return nil, &ErrNotYetApplied{Step:"extraReflectionConversion", Requires:"exposure normalization of the reference"}
	}
	if er.Width!=ref.Width || er.Height!=ref.Height || er.Bands()!=ref.Bands() {
		return nil, fmt.Errorf("extra reflectance is %dx%dx%d, reference is %dx%dx%d",
			er.Width, er.Height, er.Bands(), ref.Width, ref.Height, ref.Bands())
	}
	if len(theoryR)!=er.Bands() {
		return nil, fmt.Errorf("theoretical reflectance has %d values for %d bands", len(theoryR), er.Bands())
	}

	n:=er.Bands()
	data:=make([]float32, len(ref.Data))
	for p:=0; p<er.Pixels(); p++ {
		erSpec:=er.Data[p*n:(p+1)*n]
		refSpec:=ref.Spectrum(p)
		dst:=data[p*n:(p+1)*n]
		for i:=0; i<n; i++ {
			i0:=float64(refSpec[i])/(theoryR[i]+float64(erSpec[i]))
			dst[i]=float32(float64(erSpec[i])*i0)
		}
	}

	c:=&ImageCube{Width:ref.Width, Height:ref.Height, Wavelengths:er.Wavelengths, Data:data,
		Meta:Metadata{SystemName:er.SystemName, IDTag:er.IDTag}, Status:ref.Status}
	return &ExtraReflectionCube{Cube:c, IDTag:er.IDTag}, nil
}

// A single-wavelength extra reflection map for dynamics acquisitions,
// the 2D analogue of ExtraReflectionCube
func NewExtraReflectionMap(er *ExtraReflectanceCube, wavelength float64, theoryR float64, refMap []float32) ([]float32, error) {
	if len(refMap)!=er.Pixels() {
		return nil, fmt.Errorf("reference map has %d pixels for %d", len(refMap), er.Pixels())
	}
	band:=nearestIndex(er.Wavelengths, wavelength)
	n:=er.Bands()
	res:=make([]float32, er.Pixels())
	for p:=0; p<er.Pixels(); p++ {
		erV:=float64(er.Data[p*n+band])
		i0:=float64(refMap[p])/(theoryR+erV)
		res[p]=float32(erV*i0)
	}
	return res, nil
}
