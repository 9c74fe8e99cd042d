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
	"math"
)

// Records which normalization steps have been applied to a raw acquisition.
// Each flag flips exactly once; the methods on ImageCube enforce ordering.
type ProcessingStatus struct {
	CameraCorrected           bool `json:"cameraCorrected"`
	ExposureNormalized        bool `json:"exposureNormalized"`
	ExtraReflectionSubtracted bool `json:"extraReflectionSubtracted"`
	ReferenceNormalized       bool `json:"referenceNormalized"`
}

// Returned when a normalization step is applied twice
type ErrAlreadyApplied struct {
	Step string
}

func (e *ErrAlreadyApplied) Error() string {
	return fmt.Sprintf("step %s has already been applied to this cube", e.Step)
}

// Returned when a normalization step runs before its prerequisite
type ErrNotYetApplied struct {
	Step     string
	Requires string
}

func (e *ErrNotYetApplied) Error() string {
	return fmt.Sprintf("step %s requires %s to have been applied first", e.Step, e.Requires)
}

// Dark count and linearity calibration of the acquiring camera
type CameraCorrection struct {
	DarkCounts float64   `json:"darkCounts"                     yaml:"darkCounts"`
	Linearity  []float64 `json:"linearityPolynomial,omitempty"  yaml:"linearityPolynomial,omitempty"` // a1*x + a2*x^2 + ..., no constant term
}

// Acquisition metadata carried alongside cube data
type Metadata struct {
	ExposureMs  float64           `json:"exposureMs"`
	Binning     int32             `json:"binning,omitempty"`
	PixelSizeUm float64           `json:"pixelSizeUm,omitempty"` // 0 when unknown
	Camera      *CameraCorrection `json:"cameraCorrection,omitempty"`
	SystemName  string            `json:"systemName,omitempty"`
	IDTag       string            `json:"idTag,omitempty"`
}

// A hyperspectral acquisition: one spectrum per pixel.
// Data is row-major [y][x][n] so that each pixel's spectrum is contiguous.
// Invariant: len(Data)==Width*Height*len(Wavelengths)
type ImageCube struct {
	Width, Height int32
	Wavelengths   []float64 // nm, ascending
	Data          []float32
	Meta          Metadata
	Status        ProcessingStatus
}

// Creates an image cube, validating the shape invariant
func NewImageCube(width, height int32, wavelengths []float64, data []float32, meta Metadata) (*ImageCube, error) {
	if int64(len(data))!=int64(width)*int64(height)*int64(len(wavelengths)) {
		return nil, fmt.Errorf("cube data has %d values for %dx%dx%d", len(data), width, height, len(wavelengths))
	}
	return &ImageCube{Width:width, Height:height, Wavelengths:wavelengths, Data:data, Meta:meta}, nil
}

// Number of spectral bands
func (c *ImageCube) Bands() int { return len(c.Wavelengths) }

// Number of pixels
func (c *ImageCube) Pixels() int { return int(c.Width)*int(c.Height) }

// The contiguous spectrum of pixel p in row-major order
func (c *ImageCube) Spectrum(p int) []float32 {
	n:=c.Bands()
	return c.Data[p*n:(p+1)*n]
}

// Deep copy including metadata and status
func (c *ImageCube) Clone() *ImageCube {
	data:=make([]float32, len(c.Data))
	copy(data, c.Data)
	wls:=make([]float64, len(c.Wavelengths))
	copy(wls, c.Wavelengths)
	res:=*c
	res.Data, res.Wavelengths=data, wls
	return &res
}

// Checks two cubes share the same spatial and spectral shape
func (c *ImageCube) sameShape(o *ImageCube) error {
	if c.Width!=o.Width || c.Height!=o.Height || len(c.Wavelengths)!=len(o.Wavelengths) {
		return fmt.Errorf("cube shapes differ: %dx%dx%d vs %dx%dx%d",
			c.Width, c.Height, len(c.Wavelengths), o.Width, o.Height, len(o.Wavelengths))
	}
	return nil
}

// Subtracts dark counts scaled by binning area, then applies the camera
// linearity polynomial if one is present. First step of every pipeline.
func (c *ImageCube) CorrectCameraEffects() error {
	if c.Status.CameraCorrected { return &ErrAlreadyApplied{Step:"cameraCorrection"} }
	if c.Meta.Camera==nil { return fmt.Errorf("cube %s has no camera correction metadata", c.Meta.IDTag) }
	if c.Meta.Binning<=0 { return fmt.Errorf("cube %s has no binning metadata", c.Meta.IDTag) }

	offset:=float32(c.Meta.Camera.DarkCounts*float64(c.Meta.Binning)*float64(c.Meta.Binning))
	for i,d:=range c.Data {
		c.Data[i]=d-offset
	}

	if poly:=c.Meta.Camera.Linearity; len(poly)>0 {
		for i,d:=range c.Data {
			x, xp, acc:=float64(d), float64(d), float64(0)
			for _,coeff:=range poly {
				acc+=coeff*xp
				xp*=x
			}
			c.Data[i]=float32(acc)
		}
	}

	c.Status.CameraCorrected=true
	return nil
}

// Divides by integration time, converting to counts per millisecond
func (c *ImageCube) NormalizeByExposure() error {
	if !c.Status.CameraCorrected { return &ErrNotYetApplied{Step:"exposureNormalization", Requires:"cameraCorrection"} }
	if c.Status.ExposureNormalized { return &ErrAlreadyApplied{Step:"exposureNormalization"} }
	if c.Meta.ExposureMs<=0 { return fmt.Errorf("cube %s has invalid exposure %f ms", c.Meta.IDTag, c.Meta.ExposureMs) }

	factor:=float32(1.0/c.Meta.ExposureMs)
	for i,d:=range c.Data {
		c.Data[i]=d*factor
	}
	c.Status.ExposureNormalized=true
	return nil
}

// Subtracts the system's internal reflection, given in counts per millisecond
func (c *ImageCube) SubtractExtraReflection(ie *ExtraReflectionCube) error {
	if !c.Status.ExposureNormalized { return &ErrNotYetApplied{Step:"extraReflectionSubtraction", Requires:"exposureNormalization"} }
	if c.Status.ExtraReflectionSubtracted { return &ErrAlreadyApplied{Step:"extraReflectionSubtraction"} }
	if err:=c.sameShape(ie.Cube); err!=nil { return err }

	for i,d:=range c.Data {
		c.Data[i]=d-ie.Cube.Data[i]
	}
	c.Status.ExtraReflectionSubtracted=true
	return nil
}

// Divides elementwise by a reference acquisition of a uniform reflector.
// Both cubes must be exposure normalized; a reference lacking camera
// correction or extra reflection subtraction yields warnings, not errors.
func (c *ImageCube) NormalizeByReference(ref *ImageCube) (warnings []string, err error) {
	if !c.Status.ExposureNormalized { return nil, &ErrNotYetApplied{Step:"referenceNormalization", Requires:"exposureNormalization"} }
	if c.Status.ReferenceNormalized { return nil, &ErrAlreadyApplied{Step:"referenceNormalization"} }
	if !ref.Status.ExposureNormalized { return nil, &ErrNotYetApplied{Step:"referenceNormalization", Requires:"exposure normalization of the reference"} }
	if err:=c.sameShape(ref); err!=nil { return nil, err }

	if !ref.Status.CameraCorrected {
		warnings=append(warnings, "reference has not been corrected for camera effects")
	}
	if !ref.Status.ExtraReflectionSubtracted {
		warnings=append(warnings, "reference has not had extra reflection subtracted")
	}

	for i,d:=range c.Data {
		c.Data[i]=d/ref.Data[i]
	}
	c.Status.ReferenceNormalized=true
	return warnings, nil
}

// Crops spectrally to [start, stop] nm inclusive, by nearest index.
// Returns a new cube sharing metadata and status.
func (c *ImageCube) SelWavelengths(start, stop float64) (*ImageCube, error) {
	if start>stop { return nil, fmt.Errorf("wavelength crop start %f exceeds stop %f", start, stop) }
	i0:=nearestIndex(c.Wavelengths, start)
	i1:=nearestIndex(c.Wavelengths, stop)
	n:=c.Bands()
	nn:=i1-i0+1
	if nn<2 { return nil, fmt.Errorf("wavelength crop [%f,%f] leaves %d bands", start, stop, nn) }

	data:=make([]float32, c.Pixels()*nn)
	for p:=0; p<c.Pixels(); p++ {
		copy(data[p*nn:(p+1)*nn], c.Data[p*n+i0:p*n+i1+1])
	}
	wls:=make([]float64, nn)
	copy(wls, c.Wavelengths[i0:i1+1])

	res:=*c
	res.Data, res.Wavelengths=data, wls
	return &res, nil
}

// Index of the value in xs closest to x. xs must be ascending.
func nearestIndex(xs []float64, x float64) int {
	best, bestDist:=0, math.Inf(1)
	for i,v:=range xs {
		d:=math.Abs(v-x)
		if d<bestDist { best, bestDist=i, d }
	}
	return best
}

// Mean and standard deviation spectrum over the masked pixels.
// A nil mask selects all pixels.
func (c *ImageCube) MeanSpectra(mask []bool) (mean, std []float64, err error) {
	if mask!=nil && len(mask)!=c.Pixels() {
		return nil, nil, fmt.Errorf("mask has %d entries for %d pixels", len(mask), c.Pixels())
	}
	n:=c.Bands()
	mean=make([]float64, n)
	std=make([]float64, n)
	count:=0
	for p:=0; p<c.Pixels(); p++ {
		if mask!=nil && !mask[p] { continue }
		spec:=c.Spectrum(p)
		for i,v:=range spec { mean[i]+=float64(v) }
		count++
	}
	if count==0 { return nil, nil, fmt.Errorf("mask selects no pixels") }
	for i:=range mean { mean[i]/=float64(count) }
	for p:=0; p<c.Pixels(); p++ {
		if mask!=nil && !mask[p] { continue }
		spec:=c.Spectrum(p)
		for i,v:=range spec { d:=float64(v)-mean[i]; std[i]+=d*d }
	}
	for i:=range std { std[i]=math.Sqrt(std[i]/float64(count)) }
	return mean, std, nil
}

// Per-pixel mean over the spectral axis, as a row-major 2D map
func (c *ImageCube) MeanPerPixel() []float32 {
	n:=c.Bands()
	res:=make([]float32, c.Pixels())
	for p:=0; p<c.Pixels(); p++ {
		sum:=float64(0)
		for _,v:=range c.Spectrum(p) { sum+=float64(v) }
		res[p]=float32(sum/float64(n))
	}
	return res
}

// Blurs each wavelength slice with a Gaussian of the given physical size,
// suppressing dust particles on reference acquisitions. Requires pixel
// size metadata.
func (c *ImageCube) FilterDust(sigmaUm float64) error {
	if c.Meta.PixelSizeUm<=0 { return fmt.Errorf("cube %s has no pixel size metadata", c.Meta.IDTag) }
	sigmaPx:=float32(sigmaUm/c.Meta.PixelSizeUm)
	kernel:=gaussianKernel1D(sigmaPx)

	n:=c.Bands()
	w:=int(c.Width)
	slice:=make([]float32, c.Pixels())
	tmp:=make([]float32, c.Pixels())
	for b:=0; b<n; b++ {
		for p:=0; p<c.Pixels(); p++ { slice[p]=c.Data[p*n+b] }
		convolve1DX(tmp, slice, w, kernel)
		convolve1DY(slice, tmp, w, kernel)
		for p:=0; p<c.Pixels(); p++ { c.Data[p*n+b]=slice[p] }
	}
	return nil
}
