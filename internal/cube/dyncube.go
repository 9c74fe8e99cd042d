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
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// A dynamics acquisition: the wavelength is held constant and the third
// axis is time. Shares the normalization state machine of ImageCube.
// Invariant: len(Data)==Width*Height*len(Times)
type DynCube struct {
	Width, Height int32
	Times         []float64 // ms, ascending
	Wavelength    float64   // nm
	Data          []float32 // row-major [y][x][t]
	Meta          Metadata
	Status        ProcessingStatus
}

// Creates a dynamics cube, validating the shape invariant
func NewDynCube(width, height int32, times []float64, wavelength float64, data []float32, meta Metadata) (*DynCube, error) {
	if int64(len(data))!=int64(width)*int64(height)*int64(len(times)) {
		return nil, fmt.Errorf("dynamics cube data has %d values for %dx%dx%d", len(data), width, height, len(times))
	}
	return &DynCube{Width:width, Height:height, Times:times, Wavelength:wavelength, Data:data, Meta:meta}, nil
}

// Number of time points
func (c *DynCube) Frames() int { return len(c.Times) }

// Number of pixels
func (c *DynCube) Pixels() int { return int(c.Width)*int(c.Height) }

// The contiguous time trace of pixel p in row-major order
func (c *DynCube) Trace(p int) []float32 {
	n:=c.Frames()
	return c.Data[p*n:(p+1)*n]
}

// Subtracts dark counts scaled by binning area. Dynamics cameras carry no
// linearity polynomial.
func (c *DynCube) CorrectCameraEffects() error {
	if c.Status.CameraCorrected { return &ErrAlreadyApplied{Step:"cameraCorrection"} }
	if c.Meta.Camera==nil { return fmt.Errorf("dynamics cube %s has no camera correction metadata", c.Meta.IDTag) }
	if c.Meta.Binning<=0 { return fmt.Errorf("dynamics cube %s has no binning metadata", c.Meta.IDTag) }

	offset:=float32(c.Meta.Camera.DarkCounts*float64(c.Meta.Binning)*float64(c.Meta.Binning))
	for i,d:=range c.Data {
		c.Data[i]=d-offset
	}
	c.Status.CameraCorrected=true
	return nil
}

// Divides by integration time, converting to counts per millisecond
func (c *DynCube) NormalizeByExposure() error {
	if !c.Status.CameraCorrected { return &ErrNotYetApplied{Step:"exposureNormalization", Requires:"cameraCorrection"} }
	if c.Status.ExposureNormalized { return &ErrAlreadyApplied{Step:"exposureNormalization"} }
	if c.Meta.ExposureMs<=0 { return fmt.Errorf("dynamics cube %s has invalid exposure %f ms", c.Meta.IDTag, c.Meta.ExposureMs) }

	factor:=float32(1.0/c.Meta.ExposureMs)
	for i,d:=range c.Data {
		c.Data[i]=d*factor
	}
	c.Status.ExposureNormalized=true
	return nil
}

// Subtracts a per-pixel extra reflection map, constant over time
func (c *DynCube) SubtractExtraReflection(iextra []float32) error {
	if !c.Status.ExposureNormalized { return &ErrNotYetApplied{Step:"extraReflectionSubtraction", Requires:"exposureNormalization"} }
	if c.Status.ExtraReflectionSubtracted { return &ErrAlreadyApplied{Step:"extraReflectionSubtraction"} }
	if len(iextra)!=c.Pixels() {
		return fmt.Errorf("extra reflection map has %d pixels for %d", len(iextra), c.Pixels())
	}
	for p:=0; p<c.Pixels(); p++ {
		trace:=c.Trace(p)
		for i:=range trace { trace[i]-=iextra[p] }
	}
	c.Status.ExtraReflectionSubtracted=true
	return nil
}

// Divides each pixel's time trace by a per-pixel reference level,
// typically the time-mean of a reference acquisition
func (c *DynCube) NormalizeByMap(ref []float32) error {
	if !c.Status.ExposureNormalized { return &ErrNotYetApplied{Step:"referenceNormalization", Requires:"exposureNormalization"} }
	if c.Status.ReferenceNormalized { return &ErrAlreadyApplied{Step:"referenceNormalization"} }
	if len(ref)!=c.Pixels() {
		return fmt.Errorf("reference map has %d pixels for %d", len(ref), c.Pixels())
	}
	for p:=0; p<c.Pixels(); p++ {
		if ref[p]==0 { return fmt.Errorf("reference level is zero at pixel %d", p) }
		factor:=1.0/ref[p]
		trace:=c.Trace(p)
		for i:=range trace { trace[i]*=factor }
	}
	c.Status.ReferenceNormalized=true
	return nil
}

// The mean-subtracted circular autocorrelation of every pixel's time
// trace, so the zero-lag value is the signal variance. Returns a
// row-major [y][x][lag] array of Frames() lags per pixel.
func (c *DynCube) GetAutocorrelation() []float64 {
	n:=c.Frames()
	fft:=fourier.NewFFT(n)
	seq:=make([]float64, n)
	coeffs:=make([]complex128, n/2+1)
	power:=make([]float64, n)
	res:=make([]float64, c.Pixels()*n)
	scale:=1.0/(float64(n)*float64(n))

	for p:=0; p<c.Pixels(); p++ {
		trace:=c.Trace(p)
		mean:=0.0
		for _,v:=range trace { mean+=float64(v) }
		mean/=float64(n)
		for i,v:=range trace { seq[i]=float64(v)-mean }
		fft.Coefficients(coeffs, seq)
		for i,cf:=range coeffs {
			m:=cmplx.Abs(cf)
			coeffs[i]=complex(m*m, 0)
		}
		fft.Sequence(power, coeffs)
		dst:=res[p*n:(p+1)*n]
		for i,v:=range power { dst[i]=v*scale }
	}
	return res
}

// Per-pixel mean over the time axis
func (c *DynCube) MeanPerPixel() []float32 {
	n:=c.Frames()
	res:=make([]float32, c.Pixels())
	for p:=0; p<c.Pixels(); p++ {
		sum:=float64(0)
		for _,v:=range c.Trace(p) { sum+=float64(v) }
		res[p]=float32(sum/float64(n))
	}
	return res
}

// Blurs each time slice with a Gaussian of the given physical size.
// Used on reference acquisitions to suppress dust.
func (c *DynCube) FilterDust(sigmaUm float64) error {
	if c.Meta.PixelSizeUm<=0 { return fmt.Errorf("dynamics cube %s has no pixel size metadata", c.Meta.IDTag) }
	sigmaPx:=float32(sigmaUm/c.Meta.PixelSizeUm)
	kernel:=gaussianKernel1D(sigmaPx)

	n:=c.Frames()
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
