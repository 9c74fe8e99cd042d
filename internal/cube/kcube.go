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

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/backmanlab/pwsgo/internal/sigproc"
)

// Autocorrelation minimum subtraction mode
type MinSubMode int

const (
	MinSubNone  MinSubMode = iota // use the autocorrelation as is
	MinSubCube                    // subtract the global minimum over the whole cube
	MinSubPixel                   // subtract each pixel's own minimum
)

// Smallest positive value substituted for non-positive autocorrelation
// entries before taking the logarithm
const logFloor=1e-323

// An image cube resampled from wavelength to wavenumber space.
// Wavenumbers are in radians/µm, ascending and evenly spaced, so that
// Fourier transforms along the spectral axis yield optical path
// difference in µm.
type KCube struct {
	Width, Height int32
	Wavenumbers   []float64
	Data          []float32 // row-major [y][x][k]
	Meta          Metadata
}

// Converts an image cube to wavenumber space: k=2π/λ with λ in µm,
// reversed to ascending order, then linearly interpolated onto an evenly
// spaced wavenumber grid of the same length.
func NewKCubeFromImageCube(c *ImageCube) (*KCube, error) {
	n:=c.Bands()
	if n<2 { return nil, fmt.Errorf("cube has %d bands, need at least 2 for wavenumber conversion", n) }

	// wavelengths ascend, so wavenumbers descend; reverse both axes
	ks:=make([]float64, n)
	for i,wl:=range c.Wavelengths {
		ks[n-1-i]=2*math.Pi/(wl*1e-3)
	}

	evenKs:=make([]float64, n)
	step:=(ks[n-1]-ks[0])/float64(n-1)
	for i:=range evenKs { evenKs[i]=ks[0]+float64(i)*step }
	evenKs[n-1]=ks[n-1]

	data:=make([]float32, len(c.Data))
	spec:=make([]float64, n)
	var pl interp.PiecewiseLinear
	for p:=0; p<c.Pixels(); p++ {
		src:=c.Spectrum(p)
		for i,v:=range src { spec[n-1-i]=float64(v) }
		if err:=pl.Fit(ks, spec); err!=nil {
			return nil, fmt.Errorf("wavenumber interpolation failed: %v", err)
		}
		dst:=data[p*n:(p+1)*n]
		for i,k:=range evenKs { dst[i]=float32(pl.Predict(k)) }
	}

	return &KCube{Width:c.Width, Height:c.Height, Wavenumbers:evenKs, Data:data, Meta:c.Meta}, nil
}

// Number of wavenumber bands
func (c *KCube) Bands() int { return len(c.Wavenumbers) }

// Number of pixels
func (c *KCube) Pixels() int { return int(c.Width)*int(c.Height) }

// The contiguous spectrum of pixel p in row-major order
func (c *KCube) Spectrum(p int) []float32 {
	n:=c.Bands()
	return c.Data[p*n:(p+1)*n]
}

// Per-pixel mean over the wavenumber axis
func (c *KCube) MeanPerPixel() []float32 {
	n:=c.Bands()
	res:=make([]float32, c.Pixels())
	for p:=0; p<c.Pixels(); p++ {
		sum:=float64(0)
		for _,v:=range c.Spectrum(p) { sum+=float64(v) }
		res[p]=float32(sum/float64(n))
	}
	return res
}

// Mean spectrum over the masked pixels. A nil mask selects all pixels.
func (c *KCube) MeanSpectra(mask []bool) ([]float64, error) {
	if mask!=nil && len(mask)!=c.Pixels() {
		return nil, fmt.Errorf("mask has %d pixels for %d", len(mask), c.Pixels())
	}
	n:=c.Bands()
	mean:=make([]float64, n)
	count:=0
	for p:=0; p<c.Pixels(); p++ {
		if mask!=nil && !mask[p] { continue }
		for i,v:=range c.Spectrum(p) { mean[i]+=float64(v) }
		count++
	}
	if count==0 { return nil, fmt.Errorf("mask selects no pixels") }
	for i:=range mean { mean[i]/=float64(count) }
	return mean, nil
}

// Per-pixel standard deviation over the wavenumber axis. After polynomial
// detrending this is the RMS spectral fluctuation.
func (c *KCube) RMSPerPixel() []float32 {
	n:=c.Bands()
	res:=make([]float32, c.Pixels())
	for p:=0; p<c.Pixels(); p++ {
		sum, sumSq:=float64(0), float64(0)
		for _,v:=range c.Spectrum(p) {
			f:=float64(v)
			sum+=f
			sumSq+=f*f
		}
		mean:=sum/float64(n)
		res[p]=float32(math.Sqrt(sumSq/float64(n)-mean*mean))
	}
	return res
}

// Subtracts the least-squares polynomial trend of the given order from
// every pixel's spectrum. Returns the standard deviation of the removed
// trend per pixel as a row-major 2D map.
func (c *KCube) PolySubtract(order int) (polyRMS []float32, err error) {
	d,err:=sigproc.NewPolyDetrender(c.Wavenumbers, order)
	if err!=nil { return nil, err }
	n:=c.Bands()
	seq:=make([]float64, n)
	trend:=make([]float64, n)
	polyRMS=make([]float32, c.Pixels())
	for p:=0; p<c.Pixels(); p++ {
		spec:=c.Spectrum(p)
		for i,v:=range spec { seq[i]=float64(v) }
		d.Trend(seq, trend)
		sum, sumSq:=float64(0), float64(0)
		for i:=range trend {
			sum+=trend[i]
			sumSq+=trend[i]*trend[i]
			spec[i]=float32(seq[i]-trend[i])
		}
		mean:=sum/float64(n)
		polyRMS[p]=float32(math.Sqrt(math.Max(0, sumSq/float64(n)-mean*mean)))
	}
	return polyRMS, nil
}

// Fits the log of each pixel's normalized autocorrelation against the
// squared wavenumber lags over the first stopIndex points. Returns the
// per-pixel slope and coefficient of determination as row-major 2D maps.
// Minimum subtraction raises the autocorrelation floor, which can improve
// the fit for weakly correlated signals.
func (c *KCube) GetAutoCorrelation(minSub MinSubMode, stopIndex int) (slope, rsq []float32, err error) {
	n:=c.Bands()
	if stopIndex<2 || stopIndex>n {
		return nil, nil, fmt.Errorf("autocorrelation stop index %d outside [2,%d]", stopIndex, n)
	}

	// all pixels' normalized autocorrelations; kept whole for the
	// cube-wide minimum
	acfs:=make([]float64, c.Pixels()*n)
	ac:=sigproc.NewAutoCorrelator(n)
	seq:=make([]float64, n)
	for p:=0; p<c.Pixels(); p++ {
		spec:=c.Spectrum(p)
		for i,v:=range spec { seq[i]=float64(v) }
		ac.Normalized(seq, acfs[p*n:(p+1)*n])
	}

	switch minSub {
	case MinSubCube:
		min:=math.Inf(1)
		for _,v:=range acfs {
			if v<min { min=v }
		}
		for i:=range acfs { acfs[i]-=min }
	case MinSubPixel:
		for p:=0; p<c.Pixels(); p++ {
			pix:=acfs[p*n:(p+1)*n]
			min:=math.Inf(1)
			for _,v:=range pix {
				if v<min { min=v }
			}
			for i:=range pix { pix[i]-=min }
		}
	}

	lagsSq:=make([]float64, stopIndex)
	for i:=0; i<stopIndex; i++ {
		lag:=c.Wavenumbers[i]-c.Wavenumbers[0]
		lagsSq[i]=lag*lag
	}

	slope=make([]float32, c.Pixels())
	rsq=make([]float32, c.Pixels())
	logAcf:=make([]float64, stopIndex)
	est:=make([]float64, stopIndex)
	for p:=0; p<c.Pixels(); p++ {
		pix:=acfs[p*n:p*n+stopIndex]
		for i,v:=range pix {
			if v<=0 { v=logFloor }
			logAcf[i]=math.Log(v)
		}
		alpha, beta:=stat.LinearRegression(lagsSq, logAcf, nil, false)
		for i,x:=range lagsSq { est[i]=alpha+beta*x }
		slope[p]=float32(beta)
		rsq[p]=float32(stat.RSquaredFrom(est, logAcf, nil))
	}
	return slope, rsq, nil
}

// The optical path difference spectrum of every pixel: the power
// normalized FFT magnitude over the wavenumber axis, truncated to
// stopIndex bins (all bins when stopIndex<=0). Returns the row-major
// [y][x][opd] array and the OPD axis values in µm.
func (c *KCube) GetOpd(hannWindow bool, stopIndex int) (opd []float32, opdAxis []float64) {
	n:=c.Bands()
	fm:=sigproc.NewFFTMagnitude(n, hannWindow)
	bins:=fm.Bins()
	if stopIndex<=0 || stopIndex>bins { stopIndex=bins }

	opd=make([]float32, c.Pixels()*stopIndex)
	seq:=make([]float64, n)
	mag:=make([]float64, bins)
	for p:=0; p<c.Pixels(); p++ {
		spec:=c.Spectrum(p)
		for i,v:=range spec { seq[i]=float64(v) }
		fm.Magnitude(seq, mag)
		dst:=opd[p*stopIndex:(p+1)*stopIndex]
		for i:=0; i<stopIndex; i++ { dst[i]=float32(mag[i]) }
	}

	dk:=c.Wavenumbers[1]-c.Wavenumbers[0]
	opdAxis=fm.Axis(dk)[:stopIndex]
	return opd, opdAxis
}

// Integrates signal power over an OPD band and converts it back to an
// RMS via Parseval's theorem. Spectra are mean subtracted first so only
// fluctuations contribute.
func (c *KCube) GetRMSFromOPD(lowerOPD, upperOPD float64, hannWindow bool) ([]float32, error) {
	if lowerOPD>upperOPD {
		return nil, fmt.Errorf("opd band [%f,%f] is inverted", lowerOPD, upperOPD)
	}
	n:=c.Bands()
	fm:=sigproc.NewFFTMagnitude(n, hannWindow)
	bins:=fm.Bins()
	dk:=c.Wavenumbers[1]-c.Wavenumbers[0]

	axis:=fm.Axis(dk)
	start:=nearestIndex(axis, lowerOPD)
	stop:=nearestIndex(axis, upperOPD)

	res:=make([]float32, c.Pixels())
	seq:=make([]float64, n)
	mag:=make([]float64, bins)
	for p:=0; p<c.Pixels(); p++ {
		spec:=c.Spectrum(p)
		mean:=0.0
		for _,v:=range spec { mean+=float64(v) }
		mean/=float64(n)
		for i,v:=range spec { seq[i]=float64(v)-mean }
		fm.Magnitude(seq, mag)
		sumSq:=0.0
		for i:=start; i<=stop; i++ { sumSq+=mag[i]*mag[i] }
		res[p]=float32(math.Sqrt(sumSq*float64(n)/float64(bins)))
	}
	return res, nil
}
