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


package sigproc

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Next power of two greater than or equal to n
func NextPow2(n int) int {
	p:=1
	for p<n { p<<=1 }
	return p
}

// Computes FFT-based autocorrelations of fixed-length real signals,
// normalized so the zero-lag value is 1. Reusable across signals of the
// same length; not safe for concurrent use, give each worker its own.
type AutoCorrelator struct {
	n       int
	fftSize int
	fft     *fourier.FFT
	padded  []float64
	coeffs  []complex128
	power   []float64
}

// Creates an autocorrelator for signals of length n. The transform size is
// the next power of two at or above 2n-1, covering all 2n-1 lags.
func NewAutoCorrelator(n int) *AutoCorrelator {
	fftSize:=NextPow2(2*n-1)
	return &AutoCorrelator{
		n:       n,
		fftSize: fftSize,
		fft:     fourier.NewFFT(fftSize),
		padded:  make([]float64, fftSize),
		coeffs:  make([]complex128, fftSize/2+1),
		power:   make([]float64, fftSize),
	}
}

// The autocovariance of seq for lags 0..n-1, stored in dst.
// dst must have length n.
func (ac *AutoCorrelator) Autocovariance(seq, dst []float64) {
	copy(ac.padded, seq)
	for i:=len(seq); i<ac.fftSize; i++ { ac.padded[i]=0 }
	ac.fft.Coefficients(ac.coeffs, ac.padded)
	for i,c:=range ac.coeffs {
		m:=cmplx.Abs(c)
		ac.coeffs[i]=complex(m*m, 0)
	}
	ac.fft.Sequence(ac.power, ac.coeffs)
	scale:=1.0/float64(ac.fftSize)
	for i:=0; i<ac.n; i++ {
		dst[i]=ac.power[i]*scale
	}
}

// The autocorrelation of seq, normalized so dst[0]==1
func (ac *AutoCorrelator) Normalized(seq, dst []float64) {
	ac.Autocovariance(seq, dst)
	if dst[0]!=0 {
		inv:=1.0/dst[0]
		for i:=range dst { dst[i]*=inv }
	}
}

// Computes power-normalized FFT magnitudes of fixed-length real signals.
// The transform size is double the next power of two at or above 2n-1;
// the extra zero padding interpolates the spectrum. With windowing
// enabled a Hann window is applied and the magnitudes rescaled so the
// total power of the signal is preserved.
type FFTMagnitude struct {
	n       int
	fftSize int
	fft     *fourier.FFT
	win     []float64
	winNorm float64
	padded  []float64
	coeffs  []complex128
}

// Creates a magnitude transform for signals of length n
func NewFFTMagnitude(n int, hannWindow bool) *FFTMagnitude {
	fftSize:=NextPow2(2*n-1)*2
	win:=make([]float64, n)
	for i:=range win { win[i]=1 }
	if hannWindow {
		window.Hann(win)
	}
	sumSq:=0.0
	for _,w:=range win { sumSq+=w*w }
	return &FFTMagnitude{
		n:       n,
		fftSize: fftSize,
		fft:     fourier.NewFFT(fftSize),
		win:     win,
		winNorm: math.Sqrt(float64(n)/sumSq),
		padded:  make([]float64, fftSize),
		coeffs:  make([]complex128, fftSize/2+1),
	}
}

// Number of magnitude bins produced per signal
func (fm *FFTMagnitude) Bins() int { return fm.fftSize/2+1 }

// The power-normalized FFT magnitude of seq, stored in dst.
// dst must have length Bins().
func (fm *FFTMagnitude) Magnitude(seq, dst []float64) {
	for i:=0; i<fm.n; i++ { fm.padded[i]=seq[i]*fm.win[i] }
	for i:=fm.n; i<fm.fftSize; i++ { fm.padded[i]=0 }
	fm.fft.Coefficients(fm.coeffs, fm.padded)
	scale:=fm.winNorm/float64(fm.n)
	for i,c:=range fm.coeffs {
		dst[i]=cmplx.Abs(c)*scale
	}
}

// The physical axis values for the magnitude bins, given the sample
// spacing of the input signal in its own units (e.g. radians/µm for
// wavenumber spectra, yielding µm of optical path difference)
func (fm *FFTMagnitude) Axis(delta float64) []float64 {
	maxVal:=2*math.Pi/delta
	dVal:=maxVal/float64(fm.n)
	bins:=fm.Bins()
	res:=make([]float64, bins)
	for i:=range res {
		res[i]=float64(fm.n)/2*float64(i)*dVal/float64(bins)
	}
	return res
}
