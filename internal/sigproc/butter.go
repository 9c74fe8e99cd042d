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
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// A digital IIR filter in transfer function form. Coefficients are in
// descending powers of z^-1 with A[0]==1.
type IIRFilter struct {
	B, A []float64
}

// Designs a digital Butterworth low-pass filter of the given order with
// cutoff frequency normalized to the Nyquist frequency (0<cutoff<1).
// Analog prototype poles, low-pass frequency transform with prewarping,
// then bilinear transform.
func NewButterworthLowPass(order int, cutoff float64) (*IIRFilter, error) {
	if order<1 { return nil, fmt.Errorf("butterworth order must be positive, got %d", order) }
	if cutoff<=0 || cutoff>=1 { return nil, fmt.Errorf("butterworth cutoff must be in (0,1), got %f", cutoff) }

	// analog prototype poles on the unit circle, left half plane
	poles:=make([]complex128, order)
	for k:=0; k<order; k++ {
		theta:=math.Pi*float64(2*k+order+1)/float64(2*order)
		poles[k]=cmplx.Exp(complex(0, theta))
	}

	// prewarp the cutoff and scale the prototype
	fs:=2.0
	warped:=2*fs*math.Tan(math.Pi*cutoff/fs)
	for i:=range poles { poles[i]*=complex(warped, 0) }
	gain:=math.Pow(warped, float64(order))

	// bilinear transform; the analog prototype has no finite zeros, so the
	// digital zeros all land at z=-1
	fs2:=complex(2*fs, 0)
	zpoles:=make([]complex128, order)
	denom:=complex(1, 0)
	for i,p:=range poles {
		zpoles[i]=(fs2+p)/(fs2-p)
		denom*=fs2-p
	}
	gain/=real(denom)

	zzeros:=make([]complex128, order)
	for i:=range zzeros { zzeros[i]=complex(-1, 0) }

	b:=polyFromRoots(zzeros)
	for i:=range b { b[i]*=gain }
	a:=polyFromRoots(zpoles)
	return &IIRFilter{B:b, A:a}, nil
}

// Expands a monic polynomial from its complex roots and returns the real
// coefficients in descending order. Roots must come in conjugate pairs or
// be real.
func polyFromRoots(roots []complex128) []float64 {
	coeffs:=[]complex128{1}
	for _,r:=range roots {
		next:=make([]complex128, len(coeffs)+1)
		for i,c:=range coeffs {
			next[i]+=c
			next[i+1]-=c*r
		}
		coeffs=next
	}
	res:=make([]float64, len(coeffs))
	for i,c:=range coeffs { res[i]=real(c) }
	return res
}

// Applies the filter to x with initial conditions zi (scaled), using the
// direct form II transposed structure. zi must have len(A)-1 entries.
func (f *IIRFilter) lfilter(x, zi []float64) []float64 {
	n:=len(f.A)
	z:=make([]float64, n-1)
	copy(z, zi)
	y:=make([]float64, len(x))
	for i,xv:=range x {
		yv:=f.B[0]*xv+z[0]
		for j:=0; j<n-2; j++ {
			z[j]=f.B[j+1]*xv+z[j+1]-f.A[j+1]*yv
		}
		z[n-2]=f.B[n-1]*xv-f.A[n-1]*yv
		y[i]=yv
	}
	return y
}

// Steady-state initial conditions for a unit step input, so that the
// forward-backward pass does not ring at the edges
func (f *IIRFilter) stepInitialState() []float64 {
	n:=len(f.A)-1
	// (I - C^T) zi = B with C the companion matrix of A
	m:=mat.NewDense(n, n, nil)
	for i:=0; i<n; i++ {
		for j:=0; j<n; j++ {
			v:=0.0
			if i==j { v=1 }
			// companion: C[0][j]=-A[j+1], C[i][i-1]=1; transpose indexes as C[j][i]
			if j==0 { v+=f.A[i+1] }
			if j==i+1 { v-=1 }
			m.Set(i, j, v)
		}
	}
	rhs:=mat.NewVecDense(n, nil)
	for i:=0; i<n; i++ {
		rhs.SetVec(i, f.B[i+1]-f.A[i+1]*f.B[0])
	}
	var zi mat.VecDense
	if err:=zi.SolveVec(m, rhs); err!=nil {
		return make([]float64, n)
	}
	res:=make([]float64, n)
	for i:=0; i<n; i++ { res[i]=zi.AtVec(i) }
	return res
}

// Zero-phase filtering: applies the filter forward and backward with
// odd-symmetric edge padding, cancelling the phase delay
func (f *IIRFilter) FiltFilt(x []float64) ([]float64, error) {
	padLen:=3*len(f.A)
	if len(f.B)>len(f.A) { padLen=3*len(f.B) }
	if len(x)<=padLen {
		return nil, fmt.Errorf("signal of length %d is too short for filter padding %d", len(x), padLen)
	}

	// odd extension at both ends
	ext:=make([]float64, len(x)+2*padLen)
	for i:=0; i<padLen; i++ {
		ext[i]=2*x[0]-x[padLen-i]
	}
	copy(ext[padLen:], x)
	last:=len(x)-1
	for i:=0; i<padLen; i++ {
		ext[padLen+len(x)+i]=2*x[last]-x[last-1-i]
	}

	zi:=f.stepInitialState()
	scaled:=make([]float64, len(zi))

	for i:=range zi { scaled[i]=zi[i]*ext[0] }
	y:=f.lfilter(ext, scaled)

	reverse(y)
	for i:=range zi { scaled[i]=zi[i]*y[0] }
	y=f.lfilter(y, scaled)
	reverse(y)

	return y[padLen:padLen+len(x)], nil
}

func reverse(xs []float64) {
	for i,j:=0,len(xs)-1; i<j; i,j=i+1,j-1 {
		xs[i], xs[j]=xs[j], xs[i]
	}
}
