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

	"gonum.org/v1/gonum/mat"
)

// Removes a least-squares polynomial trend from fixed-length signals
// sampled at a shared set of x values. The projection matrix onto the
// polynomial subspace is factorized once, so detrending each signal is a
// single matrix-vector product. Safe for concurrent use once built.
type PolyDetrender struct {
	n    int
	proj *mat.Dense // n x n projection onto the span of the Vandermonde columns
}

// Creates a detrender for the given sample positions and polynomial order
func NewPolyDetrender(xs []float64, order int) (*PolyDetrender, error) {
	n:=len(xs)
	if order<0 { return nil, fmt.Errorf("polynomial order must be non-negative, got %d", order) }
	if n<order+2 { return nil, fmt.Errorf("%d samples cannot support polynomial order %d", n, order) }

	vand:=mat.NewDense(n, order+1, nil)
	for i,x:=range xs {
		v:=1.0
		for j:=0; j<=order; j++ {
			vand.Set(i, j, v)
			v*=x
		}
	}

	// pseudo-inverse via QR, then projection P = V (V^T V)^-1 V^T = V pinv(V)
	var qr mat.QR
	qr.Factorize(vand)
	eye:=mat.NewDense(n, n, nil)
	for i:=0; i<n; i++ { eye.Set(i, i, 1) }
	var pinv mat.Dense
	if err:=qr.SolveTo(&pinv, false, eye); err!=nil {
		return nil, fmt.Errorf("vandermonde factorization is singular: %v", err)
	}
	var proj mat.Dense
	proj.Mul(vand, &pinv)
	return &PolyDetrender{n:n, proj:&proj}, nil
}

// The fitted polynomial trend of seq, stored in dst
func (d *PolyDetrender) Trend(seq, dst []float64) {
	in:=mat.NewVecDense(d.n, seq)
	out:=mat.NewVecDense(d.n, dst)
	out.MulVec(d.proj, in)
}

// Subtracts the fitted polynomial trend from seq in place
func (d *PolyDetrender) Detrend(seq, scratch []float64) {
	d.Trend(seq, scratch)
	for i:=range seq { seq[i]-=scratch[i] }
}
