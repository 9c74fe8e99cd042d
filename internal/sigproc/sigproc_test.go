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
	"testing"
)


func TestButterworthCoefficients(t *testing.T) {
	// second order half-band filter has well-known coefficients
	f,err:=NewButterworthLowPass(2, 0.5)
	if err!=nil { t.Fatalf("design failed: %v", err) }
	expectB:=[]float64{0.2928932188134524, 0.5857864376269048, 0.2928932188134524}
	expectA:=[]float64{1, 0, 0.1715728752538099}
	for i:=range expectB {
		if math.Abs(f.B[i]-expectB[i])>1e-12 { t.Errorf("b[%d]=%v; want %v", i, f.B[i], expectB[i]) }
	}
	for i:=range expectA {
		if math.Abs(f.A[i]-expectA[i])>1e-12 { t.Errorf("a[%d]=%v; want %v", i, f.A[i], expectA[i]) }
	}
}


func TestButterworthRejectsBadParams(t *testing.T) {
	if _,err:=NewButterworthLowPass(0, 0.5); err==nil { t.Errorf("order 0 accepted") }
	if _,err:=NewButterworthLowPass(2, 0); err==nil { t.Errorf("cutoff 0 accepted") }
	if _,err:=NewButterworthLowPass(2, 1); err==nil { t.Errorf("cutoff 1 accepted") }
}


func TestFiltFiltPreservesConstant(t *testing.T) {
	f,err:=NewButterworthLowPass(3, 0.2)
	if err!=nil { t.Fatalf("design failed: %v", err) }
	x:=make([]float64, 100)
	for i:=range x { x[i]=2.5 }
	y,err:=f.FiltFilt(x)
	if err!=nil { t.Fatalf("filtfilt failed: %v", err) }
	if len(y)!=len(x) { t.Fatalf("len=%d; want %d", len(y), len(x)) }
	for i,v:=range y {
		if math.Abs(v-2.5)>1e-9 { t.Errorf("y[%d]=%v; want 2.5", i, v) }
	}
}


func TestFiltFiltRemovesHighFrequency(t *testing.T) {
	f,err:=NewButterworthLowPass(4, 0.1)
	if err!=nil { t.Fatalf("design failed: %v", err) }
	x:=make([]float64, 200)
	for i:=range x {
		x[i]=1.0+math.Sin(2*math.Pi*0.45*float64(i)) // near-Nyquist ripple on a DC level
	}
	y,err:=f.FiltFilt(x)
	if err!=nil { t.Fatalf("filtfilt failed: %v", err) }
	for i:=20; i<len(y)-20; i++ {
		if math.Abs(y[i]-1.0)>0.02 { t.Errorf("y[%d]=%v; want near 1.0", i, y[i]) }
	}
}


func TestFiltFiltTooShort(t *testing.T) {
	f,_:=NewButterworthLowPass(6, 0.2)
	if _,err:=f.FiltFilt(make([]float64, 10)); err==nil { t.Errorf("short signal accepted") }
}


func TestAutocovarianceMatchesDirect(t *testing.T) {
	seq:=[]float64{1, 2, -1, 3, 0.5, -2, 1.5, 0}
	ac:=NewAutoCorrelator(len(seq))
	got:=make([]float64, len(seq))
	ac.Autocovariance(seq, got)
	for lag:=0; lag<len(seq); lag++ {
		want:=0.0
		for i:=0; i+lag<len(seq); i++ { want+=seq[i]*seq[i+lag] }
		if math.Abs(got[lag]-want)>1e-9 {
			t.Errorf("acv[%d]=%v; want %v", lag, got[lag], want)
		}
	}
}


func TestNormalizedZeroLag(t *testing.T) {
	seq:=[]float64{0.3, -0.1, 0.7, 0.2, -0.4, 0.6}
	ac:=NewAutoCorrelator(len(seq))
	got:=make([]float64, len(seq))
	ac.Normalized(seq, got)
	if math.Abs(got[0]-1)>1e-12 { t.Errorf("acf[0]=%v; want 1", got[0]) }
}


func TestFFTMagnitudeParseval(t *testing.T) {
	n:=100
	seq:=make([]float64, n)
	for i:=range seq {
		seq[i]=math.Sin(2*math.Pi*5*float64(i)/float64(n))
	}
	mean:=0.0
	for _,v:=range seq { mean+=v }
	mean/=float64(n)
	rms:=0.0
	for i:=range seq {
		seq[i]-=mean
		rms+=seq[i]*seq[i]
	}
	rms=math.Sqrt(rms/float64(n))

	fm:=NewFFTMagnitude(n, false)
	mag:=make([]float64, fm.Bins())
	fm.Magnitude(seq, mag)

	sumSq:=0.0
	for _,m:=range mag { sumSq+=m*m }
	got:=math.Sqrt(sumSq*float64(n)/float64(fm.Bins()))
	if math.Abs(got-rms)/rms>0.01 {
		t.Errorf("rms from fft magnitude=%v; want %v", got, rms)
	}
}


func TestFFTMagnitudeParsevalWithHann(t *testing.T) {
	// power normalization keeps the Parseval identity under windowing
	n:=100
	seq:=make([]float64, n)
	for i:=range seq {
		seq[i]=math.Sin(2*math.Pi*8*float64(i)/float64(n))+0.5*math.Sin(2*math.Pi*3*float64(i)/float64(n))
	}
	rms:=0.0
	for _,v:=range seq { rms+=v*v }
	rms=math.Sqrt(rms/float64(n))

	fm:=NewFFTMagnitude(n, true)
	mag:=make([]float64, fm.Bins())
	fm.Magnitude(seq, mag)

	sumSq:=0.0
	for _,m:=range mag { sumSq+=m*m }
	got:=math.Sqrt(sumSq*float64(n)/float64(fm.Bins()))
	if math.Abs(got-rms)/rms>0.05 {
		t.Errorf("rms from windowed fft magnitude=%v; want %v", got, rms)
	}
}


func TestPolyDetrendRemovesPolynomial(t *testing.T) {
	xs:=make([]float64, 50)
	ys:=make([]float64, 50)
	for i:=range xs {
		x:=6.0+0.1*float64(i)
		xs[i]=x
		ys[i]=3+2*x+0.5*x*x
	}
	d,err:=NewPolyDetrender(xs, 2)
	if err!=nil { t.Fatalf("detrender failed: %v", err) }
	scratch:=make([]float64, len(ys))
	d.Detrend(ys, scratch)
	for i,v:=range ys {
		if math.Abs(v)>1e-6 { t.Errorf("residual[%d]=%v; want 0", i, v) }
	}
}


func TestPolyDetrendRejectsShortSignals(t *testing.T) {
	xs:=[]float64{1, 2, 3}
	if _,err:=NewPolyDetrender(xs, 2); err==nil { t.Errorf("order 2 on 3 samples accepted") }
}
