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


package stats

import (
	"math"
	"testing"
	"github.com/valyala/fastrand"
)


func TestBasicStats(t *testing.T) {
	data:=[]float32{2,4,4,4,5,5,7,9}
	s:=CalcBasicStats(data)
	if s.Min!=2 { t.Errorf("min=%v; want 2", s.Min) }
	if s.Max!=9 { t.Errorf("max=%v; want 9", s.Max) }
	if s.Mean!=5 { t.Errorf("mean=%v; want 5", s.Mean) }
	if math.Abs(float64(s.StdDev-2))>1e-6 { t.Errorf("stdDev=%v; want 2", s.StdDev) }
}


func TestMedian(t *testing.T) {
	rng:=fastrand.RNG{}
	for i:=1; i<1000; i+=2 {
		// prepare array of given length with a random permutation of 1..n
		arr:=make([]float32, i)
		for j:=0; j<len(arr); j++ {
			arr[j]=float32(j+1)
		}
		for j:=0; j<len(arr); j++ {
			k:=rng.Uint32n(uint32(len(arr)))
			arr[j], arr[k] = arr[k], arr[j]
		}

		expect:=float32((i+1)/2)
		res:=QSelectMedianFloat32(arr)
		if res!=expect {
			t.Logf("median(1..%d) got %f expect %f\n", i ,res, expect)
			t.Fail()
		}
	}
}


func TestFastApproxMedian(t *testing.T) {
	data:=make([]float32, 100000)
	for i,_:=range data { data[i]=float32(i) }
	samples:=make([]float32, 8191)
	med:=FastApproxMedian(data, samples)
	if med<40000 || med>60000 {
		t.Errorf("approx median=%v; want near 50000", med)
	}
}
