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


package roi

import (
	"math"
	"testing"
)

func TestNewROIShapeCheck(t *testing.T) {
	if _,err:=NewROI("nuc", 1, 4, 3, make([]bool, 12)); err!=nil {
		t.Errorf("err=%v; want nil", err)
	}
	if _,err:=NewROI("nuc", 1, 4, 3, make([]bool, 11)); err==nil {
		t.Errorf("err=nil; want shape error")
	}
}

func TestRectROI(t *testing.T) {
	r,err:=NewRectROI("cell", 2, 4, 4, 1,1, 3,3)
	if err!=nil { t.Fatalf("err=%v; want nil", err) }
	if c:=r.Count(); c!=4 {
		t.Errorf("count=%d; want 4", c)
	}
	if !r.Mask[1*4+1] || !r.Mask[2*4+2] || r.Mask[0] || r.Mask[3*4+3] {
		t.Errorf("mask=%v; want [1,3)x[1,3) selected", r.Mask)
	}
	if len(r.Verts)!=4 {
		t.Errorf("verts=%d; want 4", len(r.Verts))
	}
	if _,err:=NewRectROI("cell", 2, 4, 4, 3,0, 2,1); err==nil {
		t.Errorf("err=nil; want error for inverted rectangle")
	}
	if _,err:=NewRectROI("cell", 2, 4, 4, 0,0, 5,1); err==nil {
		t.Errorf("err=nil; want error for out-of-bounds rectangle")
	}
}

func TestCheckShape(t *testing.T) {
	r,_:=NewRectROI("cell", 1, 4, 4, 0,0, 2,2)
	if err:=r.CheckShape(4,4); err!=nil {
		t.Errorf("err=%v; want nil", err)
	}
	if err:=r.CheckShape(4,5); err==nil {
		t.Errorf("err=nil; want shape mismatch")
	}
}

func TestMaskedMeanSkipsNaN(t *testing.T) {
	r,_:=NewROI("n", 1, 2, 2, []bool{true, true, true, false})
	nan:=float32(math.NaN())
	data:=[]float32{1, 3, nan, 100}

	mean,ok:=r.MaskedMean(data)
	if !ok || mean!=2 {
		t.Errorf("mean=%v ok=%v; want 2 true", mean, ok)
	}

	vals:=r.MaskedValues(data)
	if len(vals)!=2 || vals[0]!=1 || vals[1]!=3 {
		t.Errorf("vals=%v; want [1 3]", vals)
	}

	allNaN,_:=NewROI("n", 1, 2, 2, []bool{false, false, true, false})
	if _,ok:=allNaN.MaskedMean(data); ok {
		t.Errorf("ok=true; want false for NaN-only selection")
	}
}
