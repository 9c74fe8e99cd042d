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


package compilation

import (
	"math"
	"testing"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/roi"
)

func testRoi(t *testing.T, mask []bool) *roi.ROI {
	r,err:=roi.NewROI("nucleus", 1, 2, 2, mask)
	if err!=nil { t.Fatalf("roi: %v", err) }
	return r
}

func TestPWSCompilerAverages(t *testing.T) {
	res:=&analysis.PWSResults{
		CubeIDTag:       "cell1",
		MeanReflectance: []float32{1, 2, 3, 4},
		RMS:             []float32{0.1, 0.2, 0.3, 0.4},
	}
	r:=testRoi(t, []bool{true, true, false, false})
	c:=NewPWSCompiler(PWSCompilerSettings{Reflectance: true, RMS: true, PolynomialRMS: true})
	out,_,err:=c.Run(res, r)
	if err!=nil { t.Fatalf("compile failed: %v", err) }
	if !out.Reflectance.Valid || math.Abs(out.Reflectance.Value-1.5)>1e-6 {
		t.Errorf("reflectance=%+v; want 1.5", out.Reflectance)
	}
	if !out.RMS.Valid || math.Abs(out.RMS.Value-0.15)>1e-7 {
		t.Errorf("rms=%+v; want 0.15", out.RMS)
	}
	// polynomialRms was never produced; the metric should come back
	// invalid rather than zero or an error
	if out.PolynomialRMS.Valid { t.Errorf("polynomialRms=%+v; want invalid", out.PolynomialRMS) }
	if out.CellIDTag!="cell1" { t.Errorf("cellIdTag=%q; want cell1", out.CellIDTag) }
}

func TestPWSCompilerConstantRoundTrip(t *testing.T) {
	const c0=0.042
	res:=&analysis.PWSResults{
		RMS: []float32{c0, c0, c0, c0},
	}
	r:=testRoi(t, []bool{true, false, true, true})
	c:=NewPWSCompiler(PWSCompilerSettings{RMS: true})
	out,_,err:=c.Run(res, r)
	if err!=nil { t.Fatalf("compile failed: %v", err) }
	if float32(out.RMS.Value)!=c0 { t.Errorf("rms=%v; want exactly %v", out.RMS.Value, c0) }
}

func TestPWSCompilerSlopeCondition(t *testing.T) {
	res:=&analysis.PWSResults{
		AutoCorrelationSlope: []float32{-1, -2, 3, -4},
		RSquared:             []float32{0.95, 0.5, 0.99, 0.99},
	}
	r:=testRoi(t, []bool{true, true, true, true})
	c:=NewPWSCompiler(PWSCompilerSettings{AutoCorrelationSlope: true})
	out,_,err:=c.Run(res, r)
	if err!=nil { t.Fatalf("compile failed: %v", err) }
	// pixel 1 fails the R-squared gate, pixel 2 has a positive slope
	if !out.AutoCorrelationSlope.Valid || math.Abs(out.AutoCorrelationSlope.Value+2.5)>1e-6 {
		t.Errorf("slope=%+v; want -2.5", out.AutoCorrelationSlope)
	}
}

func TestPWSCompilerRSquaredWarning(t *testing.T) {
	res:=&analysis.PWSResults{
		RSquared: []float32{0.5, 0.5, 0.5, 0.5},
	}
	r:=testRoi(t, []bool{true, true, true, true})
	c:=NewPWSCompiler(PWSCompilerSettings{RSquared: true})
	out,warns,err:=c.Run(res, r)
	if err!=nil { t.Fatalf("compile failed: %v", err) }
	if !out.RSquared.Valid || out.RSquared.Value!=0.5 { t.Errorf("rSquared=%+v; want 0.5", out.RSquared) }
	if len(warns)!=1 { t.Errorf("warnings=%d; want 1 low R-squared advisory", len(warns)) }
}

func TestDynCompilerSkipsNaNDiffusion(t *testing.T) {
	nan:=float32(math.NaN())
	res:=&analysis.DynResults{
		CubeIDTag:     "cell2",
		Width:         2,
		Height:        2,
		Diffusion:     []float32{1, nan, 3, nan},
		DiffusionMask: []bool{true, false, true, false},
		RMSTSquared:   []float32{0.01, 0.02, 0.03, 0.04},
	}
	r:=testRoi(t, []bool{true, true, true, true})
	c:=NewDynCompiler(DynCompilerSettings{Diffusion: true, RMSTSquared: true})
	out,_,err:=c.Run(res, r)
	if err!=nil { t.Fatalf("compile failed: %v", err) }
	if !out.Diffusion.Valid || math.Abs(out.Diffusion.Value-2)>1e-6 {
		t.Errorf("diffusion=%+v; want 2 excluding masked pixels", out.Diffusion)
	}
	if !out.RMSTSquared.Valid || math.Abs(out.RMSTSquared.Value-0.025)>1e-7 {
		t.Errorf("rms_t_squared=%+v; want 0.025", out.RMSTSquared)
	}
}

func TestDynCompilerRejectsMismatchedRoi(t *testing.T) {
	res:=&analysis.DynResults{
		CubeIDTag:     "cell2",
		Width:         2,
		Height:        2,
		Diffusion:     []float32{1, 2, 3, 4},
		DiffusionMask: []bool{true, true, true, true},
	}
	r,err:=roi.NewRectROI("nucleus", 1, 4, 4, 0, 0, 4, 4)
	if err!=nil { t.Fatalf("roi: %v", err) }
	c:=NewDynCompiler(DynCompilerSettings{Diffusion: true})
	if _,_,err:=c.Run(res, r); err==nil {
		t.Errorf("compiled a 4x4 roi against 2x2 maps; want shape error")
	}
}

func TestGenericCompilerArea(t *testing.T) {
	r:=testRoi(t, []bool{true, false, true, false})
	out:=NewGenericCompiler(GenericCompilerSettings{RoiArea: true}).Run(r)
	if !out.HasArea || out.RoiArea!=2 { t.Errorf("roiArea=%+v; want 2", out) }
}
