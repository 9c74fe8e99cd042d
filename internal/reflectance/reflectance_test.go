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


package reflectance

import (
	"errors"
	"math"
	"testing"

	"github.com/backmanlab/pwsgo/internal/cube"
)

var testWls=[]float64{500, 550, 600, 650}


func TestReflectanceSymmetry(t *testing.T) {
	ab,err:=Reflectance(MaterialGlass, MaterialWater, testWls, 0)
	if err!=nil { t.Fatalf("reflectance failed: %v", err) }
	ba,err:=Reflectance(MaterialWater, MaterialGlass, testWls, 0)
	if err!=nil { t.Fatalf("reflectance failed: %v", err) }
	for i:=range ab {
		if math.Abs(ab[i]-ba[i])>1e-12 {
			t.Errorf("r(glass,water)[%d]=%v != r(water,glass)[%d]=%v", i, ab[i], i, ba[i])
		}
	}
}


func TestReflectanceBounds(t *testing.T) {
	pairs:=[][2]Material{
		{MaterialGlass, MaterialWater},
		{MaterialGlass, MaterialAir},
		{MaterialGlass, MaterialSilicon},
		{MaterialWater, MaterialITO},
		{MaterialEthanol, MaterialOil1_7},
	}
	for _,na:=range []float64{0, 0.52} {
		for _,pair:=range pairs {
			rs,err:=Reflectance(pair[0], pair[1], testWls, na)
			if err!=nil { t.Fatalf("reflectance %v at na %v failed: %v", pair, na, err) }
			for i,r:=range rs {
				if r<0 || r>1 { t.Errorf("r(%v)[%d]=%v at na %v outside [0,1]", pair, i, r, na) }
			}
		}
	}
}


func TestNormalIncidenceMatchesFresnel(t *testing.T) {
	wls:=[]float64{550}
	rs,err:=Reflectance(MaterialGlass, MaterialWater, wls, 0)
	if err!=nil { t.Fatalf("reflectance failed: %v", err) }
	n1s,_:=RefractiveIndex(MaterialGlass, wls)
	n2s,_:=RefractiveIndex(MaterialWater, wls)
	n1, n2:=real(n1s[0]), real(n2s[0])
	want:=(n1-n2)/(n1+n2)
	want*=want
	if math.Abs(rs[0]-want)>1e-12 {
		t.Errorf("r=%v; want %v", rs[0], want)
	}
}


func TestDiscIntegrationStaysClose(t *testing.T) {
	// at moderate NA the disc integral deviates only slightly from
	// normal incidence for a dielectric interface
	r0,err:=Reflectance(MaterialGlass, MaterialWater, testWls, 0)
	if err!=nil { t.Fatalf("reflectance failed: %v", err) }
	rNA,err:=Reflectance(MaterialGlass, MaterialWater, testWls, 0.52)
	if err!=nil { t.Fatalf("reflectance failed: %v", err) }
	for i:=range r0 {
		if math.Abs(rNA[i]-r0[i])/r0[i]>0.5 {
			t.Errorf("disc integral r[%d]=%v far from normal incidence %v", i, rNA[i], r0[i])
		}
	}
}


func TestUnknownMaterial(t *testing.T) {
	var notFound *MaterialNotFoundError
	if _,err:=Reflectance(Material("unobtainium"), MaterialWater, testWls, 0); !errors.As(err, &notFound) {
		t.Errorf("unknown material: got %v; want MaterialNotFoundError", err)
	}
	if _,err:=RefractiveIndex(MaterialWater, []float64{1200}); !errors.As(err, &notFound) {
		t.Errorf("out of range wavelength: got %v; want MaterialNotFoundError", err)
	}
}


func refCube(t *testing.T, wls []float64, values []float64) *cube.ImageCube {
	data:=make([]float32, 2*2*len(wls))
	for p:=0; p<4; p++ {
		for b:=range wls { data[p*len(wls)+b]=float32(values[b]) }
	}
	c,err:=cube.NewImageCube(2, 2, wls, data, cube.Metadata{ExposureMs:100, IDTag:"ref"})
	if err!=nil { t.Fatalf("cube creation failed: %v", err) }
	c.Status.CameraCorrected=true
	c.Status.ExposureNormalized=true
	return c
}


func TestGenerateRExtraRecoversKnownValue(t *testing.T) {
	// synthesize references from a known illumination and extra reflectance
	const i0, rx=200.0, 0.05
	na:=0.52
	tWater,err:=Reflectance(MaterialGlass, MaterialWater, testWls, na)
	if err!=nil { t.Fatalf("theory failed: %v", err) }
	tAir,err:=Reflectance(MaterialGlass, MaterialAir, testWls, na)
	if err!=nil { t.Fatalf("theory failed: %v", err) }

	waterVals:=make([]float64, len(testWls))
	airVals:=make([]float64, len(testWls))
	for i:=range testWls {
		waterVals[i]=(tWater[i]+rx)*i0
		airVals[i]=(tAir[i]+rx)*i0
	}
	combo:=CubeCombo{
		Mat1:  MaterialWater,
		Mat2:  MaterialAir,
		Cube1: refCube(t, testWls, waterVals),
		Cube2: refCube(t, testWls, airVals),
	}

	er, summaries, err:=GenerateRExtra([]CubeCombo{combo}, na, nil, "sys", "er1")
	if err!=nil { t.Fatalf("generate failed: %v", err) }
	for i,v:=range er.Data {
		if math.Abs(float64(v)-rx)>1e-4 {
			t.Errorf("er[%d]=%v; want %v", i, v, rx)
		}
	}
	if len(summaries)!=1 { t.Fatalf("summaries=%d; want 1", len(summaries)) }
	if summaries[0].MeanWeight<=0 { t.Errorf("mean weight=%v; want positive", summaries[0].MeanWeight) }
	for i,v:=range summaries[0].MeanI0 {
		if math.Abs(v-i0)/i0>1e-3 {
			t.Errorf("recovered i0[%d]=%v; want %v", i, v, i0)
		}
	}
}


func TestCrossPairMeanIgnoresComboCount(t *testing.T) {
	// two material pairs with different underlying extra reflectance;
	// duplicating a combo within one pair must not shift the blend
	// towards that pair
	const i0, rxA, rxB=200.0, 0.08, 0.02
	na:=0.52
	tWater,err:=Reflectance(MaterialGlass, MaterialWater, testWls, na)
	if err!=nil { t.Fatalf("theory failed: %v", err) }
	tAir,err:=Reflectance(MaterialGlass, MaterialAir, testWls, na)
	if err!=nil { t.Fatalf("theory failed: %v", err) }

	mkVals:=func(theory []float64, rx float64) []float64 {
		vals:=make([]float64, len(testWls))
		for i:=range testWls { vals[i]=(theory[i]+rx)*i0 }
		return vals
	}
	comboA:=CubeCombo{
		Mat1:  MaterialWater,
		Mat2:  MaterialAir,
		Cube1: refCube(t, testWls, mkVals(tWater, rxA)),
		Cube2: refCube(t, testWls, mkVals(tAir, rxA)),
	}
	comboB:=CubeCombo{
		Mat1:  MaterialAir,
		Mat2:  MaterialWater,
		Cube1: refCube(t, testWls, mkVals(tAir, rxB)),
		Cube2: refCube(t, testWls, mkVals(tWater, rxB)),
	}

	er1, _, err:=GenerateRExtra([]CubeCombo{comboA, comboB}, na, nil, "sys", "er1")
	if err!=nil { t.Fatalf("generate failed: %v", err) }
	er2, _, err:=GenerateRExtra([]CubeCombo{comboA, comboA, comboB}, na, nil, "sys", "er2")
	if err!=nil { t.Fatalf("generate failed: %v", err) }
	for i:=range er1.Data {
		if math.Abs(float64(er1.Data[i])-float64(er2.Data[i]))>1e-6 {
			t.Fatalf("er[%d]=%v vs %v; duplicated combo changed the blend", i, er1.Data[i], er2.Data[i])
		}
	}
	// sanity: the blend genuinely mixes both pairs
	if v:=float64(er1.Data[0]); v<=rxB || v>=rxA {
		t.Errorf("er[0]=%v; want strictly between %v and %v", v, rxB, rxA)
	}
}

func TestDegeneratePairHasZeroWeight(t *testing.T) {
	vals:=[]float64{100, 100, 100, 100}
	combo:=CubeCombo{
		Mat1:  MaterialWater,
		Mat2:  MaterialAir,
		Cube1: refCube(t, testWls, vals),
		Cube2: refCube(t, testWls, vals),
	}
	er, summaries, err:=GenerateRExtra([]CubeCombo{combo}, 0.52, nil, "sys", "er1")
	if err!=nil { t.Fatalf("generate failed: %v", err) }
	if summaries[0].MeanWeight!=0 { t.Errorf("mean weight=%v; want 0", summaries[0].MeanWeight) }
	for i,v:=range er.Data {
		if v!=0 { t.Errorf("er[%d]=%v; want 0 for degenerate pair", i, v) }
	}
}
