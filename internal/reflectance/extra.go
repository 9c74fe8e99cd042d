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
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/backmanlab/pwsgo/internal/cube"
)

// A pair of reference acquisitions of different materials on the same
// system, used to solve for the system's internal reflection. Both cubes
// must be exposure normalized and share shape and wavelengths.
type CubeCombo struct {
	Mat1, Mat2   Material
	Cube1, Cube2 *cube.ImageCube
}

// Diagnostic summary of a single combo's contribution
type ComboSummary struct {
	Mat1, Mat2 Material
	MeanWeight float64   // mean per-element weight
	MeanRextra []float64 // mean extra reflectance spectrum over the mask
	MeanI0     []float64 // mean recovered illumination spectrum over the mask
}

// Solves one combo for the system's extra reflectance:
// Rextra = (T1*d2 - T2*d1)/(d1 - d2) elementwise, with the theoretical
// reflectances T of each material against glass. Degenerate elements
// (d1==d2) produce NaN/Inf and are zeroed with zero weight; out-of-range
// values are clamped to [0,1]. The weight (d1-d2)^2/(d1^2+d2^2) favors
// combos with strong contrast.
func solveCombo(combo CubeCombo, t1, t2 []float64) (rextra, weight []float64, err error) {
	c1, c2:=combo.Cube1, combo.Cube2
	if !c1.Status.ExposureNormalized || !c2.Status.ExposureNormalized {
		return nil, nil, &cube.ErrNotYetApplied{Step:"extraReflectanceSolve", Requires:"exposure normalization of both references"}
	}
	if c1.Width!=c2.Width || c1.Height!=c2.Height || c1.Bands()!=c2.Bands() {
		return nil, nil, fmt.Errorf("combo %s/%s cube shapes differ", combo.Mat1, combo.Mat2)
	}

	n:=c1.Bands()
	rextra=make([]float64, len(c1.Data))
	weight=make([]float64, len(c1.Data))
	for i:=range c1.Data {
		d1:=float64(c1.Data[i])
		d2:=float64(c2.Data[i])
		b:=i%n
		r:=(t1[b]*d2-t2[b]*d1)/(d1-d2)
		w:=(d1-d2)*(d1-d2)/(d1*d1+d2*d2)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			r, w=0, 0
		} else if r<0 {
			r=0
		} else if r>1 {
			r=1
		}
		if math.IsNaN(w) || math.IsInf(w, 0) { w=0 }
		rextra[i]=r
		weight[i]=w
	}
	return rextra, weight, nil
}

// Generates the system's extra reflectance calibration cube from a set of
// reference combos. Combos of the same material pair are combined by
// elementwise weighted mean first, then material pairs are combined
// across, again by weighted mean; a plain mean would let degenerate
// low-contrast combos dilute the estimate. A nil mask uses all pixels for
// the diagnostic summaries.
func GenerateRExtra(combos []CubeCombo, na float64, mask []bool, system, idTag string) (*cube.ExtraReflectanceCube, []ComboSummary, error) {
	if len(combos)==0 { return nil, nil, fmt.Errorf("no reference combos supplied") }
	first:=combos[0].Cube1
	wls:=first.Wavelengths
	n:=len(wls)
	size:=len(first.Data)

	type group struct {
		key        string
		combos     int
		sumRW, sumW []float64
	}
	groups:=map[string]*group{}
	order:=[]string{}
	summaries:=make([]ComboSummary, 0, len(combos))

	for _,combo:=range combos {
		if len(combo.Cube1.Data)!=size || combo.Cube1.Bands()!=n {
			return nil, nil, fmt.Errorf("combo %s/%s shape differs from the first combo", combo.Mat1, combo.Mat2)
		}
		t1,err:=Reflectance(MaterialGlass, combo.Mat1, wls, na)
		if err!=nil { return nil, nil, err }
		t2,err:=Reflectance(MaterialGlass, combo.Mat2, wls, na)
		if err!=nil { return nil, nil, err }

		rextra, weight, err:=solveCombo(combo, t1, t2)
		if err!=nil { return nil, nil, err }

		key:=string(combo.Mat1)+"/"+string(combo.Mat2)
		g:=groups[key]
		if g==nil {
			g=&group{key:key, sumRW:make([]float64, size), sumW:make([]float64, size)}
			groups[key]=g
			order=append(order, key)
		}
		g.combos++
		for i:=range rextra {
			g.sumRW[i]+=rextra[i]*weight[i]
			g.sumW[i]+=weight[i]
		}

		summaries=append(summaries, summarizeCombo(combo, t2, rextra, weight, mask, n))
	}

	// weighted mean across material pairs. Each pair contributes with
	// its mean weight, not its summed weight, so a pair with more
	// combos does not dominate the cross-pair estimate.
	sumRW:=make([]float64, size)
	sumW:=make([]float64, size)
	for _,key:=range order {
		g:=groups[key]
		for i:=range sumRW {
			if g.sumW[i]<=0 { continue }
			mean:=g.sumRW[i]/g.sumW[i]
			w:=g.sumW[i]/float64(g.combos)
			sumRW[i]+=mean*w
			sumW[i]+=w
		}
	}
	data:=make([]float32, size)
	for i:=range data {
		if sumW[i]>0 {
			v:=sumRW[i]/sumW[i]
			if v<0 { v=0 }
			if v>1 { v=1 }
			data[i]=float32(v)
		}
	}

	er,err:=cube.NewExtraReflectanceCube(first.Width, first.Height, wls, data, na, system, idTag)
	if err!=nil { return nil, nil, err }
	return er, summaries, nil
}

// Mean weight, Rextra spectrum and recovered illumination spectrum of one
// combo over the masked pixels
func summarizeCombo(combo CubeCombo, t2, rextra, weight []float64, mask []bool, n int) ComboSummary {
	pixels:=len(rextra)/n
	meanR:=make([]float64, n)
	meanI0:=make([]float64, n)
	count:=0
	for p:=0; p<pixels; p++ {
		if mask!=nil && !mask[p] { continue }
		for b:=0; b<n; b++ {
			i:=p*n+b
			meanR[b]+=rextra[i]
			meanI0[b]+=float64(combo.Cube2.Data[i])/(t2[b]+rextra[i])
		}
		count++
	}
	if count>0 {
		for b:=0; b<n; b++ {
			meanR[b]/=float64(count)
			meanI0[b]/=float64(count)
		}
	}
	return ComboSummary{
		Mat1:       combo.Mat1,
		Mat2:       combo.Mat2,
		MeanWeight: stat.Mean(weight, nil),
		MeanRextra: meanR,
		MeanI0:     meanI0,
	}
}
