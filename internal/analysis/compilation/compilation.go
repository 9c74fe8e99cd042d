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


// Package compilation reduces per-pixel analysis results to per-ROI
// scalar summaries for tabulation across many acquisitions.
package compilation

import (
	"math"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/roi"
)

// A single compiled metric. Valid is false when the underlying result
// field was not produced by the analysis, which is not an error.
type RoiValue struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Minimum coefficient of determination and maximum slope for a pixel's
// autocorrelation fit to count towards the ROI-averaged slope
const (
	slopeMinRSquared=0.9
	slopeMax        =0.0
)

// Selects which metrics a PWS compilation should produce
type PWSCompilerSettings struct {
	Reflectance          bool `json:"reflectance"`
	RMS                  bool `json:"rms"`
	PolynomialRMS        bool `json:"polynomialRms"`
	AutoCorrelationSlope bool `json:"autoCorrelationSlope"`
	RSquared             bool `json:"rSquared"`
	Ld                   bool `json:"ld"`
	OPD                  bool `json:"opd"`
	MeanSigmaRatio       bool `json:"meanSigmaRatio"`
}

// Per-ROI summary of a spectral analysis
type PWSRoiResults struct {
	CellIDTag string   `json:"cellIdTag"`
	RoiName   string   `json:"roiName"`
	RoiNumber int      `json:"roiNumber"`
	Reflectance          RoiValue  `json:"reflectance"`
	RMS                  RoiValue  `json:"rms"`
	PolynomialRMS        RoiValue  `json:"polynomialRms"`
	AutoCorrelationSlope RoiValue  `json:"autoCorrelationSlope"`
	RSquared             RoiValue  `json:"rSquared"`
	Ld                   RoiValue  `json:"ld"`
	OPD                  []float64 `json:"opd,omitempty"`
	OPDIndex             []float64 `json:"opdIndex,omitempty"`
	VarRatio             RoiValue  `json:"varRatio"`
}

type PWSCompiler struct {
	Settings PWSCompilerSettings
}

func NewPWSCompiler(settings PWSCompilerSettings) *PWSCompiler { return &PWSCompiler{Settings: settings} }

// Compiles one ROI against one set of analysis results. Metrics whose
// fields the analysis skipped come back invalid rather than failing the
// whole compilation.
func (c *PWSCompiler) Run(res *analysis.PWSResults, r *roi.ROI) (*PWSRoiResults, []analysis.Warning, error) {
	if res.Reflectance!=nil {
		if err:=r.CheckShape(res.Reflectance.Width, res.Reflectance.Height); err!=nil { return nil, nil, err }
	}
	var warns []analysis.Warning
	out:=&PWSRoiResults{CellIDTag: res.CubeIDTag, RoiName: r.Name, RoiNumber: r.Number}

	if c.Settings.Reflectance {
		out.Reflectance=avgField(res, analysis.FieldMeanReflectance, r, nil)
	}
	if c.Settings.RMS {
		out.RMS=avgField(res, analysis.FieldRMS, r, nil)
	}
	if c.Settings.PolynomialRMS {
		out.PolynomialRMS=avgField(res, analysis.FieldPolynomialRMS, r, nil)
	}
	if c.Settings.AutoCorrelationSlope {
		out.AutoCorrelationSlope=c.compileSlope(res, r)
	}
	if c.Settings.RSquared {
		out.RSquared=avgField(res, analysis.FieldRSquared, r, nil)
		if out.RSquared.Valid {
			if w,ok:=analysis.CheckRSquared(out.RSquared.Value); ok { warns=append(warns, w) }
		}
	}
	if c.Settings.Ld {
		out.Ld=avgField(res, analysis.FieldLd, r, nil)
	}
	if c.Settings.OPD {
		out.OPD, out.OPDIndex=c.compileOPD(res, r)
	}
	if c.Settings.MeanSigmaRatio {
		var w []analysis.Warning
		out.VarRatio, w=c.compileVarRatio(res, r)
		warns=append(warns, w...)
	}
	return out, warns, nil
}

// The ROI-averaged autocorrelation slope, restricted to pixels whose
// fit is trustworthy: R-squared above threshold and a negative slope
func (c *PWSCompiler) compileSlope(res *analysis.PWSResults, r *roi.ROI) RoiValue {
	slope,err:=res.Map(analysis.FieldAutoCorrelationSlope)
	if err!=nil { return RoiValue{} }
	rsq,err:=res.Map(analysis.FieldRSquared)
	if err!=nil { return RoiValue{} }
	cond:=make([]bool, len(slope))
	for i:=range cond {
		cond[i]=rsq[i]>slopeMinRSquared && slope[i]<slopeMax
	}
	return avgOverRoi(r, slope, cond)
}

// The ROI-averaged optical path difference spectrum
func (c *PWSCompiler) compileOPD(res *analysis.PWSResults, r *roi.ROI) (opd, opdIndex []float64) {
	stack, axis, err:=res.OPD(true, 100)
	if err!=nil { return nil, nil }
	bins:=len(axis)
	opd=make([]float64, bins)
	count:=0
	for p:=0; p<len(r.Mask); p++ {
		if !r.Mask[p] { continue }
		for i:=0; i<bins; i++ { opd[i]+=float64(stack[p*bins+i]) }
		count++
	}
	if count==0 { return nil, nil }
	for i:=range opd { opd[i]/=float64(count) }
	return opd, axis
}

// The ratio of the ROI-mean spectrum's variance to the mean per-pixel
// variance, a measure of how much of the sigma signal is shared across
// the ROI rather than subcellular
func (c *PWSCompiler) compileVarRatio(res *analysis.PWSResults, r *roi.ROI) (RoiValue, []analysis.Warning) {
	rms,err:=res.Map(analysis.FieldRMS)
	if err!=nil || res.Reflectance==nil { return RoiValue{}, nil }
	spectra,err:=res.Reflectance.MeanSpectra(r.Mask)
	if err!=nil { return RoiValue{}, nil }

	mean, sumSq:=0.0, 0.0
	for _,v:=range spectra { mean+=v }
	mean/=float64(len(spectra))
	for _,v:=range spectra { sumSq+=(v-mean)*(v-mean) }
	meanVar:=sumSq/float64(len(spectra))

	pixVar, count:=0.0, 0
	for p,m:=range r.Mask {
		if !m { continue }
		pixVar+=float64(rms[p])*float64(rms[p])
		count++
	}
	if count==0 || pixVar==0 { return RoiValue{}, nil }
	ratio:=meanVar/(pixVar/float64(count))

	var warns []analysis.Warning
	if w,ok:=analysis.CheckMeanSpectraRatio(ratio); ok { warns=append(warns, w) }
	return RoiValue{Value: ratio, Valid: true}, warns
}

// Selects which metrics a dynamics compilation should produce
type DynCompilerSettings struct {
	MeanReflectance bool `json:"meanReflectance"`
	RMSTSquared     bool `json:"rms_t_squared"`
	Diffusion       bool `json:"diffusion"`
}

// Per-ROI summary of a dynamics analysis
type DynRoiResults struct {
	CellIDTag string `json:"cellIdTag"`
	RoiName   string `json:"roiName"`
	RoiNumber int    `json:"roiNumber"`
	MeanReflectance RoiValue `json:"meanReflectance"`
	RMSTSquared     RoiValue `json:"rms_t_squared"`
	Diffusion       RoiValue `json:"diffusion"`
}

type DynCompiler struct {
	Settings DynCompilerSettings
}

func NewDynCompiler(settings DynCompilerSettings) *DynCompiler { return &DynCompiler{Settings: settings} }

func (c *DynCompiler) Run(res *analysis.DynResults, r *roi.ROI) (*DynRoiResults, []analysis.Warning, error) {
	if err:=r.CheckShape(res.Width, res.Height); err!=nil { return nil, nil, err }
	out:=&DynRoiResults{CellIDTag: res.CubeIDTag, RoiName: r.Name, RoiNumber: r.Number}
	if c.Settings.MeanReflectance {
		out.MeanReflectance=avgDynField(res, analysis.FieldMeanReflectance, r, nil)
	}
	if c.Settings.RMSTSquared {
		out.RMSTSquared=avgDynField(res, analysis.FieldRMSTSquared, r, nil)
	}
	if c.Settings.Diffusion {
		// diffusion is NaN wherever the SNR mask dropped the pixel;
		// exclude those from the average instead of poisoning it
		out.Diffusion=avgDynField(res, analysis.FieldDiffusion, r, res.DiffusionMask)
	}
	return out, nil, nil
}

// Settings and results for compilation values that do not depend on
// any analysis
type GenericCompilerSettings struct {
	RoiArea bool `json:"roiArea"`
}

type GenericRoiResults struct {
	RoiName   string `json:"roiName"`
	RoiNumber int    `json:"roiNumber"`
	RoiArea   int    `json:"roiArea"`
	HasArea   bool   `json:"hasArea"`
}

type GenericCompiler struct {
	Settings GenericCompilerSettings
}

func NewGenericCompiler(settings GenericCompilerSettings) *GenericCompiler { return &GenericCompiler{Settings: settings} }

func (c *GenericCompiler) Run(r *roi.ROI) *GenericRoiResults {
	out:=&GenericRoiResults{RoiName: r.Name, RoiNumber: r.Number}
	if c.Settings.RoiArea {
		out.RoiArea, out.HasArea=r.Count(), true
	}
	return out
}

func avgField(res *analysis.PWSResults, f analysis.Field, r *roi.ROI, cond []bool) RoiValue {
	m,err:=res.Map(f)
	if err!=nil { return RoiValue{} } // absent fields compile to an invalid value
	return avgOverRoi(r, m, cond)
}

func avgDynField(res *analysis.DynResults, f analysis.Field, r *roi.ROI, cond []bool) RoiValue {
	m,err:=res.Map(f)
	if err!=nil { return RoiValue{} }
	return avgOverRoi(r, m, cond)
}

// The mean of arr over the ROI, restricted to pixels where cond holds
// if cond is non-nil
func avgOverRoi(r *roi.ROI, arr []float32, cond []bool) RoiValue {
	sum, count:=0.0, 0
	for p,m:=range r.Mask {
		if !m || (cond!=nil && !cond[p]) { continue }
		v:=float64(arr[p])
		if math.IsNaN(v) { continue }
		sum+=v
		count++
	}
	if count==0 { return RoiValue{} }
	return RoiValue{Value: sum/float64(count), Valid: true}
}
