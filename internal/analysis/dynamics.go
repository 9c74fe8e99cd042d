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


package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/backmanlab/pwsgo/internal/cube"
	"github.com/backmanlab/pwsgo/internal/reflectance"
)

// Average refractive index assumed for the intracellular medium
const nMedium=1.37

// A dynamics analysis pipeline bound to a prepared reference
// acquisition. The reference's image-averaged autocorrelation serves
// as the noise floor subtracted from every analyzed cube.
type DynAnalysis struct {
	Settings *DynSettings

	refMean      []float32 // time-mean of the reference, per pixel
	refAc        []float64 // image-averaged reference autocorrelation, regression length+1 lags
	iextra       []float32 // extra reflection map in counts/ms, nil when uncorrected
	refTag, erTag string
	initWarnings []Warning
}

// Prepares a reference dynamics acquisition and optional extra
// reflectance calibration. The reference must already be camera
// corrected; it is exposure normalized, dust filtered, corrected for
// extra reflection at the acquisition wavelength, scaled to physical
// reflectance unless relative units are requested, and reduced to its
// time-mean map and image-averaged autocorrelation.
func NewDynAnalysis(settings *DynSettings, er *cube.ExtraReflectanceCube, ref *cube.DynCube) (*DynAnalysis, error) {
	if err:=settings.Validate(); err!=nil { return nil, err }
	a:=&DynAnalysis{Settings: settings, refTag: ref.Meta.IDTag}

	if !ref.Status.CameraCorrected {
		if settings.CameraCorrection!=nil { ref.Meta.Camera=settings.CameraCorrection }
		if err:=ref.CorrectCameraEffects(); err!=nil { return nil, err }
	}
	if !ref.Status.ExposureNormalized {
		if err:=ref.NormalizeByExposure(); err!=nil { return nil, err }
	}
	if ref.Meta.PixelSizeUm>0 {
		if err:=ref.FilterDust(refDustSigmaUm); err!=nil { return nil, err }
	}

	theoryR:=1.0
	if settings.ReferenceMaterial==reflectance.MaterialNone {
		if er!=nil { return nil, fmt.Errorf("extra reflectance calibration requires a reference material") }
		a.initWarnings=append(a.initWarnings, Warning{
			Short: "Ignoring reference material",
			Long:  "No reference material given; dynamics results are in arbitrary units",
		})
	} else {
		r,err:=reflectance.Reflectance(settings.ReferenceMaterial, reflectance.MaterialGlass, []float64{ref.Wavelength}, settings.NumericalAperture)
		if err!=nil { return nil, err }
		theoryR=r[0]
	}

	if er!=nil {
		if er.NumericalAperture!=settings.NumericalAperture {
			a.initWarnings=append(a.initWarnings, Warning{
				Short: "NA mismatch",
				Long:  fmt.Sprintf("The analysis numerical aperture %g does not match the extra reflectance calibration NA %g", settings.NumericalAperture, er.NumericalAperture),
			})
		}
		iextra,err:=cube.NewExtraReflectionMap(er, ref.Wavelength, theoryR, ref.MeanPerPixel())
		if err!=nil { return nil, err }
		if err:=ref.SubtractExtraReflection(iextra); err!=nil { return nil, err }
		a.iextra=iextra
		a.erTag=er.IDTag
	} else {
		a.initWarnings=append(a.initWarnings, Warning{
			Short: "Ignoring extra reflection correction",
			Long:  "No extra reflectance calibration given; internal reflections of the system remain in the data",
		})
	}

	if !settings.RelativeUnits {
		factor:=float32(1.0/theoryR)
		for i:=range ref.Data { ref.Data[i]*=factor }
	}

	// normalize so the reference time-mean is 1, then average its
	// autocorrelation over the image to estimate the noise floor
	a.refMean=ref.MeanPerPixel()
	if err:=ref.NormalizeByMap(a.refMean); err!=nil { return nil, err }
	lags:=settings.DiffusionRegressionLength+1
	if lags>ref.Frames() {
		return nil, fmt.Errorf("diffusion regression length %d needs %d frames, reference has %d", settings.DiffusionRegressionLength, lags, ref.Frames())
	}
	refAcAll:=ref.GetAutocorrelation()
	a.refAc=make([]float64, lags)
	for p:=0; p<ref.Pixels(); p++ {
		for i:=0; i<lags; i++ { a.refAc[i]+=refAcAll[p*ref.Frames()+i] }
	}
	for i:=range a.refAc { a.refAc[i]/=float64(ref.Pixels()) }
	return a, nil
}

// Runs the dynamics analysis on one acquisition. The cube must already
// be camera corrected; it is modified in place during normalization.
func (a *DynAnalysis) Run(c *cube.DynCube) (*DynResults, []Warning, error) {
	if !c.Status.CameraCorrected { return nil, nil, &cube.ErrNotYetApplied{Step:"dynamics analysis", Requires:"cameraCorrection"} }
	warns:=append([]Warning{}, a.initWarnings...)

	if !c.Status.ExposureNormalized {
		if err:=c.NormalizeByExposure(); err!=nil { return nil, nil, err }
	}
	if a.iextra!=nil {
		if err:=c.SubtractExtraReflection(a.iextra); err!=nil { return nil, nil, err }
	}
	if err:=c.NormalizeByMap(a.refMean); err!=nil { return nil, nil, err }

	nFrames, nPix:=c.Frames(), c.Pixels()
	lags:=a.Settings.DiffusionRegressionLength+1
	if lags>nFrames {
		return nil, nil, fmt.Errorf("diffusion regression length %d needs %d frames, cube has %d", a.Settings.DiffusionRegressionLength, lags, nFrames)
	}
	acAll:=c.GetAutocorrelation()

	meanReflectance:=c.MeanPerPixel()
	imgMean:=float64(0)
	for _,v:=range meanReflectance { imgMean+=float64(v) }
	imgMean/=float64(nPix)
	if w,ok:=CheckMeanReflectance(imgMean); ok { warns=append(warns, w) }

	rmsTSq:=make([]float32, nPix)
	diffusion:=make([]float32, nPix)
	mask:=make([]bool, nPix)

	dt:=(c.Times[nFrames-1]-c.Times[0])/float64(nFrames-1)/1e3 // seconds
	k:=nMedium*2*math.Pi/(c.Wavelength/1e3)                    // rad/µm
	ts:=make([]float64, lags)
	for i:=range ts { ts[i]=float64(i)*dt }

	ac:=make([]float64, lags)
	snrFloor:=math.Sqrt2*a.refAc[0]
	for p:=0; p<nPix; p++ {
		pa:=acAll[p*nFrames : p*nFrames+lags]

		d:=pa[0]-a.refAc[0]
		if d<0 { d=0 }
		rmsTSq[p]=float32(d)

		// drop pixels whose signal does not clear the noise floor
		if pa[0]<snrFloor {
			diffusion[p]=float32(math.NaN())
			continue
		}
		// background subtract, normalize to the zero lag, reject
		// non-positive values before taking the logarithm
		zero:=pa[0]-a.refAc[0]
		if zero<=0 {
			diffusion[p]=float32(math.NaN())
			continue
		}
		valid:=true
		for i:=0; i<lags; i++ {
			v:=(pa[i]-a.refAc[i])/zero
			if v<=0 { valid=false; break }
			ac[i]=math.Log(v)/(4*k*k)
		}
		if !valid {
			diffusion[p]=float32(math.NaN())
			continue
		}
		_,slope:=stat.LinearRegression(ts, ac, nil, false)
		diffusion[p]=float32(-slope)
		mask[p]=true
	}

	res:=&DynResults{
		Time:                 time.Now().Format(time.RFC3339),
		Settings:             *a.Settings,
		CubeIDTag:            c.Meta.IDTag,
		ReferenceIDTag:       a.refTag,
		ExtraReflectionIDTag: a.erTag,
		Width:                c.Width,
		Height:               c.Height,
		MeanReflectance:      meanReflectance,
		RMSTSquared:          rmsTSq,
		Diffusion:            diffusion,
		DiffusionMask:        mask,
		Warnings:             warns,
	}
	return res, warns, nil
}
