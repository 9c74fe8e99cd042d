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

	"github.com/backmanlab/pwsgo/internal/cube"
	"github.com/backmanlab/pwsgo/internal/reflectance"
	"github.com/backmanlab/pwsgo/internal/sigproc"
)

// Sigma in µm of the Gaussian blur applied to reference acquisitions
// to suppress dust particles
const refDustSigmaUm=0.75

// Constants of the legacy mass-scaling model relating RMS and
// autocorrelation slope to the characteristic length Ld. ldA1 was
// determined experimentally; its provenance is not well documented.
const (
	ldWavelengthUm=0.55
	ldA1          =0.008
	ldA2          =4.0
)

// A spectral analysis pipeline bound to a prepared reference
// acquisition. Construct once per reference, then Run any number of
// cubes against it.
type PWSAnalysis struct {
	Settings *PWSSettings

	ref          *cube.ImageCube
	iextra       *cube.ExtraReflectionCube
	initWarnings []Warning
}

// Prepares a reference acquisition and optional extra reflectance
// calibration for analysis. The reference is camera corrected,
// exposure normalized, dust filtered, corrected for extra reflection
// and, unless relative units are requested, scaled to physical
// reflectance using the theoretical reflectance of the reference
// material against glass.
func NewPWSAnalysis(settings *PWSSettings, er *cube.ExtraReflectanceCube, ref *cube.ImageCube) (*PWSAnalysis, error) {
	if err:=settings.Validate(); err!=nil { return nil, err }
	a:=&PWSAnalysis{Settings: settings}

	if err:=prepareCube(ref, settings.CameraCorrection); err!=nil { return nil, err }
	if ref.Meta.PixelSizeUm>0 {
		if err:=ref.FilterDust(refDustSigmaUm); err!=nil { return nil, err }
	}

	theoryR:=make([]float64, ref.Bands())
	if settings.ReferenceMaterial==reflectance.MaterialNone {
		if er!=nil { return nil, fmt.Errorf("extra reflectance calibration requires a reference material") }
		for i:=range theoryR { theoryR[i]=1 }
		a.initWarnings=append(a.initWarnings, Warning{
			Short: "Ignoring reference material",
			Long:  "No reference material given; results are in arbitrary units and extra reflection subtraction cannot be performed",
		})
	} else {
		var err error
		theoryR,err=reflectance.Reflectance(settings.ReferenceMaterial, reflectance.MaterialGlass, ref.Wavelengths, settings.NumericalAperture)
		if err!=nil { return nil, err }
	}

	if er!=nil {
		if er.NumericalAperture!=settings.NumericalAperture {
			a.initWarnings=append(a.initWarnings, Warning{
				Short: "NA mismatch",
				Long:  fmt.Sprintf("The analysis numerical aperture %g does not match the extra reflectance calibration NA %g", settings.NumericalAperture, er.NumericalAperture),
			})
		}
		iextra,err:=cube.NewExtraReflectionCube(er, theoryR, ref)
		if err!=nil { return nil, err }
		if err:=ref.SubtractExtraReflection(iextra); err!=nil { return nil, err }
		a.iextra=iextra
	} else {
		a.initWarnings=append(a.initWarnings, Warning{
			Short: "Ignoring extra reflection correction",
			Long:  "No extra reflectance calibration given; internal reflections of the system remain in the data",
		})
	}

	if !settings.RelativeUnits {
		// scale the reference so normalization yields physical reflectance
		n:=ref.Bands()
		for p:=0; p<ref.Pixels(); p++ {
			spec:=ref.Spectrum(p)
			for i:=0; i<n; i++ { spec[i]/=float32(theoryR[i]) }
		}
	}
	a.ref=ref
	return a, nil
}

// Runs the full spectral analysis on one acquisition. The cube is
// modified in place during normalization. Warnings accompany the
// results; an error aborts the run.
func (a *PWSAnalysis) Run(c *cube.ImageCube) (*PWSResults, []Warning, error) {
	warns:=append([]Warning{}, a.initWarnings...)

	if err:=prepareCube(c, a.Settings.CameraCorrection); err!=nil { return nil, nil, err }
	if a.iextra!=nil {
		if err:=c.SubtractExtraReflection(a.iextra); err!=nil { return nil, nil, err }
	}
	normWarns,err:=c.NormalizeByReference(a.ref)
	if err!=nil { return nil, nil, err }
	for _,w:=range normWarns {
		warns=append(warns, Warning{Short: "Reference normalization", Long: w})
	}

	if a.Settings.FilterCutoff>0 {
		if err:=a.filterSpectra(c); err!=nil { return nil, nil, err }
	}

	c,err=c.SelWavelengths(a.Settings.WavelengthStart, a.Settings.WavelengthStop)
	if err!=nil { return nil, nil, err }
	meanReflectance:=c.MeanPerPixel()

	k,err:=cube.NewKCubeFromImageCube(c)
	if err!=nil { return nil, nil, err }
	if a.Settings.WaveNumberCutoff>0 {
		if err:=filterWavenumber(k, a.Settings.WaveNumberCutoff); err!=nil { return nil, nil, err }
	}
	polyRMS,err:=k.PolySubtract(a.Settings.PolynomialOrder)
	if err!=nil { return nil, nil, err }

	rms:=k.RMSPerPixel()

	res:=&PWSResults{
		Time:            time.Now().Format(time.RFC3339),
		Settings:        *a.Settings,
		CubeIDTag:       c.Meta.IDTag,
		ReferenceIDTag:  a.ref.Meta.IDTag,
		Reflectance:     k,
		MeanReflectance: meanReflectance,
		RMS:             rms,
	}
	if a.iextra!=nil { res.ExtraReflectionIDTag=a.iextra.IDTag }

	if !a.Settings.SkipAdvanced {
		slope,rsq,err:=k.GetAutoCorrelation(a.Settings.AutoCorrMinSub, a.Settings.AutoCorrStopIndex)
		if err!=nil { return nil, nil, err }
		res.PolynomialRMS=polyRMS
		res.AutoCorrelationSlope=slope
		res.RSquared=rsq
		res.Ld=calculateLd(rms, slope)
	}

	res.Warnings=warns
	return res, warns, nil
}

// Applies the settings' camera correction (falling back to the cube's
// own metadata) and exposure normalization, skipping steps already done
func prepareCube(c *cube.ImageCube, cc *cube.CameraCorrection) error {
	if !c.Status.CameraCorrected {
		if cc!=nil { c.Meta.Camera=cc }
		if err:=c.CorrectCameraEffects(); err!=nil { return err }
	}
	if !c.Status.ExposureNormalized {
		if err:=c.NormalizeByExposure(); err!=nil { return err }
	}
	return nil
}

// Low-pass filters every pixel's spectrum along the wavelength axis
// for denoising. The cutoff is in 1/nm; the sample rate follows from
// the wavelength spacing.
func (a *PWSAnalysis) filterSpectra(c *cube.ImageCube) error {
	n:=c.Bands()
	interval:=(c.Wavelengths[n-1]-c.Wavelengths[0])/float64(n-1)
	wn:=2*a.Settings.FilterCutoff*interval // cutoff relative to Nyquist
	if wn>=1 {
		return fmt.Errorf("filter cutoff %g 1/nm is at or above the Nyquist frequency for %g nm spacing", a.Settings.FilterCutoff, interval)
	}
	filt,err:=sigproc.NewButterworthLowPass(a.Settings.FilterOrder, wn)
	if err!=nil { return err }

	seq:=make([]float64, n)
	for p:=0; p<c.Pixels(); p++ {
		spec:=c.Spectrum(p)
		for i,v:=range spec { seq[i]=float64(v) }
		out,err:=filt.FiltFilt(seq)
		if err!=nil { return err }
		for i,v:=range out { spec[i]=float32(v) }
	}
	return nil
}

// Low-pass filters every pixel's spectrum along the wavenumber axis,
// removing oscillations from optical path differences above the cutoff
// (in µm). Always second order.
func filterWavenumber(k *cube.KCube, cutoff float64) error {
	n:=k.Bands()
	interval:=(k.Wavenumbers[n-1]-k.Wavenumbers[0])/float64(n-1)
	sampleFreq:=2*math.Pi/interval // in µm of optical path difference
	wn:=2*cutoff/sampleFreq
	if wn>=1 {
		return fmt.Errorf("wavenumber cutoff %g µm is at or above the Nyquist frequency for %g rad/µm spacing", cutoff, interval)
	}
	filt,err:=sigproc.NewButterworthLowPass(2, wn)
	if err!=nil { return err }

	seq:=make([]float64, n)
	for p:=0; p<k.Pixels(); p++ {
		spec:=k.Spectrum(p)
		for i,v:=range spec { seq[i]=float64(v) }
		out,err:=filt.FiltFilt(seq)
		if err!=nil { return err }
		for i,v:=range out { spec[i]=float32(v) }
	}
	return nil
}

// The characteristic length of the legacy mass-scaling model, derived
// from the RMS and autocorrelation slope maps
func calculateLd(rms, slope []float32) []float32 {
	k:=2*math.Pi/ldWavelengthUm
	fact:=1.38*1.38/2/k/k
	ld:=make([]float32, len(rms))
	for i:=range ld {
		ld[i]=float32((ldA2/ldA1)*fact)*(rms[i]/-slope[i])
	}
	return ld
}
