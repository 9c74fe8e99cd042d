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
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/backmanlab/pwsgo/internal/cube"
	"github.com/backmanlab/pwsgo/internal/reflectance"
)

// Settings for a spectral analysis run. Wavelengths are in nm,
// FilterCutoff is in 1/nm and WaveNumberCutoff is in µm of optical
// path difference; zero values disable the respective filter.
type PWSSettings struct {
	FilterOrder        int                    `json:"filterOrder"         yaml:"filterOrder"`
	FilterCutoff       float64                `json:"filterCutoff"        yaml:"filterCutoff"`
	PolynomialOrder    int                    `json:"polynomialOrder"     yaml:"polynomialOrder"`
	ExtraReflectanceID string                 `json:"extraReflectanceId"  yaml:"extraReflectanceId"`
	ReferenceMaterial  reflectance.Material   `json:"referenceMaterial"   yaml:"referenceMaterial"`
	WavelengthStart    float64                `json:"wavelengthStart"     yaml:"wavelengthStart"`
	WavelengthStop     float64                `json:"wavelengthStop"      yaml:"wavelengthStop"`
	SkipAdvanced       bool                   `json:"skipAdvanced"        yaml:"skipAdvanced"`
	AutoCorrStopIndex  int                    `json:"autoCorrStopIndex"   yaml:"autoCorrStopIndex"`
	AutoCorrMinSub     cube.MinSubMode        `json:"autoCorrMinSub"      yaml:"autoCorrMinSub"`
	NumericalAperture  float64                `json:"numericalAperture"   yaml:"numericalAperture"`
	RelativeUnits      bool                   `json:"relativeUnits"       yaml:"relativeUnits"`
	CameraCorrection   *cube.CameraCorrection `json:"cameraCorrection,omitempty" yaml:"cameraCorrection,omitempty"`
	WaveNumberCutoff   float64                `json:"waveNumberCutoff"    yaml:"waveNumberCutoff"`
}

func NewPWSSettingsDefaults() *PWSSettings {
	return &PWSSettings{
		FilterOrder:       6,
		FilterCutoff:      0.15,
		PolynomialOrder:   0,
		ReferenceMaterial: reflectance.MaterialGlass,
		WavelengthStart:   500,
		WavelengthStop:    700,
		AutoCorrStopIndex: 8,
		AutoCorrMinSub:    cube.MinSubCube,
		NumericalAperture: 0.52,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (s *PWSSettings) UnmarshalJSON(data []byte) error {
	type defaults PWSSettings
	def:=defaults(*NewPWSSettingsDefaults())
	if err:=json.Unmarshal(data, &def); err!=nil { return err }
	*s=PWSSettings(def)
	return nil
}

// Unmarshal the type from YAML with default values for missing entries
func (s *PWSSettings) UnmarshalYAML(value *yaml.Node) error {
	type defaults PWSSettings
	def:=defaults(*NewPWSSettingsDefaults())
	if err:=value.Decode(&def); err!=nil { return err }
	*s=PWSSettings(def)
	return nil
}

func (s *PWSSettings) Validate() error {
	if s.FilterCutoff<0 { return fmt.Errorf("filter cutoff %g must not be negative", s.FilterCutoff) }
	if s.FilterCutoff>0 && s.FilterOrder<1 { return fmt.Errorf("filter order %d must be at least 1 when filtering is enabled", s.FilterOrder) }
	if s.PolynomialOrder<0 { return fmt.Errorf("polynomial order %d must not be negative", s.PolynomialOrder) }
	if s.WavelengthStart<=0 || s.WavelengthStop<=s.WavelengthStart {
		return fmt.Errorf("wavelength range [%g, %g] nm is invalid", s.WavelengthStart, s.WavelengthStop)
	}
	if s.AutoCorrStopIndex<2 { return fmt.Errorf("autocorrelation stop index %d must be at least 2", s.AutoCorrStopIndex) }
	if s.AutoCorrMinSub<cube.MinSubNone || s.AutoCorrMinSub>cube.MinSubPixel {
		return fmt.Errorf("unknown autocorrelation min subtraction mode %d", s.AutoCorrMinSub)
	}
	if s.NumericalAperture<0 || s.NumericalAperture>=1 {
		return fmt.Errorf("numerical aperture %g must be in [0, 1)", s.NumericalAperture)
	}
	if s.WaveNumberCutoff<0 { return fmt.Errorf("wavenumber cutoff %g must not be negative", s.WaveNumberCutoff) }
	if s.ReferenceMaterial=="" { return fmt.Errorf("reference material must be set") }
	return nil
}

// Settings for a dynamics analysis run.
type DynSettings struct {
	ExtraReflectanceID        string                 `json:"extraReflectanceId"        yaml:"extraReflectanceId"`
	ReferenceMaterial         reflectance.Material   `json:"referenceMaterial"         yaml:"referenceMaterial"`
	NumericalAperture         float64                `json:"numericalAperture"         yaml:"numericalAperture"`
	RelativeUnits             bool                   `json:"relativeUnits"             yaml:"relativeUnits"`
	CameraCorrection          *cube.CameraCorrection `json:"cameraCorrection,omitempty" yaml:"cameraCorrection,omitempty"`
	DiffusionRegressionLength int                    `json:"diffusionRegressionLength" yaml:"diffusionRegressionLength"`
}

func NewDynSettingsDefaults() *DynSettings {
	return &DynSettings{
		ReferenceMaterial:         reflectance.MaterialWater,
		NumericalAperture:         0.52,
		DiffusionRegressionLength: 3,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (s *DynSettings) UnmarshalJSON(data []byte) error {
	type defaults DynSettings
	def:=defaults(*NewDynSettingsDefaults())
	if err:=json.Unmarshal(data, &def); err!=nil { return err }
	*s=DynSettings(def)
	return nil
}

// Unmarshal the type from YAML with default values for missing entries
func (s *DynSettings) UnmarshalYAML(value *yaml.Node) error {
	type defaults DynSettings
	def:=defaults(*NewDynSettingsDefaults())
	if err:=value.Decode(&def); err!=nil { return err }
	*s=DynSettings(def)
	return nil
}

func (s *DynSettings) Validate() error {
	if s.DiffusionRegressionLength<=0 || s.DiffusionRegressionLength>=20 {
		return fmt.Errorf("diffusion regression length %d must be in (0, 20)", s.DiffusionRegressionLength)
	}
	if s.NumericalAperture<0 || s.NumericalAperture>=1 {
		return fmt.Errorf("numerical aperture %g must be in [0, 1)", s.NumericalAperture)
	}
	if s.ReferenceMaterial=="" { return fmt.Errorf("reference material must be set") }
	return nil
}
