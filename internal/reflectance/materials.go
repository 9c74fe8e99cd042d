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

	"gonum.org/v1/gonum/interp"
)

// A reference material with a tabulated refractive index
type Material string

const (
	MaterialNone    Material = "none" // no normalization material; theory reflectance of 1
	MaterialGlass   Material = "glass"
	MaterialAir     Material = "air"
	MaterialWater   Material = "water"
	MaterialSilicon Material = "silicon"
	MaterialEthanol Material = "ethanol"
	MaterialIpa     Material = "ipa"
	MaterialITO     Material = "ito"
	MaterialOil1_4  Material = "oil_1_4"
	MaterialOil1_7  Material = "oil_1_7"
)

// Returned when a material is unknown or a wavelength falls outside the
// tabulated range
type MaterialNotFoundError struct {
	Material   Material
	Wavelength float64
}

func (e *MaterialNotFoundError) Error() string {
	if e.Wavelength!=0 {
		return fmt.Sprintf("material %q has no refractive index at %g nm", e.Material, e.Wavelength)
	}
	return fmt.Sprintf("material %q has no refractive index table", e.Material)
}

// Tabulated complex refractive index, sampled every 50nm over 400-1000nm.
// Values are from the dispersion data shipped with the acquisition
// software (N-BK7 for glass, Daimon for water, Ciddor for air).
type indexTable struct {
	n []float64
	k []float64
}

var indexWavelengths=[]float64{400, 450, 500, 550, 600, 650, 700, 750, 800, 850, 900, 950, 1000}

var indexTables=map[Material]indexTable{
	MaterialGlass: {
		n: []float64{1.5308, 1.5253, 1.5214, 1.5185, 1.5163, 1.5145, 1.5131, 1.5119, 1.5108, 1.5099, 1.5091, 1.5084, 1.5078},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
	MaterialAir: {
		n: []float64{1.000298, 1.000295, 1.000293, 1.000292, 1.000291, 1.000290, 1.000289, 1.000288, 1.000288, 1.000287, 1.000287, 1.000287, 1.000286},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
	MaterialWater: {
		n: []float64{1.3390, 1.3364, 1.3345, 1.3331, 1.3320, 1.3310, 1.3304, 1.3297, 1.3291, 1.3285, 1.3280, 1.3275, 1.3270},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
	MaterialSilicon: {
		n: []float64{5.570, 4.670, 4.295, 4.080, 3.940, 3.850, 3.780, 3.730, 3.690, 3.660, 3.630, 3.610, 3.590},
		k: []float64{0.387, 0.145, 0.072, 0.033, 0.020, 0.015, 0.010, 0.007, 0.005, 0.004, 0.003, 0.002, 0.002},
	},
	MaterialEthanol: {
		n: []float64{1.3700, 1.3655, 1.3625, 1.3605, 1.3590, 1.3577, 1.3568, 1.3560, 1.3553, 1.3548, 1.3543, 1.3538, 1.3534},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
	MaterialIpa: {
		n: []float64{1.3840, 1.3800, 1.3772, 1.3752, 1.3736, 1.3724, 1.3714, 1.3706, 1.3699, 1.3693, 1.3688, 1.3684, 1.3680},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
	MaterialITO: {
		n: []float64{2.120, 2.060, 2.000, 1.950, 1.910, 1.870, 1.840, 1.810, 1.790, 1.770, 1.755, 1.740, 1.730},
		k: []float64{0.012, 0.010, 0.009, 0.008, 0.008, 0.009, 0.010, 0.012, 0.014, 0.017, 0.020, 0.024, 0.028},
	},
	MaterialOil1_4: {
		n: []float64{1.4101, 1.4065, 1.4041, 1.4023, 1.4010, 1.4000, 1.3991, 1.3984, 1.3978, 1.3973, 1.3969, 1.3965, 1.3961},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
	MaterialOil1_7: {
		n: []float64{1.7352, 1.7215, 1.7125, 1.7062, 1.7016, 1.6981, 1.6953, 1.6931, 1.6913, 1.6898, 1.6885, 1.6874, 1.6865},
		k: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	},
}

// The complex refractive index of a material at the given wavelengths in
// nm, piecewise-linearly interpolated from the tabulated data
func RefractiveIndex(mat Material, wavelengths []float64) ([]complex128, error) {
	table,ok:=indexTables[mat]
	if !ok { return nil, &MaterialNotFoundError{Material:mat} }

	var nInterp, kInterp interp.PiecewiseLinear
	if err:=nInterp.Fit(indexWavelengths, table.n); err!=nil { return nil, err }
	if err:=kInterp.Fit(indexWavelengths, table.k); err!=nil { return nil, err }

	lo, hi:=indexWavelengths[0], indexWavelengths[len(indexWavelengths)-1]
	res:=make([]complex128, len(wavelengths))
	for i,wl:=range wavelengths {
		if wl<lo || wl>hi { return nil, &MaterialNotFoundError{Material:mat, Wavelength:wl} }
		res[i]=complex(nInterp.Predict(wl), kInterp.Predict(wl))
	}
	return res, nil
}
