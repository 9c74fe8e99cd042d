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
	"math/cmplx"

	"gonum.org/v1/gonum/integrate"
)

// Number of aperture samples for the disc integration
const naSamples=1000

// Fresnel reflectance of a single interface for one aperture coordinate.
// The aperture coordinate na=n*sin(theta) is invariant across the
// interface. Returns the mean of the TE and TM polarizations.
func fresnel(n1, n2 complex128, na float64) float64 {
	sin1:=complex(na, 0)/n1
	sin2:=complex(na, 0)/n2
	cos1:=cmplx.Sqrt(1-sin1*sin1)
	cos2:=cmplx.Sqrt(1-sin2*sin2)

	rTE:=(n1*cos1-n2*cos2)/(n1*cos1+n2*cos2)
	rTM:=(n1/cos1-n2/cos2)/(n1/cos1+n2/cos2)

	te:=cmplx.Abs(rTE)
	tm:=cmplx.Abs(rTM)
	return (te*te+tm*tm)/2
}

// Theoretical reflectance of the interface between two materials at the
// given wavelengths in nm. With NA=0 this is the normal-incidence Fresnel
// reflectance; with NA>0 the reflectance is integrated over the
// illumination disc with the annulus weight 2*pi*na, matching what the
// objective collects.
func Reflectance(matA, matB Material, wavelengths []float64, na float64) ([]float64, error) {
	if na<0 || na>=1 { return nil, fmt.Errorf("numerical aperture %f outside [0,1)", na) }
	n1s,err:=RefractiveIndex(matA, wavelengths)
	if err!=nil { return nil, err }
	n2s,err:=RefractiveIndex(matB, wavelengths)
	if err!=nil { return nil, err }

	res:=make([]float64, len(wavelengths))
	if na==0 {
		for i:=range wavelengths {
			res[i]=fresnel(n1s[i], n2s[i], 0)
		}
	} else {
		nas:=make([]float64, naSamples)
		weights:=make([]float64, naSamples)
		weighted:=make([]float64, naSamples)
		step:=na/float64(naSamples-1)
		for j:=range nas {
			nas[j]=float64(j)*step
			weights[j]=2*math.Pi*nas[j]
		}
		area:=integrate.Trapezoidal(nas, weights)
		for i:=range wavelengths {
			for j,v:=range nas {
				weighted[j]=fresnel(n1s[i], n2s[i], v)*weights[j]
			}
			res[i]=integrate.Trapezoidal(nas, weighted)/area
		}
	}

	for i,r:=range res {
		if r!=r || r<0 || r>1 {
			return nil, fmt.Errorf("computed reflectance %v at %g nm outside [0,1]", r, wavelengths[i])
		}
	}
	return res, nil
}
