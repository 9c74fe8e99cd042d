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
	"fmt"
)

// A region of interest over the spatial extent of an image cube.
// The boolean mask is the ground truth; the polygon vertices are a cached
// derived outline kept for display purposes only.
type ROI struct {
	Name   string    `json:"name"`
	Number int       `json:"number"`
	Width  int32     `json:"width"`
	Height int32     `json:"height"`
	Mask   []bool    `json:"mask"`             // row-major, len=Width*Height
	Verts  [][2]float32 `json:"verts,omitempty"` // cached outline, optional
}

// Creates an ROI from a row-major boolean mask
func NewROI(name string, number int, width, height int32, mask []bool) (*ROI, error) {
	if int32(len(mask))!=width*height {
		return nil, fmt.Errorf("roi %s-%d: mask has %d entries for %dx%d image", name, number, len(mask), width, height)
	}
	return &ROI{Name:name, Number:number, Width:width, Height:height, Mask:mask}, nil
}

// Creates a rectangular ROI covering [x0,x1) x [y0,y1)
func NewRectROI(name string, number int, width, height int32, x0,y0,x1,y1 int32) (*ROI, error) {
	if x0<0 || y0<0 || x1>width || y1>height || x0>=x1 || y0>=y1 {
		return nil, fmt.Errorf("roi %s-%d: rectangle [%d,%d)x[%d,%d) outside %dx%d image", name, number, x0,x1, y0,y1, width, height)
	}
	mask:=make([]bool, width*height)
	for y:=y0; y<y1; y++ {
		for x:=x0; x<x1; x++ {
			mask[y*width+x]=true
		}
	}
	r:=&ROI{Name:name, Number:number, Width:width, Height:height, Mask:mask}
	r.Verts=[][2]float32{
		{float32(x0),float32(y0)}, {float32(x1),float32(y0)},
		{float32(x1),float32(y1)}, {float32(x0),float32(y1)},
	}
	return r, nil
}

// Number of selected pixels
func (r *ROI) Count() int {
	n:=0
	for _,m:=range r.Mask {
		if m { n++ }
	}
	return n
}

// Checks the mask matches the given spatial shape
func (r *ROI) CheckShape(width, height int32) error {
	if r.Width!=width || r.Height!=height {
		return fmt.Errorf("roi %s-%d: mask is %dx%d, image is %dx%d", r.Name, r.Number, r.Width, r.Height, width, height)
	}
	return nil
}

// Mean of the masked values of a row-major 2D array.
// NaN entries are ignored; returns ok=false if no valid pixel remains.
func (r *ROI) MaskedMean(data []float32) (mean float32, ok bool) {
	sum, n:=float64(0), 0
	for i,m:=range r.Mask {
		if !m { continue }
		v:=data[i]
		if v!=v { continue } // NaN
		sum+=float64(v)
		n++
	}
	if n==0 { return 0, false }
	return float32(sum/float64(n)), true
}

// Collects the masked values of a row-major 2D array, skipping NaNs
func (r *ROI) MaskedValues(data []float32) []float32 {
	vals:=make([]float32, 0, len(data))
	for i,m:=range r.Mask {
		if !m { continue }
		v:=data[i]
		if v!=v { continue }
		vals=append(vals, v)
	}
	return vals
}
