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


// Package render turns per-pixel result maps into colormapped preview
// images.
package render

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"

	"github.com/backmanlab/pwsgo/internal/stats"
)

// A colormap defined by keypoints, blended in Hcl space
type Gradient []struct {
	Col colorful.Color
	Pos float64
}

// Perceptually even blue-green-yellow ramp, the default for result maps
var Viridis=Gradient{
	{colorful.Color{R: 0.267, G: 0.005, B: 0.329}, 0.00},
	{colorful.Color{R: 0.283, G: 0.141, B: 0.458}, 0.14},
	{colorful.Color{R: 0.254, G: 0.265, B: 0.530}, 0.29},
	{colorful.Color{R: 0.207, G: 0.372, B: 0.553}, 0.43},
	{colorful.Color{R: 0.164, G: 0.471, B: 0.558}, 0.57},
	{colorful.Color{R: 0.128, G: 0.567, B: 0.551}, 0.71},
	{colorful.Color{R: 0.267, G: 0.749, B: 0.441}, 0.86},
	{colorful.Color{R: 0.993, G: 0.906, B: 0.144}, 1.00},
}

// Diverging blue-white-red ramp, useful for signed maps like slopes
var Coolwarm=Gradient{
	{colorful.Color{R: 0.230, G: 0.299, B: 0.754}, 0.0},
	{colorful.Color{R: 0.865, G: 0.865, B: 0.865}, 0.5},
	{colorful.Color{R: 0.706, G: 0.016, B: 0.150}, 1.0},
}

// Returns the gradient color at position t in [0,1]
func (g Gradient) At(t float64) colorful.Color {
	for i:=0; i<len(g)-1; i++ {
		c1, c2:=g[i], g[i+1]
		if c1.Pos<=t && t<=c2.Pos {
			frac:=(t-c1.Pos)/(c2.Pos-c1.Pos)
			return c1.Col.BlendHcl(c2.Col, frac).Clamped()
		}
	}
	return g[len(g)-1].Col
}

func GradientByName(name string) (Gradient, error) {
	switch strings.ToLower(name) {
	case "", "viridis":
		return Viridis, nil
	case "coolwarm":
		return Coolwarm, nil
	}
	return nil, fmt.Errorf("unknown colormap %q", name)
}

// Picks a display range for a result map from a fast approximate
// median plus/minus three approximate median absolute deviations,
// which keeps hot pixels from washing out the preview. NaNs are
// excluded from the estimate.
func AutoRange(data []float32) (min, max float32) {
	finite:=make([]float32, 0, len(data))
	for _,v:=range data {
		if !math.IsNaN(float64(v)) { finite=append(finite, v) }
	}
	if len(finite)==0 { return 0, 1 }
	numSamples:=len(finite)
	if numSamples>512 { numSamples=512 }
	samples:=make([]float32, numSamples)
	median:=stats.FastApproxMedian(finite, samples)
	mad:=stats.FastApproxMAD(finite, median, samples)
	if mad==0 {
		s:=stats.CalcBasicStats(finite)
		return s.Min, s.Max
	}
	return median-3*mad, median+3*mad
}

// Renders a row-major result map into an image by mapping [min, max]
// through the gradient. NaN pixels come out black.
func Render(data []float32, width, height int32, min, max float32, g Gradient) (*image.RGBA, error) {
	if int(width)*int(height)!=len(data) {
		return nil, fmt.Errorf("map has %d values for %dx%d", len(data), width, height)
	}
	if max<=min { return nil, fmt.Errorf("display range [%g, %g] is empty", min, max) }
	img:=image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	scale:=1.0/float64(max-min)
	for y:=0; y<int(height); y++ {
		for x:=0; x<int(width); x++ {
			v:=float64(data[y*int(width)+x])
			if math.IsNaN(v) {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
				continue
			}
			t:=(v-float64(min))*scale
			if t<0 { t=0 }
			if t>1 { t=1 }
			r, gg, b:=g.At(t).RGB255()
			img.Set(x, y, color.RGBA{r, gg, b, 255})
		}
	}
	return img, nil
}

// Writes a result map as a PNG preview with automatic display range
func WritePNGToFile(fileName string, data []float32, width, height int32, g Gradient) error {
	min, max:=AutoRange(data)
	img,err:=Render(data, width, height, min, max, g)
	if err!=nil { return err }
	return writeToFile(fileName, func(w io.Writer) error { return png.Encode(w, img) })
}

// Writes a result map as a TIFF preview with automatic display range
func WriteTIFFToFile(fileName string, data []float32, width, height int32, g Gradient) error {
	min, max:=AutoRange(data)
	img,err:=Render(data, width, height, min, max, g)
	if err!=nil { return err }
	return writeToFile(fileName, func(w io.Writer) error { return tiff.Encode(w, img, nil) })
}

func writeToFile(fileName string, encode func(io.Writer) error) error {
	file,err:=os.Create(fileName)
	if err!=nil { return err }
	defer file.Close()
	writer:=bufio.NewWriter(file)
	if err:=encode(writer); err!=nil { return err }
	return writer.Flush()
}
