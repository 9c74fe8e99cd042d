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


package render

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestGradientEndpoints(t *testing.T) {
	lo:=Viridis.At(0)
	hi:=Viridis.At(1)
	if lo.B<lo.R || lo.B<lo.G { t.Errorf("low end %+v; want blueish", lo) }
	if hi.R<hi.B || hi.G<hi.B { t.Errorf("high end %+v; want yellowish", hi) }
}

func TestGradientByName(t *testing.T) {
	if _,err:=GradientByName("viridis"); err!=nil { t.Errorf("viridis unknown: %v", err) }
	if _,err:=GradientByName("coolwarm"); err!=nil { t.Errorf("coolwarm unknown: %v", err) }
	if _,err:=GradientByName("nonexistent"); err==nil { t.Errorf("bogus colormap accepted") }
}

func TestAutoRangeIgnoresOutliers(t *testing.T) {
	data:=make([]float32, 1000)
	for i:=range data { data[i]=0.1+0.001*float32(i%10) }
	data[500]=1e6 // hot pixel
	min, max:=AutoRange(data)
	if max>1 { t.Errorf("max=%v; want hot pixel excluded", max) }
	if min>0.1 || max<0.1 { t.Errorf("range [%v, %v] misses the data", min, max) }
}

func TestRenderShapes(t *testing.T) {
	data:=[]float32{0, 0.5, float32(math.NaN()), 1}
	img,err:=Render(data, 2, 2, 0, 1, Viridis)
	if err!=nil { t.Fatalf("render failed: %v", err) }
	if img.Bounds().Dx()!=2 || img.Bounds().Dy()!=2 { t.Errorf("bounds %v; want 2x2", img.Bounds()) }
	r, g, b, _:=img.At(0, 1).RGBA() // NaN pixel
	if r!=0 || g!=0 || b!=0 { t.Errorf("NaN pixel (%d,%d,%d); want black", r, g, b) }

	if _,err:=Render(data, 3, 2, 0, 1, Viridis); err==nil { t.Errorf("shape mismatch accepted") }
	if _,err:=Render(data, 2, 2, 1, 1, Viridis); err==nil { t.Errorf("empty display range accepted") }
}

func TestWritePNG(t *testing.T) {
	data:=[]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	path:=filepath.Join(t.TempDir(), "rms.png")
	if err:=WritePNGToFile(path, data, 3, 2, Viridis); err!=nil { t.Fatalf("write failed: %v", err) }
	f,err:=os.Open(path)
	if err!=nil { t.Fatalf("open failed: %v", err) }
	defer f.Close()
	img,err:=png.Decode(f)
	if err!=nil { t.Fatalf("decode failed: %v", err) }
	if img.Bounds().Dx()!=3 || img.Bounds().Dy()!=2 { t.Errorf("bounds %v; want 3x2", img.Bounds()) }
}
