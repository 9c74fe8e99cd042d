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

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/cubeio"
	"github.com/backmanlab/pwsgo/internal/ops"
	"github.com/backmanlab/pwsgo/internal/roi"
)

func TestCompileDynamicsBundle(t *testing.T) {
	dir:=filepath.Join(t.TempDir(), "cell3")
	res:=&analysis.DynResults{
		Time:            "2026-01-02T03:04:05Z",
		CubeIDTag:       "cell3",
		Width:           2,
		Height:          2,
		MeanReflectance: []float32{1, 1, 1, 1},
		RMSTSquared:     []float32{0.01, 0.02, 0.03, 0.04},
		Diffusion:       []float32{1, 2, 3, 4},
		DiffusionMask:   []bool{true, true, true, true},
	}
	if err:=cubeio.SaveDynResults(dir, res); err!=nil { t.Fatalf("save failed: %v", err) }
	r,err:=roi.NewRectROI("nucleus", 1, 2, 2, 0, 0, 2, 2)
	if err!=nil { t.Fatalf("roi: %v", err) }
	roiPath:=filepath.Join(t.TempDir(), "roi_nucleus_1.json")
	if err:=cubeio.SaveROI(roiPath, r); err!=nil { t.Fatalf("save roi: %v", err) }

	oldResults:=*results
	*results=dir
	defer func() { *results=oldResults }()

	var buf bytes.Buffer
	if err:=cmdCompile(ops.NewContext(&buf), []string{roiPath}); err!=nil { t.Fatalf("compile failed: %v", err) }
	out:=buf.String()
	if !strings.Contains(out, `"diffusion"`) { t.Errorf("output %q missing diffusion summary", out) }
	if !strings.Contains(out, `"roiArea": 4`) { t.Errorf("output %q missing roi area", out) }
}
