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


package batch

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/cube"
	"github.com/backmanlab/pwsgo/internal/cubeio"
	"github.com/backmanlab/pwsgo/internal/ops"
	"github.com/backmanlab/pwsgo/internal/reflectance"
)

func TestLoadJobFile(t *testing.T) {
	dir:=t.TempDir()
	path:=filepath.Join(dir, "jobs.yaml")
	doc:=`pws:
  - referencePath: refs/glass
    cubePaths: [acq/cell1, acq/cell2]
    outputDir: out
    settings:
      referenceMaterial: glass
`
	if err:=os.WriteFile(path, []byte(doc), 0644); err!=nil { t.Fatal(err) }

	jf,err:=LoadJobFile(path)
	if err!=nil { t.Fatalf("err=%v; want nil", err) }
	if len(jf.PWS)!=1 { t.Fatalf("pws jobs=%d; want 1", len(jf.PWS)) }
	job:=jf.PWS[0]
	if job.ReferencePath!="refs/glass" || len(job.CubePaths)!=2 || job.OutputDir!="out" {
		t.Errorf("job=%+v; want parsed paths", job)
	}
	if job.Settings==nil || job.Settings.ReferenceMaterial!=reflectance.MaterialGlass {
		t.Errorf("settings=%+v; want glass reference material", job.Settings)
	}
	if job.Settings.FilterCutoff!=0.15 {
		t.Errorf("filterCutoff=%v; want default 0.15 for omitted entries", job.Settings.FilterCutoff)
	}
}

func TestLoadJobFileRejectsEmpty(t *testing.T) {
	dir:=t.TempDir()
	path:=filepath.Join(dir, "jobs.yaml")
	if err:=os.WriteFile(path, []byte("pws: []\n"), 0644); err!=nil { t.Fatal(err) }
	if _,err:=LoadJobFile(path); err==nil {
		t.Errorf("err=nil; want error for empty batch")
	}
}

func saveTestCube(t *testing.T, path string, amplitude float64) {
	const w, h=2, 2
	wls:=make([]float64, 51)
	for i:=range wls { wls[i]=500+2*float64(i) }
	n:=len(wls)
	data:=make([]float32, w*h*n)
	for p:=0; p<w*h; p++ {
		for i,wl:=range wls {
			data[p*n+i]=100+1000*float32(1+amplitude*math.Sin(2*math.Pi*(wl-500)/25))
		}
	}
	meta:=cube.Metadata{ExposureMs:2, Binning:1, Camera:&cube.CameraCorrection{DarkCounts:100}, IDTag:filepath.Base(path)}
	c,err:=cube.NewImageCube(w, h, wls, data, meta)
	if err!=nil { t.Fatalf("cube: %v", err) }
	if err:=cubeio.SaveImageCube(path, c); err!=nil { t.Fatalf("save %s: %v", path, err) }
}

func TestRunPWSJobEndToEnd(t *testing.T) {
	dir:=t.TempDir()
	saveTestCube(t, filepath.Join(dir, "ref"), 0)
	saveTestCube(t, filepath.Join(dir, "cell1"), 0.1)

	s:=analysis.NewPWSSettingsDefaults()
	s.ReferenceMaterial=reflectance.MaterialNone
	s.RelativeUnits=true
	s.FilterCutoff=0
	s.WavelengthStop=600

	job:=&PWSJob{
		ReferencePath: filepath.Join(dir, "ref"),
		CubePaths:     []string{filepath.Join(dir, "cell1")},
		OutputDir:     filepath.Join(dir, "out"),
		Settings:      s,
	}
	c:=ops.NewContext(io.Discard)
	if err:=RunPWSJob(job, c); err!=nil { t.Fatalf("err=%v; want nil", err) }

	res,err:=cubeio.LoadPWSResults(filepath.Join(dir, "out", "cell1"))
	if err!=nil { t.Fatalf("load results: %v", err) }
	rms,err:=res.Map(analysis.FieldRMS)
	if err!=nil { t.Fatalf("rms map: %v", err) }
	for p,v:=range rms {
		if v<0.06 || v>0.08 {
			t.Errorf("rms[%d]=%v; want ~%v", p, v, 0.1/math.Sqrt2)
		}
	}
}

func TestRunPWSJobCollectsPerCubeErrors(t *testing.T) {
	dir:=t.TempDir()
	saveTestCube(t, filepath.Join(dir, "ref"), 0)
	saveTestCube(t, filepath.Join(dir, "cell1"), 0.1)

	s:=analysis.NewPWSSettingsDefaults()
	s.ReferenceMaterial=reflectance.MaterialNone
	s.RelativeUnits=true
	s.FilterCutoff=0
	s.WavelengthStop=600

	job:=&PWSJob{
		ReferencePath: filepath.Join(dir, "ref"),
		CubePaths:     []string{filepath.Join(dir, "missing"), filepath.Join(dir, "cell1")},
		OutputDir:     filepath.Join(dir, "out"),
		Settings:      s,
	}
	c:=ops.NewContext(io.Discard)
	if err:=RunPWSJob(job, c); err==nil {
		t.Errorf("err=nil; want error for missing cube")
	}
	// the good cube still completes
	if _,err:=cubeio.LoadPWSResults(filepath.Join(dir, "out", "cell1")); err!=nil {
		t.Errorf("load results: %v; want good cube analyzed despite sibling failure", err)
	}
}

func TestResultDir(t *testing.T) {
	if d:=resultDir("out", "acq/cell1"); d!=filepath.Join("out", "cell1") {
		t.Errorf("resultDir=%q; want out/cell1", d)
	}
}
