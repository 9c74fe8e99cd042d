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


// Package batch runs analysis and calibration jobs described by JSON
// or YAML documents, shared by the CLI and the REST service.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/analysis/compilation"
	"github.com/backmanlab/pwsgo/internal/cube"
	"github.com/backmanlab/pwsgo/internal/cubeio"
	"github.com/backmanlab/pwsgo/internal/ops"
	"github.com/backmanlab/pwsgo/internal/reflectance"
	"github.com/backmanlab/pwsgo/internal/render"
)

// A spectral analysis batch: one reference, optional extra reflectance
// calibration, and any number of acquisitions analyzed against them
type PWSJob struct {
	ReferencePath        string                `json:"referencePath" yaml:"referencePath"`
	ExtraReflectancePath string                `json:"extraReflectancePath,omitempty" yaml:"extraReflectancePath,omitempty"`
	CubePaths            []string              `json:"cubePaths" yaml:"cubePaths"`
	OutputDir            string                `json:"outputDir" yaml:"outputDir"`
	Settings             *analysis.PWSSettings `json:"settings" yaml:"settings"`
	PreviewFormat        string                `json:"previewFormat,omitempty" yaml:"previewFormat,omitempty"` // "", "png" or "tiff"
}

// A dynamics analysis batch
type DynJob struct {
	ReferencePath        string                `json:"referencePath" yaml:"referencePath"`
	ExtraReflectancePath string                `json:"extraReflectancePath,omitempty" yaml:"extraReflectancePath,omitempty"`
	CubePaths            []string              `json:"cubePaths" yaml:"cubePaths"`
	OutputDir            string                `json:"outputDir" yaml:"outputDir"`
	Settings             *analysis.DynSettings `json:"settings" yaml:"settings"`
}

// One reference acquisition of a known material for calibration
type CalibrationCube struct {
	Material string `json:"material" yaml:"material"`
	Path     string `json:"path" yaml:"path"`
}

// An extra reflectance calibration job: references of at least two
// materials on the same system, solved pairwise
type CalibrateJob struct {
	Cubes             []CalibrationCube `json:"cubes" yaml:"cubes"`
	NumericalAperture float64           `json:"numericalAperture" yaml:"numericalAperture"`
	SystemName        string            `json:"systemName" yaml:"systemName"`
	IDTag             string            `json:"idTag" yaml:"idTag"`
	OutputPath        string            `json:"outputPath" yaml:"outputPath"`
}

// A compilation job: one saved result bundle summarized over ROI files
type CompileJob struct {
	ResultsDir string   `json:"resultsDir" yaml:"resultsDir"`
	RoiPaths   []string `json:"roiPaths" yaml:"roiPaths"`
}

// A batch file can carry any mix of job types
type JobFile struct {
	PWS       []PWSJob       `json:"pws,omitempty" yaml:"pws,omitempty"`
	Dynamics  []DynJob       `json:"dynamics,omitempty" yaml:"dynamics,omitempty"`
	Calibrate []CalibrateJob `json:"calibrate,omitempty" yaml:"calibrate,omitempty"`
	Compile   []CompileJob   `json:"compile,omitempty" yaml:"compile,omitempty"`
}

// Loads a YAML batch file
func LoadJobFile(path string) (*JobFile, error) {
	b,err:=os.ReadFile(path)
	if err!=nil { return nil, err }
	var jf JobFile
	if err:=yaml.Unmarshal(b, &jf); err!=nil { return nil, fmt.Errorf("%s: %w", path, err) }
	if len(jf.PWS)==0 && len(jf.Dynamics)==0 && len(jf.Calibrate)==0 && len(jf.Compile)==0 {
		return nil, fmt.Errorf("%s describes no jobs", path)
	}
	return &jf, nil
}

// Runs all jobs in a batch file, continuing past per-job errors
func (jf *JobFile) Run(c *ops.Context) (err error) {
	for i:=range jf.Calibrate {
		if e:=RunCalibrateJob(&jf.Calibrate[i], c); e!=nil {
			err=joinErr(err, fmt.Errorf("calibrate job %d: %w", i, e))
		}
	}
	for i:=range jf.PWS {
		if e:=RunPWSJob(&jf.PWS[i], c); e!=nil {
			err=joinErr(err, fmt.Errorf("pws job %d: %w", i, e))
		}
	}
	for i:=range jf.Dynamics {
		if e:=RunDynJob(&jf.Dynamics[i], c); e!=nil {
			err=joinErr(err, fmt.Errorf("dynamics job %d: %w", i, e))
		}
	}
	for i:=range jf.Compile {
		if e:=RunCompileJob(&jf.Compile[i], c); e!=nil {
			err=joinErr(err, fmt.Errorf("compile job %d: %w", i, e))
		}
	}
	return err
}

func joinErr(a, b error) error {
	if a==nil { return b }
	return fmt.Errorf("%s; %s", a, b)
}

func resultDir(outputDir, cubePath string) string {
	base:=filepath.Base(cubePath)
	return filepath.Join(outputDir, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Runs one spectral analysis batch: prepares the analysis from the
// reference, then fans the acquisitions out over the context's thread
// limit. Per-cube failures are collected; the rest of the batch
// completes.
func RunPWSJob(job *PWSJob, c *ops.Context) error {
	if job.Settings==nil { return fmt.Errorf("job has no settings") }
	if len(job.CubePaths)==0 { return fmt.Errorf("job has no cubes") }

	ref,err:=cubeio.LoadImageCube(job.ReferencePath)
	if err!=nil { return err }
	var er *cube.ExtraReflectanceCube
	if job.ExtraReflectancePath!="" {
		if er,err=cubeio.LoadExtraReflectance(job.ExtraReflectancePath); err!=nil { return err }
	}
	a,err:=analysis.NewPWSAnalysis(job.Settings, er, ref)
	if err!=nil { return err }

	promises:=make([]ops.Promise, len(job.CubePaths))
	for i,path:=range job.CubePaths {
		path:=path
		promises[i]=func() (*cube.ImageCube, error) {
			cb,err:=cubeio.LoadImageCube(path)
			if err!=nil { return nil, err }
			res,warns,err:=a.Run(cb)
			if err!=nil { return nil, fmt.Errorf("%s: %w", path, err) }
			for _,w:=range warns {
				c.Printf("%s: warning: %s\n", path, w.Short)
			}
			dir:=resultDir(job.OutputDir, path)
			if err:=cubeio.SavePWSResults(dir, res); err!=nil { return nil, err }
			if err:=writePreviews(dir, res.Reflectance.Width, res.Reflectance.Height, res, job.PreviewFormat); err!=nil { return nil, err }
			c.Printf("%s: analyzed, results in %s\n", path, dir)
			return cb, nil
		}
	}
	// each worker holds one acquisition plus the analysis working set,
	// roughly three times the raw cube
	_,err=ops.MaterializeAll(promises, c.ThreadsWithin(workingSetMB(len(ref.Data))), true)
	return err
}

// A conservative per-cube working set estimate in megabytes, for
// samples many 32-bit values long
func workingSetMB(samples int) int {
	return 3*4*samples/(1024*1024)
}

func writePreviews(dir string, width, height int32, res *analysis.PWSResults, format string) error {
	if format=="" { return nil }
	for _,f:=range []analysis.Field{analysis.FieldRMS, analysis.FieldMeanReflectance} {
		data,err:=res.Map(f)
		if err!=nil { continue }
		name:=filepath.Join(dir, string(f)+"."+format)
		switch format {
		case "png":
			err=render.WritePNGToFile(name, data, width, height, render.Viridis)
		case "tiff":
			err=render.WriteTIFFToFile(name, data, width, height, render.Viridis)
		default:
			return fmt.Errorf("unknown preview format %q", format)
		}
		if err!=nil { return err }
	}
	return nil
}

// Runs one dynamics analysis batch
func RunDynJob(job *DynJob, c *ops.Context) error {
	if job.Settings==nil { return fmt.Errorf("job has no settings") }
	if len(job.CubePaths)==0 { return fmt.Errorf("job has no cubes") }

	ref,err:=cubeio.LoadDynCube(job.ReferencePath)
	if err!=nil { return err }
	var er *cube.ExtraReflectanceCube
	if job.ExtraReflectancePath!="" {
		if er,err=cubeio.LoadExtraReflectance(job.ExtraReflectancePath); err!=nil { return err }
	}
	if !ref.Status.CameraCorrected {
		if job.Settings.CameraCorrection!=nil { ref.Meta.Camera=job.Settings.CameraCorrection }
		if err:=ref.CorrectCameraEffects(); err!=nil { return err }
	}
	a,err:=analysis.NewDynAnalysis(job.Settings, er, ref)
	if err!=nil { return err }

	tasks:=make([]ops.Task, len(job.CubePaths))
	for i,path:=range job.CubePaths {
		path:=path
		tasks[i]=func() error {
			cb,err:=cubeio.LoadDynCube(path)
			if err!=nil { return err }
			if !cb.Status.CameraCorrected {
				if job.Settings.CameraCorrection!=nil { cb.Meta.Camera=job.Settings.CameraCorrection }
				if err:=cb.CorrectCameraEffects(); err!=nil { return err }
			}
			res,warns,err:=a.Run(cb)
			if err!=nil { return fmt.Errorf("%s: %w", path, err) }
			for _,w:=range warns {
				c.Printf("%s: warning: %s\n", path, w.Short)
			}
			dir:=resultDir(job.OutputDir, path)
			if err:=cubeio.SaveDynResults(dir, res); err!=nil { return err }
			c.Printf("%s: analyzed, results in %s\n", path, dir)
			return nil
		}
	}
	return ops.RunAll(tasks, c.ThreadsWithin(workingSetMB(len(ref.Data))))
}

// Runs one extra reflectance calibration job: loads and prepares all
// material references, solves every material pair, and saves the
// resulting calibration cube.
func RunCalibrateJob(job *CalibrateJob, c *ops.Context) error {
	if len(job.Cubes)<2 { return fmt.Errorf("calibration needs at least two materials, got %d", len(job.Cubes)) }
	if job.OutputPath=="" { return fmt.Errorf("calibration has no output path") }

	type prepared struct {
		mat  reflectance.Material
		cube *cube.ImageCube
	}
	preps:=make([]prepared, 0, len(job.Cubes))
	for _,cc:=range job.Cubes {
		ic,err:=cubeio.LoadImageCube(cc.Path)
		if err!=nil { return err }
		if !ic.Status.CameraCorrected {
			if err:=ic.CorrectCameraEffects(); err!=nil { return err }
		}
		if !ic.Status.ExposureNormalized {
			if err:=ic.NormalizeByExposure(); err!=nil { return err }
		}
		preps=append(preps, prepared{mat: reflectance.Material(cc.Material), cube: ic})
	}

	var combos []reflectance.CubeCombo
	for i:=0; i<len(preps); i++ {
		for j:=i+1; j<len(preps); j++ {
			if preps[i].mat==preps[j].mat { continue }
			combos=append(combos, reflectance.CubeCombo{
				Mat1: preps[i].mat, Mat2: preps[j].mat,
				Cube1: preps[i].cube, Cube2: preps[j].cube,
			})
		}
	}
	if len(combos)==0 { return fmt.Errorf("calibration cubes are all of the same material") }

	er,summaries,err:=reflectance.GenerateRExtra(combos, job.NumericalAperture, nil, job.SystemName, job.IDTag)
	if err!=nil { return err }
	for _,s:=range summaries {
		c.Printf("combo %s/%s: mean weight %.4f\n", s.Mat1, s.Mat2, s.MeanWeight)
	}
	if err:=cubeio.SaveExtraReflectance(job.OutputPath, er); err!=nil { return err }
	c.Printf("calibration saved to %s\n", job.OutputPath)
	return nil
}

// Runs one compilation job: summarizes a saved result bundle over each
// ROI file and logs one JSON summary per ROI. The bundle manifest
// decides whether the spectral or the dynamics compiler applies.
func RunCompileJob(job *CompileJob, c *ops.Context) error {
	if job.ResultsDir=="" { return fmt.Errorf("compilation has no results directory") }
	if len(job.RoiPaths)==0 { return fmt.Errorf("compilation has no roi files") }
	kind,err:=cubeio.ResultKind(job.ResultsDir)
	if err!=nil { return err }
	switch kind {
	case cubeio.ResultKindPWS:
		return compilePWSRois(job, c)
	case cubeio.ResultKindDyn:
		return compileDynRois(job, c)
	}
	return fmt.Errorf("%s holds %q results, cannot compile", job.ResultsDir, kind)
}

func compilePWSRois(job *CompileJob, c *ops.Context) error {
	res,err:=cubeio.LoadPWSResults(job.ResultsDir)
	if err!=nil { return err }
	comp:=compilation.NewPWSCompiler(compilation.PWSCompilerSettings{
		Reflectance:          true,
		RMS:                  true,
		PolynomialRMS:        true,
		AutoCorrelationSlope: true,
		RSquared:             true,
		Ld:                   true,
		MeanSigmaRatio:       true,
	})
	gen:=compilation.NewGenericCompiler(compilation.GenericCompilerSettings{RoiArea: true})
	for _,path:=range job.RoiPaths {
		r,err:=cubeio.LoadROI(path)
		if err!=nil { return err }
		out,warns,err:=comp.Run(res, r)
		if err!=nil { return fmt.Errorf("%s: %w", path, err) }
		for _,w:=range warns {
			c.Printf("%s: warning: %s\n", path, w.Short)
		}
		if err:=printRoiSummary(c, out, gen.Run(r).RoiArea); err!=nil { return err }
	}
	return nil
}

func compileDynRois(job *CompileJob, c *ops.Context) error {
	res,err:=cubeio.LoadDynResults(job.ResultsDir)
	if err!=nil { return err }
	comp:=compilation.NewDynCompiler(compilation.DynCompilerSettings{
		MeanReflectance: true,
		RMSTSquared:     true,
		Diffusion:       true,
	})
	gen:=compilation.NewGenericCompiler(compilation.GenericCompilerSettings{RoiArea: true})
	for _,path:=range job.RoiPaths {
		r,err:=cubeio.LoadROI(path)
		if err!=nil { return err }
		out,warns,err:=comp.Run(res, r)
		if err!=nil { return fmt.Errorf("%s: %w", path, err) }
		for _,w:=range warns {
			c.Printf("%s: warning: %s\n", path, w.Short)
		}
		if err:=printRoiSummary(c, out, gen.Run(r).RoiArea); err!=nil { return err }
	}
	return nil
}

func printRoiSummary(c *ops.Context, summary interface{}, roiArea int) error {
	b,err:=json.MarshalIndent(struct {
		Summary interface{} `json:"summary"`
		RoiArea int         `json:"roiArea"`
	}{summary, roiArea}, "", "  ")
	if err!=nil { return err }
	c.Printf("%s\n", b)
	return nil
}
