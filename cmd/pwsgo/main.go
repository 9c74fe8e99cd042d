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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/batch"
	"github.com/backmanlab/pwsgo/internal/cubeio"
	"github.com/backmanlab/pwsgo/internal/ops"
	"github.com/backmanlab/pwsgo/internal/render"
	"github.com/backmanlab/pwsgo/internal/rest"
)

const version="0.1.0"

var cpuprofile=flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile=flag.String("memprofile", "", "write memory profile to `file`")
var logFile   =flag.String("log", "", "tee log output to `file` in addition to stdout")

var jobs    =flag.String("jobs", "", "run batch jobs from YAML `file`")
var ref     =flag.String("ref", "", "reference acquisition `path` (without .json/.dat suffix)")
var er      =flag.String("er", "", "extra reflectance calibration `path`, blank to skip the correction")
var settings=flag.String("settings", "", "analysis settings JSON `file`, blank for defaults")
var out     =flag.String("out", "out", "output directory for results, or output path for calibrate")
var preview =flag.String("preview", "png", "preview image format for result maps, png, tiff or blank for none")
var colormap=flag.String("colormap", "viridis", "colormap for previews, viridis or coolwarm")
var threads =flag.Int("threads", runtime.GOMAXPROCS(0), "number of cubes to analyze in parallel")

var na      =flag.Float64("na", 0.52, "numerical aperture for calibrate")
var system  =flag.String("system", "", "system name tag for calibrate")
var idTag   =flag.String("idTag", "", "id tag for the generated calibration")

var results=flag.String("results", "", "result bundle `directory` for compile")

var chroot=flag.String("chroot", "", "for serve: switch filesystem root to given `directory` (requires root)")
var setuid=flag.Int("setuid", -1, "for serve: switch user id to given `uid` (requires root)")

func main() {
	var logWriter io.Writer=os.Stdout
	start:=time.Now()
	flag.Usage=func() {
		fmt.Fprintf(logWriter, `Pwsgo Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (run|analyze|dynamics|calibrate|compile|preview|serve|legal|version) (cube0 ... cuben)

Commands:
  run       Run all jobs from a YAML batch file given with -jobs
  analyze   Run spectral analysis on the given cubes against -ref
  dynamics  Run dynamics analysis on the given cubes against -ref
  calibrate Solve extra reflectance from material references given as material=path arguments
  compile   Summarize saved results given with -results over the given ROI files
  preview   Render saved result maps to colormapped images
  serve     Start the REST service on port 8080
  legal     Show license and attribution information
  version   Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *logFile!="" {
		f,err:=os.Create(*logFile)
		if err!=nil { fatalf(logWriter, "Could not create log file: %s\n", err.Error()) }
		defer f.Close()
		logWriter=io.MultiWriter(os.Stdout, f)
	}

	// Enable CPU profiling if flagged
	if *cpuprofile!="" {
		f,err:=os.Create(*cpuprofile)
		if err!=nil { fatalf(logWriter, "Could not create CPU profile: %s\n", err.Error()) }
		defer f.Close()
		if err:=pprof.StartCPUProfile(f); err!=nil { fatalf(logWriter, "Could not start CPU profile: %s\n", err.Error()) }
		defer pprof.StopCPUProfile()
	}

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		return
	}

	ctx:=ops.NewContext(logWriter)
	ctx.MaxThreads=*threads

	var err error
	switch args[0] {
	case "run":
		err=cmdRun(ctx)
	case "analyze":
		err=cmdAnalyze(ctx, args[1:])
	case "dynamics":
		err=cmdDynamics(ctx, args[1:])
	case "calibrate":
		err=cmdCalibrate(ctx, args[1:])
	case "compile":
		err=cmdCompile(ctx, args[1:])
	case "preview":
		err=cmdPreview(args[1:])
	case "serve":
		rest.MakeSandbox(*chroot, *setuid)
		rest.Serve()
	case "legal":
		cmdLegal()
	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)
	case "help", "?":
		flag.Usage()
	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed:=time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile!="" {
		f,err:=os.Create(*memprofile)
		if err!=nil { fatalf(logWriter, "Could not create memory profile: %s\n", err.Error()) }
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err:=pprof.Lookup("allocs").WriteTo(f, 0); err!=nil {
			fatalf(logWriter, "Could not write allocation profile: %s\n", err.Error())
		}
	}

	if err!=nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
}

func fatalf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
	os.Exit(-1)
}

func cmdRun(ctx *ops.Context) error {
	if *jobs=="" { return fmt.Errorf("run needs a batch file, use -jobs") }
	jf,err:=batch.LoadJobFile(*jobs)
	if err!=nil { return err }
	return jf.Run(ctx)
}

func loadPWSSettings() (*analysis.PWSSettings, error) {
	s:=analysis.NewPWSSettingsDefaults()
	if *settings=="" { return s, nil }
	b,err:=os.ReadFile(*settings)
	if err!=nil { return nil, err }
	if err:=json.Unmarshal(b, s); err!=nil { return nil, fmt.Errorf("%s: %w", *settings, err) }
	return s, nil
}

func cmdAnalyze(ctx *ops.Context, cubes []string) error {
	if *ref=="" { return fmt.Errorf("analyze needs a reference, use -ref") }
	if len(cubes)==0 { return fmt.Errorf("analyze needs at least one cube argument") }
	s,err:=loadPWSSettings()
	if err!=nil { return err }
	job:=&batch.PWSJob{
		ReferencePath:        *ref,
		ExtraReflectancePath: *er,
		CubePaths:            cubes,
		OutputDir:            *out,
		Settings:             s,
		PreviewFormat:        *preview,
	}
	return batch.RunPWSJob(job, ctx)
}

func cmdDynamics(ctx *ops.Context, cubes []string) error {
	if *ref=="" { return fmt.Errorf("dynamics needs a reference, use -ref") }
	if len(cubes)==0 { return fmt.Errorf("dynamics needs at least one cube argument") }
	s:=analysis.NewDynSettingsDefaults()
	if *settings!="" {
		b,err:=os.ReadFile(*settings)
		if err!=nil { return err }
		if err:=json.Unmarshal(b, s); err!=nil { return fmt.Errorf("%s: %w", *settings, err) }
	}
	job:=&batch.DynJob{
		ReferencePath:        *ref,
		ExtraReflectancePath: *er,
		CubePaths:            cubes,
		OutputDir:            *out,
		Settings:             s,
	}
	return batch.RunDynJob(job, ctx)
}

// Arguments are material=path pairs, e.g. water=refs/water air=refs/air
func cmdCalibrate(ctx *ops.Context, args []string) error {
	if len(args)<2 { return fmt.Errorf("calibrate needs at least two material=path arguments") }
	job:=&batch.CalibrateJob{
		NumericalAperture: *na,
		SystemName:        *system,
		IDTag:             *idTag,
		OutputPath:        *out,
	}
	for _,a:=range args {
		parts:=strings.SplitN(a, "=", 2)
		if len(parts)!=2 { return fmt.Errorf("argument %q is not of the form material=path", a) }
		job.Cubes=append(job.Cubes, batch.CalibrationCube{Material: parts[0], Path: parts[1]})
	}
	return batch.RunCalibrateJob(job, ctx)
}

// Compiles a saved result bundle over the given ROI files and prints
// one JSON summary per ROI. The bundle manifest decides whether the
// spectral or the dynamics compiler applies.
func cmdCompile(ctx *ops.Context, rois []string) error {
	if *results=="" { return fmt.Errorf("compile needs a result bundle, use -results") }
	if len(rois)==0 { return fmt.Errorf("compile needs at least one ROI file argument") }
	job:=&batch.CompileJob{ResultsDir: *results, RoiPaths: rois}
	return batch.RunCompileJob(job, ctx)
}

// Renders saved result maps to colormapped preview images next to the
// map files
func cmdPreview(maps []string) error {
	if len(maps)==0 { return fmt.Errorf("preview needs at least one map path argument") }
	g,err:=render.GradientByName(*colormap)
	if err!=nil { return err }
	format:=*preview
	if format=="" { format="png" }
	for _,path:=range maps {
		w, h, data,err:=cubeio.LoadMap(path)
		if err!=nil { return err }
		name:=path+"."+format
		switch format {
		case "png":
			err=render.WritePNGToFile(name, data, w, h, g)
		case "tiff":
			err=render.WriteTIFFToFile(name, data, w, h, g)
		default:
			return fmt.Errorf("unknown preview format %q", format)
		}
		if err!=nil { return err }
	}
	return nil
}

func cmdLegal() {
	fmt.Println(`Pwsgo is licensed under the GNU General Public License v3.0.

It uses the following libraries:
  github.com/gin-gonic/gin under the MIT license
  github.com/lucasb-eyer/go-colorful under the MIT license
  github.com/pbnjay/memory under the BSD-3-Clause license
  github.com/valyala/fastrand under the MIT license
  golang.org/x/image under the BSD-3-Clause license
  gonum.org/v1/gonum under the BSD-3-Clause license
  gopkg.in/yaml.v3 under the MIT and Apache-2.0 licenses`)
}
