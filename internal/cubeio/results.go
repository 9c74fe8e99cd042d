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


package cubeio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backmanlab/pwsgo/internal/analysis"
	"github.com/backmanlab/pwsgo/internal/cube"
	"github.com/backmanlab/pwsgo/internal/roi"
)

// One analysis result bundle on disk: a directory holding a manifest
// with settings and provenance tags, plus one map file per produced
// result field.
type resultManifest struct {
	Version              string             `json:"version"`
	Kind                 string             `json:"kind"`
	Time                 string             `json:"time"`
	Width                int32              `json:"width"`
	Height               int32              `json:"height"`
	CubeIDTag            string             `json:"imCubeIdTag"`
	ReferenceIDTag       string             `json:"referenceIdTag"`
	ExtraReflectionIDTag string             `json:"extraReflectionIdTag,omitempty"`
	Fields               []analysis.Field   `json:"fields"`
	PWSSettings          *analysis.PWSSettings `json:"pwsSettings,omitempty"`
	DynSettings          *analysis.DynSettings `json:"dynSettings,omitempty"`
	Warnings             []analysis.Warning `json:"warnings,omitempty"`
}

const manifestName="analysisResults.json"

// Result bundle kinds as stored in the manifest
const (
	ResultKindPWS=kindPWS
	ResultKindDyn=kindDyn
)

// Reports which kind of result bundle a directory holds, without
// loading its maps
func ResultKind(dir string) (string, error) {
	b,err:=os.ReadFile(filepath.Join(dir, manifestName))
	if err!=nil { return "", err }
	var m resultManifest
	if err:=json.Unmarshal(b, &m); err!=nil { return "", err }
	return m.Kind, nil
}

func writeManifest(dir string, m *resultManifest) error {
	if err:=os.MkdirAll(dir, 0755); err!=nil { return err }
	f,err:=os.Create(filepath.Join(dir, manifestName))
	if err!=nil { return err }
	defer f.Close()
	enc:=json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func readManifest(dir, wantKind string) (*resultManifest, error) {
	b,err:=os.ReadFile(filepath.Join(dir, manifestName))
	if err!=nil { return nil, err }
	var m resultManifest
	if err:=json.Unmarshal(b, &m); err!=nil { return nil, err }
	if m.Kind!=wantKind { return nil, fmt.Errorf("%s holds %q results, want %q", dir, m.Kind, wantKind) }
	return &m, nil
}

// Saves a spectral analysis result bundle to a directory. The
// reflectance cube is stored alongside the per-pixel maps so OPD can
// still be derived after a reload.
func SavePWSResults(dir string, res *analysis.PWSResults) error {
	if res.Reflectance==nil { return fmt.Errorf("results have no reflectance cube") }
	w, h:=res.Reflectance.Width, res.Reflectance.Height
	m:=&resultManifest{
		Version: FormatVersion, Kind: kindPWS, Time: res.Time,
		Width: w, Height: h,
		CubeIDTag: res.CubeIDTag, ReferenceIDTag: res.ReferenceIDTag,
		ExtraReflectionIDTag: res.ExtraReflectionIDTag,
		PWSSettings: &res.Settings, Warnings: res.Warnings,
	}
	fields:=[]analysis.Field{
		analysis.FieldMeanReflectance, analysis.FieldRMS, analysis.FieldPolynomialRMS,
		analysis.FieldAutoCorrelationSlope, analysis.FieldRSquared, analysis.FieldLd,
	}
	for _,f:=range fields {
		data,err:=res.Map(f)
		if err!=nil { continue } // absent fields are simply not written
		if err:=SaveMap(filepath.Join(dir, string(f)), w, h, data); err!=nil { return err }
		m.Fields=append(m.Fields, f)
	}
	if err:=writeManifest(dir, m); err!=nil { return err }

	k:=res.Reflectance
	kh:=&cubeHeader{
		Version: FormatVersion, Kind: kindKCube,
		Width: k.Width, Height: k.Height,
		Wavenumbers: k.Wavenumbers, Meta: k.Meta,
	}
	path:=filepath.Join(dir, "reflectance")
	if err:=writeHeader(path, kh); err!=nil { return err }
	return writeData(path, k.Data)
}

// Loads a spectral analysis result bundle from a directory
func LoadPWSResults(dir string) (*analysis.PWSResults, error) {
	m,err:=readManifest(dir, kindPWS)
	if err!=nil { return nil, err }
	res:=&analysis.PWSResults{
		Time: m.Time, CubeIDTag: m.CubeIDTag,
		ReferenceIDTag: m.ReferenceIDTag, ExtraReflectionIDTag: m.ExtraReflectionIDTag,
		Warnings: m.Warnings,
	}
	if m.PWSSettings!=nil { res.Settings=*m.PWSSettings }
	for _,f:=range m.Fields {
		_, _, data,err:=LoadMap(filepath.Join(dir, string(f)))
		if err!=nil { return nil, err }
		switch f {
		case analysis.FieldMeanReflectance:
			res.MeanReflectance=data
		case analysis.FieldRMS:
			res.RMS=data
		case analysis.FieldPolynomialRMS:
			res.PolynomialRMS=data
		case analysis.FieldAutoCorrelationSlope:
			res.AutoCorrelationSlope=data
		case analysis.FieldRSquared:
			res.RSquared=data
		case analysis.FieldLd:
			res.Ld=data
		default:
			return nil, fmt.Errorf("%s: unknown result field %q", dir, f)
		}
	}

	path:=filepath.Join(dir, "reflectance")
	kh,err:=readHeader(path, kindKCube)
	if err!=nil { return nil, err }
	data,err:=readData(path, int(kh.Width)*int(kh.Height)*len(kh.Wavenumbers))
	if err!=nil { return nil, err }
	res.Reflectance=&cube.KCube{
		Width: kh.Width, Height: kh.Height,
		Wavenumbers: kh.Wavenumbers, Data: data, Meta: kh.Meta,
	}
	return res, nil
}

// Saves a dynamics analysis result bundle to a directory
func SaveDynResults(dir string, res *analysis.DynResults) error {
	m:=&resultManifest{
		Version: FormatVersion, Kind: kindDyn, Time: res.Time,
		Width: res.Width, Height: res.Height,
		CubeIDTag: res.CubeIDTag, ReferenceIDTag: res.ReferenceIDTag,
		ExtraReflectionIDTag: res.ExtraReflectionIDTag,
		DynSettings: &res.Settings, Warnings: res.Warnings,
	}
	fields:=[]analysis.Field{analysis.FieldMeanReflectance, analysis.FieldRMSTSquared, analysis.FieldDiffusion}
	for _,f:=range fields {
		data,err:=res.Map(f)
		if err!=nil { continue }
		if err:=SaveMap(filepath.Join(dir, string(f)), res.Width, res.Height, data); err!=nil { return err }
		m.Fields=append(m.Fields, f)
	}
	return writeManifest(dir, m)
}

// Loads a dynamics analysis result bundle from a directory. The
// diffusion mask is rebuilt from the NaN markers in the diffusion map.
func LoadDynResults(dir string) (*analysis.DynResults, error) {
	m,err:=readManifest(dir, kindDyn)
	if err!=nil { return nil, err }
	res:=&analysis.DynResults{
		Time: m.Time, CubeIDTag: m.CubeIDTag,
		ReferenceIDTag: m.ReferenceIDTag, ExtraReflectionIDTag: m.ExtraReflectionIDTag,
		Width: m.Width, Height: m.Height,
		Warnings: m.Warnings,
	}
	if m.DynSettings!=nil { res.Settings=*m.DynSettings }
	for _,f:=range m.Fields {
		_, _, data,err:=LoadMap(filepath.Join(dir, string(f)))
		if err!=nil { return nil, err }
		switch f {
		case analysis.FieldMeanReflectance:
			res.MeanReflectance=data
		case analysis.FieldRMSTSquared:
			res.RMSTSquared=data
		case analysis.FieldDiffusion:
			res.Diffusion=data
			res.DiffusionMask=make([]bool, len(data))
			for i,v:=range data {
				res.DiffusionMask[i]=v==v // NaN marks masked pixels
			}
		default:
			return nil, fmt.Errorf("%s: unknown result field %q", dir, f)
		}
	}
	return res, nil
}

// Saves a region of interest as a standalone JSON file
func SaveROI(path string, r *roi.ROI) error {
	f,err:=os.Create(path)
	if err!=nil { return err }
	defer f.Close()
	enc:=json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func LoadROI(path string) (*roi.ROI, error) {
	b,err:=os.ReadFile(path)
	if err!=nil { return nil, err }
	var r roi.ROI
	if err:=json.Unmarshal(b, &r); err!=nil { return nil, fmt.Errorf("%s: %w", path, err) }
	return roi.NewROI(r.Name, r.Number, r.Width, r.Height, r.Mask)
}
