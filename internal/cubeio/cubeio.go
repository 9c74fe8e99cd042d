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


// Package cubeio persists image cubes and analysis results. The format
// is deliberately plain: a JSON header file next to a raw little-endian
// float32 data file, no autodetection.
package cubeio

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/backmanlab/pwsgo/internal/cube"
)

// Version tag written into every header for forward compatibility
const FormatVersion="1.0"

const (
	kindPWS  ="pws"
	kindDyn  ="dynamics"
	kindER   ="extraReflectance"
	kindMap  ="map"
	kindKCube="kcube"
)

type cubeHeader struct {
	Version       string                `json:"version"`
	Kind          string                `json:"kind"`
	Width         int32                 `json:"width"`
	Height        int32                 `json:"height"`
	Wavelengths   []float64             `json:"wavelengths,omitempty"`
	Wavenumbers   []float64             `json:"wavenumbers,omitempty"`
	Times         []float64             `json:"times,omitempty"`
	Wavelength    float64               `json:"wavelength,omitempty"`
	NA            float64               `json:"numericalAperture,omitempty"`
	System        string                `json:"system,omitempty"`
	IDTag         string                `json:"idTag,omitempty"`
	Meta          cube.Metadata         `json:"metadata"`
	Status        cube.ProcessingStatus `json:"processingStatus"`
}

func headerPath(path string) string { return path+".json" }
func dataPath(path string) string   { return path+".dat" }

func writeHeader(path string, h *cubeHeader) error {
	f,err:=os.Create(headerPath(path))
	if err!=nil { return err }
	defer f.Close()
	enc:=json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(h)
}

func readHeader(path, wantKind string) (*cubeHeader, error) {
	b,err:=os.ReadFile(headerPath(path))
	if err!=nil { return nil, err }
	var h cubeHeader
	if err:=json.Unmarshal(b, &h); err!=nil { return nil, fmt.Errorf("%s: %w", headerPath(path), err) }
	if h.Kind!=wantKind {
		return nil, fmt.Errorf("%s holds a %q, want %q", headerPath(path), h.Kind, wantKind)
	}
	return &h, nil
}

func writeData(path string, data []float32) error {
	f,err:=os.Create(dataPath(path))
	if err!=nil { return err }
	defer f.Close()
	w:=bufio.NewWriter(f)
	if err:=binary.Write(w, binary.LittleEndian, data); err!=nil { return err }
	return w.Flush()
}

func readData(path string, want int) ([]float32, error) {
	f,err:=os.Open(dataPath(path))
	if err!=nil { return nil, err }
	defer f.Close()
	data:=make([]float32, want)
	if err:=binary.Read(bufio.NewReader(f), binary.LittleEndian, data); err!=nil {
		return nil, fmt.Errorf("%s: %w", dataPath(path), err)
	}
	return data, nil
}

// Saves a spectral image cube as path.json and path.dat
func SaveImageCube(path string, c *cube.ImageCube) error {
	h:=&cubeHeader{
		Version: FormatVersion, Kind: kindPWS,
		Width: c.Width, Height: c.Height,
		Wavelengths: c.Wavelengths,
		Meta: c.Meta, Status: c.Status,
	}
	if err:=writeHeader(path, h); err!=nil { return err }
	return writeData(path, c.Data)
}

func LoadImageCube(path string) (*cube.ImageCube, error) {
	h,err:=readHeader(path, kindPWS)
	if err!=nil { return nil, err }
	data,err:=readData(path, int(h.Width)*int(h.Height)*len(h.Wavelengths))
	if err!=nil { return nil, err }
	c,err:=cube.NewImageCube(h.Width, h.Height, h.Wavelengths, data, h.Meta)
	if err!=nil { return nil, err }
	c.Status=h.Status
	return c, nil
}

// Saves a dynamics cube as path.json and path.dat
func SaveDynCube(path string, c *cube.DynCube) error {
	h:=&cubeHeader{
		Version: FormatVersion, Kind: kindDyn,
		Width: c.Width, Height: c.Height,
		Times: c.Times, Wavelength: c.Wavelength,
		Meta: c.Meta, Status: c.Status,
	}
	if err:=writeHeader(path, h); err!=nil { return err }
	return writeData(path, c.Data)
}

func LoadDynCube(path string) (*cube.DynCube, error) {
	h,err:=readHeader(path, kindDyn)
	if err!=nil { return nil, err }
	data,err:=readData(path, int(h.Width)*int(h.Height)*len(h.Times))
	if err!=nil { return nil, err }
	c,err:=cube.NewDynCube(h.Width, h.Height, h.Times, h.Wavelength, data, h.Meta)
	if err!=nil { return nil, err }
	c.Status=h.Status
	return c, nil
}

// Saves an extra reflectance calibration as path.json and path.dat
func SaveExtraReflectance(path string, c *cube.ExtraReflectanceCube) error {
	h:=&cubeHeader{
		Version: FormatVersion, Kind: kindER,
		Width: c.Width, Height: c.Height,
		Wavelengths: c.Wavelengths,
		NA: c.NumericalAperture, System: c.SystemName, IDTag: c.IDTag,
	}
	if err:=writeHeader(path, h); err!=nil { return err }
	return writeData(path, c.Data)
}

func LoadExtraReflectance(path string) (*cube.ExtraReflectanceCube, error) {
	h,err:=readHeader(path, kindER)
	if err!=nil { return nil, err }
	data,err:=readData(path, int(h.Width)*int(h.Height)*len(h.Wavelengths))
	if err!=nil { return nil, err }
	return cube.NewExtraReflectanceCube(h.Width, h.Height, h.Wavelengths, data, h.NA, h.System, h.IDTag)
}

// Saves a 2D per-pixel map as path.json and path.dat
func SaveMap(path string, width, height int32, data []float32) error {
	if int(width)*int(height)!=len(data) {
		return fmt.Errorf("map has %d values for %dx%d", len(data), width, height)
	}
	h:=&cubeHeader{Version: FormatVersion, Kind: kindMap, Width: width, Height: height}
	if err:=writeHeader(path, h); err!=nil { return err }
	return writeData(path, data)
}

func LoadMap(path string) (width, height int32, data []float32, err error) {
	h,err:=readHeader(path, kindMap)
	if err!=nil { return 0, 0, nil, err }
	data,err=readData(path, int(h.Width)*int(h.Height))
	if err!=nil { return 0, 0, nil, err }
	return h.Width, h.Height, data, nil
}
