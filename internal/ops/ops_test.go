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


package ops

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/backmanlab/pwsgo/internal/cube"
)

func testPromise(id string, fail bool) Promise {
	return func() (*cube.ImageCube, error) {
		if fail { return nil, fmt.Errorf("cube %s failed", id) }
		return cube.NewImageCube(1, 1, []float64{500, 510}, []float32{1, 2}, cube.Metadata{IDTag: id, ExposureMs: 1, Binning: 1})
	}
}

func TestMaterializeAll(t *testing.T) {
	ins:=[]Promise{testPromise("a", false), testPromise("b", true), testPromise("c", false)}
	outs,err:=MaterializeAll(ins, 2, false)
	if err==nil { t.Fatalf("expected error from failing promise") }
	if !strings.Contains(err.Error(), "cube b failed") { t.Errorf("error %q missing promise failure", err) }
	if len(outs)!=2 { t.Fatalf("got %d cubes; want 2", len(outs)) }
	for _,c:=range outs {
		if c.Meta.IDTag=="b" { t.Errorf("failed cube present in output") }
	}
}

func TestRunAllCollectsErrors(t *testing.T) {
	var ran int32
	tasks:=make([]Task, 10)
	for i:=range tasks {
		i:=i
		tasks[i]=func() error {
			atomic.AddInt32(&ran, 1)
			if i%3==0 { return fmt.Errorf("task %d failed", i) }
			return nil
		}
	}
	err:=RunAll(tasks, 3)
	if ran!=10 { t.Errorf("ran=%d tasks; want all 10 despite errors", ran) }
	if err==nil { t.Fatalf("expected joined errors") }
	for _,id:=range []int{0, 3, 6, 9} {
		if !strings.Contains(err.Error(), fmt.Sprintf("task %d failed", id)) {
			t.Errorf("error %q missing task %d", err, id)
		}
	}
}

func TestRemoveNils(t *testing.T) {
	a,_:=cube.NewImageCube(1, 1, []float64{500, 510}, []float32{1, 2}, cube.Metadata{IDTag: "a"})
	got:=RemoveNils([]*cube.ImageCube{nil, a, nil})
	if len(got)!=1 || got[0].Meta.IDTag!="a" { t.Errorf("got %d cubes; want just a", len(got)) }
}

func TestThreadsWithin(t *testing.T) {
	c:=&Context{MemoryMB: 1024, MaxThreads: 8}
	if got:=c.ThreadsWithin(256); got!=4 { t.Errorf("threads=%d for 256MB tasks; want 4", got) }
	if got:=c.ThreadsWithin(4096); got!=1 { t.Errorf("threads=%d for oversized tasks; want 1", got) }
	if got:=c.ThreadsWithin(0); got!=8 { t.Errorf("threads=%d for unknown task size; want all 8", got) }
	if got:=c.ThreadsWithin(100); got!=8 { t.Errorf("threads=%d for small tasks; want all 8", got) }
}

func TestNewContext(t *testing.T) {
	c:=NewContext(nil)
	if c.MemoryMB<=0 { t.Errorf("memoryMB=%d; want positive", c.MemoryMB) }
	if c.MaxThreads<1 { t.Errorf("maxThreads=%d; want at least 1", c.MaxThreads) }
}
