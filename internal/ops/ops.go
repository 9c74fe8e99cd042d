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


// Package ops schedules batch analysis work with bounded concurrency.
package ops

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/pbnjay/memory"

	"github.com/backmanlab/pwsgo/internal/cube"
)

// An execution context for batch runs
type Context struct {
	Log        io.Writer
	MemoryMB   int // memory.TotalMemory()/1024/1024
	MaxThreads int `json:"maxThreads"`
}

func NewContext(log io.Writer) *Context {
	return &Context{
		Log:        log,
		MemoryMB:   int(memory.TotalMemory()/1024/1024),
		MaxThreads: runtime.GOMAXPROCS(0),
	}
}

func (c *Context) Printf(format string, args ...interface{}) {
	if c.Log!=nil { fmt.Fprintf(c.Log, format, args...) }
}

// The number of workers that can each hold a working set of taskMB
// megabytes within the context's memory budget. At least 1, at most
// MaxThreads.
func (c *Context) ThreadsWithin(taskMB int) int {
	n:=c.MaxThreads
	if c.MemoryMB>0 && taskMB>0 {
		if m:=c.MemoryMB/taskMB; m<n { n=m }
	}
	if n<1 { n=1 }
	return n
}

// A promise for an image cube. Returns a materialized cube, or an error
type Promise func() (*cube.ImageCube, error)

// Materializes all promises with the given concurrency limit. Failed
// promises leave a nil slot that is removed from the output; their
// errors are joined and returned after all promises have settled.
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*cube.ImageCube, err error) {
	if len(ins)==0 { return nil, nil }
	if !forget {
		outs=make([]*cube.ImageCube, len(ins))
	}
	limiter:=make(chan bool, maxThreads)
	errs:=make(chan error, len(ins))
	for i,in:=range ins {
		limiter<-true
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			f,err:=theIn() // materialize the promise
			if err!=nil {
				errs<-err
				return
			}
			if !forget { outs[i]=f }
			errs<-nil
		}(i, in)
	}
	for i:=0; i<cap(limiter); i++ { // wait for goroutines to finish
		limiter<-true
	}
	for i:=0; i<len(ins); i++ { // collect errors
		if e:=<-errs; e!=nil { err=joinErrors(err, e) }
	}
	return RemoveNils(outs), err
}

// A unit of batch work, typically one acquisition analyzed and saved
type Task func() error

// Runs all tasks with the given concurrency limit. Every task runs to
// completion; errors are joined and returned at the end.
func RunAll(tasks []Task, maxThreads int) (err error) {
	if len(tasks)==0 { return nil }
	limiter:=make(chan bool, maxThreads)
	errs:=make(chan error, len(tasks))
	for _,t:=range tasks {
		limiter<-true
		go func(t Task) {
			defer func() { <-limiter }()
			errs<-t()
		}(t)
	}
	for i:=0; i<cap(limiter); i++ {
		limiter<-true
	}
	for i:=0; i<len(tasks); i++ {
		if e:=<-errs; e!=nil { err=joinErrors(err, e) }
	}
	return err
}

func joinErrors(a, b error) error {
	if a==nil { return b }
	return errors.New(a.Error()+"; "+b.Error())
}

// Remove nils from an array of cubes, editing the underlying array in place
func RemoveNils(cubes []*cube.ImageCube) []*cube.ImageCube {
	o:=0
	for i:=0; i<len(cubes); i++ {
		if cubes[i]!=nil {
			cubes[o]=cubes[i]
			o++
		}
	}
	for i:=o; i<len(cubes); i++ {
		cubes[i]=nil
	}
	return cubes[:o]
}
