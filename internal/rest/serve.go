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


package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/backmanlab/pwsgo/internal/batch"
	"github.com/backmanlab/pwsgo/internal/ops"
)

func NewRouter() *gin.Engine {
	r:=gin.Default()
	api:=r.Group("/api")
	{
		v1:=api.Group("/v1")
		{
			v1.GET ("/ping",      getPing)
			v1.POST("/analyze",   postAnalyze)
			v1.POST("/dynamics",  postDynamics)
			v1.POST("/calibrate", postCalibrate)
			v1.POST("/compile",   postCompile)
		}
	}
	return r
}

func Serve() {
	NewRouter().Run() // listen and serve on 0.0.0.0:8080
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m,err:=json.MarshalIndent(args, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Binds the job document, switches the response to a streaming text
// log, and runs the job with the log attached to the context
func runJob(c *gin.Context, args interface{}, run func(ctx *ops.Context) error) {
	if err:=c.ShouldBind(args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter:=c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx:=ops.NewContext(logWriter)
	if err:=run(ctx); err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	logWriter.(http.Flusher).Flush()
}

func postAnalyze(c *gin.Context) {
	var args batch.PWSJob
	runJob(c, &args, func(ctx *ops.Context) error { return batch.RunPWSJob(&args, ctx) })
}

func postDynamics(c *gin.Context) {
	var args batch.DynJob
	runJob(c, &args, func(ctx *ops.Context) error { return batch.RunDynJob(&args, ctx) })
}

func postCalibrate(c *gin.Context) {
	var args batch.CalibrateJob
	runJob(c, &args, func(ctx *ops.Context) error { return batch.RunCalibrateJob(&args, ctx) })
}

func postCompile(c *gin.Context) {
	var args batch.CompileJob
	runJob(c, &args, func(ctx *ops.Context) error { return batch.RunCompileJob(&args, ctx) })
}
