package main

import (
	"fmt"
	"io"
	"time"

	"dxdrive/internal/buildpipeline"
	"dxdrive/internal/observ"
)

// printStageTimings prints the summed build stages that ran.
func printStageTimings(out io.Writer, timings buildpipeline.Timings, elapsed time.Duration) error {
	labels := map[buildpipeline.Stage]string{
		buildpipeline.StageLoad:    "loaded",
		buildpipeline.StageCache:   "cache",
		buildpipeline.StageCompile: "compiled",
		buildpipeline.StageWrite:   "written",
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", labels[stage], toMillis(timings.Duration(stage))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "total %.1f ms\n", toMillis(elapsed))
	return err
}

// printCallTimings prints the driver's per-phase report of a single call.
func printCallTimings(out io.Writer, report observ.Report) error {
	if len(report.Phases) == 0 {
		return nil
	}
	_, err := io.WriteString(out, report.Summary())
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
