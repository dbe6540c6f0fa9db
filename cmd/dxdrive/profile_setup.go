package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dxdrive/internal/prof"
)

// setupProfiling starts the profilers named by --cpu-profile, --mem-profile
// and --runtime-trace. The cleanup stops them and reports write errors.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	for name, dst := range map[string]*string{
		"cpu-profile":   &opts.CPU,
		"mem-profile":   &opts.Heap,
		"runtime-trace": &opts.Trace,
	} {
		v, err := flags.GetString(name)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	opts.Fs = appFs
	session, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	}, nil
}
