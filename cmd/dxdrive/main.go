// Package main implements the dxdrive CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dxdrive/internal/version"
)

// newRootCmd assembles the command tree with its persistent flags. finish
// stops the tracer and profilers; PersistentPostRun is skipped when a
// command fails, so callers run it after Execute too.
func newRootCmd() (root *cobra.Command, finish func()) {
	var cleanups []func()
	finish = func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		cleanups = nil
	}
	root = &cobra.Command{
		Use:          "dxdrive",
		Short:        "HLSL shader compiler driver",
		Long:         `dxdrive compiles HLSL shaders through dxc, one driver call per shader, and builds whole shader projects from dxdrive.toml.`,
		Version:      version.Short(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			stopProfiling, err := setupProfiling(cmd)
			if err != nil {
				return err
			}
			cleanups = append(cleanups, stopProfiling)
			stopTracing, err := setupTracing(cmd)
			if err != nil {
				return err
			}
			cleanups = append(cleanups, stopTracing)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { finish() },
	}

	root.AddCommand(newCompileCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	addPersistentFlags(root)
	return root, finish
}

func main() {
	root, finish := newRootCmd()
	err := root.Execute()
	finish()
	if err != nil {
		os.Exit(1)
	}
}

func addPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("backend", "", "compiler backend (exec|docker|scripted)")
	flags.String("dxc", "", "path to the dxc executable (exec backend)")
	flags.String("docker-image", "", "image providing dxc (docker backend)")
	flags.String("log-level", "", "log level (trace|debug|info|warn|error)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Int("max-diagnostics", 0, "maximum number of diagnostics to show")
	flags.Bool("timings", false, "show timing information")
	flags.Bool("warnings-as-errors", false, "treat compiler warnings as errors")
	flags.String("debug-info", "", "debug information (embed|strip|none)")
	flags.Bool("strip-reflection", false, "strip reflection data from the object")

	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "ring buffer capacity for --trace-mode ring|both")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")

	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
