// Package dxcexec runs a locally installed dxc executable.
package dxcexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"dxdrive/internal/backend"
	"dxdrive/internal/backend/dxcli"
)

// DefaultPath is looked up on PATH when no explicit path is configured.
const DefaultPath = "dxc"

// Runner executes dxc as a child process.
type Runner struct {
	// Path is the executable name or path; DefaultPath when empty.
	Path string
	// Env is appended to the inherited environment.
	Env []string

	mu       sync.Mutex
	resolved string
}

var (
	_ dxcli.Runner          = (*Runner)(nil)
	_ backend.Fingerprinter = (*Runner)(nil)
)

// New returns a dxcli backend running the executable at path.
func New(path string, opts dxcli.Options) *dxcli.Backend {
	return dxcli.New(&Runner{Path: path}, opts)
}

func (r *Runner) Name() string { return "dxc-exec" }

// Fingerprint names the resolved executable together with its size and
// modification time, so swapping or upgrading dxc changes cache keys.
func (r *Runner) Fingerprint() string {
	bin, err := r.lookup()
	if err != nil {
		return r.Name() + "|" + r.Path
	}
	fp := r.Name() + "|" + bin
	if info, err := os.Stat(bin); err == nil {
		fp += fmt.Sprintf("|%d|%d", info.Size(), info.ModTime().UnixNano())
	}
	return fp
}

// lookup resolves the executable. A successful lookup is kept; a failed one
// is retried next time.
func (r *Runner) lookup() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved != "" {
		return r.resolved, nil
	}
	name := r.Path
	if name == "" {
		name = DefaultPath
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found; install the DirectX Shader Compiler or pass --dxc: %w", name, err)
	}
	r.resolved = bin
	return bin, nil
}

// Available reports whether the executable can be found.
func (r *Runner) Available(context.Context) error {
	_, err := r.lookup()
	return err
}

// Run executes the compiler in dir. A non-zero exit is reported through
// RunResult, not as an error.
func (r *Runner) Run(ctx context.Context, dir string, args []string) (dxcli.RunResult, error) {
	bin, err := r.lookup()
	if err != nil {
		return dxcli.RunResult{}, err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return dxcli.RunResult{Stderr: stderr.Bytes()}, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		return dxcli.RunResult{ExitCode: exitErr.ExitCode(), Stderr: stderr.Bytes()}, nil
	default:
		return dxcli.RunResult{}, fmt.Errorf("run %s %s: %w", bin, strings.Join(args, " "), err)
	}
}
