// Package dxcli adapts a command-line shader compiler to the backend
// interfaces. Each invocation gets a scratch directory holding the source
// and one output file per channel; a Runner executes the compiler there.
package dxcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync/atomic"

	"fortio.org/safecast"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"dxdrive/internal/backend"
)

// File names inside the scratch directory.
const (
	SourceFile      = "input.hlsl"
	ObjectFile      = "object.bin"
	ErrorsFile      = "errors.txt"
	DebugFile       = "debug.pdb"
	ReflectionFile  = "reflection.bin"
	DisassemblyFile = "listing.txt"
)

// RunResult is what a Runner reports about a finished compiler process.
type RunResult struct {
	ExitCode int
	Stderr   []byte
}

// Runner executes the compiler with args, dir being the scratch directory.
// An error means the compiler could not be run at all.
type Runner interface {
	Name() string
	Available(ctx context.Context) error
	Run(ctx context.Context, dir string, args []string) (RunResult, error)
}

// Options configures a Backend.
type Options struct {
	// Fs holds the scratch directories; the OS filesystem when nil.
	Fs afero.Fs
	// TempDir is the parent of scratch directories; the system default when
	// empty.
	TempDir string
	// KeepFiles leaves scratch directories in place for inspection.
	KeepFiles bool
	Logger    logrus.FieldLogger
}

// Backend runs a command-line compiler through a Runner.
type Backend struct {
	runner Runner
	fs     afero.Fs
	tmp    string
	keep   bool
	log    logrus.FieldLogger
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.Fingerprinter = (*Backend)(nil)
)

// New creates a Backend over runner.
func New(runner Runner, opts Options) *Backend {
	b := &Backend{runner: runner, fs: opts.Fs, tmp: opts.TempDir, keep: opts.KeepFiles, log: opts.Logger}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.log = l
	}
	return b
}

func (b *Backend) Name() string { return b.runner.Name() }

// Fingerprint forwards to the runner when it can tell compiler builds apart.
func (b *Backend) Fingerprint() string {
	if f, ok := b.runner.(backend.Fingerprinter); ok {
		return f.Fingerprint()
	}
	return b.runner.Name()
}

// NewSession checks that the compiler can be run.
func (b *Backend) NewSession(ctx context.Context) (backend.Session, error) {
	if err := b.runner.Available(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
	}
	return &session{b: b}, nil
}

type session struct {
	b      *Backend
	closed atomic.Bool
}

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *session) Compile(ctx context.Context, args []string, input backend.Buffer) (backend.Result, error) {
	if s.closed.Load() {
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: errors.New("session closed")}
	}
	src, err := toUTF8(input)
	if err != nil {
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: err}
	}
	dir, err := afero.TempDir(s.b.fs, s.b.tmp, "dxdrive-")
	if err != nil {
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: fmt.Errorf("scratch dir: %w", err)}
	}
	cleanup := func() {
		if s.b.keep {
			return
		}
		if rerr := s.b.fs.RemoveAll(dir); rerr != nil {
			s.b.log.WithError(rerr).WithField("dir", dir).Warn("removing scratch dir")
		}
	}
	if err := afero.WriteFile(s.b.fs, filepath.Join(dir, SourceFile), src, 0o644); err != nil {
		cleanup()
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: fmt.Errorf("write source: %w", err)}
	}

	cmdArgs := CommandArgs(args)
	s.b.log.WithFields(logrus.Fields{"dir": dir, "args": cmdArgs}).Debug("running compiler")
	run, err := s.b.runner.Run(ctx, dir, cmdArgs)
	if err != nil {
		cleanup()
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: fmt.Errorf("%s: %w", s.b.runner.Name(), err)}
	}
	status, err := safecast.Conv[int32](run.ExitCode)
	if err != nil {
		status = backend.CodeFailed
	}

	res := &result{status: status, outputs: make(map[backend.OutputKind][]byte)}
	res.load(s.b.fs, dir, run.Stderr)
	cleanup()
	return res, nil
}

// CommandArgs appends the output-file options and the source file to the
// driver's argument list.
func CommandArgs(args []string) []string {
	out := make([]string, 0, len(args)+12)
	out = append(out, args...)
	out = append(out, "-Fo", ObjectFile, "-Fe", ErrorsFile, "-Fc", DisassemblyFile)
	if slices.Contains(args, "-Zi") && !slices.Contains(args, "-Qembed_debug") {
		out = append(out, "-Fd", DebugFile)
	}
	if slices.Contains(args, "-Qstrip_reflect") {
		out = append(out, "-Fre", ReflectionFile)
	}
	return append(out, SourceFile)
}

type result struct {
	status   int32
	outputs  map[backend.OutputKind][]byte
	released atomic.Bool
}

func (r *result) load(fs afero.Fs, dir string, stderr []byte) {
	read := func(kind backend.OutputKind, name string) {
		data, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err == nil && len(data) > 0 {
			r.outputs[kind] = data
		}
	}
	read(backend.KindObject, ObjectFile)
	read(backend.KindErrors, ErrorsFile)
	read(backend.KindDebugData, DebugFile)
	read(backend.KindReflection, ReflectionFile)
	read(backend.KindDisassembly, DisassemblyFile)

	// A compiler that dies before opening its error file still says why on
	// stderr.
	if _, ok := r.outputs[backend.KindErrors]; !ok && r.status != backend.StatusOK {
		if msg := bytes.TrimSpace(stderr); len(msg) > 0 {
			r.outputs[backend.KindErrors] = msg
		}
	}

	obj, ok := r.outputs[backend.KindObject]
	if !ok {
		return
	}
	c, err := parseContainer(obj)
	if err != nil {
		return
	}
	if p, ok := c.part(PartRootSignature); ok {
		r.outputs[backend.KindRootSignature] = p
	}
	if p, ok := c.part(PartShaderHash); ok {
		r.outputs[backend.KindShaderHash] = p
	}
	if _, ok := r.outputs[backend.KindReflection]; !ok {
		if p, ok := c.part(PartReflection); ok {
			r.outputs[backend.KindReflection] = p
		}
	}
}

func (r *result) Status() int32 { return r.status }

func (r *result) Output(kind backend.OutputKind) (backend.View, bool) {
	if r.released.Load() {
		return nil, false
	}
	data, ok := r.outputs[kind]
	return backend.View(data), ok
}

func (r *result) Release() {
	if r.released.CompareAndSwap(false, true) {
		clear(r.outputs)
	}
}
