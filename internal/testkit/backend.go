// Package testkit provides a deterministic compiler backend and outcome
// checks shared by tests and the scripted developer backend.
package testkit

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"dxdrive/internal/backend"
)

// Poison is written over every view when a Result is released, so a caller
// still holding a borrowed view sees garbage instead of stale data.
const Poison byte = 0xCC

// Script is the canned response of one invocation.
type Script struct {
	Status  int32
	Outputs map[backend.OutputKind][]byte

	// InvokeErr makes Session.Compile fail.
	InvokeErr error
	// Panic makes Session.Compile panic with this value.
	Panic any
}

// Responder computes a Script from the invocation arguments.
type Responder func(args []string, input backend.Buffer) Script

// Backend is a scripted backend.Backend.
type Backend struct {
	// SessionErr makes NewSession fail.
	SessionErr error
	// CloseErr is returned from Session.Close.
	CloseErr error

	respond Responder

	sessions    atomic.Int64
	closed      atomic.Int64
	invocations atomic.Int64
	released    atomic.Int64

	mu        sync.Mutex
	lastArgs  []string
	lastInput backend.Buffer
	ctxErrs   []error
}

// NewBackend returns a backend answering every call with s.
func NewBackend(s Script) *Backend {
	return &Backend{respond: func([]string, backend.Buffer) Script { return s }}
}

// NewResponderBackend returns a backend computing responses with fn.
func NewResponderBackend(fn Responder) *Backend {
	return &Backend{respond: fn}
}

// Success is a script producing object code and nothing else.
func Success(object []byte) Script {
	return Script{Outputs: map[backend.OutputKind][]byte{backend.KindObject: object}}
}

// Failure is a script producing diagnostics.
func Failure(diagnostics string) Script {
	return Script{
		Status:  1,
		Outputs: map[backend.OutputKind][]byte{backend.KindErrors: []byte(diagnostics)},
	}
}

func (b *Backend) Name() string { return "scripted" }

func (b *Backend) NewSession(context.Context) (backend.Session, error) {
	if b.SessionErr != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrUnavailable, b.SessionErr)
	}
	b.sessions.Add(1)
	return &session{b: b}, nil
}

// Sessions returns the number of sessions created.
func (b *Backend) Sessions() int { return int(b.sessions.Load()) }

// OpenSessions returns sessions created but not closed.
func (b *Backend) OpenSessions() int { return int(b.sessions.Load() - b.closed.Load()) }

// Invocations returns the number of Compile calls.
func (b *Backend) Invocations() int { return int(b.invocations.Load()) }

// Releases returns the number of released results.
func (b *Backend) Releases() int { return int(b.released.Load()) }

// LastArgs returns the arguments of the latest invocation.
func (b *Backend) LastArgs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lastArgs...)
}

// LastInput returns a copy of the latest invocation's input.
func (b *Backend) LastInput() backend.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return backend.Buffer{Data: bytes.Clone(b.lastInput.Data), Encoding: b.lastInput.Encoding}
}

// ContextErrs returns ctx.Err() as seen by each invocation.
func (b *Backend) ContextErrs() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]error(nil), b.ctxErrs...)
}

type session struct {
	b      *Backend
	closed atomic.Bool
}

func (s *session) Compile(ctx context.Context, args []string, input backend.Buffer) (backend.Result, error) {
	if s.closed.Load() {
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: fmt.Errorf("session closed")}
	}
	s.b.invocations.Add(1)
	s.b.mu.Lock()
	s.b.lastArgs = append([]string(nil), args...)
	s.b.lastInput = backend.Buffer{Data: bytes.Clone(input.Data), Encoding: input.Encoding}
	s.b.ctxErrs = append(s.b.ctxErrs, ctx.Err())
	s.b.mu.Unlock()

	script := s.b.respond(args, input)
	if script.Panic != nil {
		panic(script.Panic)
	}
	if script.InvokeErr != nil {
		return nil, script.InvokeErr
	}
	res := &Result{status: script.Status, outputs: make(map[backend.OutputKind][]byte, len(script.Outputs)), b: s.b}
	for kind, data := range script.Outputs {
		res.outputs[kind] = bytes.Clone(data)
	}
	return res, nil
}

func (s *session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.b.closed.Add(1)
	}
	return s.b.CloseErr
}

// Result is the scripted backend.Result.
type Result struct {
	status   int32
	outputs  map[backend.OutputKind][]byte
	b        *Backend
	released atomic.Bool
}

func (r *Result) Status() int32 { return r.status }

func (r *Result) Output(kind backend.OutputKind) (backend.View, bool) {
	if r.released.Load() {
		return nil, false
	}
	data, ok := r.outputs[kind]
	if !ok {
		return nil, false
	}
	return backend.View(data), true
}

func (r *Result) Release() {
	if !r.released.CompareAndSwap(false, true) {
		return
	}
	for _, data := range r.outputs {
		for i := range data {
			data[i] = Poison
		}
	}
	if r.b != nil {
		r.b.released.Add(1)
	}
}
