package driver

import (
	"fmt"

	"dxdrive/internal/backend"
	"dxdrive/internal/observ"
)

// Outcome is the single result of a Compile call.
//
// Object and RootSignature are set only on StatusSuccess (RootSignature only
// when the backend produced one). Diagnostics is set only on
// StatusCompileErrors.
type Outcome struct {
	Status        Status
	Object        *OwnedBuffer
	RootSignature *OwnedBuffer
	Diagnostics   *OwnedBuffer
	Extras        map[backend.OutputKind]*OwnedBuffer

	// BackendCode is the backend's native status for StatusInvocationFailed.
	BackendCode int32

	// CallID correlates the outcome with log lines and trace spans.
	CallID  string
	Timings observ.Report

	err error
}

// OK reports whether the compilation succeeded.
func (o *Outcome) OK() bool { return o.Status == StatusSuccess }

// Err returns nil on success and an *Error otherwise.
func (o *Outcome) Err() error {
	if o.Status == StatusSuccess {
		return nil
	}
	return &Error{Status: o.Status, Code: o.BackendCode, Err: o.err}
}

// Extra returns the copied extra channel of kind, if any.
func (o *Outcome) Extra(kind backend.OutputKind) *OwnedBuffer {
	if o.Extras == nil {
		return nil
	}
	return o.Extras[kind]
}

// Release releases every buffer the outcome still holds.
func (o *Outcome) Release() {
	for _, b := range o.buffers() {
		_ = b.Release()
	}
}

func (o *Outcome) buffers() []*OwnedBuffer {
	out := make([]*OwnedBuffer, 0, 3+len(o.Extras))
	for _, b := range []*OwnedBuffer{o.Object, o.RootSignature, o.Diagnostics} {
		if b != nil {
			out = append(out, b)
		}
	}
	for _, kind := range backend.Kinds {
		if b := o.Extras[kind]; b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Error describes a failed Outcome.
type Error struct {
	Status Status
	Code   int32
	Err    error
}

func (e *Error) Error() string {
	msg := "compile " + e.Status.String()
	if e.Status == StatusInvocationFailed {
		msg += fmt.Sprintf(" (backend status 0x%08x)", uint32(e.Code))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
