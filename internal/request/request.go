// Package request turns caller-supplied primitives into the argument list a
// compiler backend consumes.
package request

import (
	"slices"

	"dxdrive/internal/backend"
)

// Define is a single preprocessor definition.
type Define struct {
	Name  string
	Value string
}

// String renders the define the way the -D argument expects it.
func (d Define) String() string {
	if d.Value == "" {
		return d.Name
	}
	return d.Name + "=" + d.Value
}

// CompilationRequest describes one compilation. Source is borrowed for the
// duration of the call.
type CompilationRequest struct {
	Source     []byte
	Encoding   backend.Encoding
	EntryPoint string
	Profile    string
	Defines    []Define
	Flags      FlagSet

	// Extras names optional channels to copy in addition to the object code
	// and root signature.
	Extras []backend.OutputKind
}

// Input wraps the source as a backend input buffer.
func (r *CompilationRequest) Input() backend.Buffer {
	return backend.Buffer{Data: r.Source, Encoding: r.Encoding}
}

// WantsExtra reports whether kind was requested in Extras.
func (r *CompilationRequest) WantsExtra(kind backend.OutputKind) bool {
	return slices.Contains(r.Extras, kind)
}
