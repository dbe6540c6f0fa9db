package backend

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that a session could not be created.
var ErrUnavailable = errors.New("compiler backend unavailable")

// CodeFailed is the generic failure code (E_FAIL) used when a backend error
// carries no native status.
const CodeFailed int32 = -2147467259

// StatusError carries the backend's native status code for a failed
// invocation.
type StatusError struct {
	Code int32
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend status 0x%08x", uint32(e.Code))
	}
	return fmt.Sprintf("backend status 0x%08x: %v", uint32(e.Code), e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode extracts the native status from err, falling back to CodeFailed.
func StatusCode(err error) int32 {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeFailed
}
