package request

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError names the offending request field.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }
