package driver

// Status is the discriminant of an Outcome.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusBackendUnavailable
	StatusInvocationFailed
	StatusCompileErrors
	StatusMissingArtifact
	StatusInvalidArgument
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBackendUnavailable:
		return "backend-unavailable"
	case StatusInvocationFailed:
		return "invocation-failed"
	case StatusCompileErrors:
		return "compile-errors"
	case StatusMissingArtifact:
		return "missing-artifact"
	case StatusInvalidArgument:
		return "invalid-argument"
	default:
		return "unknown"
	}
}

// Retryable reports whether a caller could reasonably retry after changing
// its input. The driver itself never retries.
func (s Status) Retryable() bool {
	return s == StatusCompileErrors || s == StatusInvalidArgument
}
