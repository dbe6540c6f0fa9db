package backend

import "context"

// Backend creates compilation sessions.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// NewSession instantiates a fresh session. Failures should wrap
	// ErrUnavailable.
	NewSession(ctx context.Context) (Session, error)
}

// Fingerprinter is implemented by backends whose output depends on more than
// their name, such as the compiler build they run.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies b in cache keys: its Fingerprint when it has one,
// its name otherwise.
func Fingerprint(b Backend) string {
	if f, ok := b.(Fingerprinter); ok {
		if fp := f.Fingerprint(); fp != "" {
			return fp
		}
	}
	return b.Name()
}

// Session compiles one input at a time. Implementations need not be
// goroutine-safe.
type Session interface {
	// Compile invokes the compiler. A non-nil error means the invocation
	// itself failed; errors describing the program travel in the Errors
	// channel of the returned Result instead.
	Compile(ctx context.Context, args []string, input Buffer) (Result, error)

	// Close releases the session.
	Close() error
}

// Result is a multi-channel compilation result owned by the backend.
type Result interface {
	// Status returns the backend status code; StatusOK means success.
	Status() int32

	// Output returns a borrowed view of the channel, or false when absent.
	Output(kind OutputKind) (View, bool)

	// Release invalidates every view handed out by Output.
	Release()
}

// StatusOK is the success status code.
const StatusOK int32 = 0

// Buffer is the source handed to a session.
type Buffer struct {
	Data     []byte
	Encoding Encoding
}

// View is a borrowed window into memory owned by a Result.
type View []byte

// Len returns the view length.
func (v View) Len() int { return len(v) }

// Empty reports whether the view carries no bytes.
func (v View) Empty() bool { return len(v) == 0 }
