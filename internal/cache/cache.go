// Package cache stores successful compilation results keyed by everything
// that can change the compiler's output.
package cache

import (
	"context"
	"errors"
	"time"

	"fortio.org/safecast"

	"dxdrive/internal/backend"
	"dxdrive/internal/project"
)

// Current schema version - increment when Entry format changes.
const schemaVersion uint16 = 1

// ErrSchema reports an entry written by an incompatible version.
var ErrSchema = errors.New("cache entry schema mismatch")

// Entry is the cached payload of one successful compilation.
type Entry struct {
	Schema        uint16
	Backend       string
	Object        []byte
	RootSignature []byte
	// Extras is keyed by backend.OutputKind.
	Extras map[uint8][]byte
	// Requested lists the output kinds asked for when the entry was stored;
	// a kind in Requested but not in Extras was not produced.
	Requested   []uint8
	Diagnostics string
	CreatedAt   time.Time
}

// NewEntry stamps the current schema version.
func NewEntry(backendName string) *Entry {
	return &Entry{
		Schema:    schemaVersion,
		Backend:   backendName,
		Extras:    make(map[uint8][]byte),
		CreatedAt: time.Now().UTC(),
	}
}

// SetExtra stores a copy of data under kind.
func (e *Entry) SetExtra(kind backend.OutputKind, data []byte) {
	if e.Extras == nil {
		e.Extras = make(map[uint8][]byte)
	}
	e.Extras[uint8(kind)] = append([]byte(nil), data...)
}

// Extra returns the bytes stored under kind.
func (e *Entry) Extra(kind backend.OutputKind) ([]byte, bool) {
	b, ok := e.Extras[uint8(kind)]
	return b, ok
}

// Size is the payload byte count.
func (e *Entry) Size() int64 {
	n := len(e.Object) + len(e.RootSignature) + len(e.Diagnostics)
	for _, b := range e.Extras {
		n += len(b)
	}
	size, err := safecast.Conv[int64](n)
	if err != nil {
		return -1
	}
	return size
}

func (e *Entry) check() error {
	if e.Schema != schemaVersion {
		return ErrSchema
	}
	return nil
}

// Store is a cache backend. Get reports false on a miss.
type Store interface {
	Get(ctx context.Context, key project.Digest, out *Entry) (bool, error)
	Put(ctx context.Context, key project.Digest, e *Entry) error
}

// Key derives the cache key for one compilation: the backend fingerprint
// (see backend.Fingerprint), the final argument list, the source encoding and
// the source bytes.
func Key(backendID string, args []string, enc backend.Encoding, source []byte) project.Digest {
	argDigests := make([]project.Digest, 0, len(args))
	for _, a := range args {
		argDigests = append(argDigests, project.Sum([]byte(a)))
	}
	parts := []project.Digest{
		project.Sum([]byte(backendID)),
		project.Combine(project.Sum(nil), argDigests...),
		project.Sum([]byte(enc.String())),
	}
	return project.Combine(project.Sum(source), parts...)
}
