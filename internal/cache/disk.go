package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack/v5"

	"dxdrive/internal/project"
)

// DiskStore keeps entries as msgpack files under a directory.
// Thread-safe for concurrent access.
type DiskStore struct {
	mu  sync.RWMutex
	fs  afero.Fs
	dir string
}

// OpenDiskStore creates dir when needed.
func OpenDiskStore(fs afero.Fs, dir string) (*DiskStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{fs: fs, dir: dir}, nil
}

// Dir returns the cache directory.
func (c *DiskStore) Dir() string { return c.dir }

func (c *DiskStore) pathFor(key project.Digest) string {
	hexKey := key.String()
	return filepath.Join(c.dir, "objects", hexKey[:2], hexKey+".mp")
}

// Put serializes and writes an entry, replacing any previous one atomically.
func (c *DiskStore) Put(_ context.Context, key project.Digest, e *Entry) error {
	if c == nil {
		return nil
	}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := c.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := afero.TempFile(c.fs, filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = c.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	if err := c.fs.Rename(tmp, p); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	return nil
}

// Get reads and deserializes an entry.
func (c *DiskStore) Get(_ context.Context, key project.Digest, out *Entry) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := afero.ReadFile(c.fs, c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, err
	}
	if err := out.check(); err != nil {
		return false, err
	}
	return true, nil
}

// DropAll removes every entry.
func (c *DiskStore) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fs.RemoveAll(filepath.Join(c.dir, "objects"))
}
