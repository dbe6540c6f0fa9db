package driver

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ErrReleased is returned when a buffer is released twice.
var ErrReleased = errors.New("buffer already released")

// Allocator hands out and takes back the blocks behind OwnedBuffers.
type Allocator interface {
	Allocate(n int) []byte
	Free(b []byte)
}

// HeapAllocator allocates from the Go heap; Free leaves the block to the
// garbage collector.
type HeapAllocator struct{}

func (HeapAllocator) Allocate(n int) []byte { return make([]byte, n) }
func (HeapAllocator) Free([]byte)           {}

// TrackingAllocator wraps another allocator and counts live blocks.
type TrackingAllocator struct {
	Next Allocator

	mu        sync.Mutex
	live      map[unsafe.Pointer]int
	liveBytes int64
	total     int64
}

// NewTrackingAllocator wraps next (HeapAllocator when nil).
func NewTrackingAllocator(next Allocator) *TrackingAllocator {
	if next == nil {
		next = HeapAllocator{}
	}
	return &TrackingAllocator{Next: next, live: make(map[unsafe.Pointer]int)}
}

func (a *TrackingAllocator) Allocate(n int) []byte {
	b := a.Next.Allocate(n)
	if len(b) == 0 {
		return b
	}
	a.mu.Lock()
	a.live[unsafe.Pointer(unsafe.SliceData(b))] = len(b)
	a.liveBytes += int64(len(b))
	a.total++
	a.mu.Unlock()
	return b
}

func (a *TrackingAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	key := unsafe.Pointer(unsafe.SliceData(b))
	a.mu.Lock()
	if n, ok := a.live[key]; ok {
		delete(a.live, key)
		a.liveBytes -= int64(n)
	}
	a.mu.Unlock()
	a.Next.Free(b)
}

// Live returns the number of blocks not yet freed.
func (a *TrackingAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// LiveBytes returns the size of blocks not yet freed.
func (a *TrackingAllocator) LiveBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveBytes
}

// Total returns the number of blocks ever allocated.
func (a *TrackingAllocator) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// OwnedBuffer is a block owned by the caller until Release.
type OwnedBuffer struct {
	data     []byte
	alloc    Allocator
	released atomic.Bool
}

func newOwnedBuffer(alloc Allocator, src []byte) *OwnedBuffer {
	data := alloc.Allocate(len(src))
	copy(data, src)
	return &OwnedBuffer{data: data, alloc: alloc}
}

// Bytes returns the contents; nil after Release.
func (b *OwnedBuffer) Bytes() []byte {
	if b == nil || b.released.Load() {
		return nil
	}
	return b.data
}

// Len returns the length; 0 after Release.
func (b *OwnedBuffer) Len() int { return len(b.Bytes()) }

// String returns the contents as text.
func (b *OwnedBuffer) String() string { return string(b.Bytes()) }

// Release returns the block to the allocator that produced it.
func (b *OwnedBuffer) Release() error {
	if b == nil {
		return nil
	}
	if !b.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	b.alloc.Free(b.data)
	b.data = nil
	return nil
}
