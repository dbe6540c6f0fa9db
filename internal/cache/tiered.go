package cache

import (
	"context"
	"errors"

	"dxdrive/internal/project"
)

// Tiered consults stores in order and copies hits into the faster tiers
// that missed.
type Tiered []Store

// Get returns the first hit. Read errors from one tier fall through to the
// next; they are reported only if no tier hits.
func (t Tiered) Get(ctx context.Context, key project.Digest, out *Entry) (bool, error) {
	var errs []error
	for i, s := range t {
		ok, err := s.Get(ctx, key, out)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		for _, faster := range t[:i] {
			_ = faster.Put(ctx, key, out)
		}
		return true, nil
	}
	return false, errors.Join(errs...)
}

// Put writes to every tier.
func (t Tiered) Put(ctx context.Context, key project.Digest, e *Entry) error {
	var errs []error
	for _, s := range t {
		if err := s.Put(ctx, key, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
