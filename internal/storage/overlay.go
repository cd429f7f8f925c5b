package storage

import (
	"context"

	"github.com/rohankatakam/filewatch/internal/models"
)

// Overlay reads through to a base store but keeps every write in memory, so
// the base is never modified. Close closes the base.
type Overlay struct {
	base  Store
	local *MemoryStore
}

// NewOverlay wraps base
func NewOverlay(base Store) *Overlay {
	return &Overlay{base: base, local: NewMemoryStore()}
}

func (o *Overlay) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	cp, err := o.local.Get(ctx, key)
	if err != nil || cp.Found {
		return cp, err
	}
	return o.base.Get(ctx, key)
}

func (o *Overlay) Set(ctx context.Context, key, sha string) error {
	return o.local.Set(ctx, key, sha)
}

func (o *Overlay) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	current, err := o.Get(ctx, key)
	if err != nil {
		return err
	}
	if !matches(current, expected) {
		return ErrConflict
	}
	return o.local.Set(ctx, key, sha)
}

func (o *Overlay) Ping(ctx context.Context) error {
	return o.base.Ping(ctx)
}

func (o *Overlay) Close() error {
	o.local.Close()
	return o.base.Close()
}
