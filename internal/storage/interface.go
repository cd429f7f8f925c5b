package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rohankatakam/filewatch/internal/models"
)

// Common errors
var (
	// ErrConflict means a compare-and-swap found a different stored value
	ErrConflict = errors.New("checkpoint changed concurrently")
	ErrClosed   = errors.New("store closed")
)

// Store is a durable mapping from state key to last-seen commit id.
// Checkpoints are never deleted by this system.
type Store interface {
	// Get returns the stored checkpoint, or models.NoCheckpoint when absent
	Get(ctx context.Context, key string) (models.Checkpoint, error)

	// Set unconditionally stores sha under key (last writer wins)
	Set(ctx context.Context, key, sha string) error

	// CompareAndSwap stores sha only if the current value still equals expected,
	// including expected being absent. Returns ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	Close() error
}

// withTimeout bounds a single store operation when d is positive
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func matches(current, expected models.Checkpoint) bool {
	if current.Found != expected.Found {
		return false
	}
	return !current.Found || current.SHA == expected.SHA
}
