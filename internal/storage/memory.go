package storage

import (
	"context"
	"sync"

	"github.com/rohankatakam/filewatch/internal/models"
)

// MemoryStore keeps checkpoints in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		return models.NoCheckpoint, ErrClosed
	}
	sha, ok := s.values[key]
	if !ok {
		return models.NoCheckpoint, nil
	}
	return models.CheckpointAt(sha), nil
}

func (s *MemoryStore) Set(ctx context.Context, key, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		return ErrClosed
	}
	s.values[key] = sha
	s.writes++
	return nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		return ErrClosed
	}
	current, ok := s.values[key]
	if !matches(models.Checkpoint{SHA: current, Found: ok}, expected) {
		return ErrConflict
	}
	s.values[key] = sha
	s.writes++
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		return ErrClosed
	}
	return nil
}

// Writes returns the number of successful writes
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
	return nil
}
