package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const boltBucket = "checkpoints"

// BoltStore keeps checkpoints in a local bbolt file
type BoltStore struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// NewBoltStore opens (or creates) the bbolt file at path
func NewBoltStore(path string, timeout time.Duration, logger *logrus.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	// Timeout bounds the wait for the file lock held by an overlapping run
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	logger.WithField("path", path).Debug("bolt checkpoint store opened")
	return &BoltStore{db: db, logger: logger}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	cp := models.NoCheckpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		cp = readBolt(tx, key)
		return nil
	})
	if err != nil {
		return models.NoCheckpoint, fmt.Errorf("read checkpoint %q: %w", key, err)
	}
	return cp, nil
}

func (s *BoltStore) Set(ctx context.Context, key, sha string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), []byte(sha))
	})
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap runs inside a single read-write transaction; bbolt allows one writer at a time.
func (s *BoltStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if !matches(readBolt(tx, key), expected) {
			return ErrConflict
		}
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), []byte(sha))
	})
	if err == ErrConflict {
		return err
	}
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(boltBucket)) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func readBolt(tx *bolt.Tx, key string) models.Checkpoint {
	data := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
	if data == nil {
		return models.NoCheckpoint
	}
	// data is only valid for the life of the transaction
	return models.CheckpointAt(string(data))
}
