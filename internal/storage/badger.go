package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/sirupsen/logrus"
)

const badgerKeyPrefix = "checkpoint:"

// BadgerStore keeps checkpoints in a local badger directory
type BadgerStore struct {
	db     *badger.DB
	logger *logrus.Logger
}

// NewBadgerStore opens (or creates) the badger directory at dir
func NewBadgerStore(dir string, logger *logrus.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger}).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	logger.WithField("dir", dir).Debug("badger checkpoint store opened")
	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	var cp models.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		cp, err = readBadger(txn, key)
		return err
	})
	if err != nil {
		return models.NoCheckpoint, fmt.Errorf("read checkpoint %q: %w", key, err)
	}
	return cp, nil
}

func (s *BadgerStore) Set(ctx context.Context, key, sha string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), []byte(sha))
	})
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap reads and writes in one transaction. Badger aborts the commit
// with ErrConflict when another transaction wrote the key after our read.
func (s *BadgerStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readBadger(txn, key)
		if err != nil {
			return err
		}
		if !matches(current, expected) {
			return ErrConflict
		}
		return txn.Set([]byte(badgerKeyPrefix+key), []byte(sha))
	})
	if errors.Is(err, ErrConflict) || errors.Is(err, badger.ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func readBadger(txn *badger.Txn, key string) (models.Checkpoint, error) {
	item, err := txn.Get([]byte(badgerKeyPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.NoCheckpoint, nil
	}
	if err != nil {
		return models.NoCheckpoint, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return models.NoCheckpoint, err
	}
	return models.CheckpointAt(string(val)), nil
}

// badgerLogger routes badger's internal logging to logrus.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger *logrus.Logger
}

func (l badgerLogger) Errorf(format string, a ...interface{}) {
	l.logger.WithField("component", "badger").Errorf(format, a...)
}

func (l badgerLogger) Warningf(format string, a ...interface{}) {
	l.logger.WithField("component", "badger").Warnf(format, a...)
}

func (l badgerLogger) Infof(format string, a ...interface{}) {
	l.logger.WithField("component", "badger").Debugf(format, a...)
}

func (l badgerLogger) Debugf(format string, a ...interface{}) {
	l.logger.WithField("component", "badger").Debugf(format, a...)
}
