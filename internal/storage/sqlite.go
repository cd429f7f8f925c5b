package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore keeps checkpoints in a local SQLite file
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore creates a new SQLite checkpoint store
func NewSQLiteStore(ctx context.Context, path string, timeout time.Duration, logger *logrus.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// busy_timeout makes an overlapping run wait for the write lock instead of failing
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, timeout.Milliseconds())
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{sqlStore{db: db, timeout: timeout, logger: logger}}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Debug("sqlite checkpoint store opened")
	return store, nil
}
