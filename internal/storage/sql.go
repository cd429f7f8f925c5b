package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/sirupsen/logrus"
)

// sqlStore implements Store over any sqlx database with a checkpoints table.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  *logrus.Logger
}

const checkpointSchema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		state_key TEXT PRIMARY KEY,
		sha TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

func (s *sqlStore) initSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, checkpointSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var sha string
	err := s.db.GetContext(ctx, &sha, s.db.Rebind(`SELECT sha FROM checkpoints WHERE state_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NoCheckpoint, nil
	}
	if err != nil {
		return models.NoCheckpoint, fmt.Errorf("read checkpoint %q: %w", key, err)
	}
	return models.CheckpointAt(sha), nil
}

func (s *sqlStore) Set(ctx context.Context, key, sha string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO checkpoints (state_key, sha, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (state_key) DO UPDATE SET sha = excluded.sha, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, key, sha, time.Now().UTC()); err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap is a single conditional statement: an UPDATE guarded by the
// expected sha, or an INSERT that does nothing if a row already exists.
func (s *sqlStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		res sql.Result
		err error
		now = time.Now().UTC()
	)
	if expected.Found {
		res, err = s.db.ExecContext(ctx,
			s.db.Rebind(`UPDATE checkpoints SET sha = ?, updated_at = ? WHERE state_key = ? AND sha = ?`),
			sha, now, key, expected.SHA)
	} else {
		res, err = s.db.ExecContext(ctx,
			s.db.Rebind(`INSERT INTO checkpoints (state_key, sha, updated_at) VALUES (?, ?, ?) ON CONFLICT (state_key) DO NOTHING`),
			key, sha, now)
	}
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write checkpoint %q: %w", key, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
