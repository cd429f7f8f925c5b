package storage

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore keeps checkpoints in a PostgreSQL table
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to PostgreSQL and ensures the checkpoints table exists
func NewPostgresStore(ctx context.Context, dsn string, timeout time.Duration, logger *logrus.Logger) (*PostgresStore, error) {
	connectCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(connectCtx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// One short-lived run at a time needs very few connections
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{sqlStore{db: db, timeout: timeout, logger: logger}}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("postgres checkpoint store connected")
	return store, nil
}
