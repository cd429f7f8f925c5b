package storage

import (
	"context"
	"fmt"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/sirupsen/logrus"
)

// Open returns the checkpoint store selected by cfg.Type
func Open(ctx context.Context, cfg config.StoreConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "bolt":
		return NewBoltStore(cfg.ResolvedPath(), cfg.Timeout, logger)
	case "badger":
		return NewBadgerStore(cfg.ResolvedPath(), logger)
	case "redis":
		return NewRedisStore(ctx, cfg.URL, cfg.KeyPrefix, cfg.Timeout, logger)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, cfg.Timeout, logger)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.ResolvedPath(), cfg.Timeout, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
