package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps checkpoints in Redis or any Redis-protocol KV service
// (Vercel KV, Upstash). Values are the raw commit id, so keys written by
// earlier deployments are read unchanged.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewRedisStore connects using a redis:// or rediss:// URL
func NewRedisStore(ctx context.Context, url, prefix string, timeout time.Duration, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}

	client := redis.NewClient(opts)

	// Verify connectivity (fail fast on startup)
	pingCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.WithField("addr", opts.Addr).Debug("redis checkpoint store connected")
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (models.Checkpoint, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return models.NoCheckpoint, nil
	}
	if err != nil {
		return models.NoCheckpoint, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	return models.CheckpointAt(val), nil
}

func (s *RedisStore) Set(ctx context.Context, key, sha string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key(key), sha, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap uses WATCH/MULTI/EXEC: the EXEC is discarded if the key
// changes between the read and the write.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, expected models.Checkpoint, sha string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		current := models.NoCheckpoint
		val, err := tx.Get(ctx, k).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			current = models.CheckpointAt(val)
		}

		if !matches(current, expected) {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, sha, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, k)
	if errors.Is(err, ErrConflict) || errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("redis compare-and-swap failed for key %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
