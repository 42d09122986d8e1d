package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/history"
)

// DefaultRedisKey holds the snapshot when no key is configured.
const DefaultRedisKey = "roomchat:history"

// RedisConfig configures a RedisSink.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	DialTimeout time.Duration
	MaxRetries  int
}

// RedisSink keeps the whole snapshot as one JSON value under a single key.
type RedisSink struct {
	rdb    *redis.Client
	key    string
	logger *zerolog.Logger
}

// NewRedisSink creates a sink. No connection is made until first use.
func NewRedisSink(cfg RedisConfig, logger *zerolog.Logger) *RedisSink {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		MaxRetries:  cfg.MaxRetries,
	})
	return &RedisSink{rdb: rdb, key: key, logger: logger}
}

// Load reads the snapshot. A missing key is an empty snapshot.
func (r *RedisSink) Load(ctx context.Context) (history.Snapshot, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Info().Str("key", r.key).Msg("No persisted snapshot found")
		return history.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}
	return decodeSnapshot(data, r.logger)
}

// Save overwrites the key with s.
func (r *RedisSink) Save(ctx context.Context, s history.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}

// Close releases the client's connections.
func (r *RedisSink) Close() error {
	return r.rdb.Close()
}
