// Package storage provides durable homes for history snapshots: a JSON file,
// an embedded BadgerDB, a Redis key, or process memory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/history"
)

// Kind names a sink implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindBadger Kind = "badger"
	KindRedis  Kind = "redis"
	KindMemory Kind = "memory"
)

// ErrUnknownKind is returned by Open for an unsupported Kind.
var ErrUnknownKind = errors.New("storage: unknown sink kind")

// Sink is a history.Sink that holds resources until closed.
type Sink interface {
	history.Sink
	Close() error
}

// Config selects and configures a sink.
type Config struct {
	Kind          Kind
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	Logger        *zerolog.Logger
}

// Open creates the sink described by cfg.
func Open(cfg Config) (Sink, error) {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "storage").Str("kind", string(cfg.Kind)).Logger()
	}

	switch cfg.Kind {
	case KindFile:
		return NewFileSink(cfg.Path, &logger), nil
	case KindBadger:
		return OpenBadgerSink(cfg.Path, &logger)
	case KindRedis:
		return NewRedisSink(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}, &logger), nil
	case KindMemory:
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// decodeSnapshot decodes a room -> messages document. A room whose value is
// not a message array is skipped rather than failing the whole snapshot.
func decodeSnapshot(data []byte, logger *zerolog.Logger) (history.Snapshot, error) {
	var rooms map[string]json.RawMessage
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := make(history.Snapshot, len(rooms))
	for room, raw := range rooms {
		msgs, err := decodeRoom(raw)
		if err != nil {
			logger.Warn().Err(err).Str("room", room).Msg("Skipping unreadable room history")
			continue
		}
		snap[room] = msgs
	}
	return snap, nil
}

func decodeRoom(raw []byte) ([]history.Message, error) {
	var msgs []history.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		return nil, errors.New("room history is not an array")
	}
	return msgs, nil
}
