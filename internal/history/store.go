package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ErrUnknownRoom is returned when appending to a room the store does not track.
var ErrUnknownRoom = errors.New("history: unknown room")

// StoreConfig configures a Store.
type StoreConfig struct {
	Rooms     []string
	Limit     int
	Scheduler Scheduler
	Logger    *zerolog.Logger
}

// Store holds the in-memory history of every known room. In-memory state is
// authoritative; durable snapshots are best effort.
type Store struct {
	mu        sync.RWMutex
	logs      map[string][]Message
	limit     int
	scheduler Scheduler
	logger    zerolog.Logger
}

// NewStore creates a store with an empty log for every room in cfg.Rooms.
func NewStore(cfg StoreConfig) *Store {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "history").Logger()
	}

	logs := make(map[string][]Message, len(cfg.Rooms))
	for _, room := range cfg.Rooms {
		logs[room] = []Message{}
	}

	return &Store{
		logs:      logs,
		limit:     limit,
		scheduler: cfg.Scheduler,
		logger:    logger,
	}
}

// Load replaces the in-memory logs with the snapshot read from src. Rooms
// the store does not know are ignored and stored logs longer than the limit
// keep only their most recent entries. A failed read leaves every room empty.
func (s *Store) Load(ctx context.Context, src Loader) {
	snap, err := src.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load history snapshot, starting with empty rooms")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for room := range s.logs {
		stored, ok := snap[room]
		if !ok {
			continue
		}
		trimmed := lo.Subset(stored, -s.limit, uint(s.limit))
		s.logs[room] = append([]Message{}, trimmed...)
		loaded += len(trimmed)
	}
	s.logger.Info().Int("messages", loaded).Msg("Loaded persisted messages")
}

// Append adds msg to the end of room's log, evicting the oldest entries
// beyond the limit, and schedules a snapshot of every room. The scheduler
// must not block.
func (s *Store) Append(room string, msg Message) error {
	s.mu.Lock()
	log, ok := s.logs[room]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownRoom, room)
	}
	log = append(log, msg)
	if over := len(log) - s.limit; over > 0 {
		log = log[over:]
	}
	s.logs[room] = log

	if s.scheduler != nil {
		s.scheduler.Schedule(s.snapshotLocked())
	}
	s.mu.Unlock()
	return nil
}

// Get returns a copy of room's log, oldest first. Unknown rooms yield an
// empty, non-nil slice.
func (s *Store) Get(room string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Message{}, s.logs[room]...)
}

// Snapshot returns a deep copy of every room's log.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Limit returns the per-room capacity.
func (s *Store) Limit() int {
	return s.limit
}

func (s *Store) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(s.logs))
	for room, log := range s.logs {
		snap[room] = append([]Message{}, log...)
	}
	return snap
}
