// Package history keeps the bounded, per-room message logs replayed to
// clients on join, and schedules durable snapshots of them.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of messages retained per room.
const DefaultLimit = 200

// Message is a single chat line. It is never modified after creation.
type Message struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
}

// NewMessage creates a message with a fresh id, stamped at ts.
func NewMessage(username, text string, ts time.Time) Message {
	return Message{
		ID:       uuid.NewString(),
		Username: username,
		Text:     text,
		TS:       ts.UnixMilli(),
	}
}

// Snapshot maps a room id to its history, oldest first.
type Snapshot map[string][]Message

// Loader reads a previously saved snapshot. A missing snapshot is reported
// as an empty Snapshot and a nil error.
type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Saver replaces the durable snapshot with s.
type Saver interface {
	Save(ctx context.Context, s Snapshot) error
}

// Sink is a durable home for snapshots.
type Sink interface {
	Loader
	Saver
}

// Scheduler accepts snapshots for asynchronous saving. Schedule is called
// with the store locked, in append order, and must not block.
type Scheduler interface {
	Schedule(s Snapshot)
}
