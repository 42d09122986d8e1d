package storage

import (
	"context"
	"sync"

	"github.com/Tyrowin/roomchat/internal/history"
)

// MemorySink keeps the last saved snapshot in process memory. Nothing
// survives a restart.
type MemorySink struct {
	mu    sync.Mutex
	snap  history.Snapshot
	saves int
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{snap: history.Snapshot{}}
}

// Load returns a copy of the last saved snapshot.
func (m *MemorySink) Load(_ context.Context) (history.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySnapshot(m.snap), nil
}

// Save replaces the held snapshot with a copy of s.
func (m *MemorySink) Save(_ context.Context, s history.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = copySnapshot(s)
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *MemorySink) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op.
func (m *MemorySink) Close() error {
	return nil
}

func copySnapshot(s history.Snapshot) history.Snapshot {
	out := make(history.Snapshot, len(s))
	for room, msgs := range s {
		out[room] = append([]history.Message{}, msgs...)
	}
	return out
}
