package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/history"
)

// FileSink keeps the snapshot as one indented JSON document. Saves write a
// temporary file next to the target and rename it into place, so a crash
// never leaves a half-written snapshot behind.
type FileSink struct {
	path   string
	mu     sync.Mutex
	logger *zerolog.Logger
}

// NewFileSink returns a sink backed by the file at path.
func NewFileSink(path string, logger *zerolog.Logger) *FileSink {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FileSink{path: path, logger: logger}
}

// Load reads the snapshot. A missing file is an empty snapshot.
func (f *FileSink) Load(_ context.Context) (history.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger.Info().Str("path", f.path).Msg("No persisted snapshot found")
		return history.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}
	return decodeSnapshot(data, f.logger)
}

// Save replaces the file contents with s.
func (f *FileSink) Save(ctx context.Context, s history.Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileSink) Close() error {
	return nil
}
