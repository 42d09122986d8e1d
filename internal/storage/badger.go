package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/history"
)

const badgerPrefix = "history:"

// BadgerSink stores each room's history under its own key, "history:{room}".
// A save rewrites every room in a single transaction.
type BadgerSink struct {
	db     *badger.DB
	logger *zerolog.Logger
}

// OpenBadgerSink opens (or creates) a BadgerDB in dir.
func OpenBadgerSink(dir string, logger *zerolog.Logger) (*BadgerSink, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerSink{db: db, logger: logger}, nil
}

// Load reads every stored room. Rooms whose value cannot be decoded are skipped.
func (b *BadgerSink) Load(_ context.Context) (history.Snapshot, error) {
	snap := history.Snapshot{}
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			room := strings.TrimPrefix(string(item.Key()), badgerPrefix)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			msgs, err := decodeRoom(value)
			if err != nil {
				b.logger.Warn().Err(err).Str("room", room).Msg("Skipping unreadable room history")
				continue
			}
			snap[room] = msgs
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

// Save replaces the stored history with s. Rooms missing from s are deleted.
func (b *BadgerSink) Save(ctx context.Context, s history.Snapshot) error {
	values := make(map[string][]byte, len(s))
	for room, msgs := range s {
		if msgs == nil {
			msgs = []history.Message{}
		}
		data, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("encode room %s: %w", room, err)
		}
		values[room] = data
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range staleKeys(txn, values) {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		for room, data := range values {
			if err := txn.Set([]byte(badgerPrefix+room), data); err != nil {
				return fmt.Errorf("store room %s: %w", room, err)
			}
		}
		return nil
	})
}

// staleKeys lists the room keys in txn that are not in keep.
func staleKeys(txn *badger.Txn, keep map[string][]byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	prefix := []byte(badgerPrefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	var stale [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		if _, ok := keep[strings.TrimPrefix(string(key), badgerPrefix)]; !ok {
			stale = append(stale, key)
		}
	}
	return stale
}

// Close closes the database.
func (b *BadgerSink) Close() error {
	return b.db.Close()
}
