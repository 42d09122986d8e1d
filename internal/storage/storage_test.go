package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/history"
)

func sampleSnapshot() history.Snapshot {
	return history.Snapshot{
		"general": {
			{ID: "a", Username: "alice", Text: "hi", TS: 1700000000000},
			{ID: "b", Username: "bob", Text: "hello", TS: 1700000000500},
		},
		"random": {},
		"tech":   {{ID: "c", Username: "carol", Text: "", TS: 1700000001000}},
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(Config{Kind: "tape"})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestOpenKinds(t *testing.T) {
	dir := t.TempDir()

	for _, cfg := range []Config{
		{Kind: KindMemory},
		{Kind: KindFile, Path: filepath.Join(dir, "messages.json")},
		{Kind: KindBadger, Path: filepath.Join(dir, "badger")},
		{Kind: KindRedis, RedisAddr: "127.0.0.1:1"},
	} {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			sink, err := Open(cfg)
			require.NoError(t, err)
			require.NotNil(t, sink)
			assert.NoError(t, sink.Close())
		})
	}
}

func TestFileSinkMissingFileIsEmpty(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "messages.json"), nil)

	snap, err := sink.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "messages.json")
	sink := NewFileSink(path, nil)
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, sampleSnapshot()))
	got, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)

	// A second save rewrites rather than appends.
	replacement := history.Snapshot{"general": {{ID: "z", Username: "zed", Text: "only", TS: 1}}}
	require.NoError(t, sink.Save(ctx, replacement))
	got, err = sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileSinkCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileSink(path, nil).Load(context.Background())
	require.Error(t, err)
}

func TestFileSinkSkipsMalformedRooms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	doc := `{"general":[{"id":"a","username":"alice","text":"hi","ts":1}],"random":"oops","tech":null}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	snap, err := NewFileSink(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, history.Snapshot{
		"general": {{ID: "a", Username: "alice", Text: "hi", TS: 1}},
	}, snap)
}

func TestFileSinkHonoursCancelledContext(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "messages.json"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, sink.Save(ctx, sampleSnapshot()), context.Canceled)
}

func TestBadgerSinkRoundTrip(t *testing.T) {
	sink, err := OpenBadgerSink(t.TempDir(), nil)
	require.NoError(t, err)
	defer sink.Close()
	ctx := context.Background()

	empty, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, sink.Save(ctx, sampleSnapshot()))
	got, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)

	updated := sampleSnapshot()
	updated["general"] = updated["general"][1:]
	require.NoError(t, sink.Save(ctx, updated))
	got, err = sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestBadgerSinkSaveDropsRemovedRooms(t *testing.T) {
	sink, err := OpenBadgerSink(t.TempDir(), nil)
	require.NoError(t, err)
	defer sink.Close()
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, sampleSnapshot()))

	reduced := sampleSnapshot()
	delete(reduced, "tech")
	require.NoError(t, sink.Save(ctx, reduced))

	got, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, reduced, got)
	assert.NotContains(t, got, "tech")
}

func TestBadgerSinkSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	sink, err := OpenBadgerSink(dir, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Save(ctx, sampleSnapshot()))
	require.NoError(t, sink.Close())

	reopened, err := OpenBadgerSink(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}

func TestRedisSinkUnreachableServer(t *testing.T) {
	sink := NewRedisSink(RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}, nil)
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := sink.Load(ctx)
	require.Error(t, err)
	require.Error(t, sink.Save(ctx, sampleSnapshot()))
}

func TestRedisSinkDefaultKey(t *testing.T) {
	sink := NewRedisSink(RedisConfig{Addr: "127.0.0.1:1"}, nil)
	defer sink.Close()

	assert.Equal(t, DefaultRedisKey, sink.key)
}

func TestMemorySinkCopies(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	snap := sampleSnapshot()
	require.NoError(t, sink.Save(ctx, snap))
	snap["general"][0].Text = "mutated"

	got, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", got["general"][0].Text)
	assert.Equal(t, 1, sink.Saves())
}
