package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/storage"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"general", "random", "tech"}, cfg.RoomList())
	assert.Equal(t, []string{"*"}, cfg.OriginList())
	assert.Equal(t, 200, cfg.MaxHistory)
	assert.Equal(t, RateLimitConfig{Burst: 20, RefillInterval: time.Second}, cfg.RateLimit())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ROOMS", "lobby, dev ,ops")
	t.Setenv("DEFAULT_ROOM", "dev")
	t.Setenv("MAX_HISTORY", "50")
	t.Setenv("STORE", "badger")
	t.Setenv("STORE_PATH", "/tmp/roomchat")
	t.Setenv("SAVE_TIMEOUT", "2s")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://chat.example.com")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"lobby", "dev", "ops"}, cfg.RoomList())
	assert.Equal(t, "dev", cfg.DefaultRoom)
	assert.Equal(t, 50, cfg.MaxHistory)
	assert.Equal(t, 2*time.Second, cfg.SaveTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.OriginList())

	sc := cfg.StorageConfig()
	assert.Equal(t, storage.KindBadger, sc.Kind)
	assert.Equal(t, "/tmp/roomchat", sc.Path)
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig([]string{"--port", "7000", "--store", "memory", "-l", "debug", "--host", "127.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr())
}

func TestLoadConfigRejectsUnknownFlag(t *testing.T) {
	_, err := LoadConfig([]string{"--no-such-flag"})
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := map[string]func(*Config){
		"port out of range":    func(c *Config) { c.Port = 70000 },
		"zero history":         func(c *Config) { c.MaxHistory = 0 },
		"unknown store":        func(c *Config) { c.Store = "tape" },
		"file without path":    func(c *Config) { c.StorePath = "" },
		"redis without addr":   func(c *Config) { c.Store = "redis"; c.RedisAddr = "" },
		"no rooms":             func(c *Config) { c.Rooms = " , " },
		"default not a room":   func(c *Config) { c.DefaultRoom = "lobby" },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
		"zero message size":    func(c *Config) { c.MaxMessageSize = 0 },
		"zero refill interval": func(c *Config) { c.RateLimitRefill = 0 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsMemoryStoreWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store = "memory"
	cfg.StorePath = ""

	assert.NoError(t, cfg.Validate())
}
