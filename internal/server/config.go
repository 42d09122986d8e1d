// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the room chat service.
package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/Tyrowin/roomchat/internal/storage"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration. Values come from DefaultConfig,
// then the environment, then command-line flags.
type Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT" validate:"min=1,max=65535"`

	Rooms       string `env:"ROOMS" validate:"required"`
	DefaultRoom string `env:"DEFAULT_ROOM"`
	MaxHistory  int    `env:"MAX_HISTORY" validate:"min=1"`

	Store         string        `env:"STORE" validate:"oneof=file badger redis memory"`
	StorePath     string        `env:"STORE_PATH" validate:"required_if=Store file,required_if=Store badger"`
	RedisAddr     string        `env:"REDIS_ADDR" validate:"required_if=Store redis"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" validate:"min=0"`
	RedisKey      string        `env:"REDIS_KEY"`
	SaveTimeout   time.Duration `env:"SAVE_TIMEOUT" validate:"gt=0"`
	PersistQueue  int           `env:"PERSIST_QUEUE" validate:"min=1"`

	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" validate:"min=1"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" validate:"min=1"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" validate:"gt=0"`
	SendBuffer      int           `env:"SEND_BUFFER" validate:"min=1"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`
}

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		Rooms:           "general,random,tech",
		DefaultRoom:     "general",
		MaxHistory:      history.DefaultLimit,
		Store:           string(storage.KindFile),
		StorePath:       "messages.json",
		RedisAddr:       "localhost:6379",
		RedisKey:        storage.DefaultRedisKey,
		SaveTimeout:     5 * time.Second,
		PersistQueue:    16,
		AllowedOrigins:  "*",
		MaxMessageSize:  64 * 1024,
		RateLimitBurst:  20,
		RateLimitRefill: time.Second,
		SendBuffer:      256,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig builds a Config from defaults, environment variables and args,
// in that order of increasing precedence, and validates the result.
func LoadConfig(args []string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}

	fs := pflag.NewFlagSet("roomchat", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BindFlags registers command-line overrides on fs, using the current values
// as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "interface to listen on")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on")
	fs.StringVar(&c.Rooms, "rooms", c.Rooms, "comma separated list of rooms")
	fs.StringVar(&c.DefaultRoom, "default-room", c.DefaultRoom, "room new connections start in")
	fs.IntVar(&c.MaxHistory, "max-history", c.MaxHistory, "messages kept per room")
	fs.StringVar(&c.Store, "store", c.Store, "snapshot store: file, badger, redis or memory")
	fs.StringVar(&c.StorePath, "store-path", c.StorePath, "snapshot file (file) or directory (badger)")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address for the redis store")
	fs.StringVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "comma separated websocket origins, * for any")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "log level")
}

// Validate checks field constraints and that the default room is one of the rooms.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rooms := c.RoomList()
	if len(rooms) == 0 {
		return errors.New("invalid config: no rooms configured")
	}
	if c.DefaultRoom != "" && !lo.Contains(rooms, c.DefaultRoom) {
		return fmt.Errorf("invalid config: default room %q is not one of %v", c.DefaultRoom, rooms)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RoomList returns the configured rooms.
func (c Config) RoomList() []string {
	return parseList(c.Rooms)
}

// OriginList returns the configured websocket origins.
func (c Config) OriginList() []string {
	return parseList(c.AllowedOrigins)
}

// RateLimit returns the per-connection rate limit settings.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefill}
}

// StorageConfig returns the snapshot sink settings.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Kind:          storage.Kind(c.Store),
		Path:          c.StorePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisKey:      c.RedisKey,
	}
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return lo.Compact(parts)
}
