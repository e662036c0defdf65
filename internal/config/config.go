// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and CRUX_ environment variables over them.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the ranking recompute queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ranking workers, one per queue partition.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many judging request ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the memory result store.
	ShardCount int `koanf:"shard_count"`

	// Store selects the result store: memory or postgres.
	Store string `koanf:"store"`

	// PostgresDSN is used when Store is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// PostgresDebug logs every query.
	PostgresDebug bool `koanf:"postgres_debug"`

	// CatalogPath points at the YAML competition fixture loaded at startup.
	CatalogPath string `koanf:"catalog_path"`

	// UnlimitedTieTolerance is the points difference under which unlimited
	// contest climbers share a rank.
	UnlimitedTieTolerance float64 `koanf:"unlimited_tie_tolerance"`

	// WSSendBuffer is how many events may wait for a websocket client.
	WSSendBuffer int `koanf:"ws_send_buffer"`

	// WSWriteTimeoutMS bounds one websocket write.
	WSWriteTimeoutMS int `koanf:"ws_write_timeout_ms"`

	// PublishBuffer is the per-subscriber buffer of the ranking publisher.
	PublishBuffer int `koanf:"publish_buffer"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		QueueSize:             4096,
		WorkerCount:           runtime.NumCPU(),
		DedupeSize:            50_000,
		ShardCount:            16,
		Store:                 StoreMemory,
		UnlimitedTieTolerance: 1e-3,
		WSSendBuffer:          16,
		WSWriteTimeoutMS:      5000,
		PublishBuffer:         64,
	}
}

// WSWriteTimeout returns WSWriteTimeoutMS as a duration.
func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.WorkerCount > c.QueueSize:
		return fmt.Errorf("%w: worker_count exceeds queue_size", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.ShardCount <= 0:
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	case c.UnlimitedTieTolerance < 0:
		return fmt.Errorf("%w: unlimited_tie_tolerance must not be negative", ErrInvalidConfig)
	case c.WSSendBuffer <= 0:
		return fmt.Errorf("%w: ws_send_buffer must be positive", ErrInvalidConfig)
	case c.WSWriteTimeoutMS <= 0:
		return fmt.Errorf("%w: ws_write_timeout_ms must be positive", ErrInvalidConfig)
	case c.PublishBuffer < 0:
		return fmt.Errorf("%w: publish_buffer must not be negative", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownStore, c.Store)
	}
	return nil
}
