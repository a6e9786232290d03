package queuectl

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TimKotowski/queuectl/internal/executor"
	"github.com/TimKotowski/queuectl/internal/queuedb"
)

const (
	DefaultQueue    = "default"
	DefaultPriority = 5
)

type Config struct {
	//////////////////////
	// QUEUE SECTION    //
	//////////////////////

	// Fallback poll interval for idle workers when poll_interval_ms can't be read from the config table.
	PollInterval time.Duration

	// Timeout applied to jobs enqueued without timeout_sec. Zero runs them unbounded.
	DefaultTimeout time.Duration

	// Row limit for List when the caller passes none.
	ListLimit int

	// Per-run deadline for maintenance handlers.
	MaintenanceTimeout time.Duration

	/////////////////////
	// GENERAL SECTION //
	/////////////////////

	// Store backend, queuedb.DriverPostgres or queuedb.DriverSQLite.
	Driver string

	DSN string

	TLSConfig *tls.Config

	// Logs every query through bundebug when set.
	QueryDebug bool

	Clock clockwork.Clock

	Logger *slog.Logger

	// Registerer receives the queue's Prometheus collectors. A private registry is used when nil.
	Registerer prometheus.Registerer

	Executor executor.Executor
}

type ConfigFunc func(c *Config)

func NewConfig(opts ...ConfigFunc) *Config {
	c := &Config{
		PollInterval:       time.Second,
		ListLimit:          50,
		MaintenanceTimeout: 15 * time.Second,
		Driver:             queuedb.DriverPostgres,
		Clock:              clockwork.NewRealClock(),
		Logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.Executor == nil {
		c.Executor = executor.NewShellExecutor()
	}

	return c
}

func WithPollInterval(interval time.Duration) ConfigFunc {
	return func(c *Config) {
		c.PollInterval = interval
	}
}

func WithDefaultTimeout(timeout time.Duration) ConfigFunc {
	return func(c *Config) {
		c.DefaultTimeout = timeout
	}
}

func WithListLimit(limit int) ConfigFunc {
	return func(c *Config) {
		c.ListLimit = limit
	}
}

func WithMaintenanceTimeout(timeout time.Duration) ConfigFunc {
	return func(c *Config) {
		c.MaintenanceTimeout = timeout
	}
}

func WithDriver(driver string) ConfigFunc {
	return func(c *Config) {
		c.Driver = driver
	}
}

func WithDSN(dsn string) ConfigFunc {
	return func(c *Config) {
		c.DSN = dsn
	}
}

func WithTLSConfig(tlsConfig *tls.Config) ConfigFunc {
	return func(c *Config) {
		c.TLSConfig = tlsConfig
	}
}

func WithQueryDebug(enabled bool) ConfigFunc {
	return func(c *Config) {
		c.QueryDebug = enabled
	}
}

func WithClock(clock clockwork.Clock) ConfigFunc {
	return func(c *Config) {
		c.Clock = clock
	}
}

func WithLogger(logger *slog.Logger) ConfigFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithRegisterer(registerer prometheus.Registerer) ConfigFunc {
	return func(c *Config) {
		c.Registerer = registerer
	}
}

func WithExecutor(exec executor.Executor) ConfigFunc {
	return func(c *Config) {
		c.Executor = exec
	}
}
