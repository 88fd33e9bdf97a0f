package edgescan

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // memory, redis, valkey, sqlite
	addrs    []string
	password string
	path     string

	keyPrefix string
	runTTL    time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer

	hardware      Pinger
	healthTimeout time.Duration
}

// WithMemory keeps runs in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithValkey stores runs in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores runs in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLite stores runs in a local SQLite file, created if missing.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.path = path
	})
}

// WithKeyPrefix namespaces the stored keys. Default: "edgescan:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithRunTTL expires stored runs after ttl. Zero keeps them forever.
func WithRunTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.runTTL = ttl
	})
}

// WithLogger enables structured logging of client calls.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (call counts, durations and
// features found) on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// WithHardware includes p in Health reports under "hardware".
func WithHardware(p Pinger) Option {
	return optionFunc(func(c *clientConfig) {
		c.hardware = p
	})
}

// WithHealthTimeout bounds each health probe. Default: 2s.
func WithHealthTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.healthTimeout = d
	})
}
