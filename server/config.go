package server

import (
	"fmt"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/config"
	"github.com/xiaoyuanzhu-com/local-first-todo/db"
	"github.com/xiaoyuanzhu-com/local-first-todo/replica"
	"github.com/xiaoyuanzhu-com/local-first-todo/workers/compaction"
)

// Storage variants a server can run.
const (
	VariantSQL     = "sql"
	VariantReplica = "replica"
	VariantKV      = "kv"
	VariantMemory  = "memory"
)

// Config holds server configuration
type Config struct {
	// Server infrastructure (immutable, requires restart)
	Port int
	Host string
	Env  string // "development" or "production"

	// Which store backs the API
	Variant string

	// Paths (immutable, requires restart)
	DatabasePath string
	ReplicaPath  string
	KVPath       string

	// Replica settings
	UpstreamURL   string
	FeedTransport string

	// Change feed settings (sql variant)
	LongPollTimeout time.Duration
	CompactInterval time.Duration
	ChangeLogRetain int

	// Debug settings
	DBLogQueries bool
}

// FromAppConfig builds a server config for variant from the process config.
func FromAppConfig(c *config.Config, variant string) *Config {
	return &Config{
		Port:            c.Port,
		Host:            c.Host,
		Env:             c.Env,
		Variant:         variant,
		DatabasePath:    c.DatabasePath,
		ReplicaPath:     c.ReplicaPath,
		KVPath:          c.KVPath,
		UpstreamURL:     c.UpstreamURL,
		FeedTransport:   c.FeedTransport,
		LongPollTimeout: c.LongPollTimeout,
		CompactInterval: c.CompactInterval,
		ChangeLogRetain: c.ChangeLogRetain,
		DBLogQueries:    c.DBLogQueries,
	}
}

// Validate checks that the variant is known.
func (c *Config) Validate() error {
	switch c.Variant {
	case VariantSQL, VariantReplica, VariantKV, VariantMemory:
		return nil
	default:
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// ToDBConfig converts server config to database config
func (c *Config) ToDBConfig() db.Config {
	return db.Config{
		Path:            c.DatabasePath,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0, // Never expire
		LogQueries:      c.DBLogQueries,
	}
}

// ToReplicaConfig converts server config to replica config
func (c *Config) ToReplicaConfig() replica.Config {
	return replica.Config{
		Path:        c.ReplicaPath,
		UpstreamURL: c.UpstreamURL,
		Transport:   c.FeedTransport,
	}
}

// ToCompactionConfig converts server config to compaction worker config
func (c *Config) ToCompactionConfig() compaction.Config {
	return compaction.Config{
		Interval: c.CompactInterval,
		Retain:   c.ChangeLogRetain,
	}
}
