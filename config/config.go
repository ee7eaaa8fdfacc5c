package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Env  string `yaml:"env"` // "development" or "production"

	// Data directory
	DataDir string `yaml:"data_dir"`

	// Shared relational store used by the sql variant
	DatabasePath string `yaml:"database_path"`

	// Embedded store used by the replica variant
	ReplicaPath string `yaml:"replica_path"`

	// Key-value file used by the kv variant
	KVPath string `yaml:"kv_path"`

	// Upstream server the replica subscribes to and writes through
	UpstreamURL   string `yaml:"upstream_url"`
	FeedTransport string `yaml:"feed_transport"` // "poll" or "ws"

	// How long a live shape request waits for a change before answering up-to-date
	LongPollTimeout time.Duration `yaml:"long_poll_timeout"`

	// Change log compaction on the sql variant
	CompactInterval time.Duration `yaml:"compact_interval"`
	ChangeLogRetain int           `yaml:"change_log_retain"`

	LogLevel string `yaml:"log_level"`

	// Debug settings
	DBLogQueries bool `yaml:"db_log_queries"`
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		c, err := Load(os.Getenv("TODO_CONFIG"))
		if err != nil {
			// The logger depends on config, so report on stderr.
			fmt.Fprintf(os.Stderr, "config: %v, falling back to environment\n", err)
			c, _ = Load("")
		}
		cfg = c
	})
	return cfg
}

// Load builds a configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	c := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(c)
	c.derivePaths()
	return c, nil
}

func defaults() *Config {
	return &Config{
		Port:            12345,
		Host:            "0.0.0.0",
		Env:             "development",
		DataDir:         "./data",
		UpstreamURL:     "http://localhost:12345",
		FeedTransport:   "poll",
		LongPollTimeout: 20 * time.Second,
		CompactInterval: 10 * time.Minute,
		ChangeLogRetain: 1000,
		LogLevel:        "info",
	}
}

// applyEnv reads configuration from environment variables
func applyEnv(c *Config) {
	c.Port = getEnvInt("PORT", c.Port)
	c.Host = getEnv("HOST", c.Host)
	c.Env = getEnv("ENV", c.Env)

	c.DataDir = getEnv("TODO_DATA_DIR", c.DataDir)
	c.DatabasePath = getEnv("TODO_DB_PATH", c.DatabasePath)
	c.ReplicaPath = getEnv("TODO_REPLICA_PATH", c.ReplicaPath)
	c.KVPath = getEnv("TODO_KV_PATH", c.KVPath)

	c.UpstreamURL = getEnv("TODO_UPSTREAM_URL", c.UpstreamURL)
	c.FeedTransport = getEnv("TODO_FEED_TRANSPORT", c.FeedTransport)
	c.LongPollTimeout = getEnvDuration("TODO_LONG_POLL_TIMEOUT", c.LongPollTimeout)
	c.CompactInterval = getEnvDuration("TODO_COMPACT_INTERVAL", c.CompactInterval)
	c.ChangeLogRetain = getEnvInt("TODO_CHANGELOG_RETAIN", c.ChangeLogRetain)

	c.LogLevel = getEnv("TODO_LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("DB_LOG_QUERIES"); v != "" {
		c.DBLogQueries = v == "1"
	}
}

// derivePaths fills store paths left empty with locations under DataDir.
func (c *Config) derivePaths() {
	appDir := filepath.Join(c.DataDir, "app", "todo")
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(appDir, "todos.sqlite")
	}
	if c.ReplicaPath == "" {
		c.ReplicaPath = filepath.Join(appDir, "replica.sqlite")
	}
	if c.KVPath == "" {
		c.KVPath = filepath.Join(appDir, "todos.json")
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
