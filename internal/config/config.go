// Package config provides configuration loading and management for mqueue.
// It supports loading configuration from YAML files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageMode represents the storage backend mode.
type StorageMode string

const (
	// StorageModeMemory uses in-memory implementations for the broker, audit log and event stream.
	StorageModeMemory StorageMode = "memory"
	// StorageModeStorage uses real backends (Redis, PostgreSQL, Kafka).
	StorageModeStorage StorageMode = "storage"
)

// IsValid returns true if the storage mode is valid.
func (m StorageMode) IsValid() bool {
	return m == StorageModeMemory || m == StorageModeStorage
}

// Reserved queue names registered at startup.
const (
	TransactionsQueue = "transactions_queue"
	ResultsQueue      = "results_queue"
)

// Config represents the complete application configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Queue    QueueConfig    `yaml:"queue"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// StorageConfig holds the storage mode configuration.
type StorageConfig struct {
	Mode StorageMode `yaml:"mode"`
}

// UseMemory returns true if in-memory storage should be used.
func (c *StorageConfig) UseMemory() bool {
	return c.Mode == StorageModeMemory
}

// UseStorage returns true if real storage backends should be used.
func (c *StorageConfig) UseStorage() bool {
	return c.Mode == StorageModeStorage
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// QueueConfig holds queue capacity and long-poll settings.
type QueueConfig struct {
	// MaxSize is the capacity of every bounded queue.
	MaxSize int64 `yaml:"max_size"`

	// Unbounded lists queues exempt from the capacity check.
	Unbounded []string `yaml:"unbounded"`

	// Reserved lists queues registered at startup.
	Reserved []string `yaml:"reserved"`

	// PullTimeout bounds how long /pull-n waits for a first message.
	PullTimeout time.Duration `yaml:"pull_timeout"`

	// FlushOnStart clears the broker database before registering reserved queues.
	FlushOnStart *bool `yaml:"flush_on_start"`
}

// ShouldFlush reports whether the broker is flushed at startup.
func (c *QueueConfig) ShouldFlush() bool {
	return c.FlushOnStart == nil || *c.FlushOnStart
}

// RedisConfig holds Redis connection settings.
// Two clients are created from it: one for ordinary commands and one
// reserved for blocking pops.
type RedisConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	DB               int    `yaml:"db"`
	PoolSize         int    `yaml:"pool_size"`
	BlockingPoolSize int    `yaml:"blocking_pool_size"`
}

// AuthConfig holds access control settings.
type AuthConfig struct {
	// Skip disables the access control layer entirely.
	Skip bool `yaml:"skip"`

	// VerifyURL is the identity service endpoint bearer tokens are forwarded to.
	VerifyURL string `yaml:"verify_url"`

	// Timeout bounds a single verification call.
	Timeout time.Duration `yaml:"timeout"`

	// CacheTTL is how long a successful verification is reused.
	// A negative value disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// KafkaConfig holds Kafka connection and topic settings for the lifecycle event stream.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int32  `yaml:"max_open_conns"`
	MaxIdleConns int32  `yaml:"max_idle_conns"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from the specified YAML file path,
// applies defaults and overlays environment variables.
// When optional is true a missing file is not an error.
func Load(path string, optional bool) (*Config, error) {
	cfg := &Config{}

	// Clean the path to prevent path traversal attacks
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	FromEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for configuration fields
// that are not explicitly set in the config file.
func applyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8003
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	// Queue defaults
	if cfg.Queue.MaxSize == 0 {
		cfg.Queue.MaxSize = 10
	}
	if cfg.Queue.Unbounded == nil {
		cfg.Queue.Unbounded = []string{ResultsQueue}
	}
	if cfg.Queue.Reserved == nil {
		cfg.Queue.Reserved = []string{TransactionsQueue, ResultsQueue}
	}
	if cfg.Queue.PullTimeout == 0 {
		cfg.Queue.PullTimeout = 30 * time.Second
	}

	// The write timeout has to outlive a full long-poll.
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.Queue.PullTimeout + 15*time.Second
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "127.0.0.1"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.Username == "" {
		cfg.Redis.Username = "default"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 20
	}
	if cfg.Redis.BlockingPoolSize == 0 {
		cfg.Redis.BlockingPoolSize = 50
	}

	// Auth defaults
	if cfg.Auth.VerifyURL == "" {
		cfg.Auth.VerifyURL = "http://localhost:8000/verify"
	}
	if cfg.Auth.Timeout == 0 {
		cfg.Auth.Timeout = 5 * time.Second
	}
	if cfg.Auth.CacheTTL == 0 {
		cfg.Auth.CacheTTL = 10 * time.Second
	}

	// Kafka defaults
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "mqueue-lifecycle"
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 10
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 2
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if !c.Storage.Mode.IsValid() {
		return fmt.Errorf("invalid storage mode %q", c.Storage.Mode)
	}
	if c.Queue.MaxSize < 1 {
		return fmt.Errorf("queue.max_size must be at least 1, got %d", c.Queue.MaxSize)
	}
	if c.Queue.PullTimeout <= 0 {
		return fmt.Errorf("queue.pull_timeout must be positive, got %s", c.Queue.PullTimeout)
	}
	if c.Server.WriteTimeout <= c.Queue.PullTimeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed queue.pull_timeout (%s)",
			c.Server.WriteTimeout, c.Queue.PullTimeout)
	}
	if !c.Auth.Skip && c.Auth.VerifyURL == "" {
		return errors.New("auth.verify_url is required unless auth.skip is set")
	}
	return nil
}

// Address returns the full server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the PostgreSQL connection string in key/value form.
// Values are quoted so empty or spaced credentials survive parsing.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnQuote(c.Host), c.Port, dsnQuote(c.User), dsnQuote(c.Password), dsnQuote(c.Database), dsnQuote(c.SSLMode),
	)
}

func dsnQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// RedisAddr returns the Redis address in host:port format.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
