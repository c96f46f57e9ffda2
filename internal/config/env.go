package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays environment variables onto cfg.
// Variable names match the ones the service has always been deployed with.
func FromEnv(cfg *Config) {
	if v := os.Getenv("STORAGE_MODE"); v != "" {
		cfg.Storage.Mode = StorageMode(v)
	}
	if v := os.Getenv("MESSAGE_QUEUE_SERVICE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MAX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Queue.MaxSize = n
		}
	}
	if v := os.Getenv("PULL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Queue.PullTimeout = d
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = n
		}
	}
	if v := os.Getenv("REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	// Any non-empty value enables the bypass.
	if v := os.Getenv("SKIP_MESSAGE_QUEUE_AUTHENTICATION"); v != "" {
		cfg.Auth.Skip = true
	}
	if v := os.Getenv("AUTHENTICATION_SERVICE_URL"); v != "" {
		cfg.Auth.VerifyURL = strings.TrimRight(v, "/") + "/verify"
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = nil
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, p)
			}
		}
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = n
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}
