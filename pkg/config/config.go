// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/partha/checker-maker/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds relational store configuration. Driver is "postgres"
// in production; "sqlite3" runs the whole service against a local file.
type DatabaseConfig struct {
	Driver      string
	URL         string
	MaxConns    int
	MinConns    int
	PingTimeout time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// Load reads configuration from CHECKER_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CHECKER_HOST", "0.0.0.0"),
			Port:            getEnv("CHECKER_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CHECKER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CHECKER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CHECKER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CHECKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("CHECKER_DB_DRIVER", "postgres"),
			URL:         getEnv("CHECKER_DB_URL", ""),
			MaxConns:    getEnvInt("CHECKER_DB_MAX_CONNS", 10),
			MinConns:    getEnvInt("CHECKER_DB_MIN_CONNS", 2),
			PingTimeout: getEnvDuration("CHECKER_DB_PING_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("CHECKER_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CHECKER_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL must be set (CHECKER_DB_URL)")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
