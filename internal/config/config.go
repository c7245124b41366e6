// Package config reads application configuration from the environment.
package config

import (
	"os"
	"strconv"

	"genecorr/domain/core"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Null     NullConfig
	Paths    PathConfig
}

// DatabaseConfig holds database connection settings. URL empty means runs
// and results are not persisted.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Addr string
}

// NullConfig holds null-simulation defaults
type NullConfig struct {
	CachePath  string // bolt cache file; empty disables caching
	Iterations int
	Seed       int64
	Workers    int // 0 = one per CPU
}

// PathConfig holds file system paths
type PathConfig struct {
	MatrixFile string
	DesignFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("API_ADDR", ":8080"),
		},
		Null: NullConfig{
			CachePath:  os.Getenv("NULL_CACHE_PATH"),
			Iterations: getEnvIntOrDefault("DEFAULT_ITERATIONS", 10000),
			Seed:       getEnvInt64OrDefault("SEED", 1),
			Workers:    getEnvIntOrDefault("WORKERS", 0),
		},
		Paths: PathConfig{
			MatrixFile: os.Getenv("MATRIX_FILE"),
			DesignFile: os.Getenv("DESIGN_FILE"),
		},
	}

	if cfg.Null.Iterations < 1 {
		return nil, core.NewConfigurationError("DEFAULT_ITERATIONS", strconv.Itoa(cfg.Null.Iterations))
	}
	if cfg.Null.Workers < 0 {
		return nil, core.NewConfigurationError("WORKERS", strconv.Itoa(cfg.Null.Workers))
	}
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
