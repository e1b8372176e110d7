// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the monitor.
type Config struct {
	// Hyperliquid endpoints
	APIURL string
	WSURL  string

	// Watch-list
	WatchlistPath string

	// Polling behavior
	MaxFills        int
	WindowHours     int
	AggregateByTime bool
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	AutoRefresh     bool
	WorkerCount     int

	// Live stream
	EnableStream bool

	// UI
	EnableTUI bool

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		APIURL: getEnv("HYPERLIQUID_API_URL", "https://api.hyperliquid.xyz"),
		WSURL:  getEnv("HYPERLIQUID_WS_URL", "wss://api.hyperliquid.xyz/ws"),

		WatchlistPath: getEnv("WATCHLIST_PATH", "./watchlist.yaml"),

		MaxFills:        getEnvInt("MAX_FILLS", 200),
		WindowHours:     getEnvInt("WINDOW_HOURS", 24),
		AggregateByTime: getEnvBool("AGGREGATE_BY_TIME", false),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		RefreshInterval: time.Duration(getEnvInt("REFRESH_SECONDS", 30)) * time.Second,
		AutoRefresh:     getEnvBool("AUTO_REFRESH", true),
		WorkerCount:     getEnvInt("WORKER_COUNT", 5),

		EnableStream: getEnvBool("ENABLE_STREAM", false),

		EnableTUI: getEnvBool("ENABLE_TUI", true),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("HYPERLIQUID_API_URL is required")
	}

	if c.MaxFills < 10 || c.MaxFills > 2000 {
		return fmt.Errorf("MAX_FILLS must be between 10 and 2000")
	}

	if c.WindowHours < 1 || c.WindowHours > 24 {
		return fmt.Errorf("WINDOW_HOURS must be between 1 and 24")
	}

	if c.RefreshInterval < 5*time.Second || c.RefreshInterval > 120*time.Second {
		return fmt.Errorf("REFRESH_SECONDS must be between 5 and 120")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.EnableStream && c.WSURL == "" {
		return fmt.Errorf("HYPERLIQUID_WS_URL is required when ENABLE_STREAM is set")
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
