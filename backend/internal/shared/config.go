// ============================================================================
// backend/internal/shared/config.go
// Configuration management and environment variable helpers
// ============================================================================

package shared

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// Config holds the full dashboard service configuration.
type Config struct {
	ServiceName string
	HTTPPort    string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	LogDir      string

	Upstream   UpstreamConfig
	ChangeFeed ChangeFeedConfig
	CORS       CORSConfig
}

// UpstreamConfig holds settings for the school platform REST API.
type UpstreamConfig struct {
	BaseURL        string
	APIToken       string
	RequestTimeout time.Duration
}

// ChangeFeedConfig holds settings for the change-notification transport.
type ChangeFeedConfig struct {
	// Transport is "poll" (GET the change feed on an interval) or "stream"
	// (long-lived websocket push).
	Transport    string
	PollInterval time.Duration
	PollTimeout  time.Duration
	StreamURL    string
}

// CORSConfig holds CORS-related configuration for the gateway.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from a .env file.
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Warning: %s file not found, using system environment variables", envFile)
		return err
	}

	return nil
}

// LoadConfig loads the dashboard service configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServiceName: "dashboard",
		HTTPPort:    GetEnv("HTTP_PORT", "8080"),
		Environment: GetEnv("ENVIRONMENT", "development"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogDir:      GetEnv("LOG_DIR", "logs"),
	}

	baseURL := GetEnv("UPSTREAM_BASE_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL environment variable is required")
	}

	cfg.Upstream = UpstreamConfig{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIToken:       GetEnv("UPSTREAM_API_TOKEN", ""),
		RequestTimeout: GetDurationEnv("UPSTREAM_REQUEST_TIMEOUT", 10*time.Second),
	}

	cfg.ChangeFeed = ChangeFeedConfig{
		Transport:    GetEnv("CHANGE_FEED_TRANSPORT", "poll"),
		PollInterval: GetDurationEnv("CHANGE_FEED_POLL_INTERVAL", 15*time.Second),
		PollTimeout:  GetDurationEnv("CHANGE_FEED_POLL_TIMEOUT", 8*time.Second),
		StreamURL:    GetEnv("CHANGE_FEED_STREAM_URL", ""),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins:   GetStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		AllowedMethods:   GetStringSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
		AllowedHeaders:   GetStringSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
		AllowCredentials: GetBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		MaxAge:           GetIntEnv("CORS_MAX_AGE", 300),
	}

	return cfg, nil
}

// ValidateConfig validates the loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}

	switch cfg.ChangeFeed.Transport {
	case "poll":
		if cfg.ChangeFeed.PollInterval <= 0 {
			return fmt.Errorf("change feed poll interval must be positive")
		}
	case "stream":
		if cfg.ChangeFeed.StreamURL == "" {
			return fmt.Errorf("CHANGE_FEED_STREAM_URL is required for stream transport")
		}
	default:
		return fmt.Errorf("unknown change feed transport: %s", cfg.ChangeFeed.Transport)
	}

	return nil
}

// ============================================================================
// Environment Variable Helper Functions
// ============================================================================

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv retrieves an integer environment variable or returns a default value
func GetIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetBoolEnv retrieves a boolean environment variable or returns a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetDurationEnv retrieves a duration environment variable or returns a default value.
// Supports format like "30s", "5m", "1h"
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetStringSliceEnv retrieves a comma-separated string list or returns a default value
func GetStringSliceEnv(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

// ============================================================================
// Environment-Specific Configuration
// ============================================================================

// IsDevelopment checks if running in development environment
func IsDevelopment(cfg *Config) bool {
	return cfg.Environment == "development"
}

// IsProduction checks if running in production environment
func IsProduction(cfg *Config) bool {
	return cfg.Environment == "production"
}

// GetLogLevel returns the configured log level, defaulting to info.
func GetLogLevel(cfg *Config) string {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[cfg.LogLevel] {
		return cfg.LogLevel
	}

	return "info"
}
