package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Port                 string `mapstructure:"port"`
	DatabaseURL          string `mapstructure:"database_url"`
	APIKeyHash           string `mapstructure:"api_key_hash"`
	GeminiAPIKey         string `mapstructure:"gemini_api_key"`
	GeminiModel          string `mapstructure:"gemini_model"`
	CacheTTLHours        int    `mapstructure:"cache_ttl_hours"`
	SweepIntervalMinutes int    `mapstructure:"sweep_interval_minutes"`
	LogLevel             string `mapstructure:"log_level"`
}

// Load reads configuration from environment variables
// Supports _FILE suffix pattern for reading secrets from files (Docker Swarm style)
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("port", "4500")
	v.SetDefault("cache_ttl_hours", 24)
	v.SetDefault("sweep_interval_minutes", 60)
	v.SetDefault("log_level", "info")

	// Bind environment variables
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	// Map of config keys to their env var names
	envBindings := map[string]string{
		"port":                   "PORT",
		"database_url":           "DATABASE_URL",
		"api_key_hash":           "API_KEY_HASH",
		"gemini_api_key":         "GEMINI_API_KEY",
		"gemini_model":           "GEMINI_MODEL",
		"cache_ttl_hours":        "CACHE_TTL_HOURS",
		"sweep_interval_minutes": "SWEEP_INTERVAL_MINUTES",
		"log_level":              "LOG_LEVEL",
	}

	for key, envVar := range envBindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind env var %s: %w", envVar, err)
		}
	}

	cfg := &Config{}

	// Load each config value, checking for _FILE variants first
	cfg.Port = getConfigValue(v, "port", "PORT")
	cfg.DatabaseURL = getConfigValue(v, "database_url", "DATABASE_URL")
	cfg.APIKeyHash = getConfigValue(v, "api_key_hash", "API_KEY_HASH")
	cfg.GeminiAPIKey = getConfigValue(v, "gemini_api_key", "GEMINI_API_KEY")
	cfg.GeminiModel = getConfigValue(v, "gemini_model", "GEMINI_MODEL")
	cfg.CacheTTLHours = v.GetInt("cache_ttl_hours")
	cfg.SweepIntervalMinutes = v.GetInt("sweep_interval_minutes")
	cfg.LogLevel = getConfigValue(v, "log_level", "LOG_LEVEL")

	if cfg.CacheTTLHours <= 0 {
		return nil, fmt.Errorf("CACHE_TTL_HOURS must be positive")
	}
	if cfg.SweepIntervalMinutes <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL_MINUTES must be positive")
	}

	return cfg, nil
}

// getConfigValue checks for FOO_FILE env var first, reads from file if exists,
// otherwise falls back to FOO env var
func getConfigValue(v *viper.Viper, key, envVar string) string {
	// Check for _FILE variant first
	fileEnvVar := envVar + "_FILE"
	if filePath := os.Getenv(fileEnvVar); filePath != "" {
		if data, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	// Fall back to regular env var via viper
	return v.GetString(key)
}
