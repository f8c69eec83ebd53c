// Package common provides shared utilities for Handspread
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Handspread
type Config struct {
	Environment string         `toml:"environment"`
	Clients     ClientsConfig  `toml:"clients"`
	Analysis    AnalysisConfig `toml:"analysis"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Finnhub FinnhubConfig `toml:"finnhub"`
	SEC     SECConfig     `toml:"sec"`
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RateLimit       int    `toml:"rate_limit"`
	Timeout         string `toml:"timeout"`
	TTLSeconds      int    `toml:"ttl_seconds"`
	Concurrency     int    `toml:"concurrency"`
	KeepRawPayloads bool   `toml:"keep_raw_payloads"`
}

// GetTimeout parses and returns the timeout duration
func (c *FinnhubConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetTTL returns the snapshot cache TTL. Zero or negative disables caching.
func (c *FinnhubConfig) GetTTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// SECConfig holds SEC metric directory configuration
type SECConfig struct {
	UserAgent string `toml:"user_agent"`
	DataDir   string `toml:"data_dir"`
}

// AnalysisConfig holds defaults for the comps engine
type AnalysisConfig struct {
	Period  string  `toml:"period"`
	Timeout string  `toml:"timeout"`
	TaxRate float64 `toml:"tax_rate"`
}

// GetTimeout parses and returns the per-run timeout duration
func (c *AnalysisConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Clients: ClientsConfig{
			Finnhub: FinnhubConfig{
				BaseURL:     "https://finnhub.io/api/v1",
				RateLimit:   30,
				Timeout:     "30s",
				TTLSeconds:  300,
				Concurrency: 8,
			},
			SEC: SECConfig{
				DataDir: "data/sec",
			},
		},
		Analysis: AnalysisConfig{
			Period:  "ltm",
			Timeout: "60s",
			TaxRate: 0.21,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HANDSPREAD_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("HANDSPREAD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		config.Clients.Finnhub.APIKey = key
	}

	if ttl := os.Getenv("MARKET_TTL_SECONDS"); ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil {
			config.Clients.Finnhub.TTLSeconds = n
		}
	}

	if conc := os.Getenv("MARKET_CONCURRENCY"); conc != "" {
		if n, err := strconv.Atoi(conc); err == nil && n > 0 {
			config.Clients.Finnhub.Concurrency = n
		}
	}

	if ua := os.Getenv("EDGARPACK_USER_AGENT"); ua != "" {
		config.Clients.SEC.UserAgent = ua
	}

	if dir := os.Getenv("HANDSPREAD_SEC_DATA_DIR"); dir != "" {
		config.Clients.SEC.DataDir = dir
	}

	if timeout := os.Getenv("HANDSPREAD_ANALYSIS_TIMEOUT"); timeout != "" {
		config.Analysis.Timeout = timeout
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the config fields that must be set before the
// engine can talk to its upstreams. An empty slice means the config is usable.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Clients.Finnhub.APIKey == "" {
		missing = append(missing, "clients.finnhub.api_key (FINNHUB_API_KEY)")
	}
	if c.Clients.SEC.UserAgent == "" {
		missing = append(missing, "clients.sec.user_agent (EDGARPACK_USER_AGENT)")
	}
	return missing
}

// ResolveAPIKey resolves an API key from environment or fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	// Environment variable mapping
	keyToEnvMapping := map[string][]string{
		"finnhub_api_key":      {"FINNHUB_API_KEY", "HANDSPREAD_FINNHUB_API_KEY"},
		"edgarpack_user_agent": {"EDGARPACK_USER_AGENT", "HANDSPREAD_SEC_USER_AGENT"},
	}

	// Check environment variables first (highest priority)
	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Fallback (lowest priority)
	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}
