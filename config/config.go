// Package config loads the folio configuration from a TOML file, a .env file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "folio.toml"

// Config is the whole folio configuration.
type Config struct {
	User     string          `toml:"user"`
	Currency string          `toml:"currency"` // currency providers quote in
	Period   string          `toml:"period"`
	FX       FXConfig        `toml:"fx"`
	Store    StoreConfig     `toml:"store"`
	Provider ProvidersConfig `toml:"providers"`
	Log      LogConfig       `toml:"log"`
	Server   ServerConfig    `toml:"server"`
	Advisor  AdvisorConfig   `toml:"advisor"`
	Schedule ScheduleConfig  `toml:"schedule"`
}

// FXConfig converts reported values to a display currency with a fixed rate.
// A zero rate reports in Currency of the Config.
type FXConfig struct {
	Currency string  `toml:"currency"`
	Rate     float64 `toml:"rate"`
}

// StoreConfig selects the holdings store.
type StoreConfig struct {
	Kind string `toml:"kind"` // "file" or "sqlite"
	Path string `toml:"path"` // directory for "file", database file for "sqlite"
}

// ProvidersConfig holds one section per price provider.
type ProvidersConfig struct {
	EODHD     ProviderConfig `toml:"eodhd"`
	CoinGecko ProviderConfig `toml:"coingecko"`
}

// ProviderConfig configures a price provider.
type ProviderConfig struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	Interval string `toml:"interval"` // minimum delay between two requests
	Timeout  string `toml:"timeout"`
	CacheDir string `toml:"cache_dir"`
}

// GetInterval returns the pacing interval, zero when unset or invalid.
func (c ProviderConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0
	}
	return d
}

// GetTimeout returns the HTTP timeout, 30s when unset or invalid.
func (c ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AdvisorConfig configures the Gemini advisor.
type AdvisorConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// ScheduleConfig configures the periodic refresh of the watch command.
type ScheduleConfig struct {
	Refresh string `toml:"refresh"` // cron spec
}

// NewDefaultConfig returns a Config with the defaults.
func NewDefaultConfig() *Config {
	return &Config{
		User:     "default",
		Currency: "USD",
		Period:   "month",
		Store: StoreConfig{
			Kind: "file",
			Path: ".folio",
		},
		Provider: ProvidersConfig{
			EODHD: ProviderConfig{
				BaseURL:  "https://eodhd.com/api",
				Interval: "2100ms",
				Timeout:  "30s",
				CacheDir: filepath.Join(os.TempDir(), "folio"),
			},
			CoinGecko: ProviderConfig{
				BaseURL:  "https://api.coingecko.com/api/v3",
				Interval: "350ms",
				Timeout:  "30s",
				CacheDir: filepath.Join(os.TempDir(), "folio"),
			},
		},
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:           "localhost:8080",
			AllowedOrigins: []string{"*"},
		},
		Advisor:  AdvisorConfig{Model: "gemini-2.5-flash"},
		Schedule: ScheduleConfig{Refresh: "*/15 * * * *"},
	}
}

// Load reads the .env file of the working directory, if any, then the TOML
// file at path, if it exists, and finally applies the environment overrides.
// An empty path reads DefaultFile.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultFile
	}
	c := NewDefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read config %q: %w", path, err)
	default:
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("cannot parse config %q: %w", path, err)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EODHD_API_KEY"); v != "" {
		c.Provider.EODHD.APIKey = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.Provider.CoinGecko.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Advisor.APIKey = v
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FOLIO_USER"); v != "" {
		c.User = v
	}
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
}
