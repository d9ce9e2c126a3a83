package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"EODHD_API_KEY", "COINGECKO_API_KEY", "GEMINI_API_KEY", "FOLIO_LOG_LEVEL", "FOLIO_USER"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), c)
	assert.Equal(t, 2100*time.Millisecond, c.Provider.EODHD.GetInterval())
	assert.Equal(t, 350*time.Millisecond, c.Provider.CoinGecko.GetInterval())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "folio.toml")
	data := `
user = "alice"

[fx]
currency = "ARS"
rate = 850

[store]
kind = "SQLite"
path = "folio.db"

[providers.eodhd]
api_key = "from-file"
interval = "1s"
timeout = "5s"

[server]
addr = ":9000"
allowed_origins = ["http://localhost:3000"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.User)
	assert.Equal(t, FXConfig{Currency: "ARS", Rate: 850}, c.FX)
	assert.Equal(t, "sqlite", c.Store.Kind)
	assert.Equal(t, "from-file", c.Provider.EODHD.APIKey)
	assert.Equal(t, time.Second, c.Provider.EODHD.GetInterval())
	assert.Equal(t, 5*time.Second, c.Provider.EODHD.GetTimeout())
	assert.Equal(t, "https://api.coingecko.com/api/v3", c.Provider.CoinGecko.BaseURL, "unset keys keep their default")
	assert.Equal(t, []string{"http://localhost:3000"}, c.Server.AllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "folio.toml")
	require.NoError(t, os.WriteFile(path, []byte("user = \"alice\"\n[providers.eodhd]\napi_key = \"from-file\"\n"), 0o644))
	t.Setenv("EODHD_API_KEY", "from-env")
	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("FOLIO_USER", "bob")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Provider.EODHD.APIKey)
	assert.Equal(t, "gemini", c.Advisor.APIKey)
	assert.Equal(t, "bob", c.User)
}

func TestLoadInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "folio.toml")
	require.NoError(t, os.WriteFile(path, []byte("user = "), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetTimeoutDefault(t *testing.T) {
	assert.Equal(t, 30*time.Second, ProviderConfig{}.GetTimeout())
	assert.Equal(t, 30*time.Second, ProviderConfig{Timeout: "soon"}.GetTimeout())
	assert.Zero(t, ProviderConfig{Interval: "soon"}.GetInterval())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", &buf)
	log.Info().Msg("hidden")
	log.Warn().Str("provider", "eodhd").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "provider=")
}
