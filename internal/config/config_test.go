package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for key := range defaults {
		upper := strings.ToUpper(key)
		if value, ok := os.LookupEnv(upper); ok {
			t.Setenv(upper, value)
			os.Unsetenv(upper)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.EngineResource)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.GuardEnabled())
	assert.Equal(t, "luna", cfg.DefaultUserID)
	assert.Equal(t, 30*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 120*time.Second, cfg.StreamConnectTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddress())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_ENGINE_RESOURCE", " projects/p/locations/l/reasoningEngines/e ")
	t.Setenv("AGENT_ENGINE_API_ENDPOINT", "http://localhost:9999")
	t.Setenv("ALLOWED_ORIGIN", "https://app.example.com")
	t.Setenv("PUBLIC_API_KEY", "secret")
	t.Setenv("DEFAULT_USER_ID", "ana")
	t.Setenv("SESSION_TIMEOUT", "5s")
	t.Setenv("STREAM_CONNECT_TIMEOUT", "1m")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("AGENT_ACCESS_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "projects/p/locations/l/reasoningEngines/e", cfg.EngineResource)
	assert.Equal(t, "http://localhost:9999", cfg.APIEndpoint)
	assert.Equal(t, "https://app.example.com", cfg.AllowedOrigin)
	assert.True(t, cfg.GuardEnabled())
	assert.Equal(t, "ana", cfg.DefaultUserID)
	assert.Equal(t, 5*time.Second, cfg.SessionTimeout)
	assert.Equal(t, time.Minute, cfg.StreamConnectTimeout)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddress())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "tok", cfg.AccessToken)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy.env")
	require.NoError(t, os.WriteFile(path, []byte("PUBLIC_API_KEY=from-file\nDEFAULT_USER_ID=file-user\n"), 0o600))
	t.Setenv("DEFAULT_USER_ID", "from-env")
	t.Cleanup(func() { os.Unsetenv("PUBLIC_API_KEY") })

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "from-env", cfg.DefaultUserID, "existing environment wins over .env")
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}

func TestConfigureZerolog(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	(&LogConfig{Level: "warn"}).ConfigureZerolog()
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	(&LogConfig{Level: "error", Debug: true}).ConfigureZerolog()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	(&LogConfig{Level: "nonsense"}).ConfigureZerolog()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
