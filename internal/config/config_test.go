package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"databases": {"sqlite3": {"dsn": "data/library.db"}}}`)
	t.Setenv("SERVER_ADDRESS", "")
	t.Setenv("BOT_LOG_BACKEND", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddress, cfg.BasicConfig.ServerAddress)
	assert.Equal(t, DefaultProviderTimeout, cfg.ProviderTimeout())
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout())
	assert.Equal(t, BotLogMemory, cfg.BasicConfig.BotLogBackend)
	assert.Equal(t, 3, cfg.BasicConfig.MessagePollSeconds)
	assert.Equal(t, 5, cfg.BasicConfig.SessionPollSeconds)
	assert.Equal(t, DefaultProviderOrder, cfg.ProviderOrder)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/library.db"), cfg.Databases["sqlite3"].DSN)
}

func TestLoadKeepsInMemoryDSN(t *testing.T) {
	path := writeConfig(t, `{"databases": {"sqlite3": {"dsn": ":memory:"}}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Databases["sqlite3"].DSN)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000", "provider_timeout_seconds": 5},
		"providers": {"gemini": {"model": "gemini-2.5-flash"}}
	}`)
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("REDIS_ADDR", "cache.local:6380")
	t.Setenv("BOT_LOG_BACKEND", "REDIS")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout())
	assert.Equal(t, "g-key", cfg.Providers["gemini"].APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Providers["gemini"].Model)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache.local", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, BotLogRedis, cfg.BasicConfig.BotLogBackend)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDatabaseDriver(t *testing.T) {
	t.Setenv("LIBCHAT_DB", "")
	assert.Equal(t, "sqlite3", DatabaseDriver())
	t.Setenv("LIBCHAT_DB", "MySQL")
	assert.Equal(t, "mysql", DatabaseDriver())
	t.Setenv("LIBCHAT_DB", " SQLite ")
	assert.Equal(t, "sqlite3", DatabaseDriver())
}

func TestLoadResolvesSeedFile(t *testing.T) {
	t.Setenv("SEED_FILE", "")
	path := writeConfig(t, `{"databases": {"sqlite3": {"dsn": ":memory:"}}, "basic_config": {"seed_file": "seed.json"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "seed.json"), cfg.BasicConfig.SeedFile)

	t.Setenv("SEED_FILE", "/srv/seed.json")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/seed.json", cfg.BasicConfig.SeedFile)
}
