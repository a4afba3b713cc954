package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "providers.yaml", cfg.Providers.File)
	assert.InDelta(t, 30.0, cfg.RateLimit.InitialDelaySecs, 0.001)
	assert.InDelta(t, 10.0, cfg.RateLimit.MinDelaySecs, 0.001)
	assert.InDelta(t, 120.0, cfg.RateLimit.MaxDelaySecs, 0.001)
	assert.InDelta(t, 1.5, cfg.RateLimit.IncreaseFactor, 0.001)
	assert.InDelta(t, 0.8, cfg.RateLimit.DecreaseFactor, 0.001)
	assert.Equal(t, 5, cfg.RateLimit.StablePeriod)
	assert.Equal(t, 50, cfg.RateLimit.HistorySize)
	assert.Equal(t, 30, cfg.Extract.RequestTimeoutSecs)
	assert.Equal(t, 1000, cfg.Extract.MaxTokensPerChunk)
	assert.Equal(t, 100, cfg.Extract.OverlapTokens)
	assert.Equal(t, 8, cfg.Extract.MaxChunks)
	assert.InDelta(t, 0.75, cfg.Dedup.SimilarityThreshold, 0.001)
	assert.InDelta(t, 0.40, cfg.Dedup.NameWeight, 0.001)
	assert.InDelta(t, 0.35, cfg.Dedup.OrgWeight, 0.001)
	assert.InDelta(t, 0.25, cfg.Dedup.PositionWeight, 0.001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "contacts.db", cfg.Store.SQLitePath)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  postgres_dsn: postgres://localhost/contacts
ratelimit:
  initial_delay_secs: 15
  increase_factor: 2.0
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/contacts", cfg.Store.PostgresDSN)
	assert.InDelta(t, 15.0, cfg.RateLimit.InitialDelaySecs, 0.001)
	assert.InDelta(t, 2.0, cfg.RateLimit.IncreaseFactor, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 120.0, cfg.RateLimit.MaxDelaySecs, 0.001)
	assert.InDelta(t, 0.8, cfg.RateLimit.DecreaseFactor, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CONTACTS_STORE_DRIVER", "postgres")
	t.Setenv("CONTACTS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CONTACTS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Providers.File = "providers.yaml"
	cfg.RateLimit.InitialDelaySecs = 30
	cfg.RateLimit.MinDelaySecs = 10
	cfg.RateLimit.MaxDelaySecs = 120
	cfg.Dedup.SimilarityThreshold = 0.75
	cfg.Extract.MaxChunks = 8
	cfg.Server.Port = 8080
	cfg.Export.Format = "xlsx"
	return cfg
}

func TestValidateExtract(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("extract"))

	cfg.Extract.MaxChunks = 0
	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_chunks")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateExport_Format(t *testing.T) {
	cfg := validDefaults()
	cfg.Export.Format = "pdf"

	err := cfg.Validate("export")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "export.format")
}

func TestValidateDelayOrdering(t *testing.T) {
	cfg := validDefaults()
	cfg.RateLimit.MinDelaySecs = 60
	cfg.RateLimit.InitialDelaySecs = 30

	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_delay_secs")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
