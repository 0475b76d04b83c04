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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.coresignal.com/cdapi/v2", cfg.CompanyGraph.BaseURL)
	assert.InDelta(t, 0.05, cfg.CompanyGraph.CostPerSearch, 0.001)
	assert.InDelta(t, 0.0198, cfg.ContactVerify.CostPerVerify, 0.0001)
	assert.InDelta(t, 50.0, cfg.Budget.DailyCapUSD, 0.001)
	assert.InDelta(t, 1000.0, cfg.Budget.MonthlyCapUSD, 0.001)
	assert.InDelta(t, 0.8, cfg.Budget.WarnFraction, 0.001)
	assert.InDelta(t, 5.0, cfg.Planner.PerRequestCapUSD, 0.001)
	assert.Equal(t, 50, cfg.Planner.PreviewLimit)
	assert.InDelta(t, 0.6, cfg.Fusion.FuzzyThreshold, 0.001)
	assert.Equal(t, 8, cfg.Scoring.GroupMin)
	assert.Equal(t, 15, cfg.Scoring.GroupMax)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.Equal(t, 16, cfg.Discover.MaxConcurrentCalls)
	assert.Equal(t, 4, cfg.Discover.TenantConcurrency)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/bg
budget:
  daily_cap_usd: 12.5
cache:
  backend: redis
  redis_addr: 10.0.0.1:6379
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/bg", cfg.Store.DatabaseURL)
	assert.InDelta(t, 12.5, cfg.Budget.DailyCapUSD, 0.001)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "10.0.0.1:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset values keep defaults.
	assert.InDelta(t, 1000.0, cfg.Budget.MonthlyCapUSD, 0.001)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	assert.Error(t, err)
}
