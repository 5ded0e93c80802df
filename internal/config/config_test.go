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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Sweep.IntervalSeconds)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval())
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, BackendPostgres, cfg.Store.SQL.Driver)
	assert.Equal(t, "oidc_refresh_sessions", cfg.Store.Names.RefreshTokens)
	assert.True(t, cfg.HTTP.MetricsEnabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Sweep.IntervalSeconds)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
sweep:
  interval_seconds: 5
store:
  backend: sqlite
  sql:
    dsn: data/tokens.db
    timeout: 2s
  names:
    refresh_tokens: rt
log:
  level: debug
http:
  addr: ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Sweep.IntervalSeconds)
	assert.Equal(t, BackendSQLite, cfg.Store.SQL.Driver)
	assert.Equal(t, "data/tokens.db", cfg.Store.SQL.DSN)
	assert.Equal(t, 2*time.Second, cfg.Store.SQL.Timeout)
	assert.Equal(t, "rt", cfg.Store.Names.RefreshTokens)
	assert.Equal(t, "oidc_authorization_codes", cfg.Store.Names.AuthorizationCodes)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.HTTP.Addr)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "sweep:\n  interval_seconds: 5\n")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "30")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TOKEN_HANDLES_NAME", "idp:handles")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_DEV", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Sweep.IntervalSeconds)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "idp:handles", cfg.Store.Names.TokenHandles)
	assert.False(t, cfg.HTTP.MetricsEnabled)
	assert.True(t, cfg.Log.Dev)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "zero interval", env: map[string]string{"SWEEP_INTERVAL_SECONDS": "0"}, want: "interval_seconds"},
		{name: "non-numeric interval", env: map[string]string{"SWEEP_INTERVAL_SECONDS": "soon"}, want: "SWEEP_INTERVAL_SECONDS"},
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "cassandra"}, want: "unknown store backend"},
		{name: "bad table name", env: map[string]string{"REFRESH_TOKENS_NAME": "rt; DROP TABLE users"}, want: "refresh_tokens"},
		{name: "prefix is not a table", env: map[string]string{"TOKEN_HANDLES_NAME": "idp:handles"}, want: "token_handles"},
		{name: "bad metrics flag", env: map[string]string{"METRICS_ENABLED": "maybe"}, want: "METRICS_ENABLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "sweep: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
