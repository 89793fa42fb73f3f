package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 12*time.Hour, cfg.Cache.Window)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SafetyMargin)
	assert.Equal(t, 5, cfg.RateLimit.Issue.Limit)
	assert.Equal(t, 30, cfg.RateLimit.Admin.Limit)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
environment: development
listen_addr: ":9090"
provider:
  endpoint: https://ims.example.com
  client_id: cid
  client_secret: csecret
  signing_key_file: /etc/broker/key.pem
  technical_account_id: tech@example
  organization_id: org@Example
  scopes:
    - ent_cms_sdk
cache:
  window: 6h
  safety_margin: 120s
rate_limit:
  issue_window: 30s
  issue_limit: 3
  admin_window: 10s
  admin_limit: 20
exchange:
  timeout: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "https://ims.example.com", cfg.Provider.Endpoint)
	assert.Equal(t, []string{"ent_cms_sdk"}, cfg.Provider.Scopes)
	assert.Equal(t, 6*time.Hour, cfg.Cache.Window)
	assert.Equal(t, 120*time.Second, cfg.Cache.SafetyMargin)
	assert.Equal(t, WindowLimit{Window: 30 * time.Second, Limit: 3}, cfg.RateLimit.Issue)
	assert.Equal(t, WindowLimit{Window: 10 * time.Second, Limit: 20}, cfg.RateLimit.Admin)
	assert.Equal(t, 5*time.Second, cfg.Exchange.Timeout)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr: ":9090"
provider:
  client_id: from-file
`)
	t.Setenv("BROKER_LISTEN_ADDR", ":7070")
	t.Setenv("BROKER_CLIENT_ID", "from-env")
	t.Setenv("BROKER_ISSUE_LIMIT", "9")
	t.Setenv("BROKER_CACHE_WINDOW", "1h")
	t.Setenv("BROKER_SCOPES", "a,b")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "from-env", cfg.Provider.ClientID)
	assert.Equal(t, 9, cfg.RateLimit.Issue.Limit)
	assert.Equal(t, time.Hour, cfg.Cache.Window)
	assert.Equal(t, []string{"a", "b"}, cfg.Provider.Scopes)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfigFile(t, `
cache:
  window: "not-a-duration"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.window")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "staging" },
			wantErr: "environment",
		},
		{
			name: "production requires cache secret",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Cache.Secret = ""
			},
			wantErr: "cache.secret must be set in production",
		},
		{
			name: "production with secret is valid",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Cache.Secret = "operator-secret"
			},
		},
		{
			name:    "relative endpoint rejected",
			mutate:  func(c *Config) { c.Provider.Endpoint = "ims.example.com/path" },
			wantErr: "provider.endpoint",
		},
		{
			name:    "zero safety margin rejected",
			mutate:  func(c *Config) { c.Cache.SafetyMargin = 0 },
			wantErr: "safety_margin",
		},
		{
			name:    "sub-second cache window rejected",
			mutate:  func(c *Config) { c.Cache.Window = 500 * time.Millisecond },
			wantErr: "cache.window must be at least 1s",
		},
		{
			name: "aggregates multiple problems",
			mutate: func(c *Config) {
				c.ListenAddr = ""
				c.Exchange.Timeout = 0
			},
			wantErr: "listen_addr must be set; ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
