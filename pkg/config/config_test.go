package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseAdminIDs(t *testing.T) {
	ids, err := ParseAdminIDs(" 161261652, 42 ,,7")
	require.NoError(t, err)
	assert.Equal(t, []int64{161261652, 42, 7}, ids)

	ids, err = ParseAdminIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseAdminIDs("1,abc")
	assert.Error(t, err)
}

func TestAdminSet(t *testing.T) {
	a := NewAdminSet([]int64{5, 1, 5})
	assert.True(t, a.Contains(1))
	assert.True(t, a.Contains(5))
	assert.False(t, a.Contains(2))
	assert.Equal(t, []int64{1, 5}, a.IDs())

	a.Replace([]int64{2})
	assert.False(t, a.Contains(1))
	assert.True(t, a.Contains(2))

	var nilSet *AdminSet
	assert.False(t, nilSet.Contains(1))
	assert.Nil(t, nilSet.IDs())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ADMIN_IDS", "10,20")
	t.Setenv("FANOUT_DELAY", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("VERCEL_ENV", "")
	t.Setenv("VERCEL_URL", "")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	cfg := LoadConfig()
	assert.Equal(t, 40*time.Millisecond, cfg.FanoutDelay)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, []int64{10, 20}, cfg.Admins.IDs())
	assert.True(t, cfg.IsDevelopment())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigServerlessUsesDatabaseSessions(t *testing.T) {
	t.Setenv("SESSION_STORE", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("VERCEL_ENV", "preview")

	cfg := LoadConfig()
	assert.Equal(t, "database", cfg.SessionStore)
}

func TestLoadConfigMergesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
admin_ids: [30, 10]
fanout_delay: 100ms
session_ttl: 2m
portal_url: https://portal.example
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_IDS", "10")
	t.Setenv("FANOUT_DELAY", "")
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("PORTAL_URL", "")

	cfg := LoadConfig()
	assert.Equal(t, []int64{10, 30}, cfg.Admins.IDs())
	assert.Equal(t, 100*time.Millisecond, cfg.FanoutDelay)
	// env wins over the file
	assert.Equal(t, 90*time.Second, cfg.SessionTTL)
	assert.Equal(t, "https://portal.example", cfg.PortalURL)
}

func TestReloadAdmins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin_ids: [1]\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_IDS", "")

	cfg := LoadConfig()
	assert.True(t, cfg.Admins.Contains(1))

	require.NoError(t, os.WriteFile(path, []byte("admin_ids: [2]\n"), 0o600))
	require.NoError(t, cfg.ReloadAdmins())
	assert.False(t, cfg.Admins.Contains(1))
	assert.True(t, cfg.Admins.Contains(2))
}

func TestWatchAdmins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin_ids: [1]\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_IDS", "")
	cfg := LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cfg.WatchAdmins(ctx, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		// rewrite until the watcher is registered and picks it up
		_ = os.WriteFile(path, []byte("admin_ids: [9]\n"), 0o600)
		return cfg.Admins.Contains(9)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment:  "development",
			Port:         "3000",
			JWTSecret:    "secret",
			SessionTTL:   time.Minute,
			SessionStore: "memory",
			Admins:       NewAdminSet(nil),
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"negative delay", func(c *Config) { c.FanoutDelay = -time.Second }, true},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, true},
		{"bad session store", func(c *Config) { c.SessionStore = "redis" }, true},
		{"half supabase", func(c *Config) { c.SupabaseURL = "https://x.supabase.co" }, true},
		{"production without token", func(c *Config) { c.Environment = "production" }, true},
		{"production ok", func(c *Config) {
			c.Environment = "production"
			c.TelegramBotToken = "123:abc"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
