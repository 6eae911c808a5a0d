package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every PLUGINSYNC_ env var that Load() reads.
var allConfigKeys = []string{
	"PLUGINSYNC_CONFIG_DIR",
	"PLUGINSYNC_CONFIG_NAME",
	"PLUGINSYNC_PLUGINS_DIR",
	"PLUGINSYNC_BACKUP_DIR",
	"PLUGINSYNC_MAX_BACKUPS",
	"PLUGINSYNC_DB_PATH",
	"PLUGINSYNC_SYNC_INTERVAL",
	"PLUGINSYNC_LISTEN_ADDR",
	"PLUGINSYNC_GITHUB_TOKEN",
	"PLUGINSYNC_MAX_CONCURRENCY",
	"PLUGINSYNC_SELF_REPO",
	"PLUGINSYNC_LOG_LEVEL",
	"PLUGINSYNC_ACTIVITY_RETENTION",
}

// isolateConfigEnv saves and unsets all PLUGINSYNC_ env vars so tests don't
// inherit values from the host environment.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "config"), cfg.ConfigDir)
	assert.Equal(t, "pluginsync", cfg.ConfigName)
	assert.Equal(t, filepath.Join("data", "plugins"), cfg.PluginsDir)
	assert.Equal(t, filepath.Join("data", "plugins", "plugin-backups"), cfg.BackupDir)
	assert.True(t, cfg.BackupsEnabled())
	assert.Equal(t, 5, cfg.MaxBackups)
	assert.Equal(t, filepath.Join("data", "pluginsync.db"), cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.SyncInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Empty(t, cfg.GitHubToken)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, "https://github.com/ericfisherdev/pluginsync", cfg.SelfRepoURL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 720*time.Hour, cfg.ActivityRetention)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PLUGINSYNC_CONFIG_DIR", "/etc/pluginsync")
	t.Setenv("PLUGINSYNC_CONFIG_NAME", "emby")
	t.Setenv("PLUGINSYNC_PLUGINS_DIR", "/srv/plugins")
	t.Setenv("PLUGINSYNC_MAX_BACKUPS", "2")
	t.Setenv("PLUGINSYNC_DB_PATH", "/tmp/test.db")
	t.Setenv("PLUGINSYNC_SYNC_INTERVAL", "6h")
	t.Setenv("PLUGINSYNC_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PLUGINSYNC_GITHUB_TOKEN", " ghp_test123 ")
	t.Setenv("PLUGINSYNC_MAX_CONCURRENCY", "3")
	t.Setenv("PLUGINSYNC_SELF_REPO", "https://github.com/me/fork")
	t.Setenv("PLUGINSYNC_LOG_LEVEL", "debug")
	t.Setenv("PLUGINSYNC_ACTIVITY_RETENTION", "0")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/etc/pluginsync", cfg.ConfigDir)
	assert.Equal(t, "emby", cfg.ConfigName)
	assert.Equal(t, "/srv/plugins", cfg.PluginsDir)
	assert.Equal(t, filepath.Join("/srv/plugins", "plugin-backups"), cfg.BackupDir)
	assert.Equal(t, 2, cfg.MaxBackups)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 6*time.Hour, cfg.SyncInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, "https://github.com/me/fork", cfg.SelfRepoURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Zero(t, cfg.ActivityRetention)
}

func TestLoad_BackupDir(t *testing.T) {
	isolateConfigEnv(t)

	t.Setenv("PLUGINSYNC_BACKUP_DIR", "/var/backups/plugins")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/backups/plugins", cfg.BackupDir)

	t.Setenv("PLUGINSYNC_BACKUP_DIR", "OFF")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.BackupsEnabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PLUGINSYNC_SYNC_INTERVAL", "not-a-duration"},
		{"PLUGINSYNC_SYNC_INTERVAL", "-1h"},
		{"PLUGINSYNC_MAX_BACKUPS", "many"},
		{"PLUGINSYNC_MAX_BACKUPS", "-1"},
		{"PLUGINSYNC_MAX_CONCURRENCY", "0"},
		{"PLUGINSYNC_LOG_LEVEL", "loud"},
		{"PLUGINSYNC_ACTIVITY_RETENTION", "-24h"},
		{"PLUGINSYNC_CONFIG_NAME", "../escape"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
