// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// backupsOff disables artifact backups when set as PLUGINSYNC_BACKUP_DIR.
const backupsOff = "off"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ConfigDir      string
	ConfigName     string
	PluginsDir     string
	BackupDir      string
	MaxBackups     int
	DBPath         string
	SyncInterval   time.Duration
	ListenAddr     string
	GitHubToken    string
	MaxConcurrency int
	SelfRepoURL    string
	LogLevel       slog.Level

	// ActivityRetention bounds the age of activity entries. Zero keeps them forever.
	ActivityRetention time.Duration
}

// BackupsEnabled reports whether replaced artifacts are backed up.
func (c *Config) BackupsEnabled() bool {
	return c.BackupDir != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. PLUGINSYNC_BACKUP_DIR defaults to a plugin-backups
// directory inside the plugins directory; the value "off" disables backups.
func Load() (*Config, error) {
	cfg := &Config{
		ConfigDir:      lookup("PLUGINSYNC_CONFIG_DIR", filepath.Join("data", "config")),
		ConfigName:     lookup("PLUGINSYNC_CONFIG_NAME", "pluginsync"),
		PluginsDir:     lookup("PLUGINSYNC_PLUGINS_DIR", filepath.Join("data", "plugins")),
		DBPath:         lookup("PLUGINSYNC_DB_PATH", filepath.Join("data", "pluginsync.db")),
		ListenAddr:     lookup("PLUGINSYNC_LISTEN_ADDR", "127.0.0.1:8080"),
		GitHubToken:    strings.TrimSpace(os.Getenv("PLUGINSYNC_GITHUB_TOKEN")),
		SelfRepoURL:    lookup("PLUGINSYNC_SELF_REPO", "https://github.com/ericfisherdev/pluginsync"),
		SyncInterval:   24 * time.Hour,
		MaxBackups:     5,
		MaxConcurrency: 8,
		LogLevel:       slog.LevelInfo,

		ActivityRetention: 30 * 24 * time.Hour,
	}

	cfg.BackupDir = filepath.Join(cfg.PluginsDir, "plugin-backups")
	if v, ok := os.LookupEnv("PLUGINSYNC_BACKUP_DIR"); ok {
		if strings.EqualFold(strings.TrimSpace(v), backupsOff) {
			cfg.BackupDir = ""
		} else if v != "" {
			cfg.BackupDir = v
		}
	}

	if strings.ContainsAny(cfg.ConfigName, `/\`) || cfg.ConfigName == "" {
		return nil, fmt.Errorf("PLUGINSYNC_CONFIG_NAME must be a plain file name, got %q", cfg.ConfigName)
	}

	if v, ok := os.LookupEnv("PLUGINSYNC_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PLUGINSYNC_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("PLUGINSYNC_SYNC_INTERVAL must be positive, got %s", parsed)
		}
		cfg.SyncInterval = parsed
	}

	if v, ok := os.LookupEnv("PLUGINSYNC_ACTIVITY_RETENTION"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PLUGINSYNC_ACTIVITY_RETENTION has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("PLUGINSYNC_ACTIVITY_RETENTION must not be negative, got %s", parsed)
		}
		cfg.ActivityRetention = parsed
	}

	var err error
	if cfg.MaxBackups, err = lookupInt("PLUGINSYNC_MAX_BACKUPS", cfg.MaxBackups, 0); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = lookupInt("PLUGINSYNC_MAX_CONCURRENCY", cfg.MaxConcurrency, 1); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("PLUGINSYNC_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("PLUGINSYNC_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func lookup(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func lookupInt(key string, fallback, minimum int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if n < minimum {
		return 0, fmt.Errorf("%s must be at least %d, got %d", key, minimum, n)
	}
	return n, nil
}
