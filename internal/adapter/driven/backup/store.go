// Package backup keeps timestamped copies of replaced plugin artifacts.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// DirName is the default backup directory name inside the plugins directory.
const DirName = "plugin-backups"

const timestampLayout = "20060102-150405"

// Compile-time interface satisfaction check.
var _ driven.BackupStore = (*Store)(nil)

// Store lays backups out as <root>/<plugin>/<plugin>_v<version>_<yyyyMMdd-HHmmss><ext>.
type Store struct {
	root string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to timestamp new backups.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store rooted at root. The directory is created lazily.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{root: root, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the backup root directory.
func (s *Store) Root() string {
	return s.root
}

// Create copies the artifact at path into the plugin's backup directory.
func (s *Store) Create(ctx context.Context, path, version string) (model.Backup, error) {
	if err := ctx.Err(); err != nil {
		return model.Backup{}, err
	}

	src, err := os.Open(path)
	if err != nil {
		return model.Backup{}, fmt.Errorf("open artifact for backup: %w", err)
	}
	defer src.Close()

	ext := filepath.Ext(path)
	plugin := strings.TrimSuffix(filepath.Base(path), ext)
	version = normalizeVersion(version)
	created := s.now().UTC()

	dir := filepath.Join(s.root, plugin)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.Backup{}, fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s_v%s_%s%s", plugin, version, created.Format(timestampLayout), ext)
	dest := filepath.Join(dir, name)
	if err := atomic.WriteFile(dest, src); err != nil {
		return model.Backup{}, fmt.Errorf("write backup %s: %w", name, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return model.Backup{}, fmt.Errorf("stat backup %s: %w", name, err)
	}

	slog.Info("plugin backup created", "plugin", plugin, "version", version, "path", dest)

	return model.Backup{
		PluginName: plugin,
		Version:    version,
		Path:       dest,
		CreatedAt:  created.Truncate(time.Second),
		Size:       info.Size(),
	}, nil
}

// List returns the backups of pluginName, newest first. Files that do not follow the
// naming scheme are ignored.
func (s *Store) List(ctx context.Context, pluginName string) ([]model.Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, pluginName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Backup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory %s: %w", dir, err)
	}

	backups := []model.Backup{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		b, ok := parseName(pluginName, e.Name())
		if !ok {
			slog.Debug("skipping unrecognized backup file", "plugin", pluginName, "file", e.Name())
			continue
		}

		info, err := e.Info()
		if err != nil {
			slog.Warn("failed to stat backup file", "file", e.Name(), "error", err)
			continue
		}
		b.Path = filepath.Join(dir, e.Name())
		b.Size = info.Size()
		backups = append(backups, b)
	}

	slices.SortStableFunc(backups, compareNewestFirst)
	return backups, nil
}

// Restore copies the newest backup of pluginName at version over <destDir>/<plugin><ext>.
func (s *Store) Restore(ctx context.Context, pluginName, version, destDir string) (string, error) {
	backups, err := s.List(ctx, pluginName)
	if err != nil {
		return "", err
	}

	version = normalizeVersion(version)
	idx := slices.IndexFunc(backups, func(b model.Backup) bool { return b.Version == version })
	if idx < 0 {
		return "", fmt.Errorf("%s %s: %w", pluginName, version, driven.ErrBackupNotFound)
	}
	b := backups[idx]

	src, err := os.Open(b.Path)
	if err != nil {
		return "", fmt.Errorf("open backup: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create plugins directory: %w", err)
	}

	target := filepath.Join(destDir, pluginName+filepath.Ext(b.Path))
	if err := atomic.WriteFile(target, src); err != nil {
		return "", fmt.Errorf("restore %s: %w", target, err)
	}

	slog.Info("plugin backup restored", "plugin", pluginName, "version", version, "path", target)
	return target, nil
}

// Delete removes every backup of pluginName at version.
func (s *Store) Delete(ctx context.Context, pluginName, version string) error {
	backups, err := s.List(ctx, pluginName)
	if err != nil {
		return err
	}

	version = normalizeVersion(version)
	removed := 0
	for _, b := range backups {
		if b.Version != version {
			continue
		}
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete backup %s: %w", b.Path, err)
		}
		removed++
	}

	if removed == 0 {
		return fmt.Errorf("%s %s: %w", pluginName, version, driven.ErrBackupNotFound)
	}
	return nil
}

// Cleanup keeps the newest max backups of pluginName and deletes the rest.
func (s *Store) Cleanup(ctx context.Context, pluginName string, max int) (int, error) {
	backups, err := s.List(ctx, pluginName)
	if err != nil {
		return 0, err
	}
	if max < 0 {
		max = 0
	}
	if len(backups) <= max {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[max:] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("delete backup %s: %w", b.Path, err)
		}
		removed++
	}

	slog.Info("old plugin backups removed", "plugin", pluginName, "removed", removed, "kept", max)
	return removed, nil
}

// parseName splits <plugin>_v<version>_<timestamp><ext>. The timestamp is taken from
// the last underscore so versions may contain underscores.
func parseName(pluginName, fileName string) (model.Backup, bool) {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	rest, ok := strings.CutPrefix(stem, pluginName+"_v")
	if !ok {
		return model.Backup{}, false
	}

	cut := strings.LastIndex(rest, "_")
	if cut <= 0 {
		return model.Backup{}, false
	}

	created, err := time.Parse(timestampLayout, rest[cut+1:])
	if err != nil {
		return model.Backup{}, false
	}

	return model.Backup{
		PluginName: pluginName,
		Version:    rest[:cut],
		CreatedAt:  created,
	}, true
}

// compareNewestFirst orders by timestamp descending, then by version descending.
func compareNewestFirst(a, b model.Backup) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}

	va, errA := semver.NewVersion(a.Version)
	vb, errB := semver.NewVersion(b.Version)
	if errA == nil && errB == nil {
		return vb.Compare(va)
	}
	return strings.Compare(b.Version, a.Version)
}

func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if v == "" {
		return "unknown"
	}
	return v
}
