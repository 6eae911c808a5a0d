// Package optionsfile persists the options document as a JSON file.
package optionsfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OptionsStore = (*Store)(nil)

// SavingEvent is raised before the document is written. Hooks may modify Options
// or set Cancel to abort the write.
type SavingEvent struct {
	Options *model.Options
	Cancel  bool
}

// SavedEvent is raised after the document was written.
type SavedEvent struct {
	Options model.Options
}

// Store keeps the options document in memory and reloads it whenever the file's
// modification time moves past the last load or save. Get, reload and write are
// serialized under one mutex; hooks run outside it.
type Store struct {
	path string

	mu           sync.Mutex
	opts         *model.Options
	lastModified time.Time

	hooksMu sync.RWMutex
	saving  []func(*SavingEvent)
	saved   []func(SavedEvent)
}

// NewStore creates a Store for <dir>/<name>.json.
func NewStore(dir, name string) *Store {
	return &Store{path: filepath.Join(dir, name+".json")}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// OnSaving registers a hook run before every write.
func (s *Store) OnSaving(fn func(*SavingEvent)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.saving = append(s.saving, fn)
}

// OnSaved registers a hook run after every successful write.
func (s *Store) OnSaved(fn func(SavedEvent)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.saved = append(s.saved, fn)
}

// Get returns a deep copy of the current options. A missing file yields default
// options; an unreadable or malformed file is logged and the previous snapshot
// (or defaults) is returned.
func (s *Store) Get() model.Options {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshLocked()
	return s.opts.Clone()
}

// Set writes opts atomically after running the saving hooks. It returns
// driven.ErrSaveCanceled when a hook cancels the write.
func (s *Store) Set(opts model.Options) error {
	opts = opts.Clone()

	s.hooksMu.RLock()
	saving := slices.Clone(s.saving)
	saved := slices.Clone(s.saved)
	s.hooksMu.RUnlock()

	ev := &SavingEvent{Options: &opts}
	for _, fn := range saving {
		fn(ev)
		if ev.Cancel {
			slog.Info("options save canceled by hook", "path", s.path)
			return driven.ErrSaveCanceled
		}
	}

	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	if err := s.write(data, opts); err != nil {
		return err
	}

	for _, fn := range saved {
		fn(SavedEvent{Options: opts.Clone()})
	}
	return nil
}

func (s *Store) write(data []byte, opts model.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write options file: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat options file: %w", err)
	}

	s.opts = &opts
	s.lastModified = info.ModTime()
	return nil
}

// refreshLocked reloads the document when nothing is cached or the file changed.
func (s *Store) refreshLocked() {
	info, err := os.Stat(s.path)
	switch {
	case err == nil:
		if s.opts != nil && !info.ModTime().After(s.lastModified) {
			return
		}
		s.loadLocked(info.ModTime())
	case errors.Is(err, fs.ErrNotExist):
		if s.opts == nil {
			s.opts = defaultOptions()
		}
	default:
		slog.Error("stat options file failed", "path", s.path, "error", err)
		if s.opts == nil {
			s.opts = defaultOptions()
		}
	}
}

func (s *Store) loadLocked(modTime time.Time) {
	// Record the mtime even on failure so a broken file is reported once per change.
	s.lastModified = modTime

	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("read options file failed", "path", s.path, "error", err)
		if s.opts == nil {
			s.opts = defaultOptions()
		}
		return
	}

	var opts model.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		slog.Error("options file is malformed, keeping previous options", "path", s.path, "error", err)
		if s.opts == nil {
			s.opts = defaultOptions()
		}
		return
	}

	slog.Debug("options reloaded", "path", s.path, "repos", len(opts.Repos), "registries", len(opts.Registries))
	s.opts = &opts
}

func defaultOptions() *model.Options {
	return &model.Options{
		Repos:      []model.RepositorySpec{},
		Registries: []model.RegistrySpec{},
	}
}
