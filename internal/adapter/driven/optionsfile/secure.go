package optionsfile

import (
	"log/slog"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OptionsStore = (*SecureStore)(nil)

// SecureStore wraps a Store so the GitHub token is only written in protected form.
// Get returns the clear-text token in memory.
type SecureStore struct {
	store     *Store
	protector *Protector
}

// NewSecureStore registers a saving hook on store that protects the token.
func NewSecureStore(store *Store, protector *Protector) *SecureStore {
	s := &SecureStore{store: store, protector: protector}
	store.OnSaving(s.protectToken)
	return s
}

// Get returns the options with GitHubToken decrypted from EncryptedGitHubToken.
func (s *SecureStore) Get() model.Options {
	opts := s.store.Get()
	if opts.EncryptedGitHubToken != "" {
		opts.GitHubToken = s.protector.Unprotect(opts.EncryptedGitHubToken)
	}
	return opts
}

// Set persists opts through the wrapped store.
func (s *SecureStore) Set(opts model.Options) error {
	return s.store.Set(opts)
}

// OnSaved registers a hook run after every successful write.
func (s *SecureStore) OnSaved(fn func(SavedEvent)) {
	s.store.OnSaved(fn)
}

// protectToken moves the clear-text token into the protected field. An encryption
// failure cancels the save rather than writing the token in clear text.
func (s *SecureStore) protectToken(ev *SavingEvent) {
	if ev.Options.GitHubToken != "" {
		protected, err := s.protector.Protect(ev.Options.GitHubToken)
		if err != nil {
			slog.Error("protecting github token failed", "error", err)
			ev.Cancel = true
			return
		}
		ev.Options.EncryptedGitHubToken = protected
	}
	ev.Options.GitHubToken = ""
}
