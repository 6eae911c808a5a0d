package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// RestartNotifier records that a change requires a host restart.
type RestartNotifier interface {
	MarkPendingRestart()
}

// RepoInput carries the editable fields of a repository. A nil AutoUpdate keeps the
// current value, or true for new repositories.
type RepoInput struct {
	URL             string
	AllowPreRelease bool
	AutoUpdate      *bool
}

// RegistryInput carries the editable fields of a registry. A nil Enabled keeps the
// current value, or true for new registries.
type RegistryInput struct {
	Name    string
	URL     string
	Enabled *bool
}

// RepoService administers the configured repositories, registries and token on
// behalf of UI collaborators.
type RepoService struct {
	options    *OptionsEditor
	clients    *ReleaseClientProvider
	backups    driven.BackupStore
	activity   driven.ActivityStore
	restart    RestartNotifier
	pluginsDir string
}

// NewRepoService creates a RepoService. backups and activity may be nil.
func NewRepoService(
	options *OptionsEditor,
	clients *ReleaseClientProvider,
	backups driven.BackupStore,
	activity driven.ActivityStore,
	restart RestartNotifier,
	pluginsDir string,
) *RepoService {
	return &RepoService{
		options:    options,
		clients:    clients,
		backups:    backups,
		activity:   activity,
		restart:    restart,
		pluginsDir: pluginsDir,
	}
}

// EnsureDefaults adds the built-in registry when missing and, on first run, registers
// selfRepoURL and seeds the token. Later runs never re-add a removed self entry.
func (s *RepoService) EnsureDefaults(selfRepoURL, seedToken string) (model.Options, error) {
	return s.options.Update(func(opts *model.Options) error {
		if !opts.HasBuiltInRegistry() {
			opts.Registries = append([]model.RegistrySpec{model.BuiltInRegistry()}, opts.Registries...)
			slog.Info("added built-in registry")
		}

		if seedToken = strings.TrimSpace(seedToken); seedToken != "" && opts.GitHubToken == "" {
			opts.GitHubToken = seedToken
			slog.Info("seeded github token from environment")
		}

		if opts.Initialized {
			return nil
		}
		opts.Initialized = true

		if selfRepoURL == "" {
			return nil
		}
		if _, _, err := model.ParseRepoURL(selfRepoURL); err != nil {
			slog.Warn("ignoring invalid self repository url", "url", selfRepoURL, "error", err)
			return nil
		}
		if opts.RepoIndexByURL(selfRepoURL) < 0 {
			opts.Repos = append(opts.Repos, model.RepositorySpec{
				ID:         uuid.NewString(),
				URL:        selfRepoURL,
				AutoUpdate: true,
			})
			slog.Info("registered self repository", "url", selfRepoURL)
		}
		return nil
	})
}

// List returns the configured repositories.
func (s *RepoService) List() []model.RepositorySpec {
	return s.options.Get().Repos
}

// Get returns the repository with the given id.
func (s *RepoService) Get(id string) (model.RepositorySpec, error) {
	opts := s.options.Get()
	idx := opts.RepoIndex(id)
	if idx < 0 {
		return model.RepositorySpec{}, fmt.Errorf("get repo %s: %w", id, driven.ErrRepoNotFound)
	}
	return opts.Repos[idx], nil
}

// Add registers a repository. URLs are unique case-insensitively.
func (s *RepoService) Add(in RepoInput) (model.RepositorySpec, error) {
	rawURL, err := normalizeRepoURL(in.URL)
	if err != nil {
		return model.RepositorySpec{}, err
	}

	repo := model.RepositorySpec{
		ID:              uuid.NewString(),
		URL:             rawURL,
		AllowPreRelease: in.AllowPreRelease,
		AutoUpdate:      in.AutoUpdate == nil || *in.AutoUpdate,
	}

	_, err = s.options.Update(func(opts *model.Options) error {
		if opts.RepoIndexByURL(rawURL) >= 0 {
			return fmt.Errorf("add repo %s: %w", rawURL, driven.ErrRepoAlreadyExists)
		}
		opts.Repos = append(opts.Repos, repo)
		return nil
	})
	if err != nil {
		return model.RepositorySpec{}, err
	}

	slog.Info("repository added", "id", repo.ID, "url", repo.URL)
	return repo, nil
}

// Update changes the editable fields of a repository. Changing the URL resets the
// installed version so the next pass reinstalls.
func (s *RepoService) Update(id string, in RepoInput) (model.RepositorySpec, error) {
	rawURL, err := normalizeRepoURL(in.URL)
	if err != nil {
		return model.RepositorySpec{}, err
	}

	var updated model.RepositorySpec
	_, err = s.options.Update(func(opts *model.Options) error {
		idx := opts.RepoIndex(id)
		if idx < 0 {
			return fmt.Errorf("update repo %s: %w", id, driven.ErrRepoNotFound)
		}
		if other := opts.RepoIndexByURL(rawURL); other >= 0 && other != idx {
			return fmt.Errorf("update repo %s: %w", rawURL, driven.ErrRepoAlreadyExists)
		}

		repo := &opts.Repos[idx]
		if !strings.EqualFold(repo.URL, rawURL) {
			repo.LastVersionDownloaded = ""
			repo.LastCheckedAt = nil
		}
		repo.URL = rawURL
		repo.AllowPreRelease = in.AllowPreRelease
		if in.AutoUpdate != nil {
			repo.AutoUpdate = *in.AutoUpdate
		}
		updated = *repo
		return nil
	})
	if err != nil {
		return model.RepositorySpec{}, err
	}

	slog.Info("repository updated", "id", id, "url", updated.URL)
	return updated, nil
}

// Remove deletes a repository and its installed artifact. Deleting an artifact marks
// a pending restart.
func (s *RepoService) Remove(id string) error {
	var removed model.RepositorySpec
	_, err := s.options.Update(func(opts *model.Options) error {
		idx := opts.RepoIndex(id)
		if idx < 0 {
			return fmt.Errorf("remove repo %s: %w", id, driven.ErrRepoNotFound)
		}
		removed = opts.Repos[idx]
		opts.Repos = append(opts.Repos[:idx], opts.Repos[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("repository removed", "id", id, "url", removed.URL)

	if removed.InstalledFileName == "" {
		return nil
	}

	path := filepath.Join(s.pluginsDir, filepath.Base(removed.InstalledFileName))
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to delete plugin file", "file", path, "error", err)
		}
		return nil
	}

	slog.Info("deleted plugin file", "file", path)
	s.restart.MarkPendingRestart()
	return nil
}

// SetToken stores token and swaps the release client. An empty token clears it.
func (s *RepoService) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if _, err := s.options.Update(func(opts *model.Options) error {
		opts.GitHubToken = token
		if token == "" {
			opts.EncryptedGitHubToken = ""
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	s.clients.SetToken(token)
	slog.Info("github token updated", "has_token", token != "")
	return nil
}

// HasToken reports whether a token is stored.
func (s *RepoService) HasToken() bool {
	return s.options.Get().GitHubToken != ""
}

// SetRestartAfterInstall toggles the immediate-restart policy.
func (s *RepoService) SetRestartAfterInstall(enabled bool) error {
	_, err := s.options.Update(func(opts *model.Options) error {
		opts.RestartAfterInstall = enabled
		return nil
	})
	return err
}

// RestartAfterInstall reports the immediate-restart policy.
func (s *RepoService) RestartAfterInstall() bool {
	return s.options.Get().RestartAfterInstall
}

// Registries returns the configured registries.
func (s *RepoService) Registries() []model.RegistrySpec {
	return s.options.Get().Registries
}

// AddRegistry registers a catalog URL.
func (s *RepoService) AddRegistry(in RegistryInput) (model.RegistrySpec, error) {
	rawURL, err := validateRegistryURL(in.URL)
	if err != nil {
		return model.RegistrySpec{}, err
	}

	reg := model.RegistrySpec{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(in.Name),
		URL:     rawURL,
		Enabled: in.Enabled == nil || *in.Enabled,
	}
	if reg.Name == "" {
		reg.Name = rawURL
	}

	_, err = s.options.Update(func(opts *model.Options) error {
		if opts.RegistryIndexByURL(rawURL) >= 0 {
			return fmt.Errorf("add registry %s: %w", rawURL, driven.ErrRegistryAlreadyExists)
		}
		opts.Registries = append(opts.Registries, reg)
		return nil
	})
	if err != nil {
		return model.RegistrySpec{}, err
	}

	slog.Info("registry added", "id", reg.ID, "url", reg.URL)
	return reg, nil
}

// UpdateRegistry changes a registry. The built-in registry may only be enabled or
// disabled.
func (s *RepoService) UpdateRegistry(id string, in RegistryInput) (model.RegistrySpec, error) {
	var updated model.RegistrySpec
	_, err := s.options.Update(func(opts *model.Options) error {
		idx := opts.RegistryIndex(id)
		if idx < 0 {
			return fmt.Errorf("update registry %s: %w", id, driven.ErrRegistryNotFound)
		}
		reg := &opts.Registries[idx]

		if reg.IsBuiltIn() {
			if (in.URL != "" && in.URL != reg.URL) || (in.Name != "" && in.Name != reg.Name) {
				return fmt.Errorf("update registry %s: %w", id, driven.ErrBuiltInRegistry)
			}
		} else {
			if in.URL != "" {
				rawURL, err := validateRegistryURL(in.URL)
				if err != nil {
					return err
				}
				if other := opts.RegistryIndexByURL(rawURL); other >= 0 && other != idx {
					return fmt.Errorf("update registry %s: %w", rawURL, driven.ErrRegistryAlreadyExists)
				}
				reg.URL = rawURL
			}
			if name := strings.TrimSpace(in.Name); name != "" {
				reg.Name = name
			}
		}

		if in.Enabled != nil {
			reg.Enabled = *in.Enabled
		}
		updated = *reg
		return nil
	})
	if err != nil {
		return model.RegistrySpec{}, err
	}
	return updated, nil
}

// RemoveRegistry deletes a registry. The built-in registry cannot be removed.
func (s *RepoService) RemoveRegistry(id string) error {
	_, err := s.options.Update(func(opts *model.Options) error {
		idx := opts.RegistryIndex(id)
		if idx < 0 {
			return fmt.Errorf("remove registry %s: %w", id, driven.ErrRegistryNotFound)
		}
		if opts.Registries[idx].IsBuiltIn() {
			return fmt.Errorf("remove registry %s: %w", id, driven.ErrBuiltInRegistry)
		}
		opts.Registries = append(opts.Registries[:idx], opts.Registries[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("registry removed", "id", id)
	return nil
}

// RegistryPlugins lists catalog entries from the enabled registries. With
// hideConfigured set, entries whose URL is already configured are omitted.
func (s *RepoService) RegistryPlugins(ctx context.Context, hideConfigured bool) []model.RegistryEntry {
	opts := s.options.Get()
	entries := s.clients.Get().ListRegistryPlugins(ctx, opts.Registries)
	if !hideConfigured {
		return entries
	}

	filtered := make([]model.RegistryEntry, 0, len(entries))
	for _, e := range entries {
		if opts.RepoIndexByURL(e.URL) < 0 {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// LatestReleases resolves the latest release of every configured repository.
// Repositories that fail to resolve are omitted.
func (s *RepoService) LatestReleases(ctx context.Context) []model.Release {
	opts := s.options.Get()
	s.clients.SetToken(opts.GitHubToken)
	return s.clients.Get().ResolveLatestForMany(ctx, opts.Repos)
}

// Validate reports whether rawURL names an existing repository reachable with the
// current credentials.
func (s *RepoService) Validate(ctx context.Context, rawURL string) (bool, error) {
	owner, name, err := model.ParseRepoURL(strings.TrimSpace(rawURL))
	if err != nil {
		return false, fmt.Errorf("%s: %w", rawURL, driven.ErrInvalidRepoURL)
	}
	return s.clients.Get().ValidateRepository(ctx, owner, name), nil
}

// Backups lists the saved artifacts of a repository's installed plugin.
func (s *RepoService) Backups(ctx context.Context, id string) ([]model.Backup, error) {
	repo, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if s.backups == nil || repo.InstalledFileName == "" {
		return []model.Backup{}, nil
	}
	return s.backups.List(ctx, pluginName(repo.InstalledFileName))
}

// RestoreBackup reinstalls the backup of a repository's plugin at version and marks
// a pending restart.
func (s *RepoService) RestoreBackup(ctx context.Context, id, version string) (model.RepositorySpec, error) {
	repo, err := s.Get(id)
	if err != nil {
		return model.RepositorySpec{}, err
	}
	if s.backups == nil || repo.InstalledFileName == "" {
		return model.RepositorySpec{}, fmt.Errorf("restore %s %s: %w", repo.FullName(), version, driven.ErrBackupNotFound)
	}

	path, err := s.backups.Restore(ctx, pluginName(repo.InstalledFileName), version, s.pluginsDir)
	if err != nil {
		return model.RepositorySpec{}, err
	}

	var updated model.RepositorySpec
	_, err = s.options.Update(func(opts *model.Options) error {
		idx := opts.RepoIndex(id)
		if idx < 0 {
			return fmt.Errorf("restore %s: %w", id, driven.ErrRepoNotFound)
		}
		opts.Repos[idx].LastVersionDownloaded = version
		opts.Repos[idx].InstalledFileName = filepath.Base(path)
		updated = opts.Repos[idx]
		return nil
	})
	if err != nil {
		return model.RepositorySpec{}, err
	}

	slog.Info("plugin backup restored", "repo", repo.URL, "version", version, "path", path)
	s.restart.MarkPendingRestart()
	return updated, nil
}

// Activity returns recent activity, optionally limited to one repository.
func (s *RepoService) Activity(ctx context.Context, repoID string, limit int) ([]model.ActivityEntry, error) {
	if s.activity == nil {
		return []model.ActivityEntry{}, nil
	}
	if repoID != "" {
		return s.activity.ListByRepo(ctx, repoID, limit)
	}
	return s.activity.ListRecent(ctx, limit)
}

func normalizeRepoURL(raw string) (string, error) {
	canonical, err := model.CanonicalRepoURL(raw)
	if err != nil {
		return "", fmt.Errorf("%q: %w", strings.TrimSpace(raw), driven.ErrInvalidRepoURL)
	}
	return canonical, nil
}

func validateRegistryURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q: %w", raw, driven.ErrInvalidRegistryURL)
	}
	return raw, nil
}

func pluginName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
