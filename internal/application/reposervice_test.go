package application_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pluginsync/internal/adapter/driven/optionsfile"
	"github.com/ericfisherdev/pluginsync/internal/application"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

type restartRecorder struct{ marked int }

func (r *restartRecorder) MarkPendingRestart() { r.marked++ }

type repoFixture struct {
	svc     *application.RepoService
	store   *memOptionsStore
	restart *restartRecorder
	client  *mockReleaseClient
	plugins string
	tokens  []string
}

func newRepoFixture(t *testing.T, opts model.Options, backups driven.BackupStore) *repoFixture {
	t.Helper()

	f := &repoFixture{
		store:   &memOptionsStore{opts: opts},
		restart: &restartRecorder{},
		client:  &mockReleaseClient{},
		plugins: t.TempDir(),
	}
	provider := application.NewReleaseClientProvider(func(token string) driven.ReleaseClient {
		f.tokens = append(f.tokens, token)
		return f.client
	}, "")

	f.svc = application.NewRepoService(
		application.NewOptionsEditor(f.store),
		provider,
		backups,
		&mockActivityStore{},
		f.restart,
		f.plugins,
	)
	return f
}

func boolPtr(b bool) *bool { return &b }

func TestRepoService_EnsureDefaultsFirstRun(t *testing.T) {
	f := newRepoFixture(t, model.Options{}, nil)

	opts, err := f.svc.EnsureDefaults("https://github.com/ericfisherdev/pluginsync", "seed")
	require.NoError(t, err)

	assert.True(t, opts.Initialized)
	assert.True(t, opts.HasBuiltInRegistry())
	require.Len(t, opts.Repos, 1)
	assert.Equal(t, "https://github.com/ericfisherdev/pluginsync", opts.Repos[0].URL)
	assert.True(t, opts.Repos[0].AutoUpdate)
	assert.NotEmpty(t, opts.Repos[0].ID)
	assert.Equal(t, "seed", opts.GitHubToken)
}

func TestRepoService_EnsureDefaultsDoesNotReaddSelf(t *testing.T) {
	f := newRepoFixture(t, model.Options{Initialized: true, GitHubToken: "stored"}, nil)

	opts, err := f.svc.EnsureDefaults("https://github.com/ericfisherdev/pluginsync", "seed")
	require.NoError(t, err)

	assert.Empty(t, opts.Repos)
	assert.True(t, opts.HasBuiltInRegistry(), "built-in registry is restored even after first run")
	assert.Equal(t, "stored", opts.GitHubToken, "a stored token is never replaced by the seed")
}

func TestRepoService_AddValidatesAndDeduplicates(t *testing.T) {
	f := newRepoFixture(t, model.Options{}, nil)

	added, err := f.svc.Add(application.RepoInput{URL: " https://github.com/Owner/Repo/ "})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/Owner/Repo", added.URL)
	assert.True(t, added.AutoUpdate)

	_, err = f.svc.Add(application.RepoInput{URL: "https://github.com/owner/repo.git"})
	assert.ErrorIs(t, err, driven.ErrRepoAlreadyExists)

	_, err = f.svc.Add(application.RepoInput{URL: "not a url"})
	assert.ErrorIs(t, err, driven.ErrInvalidRepoURL)

	manual, err := f.svc.Add(application.RepoInput{URL: "https://github.com/o/manual", AutoUpdate: boolPtr(false), AllowPreRelease: true})
	require.NoError(t, err)
	assert.False(t, manual.AutoUpdate)
	assert.True(t, manual.AllowPreRelease)

	assert.Len(t, f.svc.List(), 2)
}

func TestRepoService_AddStoresCanonicalURL(t *testing.T) {
	f := newRepoFixture(t, model.Options{}, nil)

	added, err := f.svc.Add(application.RepoInput{URL: "https://github.com/o/r.git"})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/o/r", added.URL)

	for _, variant := range []string{
		"https://github.com/o/r",
		"https://github.com/o/r/",
		"http://github.com/o/r",
		"https://github.com/o/r/releases/latest",
	} {
		_, err = f.svc.Add(application.RepoInput{URL: variant})
		assert.ErrorIs(t, err, driven.ErrRepoAlreadyExists, variant)
	}

	other, err := f.svc.Add(application.RepoInput{URL: "https://github.com/o/other/"})
	require.NoError(t, err)

	_, err = f.svc.Update(other.ID, application.RepoInput{URL: "https://github.com/o/r.git/"})
	assert.ErrorIs(t, err, driven.ErrRepoAlreadyExists)

	assert.Len(t, f.svc.List(), 2)
}

func TestRepoService_UpdateResetsVersionOnURLChange(t *testing.T) {
	f := newRepoFixture(t, model.Options{Repos: []model.RepositorySpec{
		{ID: "1", URL: "https://github.com/o/a", AutoUpdate: true, LastVersionDownloaded: "v1"},
		{ID: "2", URL: "https://github.com/o/b", AutoUpdate: true},
	}}, nil)

	updated, err := f.svc.Update("1", application.RepoInput{URL: "https://github.com/o/a", AllowPreRelease: true})
	require.NoError(t, err)
	assert.Equal(t, "v1", updated.LastVersionDownloaded)
	assert.True(t, updated.AllowPreRelease)
	assert.True(t, updated.AutoUpdate, "nil AutoUpdate keeps the current value")

	updated, err = f.svc.Update("1", application.RepoInput{URL: "https://github.com/o/c"})
	require.NoError(t, err)
	assert.Empty(t, updated.LastVersionDownloaded)

	_, err = f.svc.Update("1", application.RepoInput{URL: "https://github.com/O/B"})
	assert.ErrorIs(t, err, driven.ErrRepoAlreadyExists)

	_, err = f.svc.Update("missing", application.RepoInput{URL: "https://github.com/o/z"})
	assert.ErrorIs(t, err, driven.ErrRepoNotFound)
}

func TestRepoService_RemoveDeletesArtifactAndFlagsRestart(t *testing.T) {
	f := newRepoFixture(t, model.Options{Repos: []model.RepositorySpec{
		{ID: "1", URL: "https://github.com/o/a", InstalledFileName: "A.dll"},
	}}, nil)
	artifact := filepath.Join(f.plugins, "A.dll")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0o644))

	require.NoError(t, f.svc.Remove("1"))

	assert.NoFileExists(t, artifact)
	assert.Empty(t, f.svc.List())
	assert.Equal(t, 1, f.restart.marked)
}

func TestRepoService_RemoveWithoutArtifact(t *testing.T) {
	f := newRepoFixture(t, model.Options{Repos: []model.RepositorySpec{
		{ID: "1", URL: "https://github.com/o/a", InstalledFileName: "Gone.dll"},
	}}, nil)

	require.NoError(t, f.svc.Remove("1"))
	assert.Zero(t, f.restart.marked)

	assert.ErrorIs(t, f.svc.Remove("1"), driven.ErrRepoNotFound)
}

func TestRepoService_SetTokenSwapsClient(t *testing.T) {
	f := newRepoFixture(t, model.Options{}, nil)

	require.NoError(t, f.svc.SetToken("  secret  "))

	assert.True(t, f.svc.HasToken())
	assert.Equal(t, "secret", f.store.Get().GitHubToken)
	assert.Equal(t, []string{"", "secret"}, f.tokens)

	require.NoError(t, f.svc.SetToken(""))
	assert.False(t, f.svc.HasToken())
}

func TestRepoService_SetTokenClearsProtectedToken(t *testing.T) {
	dir := t.TempDir()
	protector, err := optionsfile.NewProtector("machine-id", "HOST")
	require.NoError(t, err)
	store := optionsfile.NewSecureStore(optionsfile.NewStore(dir, "pluginsync"), protector)

	var tokens []string
	provider := application.NewReleaseClientProvider(func(token string) driven.ReleaseClient {
		tokens = append(tokens, token)
		return &mockReleaseClient{}
	}, "")
	svc := application.NewRepoService(application.NewOptionsEditor(store), provider, nil, nil, &restartRecorder{}, t.TempDir())

	require.NoError(t, svc.SetToken("ghp_secret"))
	require.True(t, svc.HasToken())

	require.NoError(t, svc.SetToken(""))

	assert.False(t, svc.HasToken())
	assert.Empty(t, store.Get().GitHubToken)
	assert.Empty(t, store.Get().EncryptedGitHubToken)

	reopened := optionsfile.NewSecureStore(optionsfile.NewStore(dir, "pluginsync"), protector)
	assert.Empty(t, reopened.Get().GitHubToken)
	assert.Equal(t, []string{"", "ghp_secret", ""}, tokens)
}

func TestRepoService_Registries(t *testing.T) {
	f := newRepoFixture(t, model.Options{Registries: []model.RegistrySpec{model.BuiltInRegistry()}}, nil)

	reg, err := f.svc.AddRegistry(application.RegistryInput{Name: "Community", URL: "https://example.com/catalog.yaml"})
	require.NoError(t, err)
	assert.True(t, reg.Enabled)

	_, err = f.svc.AddRegistry(application.RegistryInput{URL: "HTTPS://EXAMPLE.COM/catalog.yaml"})
	assert.ErrorIs(t, err, driven.ErrRegistryAlreadyExists)

	_, err = f.svc.AddRegistry(application.RegistryInput{URL: "ftp://example.com/x"})
	assert.ErrorIs(t, err, driven.ErrInvalidRegistryURL)

	updated, err := f.svc.UpdateRegistry(reg.ID, application.RegistryInput{Name: "Renamed", Enabled: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.Enabled)

	require.NoError(t, f.svc.RemoveRegistry(reg.ID))
	assert.ErrorIs(t, f.svc.RemoveRegistry(reg.ID), driven.ErrRegistryNotFound)
	assert.Len(t, f.svc.Registries(), 1)
}

func TestRepoService_BuiltInRegistryProtected(t *testing.T) {
	f := newRepoFixture(t, model.Options{Registries: []model.RegistrySpec{model.BuiltInRegistry()}}, nil)

	err := f.svc.RemoveRegistry(model.BuiltInRegistryID)
	assert.ErrorIs(t, err, driven.ErrBuiltInRegistry)

	_, err = f.svc.UpdateRegistry(model.BuiltInRegistryID, application.RegistryInput{URL: "https://example.com/other"})
	assert.ErrorIs(t, err, driven.ErrBuiltInRegistry)

	updated, err := f.svc.UpdateRegistry(model.BuiltInRegistryID, application.RegistryInput{Enabled: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, model.BuiltInRegistryURL, updated.URL)
}

func TestRepoService_RegistryPluginsHidesConfigured(t *testing.T) {
	f := newRepoFixture(t, model.Options{
		Repos:      []model.RepositorySpec{{ID: "1", URL: "https://github.com/o/configured"}},
		Registries: []model.RegistrySpec{model.BuiltInRegistry()},
	}, nil)
	f.client.listRegistries = func(_ context.Context, regs []model.RegistrySpec) []model.RegistryEntry {
		require.Len(t, regs, 1)
		return []model.RegistryEntry{
			{Name: "Configured", URL: "https://github.com/O/Configured"},
			{Name: "New", URL: "https://github.com/o/new"},
		}
	}

	all := f.svc.RegistryPlugins(context.Background(), false)
	assert.Len(t, all, 2)

	available := f.svc.RegistryPlugins(context.Background(), true)
	require.Len(t, available, 1)
	assert.Equal(t, "New", available[0].Name)
}

func TestRepoService_Validate(t *testing.T) {
	f := newRepoFixture(t, model.Options{}, nil)
	f.client.validate = func(_ context.Context, owner, repo string) bool {
		return owner == "o" && repo == "exists"
	}

	ok, err := f.svc.Validate(context.Background(), "https://github.com/o/exists")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Validate(context.Background(), "https://github.com/o/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Validate(context.Background(), "garbage")
	assert.ErrorIs(t, err, driven.ErrInvalidRepoURL)
}

func TestRepoService_LatestReleases(t *testing.T) {
	f := newRepoFixture(t, model.Options{Repos: []model.RepositorySpec{
		{ID: "1", URL: "https://github.com/o/a"},
		{ID: "2", URL: "https://github.com/o/b"},
	}}, nil)
	f.client.resolveMany = func(_ context.Context, repos []model.RepositorySpec) []model.Release {
		assert.Len(t, repos, 2)
		return []model.Release{{Owner: "o", Repo: "a", TagName: "v1"}}
	}

	releases := f.svc.LatestReleases(context.Background())
	require.Len(t, releases, 1)
	assert.Equal(t, "v1", releases[0].TagName)
}

func TestRepoService_BackupsAndRestore(t *testing.T) {
	var restoredPlugin, restoredVersion, restoredDir string
	backups := &mockBackupStore{
		list: func(_ context.Context, plugin string) ([]model.Backup, error) {
			return []model.Backup{{PluginName: plugin, Version: "1.0.0"}}, nil
		},
		restore: func(_ context.Context, plugin, version, destDir string) (string, error) {
			restoredPlugin, restoredVersion, restoredDir = plugin, version, destDir
			return filepath.Join(destDir, plugin+".dll"), nil
		},
	}
	f := newRepoFixture(t, model.Options{Repos: []model.RepositorySpec{
		{ID: "1", URL: "https://github.com/o/a", InstalledFileName: "My.Plugin.dll", LastVersionDownloaded: "2.0.0"},
	}}, backups)

	list, err := f.svc.Backups(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "My.Plugin", list[0].PluginName)

	updated, err := f.svc.RestoreBackup(context.Background(), "1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "My.Plugin", restoredPlugin)
	assert.Equal(t, "1.0.0", restoredVersion)
	assert.Equal(t, f.plugins, restoredDir)
	assert.Equal(t, "1.0.0", updated.LastVersionDownloaded)
	assert.Equal(t, "My.Plugin.dll", updated.InstalledFileName)
	assert.Equal(t, 1, f.restart.marked)
}

func TestRepoService_BackupsWithoutStore(t *testing.T) {
	f := newRepoFixture(t, model.Options{Repos: []model.RepositorySpec{
		{ID: "1", URL: "https://github.com/o/a", InstalledFileName: "A.dll"},
	}}, nil)

	list, err := f.svc.Backups(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.RestoreBackup(context.Background(), "1", "1.0.0")
	assert.ErrorIs(t, err, driven.ErrBackupNotFound)

	_, err = f.svc.Backups(context.Background(), "missing")
	assert.ErrorIs(t, err, driven.ErrRepoNotFound)
}
