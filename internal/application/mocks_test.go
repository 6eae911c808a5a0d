package application_test

import (
	"context"
	"sync"

	"github.com/ericfisherdev/pluginsync/internal/application"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockReleaseClient struct {
	resolveLatest  func(ctx context.Context, repo model.RepositorySpec, bypassCache bool) (*model.Release, error)
	resolveMany    func(ctx context.Context, repos []model.RepositorySpec) []model.Release
	download       func(ctx context.Context, rel *model.Release, destDir string, progress driven.ProgressFunc) (string, error)
	validate       func(ctx context.Context, owner, repo string) bool
	listRegistries func(ctx context.Context, registries []model.RegistrySpec) []model.RegistryEntry

	mu        sync.Mutex
	downloads []string
}

func (m *mockReleaseClient) ResolveLatest(ctx context.Context, repo model.RepositorySpec, bypassCache bool) (*model.Release, error) {
	return m.resolveLatest(ctx, repo, bypassCache)
}

func (m *mockReleaseClient) ResolveLatestForMany(ctx context.Context, repos []model.RepositorySpec) []model.Release {
	return m.resolveMany(ctx, repos)
}

func (m *mockReleaseClient) Download(ctx context.Context, rel *model.Release, destDir string, progress driven.ProgressFunc) (string, error) {
	m.mu.Lock()
	m.downloads = append(m.downloads, rel.FullName()+"@"+rel.TagName)
	m.mu.Unlock()
	return m.download(ctx, rel, destDir, progress)
}

func (m *mockReleaseClient) ValidateRepository(ctx context.Context, owner, repo string) bool {
	return m.validate(ctx, owner, repo)
}

func (m *mockReleaseClient) ListRegistryPlugins(ctx context.Context, registries []model.RegistrySpec) []model.RegistryEntry {
	return m.listRegistries(ctx, registries)
}

func (m *mockReleaseClient) downloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.downloads)
}

// memOptionsStore keeps options in memory and counts saves.
type memOptionsStore struct {
	mu    sync.Mutex
	opts  model.Options
	saves int
	err   error
}

func (m *memOptionsStore) Get() model.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts.Clone()
}

func (m *memOptionsStore) Set(opts model.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.opts = opts.Clone()
	m.saves++
	return nil
}

func (m *memOptionsStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type mockActivityStore struct {
	mu      sync.Mutex
	entries []model.ActivityEntry
}

func (m *mockActivityStore) Create(_ context.Context, entry model.ActivityEntry) (model.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *mockActivityStore) ListRecent(_ context.Context, limit int) ([]model.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.ActivityEntry(nil), m.entries...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockActivityStore) ListByRepo(_ context.Context, repoID string, _ int) ([]model.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActivityEntry
	for _, e := range m.entries {
		if e.RepoID == repoID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockActivityStore) kinds() []model.ActivityKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ActivityKind, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Kind)
	}
	return out
}

type mockBackupStore struct {
	create  func(ctx context.Context, path, version string) (model.Backup, error)
	list    func(ctx context.Context, pluginName string) ([]model.Backup, error)
	restore func(ctx context.Context, pluginName, version, destDir string) (string, error)
	cleanup func(ctx context.Context, pluginName string, max int) (int, error)
}

func (m *mockBackupStore) Create(ctx context.Context, path, version string) (model.Backup, error) {
	return m.create(ctx, path, version)
}

func (m *mockBackupStore) List(ctx context.Context, pluginName string) ([]model.Backup, error) {
	return m.list(ctx, pluginName)
}

func (m *mockBackupStore) Restore(ctx context.Context, pluginName, version, destDir string) (string, error) {
	return m.restore(ctx, pluginName, version, destDir)
}

func (m *mockBackupStore) Delete(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockBackupStore) Cleanup(ctx context.Context, pluginName string, max int) (int, error) {
	return m.cleanup(ctx, pluginName, max)
}

type mockHost struct {
	mu       sync.Mutex
	pending  int
	restarts int
}

func (m *mockHost) NotifyPendingRestart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending++
}

func (m *mockHost) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
}

func (m *mockHost) counts() (pending, restarts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, m.restarts
}

// staticProvider returns a provider that always hands out client.
func staticProvider(client driven.ReleaseClient) *application.ReleaseClientProvider {
	return application.NewReleaseClientProvider(func(string) driven.ReleaseClient { return client }, "")
}
