package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

// Sentinel errors returned by ReleaseClient implementations.
var (
	// ErrAuthentication indicates GitHub rejected the credentials (HTTP 401).
	ErrAuthentication = errors.New("github authentication failed: the token may be invalid or lack the required scope")

	// ErrFetchFailed indicates a non-2xx response other than 401, 403 and 404.
	ErrFetchFailed = errors.New("github fetch failed")

	// ErrNoInstallableAsset indicates the release carries no installable asset.
	ErrNoInstallableAsset = errors.New("no installable asset")
)

// ProgressFunc receives fractional completion in [0, 1].
type ProgressFunc func(fraction float64)

// ReleaseClient defines the driven port for resolving and downloading releases.
type ReleaseClient interface {
	// ResolveLatest returns the newest qualifying release of repo.
	// Returns (nil, nil) when the repository is not found or access is forbidden.
	// bypassCache forces a fresh request.
	ResolveLatest(ctx context.Context, repo model.RepositorySpec, bypassCache bool) (*model.Release, error)

	// ResolveLatestForMany resolves every repository concurrently and returns the
	// successful results in no particular order.
	ResolveLatestForMany(ctx context.Context, repos []model.RepositorySpec) []model.Release

	// Download streams the newest installable asset into destDir and returns the
	// installed file name. progress may be nil.
	Download(ctx context.Context, release *model.Release, destDir string, progress ProgressFunc) (string, error)

	// ValidateRepository reports whether owner/repo is reachable with the current credentials.
	ValidateRepository(ctx context.Context, owner, repo string) bool

	// ListRegistryPlugins merges the catalogs of all enabled registries.
	ListRegistryPlugins(ctx context.Context, registries []model.RegistrySpec) []model.RegistryEntry
}
