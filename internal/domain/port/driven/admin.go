package driven

import "errors"

// Sentinel errors returned by repository and registry administration.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates a repository with the same URL already exists.
	ErrRepoAlreadyExists = errors.New("repository already exists")

	// ErrInvalidRepoURL indicates a URL that does not name an owner and repository.
	ErrInvalidRepoURL = errors.New("invalid repository url")

	// ErrRegistryNotFound indicates the requested registry does not exist.
	ErrRegistryNotFound = errors.New("registry not found")

	// ErrRegistryAlreadyExists indicates a registry with the same URL already exists.
	ErrRegistryAlreadyExists = errors.New("registry already exists")

	// ErrInvalidRegistryURL indicates a registry URL that is not absolute http(s).
	ErrInvalidRegistryURL = errors.New("invalid registry url")

	// ErrBuiltInRegistry indicates an attempt to rename, repoint or remove the built-in registry.
	ErrBuiltInRegistry = errors.New("built-in registry cannot be modified or removed")
)
