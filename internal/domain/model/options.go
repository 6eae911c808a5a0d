package model

import (
	"strings"
	"time"
)

// Reserved identity of the built-in registry.
const (
	BuiltInRegistryID   = "embedded-default"
	BuiltInRegistryName = "Built-in"
	BuiltInRegistryURL  = "embedded://default"
)

// RegistrySpec is a source of plugin catalog entries.
type RegistrySpec struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Enabled       bool       `json:"enabled"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// IsBuiltIn reports whether r is the non-removable embedded registry.
func (r RegistrySpec) IsBuiltIn() bool {
	return r.ID == BuiltInRegistryID || strings.EqualFold(r.URL, BuiltInRegistryURL)
}

// BuiltInRegistry returns the default embedded registry entry.
func BuiltInRegistry() RegistrySpec {
	return RegistrySpec{
		ID:      BuiltInRegistryID,
		Name:    BuiltInRegistryName,
		URL:     BuiltInRegistryURL,
		Enabled: true,
	}
}

// Options is the persisted configuration document.
type Options struct {
	Repos      []RepositorySpec `json:"repos"`
	Registries []RegistrySpec   `json:"registries"`

	// GitHubToken is the clear-text token. The secure store never persists it.
	GitHubToken          string `json:"github_token,omitempty"`
	EncryptedGitHubToken string `json:"encrypted_github_token,omitempty"`

	RestartAfterInstall bool `json:"restart_after_install"`
	Initialized         bool `json:"initialized"`

	// Notice is a UI-only message and is never written to disk.
	Notice string `json:"-"`
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	if o.Repos != nil {
		c.Repos = make([]RepositorySpec, len(o.Repos))
		for i, r := range o.Repos {
			c.Repos[i] = r
			if r.LastCheckedAt != nil {
				t := *r.LastCheckedAt
				c.Repos[i].LastCheckedAt = &t
			}
		}
	}
	if o.Registries != nil {
		c.Registries = make([]RegistrySpec, len(o.Registries))
		for i, r := range o.Registries {
			c.Registries[i] = r
			if r.LastCheckedAt != nil {
				t := *r.LastCheckedAt
				c.Registries[i].LastCheckedAt = &t
			}
		}
	}
	return c
}

// RepoIndex returns the index of the repository with the given id, or -1.
func (o Options) RepoIndex(id string) int {
	for i, r := range o.Repos {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// RepoIndexByURL returns the index of the repository whose canonical URL matches
// url case-insensitively, or -1.
func (o Options) RepoIndexByURL(url string) int {
	want := repoKey(url)
	for i, r := range o.Repos {
		if repoKey(r.URL) == want {
			return i
		}
	}
	return -1
}

// RegistryIndex returns the index of the registry with the given id, or -1.
func (o Options) RegistryIndex(id string) int {
	for i, r := range o.Registries {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// RegistryIndexByURL returns the index of the registry whose URL matches url
// case-insensitively, or -1.
func (o Options) RegistryIndexByURL(url string) int {
	want := normalizeURL(url)
	for i, r := range o.Registries {
		if normalizeURL(r.URL) == want {
			return i
		}
	}
	return -1
}

// HasBuiltInRegistry reports whether the built-in registry is present.
func (o Options) HasBuiltInRegistry() bool {
	for _, r := range o.Registries {
		if r.IsBuiltIn() {
			return true
		}
	}
	return false
}

func repoKey(u string) string {
	if canonical, err := CanonicalRepoURL(u); err == nil {
		return strings.ToLower(canonical)
	}
	return normalizeURL(u)
}

func normalizeURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, ".git")
}
