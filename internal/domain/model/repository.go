package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RepositorySpec is a GitHub repository whose latest release is installed into the
// plugins directory.
type RepositorySpec struct {
	ID                    string     `json:"id"`
	URL                   string     `json:"url"`
	AllowPreRelease       bool       `json:"allow_pre_release"`
	AutoUpdate            bool       `json:"auto_update"`
	LastVersionDownloaded string     `json:"last_version_downloaded,omitempty"`
	LastCheckedAt         *time.Time `json:"last_checked_at,omitempty"`
	InstalledFileName     string     `json:"installed_file_name,omitempty"`
}

// Owner returns the repository owner parsed from URL, or "" if the URL is malformed.
func (r RepositorySpec) Owner() string {
	owner, _, _ := ParseRepoURL(r.URL)
	return owner
}

// Name returns the repository name parsed from URL, or "" if the URL is malformed.
func (r RepositorySpec) Name() string {
	_, name, _ := ParseRepoURL(r.URL)
	return name
}

// FullName returns "owner/name".
func (r RepositorySpec) FullName() string {
	owner, name, err := ParseRepoURL(r.URL)
	if err != nil {
		return r.URL
	}
	return owner + "/" + name
}

// CanonicalRepoURL reduces a repository URL to https://<host>/<owner>/<repo>, dropping
// any scheme variant, trailing path, query, ".git" suffix, or slash.
func CanonicalRepoURL(raw string) (string, error) {
	owner, name, err := ParseRepoURL(raw)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(strings.TrimSpace(raw))
	return "https://" + strings.ToLower(u.Host) + "/" + owner + "/" + name, nil
}

// ParseRepoURL extracts owner and repository name from a URL of the form
// https://github.com/<owner>/<repo>[/...]. A trailing ".git" or slash is tolerated.
func ParseRepoURL(raw string) (owner, name string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse repository url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("repository url %q has no host", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url %q must contain owner and repository", raw)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
