package model

import (
	"strings"
	"time"
)

// AssetKind classifies a release asset by its file name.
type AssetKind string

const (
	AssetKindInstallable AssetKind = "installable"
	AssetKindOther       AssetKind = "other"
)

// DefaultInstallableSuffixes are the file suffixes treated as installable plugin artifacts.
var DefaultInstallableSuffixes = []string{".dll"}

// ClassifyAsset returns AssetKindInstallable when name ends with one of suffixes
// (case-insensitive).
func ClassifyAsset(name string, suffixes []string) AssetKind {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return AssetKindInstallable
		}
	}
	return AssetKindOther
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Kind        AssetKind `json:"kind"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	APIURL      string    `json:"api_url"`
	BrowserURL  string    `json:"browser_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Release is the resolved latest release of a repository.
type Release struct {
	Owner           string    `json:"owner"`
	Repo            string    `json:"repo"`
	TagName         string    `json:"tag_name"`
	Name            string    `json:"name"`
	TargetCommitish string    `json:"target_commitish"`
	PreRelease      bool      `json:"pre_release"`
	Draft           bool      `json:"draft"`
	PublishedAt     time.Time `json:"published_at"`
	Body            string    `json:"body"`
	HTMLURL         string    `json:"html_url"`
	Assets          []Asset   `json:"assets"`

	// CommitMessage is filled from the release's target commit when available.
	CommitMessage string `json:"commit_message,omitempty"`
}

// FullName returns "owner/repo".
func (r Release) FullName() string {
	return r.Owner + "/" + r.Repo
}

// Notes returns the release body, falling back to the target commit message.
func (r Release) Notes() string {
	if strings.TrimSpace(r.Body) != "" {
		return r.Body
	}
	return r.CommitMessage
}

// LatestInstallable returns the most recently updated installable asset, or false
// when the release has none.
func (r Release) LatestInstallable() (Asset, bool) {
	var (
		best  Asset
		found bool
	)
	for _, a := range r.Assets {
		if a.Kind != AssetKindInstallable {
			continue
		}
		if !found || a.UpdatedAt.After(best.UpdatedAt) {
			best = a
			found = true
		}
	}
	return best, found
}
