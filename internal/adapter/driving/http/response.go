package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/pluginsync/internal/application"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusResponse reports the sync service state. The token itself is never returned.
type StatusResponse struct {
	HasToken            bool             `json:"has_token"`
	PendingRestart      bool             `json:"pending_restart"`
	RestartAfterInstall bool             `json:"restart_after_install"`
	Repos               int              `json:"repos"`
	LastPass            *PassResponse `json:"last_pass,omitempty"`
}

// RepoResponse is the JSON representation of a configured repository.
type RepoResponse struct {
	ID                    string `json:"id"`
	URL                   string `json:"url"`
	Owner                 string `json:"owner"`
	Name                  string `json:"name"`
	AllowPreRelease       bool   `json:"allow_pre_release"`
	AutoUpdate            bool   `json:"auto_update"`
	LastVersionDownloaded string `json:"last_version_downloaded"`
	LastCheckedAt         string `json:"last_checked_at,omitempty"`
	InstalledFileName     string `json:"installed_file_name,omitempty"`
}

// RepoRequest is the JSON body for creating or updating a repository.
type RepoRequest struct {
	URL             string `json:"url"`
	AllowPreRelease bool   `json:"allow_pre_release"`
	AutoUpdate      *bool  `json:"auto_update"`
}

// AssetResponse is the JSON representation of a release asset.
type AssetResponse struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	UpdatedAt   string `json:"updated_at"`
}

// ReleaseResponse is the JSON representation of a resolved release.
type ReleaseResponse struct {
	Repository  string          `json:"repository"`
	Tag         string          `json:"tag"`
	Name        string          `json:"name"`
	PreRelease  bool            `json:"pre_release"`
	PublishedAt string          `json:"published_at"`
	URL         string          `json:"url"`
	Notes       string          `json:"notes"`
	NotesHTML   string          `json:"notes_html"`
	Assets      []AssetResponse `json:"assets"`
}

// OutcomeResponse is the JSON representation of one repository's sync result.
type OutcomeResponse struct {
	RepoID   string `json:"repo_id"`
	RepoURL  string `json:"repo_url"`
	State    string `json:"state"`
	Tag      string `json:"tag,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PassResponse is the JSON representation of a sync pass summary.
type PassResponse struct {
	Scope      string            `json:"scope"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	Installed  int               `json:"installed"`
	UpToDate   int               `json:"up_to_date"`
	Failed     int               `json:"failed"`
	Canceled   bool              `json:"canceled"`
	Outcomes   []OutcomeResponse `json:"outcomes"`
}

// RegistryResponse is the JSON representation of a catalog registry.
type RegistryResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
	BuiltIn bool   `json:"built_in"`
}

// RegistryRequest is the JSON body for creating or updating a registry.
type RegistryRequest struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled *bool  `json:"enabled"`
}

// RegistryEntryResponse is one plugin listed by a registry.
type RegistryEntryResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Registry    string `json:"registry"`
}

// ActivityResponse is the JSON representation of an activity entry.
type ActivityResponse struct {
	ID         int64  `json:"id"`
	RepoID     string `json:"repo_id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Detail     string `json:"detail,omitempty"`
	DetailHTML string `json:"detail_html,omitempty"`
	Kind       string `json:"kind"`
	Severity   string `json:"severity"`
	CreatedAt  string `json:"created_at"`
}

// BackupResponse is the JSON representation of a plugin backup.
type BackupResponse struct {
	PluginName string `json:"plugin_name"`
	Version    string `json:"version"`
	CreatedAt  string `json:"created_at"`
	Size       int64  `json:"size"`
}

// TokenRequest is the JSON body for the token endpoint.
type TokenRequest struct {
	Token string `json:"token"`
}

// SettingsRequest is the JSON body for the settings endpoint.
type SettingsRequest struct {
	RestartAfterInstall bool `json:"restart_after_install"`
}

// ValidateRequest is the JSON body for the validate endpoint.
type ValidateRequest struct {
	URL string `json:"url"`
}

// ValidateResponse reports whether a repository URL is reachable.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toRepoResponse converts a domain RepositorySpec to its JSON response representation.
func toRepoResponse(r model.RepositorySpec) RepoResponse {
	resp := RepoResponse{
		ID:                    r.ID,
		URL:                   r.URL,
		Owner:                 r.Owner(),
		Name:                  r.Name(),
		AllowPreRelease:       r.AllowPreRelease,
		AutoUpdate:            r.AutoUpdate,
		LastVersionDownloaded: r.LastVersionDownloaded,
		InstalledFileName:     r.InstalledFileName,
	}
	if r.LastCheckedAt != nil {
		resp.LastCheckedAt = formatTime(*r.LastCheckedAt)
	}
	return resp
}

// toReleaseResponse converts a domain Release, rendering its notes to sanitized HTML.
func toReleaseResponse(rel model.Release) ReleaseResponse {
	assets := make([]AssetResponse, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		assets = append(assets, AssetResponse{
			Name:        a.Name,
			Kind:        string(a.Kind),
			Size:        a.Size,
			DownloadURL: a.BrowserURL,
			UpdatedAt:   formatTime(a.UpdatedAt),
		})
	}

	notes := rel.Notes()
	return ReleaseResponse{
		Repository:  rel.FullName(),
		Tag:         rel.TagName,
		Name:        rel.Name,
		PreRelease:  rel.PreRelease,
		PublishedAt: formatTime(rel.PublishedAt),
		URL:         rel.HTMLURL,
		Notes:       notes,
		NotesHTML:   application.RenderNotes(notes),
		Assets:      assets,
	}
}

func toOutcomeResponse(o model.RepoOutcome) OutcomeResponse {
	return OutcomeResponse{
		RepoID:   o.RepoID,
		RepoURL:  o.RepoURL,
		State:    string(o.State),
		Tag:      o.Tag,
		FileName: o.FileName,
		Error:    o.Error,
	}
}

func toPassResponse(s model.PassSummary) PassResponse {
	outcomes := make([]OutcomeResponse, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		outcomes = append(outcomes, toOutcomeResponse(o))
	}

	return PassResponse{
		Scope:      string(s.Scope),
		StartedAt:  formatTime(s.StartedAt),
		FinishedAt: formatTime(s.FinishedAt),
		Installed:  s.Installed,
		UpToDate:   s.UpToDate,
		Failed:     s.Failed,
		Canceled:   s.Canceled,
		Outcomes:   outcomes,
	}
}

func toRegistryResponse(r model.RegistrySpec) RegistryResponse {
	return RegistryResponse{
		ID:      r.ID,
		Name:    r.Name,
		URL:     r.URL,
		Enabled: r.Enabled,
		BuiltIn: r.IsBuiltIn(),
	}
}

func toRegistryEntryResponse(e model.RegistryEntry) RegistryEntryResponse {
	return RegistryEntryResponse{
		Name:        e.Name,
		Description: e.Description,
		URL:         e.URL,
		Registry:    e.RegistrySource,
	}
}

func toActivityResponse(e model.ActivityEntry) ActivityResponse {
	return ActivityResponse{
		ID:         e.ID,
		RepoID:     e.RepoID,
		Title:      e.Title,
		Summary:    e.Summary,
		Detail:     e.Detail,
		DetailHTML: e.DetailHTML,
		Kind:       string(e.Kind),
		Severity:   string(e.Severity),
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

func toBackupResponse(b model.Backup) BackupResponse {
	return BackupResponse{
		PluginName: b.PluginName,
		Version:    b.Version,
		CreatedAt:  formatTime(b.CreatedAt),
		Size:       b.Size,
	}
}
