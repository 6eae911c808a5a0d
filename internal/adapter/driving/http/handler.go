package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/pluginsync/internal/application"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sync   *application.SyncService
	repos  *application.RepoService
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	syncSvc *application.SyncService,
	repoSvc *application.RepoService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sync:   syncSvc,
		repos:  repoSvc,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.AddRepo)
	mux.HandleFunc("PUT /api/v1/repos/{id}", h.UpdateRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{id}", h.RemoveRepo)
	mux.HandleFunc("POST /api/v1/repos/{id}/sync", h.SyncRepo)
	mux.HandleFunc("GET /api/v1/repos/{id}/backups", h.ListBackups)
	mux.HandleFunc("POST /api/v1/repos/{id}/backups/{version}/restore", h.RestoreBackup)

	mux.HandleFunc("POST /api/v1/sync", h.Sync)
	mux.HandleFunc("GET /api/v1/releases", h.LatestReleases)
	mux.HandleFunc("GET /api/v1/activity", h.ListActivity)

	mux.HandleFunc("GET /api/v1/registries", h.ListRegistries)
	mux.HandleFunc("POST /api/v1/registries", h.AddRegistry)
	mux.HandleFunc("PUT /api/v1/registries/{id}", h.UpdateRegistry)
	mux.HandleFunc("DELETE /api/v1/registries/{id}", h.RemoveRegistry)
	mux.HandleFunc("GET /api/v1/registries/plugins", h.ListRegistryPlugins)

	mux.HandleFunc("PUT /api/v1/token", h.SetToken)
	mux.HandleFunc("PUT /api/v1/settings", h.UpdateSettings)
	mux.HandleFunc("POST /api/v1/validate", h.Validate)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports token presence, the restart state and the last pass summary.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		HasToken:            h.repos.HasToken(),
		PendingRestart:      h.sync.PendingRestart(),
		RestartAfterInstall: h.repos.RestartAfterInstall(),
		Repos:               len(h.repos.List()),
	}
	if last, ok := h.sync.LastSummary(); ok {
		pass := toPassResponse(last)
		resp.LastPass = &pass
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRepos returns all configured repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, _ *http.Request) {
	repos := h.repos.List()

	resp := make([]RepoResponse, 0, len(repos))
	for _, r := range repos {
		resp = append(resp, toRepoResponse(r))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRepo registers a repository from a JSON body.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req RepoRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	repo, err := h.repos.Add(application.RepoInput{
		URL:             req.URL,
		AllowPreRelease: req.AllowPreRelease,
		AutoUpdate:      req.AutoUpdate,
	})
	if err != nil {
		h.writeServiceError(w, "add repository", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// UpdateRepo replaces the editable fields of a repository.
func (h *Handler) UpdateRepo(w http.ResponseWriter, r *http.Request) {
	var req RepoRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if req.URL == "" {
		current, err := h.repos.Get(id)
		if err != nil {
			h.writeServiceError(w, "update repository", err)
			return
		}
		req.URL = current.URL
	}

	repo, err := h.repos.Update(id, application.RepoInput{
		URL:             req.URL,
		AllowPreRelease: req.AllowPreRelease,
		AutoUpdate:      req.AutoUpdate,
	})
	if err != nil {
		h.writeServiceError(w, "update repository", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(repo))
}

// RemoveRepo deletes a repository and its installed plugin file.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	if err := h.repos.Remove(r.PathValue("id")); err != nil {
		h.writeServiceError(w, "remove repository", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncRepo runs one repository through the sync state machine. ?force=true
// reinstalls even when the installed tag matches.
func (h *Handler) SyncRepo(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	outcome, err := h.sync.SyncRepo(r.Context(), r.PathValue("id"), force)
	if err != nil {
		h.writeServiceError(w, "sync repository", err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

// Sync asks the scheduler for a pass and waits for its summary. ?scope=all
// includes repositories with auto-update disabled.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	scope := model.ScopeAutoUpdate
	switch r.URL.Query().Get("scope") {
	case "", string(model.ScopeAutoUpdate):
	case string(model.ScopeAll):
		scope = model.ScopeAll
	default:
		writeError(w, http.StatusBadRequest, "scope must be auto or all")
		return
	}

	summary, err := h.sync.Trigger(r.Context(), scope)
	if err != nil && !summary.Canceled {
		h.writeServiceError(w, "sync pass", err)
		return
	}

	writeJSON(w, http.StatusOK, toPassResponse(summary))
}

// LatestReleases resolves the newest release of every configured repository.
func (h *Handler) LatestReleases(w http.ResponseWriter, r *http.Request) {
	releases := h.repos.LatestReleases(r.Context())

	resp := make([]ReleaseResponse, 0, len(releases))
	for _, rel := range releases {
		resp = append(resp, toReleaseResponse(rel))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListBackups returns the saved artifacts of a repository's plugin, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.repos.Backups(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "list backups", err)
		return
	}

	resp := make([]BackupResponse, 0, len(backups))
	for _, b := range backups {
		resp = append(resp, toBackupResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RestoreBackup reinstalls a backed-up plugin version.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.RestoreBackup(r.Context(), r.PathValue("id"), r.PathValue("version"))
	if err != nil {
		h.writeServiceError(w, "restore backup", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(repo))
}

// ListActivity returns recent activity. ?repo_id filters to one repository and
// ?limit caps the number of entries.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.repos.Activity(r.Context(), q.Get("repo_id"), limit)
	if err != nil {
		h.writeServiceError(w, "list activity", err)
		return
	}

	resp := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toActivityResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRegistries returns the configured catalog registries.
func (h *Handler) ListRegistries(w http.ResponseWriter, _ *http.Request) {
	regs := h.repos.Registries()

	resp := make([]RegistryResponse, 0, len(regs))
	for _, reg := range regs {
		resp = append(resp, toRegistryResponse(reg))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRegistry registers a catalog registry from a JSON body.
func (h *Handler) AddRegistry(w http.ResponseWriter, r *http.Request) {
	var req RegistryRequest
	if !h.decode(w, r, &req) {
		return
	}

	reg, err := h.repos.AddRegistry(application.RegistryInput{
		Name:    req.Name,
		URL:     req.URL,
		Enabled: req.Enabled,
	})
	if err != nil {
		h.writeServiceError(w, "add registry", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRegistryResponse(reg))
}

// UpdateRegistry changes a registry. The built-in registry only accepts enabled.
func (h *Handler) UpdateRegistry(w http.ResponseWriter, r *http.Request) {
	var req RegistryRequest
	if !h.decode(w, r, &req) {
		return
	}

	reg, err := h.repos.UpdateRegistry(r.PathValue("id"), application.RegistryInput{
		Name:    req.Name,
		URL:     req.URL,
		Enabled: req.Enabled,
	})
	if err != nil {
		h.writeServiceError(w, "update registry", err)
		return
	}

	writeJSON(w, http.StatusOK, toRegistryResponse(reg))
}

// RemoveRegistry deletes a catalog registry.
func (h *Handler) RemoveRegistry(w http.ResponseWriter, r *http.Request) {
	if err := h.repos.RemoveRegistry(r.PathValue("id")); err != nil {
		h.writeServiceError(w, "remove registry", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRegistryPlugins returns the merged catalog. ?available=true hides plugins
// that are already configured.
func (h *Handler) ListRegistryPlugins(w http.ResponseWriter, r *http.Request) {
	hide, _ := strconv.ParseBool(r.URL.Query().Get("available"))
	entries := h.repos.RegistryPlugins(r.Context(), hide)

	resp := make([]RegistryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toRegistryEntryResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetToken stores the GitHub token. The response only reports whether one is set.
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.repos.SetToken(req.Token); err != nil {
		h.writeServiceError(w, "set token", err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		HasToken:            h.repos.HasToken(),
		PendingRestart:      h.sync.PendingRestart(),
		RestartAfterInstall: h.repos.RestartAfterInstall(),
		Repos:               len(h.repos.List()),
	})
}

// UpdateSettings changes the restart-after-install policy.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.repos.SetRestartAfterInstall(req.RestartAfterInstall); err != nil {
		h.writeServiceError(w, "update settings", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Validate checks that a repository URL is well formed and reachable.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.repos.Validate(r.Context(), req.URL)
	if err != nil {
		h.writeServiceError(w, "validate repository", err)
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{Valid: ok})
}

// decode reads a JSON body into v, writing a 400 response on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps application errors to HTTP status codes. Unknown errors
// are logged and hidden behind a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, driven.ErrRepoNotFound),
		errors.Is(err, driven.ErrRegistryNotFound),
		errors.Is(err, driven.ErrBackupNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, driven.ErrRepoAlreadyExists),
		errors.Is(err, driven.ErrRegistryAlreadyExists),
		errors.Is(err, driven.ErrSaveCanceled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, driven.ErrInvalidRepoURL),
		errors.Is(err, driven.ErrInvalidRegistryURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrBuiltInRegistry):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
