// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
	"github.com/ericfisherdev/pluginsync/internal/metrics"
)

// SyncSettings holds the filesystem and scheduling settings of a SyncService.
type SyncSettings struct {
	PluginsDir string
	// MaxBackups is the number of backups kept per plugin. Zero disables pruning.
	MaxBackups int
	Interval   time.Duration
}

// triggerRequest represents a manual sync pass request.
type triggerRequest struct {
	scope model.SyncScope
	done  chan triggerResult
}

type triggerResult struct {
	summary model.PassSummary
	err     error
}

// SyncService keeps installed plugin artifacts in step with the latest releases of
// the configured repositories. Passes are serialized; the scheduler, manual triggers
// and single-repository runs never overlap.
type SyncService struct {
	clients  *ReleaseClientProvider
	options  *OptionsEditor
	activity driven.ActivityStore
	backups  driven.BackupStore
	host     driven.Host
	settings SyncSettings
	now      func() time.Time

	triggerCh chan triggerRequest
	passMu    sync.Mutex

	stateMu        sync.RWMutex
	last           *model.PassSummary
	pendingRestart bool
}

// NewSyncService creates a SyncService. activity and backups may be nil.
func NewSyncService(
	clients *ReleaseClientProvider,
	options *OptionsEditor,
	activity driven.ActivityStore,
	backups driven.BackupStore,
	host driven.Host,
	settings SyncSettings,
) *SyncService {
	return &SyncService{
		clients:   clients,
		options:   options,
		activity:  activity,
		backups:   backups,
		host:      host,
		settings:  settings,
		now:       time.Now,
		triggerCh: make(chan triggerRequest),
	}
}

// Start runs an immediate auto-update pass, then one per configured interval. It
// also serves Trigger requests. Start blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	if _, err := s.RunPass(ctx, model.ScopeAutoUpdate, nil); err != nil {
		slog.Error("initial sync pass failed", "error", err)
	}

	ticker := time.NewTicker(s.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.RunPass(ctx, model.ScopeAutoUpdate, nil); err != nil {
				slog.Error("scheduled sync pass failed", "error", err)
			}
		case req := <-s.triggerCh:
			summary, err := s.RunPass(ctx, req.scope, nil)
			req.done <- triggerResult{summary: summary, err: err}
		}
	}
}

// Trigger asks the running scheduler for a pass over scope and blocks until it
// completes or ctx is canceled.
func (s *SyncService) Trigger(ctx context.Context, scope model.SyncScope) (model.PassSummary, error) {
	done := make(chan triggerResult, 1)
	req := triggerRequest{scope: scope, done: done}

	select {
	case s.triggerCh <- req:
	case <-ctx.Done():
		return model.PassSummary{}, ctx.Err()
	}

	select {
	case res := <-done:
		return res.summary, res.err
	case <-ctx.Done():
		return model.PassSummary{}, ctx.Err()
	}
}

// RunPass processes every repository in scope once. Progress receives processed/total
// after each repository, with download progress interpolated in between. The
// configuration is persisted after every repository and cancellation is checked
// once per repository after persisting. A canceled pass returns the partial summary
// together with the context error.
func (s *SyncService) RunPass(ctx context.Context, scope model.SyncScope, progress driven.ProgressFunc) (model.PassSummary, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := s.now()
	opts := s.options.Get()
	s.clients.SetToken(opts.GitHubToken)

	var ids []string
	for _, r := range opts.Repos {
		if scope == model.ScopeAll || r.AutoUpdate {
			ids = append(ids, r.ID)
		}
	}

	summary := model.PassSummary{StartedAt: start, Scope: scope, Outcomes: []model.RepoOutcome{}}
	bypass := scope == model.ScopeAll
	total := float64(len(ids))
	reportProgress(progress, 0)

	for i, id := range ids {
		slot := func(f float64) {
			reportProgress(progress, (float64(i)+f)/total)
		}

		outcome := s.syncRepo(ctx, id, false, bypass, slot)
		s.persist(outcome)
		summary.Add(outcome)
		reportProgress(progress, float64(i+1)/total)

		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}
	}
	if len(ids) == 0 {
		reportProgress(progress, 1)
	}

	summary.FinishedAt = s.now()
	s.finishPass(summary, opts.RestartAfterInstall)

	metrics.SyncPassDurationSeconds.WithLabelValues(string(scope)).Observe(summary.FinishedAt.Sub(start).Seconds())
	slog.Info("sync pass complete",
		"scope", scope,
		"repos", len(ids),
		"installed", summary.Installed,
		"up_to_date", summary.UpToDate,
		"failed", summary.Failed,
		"canceled", summary.Canceled,
		"duration", summary.FinishedAt.Sub(start).Round(time.Millisecond),
	)

	if summary.Canceled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// SyncRepo runs a single repository through the state machine, bypassing the release
// cache. With force set the latest release is installed even when its tag matches
// the installed version.
func (s *SyncService) SyncRepo(ctx context.Context, id string, force bool) (model.RepoOutcome, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	opts := s.options.Get()
	if opts.RepoIndex(id) < 0 {
		return model.RepoOutcome{}, fmt.Errorf("sync repo %s: %w", id, driven.ErrRepoNotFound)
	}
	s.clients.SetToken(opts.GitHubToken)

	outcome := s.syncRepo(ctx, id, force, true, nil)
	s.persist(outcome)

	summary := model.PassSummary{}
	summary.Add(outcome)
	s.finishInstall(summary.Installed, opts.RestartAfterInstall)

	return outcome, nil
}

// LastSummary returns the summary of the most recent full pass.
func (s *SyncService) LastSummary() (model.PassSummary, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.last == nil {
		return model.PassSummary{}, false
	}
	return *s.last, true
}

// PendingRestart reports whether installed plugins are waiting for a host restart.
func (s *SyncService) PendingRestart() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.pendingRestart
}

// MarkPendingRestart records that a change outside a sync pass needs a host restart.
func (s *SyncService) MarkPendingRestart() {
	s.stateMu.Lock()
	s.pendingRestart = true
	s.stateMu.Unlock()

	metrics.PendingRestart.Set(1)
	s.host.NotifyPendingRestart()
}

// syncRepo drives one repository from Checking to a terminal state. A panic is
// recovered and reported as a Failed outcome.
func (s *SyncService) syncRepo(ctx context.Context, id string, force, bypass bool, progress driven.ProgressFunc) (outcome model.RepoOutcome) {
	opts := s.options.Get()
	idx := opts.RepoIndex(id)
	if idx < 0 {
		return model.RepoOutcome{RepoID: id, State: model.SyncFailed, Error: driven.ErrRepoNotFound.Error()}
	}
	repo := opts.Repos[idx]
	outcome = model.RepoOutcome{RepoID: repo.ID, RepoURL: repo.URL, State: model.SyncChecking}

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			slog.Error("panic while syncing repository", "repo", repo.URL, "panic", r, "stack", stack)
			outcome.State = model.SyncFailed
			outcome.Error = fmt.Sprintf("unexpected error: %v", r)
			s.record(ctx, failedEntry(repo, outcome.Error, stack))
		}
	}()

	client := s.clients.Get()

	rel, err := client.ResolveLatest(ctx, repo, bypass)
	if err != nil {
		return s.fail(ctx, repo, outcome, "resolving latest release", err)
	}
	if rel == nil {
		slog.Warn("no release found", "repo", repo.URL)
		outcome.State = model.SyncFailed
		outcome.Error = "no release found"
		s.record(ctx, notFoundEntry(repo))
		return outcome
	}
	outcome.Tag = rel.TagName

	if !force && strings.EqualFold(rel.TagName, repo.LastVersionDownloaded) {
		outcome.State = model.SyncUpToDate
		outcome.FileName = repo.InstalledFileName
		s.record(ctx, upToDateEntry(repo, rel.TagName))
		return outcome
	}

	warnDowngrade(repo, rel.TagName)
	outcome.State = model.SyncDownloading
	backedUp := s.backupInstalled(ctx, repo)

	fileName, err := client.Download(ctx, rel, s.settings.PluginsDir, progress)
	if err != nil {
		return s.fail(ctx, repo, outcome, "downloading release asset", err)
	}
	s.pruneBackups(ctx, backedUp)

	if repo.InstalledFileName != "" && repo.InstalledFileName != fileName {
		s.removeArtifact(repo.InstalledFileName)
	}

	outcome.State = model.SyncInstalled
	outcome.FileName = fileName
	s.record(ctx, installedEntry(repo, rel, fileName))
	return outcome
}

// fail converts err into a Failed outcome with the matching activity record.
func (s *SyncService) fail(ctx context.Context, repo model.RepositorySpec, outcome model.RepoOutcome, action string, err error) model.RepoOutcome {
	outcome.State = model.SyncFailed
	outcome.Error = err.Error()

	if errors.Is(err, driven.ErrAuthentication) {
		slog.Error("github authentication failed", "repo", repo.URL, "error", err)
		s.record(ctx, authFailedEntry(repo, err))
		return outcome
	}

	slog.Error("repository sync failed", "repo", repo.URL, "action", action, "error", err)
	s.record(ctx, failedEntry(repo, "Error while "+action+".", err.Error()))
	return outcome
}

// persist applies outcome to the stored repository and writes the configuration.
// Failed outcomes leave the stored version untouched so the next pass retries.
func (s *SyncService) persist(outcome model.RepoOutcome) {
	_, err := s.options.Update(func(opts *model.Options) error {
		idx := opts.RepoIndex(outcome.RepoID)
		if idx < 0 {
			slog.Warn("repository removed during sync", "repo_id", outcome.RepoID)
			return nil
		}

		checked := s.now().UTC()
		repo := &opts.Repos[idx]

		switch outcome.State {
		case model.SyncUpToDate:
			repo.LastCheckedAt = &checked
		case model.SyncInstalled:
			repo.LastVersionDownloaded = outcome.Tag
			repo.InstalledFileName = outcome.FileName
			repo.LastCheckedAt = &checked
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to persist options after sync", "repo_id", outcome.RepoID, "error", err)
	}
}

// backupInstalled copies the currently installed artifact into the backup store and
// returns the plugin name it was filed under, or "" when nothing was backed up.
// Failures are logged only.
func (s *SyncService) backupInstalled(ctx context.Context, repo model.RepositorySpec) string {
	if s.backups == nil || repo.InstalledFileName == "" {
		return ""
	}

	path := filepath.Join(s.settings.PluginsDir, repo.InstalledFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	b, err := s.backups.Create(ctx, path, repo.LastVersionDownloaded)
	if err != nil {
		slog.Warn("failed to back up installed plugin", "repo", repo.URL, "file", repo.InstalledFileName, "error", err)
		return ""
	}
	return b.PluginName
}

// pruneBackups trims the backups of plugin to MaxBackups. It runs only after a new
// artifact is in place, so a failed download never costs an older restore point.
func (s *SyncService) pruneBackups(ctx context.Context, plugin string) {
	if plugin == "" || s.settings.MaxBackups <= 0 {
		return
	}
	if _, err := s.backups.Cleanup(ctx, plugin, s.settings.MaxBackups); err != nil {
		slog.Warn("failed to prune plugin backups", "plugin", plugin, "error", err)
	}
}

func (s *SyncService) removeArtifact(fileName string) {
	path := filepath.Join(s.settings.PluginsDir, filepath.Base(fileName))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove superseded plugin file", "file", path, "error", err)
		return
	}
	slog.Info("removed superseded plugin file", "file", path)
}

// record writes an activity entry and counts the outcome.
func (s *SyncService) record(ctx context.Context, entry model.ActivityEntry) {
	metrics.SyncOutcomesTotal.WithLabelValues(string(entry.Kind)).Inc()

	if s.activity == nil {
		return
	}
	entry.CreatedAt = s.now()
	if _, err := s.activity.Create(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("failed to record activity", "repo_id", entry.RepoID, "kind", entry.Kind, "error", err)
	}
}

func (s *SyncService) finishPass(summary model.PassSummary, restartAfterInstall bool) {
	s.stateMu.Lock()
	s.last = &summary
	s.stateMu.Unlock()

	s.finishInstall(summary.Installed, restartAfterInstall)
}

// finishInstall signals the host once any plugin was installed.
func (s *SyncService) finishInstall(installed int, restartAfterInstall bool) {
	if installed == 0 {
		return
	}

	if restartAfterInstall {
		slog.Info("restarting host after plugin install", "installed", installed)
		s.host.Restart()
		return
	}

	s.MarkPendingRestart()
}

// warnDowngrade logs when tag is semantically older than the installed version.
func warnDowngrade(repo model.RepositorySpec, tag string) {
	if repo.LastVersionDownloaded == "" {
		return
	}

	installed, err := semver.NewVersion(repo.LastVersionDownloaded)
	if err != nil {
		return
	}
	latest, err := semver.NewVersion(tag)
	if err != nil {
		return
	}

	if latest.LessThan(installed) {
		slog.Warn("latest release is older than the installed version",
			"repo", repo.URL,
			"installed", repo.LastVersionDownloaded,
			"latest", tag,
		)
	}
}

func reportProgress(p driven.ProgressFunc, f float64) {
	if p != nil {
		p(f)
	}
}
