package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ericfisherdev/pluginsync/internal/adapter/driven/backup"
	githubadapter "github.com/ericfisherdev/pluginsync/internal/adapter/driven/github"
	"github.com/ericfisherdev/pluginsync/internal/adapter/driven/optionsfile"
	sqliteadapter "github.com/ericfisherdev/pluginsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/pluginsync/internal/application"
	"github.com/ericfisherdev/pluginsync/internal/config"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// app holds the wired adapters and services of one process.
type app struct {
	cfg      *config.Config
	db       *sqliteadapter.DB
	activity *sqliteadapter.ActivityRepo
	backups  *backup.Store
	host     *logHost
	sync     *application.SyncService
	repos    *application.RepoService
}

// newApp opens the stores and wires the services. restart is invoked when the
// restart-after-install policy asks for an immediate host restart; it may be nil.
func newApp(ctx context.Context, cfg *config.Config, restart func()) (*app, error) {
	if err := os.MkdirAll(cfg.PluginsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plugins directory: %w", err)
	}

	protector, err := optionsfile.NewMachineProtector(ctx)
	if err != nil {
		return nil, fmt.Errorf("create token protector: %w", err)
	}
	fileStore := optionsfile.NewStore(cfg.ConfigDir, cfg.ConfigName)
	optionsStore := optionsfile.NewSecureStore(fileStore, protector)
	optionsStore.OnSaved(func(ev optionsfile.SavedEvent) {
		slog.Debug("options saved", "path", fileStore.Path(), "repos", len(ev.Options.Repos))
	})
	slog.Info("options loaded", "path", fileStore.Path())

	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", db.Path())
	activity := sqliteadapter.NewActivityRepo(db)

	var backups *backup.Store
	var backupStore driven.BackupStore
	if cfg.BackupsEnabled() {
		backups = backup.NewStore(cfg.BackupDir)
		backupStore = backups
		slog.Info("plugin backups enabled", "dir", backups.Root(), "max", cfg.MaxBackups)
	} else {
		slog.Info("plugin backups disabled")
	}

	factory := func(token string) driven.ReleaseClient {
		return githubadapter.NewClient(token, githubadapter.WithMaxConcurrency(cfg.MaxConcurrency))
	}

	editor := application.NewOptionsEditor(optionsStore)
	clients := application.NewReleaseClientProvider(factory, editor.Get().GitHubToken)
	host := &logHost{restart: restart}

	syncSvc := application.NewSyncService(clients, editor, activity, backupStore, host, application.SyncSettings{
		PluginsDir: cfg.PluginsDir,
		MaxBackups: cfg.MaxBackups,
		Interval:   cfg.SyncInterval,
	})
	repoSvc := application.NewRepoService(editor, clients, backupStore, activity, syncSvc, cfg.PluginsDir)

	opts, err := repoSvc.EnsureDefaults(cfg.SelfRepoURL, cfg.GitHubToken)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize options: %w", err)
	}
	clients.SetToken(opts.GitHubToken)

	return &app{
		cfg:      cfg,
		db:       db,
		activity: activity,
		backups:  backups,
		host:     host,
		sync:     syncSvc,
		repos:    repoSvc,
	}, nil
}

// Close releases the database connections.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
