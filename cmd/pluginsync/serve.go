package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httphandler "github.com/ericfisherdev/pluginsync/internal/adapter/driving/http"
)

// pruneInterval is how often expired activity entries are deleted.
const pruneInterval = 24 * time.Hour

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg

	// An immediate restart shuts the service down; the supervisor starts it again.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, cancel)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := httphandler.NewServeMux(httphandler.NewHandler(a.sync, a.repos, slog.Default()), slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Manual sync requests wait for a full pass.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.sync.Start(gctx)
		return nil
	})

	g.Go(func() error {
		pruneActivity(gctx, a, cfg.ActivityRetention)
		return nil
	})

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("pluginsync started",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"plugins_dir", cfg.PluginsDir,
		"sync_interval", cfg.SyncInterval,
	)

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}

// pruneActivity deletes activity older than retention once at startup and then
// daily until ctx is canceled. A zero retention disables pruning.
func pruneActivity(ctx context.Context, a *app, retention time.Duration) {
	if retention <= 0 {
		return
	}

	prune := func() {
		n, err := a.activity.DeleteBefore(ctx, time.Now().Add(-retention))
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("failed to prune activity", "error", err)
			}
			return
		}
		if n > 0 {
			slog.Info("pruned activity", "deleted", n, "retention", retention)
		}
	}

	prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
