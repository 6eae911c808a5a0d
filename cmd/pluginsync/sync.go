package main

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

func (c *cli) newSyncCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and exit",
		Long: `Run one sync pass over the configured repositories and exit.

By default only repositories with auto-update enabled are processed; --all includes
every repository and skips the release cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, c.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			scope := model.ScopeAutoUpdate
			if all {
				scope = model.ScopeAll
			}

			out := cmd.OutOrStdout()
			summary, err := a.sync.RunPass(ctx, scope, newProgressPrinter(out))
			printSummary(out, summary)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d repositories failed", summary.Failed, len(summary.Outcomes))
			}
			if a.host.Pending() {
				fmt.Fprintln(out, "Restart the host to load the installed plugins.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include repositories with auto-update disabled")
	return cmd
}

// newProgressPrinter returns a progress callback that prints whole-percent steps.
func newProgressPrinter(w io.Writer) func(float64) {
	var mu sync.Mutex
	last := -1

	return func(fraction float64) {
		pct := int(math.Floor(math.Max(0, math.Min(1, fraction)) * 100))

		mu.Lock()
		defer mu.Unlock()
		if pct <= last {
			return
		}
		last = pct
		fmt.Fprintf(w, "progress %3d%%\n", pct)
	}
}

func printSummary(w io.Writer, s model.PassSummary) {
	for _, o := range s.Outcomes {
		line := fmt.Sprintf("%-12s %s", o.State, o.RepoURL)
		if o.Tag != "" {
			line += " " + o.Tag
		}
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Fprintln(w, line)
	}

	status := "complete"
	if s.Canceled {
		status = "canceled"
	}
	fmt.Fprintf(w, "sync %s: %d installed, %d up to date, %d failed\n", status, s.Installed, s.UpToDate, s.Failed)
}
