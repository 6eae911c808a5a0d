package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// errNotReachable is returned by validate for repositories GitHub does not serve.
var errNotReachable = errors.New("repository not reachable")

func (c *cli) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <owner/repo | url>",
		Short: "Check that a GitHub repository is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			repoURL := repoURLFromArg(args[0])
			ok, err := a.repos.Validate(cmd.Context(), repoURL)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", repoURL, errNotReachable)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", repoURL)
			return nil
		},
	}
}

func (c *cli) newReleasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "releases",
		Short: "List the latest release of every configured repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			installed := make(map[string]string)
			for _, r := range a.repos.List() {
				installed[strings.ToLower(r.FullName())] = r.LastVersionDownloaded
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REPOSITORY\tLATEST\tINSTALLED\tPUBLISHED\tASSET")
			for _, rel := range a.repos.LatestReleases(cmd.Context()) {
				asset := "-"
				if installable, ok := rel.LatestInstallable(); ok {
					asset = installable.Name
				}
				current := installed[strings.ToLower(rel.FullName())]
				if current == "" {
					current = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rel.FullName(), rel.TagName, current, humanize.Time(rel.PublishedAt), asset)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) newBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups <plugin>",
		Short: "List the saved backups of a plugin, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.cfg.BackupsEnabled() {
				return errors.New("plugin backups are disabled (PLUGINSYNC_BACKUP_DIR=off)")
			}

			a, err := newApp(cmd.Context(), c.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			backups, err := a.backups.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no backups of %s\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tCREATED\tSIZE\tPATH")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Version, humanize.Time(b.CreatedAt), humanize.Bytes(uint64(b.Size)), b.Path)
			}
			return tw.Flush()
		},
	}
}

// repoURLFromArg accepts either a full repository URL or an owner/repo shorthand.
func repoURLFromArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "://") {
		return arg
	}
	return "https://github.com/" + strings.Trim(arg, "/")
}
