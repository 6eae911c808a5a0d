package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

func TestRepoURLFromArg(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{arg: "owner/repo", want: "https://github.com/owner/repo"},
		{arg: " /owner/repo/ ", want: "https://github.com/owner/repo"},
		{arg: "https://github.com/owner/repo", want: "https://github.com/owner/repo"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want, repoURLFromArg(tt.arg))
		})
	}
}

func TestProgressPrinter_PrintsIncreasingWholePercents(t *testing.T) {
	var buf bytes.Buffer
	progress := newProgressPrinter(&buf)

	for _, f := range []float64{0, 0.004, 0.25, 0.2, 0.5, 1.7} {
		progress(f)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"progress   0%", "progress  25%", "progress  50%", "progress 100%"}, lines)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	summary := model.PassSummary{Scope: model.ScopeAll}
	summary.Add(model.RepoOutcome{RepoURL: "https://github.com/a/one", State: model.SyncInstalled, Tag: "v1.2.0"})
	summary.Add(model.RepoOutcome{RepoURL: "https://github.com/a/two", State: model.SyncFailed, Error: "boom"})

	printSummary(&buf, summary)

	out := buf.String()
	assert.Contains(t, out, "https://github.com/a/one v1.2.0")
	assert.Contains(t, out, "https://github.com/a/two: boom")
	assert.Contains(t, out, "sync complete: 1 installed, 0 up to date, 1 failed")
}

func TestLogHost(t *testing.T) {
	h := &logHost{}
	assert.False(t, h.Pending())

	h.Restart()
	assert.True(t, h.Pending(), "restart without a handler leaves a pending notice")

	restarted := 0
	h = &logHost{restart: func() { restarted++ }}
	h.Restart()
	assert.Equal(t, 1, restarted)
	assert.False(t, h.Pending())
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "sync", "validate", "releases", "backups"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	assert.NotNil(t, syncCmd.Flags().Lookup("all"))
}
