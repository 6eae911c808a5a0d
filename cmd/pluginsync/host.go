package main

import (
	"log/slog"
	"sync"

	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Host = (*logHost)(nil)

// logHost stands in for the process that loads the plugins. It logs restart
// notices and, when a restart func is set, hands an immediate restart to it.
type logHost struct {
	restart func()

	mu      sync.Mutex
	pending bool
}

// NotifyPendingRestart logs the first notice of a pending restart.
func (h *logHost) NotifyPendingRestart() {
	h.mu.Lock()
	first := !h.pending
	h.pending = true
	h.mu.Unlock()

	if first {
		slog.Warn("installed plugins take effect after the host restarts")
	}
}

// Restart requests an immediate restart.
func (h *logHost) Restart() {
	if h.restart == nil {
		slog.Warn("host restart requested but not supported in this mode; restart manually")
		h.NotifyPendingRestart()
		return
	}
	slog.Info("host restart requested")
	h.restart()
}

// Pending reports whether a restart notice was received.
func (h *logHost) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}
