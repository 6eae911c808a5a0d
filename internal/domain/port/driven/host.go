package driven

// Host is the process hosting the installed plugins.
type Host interface {
	// NotifyPendingRestart records that installed plugins take effect after a restart.
	NotifyPendingRestart()
	// Restart requests an immediate restart.
	Restart()
}
