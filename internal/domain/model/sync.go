package model

import "time"

// SyncState is the per-repository state within a sync pass.
type SyncState string

const (
	SyncPending     SyncState = "pending"
	SyncChecking    SyncState = "checking"
	SyncUpToDate    SyncState = "up_to_date"
	SyncDownloading SyncState = "downloading"
	SyncInstalled   SyncState = "installed"
	SyncFailed      SyncState = "failed"
)

// IsTerminal reports whether s ends a repository's processing.
func (s SyncState) IsTerminal() bool {
	return s == SyncUpToDate || s == SyncInstalled || s == SyncFailed
}

// SyncScope selects the repositories a pass processes.
type SyncScope string

const (
	// ScopeAutoUpdate processes only repositories with AutoUpdate set.
	ScopeAutoUpdate SyncScope = "auto"
	// ScopeAll processes every configured repository.
	ScopeAll SyncScope = "all"
)

// RepoOutcome is the terminal result for one repository.
type RepoOutcome struct {
	RepoID   string    `json:"repo_id"`
	RepoURL  string    `json:"repo_url"`
	State    SyncState `json:"state"`
	Tag      string    `json:"tag,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// PassSummary aggregates the outcomes of one sync pass.
type PassSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Scope      SyncScope     `json:"scope"`
	Outcomes   []RepoOutcome `json:"outcomes"`
	Installed  int           `json:"installed"`
	UpToDate   int           `json:"up_to_date"`
	Failed     int           `json:"failed"`
	Canceled   bool          `json:"canceled"`
}

// Add records an outcome and updates the counters.
func (s *PassSummary) Add(o RepoOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.State {
	case SyncInstalled:
		s.Installed++
	case SyncUpToDate:
		s.UpToDate++
	case SyncFailed:
		s.Failed++
	}
}
