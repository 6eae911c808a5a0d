package model

import "time"

// ActivityKind is the terminal outcome an activity entry records.
type ActivityKind string

const (
	ActivityUpToDate   ActivityKind = "up_to_date"
	ActivityInstalled  ActivityKind = "installed"
	ActivityFailed     ActivityKind = "failed"
	ActivityAuthFailed ActivityKind = "auth_failed"
	ActivityNotFound   ActivityKind = "not_found"
)

// Severity of an activity entry.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ActivityEntry is a human-readable record of a sync outcome.
type ActivityEntry struct {
	ID         int64        `json:"id"`
	RepoID     string       `json:"repo_id"`
	Title      string       `json:"title"`
	Summary    string       `json:"summary"`
	Detail     string       `json:"detail,omitempty"`
	DetailHTML string       `json:"detail_html,omitempty"`
	Kind       ActivityKind `json:"kind"`
	Severity   Severity     `json:"severity"`
	CreatedAt  time.Time    `json:"created_at"`
}
