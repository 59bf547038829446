package domain

import "time"

// SyncStatus enumerates the lifecycle states of a sync job.
type SyncStatus string

const (
	SyncIdle       SyncStatus = "idle"
	SyncInProgress SyncStatus = "in_progress"
	SyncCancelling SyncStatus = "cancelling"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
	SyncCancelled  SyncStatus = "cancelled"
)

// IsTerminal returns true when the status is a final state.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncCompleted || s == SyncFailed || s == SyncCancelled
}

// SyncSummary holds the counts and errors accumulated by one sync run.
// A run always produces a summary, even on partial failure.
type SyncSummary struct {
	AudiencesCreated int      `json:"audiences_created"`
	AudiencesUpdated int      `json:"audiences_updated"`
	WindowsStored    int      `json:"windows_stored"`
	Errors           []string `json:"errors"`
}

// SyncJobStatus is the externally visible view of a sync job. Jobs are
// process-scoped and never persisted; at most one non-terminal job exists
// per account at any time.
type SyncJobStatus struct {
	Status     SyncStatus   `json:"status"`
	Message    string       `json:"message,omitempty"`
	DatePreset string       `json:"date_preset,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Summary    *SyncSummary `json:"summary,omitempty"`
}
