package models

import "time"

// RunStatus is the per-run state machine: NEVER_RAN -> {SUCCESS, PARTIAL,
// FAILED}, and any of the three again on subsequent runs.
type RunStatus string

const (
	RunNeverRan RunStatus = "NEVER_RAN"
	RunSuccess  RunStatus = "SUCCESS"
	RunPartial  RunStatus = "PARTIAL"
	RunFailed   RunStatus = "FAILED"
)

type SkippedRecord struct {
	ClaimNumber string `json:"claimNumber"`
	Reason      string `json:"reason"`
}

type RunError struct {
	ClaimNumber string `json:"claimNumber,omitempty"`
	Message     string `json:"message"`
}

// SyncRunResult is the immutable record of one complete run. It is persisted
// through the audit log and never mutated after the run ends.
type SyncRunResult struct {
	RunID       string    `json:"runId"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Duration    string    `json:"duration"`

	WindowFrom time.Time `json:"windowFrom"`
	WindowTo   time.Time `json:"windowTo"`

	TotalFetched   int `json:"totalFetched"`
	TotalProcessed int `json:"totalProcessed"`
	TotalImported  int `json:"totalImported"`
	TotalSkipped   int `json:"totalSkipped"`
	TotalErrors    int `json:"totalErrors"`

	ImportedIDs []string        `json:"importedIds,omitempty"`
	Skipped     []SkippedRecord `json:"skipped,omitempty"`
	Errors      []RunError      `json:"errors,omitempty"`

	Status RunStatus `json:"status"`
}

// SyncStats accumulates across runs for the lifetime of the service.
type SyncStats struct {
	TotalRuns       int `json:"totalRuns"`
	TotalImported   int `json:"totalImported"`
	TotalSkipped    int `json:"totalSkipped"`
	TotalErrors     int `json:"totalErrors"`
	ConsecutiveFail int `json:"consecutiveFailures"`
}

// IntegrationStatus is the single running aggregate read by the control
// plane. The orchestrator mutates it after each run.
type IntegrationStatus struct {
	Connected       bool       `json:"connected"`
	LastSyncAt      *time.Time `json:"lastSyncAt,omitempty"`
	LastSyncStatus  RunStatus  `json:"lastSyncStatus"`
	LastError       string     `json:"lastError,omitempty"`
	Stats           SyncStats  `json:"stats"`
	NextScheduledAt *time.Time `json:"nextScheduledAt,omitempty"`
}

// SyncConfig is the orchestrator-owned configuration surface exposed to the
// control plane.
type SyncConfig struct {
	Enabled         bool     `json:"enabled" mapstructure:"enabled"`
	IntervalMinutes int      `json:"intervalMinutes" mapstructure:"intervalMinutes"`
	LookbackDays    int      `json:"lookbackDays" mapstructure:"lookbackDays"`
	Statuses        []string `json:"statuses" mapstructure:"statuses"`
	NotifyTarget    string   `json:"notifyTarget,omitempty" mapstructure:"notifyTarget"`
}
