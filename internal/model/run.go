package model

import "time"

// RunStatus is the terminal state of one adapter run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusEmpty     RunStatus = "empty"
)

// RunRecord describes one pagination pass of the orchestrator over a single source.
type RunRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	Listings   int       `json:"listings"`
	Skipped    int       `json:"skipped"`
	Status     RunStatus `json:"status"`
	StopReason string    `json:"stop_reason"`
	Error      string    `json:"error,omitempty"`
}

// Successful reports whether the run produced listings without an unrecovered error.
func (r *RunRecord) Successful() bool {
	return r.Status == RunStatusCompleted && r.Listings > 0
}

// RunStats holds cumulative orchestrator counters.
type RunStats struct {
	TotalRuns       int                  `json:"total_runs"`
	SuccessfulRuns  int                  `json:"successful_runs"`
	PerSourceCounts map[string]int       `json:"per_source_counts"`
	LastRunBySource map[string]time.Time `json:"last_run_by_source"`
	StartedAt       time.Time            `json:"started_at"`
	LastRunAt       time.Time            `json:"last_run_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}
