package model

import "time"

// RunOutcome is the aggregate result of one pipeline run.
type RunOutcome string

const (
	// OutcomeSuccess means every stage completed with zero item failures.
	OutcomeSuccess RunOutcome = "success"
	// OutcomePartialFailure means the run completed but some items failed
	// and remain pending for a future re-run.
	OutcomePartialFailure RunOutcome = "partial_failure"
	// OutcomeAborted means a prerequisite check failed and the remaining
	// stages were not attempted.
	OutcomeAborted RunOutcome = "aborted"
)

// StageResult holds the per-item counts for one stage execution.
// Skipped counts items that were already complete; items outside the
// stage's selector are not counted at all.
type StageResult struct {
	Name      string `json:"name"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Duration  int64  `json:"duration_ms"`
}

// RunResult is the final report of a pipeline run, surfaced to the caller.
type RunResult struct {
	RunID      string        `json:"run_id"`
	BillID     string        `json:"bill_id"`
	Outcome    RunOutcome    `json:"outcome"`
	Stages     []StageResult `json:"stages"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// TotalFailed sums item failures across all stages.
func (r *RunResult) TotalFailed() int {
	var n int
	for _, s := range r.Stages {
		n += s.Failed
	}
	return n
}
