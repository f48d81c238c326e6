package domain

import "time"

// Result is the summary blob an agent returns on a successful execution,
// carried into an ExecutionRecord and appended to the task file as notes.
type Result struct {
	Summary string   `json:"summary,omitempty"`
	Notes   string   `json:"notes,omitempty"`
	Files   []string `json:"files,omitempty"`
	Tests   string   `json:"tests,omitempty"`
	Stdout  string   `json:"stdout,omitempty"`
	Stderr  string   `json:"stderr,omitempty"`
}

// ExecutionRecord is one task's entry in the run store.
type ExecutionRecord struct {
	TaskID      string     `json:"taskId"`
	ExecutionID string     `json:"executionId"`
	Status      RunStatus  `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	DurationMs  int64      `json:"durationMs,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Contract is the terminal JSON object an agent emits at the end of its
// output, the authoritative completion signal for one invocation.
type Contract struct {
	Status  ContractStatus `json:"status"`
	Summary string         `json:"summary,omitempty"`
	Notes   string         `json:"notes,omitempty"`
	Files   []string       `json:"files,omitempty"`
	Tests   string         `json:"tests,omitempty"`
}

// RecoveryVerdict is the JSON an agent returns from a recovery prompt.
type RecoveryVerdict struct {
	Status       string   `json:"status"` // "fixed" | "unfixable"
	Summary      string   `json:"summary,omitempty"`
	RootCause    string   `json:"root_cause,omitempty"`
	FilesChanged []string `json:"files_changed,omitempty"`
	NextSteps    string   `json:"next_steps,omitempty"`
}

// EpicSummaryRow is one child's contribution to an Epic's closing summary.
type EpicSummaryRow struct {
	TaskID     string
	Status     RunStatus
	DurationMs int64
}

// EpicSummary aggregates child execution records for the note appended to
// an Epic when it closes.
type EpicSummary struct {
	Rows            []EpicSummaryRow
	Earliest        *time.Time
	Latest          *time.Time
	TotalDurationMs int64
}
