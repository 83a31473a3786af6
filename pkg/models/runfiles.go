package models

// RunResult mirrors runtime/runs/<run-id>/result.json, written by worker
// collaborators when a run finishes.
type RunResult struct {
	RunID     string   `json:"runId"`
	TicketID  string   `json:"ticketId"`
	Status    string   `json:"status"` // success, failure, running
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime,omitempty"`
	Logs      []string `json:"logs,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// JudgmentChecks holds the per-gate outcomes of a quality judgment.
type JudgmentChecks struct {
	Lint   string `json:"lint"`
	Test   string `json:"test"`
	E2E    string `json:"e2e"`
	Format string `json:"format"`
}

// Judgment mirrors runtime/runs/<run-id>/judgment.json, written by the
// quality authority collaborator.
type Judgment struct {
	Status    string         `json:"status"` // PASS, FAIL, WAIVER
	Timestamp string         `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Checks    JudgmentChecks `json:"checks"`
	Reasons   []string       `json:"reasons,omitempty"`
	WaiverID  string         `json:"waiver_id,omitempty"`
}

// Passed reports whether the judgment allows the work to proceed.
func (j *Judgment) Passed() bool {
	return j.Status == "PASS" || j.Status == "WAIVER"
}
