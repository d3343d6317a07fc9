package jobrun

const ActivityRun = "job_run_execute"

// RunResult is the ledger state observed after the activity finished.
type RunResult struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"`
	Progress     int    `json:"progress,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
