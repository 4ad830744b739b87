package domain

// StatusEvent is the message pushed to dashboard clients over the live
// channel whenever a job changes state or progress.
type StatusEvent struct {
	JobID     string    `json:"job_id"`
	Service   string    `json:"service,omitempty"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	LatestLog string    `json:"latest_log,omitempty"`
}
