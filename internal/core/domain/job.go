package domain

import (
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
)

// IsTerminal reports whether a job in this status will never transition again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	}
	return false
}

// Job is one execution instance of a service's start command. A service has
// at most one non-terminal job at a time.
type Job struct {
	ID          string     `json:"job_id" gorm:"primaryKey"`
	Service     string     `json:"service" gorm:"index"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	Logs        string     `json:"-"`        // newline-joined, append-only
	Stats       string     `json:"stats,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// AppendLog appends a log line, preserving arrival order.
func (j *Job) AppendLog(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	j.Logs += line
}

// LogLines splits the stored log text into individual entries.
func (j *Job) LogLines() []string {
	if j.Logs == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(j.Logs, "\n"), "\n")
}

// ClampProgress restricts a progress value to the [0,100] range.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
