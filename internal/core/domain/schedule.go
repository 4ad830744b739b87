package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ScheduleMode selects how a schedule's fire time is expressed.
type ScheduleMode string

const (
	// ScheduleModeFixed fires once at a literal date and time.
	ScheduleModeFixed ScheduleMode = "fixed"
	// ScheduleModeCustom fires on a recurring five-field cron expression.
	ScheduleModeCustom ScheduleMode = "custom"
)

var (
	ErrScheduleDateTimeRequired = errors.New("fixed schedule requires both date and time")
	ErrScheduleCronRequired     = errors.New("custom schedule requires a cron expression")
	ErrScheduleCronInvalid      = errors.New("cron expression must have five fields")
	ErrScheduleModeInvalid      = errors.New("schedule mode must be fixed or custom")
)

// Five whitespace-separated fields of cron vocabulary. Semantic validation
// happens when the expression is handed to the cron parser.
var cronFieldPattern = regexp.MustCompile(`^(\S+\s+){4}\S+$`)

// Schedule attaches either a literal date/time or a cron expression to a
// service. The two modes are mutually exclusive.
type Schedule struct {
	ID        string       `json:"id" gorm:"primaryKey"`
	Service   string       `json:"service" gorm:"index"`
	Mode      ScheduleMode `json:"mode"`
	Date      string       `json:"date,omitempty"` // 2006-01-02
	Time      string       `json:"time,omitempty"` // 15:04
	CronExpr  string       `json:"cron_expression,omitempty"`
	Enabled   bool         `json:"enabled"`
	LastRun   *time.Time   `json:"last_run,omitempty"`
	NextRun   *time.Time   `json:"next_run,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// Validate enforces the mode contract: fixed needs date and time, custom
// needs a five-field cron expression, and each mode clears the other's input.
func (s *Schedule) Validate() error {
	switch s.Mode {
	case ScheduleModeFixed:
		if strings.TrimSpace(s.Date) == "" || strings.TrimSpace(s.Time) == "" {
			return ErrScheduleDateTimeRequired
		}
		if _, err := s.FixedAt(); err != nil {
			return err
		}
		s.CronExpr = ""
	case ScheduleModeCustom:
		expr := strings.TrimSpace(s.CronExpr)
		if expr == "" {
			return ErrScheduleCronRequired
		}
		if !cronFieldPattern.MatchString(expr) {
			return ErrScheduleCronInvalid
		}
		s.CronExpr = expr
		s.Date = ""
		s.Time = ""
	default:
		return ErrScheduleModeInvalid
	}
	return nil
}

// FixedAt parses the literal date+time of a fixed-mode schedule.
func (s *Schedule) FixedAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.Time, time.Local)
}
