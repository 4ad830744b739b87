// Package dashclient is the Go client for the syncdeck dashboard backend:
// REST calls for the service buttons, a local view of per-service state, and
// a WebSocket listener that reconciles pushed status events into that view.
package dashclient

import (
	"sync"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

// Row is the dashboard's per-service display state.
type Row struct {
	Service  string
	JobID    string // active job, empty when nothing is tracked
	Status   domain.JobStatus
	Progress int
	Notice   string // transient operator-facing note, e.g. degraded start
}

// View holds one Row per service and reconciles pushed events into them.
// Events are matched strictly by job id; an event for a job the view is not
// tracking is dropped, which is what makes stale events from a previous run
// harmless.
type View struct {
	mu   sync.RWMutex
	rows map[string]*Row
}

func NewView(services ...string) *View {
	v := &View{rows: make(map[string]*Row)}
	for _, svc := range services {
		v.rows[svc] = &Row{Service: svc}
	}
	return v
}

// Track records a started job id for a service and resets its row.
func (v *View) Track(service, jobID string, status domain.JobStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	row := v.row(service)
	row.JobID = jobID
	row.Status = status
	row.Progress = 0
	row.Notice = ""
}

// SetNotice attaches an operator-facing note to a service row.
func (v *View) SetNotice(service, notice string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.row(service).Notice = notice
}

// Clear drops the active job for a service and marks it with the given
// status.
func (v *View) Clear(service string, status domain.JobStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	row := v.row(service)
	row.JobID = ""
	row.Status = status
}

// Apply reconciles one pushed event. It reports whether the event matched a
// tracked job; unmatched events are dropped without touching any row.
func (v *View) Apply(event domain.StatusEvent) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, row := range v.rows {
		if row.JobID == "" || row.JobID != event.JobID {
			continue
		}
		row.Status = event.Status
		row.Progress = domain.ClampProgress(event.Progress)
		if event.Status.IsTerminal() {
			// The run is over; later events for this id no longer apply.
			row.JobID = ""
		}
		return true
	}
	return false
}

// Row returns a copy of the display state for a service.
func (v *View) Row(service string) (Row, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	row, ok := v.rows[service]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// JobID returns the tracked active job for a service, if any.
func (v *View) JobID(service string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if row, ok := v.rows[service]; ok {
		return row.JobID
	}
	return ""
}

// row returns the service's row, creating it for services the view was not
// seeded with.
func (v *View) row(service string) *Row {
	if r, ok := v.rows[service]; ok {
		return r
	}
	r := &Row{Service: service}
	v.rows[service] = r
	return r
}
