package dashclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

func TestApplyMatchesTrackedJob(t *testing.T) {
	view := NewView("wink-sync")
	view.Track("wink-sync", "job-1", domain.JobStatusPending)

	applied := view.Apply(domain.StatusEvent{
		JobID:    "job-1",
		Status:   domain.JobStatusRunning,
		Progress: 40,
	})
	assert.True(t, applied)

	row, ok := view.Row("wink-sync")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusRunning, row.Status)
	assert.Equal(t, 40, row.Progress)
	assert.Equal(t, "job-1", row.JobID)
}

func TestApplyDropsUnmatchedEvents(t *testing.T) {
	view := NewView("wink-sync")
	view.Track("wink-sync", "job-2", domain.JobStatusRunning)

	// A stale event from a previous run must not touch the row.
	applied := view.Apply(domain.StatusEvent{
		JobID:    "job-1",
		Status:   domain.JobStatusFailed,
		Progress: 10,
	})
	assert.False(t, applied)

	row, _ := view.Row("wink-sync")
	assert.Equal(t, domain.JobStatusRunning, row.Status)
	assert.Equal(t, "job-2", row.JobID)
}

func TestApplyWithNothingTracked(t *testing.T) {
	view := NewView("wink-sync")
	assert.False(t, view.Apply(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusRunning}))
}

func TestApplyClampsProgress(t *testing.T) {
	view := NewView("wink-sync")
	view.Track("wink-sync", "job-1", domain.JobStatusRunning)

	view.Apply(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusRunning, Progress: 400})
	row, _ := view.Row("wink-sync")
	assert.Equal(t, 100, row.Progress)

	view.Apply(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusRunning, Progress: -5})
	row, _ = view.Row("wink-sync")
	assert.Equal(t, 0, row.Progress)
}

func TestTerminalEventReleasesJobID(t *testing.T) {
	view := NewView("wink-sync")
	view.Track("wink-sync", "job-1", domain.JobStatusRunning)

	view.Apply(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusCompleted, Progress: 100})

	row, _ := view.Row("wink-sync")
	assert.Equal(t, domain.JobStatusCompleted, row.Status)
	assert.Empty(t, row.JobID)

	// A duplicate terminal event no longer matches anything.
	assert.False(t, view.Apply(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusCompleted}))
}

func TestTrackResetsRow(t *testing.T) {
	view := NewView("wink-sync")
	view.Track("wink-sync", "job-1", domain.JobStatusRunning)
	view.Apply(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusRunning, Progress: 80})
	view.SetNotice("wink-sync", "stale")

	view.Track("wink-sync", "job-2", domain.JobStatusPending)

	row, _ := view.Row("wink-sync")
	assert.Equal(t, "job-2", row.JobID)
	assert.Equal(t, 0, row.Progress)
	assert.Empty(t, row.Notice)
}

func TestViewCreatesRowsOnDemand(t *testing.T) {
	view := NewView()
	view.Track("new-service", "job-9", domain.JobStatusPending)
	assert.Equal(t, "job-9", view.JobID("new-service"))

	_, ok := view.Row("unknown")
	assert.False(t, ok)
	assert.Empty(t, view.JobID("unknown"))
}
