package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

// memRepo is an in-memory JobRepository and ScheduleRepository.
type memRepo struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	schedules map[string]*domain.Schedule
}

func newMemRepo() *memRepo {
	return &memRepo{
		jobs:      make(map[string]*domain.Job),
		schedules: make(map[string]*domain.Schedule),
	}
}

func (m *memRepo) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memRepo) GetJob(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *job
	return &copied, nil
}

func (m *memRepo) Update(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memRepo) ListJobs(_ context.Context, status domain.JobStatus, offset, limit int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []*domain.Job
	for _, job := range m.jobs {
		if status != "" && job.Status != status {
			continue
		}
		copied := *job
		jobs = append(jobs, &copied)
	}
	if offset > len(jobs) {
		return nil, nil
	}
	jobs = jobs[offset:]
	if limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *memRepo) CountJobs(_ context.Context, status domain.JobStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, job := range m.jobs {
		if status == "" || job.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) ActiveJobForService(_ context.Context, service string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Service == service && !job.Status.IsTerminal() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memRepo) SaveSchedule(_ context.Context, schedule *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *schedule
	m.schedules[schedule.ID] = &copied
	return nil
}

func (m *memRepo) GetSchedule(_ context.Context, id string) (*domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	schedule, ok := m.schedules[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *schedule
	return &copied, nil
}

func (m *memRepo) ListSchedules(_ context.Context) ([]*domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var schedules []*domain.Schedule
	for _, schedule := range m.schedules {
		copied := *schedule
		schedules = append(schedules, &copied)
	}
	return schedules, nil
}

func (m *memRepo) DeleteSchedule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

// memQueue records enqueued jobs; failNext forces the next Enqueue to error.
type memQueue struct {
	mu       sync.Mutex
	jobs     []*domain.Job
	failNext bool
}

func (q *memQueue) Enqueue(_ context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext {
		q.failNext = false
		return errors.New("queue unavailable")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	q.mu.Lock()
	if len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		return job, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

// memPubSub records published events and stop signals.
type memPubSub struct {
	mu     sync.Mutex
	events []domain.StatusEvent
	stops  []string
}

func (p *memPubSub) PublishEvent(_ context.Context, event domain.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memPubSub) SubscribeEvents(ctx context.Context) (<-chan domain.StatusEvent, error) {
	ch := make(chan domain.StatusEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (p *memPubSub) PublishStop(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops = append(p.stops, jobID)
	return nil
}

func (p *memPubSub) SubscribeStop(ctx context.Context) (<-chan string, error) {
	ch := make(chan string)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (p *memPubSub) lastEvent() (domain.StatusEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return domain.StatusEvent{}, false
	}
	return p.events[len(p.events)-1], true
}

func newJobService() (*JobService, *memRepo, *memQueue, *memPubSub) {
	repo := newMemRepo()
	queue := &memQueue{}
	pubsub := &memPubSub{}
	return NewJobService(repo, queue, pubsub), repo, queue, pubsub
}

func TestStartCreatesAndEnqueuesJob(t *testing.T) {
	svc, _, queue, pubsub := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "wink-sync", job.Service)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, job.ID, queue.jobs[0].ID)

	event, ok := pubsub.lastEvent()
	require.True(t, ok)
	assert.Equal(t, job.ID, event.JobID)
	assert.Equal(t, domain.JobStatusPending, event.Status)
}

func TestStartRejectsSecondActiveJob(t *testing.T) {
	svc, _, _, _ := newJobService()

	first, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)

	second, err := svc.Start(context.Background(), "wink-sync")
	assert.ErrorIs(t, err, ErrServiceBusy)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	// A different service is unaffected.
	_, err = svc.Start(context.Background(), "other-sync")
	assert.NoError(t, err)
}

func TestStartSurvivesQueueFailure(t *testing.T) {
	svc, repo, queue, _ := newJobService()
	queue.failNext = true

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "failed to queue job")

	// The failed job is persisted and not considered active.
	stored, err := repo.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)

	_, err = svc.Start(context.Background(), "wink-sync")
	assert.NoError(t, err)
}

func TestStopRunningJob(t *testing.T) {
	svc, _, _, pubsub := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)
	_, err = svc.MarkRunning(context.Background(), job.ID)
	require.NoError(t, err)

	stopped, err := svc.Stop(context.Background(), "wink-sync", job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusStopped, stopped.Status)
	assert.NotNil(t, stopped.CompletedAt)
	assert.Contains(t, stopped.LogLines(), "Job stopped by user")

	require.Len(t, pubsub.stops, 1)
	assert.Equal(t, job.ID, pubsub.stops[0])
}

func TestStopRejectsWrongServiceOrTerminalJob(t *testing.T) {
	svc, _, _, _ := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)

	_, err = svc.Stop(context.Background(), "other-sync", job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.Stop(context.Background(), "wink-sync", "job-missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.Stop(context.Background(), "wink-sync", job.ID)
	require.NoError(t, err)
	_, err = svc.Stop(context.Background(), "wink-sync", job.ID)
	assert.ErrorIs(t, err, ErrJobNotRunning)
}

func TestProgressClampsAndLogs(t *testing.T) {
	svc, _, _, pubsub := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)

	require.NoError(t, svc.Progress(context.Background(), job.ID, 250, "halfway there"))

	current, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, current.Progress)
	assert.Contains(t, current.LogLines(), "halfway there")

	event, ok := pubsub.lastEvent()
	require.True(t, ok)
	assert.Equal(t, 100, event.Progress)
	assert.Equal(t, "halfway there", event.LatestLog)
}

func TestCompleteSetsStatsAndFullProgress(t *testing.T) {
	svc, _, _, _ := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)

	require.NoError(t, svc.Complete(context.Background(), job.ID, `{"processed":10}`))

	current, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, current.Status)
	assert.Equal(t, 100, current.Progress)
	assert.Equal(t, `{"processed":10}`, current.Stats)
}

func TestStopBeatsLateCompletion(t *testing.T) {
	svc, _, _, _ := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)

	_, err = svc.Stop(context.Background(), "wink-sync", job.ID)
	require.NoError(t, err)

	// The worker finishing after the stop must not overwrite the terminal
	// state.
	require.NoError(t, svc.Complete(context.Background(), job.ID, "{}"))
	require.NoError(t, svc.Fail(context.Background(), job.ID, "boom"))

	current, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusStopped, current.Status)
}

func TestMarkRunningRejectsStoppedJob(t *testing.T) {
	svc, _, _, _ := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)
	_, err = svc.Stop(context.Background(), "wink-sync", job.ID)
	require.NoError(t, err)

	_, err = svc.MarkRunning(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotRunning)
}

func TestLogsReturnsLinesInOrder(t *testing.T) {
	svc, _, _, _ := newJobService()

	job, err := svc.Start(context.Background(), "wink-sync")
	require.NoError(t, err)
	require.NoError(t, svc.Progress(context.Background(), job.ID, 10, "line one"))
	require.NoError(t, svc.Progress(context.Background(), job.ID, 20, "line two"))

	logs, err := svc.Logs(context.Background(), "wink-sync", job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Job created, queuing for execution...", "line one", "line two"}, logs)
}

func TestListPaginates(t *testing.T) {
	svc, _, _, _ := newJobService()

	for i := 0; i < 3; i++ {
		job, err := svc.Start(context.Background(), "wink-sync")
		require.NoError(t, err)
		_, err = svc.Stop(context.Background(), "wink-sync", job.ID)
		require.NoError(t, err)
	}

	page, err := svc.List(context.Background(), domain.JobStatusStopped, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Jobs, 2)
	assert.True(t, page.HasMore)
}
