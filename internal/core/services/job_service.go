package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eyewearops/syncdeck/internal/core/domain"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/core/ports"
)

var (
	ErrServiceBusy   = errors.New("service already has an active job")
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotRunning = errors.New("job is not running")
)

type JobService struct {
	jobRepo ports.JobRepository
	queue   ports.JobQueue
	pubsub  ports.EventPubSub
}

func NewJobService(jobRepo ports.JobRepository, queue ports.JobQueue, pubsub ports.EventPubSub) *JobService {
	return &JobService{
		jobRepo: jobRepo,
		queue:   queue,
		pubsub:  pubsub,
	}
}

// Start creates a pending job for the service and enqueues it. A service can
// have at most one active job; a duplicate start is rejected. Queue failures
// are downgraded: the job row survives marked failed so the caller still gets
// a job id and an error note instead of a hard 5xx.
func (s *JobService) Start(ctx context.Context, service string) (*domain.Job, error) {
	active, err := s.jobRepo.ActiveJobForService(ctx, service)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, ErrServiceBusy
	}

	job := &domain.Job{
		ID:        fmt.Sprintf("job-%s", uuid.New().String()),
		Service:   service,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	job.AppendLog("Job created, queuing for execution...")

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		logger.Error("failed to enqueue job", "job_id", job.ID, "error", err)
		job.Status = domain.JobStatusFailed
		job.Error = fmt.Sprintf("failed to queue job: %v", err)
		job.AppendLog(job.Error)
		job.UpdatedAt = time.Now()
		if uerr := s.jobRepo.Update(ctx, job); uerr != nil {
			return nil, uerr
		}
		s.publish(ctx, job, "")
		return job, nil
	}

	s.publish(ctx, job, "")
	return job, nil
}

// Stop marks a running or pending job as stopped and signals the worker.
// The explicit stop is the only terminal state a caller may set; everything
// else is driven by the worker.
func (s *JobService) Stop(ctx context.Context, service, jobID string) (*domain.Job, error) {
	job, err := s.getForService(ctx, service, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return nil, ErrJobNotRunning
	}

	now := time.Now()
	job.Status = domain.JobStatusStopped
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.AppendLog("Job stopped by user")

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}

	if err := s.pubsub.PublishStop(ctx, job.ID); err != nil {
		logger.Error("failed to publish stop signal", "job_id", job.ID, "error", err)
	}
	s.publish(ctx, job, "Job stopped by user")

	return job, nil
}

// Logs returns the job's log entries in arrival order.
func (s *JobService) Logs(ctx context.Context, service, jobID string) ([]string, error) {
	job, err := s.getForService(ctx, service, jobID)
	if err != nil {
		return nil, err
	}
	return job.LogLines(), nil
}

func (s *JobService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobRepo.GetJob(ctx, jobID)
	if err != nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// PaginatedJobs represents a paginated list of jobs with metadata
type PaginatedJobs struct {
	Jobs    []*domain.Job `json:"jobs"`
	Total   int64         `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"has_more"`
}

func (s *JobService) List(ctx context.Context, status domain.JobStatus, offset, limit int) (*PaginatedJobs, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	jobs, err := s.jobRepo.ListJobs(ctx, status, offset, limit)
	if err != nil {
		return nil, err
	}

	total, err := s.jobRepo.CountJobs(ctx, status)
	if err != nil {
		return nil, err
	}

	return &PaginatedJobs{
		Jobs:    jobs,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+len(jobs) < int(total),
	}, nil
}

// MarkRunning transitions a dequeued job to running.
func (s *JobService) MarkRunning(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		// Stopped while still queued; nothing to run.
		return nil, ErrJobNotRunning
	}

	now := time.Now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}
	s.publish(ctx, job, "")
	return job, nil
}

// Progress records clamped progress plus an optional log line and pushes the
// update to subscribers.
func (s *JobService) Progress(ctx context.Context, jobID string, progress int, line string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = domain.ClampProgress(progress)
	if line != "" {
		job.AppendLog(line)
	}
	job.UpdatedAt = time.Now()

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return err
	}
	s.publish(ctx, job, line)
	return nil
}

// Complete marks a job finished with its final stats.
func (s *JobService) Complete(ctx context.Context, jobID string, stats string) error {
	return s.finish(ctx, jobID, domain.JobStatusCompleted, stats, "")
}

// Fail marks a job failed with an error message.
func (s *JobService) Fail(ctx context.Context, jobID string, errMsg string) error {
	return s.finish(ctx, jobID, domain.JobStatusFailed, "", errMsg)
}

func (s *JobService) finish(ctx context.Context, jobID string, status domain.JobStatus, stats, errMsg string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		// A stop raced the worker's completion; the terminal state wins.
		return nil
	}

	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	job.UpdatedAt = now
	if status == domain.JobStatusCompleted {
		job.Progress = 100
		job.Stats = stats
		job.AppendLog("Job completed")
	} else {
		job.Error = errMsg
		job.AppendLog(fmt.Sprintf("Job failed: %s", errMsg))
	}

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return err
	}
	s.publish(ctx, job, "")
	return nil
}

func (s *JobService) getForService(ctx context.Context, service, jobID string) (*domain.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Service != service {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *JobService) publish(ctx context.Context, job *domain.Job, latestLog string) {
	event := domain.StatusEvent{
		JobID:     job.ID,
		Service:   job.Service,
		Status:    job.Status,
		Progress:  domain.ClampProgress(job.Progress),
		LatestLog: latestLog,
	}
	if err := s.pubsub.PublishEvent(ctx, event); err != nil {
		logger.Error("failed to publish status event", "job_id", job.ID, "error", err)
	}
}
