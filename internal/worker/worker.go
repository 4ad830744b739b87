// Package worker executes queued jobs in-process: it blocking-dequeues
// pending jobs, runs the registered sync engine for the job's service, and
// streams progress back through the job service.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	redisadapter "github.com/eyewearops/syncdeck/internal/adapters/queue/redis"
	"github.com/eyewearops/syncdeck/internal/core/domain"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/core/ports"
	"github.com/eyewearops/syncdeck/internal/core/services"
)

type Worker struct {
	jobSvc *services.JobService
	queue  ports.JobQueue
	pubsub ports.EventPubSub
	dlq    *redisadapter.DeadLetterQueue

	mu      sync.RWMutex
	runners map[string]ports.SyncRunner // service id -> engine
}

func New(jobSvc *services.JobService, queue ports.JobQueue, pubsub ports.EventPubSub, dlq *redisadapter.DeadLetterQueue) *Worker {
	return &Worker{
		jobSvc:  jobSvc,
		queue:   queue,
		pubsub:  pubsub,
		dlq:     dlq,
		runners: make(map[string]ports.SyncRunner),
	}
}

// Register binds a sync engine to a service id.
func (w *Worker) Register(service string, runner ports.SyncRunner) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runners[service] = runner
}

// Run consumes the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("worker started")

	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker shutting down")
				return nil
			}
			logger.Error("dequeue failed", "error", err)
			continue
		}

		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	w.mu.RLock()
	runner, ok := w.runners[job.Service]
	w.mu.RUnlock()
	if !ok {
		w.failJob(ctx, job, fmt.Sprintf("no engine registered for service %q", job.Service))
		return
	}

	current, err := w.jobSvc.MarkRunning(ctx, job.ID)
	if err != nil {
		if err == services.ErrJobNotRunning {
			// Stopped while still queued.
			return
		}
		logger.Error("failed to mark job running", "job_id", job.ID, "error", err)
		return
	}

	// Stop signals interrupt the engine between records via cancellation.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.watchStop(jobCtx, current.ID, cancel)

	report := func(progress int, line string) {
		if err := w.jobSvc.Progress(jobCtx, current.ID, progress, line); err != nil && jobCtx.Err() == nil {
			logger.Error("failed to record progress", "job_id", current.ID, "error", err)
		}
	}

	stats, err := runner.Run(jobCtx, report)
	if err != nil {
		if jobCtx.Err() != nil && ctx.Err() == nil {
			// Stopped by the user; the stop already set the terminal state.
			logger.Info("job stopped", "job_id", current.ID)
			return
		}
		w.failJob(ctx, current, err.Error())
		return
	}

	statsJSON, _ := json.Marshal(stats)
	if err := w.jobSvc.Complete(ctx, current.ID, string(statsJSON)); err != nil {
		logger.Error("failed to complete job", "job_id", current.ID, "error", err)
	}
	logger.Info("job completed", "job_id", current.ID, "processed", stats.Processed, "errors", stats.Errors)
}

func (w *Worker) failJob(ctx context.Context, job *domain.Job, reason string) {
	if err := w.jobSvc.Fail(ctx, job.ID, reason); err != nil {
		logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	if w.dlq != nil {
		if err := w.dlq.Add(ctx, job, reason); err != nil {
			logger.Error("failed to add job to DLQ", "job_id", job.ID, "error", err)
		}
	}
}

// watchStop cancels the job context when a stop signal for this job id
// arrives.
func (w *Worker) watchStop(ctx context.Context, jobID string, cancel context.CancelFunc) {
	stops, err := w.pubsub.SubscribeStop(ctx)
	if err != nil {
		logger.Error("failed to subscribe to stop signals", "job_id", jobID, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case stopped, ok := <-stops:
			if !ok {
				return
			}
			if stopped == jobID {
				cancel()
				return
			}
		}
	}
}
