package ports

import (
	"context"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	ListJobs(ctx context.Context, status domain.JobStatus, offset, limit int) ([]*domain.Job, error)
	CountJobs(ctx context.Context, status domain.JobStatus) (int64, error)
	ActiveJobForService(ctx context.Context, service string) (*domain.Job, error)
}

type ScheduleRepository interface {
	SaveSchedule(ctx context.Context, schedule *domain.Schedule) error
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	ListSchedules(ctx context.Context) ([]*domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.Job) error
	Dequeue(ctx context.Context) (*domain.Job, error) // Blocking wait
}

type EventPubSub interface {
	PublishEvent(ctx context.Context, event domain.StatusEvent) error
	SubscribeEvents(ctx context.Context) (<-chan domain.StatusEvent, error)
	PublishStop(ctx context.Context, jobID string) error
	SubscribeStop(ctx context.Context) (<-chan string, error)
}

// SyncRunner executes one pass of a service's sync engine. Progress and log
// lines are reported through the callback as records are processed.
type SyncRunner interface {
	Run(ctx context.Context, report func(progress int, line string)) (*domain.SyncStats, error)
}
