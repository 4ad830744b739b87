package pg

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

// Repository implements both the job and schedule repository ports on a
// single Postgres connection.
type Repository struct {
	db *gorm.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&domain.Job{}, &domain.Schedule{}); err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Job methods

func (r *Repository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *Repository) Update(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *Repository) ListJobs(ctx context.Context, status domain.JobStatus, offset, limit int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	q := r.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repository) CountJobs(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&domain.Job{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ActiveJobForService returns the service's current non-terminal job, or nil
// when no job is active.
func (r *Repository) ActiveJobForService(ctx context.Context, service string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).
		Where("service = ? AND status IN ?", service, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRunning}).
		Order("created_at desc").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Schedule methods

func (r *Repository) SaveSchedule(ctx context.Context, schedule *domain.Schedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}

func (r *Repository) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	var schedule domain.Schedule
	if err := r.db.WithContext(ctx).First(&schedule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *Repository) ListSchedules(ctx context.Context) ([]*domain.Schedule, error) {
	var schedules []*domain.Schedule
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *Repository) DeleteSchedule(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Schedule{}, "id = ?", id).Error
}

// DB returns the underlying gorm DB instance for health checks.
func (r *Repository) DB() *gorm.DB {
	return r.db
}
