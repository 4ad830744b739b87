package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/eyewearops/syncdeck/internal/core/domain"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/core/ports"
)

// Standard five-field cron vocabulary, the same grammar the dashboard's
// custom mode accepts.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ScheduleService persists schedules and fires due ones by starting jobs
// through the JobService. Custom-mode schedules run on a cron runner; fixed
// date/time schedules are one-shot and get disabled after firing.
type ScheduleService struct {
	repo   ports.ScheduleRepository
	jobSvc *JobService
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID // schedule ID -> cron entry
}

func NewScheduleService(repo ports.ScheduleRepository, jobSvc *JobService) *ScheduleService {
	return &ScheduleService{
		repo:    repo,
		jobSvc:  jobSvc,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Create validates the schedule, computes its next-run label locally and
// persists it. The local label mirrors what the dashboard shows; the actual
// fire time comes from the same computation, so the two cannot diverge here.
func (s *ScheduleService) Create(ctx context.Context, schedule *domain.Schedule) (*domain.Schedule, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	schedule.ID = fmt.Sprintf("schedule-%s", uuid.New().String()[:8])
	schedule.Enabled = true
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = time.Now()

	next, err := s.nextRun(schedule, time.Now())
	if err != nil {
		return nil, err
	}
	schedule.NextRun = &next

	if err := s.repo.SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}

	s.register(schedule)
	return schedule, nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	return s.repo.GetSchedule(ctx, id)
}

func (s *ScheduleService) List(ctx context.Context) ([]*domain.Schedule, error) {
	return s.repo.ListSchedules(ctx)
}

// SetEnabled toggles a schedule, registering or removing its cron entry.
func (s *ScheduleService) SetEnabled(ctx context.Context, id string, enabled bool) (*domain.Schedule, error) {
	schedule, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.Enabled = enabled
	schedule.UpdatedAt = time.Now()
	if err := s.repo.SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}

	if enabled {
		s.register(schedule)
	} else {
		s.unregister(schedule.ID)
	}
	return schedule, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	s.unregister(id)
	return s.repo.DeleteSchedule(ctx, id)
}

// Start loads persisted schedules, registers the enabled ones and starts the
// runners. The fixed-mode loop wakes every 30 seconds.
func (s *ScheduleService) Start(ctx context.Context) error {
	schedules, err := s.repo.ListSchedules(ctx)
	if err != nil {
		return err
	}
	for _, schedule := range schedules {
		if schedule.Enabled {
			s.register(schedule)
		}
	}

	s.cron.Start()
	go s.runFixedLoop(ctx)
	return nil
}

// Stop halts the cron runner, waiting for in-flight fires.
func (s *ScheduleService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *ScheduleService) register(schedule *domain.Schedule) {
	if schedule.Mode != domain.ScheduleModeCustom {
		return // fixed schedules are handled by the timer loop
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[schedule.ID]; ok {
		s.cron.Remove(id)
	}

	scheduleID, service := schedule.ID, schedule.Service
	entryID, err := s.cron.AddFunc(schedule.CronExpr, func() {
		s.fire(scheduleID, service)
	})
	if err != nil {
		logger.Error("failed to register schedule", "schedule_id", schedule.ID, "error", err)
		return
	}
	s.entries[schedule.ID] = entryID
}

func (s *ScheduleService) unregister(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(id)
		delete(s.entries, scheduleID)
	}
}

// fire starts a job for the schedule's service and rolls the bookkeeping
// forward. A busy service is skipped, not queued behind itself.
func (s *ScheduleService) fire(scheduleID, service string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.jobSvc.Start(ctx, service); err != nil {
		if err == ErrServiceBusy {
			logger.Warn("scheduled run skipped, service busy", "schedule_id", scheduleID, "service", service)
		} else {
			logger.Error("scheduled run failed to start", "schedule_id", scheduleID, "error", err)
		}
	}

	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return
	}
	now := time.Now()
	schedule.LastRun = &now
	if next, err := s.nextRun(schedule, now); err == nil {
		schedule.NextRun = &next
	}
	schedule.UpdatedAt = now
	if err := s.repo.SaveSchedule(ctx, schedule); err != nil {
		logger.Error("failed to update schedule after fire", "schedule_id", scheduleID, "error", err)
	}
}

// runFixedLoop fires one-shot fixed-mode schedules when their literal time
// passes, then disables them.
func (s *ScheduleService) runFixedLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			schedules, err := s.repo.ListSchedules(ctx)
			if err != nil {
				logger.Error("failed to list schedules", "error", err)
				continue
			}
			now := time.Now()
			for _, schedule := range schedules {
				if !schedule.Enabled || schedule.Mode != domain.ScheduleModeFixed {
					continue
				}
				at, err := schedule.FixedAt()
				if err != nil || at.After(now) {
					continue
				}
				s.fire(schedule.ID, schedule.Service)
				if _, err := s.SetEnabled(ctx, schedule.ID, false); err != nil {
					logger.Error("failed to disable one-shot schedule", "schedule_id", schedule.ID, "error", err)
				}
			}
		}
	}
}

func (s *ScheduleService) nextRun(schedule *domain.Schedule, from time.Time) (time.Time, error) {
	switch schedule.Mode {
	case domain.ScheduleModeFixed:
		return schedule.FixedAt()
	case domain.ScheduleModeCustom:
		sched, err := cronParser.Parse(schedule.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", schedule.CronExpr, err)
		}
		return sched.Next(from), nil
	}
	return time.Time{}, domain.ErrScheduleModeInvalid
}

// NextRunLabel renders the human-readable "next run" text the dashboard
// shows after saving a schedule.
func NextRunLabel(schedule *domain.Schedule) string {
	if schedule.Mode == domain.ScheduleModeFixed {
		return schedule.Date + " " + schedule.Time
	}
	return schedule.CronExpr
}
