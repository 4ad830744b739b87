// Package http exposes the dashboard-facing REST and WebSocket surface.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	redis_adapter "github.com/eyewearops/syncdeck/internal/adapters/queue/redis"
	"github.com/eyewearops/syncdeck/internal/core/domain"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/core/services"
	"github.com/eyewearops/syncdeck/internal/core/utils"
)

type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	jobSvc      *services.JobService
	scheduleSvc *services.ScheduleService
	healthSvc   *services.HealthService
	hub         *Hub
	dlq         *redis_adapter.DeadLetterQueue
}

func NewServer(port string, jobSvc *services.JobService, scheduleSvc *services.ScheduleService, healthSvc *services.HealthService, hub *Hub, dlq *redis_adapter.DeadLetterQueue) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		jobSvc:      jobSvc,
		scheduleSvc: scheduleSvc,
		healthSvc:   healthSvc,
		hub:         hub,
		dlq:         dlq,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/metrics", MetricsHandler())

	s.router.Get("/ws/logs", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.hub, w, r)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/services/{service}", func(r chi.Router) {
			r.Post("/start", s.handleStartJob)
			r.Post("/stop/{jobID}", s.handleStopJob)
			r.Get("/logs/{jobID}", s.handleJobLogs)
			r.Get("/status/{jobID}", s.handleJobStatus)
			r.Post("/schedule", s.handleCreateSchedule)
		})
		r.Get("/jobs", s.handleListJobs)
		r.Route("/dlq", func(r chi.Router) {
			r.Get("/", s.handleListDLQ)
			r.Delete("/{jobID}", s.handleRemoveDLQ)
		})
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.handleListSchedules)
			r.Post("/{scheduleID}/enable", s.handleEnableSchedule)
			r.Post("/{scheduleID}/disable", s.handleDisableSchedule)
			r.Delete("/{scheduleID}", s.handleDeleteSchedule)
		})
	})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	job, err := s.jobSvc.Start(r.Context(), service)
	if err != nil {
		if errors.Is(err, services.ErrServiceBusy) {
			utils.RespondJSON(w, http.StatusConflict, map[string]any{
				"error":  "service already has an active job",
				"job_id": job.ID,
				"status": job.Status,
			})
			return
		}
		logger.Error("failed to start job", "service", service, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	RecordJobStarted()
	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"job_id":  job.ID,
		"status":  job.Status,
		"service": job.Service,
	})
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	jobID := chi.URLParam(r, "jobID")

	job, err := s.jobSvc.Stop(r.Context(), service, jobID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrJobNotFound):
			utils.RespondError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, services.ErrJobNotRunning):
			utils.RespondError(w, http.StatusConflict, "job already finished")
		default:
			logger.Error("failed to stop job", "job_id", jobID, "error", err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to stop job")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	jobID := chi.URLParam(r, "jobID")

	logs, err := s.jobSvc.Logs(r.Context(), service, jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.RespondError(w, http.StatusNotFound, "job not found")
			return
		}
		logger.Error("failed to fetch job logs", "job_id", jobID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch logs")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"logs":   logs,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	jobID := chi.URLParam(r, "jobID")

	job, err := s.jobSvc.Get(r.Context(), jobID)
	if err != nil || job.Service != service {
		utils.RespondError(w, http.StatusNotFound, "job not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	offset := utils.QueryInt(r, "offset", 0)
	limit := utils.QueryInt(r, "limit", 20)

	page, err := s.jobSvc.List(r.Context(), status, offset, limit)
	if err != nil {
		logger.Error("failed to list jobs", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	utils.RespondJSON(w, http.StatusOK, page)
}

type scheduleRequest struct {
	Mode     string `json:"mode"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	CronExpr string `json:"cron_expression"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schedule := &domain.Schedule{
		Service:  service,
		Mode:     domain.ScheduleMode(req.Mode),
		Date:     req.Date,
		Time:     req.Time,
		CronExpr: req.CronExpr,
	}

	created, err := s.scheduleSvc.Create(r.Context(), schedule)
	if err != nil {
		if isScheduleValidationError(err) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("failed to create schedule", "service", service, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"schedule_id": created.ID,
		"scheduled":   true,
		"next_run":    services.NextRunLabel(created),
		"schedule":    created,
	})
}

func isScheduleValidationError(err error) bool {
	return errors.Is(err, domain.ErrScheduleDateTimeRequired) ||
		errors.Is(err, domain.ErrScheduleCronRequired) ||
		errors.Is(err, domain.ErrScheduleCronInvalid) ||
		errors.Is(err, domain.ErrScheduleModeInvalid)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.scheduleSvc.List(r.Context())
	if err != nil {
		logger.Error("failed to list schedules", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []*domain.Schedule{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (s *Server) handleEnableSchedule(w http.ResponseWriter, r *http.Request) {
	s.toggleSchedule(w, r, true)
}

func (s *Server) handleDisableSchedule(w http.ResponseWriter, r *http.Request) {
	s.toggleSchedule(w, r, false)
}

func (s *Server) toggleSchedule(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "scheduleID")

	schedule, err := s.scheduleSvc.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "schedule not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scheduleID")

	if err := s.scheduleSvc.Delete(r.Context(), id); err != nil {
		logger.Error("failed to delete schedule", "schedule_id", id, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	if s.dlq == nil {
		utils.RespondError(w, http.StatusNotFound, "dead letter queue not configured")
		return
	}

	offset := int64(utils.QueryInt(r, "offset", 0))
	limit := int64(utils.QueryInt(r, "limit", 20))

	entries, err := s.dlq.List(r.Context(), offset, limit)
	if err != nil {
		logger.Error("failed to list DLQ", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list dead letter queue")
		return
	}
	total, err := s.dlq.Count(r.Context())
	if err != nil {
		logger.Error("failed to count DLQ", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to count dead letter queue")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}

func (s *Server) handleRemoveDLQ(w http.ResponseWriter, r *http.Request) {
	if s.dlq == nil {
		utils.RespondError(w, http.StatusNotFound, "dead letter queue not configured")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if err := s.dlq.Remove(r.Context(), jobID); err != nil {
		logger.Error("failed to remove DLQ entry", "job_id", jobID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to remove dead letter entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	utils.RespondJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())
	code := http.StatusOK
	if report.Status == services.HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	utils.RespondJSON(w, code, report)
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
