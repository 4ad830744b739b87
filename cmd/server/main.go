package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_handler "github.com/eyewearops/syncdeck/internal/adapters/handler/http"
	"github.com/eyewearops/syncdeck/internal/adapters/handler/mqtt"
	redis_adapter "github.com/eyewearops/syncdeck/internal/adapters/queue/redis"
	"github.com/eyewearops/syncdeck/internal/adapters/repository/pg"
	"github.com/eyewearops/syncdeck/internal/config"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/core/services"
	"github.com/eyewearops/syncdeck/internal/core/tracing"
	"github.com/eyewearops/syncdeck/internal/nocodb"
	"github.com/eyewearops/syncdeck/internal/syncer"
	"github.com/eyewearops/syncdeck/internal/wink"
	"github.com/eyewearops/syncdeck/internal/worker"
)

const version = "0.1.0"

// WinkSyncService is the service id the dashboard's sync button maps to.
const WinkSyncService = "wink-sync"

func main() {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting syncdeck server", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	var shutdownTracing func(context.Context) error
	if cfg.EnableTracing {
		shutdownTracing, err = tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	// Adapters
	repo, err := pg.NewRepository(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to init postgres", "error", err)
		log.Fatalf("failed to init postgres: %v", err)
	}

	queue, pubsub, redisClient, err := redis_adapter.NewRedisAdapter(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to init redis", "error", err)
		log.Fatalf("failed to init redis: %v", err)
	}

	// Domain services
	jobService := services.NewJobService(repo, queue, pubsub)
	scheduleService := services.NewScheduleService(repo, jobService)
	healthService := services.NewHealthService(repo.DB(), redisClient, version)

	// WebSocket hub
	hub := http_handler.NewHub(pubsub)
	go hub.Run()
	go hub.EventConsumer(ctx)

	// Optional MQTT event bridge
	if cfg.EnableMQTT && cfg.MQTTBrokerURL != "" {
		publisher, err := mqtt.NewPublisher(cfg.MQTTBrokerURL, cfg.ServiceName, pubsub)
		if err != nil {
			logger.Error("Failed to init MQTT publisher", "error", err)
		} else {
			go publisher.Run(ctx)
			defer publisher.Close()
			logger.Info("MQTT event bridge started", "broker", cfg.MQTTBrokerURL)
		}
	}

	// Worker with the wink-sync engine
	dlq := redis_adapter.NewDeadLetterQueue(redisClient)
	w := worker.New(jobService, queue, pubsub, dlq)
	registerWinkSync(w, cfg)
	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Error("Worker stopped", "error", err)
		}
	}()

	// Scheduler
	if err := scheduleService.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer scheduleService.Stop()

	// Queue depth gauge
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if depth, err := redisClient.LLen(ctx, redis_adapter.JobQueueKey).Result(); err == nil {
					http_handler.SetQueueDepth(depth)
				}
			}
		}
	}()

	httpServer := http_handler.NewServer(cfg.HTTPPort, jobService, scheduleService, healthService, hub, dlq)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
}

// registerWinkSync binds the inventory sync engine when its configuration is
// complete; without credentials the button still exists but runs fail fast
// in the worker.
func registerWinkSync(w *worker.Worker, cfg *config.Config) {
	if err := cfg.ValidateWink(); err != nil {
		logger.Warn("wink-sync not registered", "reason", err)
		return
	}
	if err := cfg.ValidateNocoDB(); err != nil {
		logger.Warn("wink-sync not registered", "reason", err)
		return
	}

	winkClient, err := wink.NewClient(wink.Options{
		BaseURL:   cfg.Wink.BaseURL,
		AccountID: cfg.Wink.AccountID,
		Username:  cfg.Wink.Username,
		Password:  cfg.Wink.Password,
		StoreID:   cfg.Wink.StoreID,
	})
	if err != nil {
		logger.Error("failed to build wink client", "error", err)
		return
	}

	nocoClient, err := nocodb.NewClient(nocodb.Options{
		APIToken:    cfg.NocoDB.APIToken,
		BaseURL:     cfg.NocoDB.BaseURL,
		ProjectName: cfg.NocoDB.ProjectName,
		TableName:   cfg.NocoDB.TableName,
	})
	if err != nil {
		logger.Error("failed to build nocodb client", "error", err)
		return
	}

	w.Register(WinkSyncService, syncer.New(winkClient, nocoClient, cfg.SyncRequestDelay))
	logger.Info("wink-sync engine registered")
}
