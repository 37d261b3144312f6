package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/havenmind/wellness-ai-platform/cmd/mainconfig"
	"github.com/havenmind/wellness-ai-platform/internal/alertfeed"
	"github.com/havenmind/wellness-ai-platform/internal/api/router"
	appbootstrap "github.com/havenmind/wellness-ai-platform/internal/app/bootstrap"
	"github.com/havenmind/wellness-ai-platform/internal/archive"
	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	"github.com/havenmind/wellness-ai-platform/internal/crisis"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/internal/followup"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/internal/observability/metrics"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting havenmind wellness API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The audit service runs on database/sql; share the pgx pool.
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()
	auditSvc := compliance.NewAuditService(sqlDB)

	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for session history")
		os.Exit(1)
	}

	metricsHandler, crisisMetrics := setupMetrics()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	publisher, jobStore, memQueue := setupAnalysisTransport(cfg, awsCfg, logger)

	outboxStore := events.NewOutboxStore(pool)
	followStore := followup.NewStore(pool)
	scheduler := followup.NewScheduler(followStore, logger)

	// The API only completes check-ins on user activity; check-in sends run
	// in the worker binary.
	activity := followup.NewWorker(followStore, notify.NewStubUserMessenger(logger), logger,
		followup.WithAuditService(auditSvc),
		followup.WithOutbox(outboxStore),
	)

	var emergency *notify.EmergencyClient
	if cfg.EmergencyWebhook != "" {
		emergency = notify.NewEmergencyClient(cfg.EmergencyWebhook, cfg.EmergencyAuthToken, logger)
	}

	stack, err := appbootstrap.BuildCrisisStack(ctx, cfg, appbootstrap.CrisisDeps{
		Pool:      pool,
		Redis:     redisClient,
		Audit:     auditSvc,
		Jobs:      publisher,
		FollowUps: scheduler,
		Activity:  activity,
		Outbox:    outboxStore,
		Emergency: emergency,
		Metrics:   crisisMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to assemble crisis analysis stack", "error", err)
		os.Exit(1)
	}

	// Live alert feed: the outbox deliverer pushes integration events to
	// WebSocket subscribers.
	hub := alertfeed.NewHub(logger)
	deliverer := events.NewDeliverer(outboxStore, hub, logger).WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	// With the in-memory queue, async jobs must be consumed in-process.
	var inlineWorker *crisis.Worker
	if memQueue != nil {
		var sesClient *sesv2.Client
		if cfg.SESFromEmail != "" {
			sesClient = sesv2.NewFromConfig(awsCfg)
		}
		emailSender := appbootstrap.BuildEmailSender(cfg, sesClient, logger)
		notifySvc := appbootstrap.BuildNotifyService(cfg, emailSender, crisisMetrics, logger)

		workerOpts := []crisis.WorkerOption{
			crisis.WithWorkerCount(cfg.WorkerCount),
			crisis.WithJobTracker(jobStore),
			crisis.WithResourceDeliverer(notifySvc),
			crisis.WithProfessionalAlerter(notifySvc),
			crisis.WithProcessedStore(events.NewProcessedStore(pool)),
			crisis.WithDirectory(notify.DefaultDirectory()),
			crisis.WithWorkerOutbox(outboxStore),
			crisis.WithWorkerAudit(auditSvc),
		}
		archiveStore := archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
		if archiveStore.Enabled() {
			archiver := archive.NewArchiver(archiveStore, stack.Store, logger,
				archive.WithHistorySource(stack.History))
			workerOpts = append(workerOpts, crisis.WithArchiver(archiver))
		}

		inlineWorker = crisis.NewWorker(stack.Pipeline, memQueue, logger, workerOpts...)
		inlineWorker.Start(ctx)
		logger.Info("inline crisis workers started", "count", cfg.WorkerCount)
	}

	// Initialize handlers
	crisisHandler := crisis.NewHandler(stack.Pipeline, publisher, jobStore, stack.Store, stack.Profiles, logger,
		crisis.WithFollowUpCanceler(followStore),
		crisis.WithResolutionOutbox(outboxStore),
		crisis.WithAuditLog(auditSvc),
	)
	followUpHandler := followup.NewHandler(followStore, logger)
	complianceHandler := compliance.NewHandler(auditSvc, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		CrisisHandler:      crisisHandler,
		FollowUpHandler:    followUpHandler,
		ComplianceHandler:  complianceHandler,
		AlertFeed:          hub,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if inlineWorker != nil {
		inlineWorker.Wait()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds the process-local Prometheus registry and the crisis
// pipeline instruments registered on it.
func setupMetrics() (http.Handler, *metrics.CrisisMetrics) {
	reg := prometheus.NewRegistry()
	crisisMetrics := metrics.NewCrisisMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), crisisMetrics
}

// setupAnalysisTransport wires the job queue and job-status store. The
// in-memory queue serves single-process development; memQueue is nil on the
// SQS path.
func setupAnalysisTransport(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*crisis.Publisher, *crisis.JobStore, *crisis.MemoryQueue) {
	var memQueue *crisis.MemoryQueue
	var publisher *crisis.Publisher
	if cfg.UseMemoryQueue {
		memQueue = crisis.NewMemoryQueue(64)
		publisher = crisis.NewPublisher(memQueue, logger)
		logger.Info("using in-memory crisis queue")
	} else {
		sqsClient := sqs.NewFromConfig(awsCfg)
		publisher = crisis.NewPublisher(crisis.NewSQSQueue(sqsClient, cfg.CrisisQueueURL), logger)
	}

	jobStore := crisis.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.CrisisJobsTable, logger)
	return publisher, jobStore, memQueue
}
