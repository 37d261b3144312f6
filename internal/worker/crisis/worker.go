package crisisworker

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/havenmind/wellness-ai-platform/cmd/mainconfig"
	appbootstrap "github.com/havenmind/wellness-ai-platform/internal/app/bootstrap"
	"github.com/havenmind/wellness-ai-platform/internal/archive"
	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	"github.com/havenmind/wellness-ai-platform/internal/crisis"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/internal/followup"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// followUpRunner is the slice of followup.Worker the cadence loop drives.
type followUpRunner interface {
	ProcessDue(ctx context.Context) (int, error)
	EscalateOverdue(ctx context.Context) (int, error)
}

// Run starts the async crisis worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("crisis worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.UseMemoryQueue {
		return fmt.Errorf("crisis worker cannot run when USE_MEMORY_QUEUE=true; run inline workers via the API process instead")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("crisis worker requires DATABASE_URL")
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("worker failed to connect to postgres: %w", err)
	}
	defer dbPool.Close()

	// The audit service runs on database/sql; share the pgx pool.
	sqlDB := stdlib.OpenDBFromPool(dbPool)
	defer sqlDB.Close()
	auditSvc := compliance.NewAuditService(sqlDB)

	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		return fmt.Errorf("crisis worker requires redis for session history")
	}

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	sqsClient := sqs.NewFromConfig(awsConfig)
	queue := crisis.NewSQSQueue(sqsClient, cfg.CrisisQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	jobStore := crisis.NewJobStore(dynamoClient, cfg.CrisisJobsTable, logger)

	// The orchestrator enqueues delivery/alert/archive jobs back onto the
	// same queue this worker consumes.
	publisher := crisis.NewPublisher(queue, logger)

	outboxStore := events.NewOutboxStore(dbPool)
	processedStore := events.NewProcessedStore(dbPool)
	followStore := followup.NewStore(dbPool)
	scheduler := followup.NewScheduler(followStore, logger)

	var sesClient *sesv2.Client
	if cfg.SESFromEmail != "" {
		sesClient = sesv2.NewFromConfig(awsConfig)
	}
	emailSender := appbootstrap.BuildEmailSender(cfg, sesClient, logger)
	notifySvc := appbootstrap.BuildNotifyService(cfg, emailSender, nil, logger)

	var emergency *notify.EmergencyClient
	if cfg.EmergencyWebhook != "" {
		emergency = notify.NewEmergencyClient(cfg.EmergencyWebhook, cfg.EmergencyAuthToken, logger)
	}

	fuWorker := followup.NewWorker(followStore, notify.NewStubUserMessenger(logger), logger,
		followup.WithOverdueAlerter(notifySvc),
		followup.WithNoticeService(compliance.NewNoticeService(auditSvc, compliance.DefaultNoticeConfig())),
		followup.WithAuditService(auditSvc),
		followup.WithOutbox(outboxStore),
		followup.WithEscalationGrace(time.Duration(cfg.FollowUpOverdueEscalateH)*time.Hour),
	)

	stack, err := appbootstrap.BuildCrisisStack(ctx, cfg, appbootstrap.CrisisDeps{
		Pool:      dbPool,
		Redis:     redisClient,
		Audit:     auditSvc,
		Jobs:      publisher,
		FollowUps: scheduler,
		Activity:  fuWorker,
		Outbox:    outboxStore,
		Emergency: emergency,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to assemble crisis analysis stack: %w", err)
	}

	workerOpts := []crisis.WorkerOption{
		crisis.WithWorkerCount(cfg.WorkerCount),
		crisis.WithJobTracker(jobStore),
		crisis.WithResourceDeliverer(notifySvc),
		crisis.WithProfessionalAlerter(notifySvc),
		crisis.WithProcessedStore(processedStore),
		crisis.WithDirectory(notify.DefaultDirectory()),
		crisis.WithWorkerOutbox(outboxStore),
		crisis.WithWorkerAudit(auditSvc),
	}
	archiveStore := archive.NewStore(s3.NewFromConfig(awsConfig), cfg.ArchiveBucket, logger)
	if archiveStore.Enabled() {
		archiver := archive.NewArchiver(archiveStore, stack.Store, logger,
			archive.WithHistorySource(stack.History))
		workerOpts = append(workerOpts, crisis.WithArchiver(archiver))
	} else {
		logger.Warn("assessment archival disabled (ARCHIVE_BUCKET not set)")
	}

	worker := crisis.NewWorker(stack.Pipeline, queue, logger, workerOpts...)
	worker.Start(ctx)
	logger.Info("crisis worker consuming queue",
		"queue_url", cfg.CrisisQueueURL,
		"workers", cfg.WorkerCount,
	)

	go runFollowUpLoop(ctx, fuWorker, cfg.FollowUpPollInterval, logger)

	<-ctx.Done()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("crisis worker stopped")
	case <-doneCtx.Done():
		logger.Error("crisis worker shutdown timed out", "error", doneCtx.Err())
	}

	return nil
}

// runFollowUpLoop drives scheduled check-ins on a fixed cadence until ctx is
// canceled.
func runFollowUpLoop(ctx context.Context, fu followUpRunner, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fu.ProcessDue(ctx); err != nil {
				logger.Error("follow-up check-in pass failed", "error", err)
			}
			if _, err := fu.EscalateOverdue(ctx); err != nil {
				logger.Error("follow-up escalation pass failed", "error", err)
			}
		}
	}
}
