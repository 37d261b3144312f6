package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5

	// processedSource namespaces queue job ids in the processed-events table.
	processedSource = "crisis-queue"
)

// resourceDeliverer hands selected crisis resources to the user.
type resourceDeliverer interface {
	SendCrisisResources(ctx context.Context, delivery notify.ResourceDelivery) error
}

// professionalAlerter pages the on-call roster.
type professionalAlerter interface {
	AlertProfessionals(ctx context.Context, alert notify.CrisisAlert) (notify.AlertReceipt, error)
}

// assessmentArchiver writes a scrubbed assessment bundle to cold storage.
type assessmentArchiver interface {
	ArchiveAssessment(ctx context.Context, assessmentID, crisisEventID, userID, sessionID string) error
}

// processedStore deduplicates redelivered queue messages.
type processedStore interface {
	AlreadyProcessed(ctx context.Context, source, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, source, eventID string) (bool, error)
}

// Worker consumes crisis jobs from the queue and dispatches them by kind.
// Analysis failures are recorded on the job and dropped; delivery-side
// failures leave the message on the queue so redelivery retries them.
type Worker struct {
	pipeline  analysisRunner
	queue     queueClient
	jobs      JobUpdater
	resources resourceDeliverer
	alerts    professionalAlerter
	archiver  assessmentArchiver
	directory *notify.Directory
	processed processedStore
	outbox    eventAppender
	audit     *compliance.AuditService
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		w.cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages one poll fetches.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		w.cfg.receiveBatchSize = size
	}
}

// WithJobTracker records analysis job status for polling clients.
func WithJobTracker(jobs JobUpdater) WorkerOption {
	return func(w *Worker) { w.jobs = jobs }
}

// WithResourceDeliverer configures in-app resource delivery.
func WithResourceDeliverer(r resourceDeliverer) WorkerOption {
	return func(w *Worker) { w.resources = r }
}

// WithProfessionalAlerter configures on-call paging.
func WithProfessionalAlerter(a professionalAlerter) WorkerOption {
	return func(w *Worker) { w.alerts = a }
}

// WithArchiver configures compliance archival.
func WithArchiver(a assessmentArchiver) WorkerOption {
	return func(w *Worker) { w.archiver = a }
}

// WithProcessedStore enables idempotent handling of redelivered messages.
func WithProcessedStore(p processedStore) WorkerOption {
	return func(w *Worker) { w.processed = p }
}

// WithDirectory overrides the resource catalog used for delivery jobs.
func WithDirectory(dir *notify.Directory) WorkerOption {
	return func(w *Worker) {
		if dir != nil {
			w.directory = dir
		}
	}
}

// WithWorkerOutbox publishes delivery integration events.
func WithWorkerOutbox(outbox eventAppender) WorkerOption {
	return func(w *Worker) { w.outbox = outbox }
}

// WithWorkerAudit records delivery decisions in the audit trail.
func WithWorkerAudit(audit *compliance.AuditService) WorkerOption {
	return func(w *Worker) { w.audit = audit }
}

// NewWorker creates the queue consumer.
func NewWorker(pipeline analysisRunner, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if pipeline == nil {
		panic("crisis: worker requires a pipeline")
	}
	if queue == nil {
		panic("crisis: worker requires a queue")
	}
	if logger == nil {
		logger = logging.Default()
	}

	w := &Worker{
		pipeline:  pipeline,
		queue:     queue,
		directory: notify.DefaultDirectory(),
		logger:    logger,
		cfg: workerConfig{
			workers:          defaultWorkerCount,
			receiveWaitSecs:  defaultWaitSeconds,
			receiveBatchSize: defaultBatchSize,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("crisis worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("crisis worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive crisis jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var job queueJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode crisis job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if w.processed != nil && job.ID != "" {
		done, err := w.processed.AlreadyProcessed(ctx, processedSource, job.ID)
		if err != nil {
			w.logger.Warn("processed-job lookup failed", "error", err, "job_id", job.ID)
		} else if done {
			w.logger.Info("skipping crisis job: already processed", "job_id", job.ID, "kind", string(job.Kind))
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
			return
		}
	}

	var err error
	// Delivery jobs are retried by the queue; analysis failures are recorded
	// on the job instead because re-running a broken analysis cannot help.
	retryable := false
	switch job.Kind {
	case jobAnalyze:
		err = w.handleAnalysis(ctx, job)
	case jobDeliverResources:
		err = w.handleResourceDelivery(ctx, job.Resources)
		retryable = true
	case jobAlertProfessional:
		err = w.handleProfessionalAlert(ctx, job.Alert)
		retryable = true
	case jobArchiveEvent:
		err = w.handleArchive(ctx, job.Archive)
		retryable = true
	default:
		err = fmt.Errorf("crisis: unknown job kind %q", job.Kind)
	}

	if err != nil {
		w.logger.Error("crisis job failed", "error", err, "job_id", job.ID, "kind", string(job.Kind))
		if retryable {
			return
		}
	} else {
		w.logger.Debug("crisis job processed", "job_id", job.ID, "kind", string(job.Kind))
		if w.processed != nil && job.ID != "" {
			if _, markErr := w.processed.MarkProcessed(ctx, processedSource, job.ID); markErr != nil {
				w.logger.Warn("failed to mark job processed", "error", markErr, "job_id", job.ID)
			}
		}
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) handleAnalysis(ctx context.Context, job queueJob) error {
	if job.Analyze == nil {
		return errors.New("crisis: analyze job missing payload")
	}

	result, err := w.pipeline.Analyze(ctx, *job.Analyze)
	if err != nil {
		if w.jobs != nil {
			if storeErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); storeErr != nil {
				w.logger.Error("failed to update job status", "error", storeErr, "job_id", job.ID)
			}
		}
		return err
	}

	if w.jobs != nil {
		if storeErr := w.jobs.MarkCompleted(ctx, job.ID, &result.Assessment); storeErr != nil {
			w.logger.Error("failed to update job status", "error", storeErr, "job_id", job.ID)
		}
	}
	return nil
}

func (w *Worker) handleResourceDelivery(ctx context.Context, job *ResourceJob) error {
	if job == nil {
		return errors.New("crisis: resource job missing payload")
	}
	if w.resources == nil {
		w.logger.Warn("resource deliverer not configured; dropping job", "user_id", job.UserID)
		return nil
	}

	selected := w.directory.Select(job.Region, job.RiskLevel.String())
	return w.resources.SendCrisisResources(ctx, notify.ResourceDelivery{
		UserID:    job.UserID,
		SessionID: job.SessionID,
		RiskLevel: job.RiskLevel.String(),
		Resources: selected,
	})
}

func (w *Worker) handleProfessionalAlert(ctx context.Context, job *AlertJob) error {
	if job == nil {
		return errors.New("crisis: alert job missing payload")
	}
	if w.alerts == nil {
		w.logger.Warn("professional alerter not configured; dropping alert", "crisis_event_id", job.CrisisEventID)
		return nil
	}

	receipt, err := w.alerts.AlertProfessionals(ctx, notify.CrisisAlert{
		CrisisEventID: job.CrisisEventID,
		UserID:        job.UserID,
		SessionID:     job.SessionID,
		RiskLevel:     job.RiskLevel.String(),
		Confidence:    job.Confidence,
		Triggers:      job.Triggers,
		Summary:       job.Summary,
		DetectedAt:    job.DetectedAt,
	})
	if err != nil {
		return err
	}

	if w.outbox != nil {
		evt := events.ProfessionalNotifiedV1{
			CrisisEventID: job.CrisisEventID,
			UserID:        job.UserID,
			RiskLevel:     job.RiskLevel.String(),
			Channel:       receipt.Channels(),
			Recipients:    receipt.Recipients(),
			NotifiedAt:    time.Now().UTC(),
		}
		if _, appendErr := w.outbox.Insert(ctx, events.UserAggregate(job.UserID), job.CrisisEventID, evt); appendErr != nil {
			w.logger.Warn("outbox append failed", "event_type", evt.EventType(), "error", appendErr)
		}
	}
	if w.audit != nil {
		_ = w.audit.LogProfessionalNotified(ctx, job.UserID, job.CrisisEventID,
			job.RiskLevel.String(), receipt.Channels(), receipt.Recipients())
	}
	return nil
}

func (w *Worker) handleArchive(ctx context.Context, job *ArchiveJob) error {
	if job == nil {
		return errors.New("crisis: archive job missing payload")
	}
	if w.archiver == nil {
		w.logger.Debug("archiver not configured; dropping archive job", "assessment_id", job.AssessmentID)
		return nil
	}
	return w.archiver.ArchiveAssessment(ctx, job.AssessmentID, job.CrisisEventID, job.UserID, job.SessionID)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete crisis job", "error", err)
	}
}
