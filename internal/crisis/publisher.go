package crisis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// Publisher enqueues crisis jobs for the worker fleet.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("crisis: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueAnalysis publishes one analysis job and returns its ID. The job ID
// is minted here so the caller can persist a pending record before the
// worker picks the job up.
func (p *Publisher) EnqueueAnalysis(ctx context.Context, jobID string, req AnalyzeRequest) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.UserID) == "" {
		return "", errors.New("crisis: analysis request requires a user id")
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", errors.New("crisis: analysis request requires a message")
	}

	return p.publish(ctx, queueJob{ID: jobID, Kind: jobAnalyze, Analyze: &req}, "user_id", req.UserID)
}

// EnqueueResourceDelivery publishes a crisis-resource delivery job.
func (p *Publisher) EnqueueResourceDelivery(ctx context.Context, job ResourceJob) (string, error) {
	if strings.TrimSpace(job.UserID) == "" {
		return "", errors.New("crisis: resource job requires a user id")
	}
	return p.publish(ctx, queueJob{Kind: jobDeliverResources, Resources: &job}, "user_id", job.UserID)
}

// EnqueueProfessionalAlert publishes an on-call alert job.
func (p *Publisher) EnqueueProfessionalAlert(ctx context.Context, job AlertJob) (string, error) {
	if strings.TrimSpace(job.CrisisEventID) == "" {
		return "", errors.New("crisis: alert job requires a crisis event id")
	}
	return p.publish(ctx, queueJob{Kind: jobAlertProfessional, Alert: &job}, "crisis_event_id", job.CrisisEventID)
}

// EnqueueArchive publishes a compliance archival job.
func (p *Publisher) EnqueueArchive(ctx context.Context, job ArchiveJob) (string, error) {
	if strings.TrimSpace(job.AssessmentID) == "" {
		return "", errors.New("crisis: archive job requires an assessment id")
	}
	return p.publish(ctx, queueJob{Kind: jobArchiveEvent, Archive: &job}, "assessment_id", job.AssessmentID)
}

func (p *Publisher) publish(ctx context.Context, job queueJob, idKey, idValue string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	job, body, err := encodeJob(job)
	if err != nil {
		return "", err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("crisis: failed to enqueue %s job: %w", job.Kind, err)
	}

	p.logger.Debug("crisis job enqueued", "job_id", job.ID, "kind", string(job.Kind), idKey, idValue)
	return job.ID, nil
}
