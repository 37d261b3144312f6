package crisis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// queueClient abstracts the transport carrying crisis jobs so the API can
// run against LocalStack SQS in development and AWS SQS in production.
type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// jobKind selects which payload field of a queueJob is set.
type jobKind string

const (
	jobAnalyze           jobKind = "analyze_message"
	jobDeliverResources  jobKind = "deliver_resources"
	jobAlertProfessional jobKind = "alert_professionals"
	jobArchiveEvent      jobKind = "archive_event"
)

// ResourceJob asks the worker to deliver region-appropriate crisis resources
// to the user.
type ResourceJob struct {
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id,omitempty"`
	CrisisEventID string    `json:"crisis_event_id,omitempty"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Region        string    `json:"region,omitempty"`
}

// AlertJob asks the worker to page the on-call roster about a crisis event.
type AlertJob struct {
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id,omitempty"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Confidence    float64   `json:"confidence"`
	Triggers      []string  `json:"triggers,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	DetectedAt    time.Time `json:"detected_at"`
}

// ArchiveJob asks the worker to write a scrubbed assessment bundle to the
// compliance archive.
type ArchiveJob struct {
	AssessmentID  string `json:"assessment_id"`
	CrisisEventID string `json:"crisis_event_id,omitempty"`
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id,omitempty"`
}

// queueJob is the wire form of one queued crisis task. Exactly one payload
// field is set, selected by Kind.
type queueJob struct {
	ID        string          `json:"id"`
	Kind      jobKind         `json:"kind"`
	Analyze   *AnalyzeRequest `json:"analyze,omitempty"`
	Resources *ResourceJob    `json:"resources,omitempty"`
	Alert     *AlertJob       `json:"alert,omitempty"`
	Archive   *ArchiveJob     `json:"archive,omitempty"`
}

func encodeJob(job queueJob) (queueJob, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return queueJob{}, "", fmt.Errorf("crisis: failed to encode job: %w", err)
	}
	return job, string(body), nil
}
