package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// Messenger delivers in-app messages to users.
type Messenger interface {
	SendToUser(ctx context.Context, userID, body string) error
}

// OverdueAlerter raises unanswered high-risk check-ins to the on-call team.
type OverdueAlerter interface {
	NotifyFollowUpOverdue(ctx context.Context, notice notify.OverdueFollowUp) error
}

// eventAppender writes integration events to the outbox.
type eventAppender interface {
	Insert(ctx context.Context, aggregate, correlationID string, evt events.CanonicalEvent, opts ...events.EnvelopeOption) (events.Envelope, error)
}

const defaultEscalationGrace = 4 * time.Hour

// Worker processes due follow-up checks: it sends check-in messages and
// escalates sent high-risk checks the user never answered.
type Worker struct {
	store   *Store
	users   Messenger
	alerts  OverdueAlerter
	notices *compliance.NoticeService
	audit   *compliance.AuditService
	outbox  eventAppender
	grace   time.Duration
	logger  *logging.Logger
}

// WorkerOption configures optional worker collaborators.
type WorkerOption func(*Worker)

// WithOverdueAlerter configures escalation of unanswered check-ins.
func WithOverdueAlerter(alerts OverdueAlerter) WorkerOption {
	return func(w *Worker) { w.alerts = alerts }
}

// WithNoticeService appends the safety notice to outbound check-ins.
func WithNoticeService(notices *compliance.NoticeService) WorkerOption {
	return func(w *Worker) { w.notices = notices }
}

// WithAuditService configures audit logging of escalations.
func WithAuditService(audit *compliance.AuditService) WorkerOption {
	return func(w *Worker) { w.audit = audit }
}

// WithOutbox records follow-up activity as integration events.
func WithOutbox(outbox eventAppender) WorkerOption {
	return func(w *Worker) { w.outbox = outbox }
}

// WithEscalationGrace sets how long after due_at an unanswered check-in
// waits before escalation.
func WithEscalationGrace(grace time.Duration) WorkerOption {
	return func(w *Worker) {
		if grace > 0 {
			w.grace = grace
		}
	}
}

// NewWorker creates a follow-up worker.
func NewWorker(store *Store, users Messenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		store:  store,
		users:  users,
		grace:  defaultEscalationGrace,
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProcessDue finds all pending follow-ups that are due and sends check-in
// messages. Returns the number of check-ins sent.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := w.store.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("followup worker: list due: %w", err)
	}

	if len(due) == 0 {
		return 0, nil
	}

	w.logger.Info("followup worker: processing due check-ins", "count", len(due))

	processed := 0
	for i := range due {
		f := &due[i]
		if err := w.sendOne(ctx, f, now); err != nil {
			w.logger.Error("followup worker: failed to send check-in",
				"id", f.ID, "error", err)
			continue
		}
		processed++
	}

	return processed, nil
}

func (w *Worker) sendOne(ctx context.Context, f *FollowUp, now time.Time) error {
	body := CheckInMessage(f)
	if w.notices != nil {
		withNotice, err := w.notices.AppendNotice(ctx, body, compliance.NoticeOptions{
			UserID:    f.UserID,
			SessionID: f.SessionID,
		})
		if err == nil {
			body = withNotice
		}
	}

	if err := w.users.SendToUser(ctx, f.UserID, body); err != nil {
		return fmt.Errorf("send check-in: %w", err)
	}

	if err := w.store.MarkSent(ctx, f.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	if w.outbox != nil {
		_, err := w.outbox.Insert(ctx, events.UserAggregate(f.UserID), f.ID.String(), events.FollowUpDueV1{
			FollowUpID:    f.ID.String(),
			CrisisEventID: f.CrisisEventID.String(),
			UserID:        f.UserID,
			DueAt:         f.DueAt,
			SentAt:        now,
		})
		if err != nil {
			w.logger.Warn("followup worker: outbox append failed", "id", f.ID, "error", err)
		}
	}

	w.logger.Info("followup worker: check-in sent",
		"id", f.ID, "user_id", f.UserID, "risk_level", f.RiskLevel)
	return nil
}

// EscalateOverdue raises sent high-risk check-ins that stayed unanswered past
// the grace window. Returns the number of escalations.
func (w *Worker) EscalateOverdue(ctx context.Context) (int, error) {
	if w.alerts == nil {
		w.logger.Debug("followup worker: no overdue alerter configured")
		return 0, nil
	}

	now := time.Now().UTC()
	cutoff := now.Add(-w.grace)
	overdue, err := w.store.ListEscalatable(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("followup worker: list escalatable: %w", err)
	}

	escalated := 0
	for i := range overdue {
		f := &overdue[i]
		notice := notify.OverdueFollowUp{
			FollowUpID:    f.ID.String(),
			CrisisEventID: f.CrisisEventID.String(),
			UserID:        f.UserID,
			DueAt:         f.DueAt,
			OverdueBy:     overdueBy(f, now),
		}
		if err := w.alerts.NotifyFollowUpOverdue(ctx, notice); err != nil {
			w.logger.Error("followup worker: overdue alert failed",
				"id", f.ID, "error", err)
			continue
		}
		if err := w.store.MarkEscalated(ctx, f.ID); err != nil {
			w.logger.Error("followup worker: mark escalated failed",
				"id", f.ID, "error", err)
			continue
		}
		if w.audit != nil {
			_ = w.audit.LogFollowUpEscalated(ctx, f.UserID, f.CrisisEventID.String(), f.ID.String(), overdueBy(f, now))
		}
		w.logger.Warn("followup worker: check-in escalated",
			"id", f.ID, "user_id", f.UserID, "overdue_by", overdueBy(f, now).String())
		escalated++
	}

	return escalated, nil
}

// HandleUserActivity completes open check-ins for a user who sent a message.
// Any inbound message counts as engagement.
func (w *Worker) HandleUserActivity(ctx context.Context, userID string) (int64, error) {
	n, err := w.store.CompleteForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.Info("followup: user responded to check-in", "user_id", userID, "completed", n)
		if w.users != nil {
			if err := w.users.SendToUser(ctx, userID, CompletionResponse()); err != nil {
				w.logger.Warn("followup: acknowledgment send failed", "user_id", userID, "error", err)
			}
		}
	}
	return n, nil
}
