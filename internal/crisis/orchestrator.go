package crisis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/internal/followup"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/internal/observability/metrics"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var orchestratorTracer = otel.Tracer("havenmind/crisis-orchestrator")

const detectedByPipeline = "crisis_pipeline"

// Intervention stage names, used in metrics, logs and the audit trail.
const (
	stagePersistAssessment   = "persist_assessment"
	stageCreateEvent         = "create_event"
	stageProvideResources    = "provide_resources"
	stageNotifyProfessionals = "notify_professionals"
	stageContactEmergency    = "contact_emergency"
	stageScheduleFollowUp    = "schedule_follow_up"
)

// emergencyContactor dispatches synchronous emergency escalations.
type emergencyContactor interface {
	Contact(ctx context.Context, esc notify.EmergencyEscalation) error
}

// followUpScheduler creates follow-up checks after assessments.
type followUpScheduler interface {
	Schedule(ctx context.Context, input followup.ScheduleInput) (*followup.FollowUp, error)
}

// eventAppender writes integration events to the outbox outside the
// assessment transaction.
type eventAppender interface {
	Insert(ctx context.Context, aggregate, correlationID string, evt events.CanonicalEvent, opts ...events.EnvelopeOption) (events.Envelope, error)
}

// jobEnqueuer hands intervention side effects to the worker fleet.
type jobEnqueuer interface {
	EnqueueResourceDelivery(ctx context.Context, job ResourceJob) (string, error)
	EnqueueProfessionalAlert(ctx context.Context, job AlertJob) (string, error)
	EnqueueArchive(ctx context.Context, job ArchiveJob) (string, error)
}

// InterventionResult reports what the protocol did for one assessment.
type InterventionResult struct {
	AssessmentID  uuid.UUID    `json:"assessment_id"`
	CrisisEventID uuid.UUID    `json:"crisis_event_id"`
	Intervened    bool         `json:"intervened"`
	Outcome       EventOutcome `json:"outcome"`
}

// Orchestrator executes the graduated intervention protocol over one fused
// assessment. Stages run in a fixed order; a failed stage is logged, counted
// and audited, then the next stage still runs. The orchestrator never
// returns an error to the analysis path.
type Orchestrator struct {
	store     *Store
	jobs      jobEnqueuer
	resources *notify.Directory
	region    string
	emergency emergencyContactor
	followups followUpScheduler
	outbox    eventAppender
	audit     *compliance.AuditService
	events    *EventLogger
	metrics   *metrics.CrisisMetrics
	cal       Calibration
	logger    *logging.Logger
}

// OrchestratorOption configures optional protocol collaborators. A missing
// collaborator skips its stage rather than failing it.
type OrchestratorOption func(*Orchestrator)

// WithJobPublisher configures async delivery of resource, alert and archive
// side effects.
func WithJobPublisher(jobs jobEnqueuer) OrchestratorOption {
	return func(o *Orchestrator) { o.jobs = jobs }
}

// WithResourceDirectory configures the resource catalog and the default
// region used for selection.
func WithResourceDirectory(dir *notify.Directory, region string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.resources = dir
		if strings.TrimSpace(region) != "" {
			o.region = region
		}
	}
}

// WithEmergencyContactor configures synchronous emergency escalation.
func WithEmergencyContactor(ec emergencyContactor) OrchestratorOption {
	return func(o *Orchestrator) { o.emergency = ec }
}

// WithFollowUpScheduler configures follow-up check scheduling.
func WithFollowUpScheduler(s followUpScheduler) OrchestratorOption {
	return func(o *Orchestrator) { o.followups = s }
}

// WithOutbox configures integration-event publication for protocol actions.
func WithOutbox(outbox eventAppender) OrchestratorOption {
	return func(o *Orchestrator) { o.outbox = outbox }
}

// WithAuditService configures audit logging.
func WithAuditService(audit *compliance.AuditService) OrchestratorOption {
	return func(o *Orchestrator) { o.audit = audit }
}

// WithEventLog configures the structured event stream for protocol actions.
func WithEventLog(events *EventLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.events = events }
}

// NewOrchestrator creates the intervention orchestrator.
func NewOrchestrator(store *Store, cal Calibration, m *metrics.CrisisMetrics, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if store == nil {
		panic("crisis: orchestrator store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		store:   store,
		region:  "us",
		metrics: m,
		cal:     cal,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Intervene runs the protocol for one fused assessment. The assessment is
// always persisted; the remaining stages run only when risk reaches high.
func (o *Orchestrator) Intervene(ctx context.Context, req AnalyzeRequest, overall OverallAssessment) InterventionResult {
	ctx, span := orchestratorTracer.Start(ctx, "crisis.intervene")
	defer span.End()

	now := time.Now().UTC()
	rec := CrisisAssessment{
		ID:                 uuid.New(),
		UserID:             req.UserID,
		SessionID:          req.SessionID,
		MessageID:          req.MessageID,
		RiskLevel:          overall.Level,
		Confidence:         overall.Confidence,
		Triggers:           overall.Triggers,
		RecommendedActions: overall.Actions,
		UrgencySeconds:     overall.UrgencySeconds,
		Summary:            overall.Reasoning,
		CreatedAt:          now,
	}
	result := InterventionResult{AssessmentID: rec.ID}

	span.SetAttributes(
		attribute.String("crisis.assessment_id", rec.ID.String()),
		attribute.String("crisis.level", overall.Level.String()),
	)

	// Stage 1: the assessment record and its integration event commit
	// together or not at all.
	o.runStage(ctx, stagePersistAssessment, rec, func() error {
		return o.persistAssessment(ctx, rec, overall)
	})
	if o.audit != nil {
		_ = o.audit.LogAssessmentRecorded(ctx, rec.UserID, rec.SessionID, rec.ID.String(),
			overall.Level.String(), overall.Confidence, overall.Triggers, overall.Escalated)
	}

	if overall.Level < RiskHigh {
		return result
	}

	// Stage 2: open the crisis event.
	var outcome EventOutcome
	outcome.InterventionType = interventionTypeFor(overall.Level)
	eventID := uuid.Nil
	created := o.runStage(ctx, stageCreateEvent, rec, func() error {
		id, err := o.store.InsertEvent(ctx, nil, CrisisEvent{
			UserID:                req.UserID,
			SessionID:             req.SessionID,
			MessageID:             req.MessageID,
			RiskLevel:             overall.Level,
			TriggerKeywords:       overall.Triggers,
			ConfidenceScore:       overall.Confidence,
			InterventionTriggered: true,
			InterventionType:      outcome.InterventionType,
			DetectedBy:            detectedByPipeline,
		})
		if err != nil {
			return err
		}
		eventID = id
		return nil
	})
	if created {
		result.CrisisEventID = eventID
		result.Intervened = true
		o.events.CrisisEventOpened(ctx, req.UserID, req.SessionID, rec.ID.String(),
			eventID.String(), outcome.InterventionType)
		o.appendEvent(ctx, rec, events.InterventionTriggeredV1{
			CrisisEventID: eventID.String(),
			UserID:        req.UserID,
			SessionID:     req.SessionID,
			RiskLevel:     overall.Level.String(),
			Confidence:    overall.Confidence,
			Actions:       overall.Actions,
			TriggeredAt:   now,
		})
		if o.audit != nil {
			_ = o.audit.LogCrisisDetected(ctx, req.UserID, req.SessionID, eventID.String(),
				rec.ID.String(), overall.Level.String(), overall.Confidence, overall.Actions)
		}
	}

	// Later stages reference the event when it exists and fall back to the
	// assessment id so a failed stage 2 never silences an alert.
	eventRef := rec.ID.String()
	if eventID != uuid.Nil {
		eventRef = eventID.String()
	}

	// Stage 3: hand crisis resources to the user.
	selected := o.resources.Select(o.region, overall.Level.String())
	if o.jobs == nil {
		o.logger.Debug("no job publisher configured; resource delivery skipped",
			"assessment_id", rec.ID)
	} else {
		delivered := o.runStage(ctx, stageProvideResources, rec, func() error {
			_, err := o.jobs.EnqueueResourceDelivery(ctx, ResourceJob{
				UserID:        req.UserID,
				SessionID:     req.SessionID,
				CrisisEventID: eventRef,
				RiskLevel:     overall.Level,
				Region:        o.region,
			})
			return err
		})
		if delivered {
			outcome.ResourcesProvided = notify.Names(selected)
		}
	}

	// Stage 4: page the on-call team. The queue owns retried delivery, so
	// the flag is set once the job is accepted.
	if overall.Level == RiskCritical || overall.Confidence > o.cal.NotifyConfidence {
		if o.jobs == nil {
			o.logger.Warn("no job publisher configured; professional alert skipped",
				"assessment_id", rec.ID)
		} else {
			notified := o.runStage(ctx, stageNotifyProfessionals, rec, func() error {
				_, err := o.jobs.EnqueueProfessionalAlert(ctx, AlertJob{
					CrisisEventID: eventRef,
					UserID:        req.UserID,
					SessionID:     req.SessionID,
					RiskLevel:     overall.Level,
					Confidence:    overall.Confidence,
					Triggers:      overall.Triggers,
					Summary:       overall.Reasoning,
					DetectedAt:    now,
				})
				return err
			})
			outcome.ProfessionalNotified = notified
		}
	}

	// Stage 5: imminent danger goes straight to emergency services,
	// synchronously.
	if trigger, imminent := imminentDangerTrigger(overall.Triggers, o.cal.ImminentDangerTriggers); imminent {
		if o.emergency == nil {
			o.logger.Warn("imminent danger trigger without an emergency contactor",
				"assessment_id", rec.ID, "trigger", trigger)
		} else {
			contacted := o.runStage(ctx, stageContactEmergency, rec, func() error {
				return o.emergency.Contact(ctx, notify.EmergencyEscalation{
					CrisisEventID: eventRef,
					UserID:        req.UserID,
					SessionID:     req.SessionID,
					Trigger:       trigger,
					RiskLevel:     overall.Level.String(),
					Confidence:    overall.Confidence,
					DetectedAt:    now,
				})
			})
			if contacted {
				outcome.EmergencyServicesContacted = true
				o.events.EmergencyContacted(ctx, req.UserID, req.SessionID, rec.ID.String(), eventRef, trigger)
				o.appendEvent(ctx, rec, events.EmergencyEscalatedV1{
					CrisisEventID: eventRef,
					UserID:        req.UserID,
					Trigger:       trigger,
					ContactedAt:   now,
				})
				if o.audit != nil {
					_ = o.audit.LogEmergencyContacted(ctx, req.UserID, eventRef, trigger)
				}
			}
		}
	}

	// Stage 6: schedule the follow-up check.
	if o.followups == nil {
		o.logger.Debug("no follow-up scheduler configured", "assessment_id", rec.ID)
	} else {
		var followUpID string
		var dueAt time.Time
		scheduled := o.runStage(ctx, stageScheduleFollowUp, rec, func() error {
			f, err := o.followups.Schedule(ctx, followup.ScheduleInput{
				CrisisEventID: eventID,
				UserID:        req.UserID,
				SessionID:     req.SessionID,
				RiskLevel:     overall.Level.String(),
				DetectedAt:    now,
			})
			if err != nil {
				return err
			}
			if f == nil {
				return errors.New("no check-in window for risk level")
			}
			followUpID = f.ID.String()
			dueAt = f.DueAt
			return nil
		})
		if scheduled {
			outcome.FollowUpRequired = true
			o.events.FollowUpScheduled(ctx, req.UserID, req.SessionID, rec.ID.String(), followUpID, dueAt)
			o.appendEvent(ctx, rec, events.FollowUpScheduledV1{
				FollowUpID:    followUpID,
				CrisisEventID: eventRef,
				UserID:        req.UserID,
				DueAt:         dueAt,
				ScheduledAt:   now,
			})
			if o.audit != nil {
				_ = o.audit.LogFollowUpScheduled(ctx, req.UserID, eventRef, followUpID, dueAt)
			}
		}
	}

	// Record what the protocol accomplished on the event row. Best effort:
	// the flags also live in the audit trail.
	if eventID != uuid.Nil {
		if err := o.store.UpdateEventOutcome(ctx, eventID, outcome); err != nil {
			o.logger.Error("failed to record intervention outcome",
				"crisis_event_id", eventID, "error", err)
		}
	}

	// Compliance archival of high and critical assessments.
	if o.jobs != nil {
		if _, err := o.jobs.EnqueueArchive(ctx, ArchiveJob{
			AssessmentID:  rec.ID.String(),
			CrisisEventID: eventRef,
			UserID:        req.UserID,
			SessionID:     req.SessionID,
		}); err != nil {
			o.logger.Warn("failed to enqueue archive job", "assessment_id", rec.ID, "error", err)
		}
	}

	result.Outcome = outcome
	o.events.InterventionCompleted(ctx, req.UserID, req.SessionID, rec.ID.String(), result)
	span.SetAttributes(
		attribute.Bool("crisis.intervened", result.Intervened),
		attribute.String("crisis.event_id", eventRef),
	)
	return result
}

// persistAssessment writes the assessment row and its outbox entry in one
// transaction.
func (o *Orchestrator) persistAssessment(ctx context.Context, rec CrisisAssessment, overall OverallAssessment) error {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := o.store.InsertAssessment(ctx, tx, rec); err != nil {
		return err
	}

	_, err = events.AppendCanonicalEvent(ctx, tx, events.UserAggregate(rec.UserID), rec.MessageID, events.AssessmentCreatedV1{
		AssessmentID:       rec.ID.String(),
		UserID:             rec.UserID,
		SessionID:          rec.SessionID,
		MessageID:          rec.MessageID,
		RiskLevel:          rec.RiskLevel.String(),
		Confidence:         rec.Confidence,
		Escalated:          overall.Escalated,
		UrgencySeconds:     rec.UrgencySeconds,
		Triggers:           rec.Triggers,
		RecommendedActions: rec.RecommendedActions,
		AssessedAt:         rec.CreatedAt,
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// runStage executes one protocol stage with failure isolation.
func (o *Orchestrator) runStage(ctx context.Context, stage string, rec CrisisAssessment, fn func() error) bool {
	if err := fn(); err != nil {
		o.metrics.ObserveStageFailure(stage)
		o.logger.Error("intervention stage failed",
			"stage", stage,
			"assessment_id", rec.ID,
			"user_id", rec.UserID,
			"error", err,
		)
		if o.audit != nil {
			_ = o.audit.LogStageFailure(ctx, rec.UserID, rec.ID.String(), stage, err.Error())
		}
		o.events.StageFailed(ctx, rec.UserID, rec.SessionID, rec.ID.String(), stage, err)
		return false
	}
	o.metrics.ObserveStage(stage)
	return true
}

// appendEvent writes a protocol integration event to the outbox, best effort.
func (o *Orchestrator) appendEvent(ctx context.Context, rec CrisisAssessment, evt events.CanonicalEvent) {
	if o.outbox == nil {
		return
	}
	if _, err := o.outbox.Insert(ctx, events.UserAggregate(rec.UserID), rec.MessageID, evt); err != nil {
		o.logger.Warn("outbox append failed",
			"assessment_id", rec.ID, "event_type", evt.EventType(), "error", err)
	}
}

// interventionTypeFor names the headline intervention for an event's level.
func interventionTypeFor(level RiskLevel) string {
	if level == RiskCritical {
		return ActionImmediateIntervention
	}
	return ActionProfessionalAlert
}

// imminentDangerTrigger reports the first trigger in the imminent-danger set.
func imminentDangerTrigger(triggers, dangerSet []string) (string, bool) {
	for _, trigger := range triggers {
		normalized := strings.ToLower(strings.TrimSpace(trigger))
		for _, danger := range dangerSet {
			if normalized == strings.ToLower(strings.TrimSpace(danger)) {
				return trigger, true
			}
		}
	}
	return "", false
}
