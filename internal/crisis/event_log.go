package crisis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// PipelineEvent is one structured event in the detection and intervention
// lifecycle. All events share the same base fields for easy filtering.
type PipelineEvent struct {
	Time         string         `json:"time"`
	Event        string         `json:"event"`
	UserID       string         `json:"user_id"`
	SessionID    string         `json:"session_id"`
	AssessmentID string         `json:"assessment_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// EventLogger emits a structured JSON event at each decision point in the
// analysis and intervention flow. Designed for fast log filtering:
//
//	grep 'analyzer_timed_out' /var/log/app.log
//	grep 'assessment_fused' /var/log/app.log
//
// Events carry message lengths and derived fields, never message text.
type EventLogger struct {
	logger *logging.Logger
}

// NewEventLogger creates a new pipeline event logger.
func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured pipeline event.
func (e *EventLogger) Log(_ context.Context, event, userID, sessionID, assessmentID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := PipelineEvent{
		Time:         time.Now().UTC().Format(time.RFC3339Nano),
		Event:        event,
		UserID:       userID,
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		Data:         data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

// Convenience methods for common events:

func (e *EventLogger) AnalysisStarted(ctx context.Context, userID, sessionID string, messageLen, analyzerCount int) {
	e.Log(ctx, "analysis_started", userID, sessionID, "", map[string]any{
		"message_len": messageLen,
		"analyzers":   analyzerCount,
	})
}

func (e *EventLogger) AnalyzerCompleted(ctx context.Context, userID, sessionID, analyzer string, a Assessment, durationMs int64) {
	e.Log(ctx, "analyzer_completed", userID, sessionID, "", map[string]any{
		"analyzer":    analyzer,
		"level":       a.Level.String(),
		"confidence":  a.Confidence,
		"duration_ms": durationMs,
		"degraded":    isDegraded(a),
	})
}

func (e *EventLogger) AnalyzerTimedOut(ctx context.Context, userID, sessionID, analyzer string, timeout time.Duration) {
	e.Log(ctx, "analyzer_timed_out", userID, sessionID, "", map[string]any{
		"analyzer": analyzer,
		"timeout":  timeout.String(),
	})
}

func (e *EventLogger) AssessmentFused(ctx context.Context, userID, sessionID string, overall OverallAssessment) {
	// Truncate reasoning for logging
	reasoning := overall.Reasoning
	if len(reasoning) > 200 {
		reasoning = reasoning[:200] + "..."
	}
	e.Log(ctx, "assessment_fused", userID, sessionID, "", map[string]any{
		"level":           overall.Level.String(),
		"confidence":      overall.Confidence,
		"escalated":       overall.Escalated,
		"urgency_seconds": overall.UrgencySeconds,
		"triggers":        overall.Triggers,
		"reasoning":       reasoning,
	})
}

func (e *EventLogger) AnalysisFallback(ctx context.Context, userID, sessionID string) {
	e.Log(ctx, "analysis_fallback", userID, sessionID, "", nil)
}

func (e *EventLogger) CrisisEventOpened(ctx context.Context, userID, sessionID, assessmentID, crisisEventID, interventionType string) {
	e.Log(ctx, "crisis_event_opened", userID, sessionID, assessmentID, map[string]any{
		"crisis_event_id":   crisisEventID,
		"intervention_type": interventionType,
	})
}

func (e *EventLogger) StageFailed(ctx context.Context, userID, sessionID, assessmentID, stage string, err error) {
	e.Log(ctx, "stage_failed", userID, sessionID, assessmentID, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
}

func (e *EventLogger) EmergencyContacted(ctx context.Context, userID, sessionID, assessmentID, crisisEventID, trigger string) {
	e.Log(ctx, "emergency_contacted", userID, sessionID, assessmentID, map[string]any{
		"crisis_event_id": crisisEventID,
		"trigger":         trigger,
	})
}

func (e *EventLogger) FollowUpScheduled(ctx context.Context, userID, sessionID, assessmentID, followUpID string, dueAt time.Time) {
	e.Log(ctx, "follow_up_scheduled", userID, sessionID, assessmentID, map[string]any{
		"follow_up_id": followUpID,
		"due_at":       dueAt.UTC().Format(time.RFC3339),
	})
}

func (e *EventLogger) InterventionCompleted(ctx context.Context, userID, sessionID, assessmentID string, result InterventionResult) {
	data := map[string]any{
		"intervened":            result.Intervened,
		"professional_notified": result.Outcome.ProfessionalNotified,
		"emergency_contacted":   result.Outcome.EmergencyServicesContacted,
		"follow_up_required":    result.Outcome.FollowUpRequired,
	}
	if result.CrisisEventID != uuid.Nil {
		data["crisis_event_id"] = result.CrisisEventID.String()
	}
	e.Log(ctx, "intervention_completed", userID, sessionID, assessmentID, data)
}
