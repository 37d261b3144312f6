// Package compliance provides the audit trail and safety-notice features
// required for a crisis-support deployment.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// EventAssessmentRecorded is logged for every completed risk assessment.
	EventAssessmentRecorded AuditEventType = "crisis.assessment_recorded"
	// EventCrisisDetected is logged when a high or critical assessment opens a crisis event.
	EventCrisisDetected AuditEventType = "crisis.detected"
	// EventProfessionalNotified is logged when the on-call team is alerted.
	EventProfessionalNotified AuditEventType = "crisis.professional_notified"
	// EventEmergencyContacted is logged when emergency services are contacted.
	EventEmergencyContacted AuditEventType = "crisis.emergency_contacted"
	// EventFollowUpScheduled is logged when a follow-up check is scheduled.
	EventFollowUpScheduled AuditEventType = "crisis.follow_up_scheduled"
	// EventFollowUpEscalated is logged when an overdue follow-up is escalated.
	EventFollowUpEscalated AuditEventType = "crisis.follow_up_escalated"
	// EventCrisisResolved is logged when a clinician resolves a crisis event.
	EventCrisisResolved AuditEventType = "crisis.resolved"
	// EventStageFailed is logged when one intervention stage fails and is skipped.
	EventStageFailed AuditEventType = "crisis.stage_failed"
	// EventAnalysisFallback is logged when analysis itself broke and the
	// conservative manual-review assessment was returned.
	EventAnalysisFallback AuditEventType = "crisis.analysis_fallback"
	// EventNoticeSent is logged when a safety notice is appended to a message.
	EventNoticeSent AuditEventType = "compliance.notice_sent"
)

// AuditEvent represents an immutable audit record. Message text is never
// stored here; the trail records decisions, not conversation content.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	UserID        string          `json:"user_id"`
	SessionID     string          `json:"session_id,omitempty"`
	CrisisEventID string          `json:"crisis_event_id,omitempty"`
	AssessmentID  string          `json:"assessment_id,omitempty"`
	RiskLevel     string          `json:"risk_level,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For assessments and detections
	Confidence float64  `json:"confidence,omitempty"`
	Triggers   []string `json:"triggers,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Escalated  bool     `json:"escalated,omitempty"`

	// For professional notification
	Channel    string `json:"channel,omitempty"`
	Recipients int    `json:"recipients,omitempty"`

	// For emergency contact
	EmergencyTrigger string `json:"emergency_trigger,omitempty"`

	// For follow-ups
	FollowUpID string `json:"follow_up_id,omitempty"`
	DueAt      string `json:"due_at,omitempty"`
	OverdueBy  string `json:"overdue_by,omitempty"`

	// For resolution
	ResolvedBy string `json:"resolved_by,omitempty"`
	Resolution string `json:"resolution,omitempty"`

	// For stage failures and fallbacks
	Stage       string `json:"stage,omitempty"`
	FailureInfo string `json:"failure_info,omitempty"`

	// For safety notices
	NoticeLevel string `json:"notice_level,omitempty"`
	NoticeText  string `json:"notice_text,omitempty"`
}

// AuditService handles audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, user_id, session_id, crisis_event_id,
			assessment_id, risk_level, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.UserID,
		nullString(event.SessionID),
		nullString(event.CrisisEventID),
		nullString(event.AssessmentID),
		nullString(event.RiskLevel),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogAssessmentRecorded logs one completed risk assessment.
func (s *AuditService) LogAssessmentRecorded(ctx context.Context, userID, sessionID, assessmentID, riskLevel string, confidence float64, triggers []string, escalated bool) error {
	details := AuditDetails{
		Confidence: confidence,
		Triggers:   triggers,
		Escalated:  escalated,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventAssessmentRecorded,
		UserID:       userID,
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		RiskLevel:    riskLevel,
		Details:      detailsJSON,
	})
}

// LogCrisisDetected logs the opening of a crisis event.
func (s *AuditService) LogCrisisDetected(ctx context.Context, userID, sessionID, crisisEventID, assessmentID, riskLevel string, confidence float64, actions []string) error {
	details := AuditDetails{
		Confidence: confidence,
		Actions:    actions,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventCrisisDetected,
		UserID:        userID,
		SessionID:     sessionID,
		CrisisEventID: crisisEventID,
		AssessmentID:  assessmentID,
		RiskLevel:     riskLevel,
		Details:       detailsJSON,
	})
}

// LogProfessionalNotified logs that the on-call team was alerted for an event.
func (s *AuditService) LogProfessionalNotified(ctx context.Context, userID, crisisEventID, riskLevel, channel string, recipients int) error {
	details := AuditDetails{
		Channel:    channel,
		Recipients: recipients,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventProfessionalNotified,
		UserID:        userID,
		CrisisEventID: crisisEventID,
		RiskLevel:     riskLevel,
		Details:       detailsJSON,
	})
}

// LogEmergencyContacted logs a synchronous emergency-services escalation.
func (s *AuditService) LogEmergencyContacted(ctx context.Context, userID, crisisEventID, trigger string) error {
	details := AuditDetails{
		EmergencyTrigger: trigger,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventEmergencyContacted,
		UserID:        userID,
		CrisisEventID: crisisEventID,
		Details:       detailsJSON,
	})
}

// LogFollowUpScheduled logs a scheduled follow-up check.
func (s *AuditService) LogFollowUpScheduled(ctx context.Context, userID, crisisEventID, followUpID string, dueAt time.Time) error {
	details := AuditDetails{
		FollowUpID: followUpID,
		DueAt:      dueAt.UTC().Format(time.RFC3339),
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventFollowUpScheduled,
		UserID:        userID,
		CrisisEventID: crisisEventID,
		Details:       detailsJSON,
	})
}

// LogFollowUpEscalated logs an overdue follow-up escalation.
func (s *AuditService) LogFollowUpEscalated(ctx context.Context, userID, crisisEventID, followUpID string, overdueBy time.Duration) error {
	details := AuditDetails{
		FollowUpID: followUpID,
		OverdueBy:  overdueBy.String(),
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventFollowUpEscalated,
		UserID:        userID,
		CrisisEventID: crisisEventID,
		Details:       detailsJSON,
	})
}

// LogCrisisResolved logs a clinician resolving a crisis event.
func (s *AuditService) LogCrisisResolved(ctx context.Context, userID, crisisEventID, resolvedBy, resolution string) error {
	details := AuditDetails{
		ResolvedBy: resolvedBy,
		Resolution: resolution,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventCrisisResolved,
		UserID:        userID,
		CrisisEventID: crisisEventID,
		Details:       detailsJSON,
	})
}

// LogStageFailure logs one intervention stage failing and being skipped.
func (s *AuditService) LogStageFailure(ctx context.Context, userID, assessmentID, stage, failureInfo string) error {
	details := AuditDetails{
		Stage:       stage,
		FailureInfo: failureInfo,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:    EventStageFailed,
		UserID:       userID,
		AssessmentID: assessmentID,
		Details:      detailsJSON,
	})
}

// LogAnalysisFallback logs that analysis broke and the conservative
// manual-review assessment was returned instead.
func (s *AuditService) LogAnalysisFallback(ctx context.Context, userID, sessionID, failureInfo string) error {
	details := AuditDetails{
		FailureInfo: failureInfo,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventAnalysisFallback,
		UserID:    userID,
		SessionID: sessionID,
		Details:   detailsJSON,
	})
}

// LogNoticeSent logs a safety notice being appended to an outbound message.
func (s *AuditService) LogNoticeSent(ctx context.Context, userID, sessionID, level, noticeText string) error {
	details := AuditDetails{
		NoticeLevel: level,
		NoticeText:  noticeText,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventNoticeSent,
		UserID:    userID,
		SessionID: sessionID,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, user_id, session_id, crisis_event_id,
			   assessment_id, risk_level, details, created_at
		FROM audit_events
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.CrisisEventID != "" {
		query += fmt.Sprintf(" AND crisis_event_id = $%d", argIdx)
		args = append(args, filter.CrisisEventID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var sessionID, crisisEventID, assessmentID, riskLevel sql.NullString
		err := rows.Scan(
			&e.ID, &e.EventType, &e.UserID, &sessionID, &crisisEventID,
			&assessmentID, &riskLevel, &e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.SessionID = sessionID.String
		e.CrisisEventID = crisisEventID.String
		e.AssessmentID = assessmentID.String
		e.RiskLevel = riskLevel.String
		events = append(events, e)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	UserID        string
	CrisisEventID string
	EventType     AuditEventType
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
	Offset        int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
