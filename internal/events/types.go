package events

import "time"

// AssessmentCreatedV1 captures the fused result of a single message analysis.
type AssessmentCreatedV1 struct {
	AssessmentID       string    `json:"assessment_id"`
	UserID             string    `json:"user_id"`
	SessionID          string    `json:"session_id"`
	MessageID          string    `json:"message_id,omitempty"`
	RiskLevel          string    `json:"risk_level"`
	Confidence         float64   `json:"confidence"`
	Escalated          bool      `json:"escalated"`
	UrgencySeconds     int       `json:"urgency_seconds"`
	Triggers           []string  `json:"triggers,omitempty"`
	RecommendedActions []string  `json:"recommended_actions,omitempty"`
	AssessedAt         time.Time `json:"assessed_at"`
}

func (AssessmentCreatedV1) EventType() string {
	return "crisis.assessment.created.v1"
}

// InterventionTriggeredV1 signals that an assessment crossed the intervention
// threshold and a crisis event was opened.
type InterventionTriggeredV1 struct {
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id,omitempty"`
	RiskLevel     string    `json:"risk_level"`
	Confidence    float64   `json:"confidence"`
	Actions       []string  `json:"actions,omitempty"`
	TriggeredAt   time.Time `json:"triggered_at"`
}

func (InterventionTriggeredV1) EventType() string {
	return "crisis.intervention.triggered.v1"
}

// ProfessionalNotifiedV1 records an on-call clinician alert going out.
type ProfessionalNotifiedV1 struct {
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	RiskLevel     string    `json:"risk_level"`
	Channel       string    `json:"channel"`
	Recipients    int       `json:"recipients"`
	NotifiedAt    time.Time `json:"notified_at"`
}

func (ProfessionalNotifiedV1) EventType() string {
	return "crisis.professional.notified.v1"
}

// EmergencyEscalatedV1 records that emergency services were contacted for an
// imminent-danger trigger.
type EmergencyEscalatedV1 struct {
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	Trigger       string    `json:"trigger"`
	ContactedAt   time.Time `json:"contacted_at"`
}

func (EmergencyEscalatedV1) EventType() string {
	return "crisis.emergency.escalated.v1"
}

// FollowUpScheduledV1 records the wellness check queued after an intervention.
type FollowUpScheduledV1 struct {
	FollowUpID    string    `json:"follow_up_id"`
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	DueAt         time.Time `json:"due_at"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

func (FollowUpScheduledV1) EventType() string {
	return "crisis.follow_up.scheduled.v1"
}

// FollowUpDueV1 is emitted when a scheduled wellness check comes due, so the
// app can surface the check-in prompt to the user.
type FollowUpDueV1 struct {
	FollowUpID    string    `json:"follow_up_id"`
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	DueAt         time.Time `json:"due_at"`
	SentAt        time.Time `json:"sent_at"`
}

func (FollowUpDueV1) EventType() string {
	return "crisis.follow_up.due.v1"
}

// EventResolvedV1 records a clinician closing out a crisis event.
type EventResolvedV1 struct {
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	ResolvedBy    string    `json:"resolved_by"`
	Resolution    string    `json:"resolution"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

func (EventResolvedV1) EventType() string {
	return "crisis.event.resolved.v1"
}
