package archive

import "time"

// AssessmentRecord is the top-level structure archived to S3 for compliance
// retention. Identifiers that could name a person are hashed before the
// record leaves the process; message text is scrubbed.
type AssessmentRecord struct {
	Version       string    `json:"version"` // "1.0"
	AssessmentID  string    `json:"assessment_id"`
	CrisisEventID string    `json:"crisis_event_id,omitempty"`
	UserHash      string    `json:"user_hash"`    // sha256 of user id
	SessionHash   string    `json:"session_hash"` // sha256 of session id
	ArchivedAt    time.Time `json:"archived_at"`

	RiskLevel          string   `json:"risk_level"`
	Confidence         float64  `json:"confidence"`
	Triggers           []string `json:"triggers"`
	RecommendedActions []string `json:"recommended_actions"`
	UrgencySeconds     int      `json:"urgency_seconds"`
	Summary            string   `json:"summary"`

	Outcome      Outcome   `json:"outcome"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// Outcome records what the intervention protocol actually did, copied from
// the crisis event at archive time.
type Outcome struct {
	Disposition                string   `json:"disposition"` // assessment_only|intervention_recorded|resources_provided|professional_alerted|emergency_escalated
	InterventionType           string   `json:"intervention_type,omitempty"`
	ResourcesProvided          []string `json:"resources_provided,omitempty"`
	ProfessionalNotified       bool     `json:"professional_notified"`
	EmergencyServicesContacted bool     `json:"emergency_services_contacted"`
	FollowUpRequired           bool     `json:"follow_up_required"`
	Resolved                   bool     `json:"resolved"`
	Resolution                 string   `json:"resolution,omitempty"`
}

// Message is a single scrubbed conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one JSONL line in the monthly manifest file. It carries
// enough to find and triage records without opening them.
type ManifestEntry struct {
	AssessmentID       string `json:"assessment_id"`
	CrisisEventID      string `json:"crisis_event_id,omitempty"`
	S3Key              string `json:"s3_key"`
	RiskLevel          string `json:"risk_level"`
	Disposition        string `json:"disposition"`
	EmergencyContacted bool   `json:"emergency_contacted"`
	ArchivedAt         string `json:"archived_at"`
	MessageCount       int    `json:"message_count"`
}
