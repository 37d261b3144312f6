package followup

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a follow-up check.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCompleted Status = "completed"
	StatusEscalated Status = "escalated"
	StatusCanceled  Status = "canceled"
)

// FollowUp represents a scheduled wellness check after a crisis event.
type FollowUp struct {
	ID            uuid.UUID  `json:"id"`
	CrisisEventID uuid.UUID  `json:"crisis_event_id"`
	UserID        string     `json:"user_id"`
	SessionID     string     `json:"session_id"`
	RiskLevel     string     `json:"risk_level"`
	DueAt         time.Time  `json:"due_at"`
	Status        Status     `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	EscalatedAt   *time.Time `json:"escalated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Stats holds aggregated follow-up metrics for the on-call dashboard.
type Stats struct {
	PendingCount   int64   `json:"pending_count"`
	SentCount      int64   `json:"sent_count"`
	CompletedCount int64   `json:"completed_count"`
	EscalatedCount int64   `json:"escalated_count"`
	ResponsePct    float64 `json:"response_pct"`
}
