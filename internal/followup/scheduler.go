package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// Scheduler creates follow-up checks after crisis assessments.
type Scheduler struct {
	store  *Store
	logger *logging.Logger
}

// NewScheduler creates a follow-up scheduler.
func NewScheduler(store *Store, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{store: store, logger: logger}
}

// ScheduleInput contains the information needed to create a follow-up check.
type ScheduleInput struct {
	CrisisEventID uuid.UUID
	UserID        string
	SessionID     string
	RiskLevel     string
	DetectedAt    time.Time
}

// Schedule creates a follow-up check for an assessed user.
// Returns nil if the risk level has no check-in window.
func (s *Scheduler) Schedule(ctx context.Context, input ScheduleInput) (*FollowUp, error) {
	detectedAt := input.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	dueAt, ok := CheckInAfter(input.RiskLevel, detectedAt)
	if !ok {
		s.logger.Info("followup: no check-in window for risk level",
			"risk_level", input.RiskLevel,
			"user_id", input.UserID,
		)
		return nil, nil
	}

	f := &FollowUp{
		CrisisEventID: input.CrisisEventID,
		UserID:        input.UserID,
		SessionID:     input.SessionID,
		RiskLevel:     normalizeLevel(input.RiskLevel),
		DueAt:         dueAt,
		Status:        StatusPending,
	}

	if err := s.store.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("followup: schedule: %w", err)
	}

	s.logger.Info("followup: check-in scheduled",
		"id", f.ID,
		"user_id", input.UserID,
		"risk_level", f.RiskLevel,
		"due_at", dueAt.Format(time.RFC3339),
	)

	return f, nil
}
