package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for follow_ups.
type Store struct {
	db DB
}

// NewStore creates a new follow-up store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a new follow-up check.
func (s *Store) Create(ctx context.Context, f *FollowUp) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = StatusPending
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO follow_ups (id, crisis_event_id, user_id, session_id, risk_level, due_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.CrisisEventID, f.UserID, f.SessionID, f.RiskLevel,
		f.DueAt, string(f.Status), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("followup: create: %w", err)
	}
	return nil
}

// ListDue returns all pending follow-ups whose due_at is on or before the given time.
func (s *Store) ListDue(ctx context.Context, asOf time.Time) ([]FollowUp, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, crisis_event_id, user_id, session_id, risk_level, due_at, status, sent_at, completed_at, escalated_at, created_at, updated_at
		FROM follow_ups
		WHERE status = 'pending' AND due_at <= $1
		ORDER BY due_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("followup: list due: %w", err)
	}
	defer rows.Close()
	return scanFollowUps(rows)
}

// ListEscalatable returns sent high-risk follow-ups the user has not responded
// to by the cutoff time.
func (s *Store) ListEscalatable(ctx context.Context, cutoff time.Time) ([]FollowUp, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, crisis_event_id, user_id, session_id, risk_level, due_at, status, sent_at, completed_at, escalated_at, created_at, updated_at
		FROM follow_ups
		WHERE status = 'sent' AND due_at <= $1 AND risk_level IN ('high', 'critical')
		ORDER BY due_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("followup: list escalatable: %w", err)
	}
	defer rows.Close()
	return scanFollowUps(rows)
}

// ListByUser returns follow-ups for a user, newest due first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]FollowUp, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, crisis_event_id, user_id, session_id, risk_level, due_at, status, sent_at, completed_at, escalated_at, created_at, updated_at
		FROM follow_ups
		WHERE user_id = $1
		ORDER BY due_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("followup: list by user: %w", err)
	}
	defer rows.Close()
	return scanFollowUps(rows)
}

// MarkSent transitions a follow-up from pending → sent.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'sent', sent_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'pending'`, now, id)
	if err != nil {
		return fmt.Errorf("followup: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("followup: mark sent: no pending follow-up with id %s", id)
	}
	return nil
}

// MarkEscalated transitions a follow-up from sent → escalated.
func (s *Store) MarkEscalated(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'escalated', escalated_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'sent'`, now, id)
	if err != nil {
		return fmt.Errorf("followup: mark escalated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("followup: mark escalated: no sent follow-up with id %s", id)
	}
	return nil
}

// Complete transitions a follow-up → completed (user responded or a clinician
// closed it).
func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'completed', completed_at = $1, updated_at = $1
		WHERE id = $2 AND status IN ('pending', 'sent', 'escalated')`, now, id)
	if err != nil {
		return fmt.Errorf("followup: complete: %w", err)
	}
	return nil
}

// CompleteForUser completes all sent or escalated follow-ups for a user.
// Any message from the user counts as engagement with the check-in.
func (s *Store) CompleteForUser(ctx context.Context, userID string) (int64, error) {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'completed', completed_at = $1, updated_at = $1
		WHERE user_id = $2 AND status IN ('sent', 'escalated')`, now, userID)
	if err != nil {
		return 0, fmt.Errorf("followup: complete for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CancelForEvent cancels open follow-ups for a resolved crisis event.
func (s *Store) CancelForEvent(ctx context.Context, crisisEventID uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'canceled', updated_at = $1
		WHERE crisis_event_id = $2 AND status IN ('pending', 'sent')`, now, crisisEventID)
	if err != nil {
		return 0, fmt.Errorf("followup: cancel for event: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats returns aggregated follow-up metrics for the on-call dashboard.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	row := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'escalated') AS escalated
		FROM follow_ups`)

	var stats Stats
	err := row.Scan(&stats.PendingCount, &stats.SentCount, &stats.CompletedCount, &stats.EscalatedCount)
	if err != nil {
		return nil, fmt.Errorf("followup: stats: %w", err)
	}
	total := stats.SentCount + stats.CompletedCount + stats.EscalatedCount
	if total > 0 {
		stats.ResponsePct = float64(stats.CompletedCount) / float64(total) * 100
	}
	return &stats, nil
}

func scanFollowUps(rows pgx.Rows) ([]FollowUp, error) {
	var result []FollowUp
	for rows.Next() {
		var f FollowUp
		var status string
		err := rows.Scan(
			&f.ID, &f.CrisisEventID, &f.UserID, &f.SessionID, &f.RiskLevel,
			&f.DueAt, &status,
			&f.SentAt, &f.CompletedAt, &f.EscalatedAt,
			&f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("followup: scan follow-up: %w", err)
		}
		f.Status = Status(status)
		result = append(result, f)
	}
	return result, rows.Err()
}
