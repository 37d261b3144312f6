package crisis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEventNotFound      = errors.New("crisis: event not found")
	ErrEventResolved      = errors.New("crisis: event already resolved")
	ErrAssessmentNotFound = errors.New("crisis: assessment not found")
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists crisis assessments and crisis events in Postgres.
// Assessments are append-only; events are mutated only to record
// intervention outcomes and resolution.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("crisis: store pool cannot be nil")
	}
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// InsertAssessment writes one fused assessment record. Pass a transaction as
// q to make the write atomic with an outbox entry; nil q uses the pool.
func (s *Store) InsertAssessment(ctx context.Context, q Querier, rec CrisisAssessment) error {
	if q == nil {
		q = s.pool
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	triggers, err := json.Marshal(orEmpty(rec.Triggers))
	if err != nil {
		return fmt.Errorf("crisis: marshal triggers: %w", err)
	}
	actions, err := json.Marshal(orEmpty(rec.RecommendedActions))
	if err != nil {
		return fmt.Errorf("crisis: marshal actions: %w", err)
	}
	query := `
		INSERT INTO crisis_assessments (
			id, user_id, session_id, message_id, risk_level, confidence,
			triggers, recommended_actions, urgency_seconds, summary
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err = q.Exec(ctx, query, rec.ID, rec.UserID, rec.SessionID, rec.MessageID,
		rec.RiskLevel.String(), rec.Confidence, triggers, actions, rec.UrgencySeconds, rec.Summary)
	if err != nil {
		return fmt.Errorf("crisis: insert assessment: %w", err)
	}
	return nil
}

// InsertEvent creates the intervention record when risk crosses the
// high/critical threshold.
func (s *Store) InsertEvent(ctx context.Context, q Querier, event CrisisEvent) (uuid.UUID, error) {
	if q == nil {
		q = s.pool
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	keywords, err := json.Marshal(orEmpty(event.TriggerKeywords))
	if err != nil {
		return uuid.Nil, fmt.Errorf("crisis: marshal trigger keywords: %w", err)
	}
	resources, err := json.Marshal(orEmpty(event.ResourcesProvided))
	if err != nil {
		return uuid.Nil, fmt.Errorf("crisis: marshal resources: %w", err)
	}
	query := `
		INSERT INTO crisis_events (
			id, user_id, session_id, message_id, risk_level, trigger_keywords,
			confidence_score, intervention_triggered, intervention_type,
			resources_provided, professional_notified, emergency_services_contacted,
			follow_up_required, detected_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`
	_, err = q.Exec(ctx, query, event.ID, event.UserID, event.SessionID, event.MessageID,
		event.RiskLevel.String(), keywords, event.ConfidenceScore, event.InterventionTriggered,
		event.InterventionType, resources, event.ProfessionalNotified,
		event.EmergencyServicesContacted, event.FollowUpRequired, event.DetectedBy)
	if err != nil {
		return uuid.Nil, fmt.Errorf("crisis: insert event: %w", err)
	}
	return event.ID, nil
}

// EventOutcome carries the flags the orchestrator learned while running the
// intervention protocol.
type EventOutcome struct {
	InterventionType           string   `json:"intervention_type"`
	ResourcesProvided          []string `json:"resources_provided"`
	ProfessionalNotified       bool     `json:"professional_notified"`
	EmergencyServicesContacted bool     `json:"emergency_services_contacted"`
	FollowUpRequired           bool     `json:"follow_up_required"`
}

func (s *Store) UpdateEventOutcome(ctx context.Context, id uuid.UUID, outcome EventOutcome) error {
	resources, err := json.Marshal(orEmpty(outcome.ResourcesProvided))
	if err != nil {
		return fmt.Errorf("crisis: marshal resources: %w", err)
	}
	query := `
		UPDATE crisis_events
		SET intervention_type = $2,
			resources_provided = $3,
			professional_notified = $4,
			emergency_services_contacted = $5,
			follow_up_required = $6,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, outcome.InterventionType, resources,
		outcome.ProfessionalNotified, outcome.EmergencyServicesContacted, outcome.FollowUpRequired)
	if err != nil {
		return fmt.Errorf("crisis: update event outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ResolveEvent records resolution once. A second resolution attempt returns
// ErrEventResolved rather than silently overwriting the first.
func (s *Store) ResolveEvent(ctx context.Context, id uuid.UUID, resolvedBy, resolution string) error {
	query := `
		UPDATE crisis_events
		SET resolved_at = now(),
			resolved_by = $2,
			resolution = $3,
			updated_at = now()
		WHERE id = $1 AND resolved_at IS NULL
	`
	tag, err := s.pool.Exec(ctx, query, id, resolvedBy, resolution)
	if err != nil {
		return fmt.Errorf("crisis: resolve event: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists int
	err = s.pool.QueryRow(ctx, `SELECT 1 FROM crisis_events WHERE id = $1`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("crisis: resolve event lookup: %w", err)
	}
	return ErrEventResolved
}

// CountEventsSince reports how many crisis events a user accumulated in the
// window; the sentiment analyzer reads this as the recent-crisis-flag count.
func (s *Store) CountEventsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM crisis_events WHERE user_id = $1 AND created_at >= $2`
	if err := s.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("crisis: count events: %w", err)
	}
	return count, nil
}

const eventColumns = `
	id, user_id, session_id, message_id, risk_level, trigger_keywords,
	confidence_score, intervention_triggered, intervention_type,
	resources_provided, professional_notified, emergency_services_contacted,
	follow_up_required, resolved_at, resolved_by, resolution, detected_by,
	created_at, updated_at
`

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (CrisisEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM crisis_events WHERE id = $1`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return CrisisEvent{}, fmt.Errorf("crisis: get event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return CrisisEvent{}, err
	}
	if len(events) == 0 {
		return CrisisEvent{}, ErrEventNotFound
	}
	return events[0], nil
}

func (s *Store) ListEventsByUser(ctx context.Context, userID string, limit int) ([]CrisisEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM crisis_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("crisis: list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListUnresolvedEvents(ctx context.Context, limit int) ([]CrisisEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM crisis_events
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("crisis: list unresolved events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListAssessmentsByUser(ctx context.Context, userID string, limit int) ([]CrisisAssessment, error) {
	query := `
		SELECT id, user_id, session_id, message_id, risk_level, confidence,
			triggers, recommended_actions, urgency_seconds, summary, created_at
		FROM crisis_assessments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("crisis: list assessments: %w", err)
	}
	defer rows.Close()

	var out []CrisisAssessment
	for rows.Next() {
		var rec CrisisAssessment
		var level string
		var triggers, actions []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.MessageID, &level, &rec.Confidence,
			&triggers, &actions, &rec.UrgencySeconds, &rec.Summary, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("crisis: scan assessment: %w", err)
		}
		if rec.RiskLevel, err = ParseRiskLevel(level); err != nil {
			return nil, fmt.Errorf("crisis: assessment %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(triggers, &rec.Triggers); err != nil {
			return nil, fmt.Errorf("crisis: decode triggers: %w", err)
		}
		if err := json.Unmarshal(actions, &rec.RecommendedActions); err != nil {
			return nil, fmt.Errorf("crisis: decode actions: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetAssessment loads one persisted assessment by id. The archiver reads
// through this when bundling records for cold storage.
func (s *Store) GetAssessment(ctx context.Context, id uuid.UUID) (CrisisAssessment, error) {
	query := `
		SELECT id, user_id, session_id, message_id, risk_level, confidence,
			triggers, recommended_actions, urgency_seconds, summary, created_at
		FROM crisis_assessments
		WHERE id = $1
	`
	var rec CrisisAssessment
	var level string
	var triggers, actions []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.MessageID,
		&level, &rec.Confidence, &triggers, &actions, &rec.UrgencySeconds, &rec.Summary, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CrisisAssessment{}, ErrAssessmentNotFound
		}
		return CrisisAssessment{}, fmt.Errorf("crisis: get assessment: %w", err)
	}
	if rec.RiskLevel, err = ParseRiskLevel(level); err != nil {
		return CrisisAssessment{}, fmt.Errorf("crisis: assessment %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(triggers, &rec.Triggers); err != nil {
		return CrisisAssessment{}, fmt.Errorf("crisis: decode triggers: %w", err)
	}
	if err := json.Unmarshal(actions, &rec.RecommendedActions); err != nil {
		return CrisisAssessment{}, fmt.Errorf("crisis: decode actions: %w", err)
	}
	return rec, nil
}

func scanEvents(rows pgx.Rows) ([]CrisisEvent, error) {
	var out []CrisisEvent
	for rows.Next() {
		var event CrisisEvent
		var level string
		var keywords, resources []byte
		var resolvedAt sql.NullTime
		var resolvedBy, resolution, interventionType sql.NullString
		if err := rows.Scan(&event.ID, &event.UserID, &event.SessionID, &event.MessageID, &level,
			&keywords, &event.ConfidenceScore, &event.InterventionTriggered, &interventionType,
			&resources, &event.ProfessionalNotified, &event.EmergencyServicesContacted,
			&event.FollowUpRequired, &resolvedAt, &resolvedBy, &resolution, &event.DetectedBy,
			&event.CreatedAt, &event.UpdatedAt); err != nil {
			return nil, fmt.Errorf("crisis: scan event: %w", err)
		}

		var err error
		if event.RiskLevel, err = ParseRiskLevel(level); err != nil {
			return nil, fmt.Errorf("crisis: event %s: %w", event.ID, err)
		}
		if err := json.Unmarshal(keywords, &event.TriggerKeywords); err != nil {
			return nil, fmt.Errorf("crisis: decode trigger keywords: %w", err)
		}
		if err := json.Unmarshal(resources, &event.ResourcesProvided); err != nil {
			return nil, fmt.Errorf("crisis: decode resources: %w", err)
		}
		if resolvedAt.Valid {
			value := resolvedAt.Time
			event.ResolvedAt = &value
		}
		event.ResolvedBy = resolvedBy.String
		event.Resolution = resolution.String
		event.InterventionType = interventionType.String

		out = append(out, event)
	}
	return out, rows.Err()
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
