package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProfileStore reads and writes the behavioral side of a user's record:
// mood check-ins, session cadence, and the clinical risk-factor profile.
type ProfileStore struct {
	pool PgxPool
}

func NewProfileStore(pool PgxPool) *ProfileStore {
	if pool == nil {
		panic("crisis: profile store pool cannot be nil")
	}
	return &ProfileStore{pool: pool}
}

// InsertMoodEntry records one self-reported check-in. SleepQuality 0 is
// stored as NULL so unrecorded sleep never skews the sleep average.
func (s *ProfileStore) InsertMoodEntry(ctx context.Context, userID string, entry MoodEntry) error {
	if entry.Score < 1 || entry.Score > 10 {
		return fmt.Errorf("crisis: mood score %d out of range", entry.Score)
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	var sleep *int
	if entry.SleepQuality > 0 {
		sleep = &entry.SleepQuality
	}
	query := `
		INSERT INTO mood_entries (user_id, score, sleep_quality, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, userID, entry.Score, sleep, entry.RecordedAt); err != nil {
		return fmt.Errorf("crisis: insert mood entry: %w", err)
	}
	return nil
}

// MoodEntries returns check-ins since the cutoff, oldest first, which is the
// ordering the trend calculation expects.
func (s *ProfileStore) MoodEntries(ctx context.Context, userID string, since time.Time) ([]MoodEntry, error) {
	query := `
		SELECT score, COALESCE(sleep_quality, 0), recorded_at
		FROM mood_entries
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`
	rows, err := s.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("crisis: list mood entries: %w", err)
	}
	defer rows.Close()

	var out []MoodEntry
	for rows.Next() {
		var entry MoodEntry
		if err := rows.Scan(&entry.Score, &entry.SleepQuality, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("crisis: scan mood entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// LatestMood returns the most recent check-in score within the trailing day,
// or nil when the user has not checked in recently.
func (s *ProfileStore) LatestMood(ctx context.Context, userID string) (*int, error) {
	var score int
	query := `
		SELECT score FROM mood_entries
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	err := s.pool.QueryRow(ctx, query, userID, time.Now().UTC().Add(-24*time.Hour)).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("crisis: latest mood: %w", err)
	}
	return &score, nil
}

// TouchSession upserts the session row and refreshes its activity timestamp.
// Session cadence feeds the behavioral analyzer's withdrawal signal.
func (s *ProfileStore) TouchSession(ctx context.Context, sessionID, userID string) error {
	query := `
		INSERT INTO sessions (id, user_id, started_at, last_active_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (id) DO UPDATE SET last_active_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, sessionID, userID); err != nil {
		return fmt.Errorf("crisis: touch session: %w", err)
	}
	return nil
}

func (s *ProfileStore) CountSessionsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND started_at >= $2`
	if err := s.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("crisis: count sessions: %w", err)
	}
	return count, nil
}

// RiskFactors returns the user's clinical risk-factor tags; a user without a
// profile has none.
func (s *ProfileStore) RiskFactors(ctx context.Context, userID string) ([]string, error) {
	var raw []byte
	query := `SELECT risk_factors FROM user_risk_profiles WHERE user_id = $1`
	err := s.pool.QueryRow(ctx, query, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("crisis: risk factors: %w", err)
	}

	var factors []string
	if err := json.Unmarshal(raw, &factors); err != nil {
		return nil, fmt.Errorf("crisis: decode risk factors: %w", err)
	}
	return factors, nil
}

func (s *ProfileStore) SetRiskFactors(ctx context.Context, userID string, factors []string) error {
	raw, err := json.Marshal(orEmpty(factors))
	if err != nil {
		return fmt.Errorf("crisis: marshal risk factors: %w", err)
	}
	query := `
		INSERT INTO user_risk_profiles (user_id, risk_factors, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET risk_factors = EXCLUDED.risk_factors, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, userID, raw); err != nil {
		return fmt.Errorf("crisis: set risk factors: %w", err)
	}
	return nil
}
