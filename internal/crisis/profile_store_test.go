package crisis

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileStore_InsertMoodEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	recorded := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO mood_entries").
		WithArgs("user-1", 4, pgxmock.AnyArg(), recorded).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewProfileStore(mock)
	err = store.InsertMoodEntry(context.Background(), "user-1", MoodEntry{
		Score:        4,
		SleepQuality: 3,
		RecordedAt:   recorded,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_InsertMoodEntryRejectsOutOfRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewProfileStore(mock)

	assert.Error(t, store.InsertMoodEntry(context.Background(), "user-1", MoodEntry{Score: 0}))
	assert.Error(t, store.InsertMoodEntry(context.Background(), "user-1", MoodEntry{Score: 11}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_MoodEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM mood_entries").
		WithArgs("user-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"score", "sleep_quality", "recorded_at"}).
			AddRow(5, 0, since.Add(24*time.Hour)).
			AddRow(3, 2, since.Add(48*time.Hour)))

	store := NewProfileStore(mock)
	entries, err := store.MoodEntries(context.Background(), "user-1", since)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 5, entries[0].Score)
	assert.Zero(t, entries[0].SleepQuality)
	assert.Equal(t, 2, entries[1].SleepQuality)
	assert.True(t, entries[0].RecordedAt.Before(entries[1].RecordedAt))
}

func TestProfileStore_LatestMood(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT score FROM mood_entries").
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"score"}).AddRow(6))

	store := NewProfileStore(mock)
	score, err := store.LatestMood(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 6, *score)
}

func TestProfileStore_LatestMoodNoRecentCheckIn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT score FROM mood_entries").
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"score"}))

	store := NewProfileStore(mock)
	score, err := store.LatestMood(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestProfileStore_TouchSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("sess-1", "user-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewProfileStore(mock)
	require.NoError(t, store.TouchSession(context.Background(), "sess-1", "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_CountSessionsSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	store := NewProfileStore(mock)
	count, err := store.CountSessionsSince(context.Background(), "user-1", since)

	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestProfileStore_RiskFactors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT risk_factors FROM user_risk_profiles").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"risk_factors"}).
			AddRow([]byte(`["substance_abuse","social_isolation"]`)))

	store := NewProfileStore(mock)
	factors, err := store.RiskFactors(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, []string{RiskFactorSubstanceAbuse, RiskFactorSocialIsolation}, factors)
}

func TestProfileStore_RiskFactorsNoProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT risk_factors FROM user_risk_profiles").
		WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"risk_factors"}))

	store := NewProfileStore(mock)
	factors, err := store.RiskFactors(context.Background(), "user-2")

	require.NoError(t, err)
	assert.Nil(t, factors)
}

func TestProfileStore_SetRiskFactors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO user_risk_profiles").
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewProfileStore(mock)
	err = store.SetRiskFactors(context.Background(), "user-1", []string{RiskFactorPreviousAttempts})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
