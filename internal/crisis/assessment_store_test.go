package crisis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertAssessment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO crisis_assessments").
		WithArgs(pgxmock.AnyArg(), "user-1", "sess-1", "msg-1", "high", 0.82,
			pgxmock.AnyArg(), pgxmock.AnyArg(), 300, "weighted score 2.80 from 4 signals").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	err = store.InsertAssessment(context.Background(), nil, CrisisAssessment{
		UserID:             "user-1",
		SessionID:          "sess-1",
		MessageID:          "msg-1",
		RiskLevel:          RiskHigh,
		Confidence:         0.82,
		Triggers:           []string{"hopeless"},
		RecommendedActions: []string{ActionProfessionalAlert},
		UrgencySeconds:     300,
		Summary:            "weighted score 2.80 from 4 signals",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO crisis_events").
		WithArgs(pgxmock.AnyArg(), "user-1", "sess-1", "msg-1", "critical", pgxmock.AnyArg(),
			0.9, true, "", pgxmock.AnyArg(), false, false, false, "crisis_pipeline").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	id, err := store.InsertEvent(context.Background(), nil, CrisisEvent{
		UserID:                "user-1",
		SessionID:             "sess-1",
		MessageID:             "msg-1",
		RiskLevel:             RiskCritical,
		TriggerKeywords:       []string{"end it all"},
		ConfidenceScore:       0.9,
		InterventionTriggered: true,
		DetectedBy:            "crisis_pipeline",
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateEventOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectExec("UPDATE crisis_events").
		WithArgs(eventID, "crisis_protocol", pgxmock.AnyArg(), true, false, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	err = store.UpdateEventOutcome(context.Background(), eventID, EventOutcome{
		InterventionType:     "crisis_protocol",
		ResourcesProvided:    []string{ActionCrisisHotline},
		ProfessionalNotified: true,
		FollowUpRequired:     true,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateEventOutcomeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE crisis_events").
		WithArgs(pgxmock.AnyArg(), "", pgxmock.AnyArg(), false, false, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewStore(mock)
	err = store.UpdateEventOutcome(context.Background(), uuid.New(), EventOutcome{})

	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestStore_ResolveEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectExec("UPDATE crisis_events").
		WithArgs(eventID, "clinician-7", "user contacted, safety plan in place").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	err = store.ResolveEvent(context.Background(), eventID, "clinician-7", "user contacted, safety plan in place")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ResolveEventAlreadyResolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectExec("UPDATE crisis_events").
		WithArgs(eventID, "clinician-7", "noted").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT 1 FROM crisis_events").
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	store := NewStore(mock)
	err = store.ResolveEvent(context.Background(), eventID, "clinician-7", "noted")

	assert.ErrorIs(t, err, ErrEventResolved)
}

func TestStore_ResolveEventNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectExec("UPDATE crisis_events").
		WithArgs(eventID, "clinician-7", "noted").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT 1 FROM crisis_events").
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	store := NewStore(mock)
	err = store.ResolveEvent(context.Background(), eventID, "clinician-7", "noted")

	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestStore_GetAssessment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assessmentID := uuid.New()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM crisis_assessments").
		WithArgs(assessmentID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "session_id", "message_id", "risk_level", "confidence",
			"triggers", "recommended_actions", "urgency_seconds", "summary", "created_at",
		}).AddRow(
			assessmentID, "user-1", "sess-1", "msg-1", "high", 0.82,
			[]byte(`["hopeless"]`), []byte(`["professional_alert"]`), 300, "weighted score 2.80 from 4 signals", created,
		))

	store := NewStore(mock)
	rec, err := store.GetAssessment(context.Background(), assessmentID)

	require.NoError(t, err)
	assert.Equal(t, assessmentID, rec.ID)
	assert.Equal(t, RiskHigh, rec.RiskLevel)
	assert.Equal(t, []string{"hopeless"}, rec.Triggers)
	assert.Equal(t, []string{ActionProfessionalAlert}, rec.RecommendedActions)
	assert.Equal(t, created, rec.CreatedAt)
}

func TestStore_GetAssessmentNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assessmentID := uuid.New()
	mock.ExpectQuery("FROM crisis_assessments").
		WithArgs(assessmentID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "session_id", "message_id", "risk_level", "confidence",
			"triggers", "recommended_actions", "urgency_seconds", "summary", "created_at",
		}))

	store := NewStore(mock)
	_, err = store.GetAssessment(context.Background(), assessmentID)

	assert.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestStore_CountEventsSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	store := NewStore(mock)
	count, err := store.CountEventsSince(context.Background(), "user-1", since)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_ListUnresolvedEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM crisis_events").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "session_id", "message_id", "risk_level", "trigger_keywords",
			"confidence_score", "intervention_triggered", "intervention_type",
			"resources_provided", "professional_notified", "emergency_services_contacted",
			"follow_up_required", "resolved_at", "resolved_by", "resolution", "detected_by",
			"created_at", "updated_at",
		}).AddRow(
			eventID, "user-1", "sess-1", "msg-1", "high", []byte(`["hopeless"]`),
			0.82, true, nil,
			[]byte(`["crisis_hotline"]`), true, false,
			true, nil, nil, nil, "crisis_pipeline",
			created, created,
		))

	store := NewStore(mock)
	events, err := store.ListUnresolvedEvents(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, eventID, event.ID)
	assert.Equal(t, RiskHigh, event.RiskLevel)
	assert.Equal(t, []string{"hopeless"}, event.TriggerKeywords)
	assert.Equal(t, []string{"crisis_hotline"}, event.ResourcesProvided)
	assert.True(t, event.ProfessionalNotified)
	assert.Nil(t, event.ResolvedAt)
	assert.Empty(t, event.InterventionType)
}
