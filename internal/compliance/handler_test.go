package compliance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_QueryAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "event_type", "user_id", "session_id", "crisis_event_id",
		"assessment_id", "risk_level", "details", "created_at",
	}).AddRow(
		uuid.New(), EventCrisisDetected, "user-123", "sess-456", nil,
		"assess-123", "critical", []byte(`{"confidence":0.92}`), time.Now().UTC(),
	)
	mock.ExpectQuery("SELECT (.+) FROM audit_events").WillReturnRows(rows)

	handler := NewHandler(NewAuditService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/audit?user_id=user-123&event_type=crisis.detected", nil)
	w := httptest.NewRecorder()

	handler.QueryAudit(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []AuditEvent `json:"events"`
		Count  int          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, EventCrisisDetected, resp.Events[0].EventType)
	assert.Equal(t, "critical", resp.Events[0].RiskLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_QueryAudit_RequiresUser(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(NewAuditService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	w := httptest.NewRecorder()

	handler.QueryAudit(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_QueryAudit_BadTimeWindow(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(NewAuditService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/audit?user_id=user-1&start=yesterday", nil)
	w := httptest.NewRecorder()

	handler.QueryAudit(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_QueryAudit_EmptyTrail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM audit_events").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "user_id", "session_id", "crisis_event_id",
			"assessment_id", "risk_level", "details", "created_at",
		}))

	handler := NewHandler(NewAuditService(db), nil)

	req := httptest.NewRequest(http.MethodGet, "/audit?user_id=user-404", nil)
	w := httptest.NewRecorder()

	handler.QueryAudit(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"events":[]`)
}
