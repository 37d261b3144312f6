package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "user:u-1", "crisis.assessment.created.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env, err := store.Insert(context.Background(), "user:u-1", "msg-1", AssessmentCreatedV1{
		AssessmentID: "assess-1",
		UserID:       "u-1",
		RiskLevel:    "medium",
		Confidence:   0.6,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if env.EventID == uuid.Nil {
		t.Fatal("expected generated event id")
	}

	now := time.Now().UTC()
	id := uuid.New()
	payload := []byte(`{"event_id":"` + id.String() + `","event_type":"crisis.assessment.created.v1","aggregate":"user:u-1","timestamp":1,"payload":{"user_id":"u-1"}}`)
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(id, "user:u-1", "crisis.assessment.created.v1", payload, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %#v", entries)
	}
	decoded, err := entries[0].DecodeEnvelope()
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded.EventType != "crisis.assessment.created.v1" || decoded.Aggregate != "user:u-1" {
		t.Fatalf("unexpected envelope: %#v", decoded)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type recordingHandler struct {
	entries  []OutboxEntry
	failType string
}

func (h *recordingHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	h.entries = append(h.entries, entry)
	if h.failType != "" && entry.EventType == h.failType {
		return errors.New("transport down")
	}
	return nil
}

func TestDelivererSkipsFailedHandoffs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)
	handler := &recordingHandler{failType: "crisis.professional.notified.v1"}
	deliverer := NewDeliverer(store, handler, nil).WithBatchSize(10).WithInterval(time.Millisecond)

	now := time.Now().UTC()
	okID := uuid.New()
	failID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(okID, "user:u-1", "crisis.assessment.created.v1", []byte(`{}`), now).
		AddRow(failID, "user:u-1", "crisis.professional.notified.v1", []byte(`{}`), now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox").WithArgs(okID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	deliverer.drain(context.Background())

	if len(handler.entries) != 2 {
		t.Fatalf("expected handler to see both entries, got %d", len(handler.entries))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
