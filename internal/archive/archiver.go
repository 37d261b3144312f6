package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/wellness-ai-platform/internal/crisis"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// defaultHistoryWindow bounds how many session messages one record carries.
const defaultHistoryWindow = 50

// assessmentSource loads persisted assessment and event rows.
type assessmentSource interface {
	GetAssessment(ctx context.Context, id uuid.UUID) (crisis.CrisisAssessment, error)
	GetEvent(ctx context.Context, id uuid.UUID) (crisis.CrisisEvent, error)
}

// historySource reads recent session messages.
type historySource interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]crisis.Message, error)
}

// Archiver bundles one assessment with its intervention outcome and session
// history, scrubs the bundle, and hands it to the Store. The crisis worker
// calls it for every assessment at or above high risk.
type Archiver struct {
	store       *Store
	assessments assessmentSource
	history     historySource
	window      int
	logger      *logging.Logger
}

type ArchiverOption func(*Archiver)

// WithHistorySource configures session history loading. Without it, records
// are archived with no messages.
func WithHistorySource(src historySource) ArchiverOption {
	return func(a *Archiver) {
		a.history = src
	}
}

// WithHistoryWindow overrides the per-record message bound.
func WithHistoryWindow(n int) ArchiverOption {
	return func(a *Archiver) {
		if n > 0 {
			a.window = n
		}
	}
}

func NewArchiver(store *Store, assessments assessmentSource, logger *logging.Logger, opts ...ArchiverOption) *Archiver {
	if store == nil {
		panic("archive: store cannot be nil")
	}
	if assessments == nil {
		panic("archive: assessment source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Archiver{
		store:       store,
		assessments: assessments,
		window:      defaultHistoryWindow,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveAssessment builds and stores the scrubbed record for one assessment.
// A crisis event reference that does not resolve degrades the bundle rather
// than failing it; a transient store error is returned so the queue retries.
func (a *Archiver) ArchiveAssessment(ctx context.Context, assessmentID, crisisEventID, userID, sessionID string) error {
	if !a.store.Enabled() {
		return nil
	}

	id, err := uuid.Parse(assessmentID)
	if err != nil {
		return fmt.Errorf("archive: parse assessment id %q: %w", assessmentID, err)
	}

	rec, err := a.assessments.GetAssessment(ctx, id)
	if err != nil {
		return fmt.Errorf("archive: load assessment %s: %w", assessmentID, err)
	}

	event, err := a.loadEvent(ctx, crisisEventID)
	if err != nil {
		return err
	}

	record := &AssessmentRecord{
		Version:            "1.0",
		AssessmentID:       rec.ID.String(),
		UserHash:           HashIdentifier(userID),
		SessionHash:        HashIdentifier(sessionID),
		ArchivedAt:         time.Now().UTC(),
		RiskLevel:          rec.RiskLevel.String(),
		Confidence:         rec.Confidence,
		Triggers:           rec.Triggers,
		RecommendedActions: rec.RecommendedActions,
		UrgencySeconds:     rec.UrgencySeconds,
		Summary:            rec.Summary,
		Outcome:            outcomeFor(event),
		Messages:           a.loadMessages(ctx, sessionID),
	}
	record.MessageCount = len(record.Messages)
	if event != nil {
		record.CrisisEventID = event.ID.String()
	}

	return a.store.ArchiveRecord(ctx, record)
}

// loadEvent resolves the crisis event row when one exists. An unresolvable
// reference is normal: when event creation failed during intervention, later
// stages carry the assessment id in its place.
func (a *Archiver) loadEvent(ctx context.Context, ref string) (*crisis.CrisisEvent, error) {
	if ref == "" {
		return nil, nil
	}
	eventID, err := uuid.Parse(ref)
	if err != nil {
		a.logger.Warn("unparseable crisis event reference, archiving without outcome", "ref", ref)
		return nil, nil
	}
	event, err := a.assessments.GetEvent(ctx, eventID)
	if errors.Is(err, crisis.ErrEventNotFound) {
		a.logger.Warn("crisis event not found, archiving without outcome", "crisis_event_id", ref)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: load event %s: %w", ref, err)
	}
	return &event, nil
}

// loadMessages returns the scrubbed session window. History lives in Redis
// with a short TTL, so an unavailable or expired history archives as an
// empty window rather than blocking the record.
func (a *Archiver) loadMessages(ctx context.Context, sessionID string) []Message {
	msgs := []Message{}
	if a.history == nil || sessionID == "" {
		return msgs
	}
	recent, err := a.history.Recent(ctx, sessionID, a.window)
	if err != nil {
		a.logger.Warn("session history unavailable, archiving without messages",
			"session_id_hash", HashIdentifier(sessionID), "error", err)
		return msgs
	}
	for _, m := range recent {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt})
	}
	ScrubMessages(msgs)
	return msgs
}

// outcomeFor flattens the crisis event into the archived outcome. The
// disposition names the strongest action the protocol took so manifests can
// be triaged without opening records.
func outcomeFor(event *crisis.CrisisEvent) Outcome {
	if event == nil {
		return Outcome{Disposition: "assessment_only"}
	}
	out := Outcome{
		Disposition:                "intervention_recorded",
		InterventionType:           event.InterventionType,
		ResourcesProvided:          event.ResourcesProvided,
		ProfessionalNotified:       event.ProfessionalNotified,
		EmergencyServicesContacted: event.EmergencyServicesContacted,
		FollowUpRequired:           event.FollowUpRequired,
		Resolved:                   event.ResolvedAt != nil,
		Resolution:                 event.Resolution,
	}
	switch {
	case event.EmergencyServicesContacted:
		out.Disposition = "emergency_escalated"
	case event.ProfessionalNotified:
		out.Disposition = "professional_alerted"
	case len(event.ResourcesProvided) > 0:
		out.Disposition = "resources_provided"
	}
	return out
}
