package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	defaultMoodDays  = 30
)

// analysisRunner runs one message through detection and intervention inline.
type analysisRunner interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error)
}

// analysisEnqueuer hands analysis requests to the worker fleet.
type analysisEnqueuer interface {
	EnqueueAnalysis(ctx context.Context, jobID string, req AnalyzeRequest) (string, error)
}

// eventStore is the slice of Store the HTTP surface uses.
type eventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (CrisisEvent, error)
	ListEventsByUser(ctx context.Context, userID string, limit int) ([]CrisisEvent, error)
	ListUnresolvedEvents(ctx context.Context, limit int) ([]CrisisEvent, error)
	ListAssessmentsByUser(ctx context.Context, userID string, limit int) ([]CrisisAssessment, error)
	ResolveEvent(ctx context.Context, id uuid.UUID, resolvedBy, resolution string) error
}

// profileReader records check-ins and maintains the clinical risk profile.
type profileReader interface {
	InsertMoodEntry(ctx context.Context, userID string, entry MoodEntry) error
	MoodEntries(ctx context.Context, userID string, since time.Time) ([]MoodEntry, error)
	RiskFactors(ctx context.Context, userID string) ([]string, error)
	SetRiskFactors(ctx context.Context, userID string, factors []string) error
}

// followUpCanceler voids open follow-up checks when their event resolves.
type followUpCanceler interface {
	CancelForEvent(ctx context.Context, crisisEventID uuid.UUID) (int64, error)
}

// Handler exposes the crisis API: message analysis (inline and queued), the
// assessment and event history, clinician resolution of open events, and the
// behavioral inputs the analyzers read (mood check-ins, risk profiles).
type Handler struct {
	pipeline  analysisRunner
	enqueuer  analysisEnqueuer
	jobs      JobRecorder
	store     eventStore
	profiles  profileReader
	followups followUpCanceler
	outbox    eventAppender
	audit     *compliance.AuditService
	logger    *logging.Logger
}

// HandlerOption configures optional resolution side effects.
type HandlerOption func(*Handler)

// WithFollowUpCanceler voids open follow-up checks when an event resolves.
func WithFollowUpCanceler(c followUpCanceler) HandlerOption {
	return func(h *Handler) { h.followups = c }
}

// WithResolutionOutbox publishes resolution events for downstream consumers.
func WithResolutionOutbox(outbox eventAppender) HandlerOption {
	return func(h *Handler) { h.outbox = outbox }
}

// WithAuditLog records resolutions in the audit trail.
func WithAuditLog(audit *compliance.AuditService) HandlerOption {
	return func(h *Handler) { h.audit = audit }
}

// NewHandler creates the crisis HTTP handler.
func NewHandler(pipeline analysisRunner, enqueuer analysisEnqueuer, jobs JobRecorder, store eventStore, profiles profileReader, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if pipeline == nil || enqueuer == nil || jobs == nil || store == nil || profiles == nil {
		panic("crisis: handler requires pipeline, enqueuer, jobs, store and profiles")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		pipeline: pipeline,
		enqueuer: enqueuer,
		jobs:     jobs,
		store:    store,
		profiles: profiles,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Analyze handles POST /crisis/analyze. It runs the full pipeline inline and
// returns the fused assessment with the intervention outcome.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode analyze request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.pipeline.Analyze(r.Context(), req)
	if err != nil {
		// The pipeline errors only on invalid input; everything else
		// degrades to the conservative fallback assessment.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// AnalyzeAsync handles POST /crisis/analyze/async. The request is persisted
// as a pending job and enqueued; callers poll JobStatus for the outcome.
func (h *Handler) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode analyze request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "user_id and message are required", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	record := &JobRecord{
		JobID:     jobID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		MessageID: req.MessageID,
	}
	if err := h.jobs.PutPending(r.Context(), record); err != nil {
		h.logger.Error("failed to persist pending job", "job_id", jobID, "error", err)
		http.Error(w, "Failed to accept analysis request", http.StatusInternalServerError)
		return
	}
	if _, err := h.enqueuer.EnqueueAnalysis(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue analysis job", "job_id", jobID, "error", err)
		http.Error(w, "Failed to accept analysis request", http.StatusInternalServerError)
		return
	}

	h.logger.Info("analysis job accepted", "job_id", jobID, "user_id", req.UserID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// JobStatus handles GET /crisis/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch job", "job_id", jobID, "error", err)
		http.Error(w, "Failed to fetch job", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

// ListEvents handles GET /crisis/events?user_id=&limit=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	list, err := h.store.ListEventsByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.logger.Error("failed to list crisis events", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"events": list, "count": len(list)})
}

// ListUnresolvedEvents handles GET /crisis/events/unresolved?limit=. This is
// the on-call dashboard's work queue.
func (h *Handler) ListUnresolvedEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListUnresolvedEvents(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("failed to list unresolved events", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"events": list, "count": len(list)})
}

// ListAssessments handles GET /crisis/assessments?user_id=&limit=.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	list, err := h.store.ListAssessmentsByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.logger.Error("failed to list assessments", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"assessments": list, "count": len(list)})
}

// ResolveRequest is the body for resolving a crisis event.
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Resolution string `json:"resolution"`
}

// ResolveEvent handles POST /crisis/events/{eventID}/resolve. A second
// resolve of the same event returns 409.
func (h *Handler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ResolvedBy) == "" {
		http.Error(w, "resolved_by is required", http.StatusBadRequest)
		return
	}

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load crisis event", "crisis_event_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.store.ResolveEvent(r.Context(), id, req.ResolvedBy, req.Resolution); err != nil {
		switch {
		case errors.Is(err, ErrEventResolved):
			http.Error(w, "Event already resolved", http.StatusConflict)
		case errors.Is(err, ErrEventNotFound):
			http.Error(w, "Event not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to resolve crisis event", "crisis_event_id", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	now := time.Now().UTC()
	h.logger.Info("crisis event resolved",
		"crisis_event_id", id, "user_id", event.UserID, "resolved_by", req.ResolvedBy)

	// Side effects are best effort; the resolution itself is already
	// committed.
	if h.followups != nil {
		if n, err := h.followups.CancelForEvent(r.Context(), id); err != nil {
			h.logger.Warn("failed to cancel follow-ups for resolved event",
				"crisis_event_id", id, "error", err)
		} else if n > 0 {
			h.logger.Info("canceled open follow-up checks",
				"crisis_event_id", id, "canceled", n)
		}
	}
	if h.outbox != nil {
		if _, err := h.outbox.Insert(r.Context(), events.UserAggregate(event.UserID), event.MessageID, events.EventResolvedV1{
			CrisisEventID: id.String(),
			UserID:        event.UserID,
			ResolvedBy:    req.ResolvedBy,
			Resolution:    req.Resolution,
			ResolvedAt:    now,
		}); err != nil {
			h.logger.Warn("outbox append failed", "crisis_event_id", id, "error", err)
		}
	}
	if h.audit != nil {
		_ = h.audit.LogCrisisResolved(r.Context(), event.UserID, id.String(), req.ResolvedBy, req.Resolution)
	}

	event.ResolvedAt = &now
	event.ResolvedBy = req.ResolvedBy
	event.Resolution = req.Resolution
	h.writeJSON(w, http.StatusOK, event)
}

// MoodRequest is the body for recording a mood check-in.
type MoodRequest struct {
	UserID       string `json:"user_id"`
	Score        int    `json:"score"`
	SleepQuality int    `json:"sleep_quality"`
}

// RecordMood handles POST /mood. Check-ins feed the behavioral analyzer's
// trend window.
func (h *Handler) RecordMood(w http.ResponseWriter, r *http.Request) {
	var req MoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Score < 1 || req.Score > 10 {
		http.Error(w, "score must be between 1 and 10", http.StatusBadRequest)
		return
	}

	entry := MoodEntry{Score: req.Score, SleepQuality: req.SleepQuality, RecordedAt: time.Now().UTC()}
	if err := h.profiles.InsertMoodEntry(r.Context(), req.UserID, entry); err != nil {
		h.logger.Error("failed to record mood entry", "user_id", req.UserID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// ListMood handles GET /mood?user_id=&days=.
func (h *Handler) ListMood(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	days := defaultMoodDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	entries, err := h.profiles.MoodEntries(r.Context(), userID, since)
	if err != nil {
		h.logger.Error("failed to list mood entries", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// RiskProfileRequest is the body for replacing a user's risk-factor tags.
type RiskProfileRequest struct {
	RiskFactors []string `json:"risk_factors"`
}

// GetRiskProfile handles GET /users/{userID}/risk-profile.
func (h *Handler) GetRiskProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	factors, err := h.profiles.RiskFactors(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load risk profile", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if factors == nil {
		factors = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "risk_factors": factors})
}

// UpdateRiskProfile handles PUT /users/{userID}/risk-profile. Clinical intake
// maintains these tags; the behavioral analyzer reads them.
func (h *Handler) UpdateRiskProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	var req RiskProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.profiles.SetRiskFactors(r.Context(), userID, req.RiskFactors); err != nil {
		h.logger.Error("failed to update risk profile", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("risk profile updated", "user_id", userID, "factors", len(req.RiskFactors))
	h.writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "risk_factors": orEmpty(req.RiskFactors)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// queryLimit reads the limit query parameter with sane bounds.
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
