package compliance

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// Handler exposes the audit trail to compliance reviewers.
type Handler struct {
	audit  *AuditService
	logger *logging.Logger
}

// NewHandler creates a compliance HTTP handler.
func NewHandler(audit *AuditService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{audit: audit, logger: logger}
}

// QueryAudit handles GET /audit. The trail is always scoped to one user;
// event type, crisis event and time window narrow it further.
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := strings.TrimSpace(q.Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	filter := AuditFilter{
		UserID:        userID,
		CrisisEventID: strings.TrimSpace(q.Get("crisis_event_id")),
		EventType:     AuditEventType(strings.TrimSpace(q.Get("event_type"))),
		Limit:         defaultAuditLimit,
	}

	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "start must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.StartTime = t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "end must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.EndTime = t
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
			if filter.Limit > maxAuditLimit {
				filter.Limit = maxAuditLimit
			}
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []AuditEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"events": events, "count": len(events)}); err != nil {
		h.logger.Error("failed to encode audit events", "error", err)
	}
}
