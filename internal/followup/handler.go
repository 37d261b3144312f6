package followup

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// Handler provides HTTP endpoints for the on-call follow-up dashboard.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a follow-up HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts follow-up endpoints under a chi router.
// Expected to be mounted under /api/v1/followups
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listChecks)
	r.Get("/stats", h.getStats)
}

func (h *Handler) listChecks(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	checks, err := h.store.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("followup handler: list checks", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"follow_ups": checks,
		"count":      len(checks),
	})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("followup handler: stats", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
