package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/havenmind/wellness-ai-platform/internal/alertfeed"
	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	"github.com/havenmind/wellness-ai-platform/internal/crisis"
	"github.com/havenmind/wellness-ai-platform/internal/followup"
	httpmiddleware "github.com/havenmind/wellness-ai-platform/internal/http/middleware"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger            *logging.Logger
	CrisisHandler     *crisis.Handler
	FollowUpHandler   *followup.Handler
	ComplianceHandler *compliance.Handler
	AlertFeed         *alertfeed.Hub
	MetricsHandler    http.Handler

	CORSAllowedOrigins []string

	// Per-IP rate limiting for the API group. Zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health, metrics, live alert feed)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AlertFeed != nil {
			public.Get("/ws/alerts", cfg.AlertFeed.HandleWebSocket)
		}
	})

	// Versioned API
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			// Crisis intake is exempt: throttling must never silence a
			// user who is sending messages in quick succession.
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst,
				"/api/v1/crisis/analyze"))
		}

		if cfg.CrisisHandler != nil {
			api.Route("/crisis", func(r chi.Router) {
				r.Post("/analyze", cfg.CrisisHandler.Analyze)
				r.Post("/analyze/async", cfg.CrisisHandler.AnalyzeAsync)
				r.Get("/jobs/{jobID}", cfg.CrisisHandler.JobStatus)
				r.Get("/events", cfg.CrisisHandler.ListEvents)
				r.Get("/events/unresolved", cfg.CrisisHandler.ListUnresolvedEvents)
				r.Post("/events/{eventID}/resolve", cfg.CrisisHandler.ResolveEvent)
				r.Get("/assessments", cfg.CrisisHandler.ListAssessments)
			})
			api.Post("/mood", cfg.CrisisHandler.RecordMood)
			api.Get("/mood", cfg.CrisisHandler.ListMood)
			api.Get("/users/{userID}/risk-profile", cfg.CrisisHandler.GetRiskProfile)
			api.Put("/users/{userID}/risk-profile", cfg.CrisisHandler.UpdateRiskProfile)
		}

		if cfg.FollowUpHandler != nil {
			api.Route("/followups", cfg.FollowUpHandler.RegisterRoutes)
		}

		if cfg.ComplianceHandler != nil {
			api.Get("/audit", cfg.ComplianceHandler.QueryAudit)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
