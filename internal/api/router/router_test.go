package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/havenmind/wellness-ai-platform/internal/crisis"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

type routerPipeline struct{}

func (routerPipeline) Analyze(_ context.Context, req crisis.AnalyzeRequest) (crisis.AnalyzeResult, error) {
	return crisis.AnalyzeResult{
		Assessment: crisis.OverallAssessment{
			Assessment: crisis.Assessment{Level: crisis.RiskLow, Confidence: 0.2, Source: crisis.SourceFusion},
		},
	}, nil
}

type routerEnqueuer struct{}

func (routerEnqueuer) EnqueueAnalysis(_ context.Context, jobID string, _ crisis.AnalyzeRequest) (string, error) {
	return jobID, nil
}

type routerJobs struct{}

func (routerJobs) PutPending(context.Context, *crisis.JobRecord) error { return nil }

func (routerJobs) GetJob(context.Context, string) (*crisis.JobRecord, error) {
	return nil, crisis.ErrJobNotFound
}

type routerEvents struct{}

func (routerEvents) GetEvent(context.Context, uuid.UUID) (crisis.CrisisEvent, error) {
	return crisis.CrisisEvent{}, crisis.ErrEventNotFound
}

func (routerEvents) ListEventsByUser(context.Context, string, int) ([]crisis.CrisisEvent, error) {
	return nil, nil
}

func (routerEvents) ListUnresolvedEvents(context.Context, int) ([]crisis.CrisisEvent, error) {
	return nil, nil
}

func (routerEvents) ListAssessmentsByUser(context.Context, string, int) ([]crisis.CrisisAssessment, error) {
	return nil, nil
}

func (routerEvents) ResolveEvent(context.Context, uuid.UUID, string, string) error {
	return crisis.ErrEventNotFound
}

type routerProfiles struct{}

func (routerProfiles) InsertMoodEntry(context.Context, string, crisis.MoodEntry) error { return nil }

func (routerProfiles) MoodEntries(context.Context, string, time.Time) ([]crisis.MoodEntry, error) {
	return nil, nil
}

func (routerProfiles) RiskFactors(context.Context, string) ([]string, error) { return nil, nil }

func (routerProfiles) SetRiskFactors(context.Context, string, []string) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	crisisHandler := crisis.NewHandler(routerPipeline{}, routerEnqueuer{}, routerJobs{}, routerEvents{}, routerProfiles{}, logger)

	cfg := &Config{
		Logger:        logger,
		CrisisHandler: crisisHandler,
	}

	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterAnalyzeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"user_id":"user-1","message":"feeling okay today"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/crisis/analyze", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp crisis.AnalyzeResult
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Assessment.Level != crisis.RiskLow {
		t.Fatalf("expected low, got %s", resp.Assessment.Level)
	}
}

func TestRouterJobStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crisis/jobs/job-404", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d for unknown job, got %d", http.StatusNotFound, rr.Code)
	}
}

// TestRouterCrisisRoutesMissingWithoutHandler documents that a nil
// CrisisHandler leaves the whole API group unregistered. Startup must always
// construct the handler; this guards the conditional mounting.
func TestRouterCrisisRoutesMissingWithoutHandler(t *testing.T) {
	router := New(&Config{Logger: logging.Default()})

	for _, route := range []string{
		"/api/v1/crisis/analyze",
		"/api/v1/mood",
	} {
		req := httptest.NewRequest(http.MethodPost, route, strings.NewReader("{}"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 404/405 when CrisisHandler is nil, got %d", route, rr.Code)
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# HELP havenmind_up 1\n"))
	})
	router := New(&Config{Logger: logging.Default(), MetricsHandler: metrics})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "havenmind_up") {
		t.Fatalf("expected metrics body, got %q", rr.Body.String())
	}
}

func TestRouterRateLimit(t *testing.T) {
	logger := logging.Default()
	crisisHandler := crisis.NewHandler(routerPipeline{}, routerEnqueuer{}, routerJobs{}, routerEvents{}, routerProfiles{}, logger)
	router := New(&Config{
		Logger:             logger,
		CrisisHandler:      crisisHandler,
		RateLimitPerSecond: 1,
		RateLimitBurst:     1,
	})

	send := func() int {
		body := strings.NewReader(`{"user_id":"user-1","message":"hello"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/crisis/analyze", body)
		req.RemoteAddr = "198.51.100.7:4242"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request limited, got %d", code)
	}
}
