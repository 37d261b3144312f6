package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

const emergencyTimeout = 10 * time.Second

// EmergencyEscalation is the payload posted to the emergency services bridge.
type EmergencyEscalation struct {
	CrisisEventID string    `json:"crisis_event_id"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id,omitempty"`
	Trigger       string    `json:"trigger"`
	RiskLevel     string    `json:"risk_level"`
	Confidence    float64   `json:"confidence"`
	DetectedAt    time.Time `json:"detected_at"`
}

// EmergencyClient posts imminent-danger escalations to the emergency services
// bridge operated by the crisis response partner.
type EmergencyClient struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewEmergencyClient creates a client for the emergency bridge. Returns nil
// when no endpoint is configured so callers can treat escalation as disabled.
func NewEmergencyClient(endpoint, authToken string, logger *logging.Logger) *EmergencyClient {
	if strings.TrimSpace(endpoint) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmergencyClient{
		endpoint:  endpoint,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: emergencyTimeout,
		},
		logger: logger,
	}
}

// Contact posts the escalation to the bridge. The bridge handles dispatch to
// local emergency services, so a 2xx here only means the handoff was accepted.
func (c *EmergencyClient) Contact(ctx context.Context, esc EmergencyEscalation) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("notify: emergency bridge not configured")
	}

	body, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("notify: marshal escalation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: escalation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notify: read escalation response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("notify: emergency bridge status %d: %s", resp.StatusCode, msg)
	}

	c.logger.Info("emergency escalation accepted", "crisis_event_id", esc.CrisisEventID, "trigger", esc.Trigger, "status", resp.StatusCode)
	return nil
}
