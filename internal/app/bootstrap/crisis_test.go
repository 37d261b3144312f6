package bootstrap

import (
	"context"
	"testing"
	"time"

	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

func TestBuildCrisisStackRequiresConfig(t *testing.T) {
	if _, err := BuildCrisisStack(context.Background(), nil, CrisisDeps{}, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildCrisisStackRequiresPool(t *testing.T) {
	cfg := &appconfig.Config{}

	if _, err := BuildCrisisStack(context.Background(), cfg, CrisisDeps{}, nil); err == nil {
		t.Fatalf("expected error for missing postgres pool")
	}
}

func TestBuildCalibrationAppliesOverrides(t *testing.T) {
	cfg := &appconfig.Config{
		EscalationConfidence:    0.7,
		NotifyConfidence:        0.8,
		KeywordMatchIncrement:   0.1,
		FusionCriticalThreshold: 3.6,
		FusionHighThreshold:     2.6,
		FusionMediumThreshold:   1.6,
		FollowUpInterval:        12 * time.Hour,
	}

	cal := BuildCalibration(cfg)

	if cal.EscalationConfidence != 0.7 {
		t.Errorf("expected escalation confidence 0.7, got %v", cal.EscalationConfidence)
	}
	if cal.NotifyConfidence != 0.8 {
		t.Errorf("expected notify confidence 0.8, got %v", cal.NotifyConfidence)
	}
	if cal.KeywordMatchIncrement != 0.1 {
		t.Errorf("expected keyword increment 0.1, got %v", cal.KeywordMatchIncrement)
	}
	if cal.CriticalThreshold != 3.6 || cal.HighThreshold != 2.6 || cal.MediumThreshold != 1.6 {
		t.Errorf("expected fusion thresholds 3.6/2.6/1.6, got %v/%v/%v",
			cal.CriticalThreshold, cal.HighThreshold, cal.MediumThreshold)
	}
	if cal.FollowUpInterval != 12*time.Hour {
		t.Errorf("expected follow-up interval 12h, got %v", cal.FollowUpInterval)
	}
}

func TestBuildCalibrationKeepsDefaultsForZeroValues(t *testing.T) {
	cal := BuildCalibration(&appconfig.Config{})

	if cal.EscalationConfidence != 0.85 {
		t.Errorf("expected shipped escalation confidence 0.85, got %v", cal.EscalationConfidence)
	}
	if cal.CriticalThreshold != 3.5 {
		t.Errorf("expected shipped critical threshold 3.5, got %v", cal.CriticalThreshold)
	}
	if cal.FollowUpInterval != 24*time.Hour {
		t.Errorf("expected shipped follow-up interval 24h, got %v", cal.FollowUpInterval)
	}
	if len(cal.KeywordTiers) == 0 {
		t.Fatalf("expected shipped keyword tiers")
	}
}

func TestBuildLLMClientUnconfiguredReturnsNil(t *testing.T) {
	logger := logging.New("error")

	client, modelID := BuildLLMClient(context.Background(), &appconfig.Config{}, logger)
	if client != nil {
		t.Fatalf("expected nil client when no provider is configured, got %T", client)
	}
	if modelID != "" {
		t.Fatalf("expected empty model id, got %q", modelID)
	}
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	logger := logging.New("error")

	sender := BuildEmailSender(&appconfig.Config{}, nil, logger)
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Fatalf("expected StubEmailSender, got %T", sender)
	}
}

func TestBuildEmailSenderPrefersSendGrid(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		SendGridAPIKey:    "sg-key",
		SendGridFromEmail: "care@havenmind.care",
	}

	sender := BuildEmailSender(cfg, nil, logger)
	if _, ok := sender.(*notify.SendGridSender); !ok {
		t.Fatalf("expected SendGridSender, got %T", sender)
	}
}

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), false); client != nil {
		t.Fatalf("expected nil client without redis addr")
	}
}
