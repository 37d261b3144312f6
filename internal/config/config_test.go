package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("ONCALL_EMAILS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.AnalyzerTimeout != 5*time.Second {
		t.Fatalf("expected default analyzer timeout, got %s", cfg.AnalyzerTimeout)
	}
	if cfg.FollowUpInterval != 24*time.Hour {
		t.Fatalf("expected default follow-up interval, got %s", cfg.FollowUpInterval)
	}
	if cfg.EscalationConfidence != 0 {
		t.Fatalf("expected zero escalation override by default, got %f", cfg.EscalationConfidence)
	}
	if len(cfg.OnCallEmails) != 0 {
		t.Fatalf("expected empty on-call roster, got %v", cfg.OnCallEmails)
	}
	if cfg.CrisisJobsTable != "crisis_analysis_jobs" {
		t.Fatalf("expected default jobs table, got %s", cfg.CrisisJobsTable)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("ANALYZER_TIMEOUT", "2s")
	t.Setenv("ESCALATION_CONFIDENCE", "0.9")
	t.Setenv("FUSION_HIGH_THRESHOLD", "2.7")
	t.Setenv("ONCALL_EMAILS", "a@havenmind.app, b@havenmind.app")
	t.Setenv("FOLLOWUP_INTERVAL", "12h")
	t.Setenv("CONTEXT_MESSAGE_WINDOW", "10")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.AnalyzerTimeout != 2*time.Second {
		t.Fatalf("expected analyzer timeout override, got %s", cfg.AnalyzerTimeout)
	}
	if cfg.EscalationConfidence != 0.9 {
		t.Fatalf("expected escalation override, got %f", cfg.EscalationConfidence)
	}
	if cfg.FusionHighThreshold != 2.7 {
		t.Fatalf("expected fusion high threshold override, got %f", cfg.FusionHighThreshold)
	}
	if len(cfg.OnCallEmails) != 2 || cfg.OnCallEmails[1] != "b@havenmind.app" {
		t.Fatalf("expected trimmed on-call list, got %v", cfg.OnCallEmails)
	}
	if cfg.FollowUpInterval != 12*time.Hour {
		t.Fatalf("expected follow-up interval override, got %s", cfg.FollowUpInterval)
	}
	if cfg.ContextMessageWindow != 10 {
		t.Fatalf("expected context window override, got %d", cfg.ContextMessageWindow)
	}
}
