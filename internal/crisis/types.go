// Package crisis implements the multi-signal crisis-risk detection and
// intervention pipeline: four independent analyzers fan out per message, a
// fusion engine combines their signals into one calibrated decision, and an
// orchestrator executes the graduated intervention protocol.
package crisis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the ordered severity classification assigned to a message or
// fused assessment. The numeric ordering is load-bearing: level comparisons
// and "escalate to at least X" use it directly, never string comparison.
type RiskLevel int

const (
	RiskLow RiskLevel = iota + 1
	RiskMedium
	RiskHigh
	RiskCritical
)

// Severity returns the numeric weight used by the fusion engine
// (low=1 … critical=4).
func (l RiskLevel) Severity() int {
	return int(l)
}

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseRiskLevel normalizes a level string. Unknown values return an error so
// malformed model output is treated as analyzer failure, not silently low.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, nil
	case "medium", "moderate":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return 0, fmt.Errorf("crisis: unknown risk level %q", raw)
	}
}

func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	level, err := ParseRiskLevel(raw)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// maxLevel returns the more severe of two levels.
func maxLevel(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

// Analyzer source identifiers. The fusion engine weights signals by source.
const (
	SourceKeyword    = "keyword_analysis"
	SourceSentiment  = "sentiment_analysis"
	SourceBehavioral = "behavioral_analysis"
	SourceAI         = "ai_analysis"
	SourceFusion     = "fusion_engine"
)

// Diagnostic triggers attached when an analyzer degrades instead of failing.
const (
	TriggerSentimentFailed = "sentiment_analysis_failed"
	TriggerPatternFailed   = "pattern_analysis_failed"
	TriggerAIFailed        = "ai_analysis_failed"
	TriggerAnalysisError   = "analysis_error"
)

// Signal triggers produced by the sentiment and behavioral analyzers.
const (
	TriggerExtremeNegativeEmotions  = "extreme_negative_emotions"
	TriggerCombinedNegativeEmotions = "combined_negative_emotions"
	TriggerRecentCrisisHistory      = "recent_crisis_history"
	TriggerDecliningMoodTrajectory  = "declining_mood_trajectory"
	TriggerLowMoodPattern           = "low_mood_pattern"
	TriggerIncreasedHelpSeeking     = "increased_help_seeking"
	TriggerSocialWithdrawal         = "social_withdrawal"
	TriggerSevereSleepDisruption    = "severe_sleep_disruption"
)

// Known high-risk factor tags from clinical intake profiles. Each present
// factor raises behavioral confidence and is surfaced as its own trigger.
const (
	RiskFactorPreviousAttempts = "previous_attempts"
	RiskFactorSubstanceAbuse   = "substance_abuse"
	RiskFactorSocialIsolation  = "social_isolation"
	RiskFactorRecentLoss       = "recent_loss"
)

// Recommended action tags.
const (
	ActionImmediateIntervention   = "immediate_intervention"
	ActionEmergencyContact        = "emergency_contact"
	ActionCrisisHotline           = "crisis_hotline"
	ActionSafetyPlan              = "safety_plan"
	ActionProfessionalAlert       = "professional_alert"
	ActionCrisisResources         = "crisis_resources"
	ActionSafetyCheck             = "safety_check"
	ActionFollowUp24h             = "follow_up_24h"
	ActionProvideResources        = "provide_resources"
	ActionMoodTracking            = "mood_tracking"
	ActionSelfCareSuggestions     = "self_care_suggestions"
	ActionFollowUp48h             = "follow_up_48h"
	ActionWellnessTips            = "wellness_tips"
	ActionRoutineCheckIn          = "routine_check_in"
	ActionManualReview            = "manual_review"
	ActionSocialConnectionSupport = "social_connection_support"
	ActionSleepHygieneGuidance    = "sleep_hygiene_guidance"
)

// Assessment is a single analyzer's verdict. Produced fresh per analysis
// call; immutable once returned.
type Assessment struct {
	Level      RiskLevel `json:"level"`
	Confidence float64   `json:"confidence"`
	Triggers   []string  `json:"triggers"`
	Source     string    `json:"source"`
	Reasoning  string    `json:"reasoning"`
}

// OverallAssessment is the fusion engine's combined decision.
// UrgencySeconds is the intervention deadline: 0 for critical, up to 3600
// for low.
type OverallAssessment struct {
	Assessment
	Actions        []string `json:"actions"`
	UrgencySeconds int      `json:"urgency_seconds"`
	// Escalated marks results forced to critical by the override rule.
	Escalated bool `json:"escalated,omitempty"`
}

// CrisisAssessment is the persisted, append-only record of one fused
// assessment. Never mutated after creation.
type CrisisAssessment struct {
	ID                 uuid.UUID `json:"id"`
	UserID             string    `json:"user_id"`
	SessionID          string    `json:"session_id"`
	MessageID          string    `json:"message_id"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Confidence         float64   `json:"confidence"`
	Triggers           []string  `json:"triggers"`
	RecommendedActions []string  `json:"recommended_actions"`
	UrgencySeconds     int       `json:"urgency_seconds"`
	Summary            string    `json:"summary"`
	CreatedAt          time.Time `json:"created_at"`
}

// CrisisEvent is the intervention record created once risk crosses the high
// threshold. Owned by the orchestrator; mutated only to record stage flags
// and resolution.
type CrisisEvent struct {
	ID                            uuid.UUID  `json:"id"`
	UserID                        string     `json:"user_id"`
	SessionID                     string     `json:"session_id"`
	MessageID                     string     `json:"message_id"`
	RiskLevel                     RiskLevel  `json:"risk_level"`
	TriggerKeywords               []string   `json:"trigger_keywords"`
	ConfidenceScore               float64    `json:"confidence_score"`
	InterventionTriggered         bool       `json:"intervention_triggered"`
	InterventionType              string     `json:"intervention_type"`
	ResourcesProvided             []string   `json:"resources_provided"`
	ProfessionalNotified          bool       `json:"professional_notified"`
	EmergencyServicesContacted    bool       `json:"emergency_services_contacted"`
	FollowUpRequired              bool       `json:"follow_up_required"`
	ResolvedAt                    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy                    string     `json:"resolved_by,omitempty"`
	Resolution                    string     `json:"resolution,omitempty"`
	DetectedBy                    string     `json:"detected_by"`
	CreatedAt                     time.Time  `json:"created_at"`
	UpdatedAt                     time.Time  `json:"updated_at"`
}

// Message is one turn of conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationContext is the read model shared by the sentiment and AI
// analyzers. Built fresh per analysis; never cached across calls because
// risk depends on recency.
type ConversationContext struct {
	UserID            string
	SessionID         string
	RecentMessages    []Message
	CurrentMood       *int
	RecentCrisisFlags int
}

// MoodEntry is one self-reported check-in on a 1-10 scale. SleepQuality 0
// means the user did not record sleep for that entry.
type MoodEntry struct {
	Score        int       `json:"score"`
	SleepQuality int       `json:"sleep_quality"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// BehavioralPattern is the behavioral analyzer's read model. Same freshness
// invariant as ConversationContext.
type BehavioralPattern struct {
	MoodScores            []MoodEntry
	ConversationFrequency int
	RiskFactors           []string
}

// AnalyzeRequest identifies one message to assess.
type AnalyzeRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

// dedupeStrings preserves first-seen order.
func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// clampConfidence bounds a confidence score to [0, ceiling].
func clampConfidence(v, ceiling float64) float64 {
	if v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
