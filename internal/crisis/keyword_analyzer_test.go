package crisis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordAnalyzer_Analyze(t *testing.T) {
	analyzer := NewKeywordAnalyzer(DefaultCalibration(), nil)

	tests := []struct {
		name           string
		message        string
		wantLevel      RiskLevel
		wantConfidence float64
		wantTriggers   []string
	}{
		{
			name:           "explicit suicidal intent",
			message:        "I want to end it all",
			wantLevel:      RiskCritical,
			wantConfidence: 0.75,
			wantTriggers:   []string{"end it all"},
		},
		{
			name:           "critical dominates medium matches",
			message:        "I'm depressed and overwhelmed and I want to end my life",
			wantLevel:      RiskCritical,
			wantConfidence: 0.75,
			wantTriggers:   []string{"end my life"},
		},
		{
			name:           "case insensitive matching",
			message:        "I Want To KILL MYSELF",
			wantLevel:      RiskCritical,
			wantConfidence: 0.75,
			wantTriggers:   []string{"kill myself"},
		},
		{
			name:           "multiple critical matches raise confidence",
			message:        "no reason to live anymore, I want to die and end it all",
			wantLevel:      RiskCritical,
			wantConfidence: 0.85,
			wantTriggers:   []string{"want to die", "end it all", "no reason to live"},
		},
		{
			name:           "critical confidence never exceeds tier cap",
			message:        "suicide, I want to die, end it all, no reason to live, better off dead, end my life",
			wantLevel:      RiskCritical,
			wantConfidence: 0.95,
		},
		{
			name:           "self harm is high tier",
			message:        "sometimes I think about hurting myself with self harm",
			wantLevel:      RiskHigh,
			wantConfidence: 0.65,
			wantTriggers:   []string{"self harm"},
		},
		{
			name:           "hopelessness is high tier",
			message:        "everything feels hopeless, there's no way out",
			wantLevel:      RiskHigh,
			wantConfidence: 0.70,
			wantTriggers:   []string{"hopeless", "no way out"},
		},
		{
			name:           "distress language is medium tier",
			message:        "I had a panic attack and feel so alone",
			wantLevel:      RiskMedium,
			wantConfidence: 0.50,
			wantTriggers:   []string{"panic attack", "so alone"},
		},
		{
			name:           "ordinary stress does not match",
			message:        "feeling a bit stressed today",
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
		},
		{
			name:           "neutral message does not match",
			message:        "thanks for checking in, the weekend was nice",
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
		},
		{
			name:           "empty message",
			message:        "",
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
		},
		{
			name:           "whitespace only",
			message:        "   \n\t ",
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzer.Analyze(context.Background(), tt.message, ConversationContext{})

			assert.Equal(t, tt.wantLevel, got.Level, "risk level mismatch")
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9, "confidence mismatch")
			assert.Equal(t, SourceKeyword, got.Source)
			assert.NotEmpty(t, got.Reasoning)

			for _, trigger := range tt.wantTriggers {
				assert.Contains(t, got.Triggers, trigger)
			}
			if tt.wantLevel == RiskLow {
				assert.Empty(t, got.Triggers)
			}
		})
	}
}

func TestKeywordAnalyzer_TriggersAreLiteralPhrases(t *testing.T) {
	analyzer := NewKeywordAnalyzer(DefaultCalibration(), nil)

	got := analyzer.Analyze(context.Background(), "I feel worthless and can't go on", ConversationContext{})

	assert.Equal(t, RiskHigh, got.Level)
	assert.ElementsMatch(t, []string{"can't go on", "worthless"}, got.Triggers)
}

func TestKeywordAnalyzer_Deterministic(t *testing.T) {
	analyzer := NewKeywordAnalyzer(DefaultCalibration(), nil)
	msg := "I'm so overwhelmed I want to end it all"

	first := analyzer.Analyze(context.Background(), msg, ConversationContext{})
	for i := 0; i < 10; i++ {
		again := analyzer.Analyze(context.Background(), msg, ConversationContext{})
		assert.Equal(t, first.Level, again.Level)
		assert.True(t, math.Abs(first.Confidence-again.Confidence) < 1e-12)
		assert.Equal(t, first.Triggers, again.Triggers)
	}
}

func TestKeywordAnalyzer_CustomTiers(t *testing.T) {
	cal := DefaultCalibration()
	cal.KeywordTiers = []KeywordTier{
		{Level: RiskHigh, Base: 0.5, Cap: 0.6, Phrases: []string{"red flag"}},
	}
	analyzer := NewKeywordAnalyzer(cal, nil)

	got := analyzer.Analyze(context.Background(), "this is a RED FLAG message", ConversationContext{})

	assert.Equal(t, RiskHigh, got.Level)
	assert.InDelta(t, 0.55, got.Confidence, 1e-9)
}
