package crisis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name           string
		modelText      string
		modelErr       error
		wantLevel      RiskLevel
		wantConfidence float64
		wantTriggers   []string
	}{
		{
			name:           "critical verdict",
			modelText:      `{"riskLevel": "critical", "confidence": 0.92, "indicators": ["suicidal_ideation"], "reasoning": "explicit intent"}`,
			wantLevel:      RiskCritical,
			wantConfidence: 0.92,
			wantTriggers:   []string{"suicidal_ideation"},
		},
		{
			name:           "fenced verdict still parses",
			modelText:      "```json\n{\"riskLevel\": \"medium\", \"confidence\": 0.6, \"indicators\": [], \"reasoning\": \"mild distress\"}\n```",
			wantLevel:      RiskMedium,
			wantConfidence: 0.6,
		},
		{
			name:           "moderate is accepted as medium",
			modelText:      `{"riskLevel": "moderate", "confidence": 0.5, "indicators": [], "reasoning": "ok"}`,
			wantLevel:      RiskMedium,
			wantConfidence: 0.5,
		},
		{
			name:           "overconfident model is clamped",
			modelText:      `{"riskLevel": "high", "confidence": 1.0, "indicators": [], "reasoning": "certain"}`,
			wantLevel:      RiskHigh,
			wantConfidence: 0.95,
		},
		{
			name:           "negative confidence is floored",
			modelText:      `{"riskLevel": "low", "confidence": -0.2, "indicators": [], "reasoning": "fine"}`,
			wantLevel:      RiskLow,
			wantConfidence: 0,
		},
		{
			name:           "unknown risk level degrades to diagnostic signal",
			modelText:      `{"riskLevel": "catastrophic", "confidence": 0.9}`,
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
			wantTriggers:   []string{TriggerAIFailed},
		},
		{
			name:           "malformed json degrades to diagnostic signal",
			modelText:      "the user seems fine to me",
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
			wantTriggers:   []string{TriggerAIFailed},
		},
		{
			name:           "model error degrades to diagnostic signal",
			modelErr:       errors.New("throttled"),
			wantLevel:      RiskLow,
			wantConfidence: 0.1,
			wantTriggers:   []string{TriggerAIFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubLLMClient{response: LLMResponse{Text: tt.modelText}, err: tt.modelErr}
			analyzer := NewAIAnalyzer(stub, "anthropic.claude-3-haiku-20240307-v1:0", DefaultCalibration(), nil)

			got := analyzer.Analyze(context.Background(), "I feel awful", ConversationContext{UserID: "user-1"})

			assert.Equal(t, tt.wantLevel, got.Level)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.Equal(t, SourceAI, got.Source)
			for _, trigger := range tt.wantTriggers {
				assert.Contains(t, got.Triggers, trigger)
			}
		})
	}
}

func TestAIAnalyzer_PromptCarriesContext(t *testing.T) {
	stub := &stubLLMClient{response: LLMResponse{Text: `{"riskLevel": "low", "confidence": 0.4, "indicators": [], "reasoning": "ok"}`}}
	analyzer := NewAIAnalyzer(stub, "model-x", DefaultCalibration(), nil)

	mood := 4
	cc := ConversationContext{
		UserID:            "user-1",
		RecentCrisisFlags: 2,
		CurrentMood:       &mood,
		RecentMessages: []Message{
			{Role: "user", Content: "earlier message"},
			{Role: "assistant", Content: "earlier reply"},
		},
	}
	analyzer.Analyze(context.Background(), "today is hard", cc)

	require.Len(t, stub.lastReq.Messages, 1)
	prompt := stub.lastReq.Messages[0].Content
	assert.Contains(t, prompt, `"today is hard"`)
	assert.Contains(t, prompt, "Crisis flags in the last 7 days: 2")
	assert.Contains(t, prompt, "mood (1-10): 4")
	assert.Contains(t, prompt, "history: 2")
	assert.Equal(t, "model-x", stub.lastReq.Model)
}

func TestAIAnalyzer_PromptOmitsUnknownMood(t *testing.T) {
	stub := &stubLLMClient{response: LLMResponse{Text: `{"riskLevel": "low", "confidence": 0.4, "indicators": [], "reasoning": "ok"}`}}
	analyzer := NewAIAnalyzer(stub, "model-x", DefaultCalibration(), nil)

	analyzer.Analyze(context.Background(), "hello", ConversationContext{UserID: "user-1"})

	assert.NotContains(t, stub.lastReq.Messages[0].Content, "mood")
}
