package crisis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLMClient struct {
	response LLMResponse
	err      error
	lastReq  LLMRequest
	calls    int
}

func (s *stubLLMClient) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	s.calls++
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return s.response, nil
}

func TestLLMSentimentClient_Score(t *testing.T) {
	tests := []struct {
		name      string
		modelText string
		wantScore float64
		wantFear  float64
		wantErr   bool
	}{
		{
			name:      "plain json",
			modelText: `{"score": -0.85, "emotions": {"fear": 0.9, "sadness": 0.7, "anger": 0.1, "disgust": 0.0, "joy": 0.0}}`,
			wantScore: -0.85,
			wantFear:  0.9,
		},
		{
			name:      "fenced json",
			modelText: "```json\n{\"score\": -0.4, \"emotions\": {\"fear\": 0.2}}\n```",
			wantScore: -0.4,
			wantFear:  0.2,
		},
		{
			name:      "json embedded in prose",
			modelText: `Here is my analysis: {"score": 0.3, "emotions": {"fear": 0.1}} as requested.`,
			wantScore: 0.3,
			wantFear:  0.1,
		},
		{
			name:      "score clamped to range",
			modelText: `{"score": -3.5, "emotions": {"fear": 1.8}}`,
			wantScore: -1,
			wantFear:  1,
		},
		{
			name:      "malformed json",
			modelText: `{"score": not a number}`,
			wantErr:   true,
		},
		{
			name:      "no json at all",
			modelText: "I cannot analyze this message.",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubLLMClient{response: LLMResponse{Text: tt.modelText}}
			client := NewLLMSentimentClient(stub, "anthropic.claude-3-haiku-20240307-v1:0", nil)

			result, err := client.Score(context.Background(), "today was rough")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantScore, result.Score, 1e-9)
			assert.InDelta(t, tt.wantFear, result.Emotions.Fear, 1e-9)
		})
	}
}

func TestLLMSentimentClient_RequestShape(t *testing.T) {
	stub := &stubLLMClient{response: LLMResponse{Text: `{"score": 0, "emotions": {}}`}}
	client := NewLLMSentimentClient(stub, "model-x", nil)

	_, err := client.Score(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "model-x", stub.lastReq.Model)
	require.Len(t, stub.lastReq.System, 1)
	assert.Contains(t, stub.lastReq.System[0], "Return ONLY JSON")
	require.Len(t, stub.lastReq.Messages, 1)
	assert.Equal(t, ChatRoleUser, stub.lastReq.Messages[0].Role)
	assert.Equal(t, "hello", stub.lastReq.Messages[0].Content)
}

func TestLLMSentimentClient_EmptyText(t *testing.T) {
	stub := &stubLLMClient{response: LLMResponse{Text: `{"score": 0}`}}
	client := NewLLMSentimentClient(stub, "model-x", nil)

	_, err := client.Score(context.Background(), "   ")

	require.Error(t, err)
	assert.Zero(t, stub.calls, "model should not be called for empty text")
}
