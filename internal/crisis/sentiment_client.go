package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// EmotionScores holds per-emotion intensities in [0, 1].
type EmotionScores struct {
	Fear    float64 `json:"fear"`
	Sadness float64 `json:"sadness"`
	Anger   float64 `json:"anger"`
	Disgust float64 `json:"disgust"`
	Joy     float64 `json:"joy"`
}

// SentimentResult is the model's judgment of a single message: overall
// polarity in [-1, 1] plus emotion intensities.
type SentimentResult struct {
	Score    float64       `json:"score"`
	Emotions EmotionScores `json:"emotions"`
}

// SentimentClient scores message text for sentiment and emotion.
type SentimentClient interface {
	Score(ctx context.Context, text string) (SentimentResult, error)
}

const sentimentSystemPrompt = `You are a sentiment analysis engine for a mental wellness service.
Score the user's message for overall sentiment polarity and emotion intensity.

Return ONLY JSON in this exact format:
{"score": <-1.0 to 1.0, negative is distressed>, "emotions": {"fear": <0.0-1.0>, "sadness": <0.0-1.0>, "anger": <0.0-1.0>, "disgust": <0.0-1.0>, "joy": <0.0-1.0>}}

No commentary, no markdown.`

// LLMSentimentClient scores sentiment through a generative model with a
// structured-output prompt.
type LLMSentimentClient struct {
	llm     LLMClient
	modelID string
	logger  *logging.Logger
}

var _ SentimentClient = (*LLMSentimentClient)(nil)

func NewLLMSentimentClient(llm LLMClient, modelID string, logger *logging.Logger) *LLMSentimentClient {
	if llm == nil {
		panic("crisis: sentiment llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMSentimentClient{llm: llm, modelID: modelID, logger: logger}
}

func (c *LLMSentimentClient) Score(ctx context.Context, text string) (SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return SentimentResult{}, errors.New("crisis: sentiment text is empty")
	}

	resp, err := c.llm.Complete(ctx, LLMRequest{
		Model:       c.modelID,
		System:      []string{sentimentSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: text}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return SentimentResult{}, fmt.Errorf("crisis: sentiment completion: %w", err)
	}

	return parseSentimentResult(resp.Text)
}

func parseSentimentResult(raw string) (SentimentResult, error) {
	text := sanitizeModelJSON(raw)
	if text == "" {
		return SentimentResult{}, errors.New("crisis: sentiment empty response")
	}

	var result SentimentResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return SentimentResult{}, fmt.Errorf("crisis: sentiment response parse: %w", err)
	}

	if result.Score < -1 {
		result.Score = -1
	} else if result.Score > 1 {
		result.Score = 1
	}
	result.Emotions.Fear = clampConfidence(result.Emotions.Fear, 1)
	result.Emotions.Sadness = clampConfidence(result.Emotions.Sadness, 1)
	result.Emotions.Anger = clampConfidence(result.Emotions.Anger, 1)
	result.Emotions.Disgust = clampConfidence(result.Emotions.Disgust, 1)
	result.Emotions.Joy = clampConfidence(result.Emotions.Joy, 1)

	return result, nil
}
