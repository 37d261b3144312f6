package crisis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var sentimentTracer = otel.Tracer("havenmind/sentiment-analyzer")

// SentimentAnalyzer maps model sentiment and emotion scores to a risk signal.
// A model failure degrades to a low-weight diagnostic assessment; it never
// propagates upward.
type SentimentAnalyzer struct {
	client SentimentClient
	cal    Calibration
	logger *logging.Logger
}

var _ Analyzer = (*SentimentAnalyzer)(nil)

func NewSentimentAnalyzer(client SentimentClient, cal Calibration, logger *logging.Logger) *SentimentAnalyzer {
	if client == nil {
		panic("crisis: sentiment client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SentimentAnalyzer{client: client, cal: cal, logger: logger}
}

func (a *SentimentAnalyzer) Name() string { return SourceSentiment }

func (a *SentimentAnalyzer) Analyze(ctx context.Context, message string, cc ConversationContext) Assessment {
	ctx, span := sentimentTracer.Start(ctx, "crisis.sentiment")
	defer span.End()

	result, err := a.client.Score(ctx, message)
	if err != nil {
		a.logger.Warn("sentiment analysis failed", "error", err.Error(), "user_id", cc.UserID)
		span.SetAttributes(attribute.Bool("crisis.sentiment_failed", true))
		return Assessment{
			Level:      RiskLow,
			Confidence: 0.1,
			Triggers:   []string{TriggerSentimentFailed},
			Source:     SourceSentiment,
			Reasoning:  "sentiment model unavailable",
		}
	}

	level := RiskLow
	confidence := 0.3
	var triggers []string

	switch {
	case result.Score < a.cal.SentimentHighScore:
		level = RiskHigh
		confidence = a.cal.SentimentHighConfidence
	case result.Score < a.cal.SentimentMediumScore:
		level = RiskMedium
		confidence = a.cal.SentimentMediumConfidence
	}

	if result.Emotions.Fear > a.cal.EmotionExtremeThreshold || result.Emotions.Sadness > a.cal.EmotionExtremeThreshold {
		level = maxLevel(level, RiskHigh)
		if confidence < a.cal.SentimentHighConfidence {
			confidence = a.cal.SentimentHighConfidence
		}
		triggers = append(triggers, TriggerExtremeNegativeEmotions)
	}
	if result.Emotions.Anger > a.cal.EmotionCombinedThreshold && result.Emotions.Disgust > a.cal.EmotionCombinedThreshold {
		level = maxLevel(level, RiskMedium)
		if confidence < a.cal.SentimentMediumConfidence {
			confidence = a.cal.SentimentMediumConfidence
		}
		triggers = append(triggers, TriggerCombinedNegativeEmotions)
	}
	if cc.RecentCrisisFlags > a.cal.CrisisHistoryFlagCount {
		confidence += a.cal.CrisisHistoryBoost
		triggers = append(triggers, TriggerRecentCrisisHistory)
	}
	confidence = clampConfidence(confidence, a.cal.MaxConfidence)

	span.SetAttributes(
		attribute.Float64("crisis.sentiment_score", result.Score),
		attribute.String("crisis.sentiment_level", level.String()),
		attribute.Float64("crisis.sentiment_confidence", confidence),
	)

	return Assessment{
		Level:      level,
		Confidence: confidence,
		Triggers:   triggers,
		Source:     SourceSentiment,
		Reasoning:  fmt.Sprintf("sentiment score %.2f, fear %.2f, sadness %.2f", result.Score, result.Emotions.Fear, result.Emotions.Sadness),
	}
}
