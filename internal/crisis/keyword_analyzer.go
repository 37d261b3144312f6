package crisis

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var keywordTracer = otel.Tracer("havenmind/keyword-analyzer")

// KeywordAnalyzer scans normalized message text against tiered phrase lists.
// It is pure and deterministic, which makes it the fast-path signal that
// survives when every networked analyzer is down.
type KeywordAnalyzer struct {
	logger *logging.Logger
	cal    Calibration
}

var _ Analyzer = (*KeywordAnalyzer)(nil)

// NewKeywordAnalyzer creates a keyword analyzer with the given calibration.
func NewKeywordAnalyzer(cal Calibration, logger *logging.Logger) *KeywordAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &KeywordAnalyzer{logger: logger, cal: cal}
}

// Name identifies this analyzer in fusion weighting and logs.
func (a *KeywordAnalyzer) Name() string { return SourceKeyword }

// Analyze checks each tier in descending severity and stops at the first tier
// with a match, so a single critical phrase dominates any number of
// medium-tier matches. Confidence grows with match count but never passes the
// tier cap.
func (a *KeywordAnalyzer) Analyze(ctx context.Context, message string, _ ConversationContext) Assessment {
	_, span := keywordTracer.Start(ctx, "crisis.keywords")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return Assessment{
			Level:      RiskLow,
			Confidence: 0.1,
			Source:     SourceKeyword,
			Reasoning:  "empty message",
		}
	}

	for _, tier := range a.cal.KeywordTiers {
		var matched []string
		for _, phrase := range tier.Phrases {
			if strings.Contains(normalized, phrase) {
				matched = append(matched, phrase)
			}
		}
		if len(matched) == 0 {
			continue
		}

		confidence := tier.Base + a.cal.KeywordMatchIncrement*float64(len(matched))
		if confidence > tier.Cap {
			confidence = tier.Cap
		}

		span.SetAttributes(
			attribute.String("crisis.keyword_tier", tier.Level.String()),
			attribute.Int("crisis.keyword_matches", len(matched)),
			attribute.Float64("crisis.keyword_confidence", confidence),
		)

		a.logger.Info("crisis keywords matched",
			"tier", tier.Level.String(),
			"matches", len(matched),
			"confidence", confidence,
		)

		// Reasoning previews a few phrases; triggers keep the full list.
		preview := matched
		if len(preview) > 3 {
			preview = preview[:3]
		}

		return Assessment{
			Level:      tier.Level,
			Confidence: confidence,
			Triggers:   matched,
			Source:     SourceKeyword,
			Reasoning:  fmt.Sprintf("matched %d %s-tier phrase(s): %s", len(matched), tier.Level, strings.Join(preview, ", ")),
		}
	}

	return Assessment{
		Level:      RiskLow,
		Confidence: 0.1,
		Source:     SourceKeyword,
		Reasoning:  "no crisis keywords detected",
	}
}
