package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var aiTracer = otel.Tracer("havenmind/ai-analyzer")

const aiSystemPrompt = `You are a clinical risk triage assistant for a mental wellness service.
Assess the crisis risk of the user's latest message given the situational context provided.

Return ONLY JSON in this exact format:
{"riskLevel": "low|medium|high|critical", "confidence": <0.0-1.0>, "indicators": ["<short risk indicator tags>"], "reasoning": "<one or two sentences>"}

No commentary, no markdown.`

// AIAnalyzer asks a generative model for a structured risk judgment. The
// model sees the message plus situational grounding, never the isolated text
// alone. Malformed or failed responses degrade to a diagnostic signal.
type AIAnalyzer struct {
	llm     LLMClient
	modelID string
	cal     Calibration
	logger  *logging.Logger
}

var _ Analyzer = (*AIAnalyzer)(nil)

func NewAIAnalyzer(llm LLMClient, modelID string, cal Calibration, logger *logging.Logger) *AIAnalyzer {
	if llm == nil {
		panic("crisis: ai analyzer llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AIAnalyzer{llm: llm, modelID: modelID, cal: cal, logger: logger}
}

func (a *AIAnalyzer) Name() string { return SourceAI }

func (a *AIAnalyzer) Analyze(ctx context.Context, message string, cc ConversationContext) Assessment {
	ctx, span := aiTracer.Start(ctx, "crisis.ai")
	defer span.End()

	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.modelID,
		System:      []string{aiSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildRiskPrompt(message, cc)}},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		a.logger.Warn("ai risk analysis failed", "error", err.Error(), "user_id", cc.UserID)
		span.SetAttributes(attribute.Bool("crisis.ai_failed", true))
		return aiFailureAssessment("model unavailable")
	}

	level, verdict, err := parseRiskVerdict(resp.Text)
	if err != nil {
		a.logger.Warn("ai risk verdict unparseable", "error", err.Error(), "user_id", cc.UserID)
		span.SetAttributes(attribute.Bool("crisis.ai_failed", true))
		return aiFailureAssessment("model response unparseable")
	}

	confidence := clampConfidence(verdict.Confidence, a.cal.MaxConfidence)

	span.SetAttributes(
		attribute.String("crisis.ai_level", level.String()),
		attribute.Float64("crisis.ai_confidence", confidence),
		attribute.Int("crisis.ai_indicators", len(verdict.Indicators)),
	)

	return Assessment{
		Level:      level,
		Confidence: confidence,
		Triggers:   verdict.Indicators,
		Source:     SourceAI,
		Reasoning:  verdict.Reasoning,
	}
}

func aiFailureAssessment(reason string) Assessment {
	return Assessment{
		Level:      RiskLow,
		Confidence: 0.1,
		Triggers:   []string{TriggerAIFailed},
		Source:     SourceAI,
		Reasoning:  reason,
	}
}

// buildRiskPrompt gives the model situational grounding: the message, the
// trailing crisis-flag count, current mood when known, and session depth.
func buildRiskPrompt(message string, cc ConversationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Latest message: %q\n", message)
	fmt.Fprintf(&b, "Crisis flags in the last 7 days: %d\n", cc.RecentCrisisFlags)
	if cc.CurrentMood != nil {
		fmt.Fprintf(&b, "Current self-reported mood (1-10): %d\n", *cc.CurrentMood)
	}
	fmt.Fprintf(&b, "Messages in recent history: %d\n", len(cc.RecentMessages))
	return b.String()
}

type riskVerdict struct {
	RiskLevel  string   `json:"riskLevel"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators"`
	Reasoning  string   `json:"reasoning"`
}

func parseRiskVerdict(raw string) (RiskLevel, riskVerdict, error) {
	text := sanitizeModelJSON(raw)
	if text == "" {
		return 0, riskVerdict{}, errors.New("crisis: ai empty response")
	}

	var verdict riskVerdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return 0, riskVerdict{}, fmt.Errorf("crisis: ai response parse: %w", err)
	}

	level, err := ParseRiskLevel(verdict.RiskLevel)
	if err != nil {
		return 0, riskVerdict{}, fmt.Errorf("crisis: ai verdict invalid: %w", err)
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	return level, verdict, nil
}
