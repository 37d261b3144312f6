package crisis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	name     string
	result   Assessment
	panics   bool
	blockCtx bool
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(ctx context.Context, _ string, _ ConversationContext) Assessment {
	if s.panics {
		panic("stub analyzer exploded")
	}
	if s.blockCtx {
		<-ctx.Done()
	}
	return s.result
}

func newStubDetector(t *testing.T, timeout time.Duration, analyzers ...Analyzer) *Detector {
	t.Helper()
	return NewDetector(analyzers, NewFusionEngine(DefaultCalibration(), nil), timeout, nil, nil)
}

func TestDetector_FusesAllSignals(t *testing.T) {
	detector := newStubDetector(t, 0,
		&stubAnalyzer{name: SourceKeyword, result: Assessment{Level: RiskCritical, Confidence: 0.9, Source: SourceKeyword, Triggers: []string{"end it all"}}},
		&stubAnalyzer{name: SourceSentiment, result: Assessment{Level: RiskLow, Confidence: 0.2, Source: SourceSentiment}},
		&stubAnalyzer{name: SourceBehavioral, result: Assessment{Level: RiskLow, Confidence: 0.2, Source: SourceBehavioral}},
		&stubAnalyzer{name: SourceAI, result: Assessment{Level: RiskLow, Confidence: 0.2, Source: SourceAI}},
	)

	got := detector.Detect(context.Background(), "msg", ConversationContext{UserID: "user-1"})

	assert.Equal(t, RiskCritical, got.Level)
	assert.True(t, got.Escalated)
	assert.Zero(t, got.UrgencySeconds)
	assert.Contains(t, got.Triggers, "end it all")
}

func TestDetector_SlowAnalyzerDegradesToFailureSignal(t *testing.T) {
	detector := newStubDetector(t, 40*time.Millisecond,
		&stubAnalyzer{name: SourceKeyword, result: Assessment{Level: RiskHigh, Confidence: 0.8, Source: SourceKeyword, Triggers: []string{"hopeless"}}},
		&stubAnalyzer{name: SourceSentiment, blockCtx: true},
	)

	start := time.Now()
	got := detector.Detect(context.Background(), "msg", ConversationContext{})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, got.Triggers, TriggerSentimentFailed)
	assert.Contains(t, got.Triggers, "hopeless")
	assert.Equal(t, RiskMedium, got.Level)
}

func TestDetector_PanickingAnalyzerIsIsolated(t *testing.T) {
	detector := newStubDetector(t, 0,
		&stubAnalyzer{name: SourceAI, panics: true},
		&stubAnalyzer{name: SourceKeyword, result: Assessment{Level: RiskLow, Confidence: 0.3, Source: SourceKeyword}},
	)

	got := detector.Detect(context.Background(), "msg", ConversationContext{})

	assert.Equal(t, RiskLow, got.Level)
	assert.Contains(t, got.Triggers, TriggerAIFailed)
}

func TestDetector_DefaultTimeout(t *testing.T) {
	detector := newStubDetector(t, 0, &stubAnalyzer{name: SourceKeyword})
	assert.Equal(t, defaultAnalyzerTimeout, detector.timeout)
}

// newScenarioDetector wires the four production analyzers with stubbed
// network edges so full messages can be pushed through the real pipeline.
func newScenarioDetector(t *testing.T, aiJSON string, sentiment SentimentResult, sentimentErr error, pattern BehavioralPattern) *Detector {
	t.Helper()
	cal := DefaultCalibration()
	analyzers := []Analyzer{
		NewKeywordAnalyzer(cal, nil),
		NewSentimentAnalyzer(&stubSentimentClient{result: sentiment, err: sentimentErr}, cal, nil),
		NewPatternAnalyzer(&stubPatternReader{pattern: pattern}, cal, nil),
		NewAIAnalyzer(&stubLLMClient{response: LLMResponse{Text: aiJSON}}, "test-model", cal, nil),
	}
	return NewDetector(analyzers, NewFusionEngine(cal, nil), 0, nil, nil)
}

func healthyPattern() BehavioralPattern {
	return BehavioralPattern{MoodScores: moodSeries(6, 7, 6, 7), ConversationFrequency: 5}
}

func TestDetector_ExplicitSuicidalIdeation(t *testing.T) {
	detector := newScenarioDetector(t,
		`{"riskLevel": "critical", "confidence": 0.92, "indicators": ["suicidal_ideation"], "reasoning": "explicit intent"}`,
		SentimentResult{Score: -0.9, Emotions: EmotionScores{Fear: 0.85, Sadness: 0.9}},
		nil,
		healthyPattern(),
	)

	got := detector.Detect(context.Background(), "I've been thinking about how to end my life", ConversationContext{UserID: "user-1"})

	assert.Equal(t, RiskCritical, got.Level)
	assert.True(t, got.Escalated)
	assert.Zero(t, got.UrgencySeconds)
	assert.GreaterOrEqual(t, got.Confidence, 0.9)
	assert.Contains(t, got.Triggers, "end my life")
	assert.Contains(t, got.Actions, ActionImmediateIntervention)
	assert.Contains(t, got.Actions, ActionEmergencyContact)
}

func TestDetector_AmbiguousDistress(t *testing.T) {
	detector := newScenarioDetector(t,
		`{"riskLevel": "high", "confidence": 0.8, "indicators": ["persistent_exhaustion"], "reasoning": "sustained distress"}`,
		SentimentResult{Score: -0.7},
		nil,
		BehavioralPattern{MoodScores: moodSeries(4, 3, 4, 3), ConversationFrequency: 5},
	)

	got := detector.Detect(context.Background(), "I feel so empty inside and exhausted all the time", ConversationContext{UserID: "user-1"})

	assert.Equal(t, RiskMedium, got.Level)
	assert.False(t, got.Escalated)
	assert.Equal(t, 1800, got.UrgencySeconds)
	assert.Contains(t, got.Triggers, "empty inside")
	assert.Contains(t, got.Triggers, TriggerLowMoodPattern)
	assert.Contains(t, got.Actions, ActionMoodTracking)
}

func TestDetector_SentimentOutageStillAssesses(t *testing.T) {
	detector := newScenarioDetector(t,
		`{"riskLevel": "high", "confidence": 0.75, "indicators": ["hopelessness"], "reasoning": "entrapment language"}`,
		SentimentResult{},
		errors.New("sentiment backend down"),
		BehavioralPattern{MoodScores: moodSeries(4, 3, 4, 3), ConversationFrequency: 5},
	)

	got := detector.Detect(context.Background(), "I feel hopeless, like there's no way out", ConversationContext{UserID: "user-1"})

	assert.Equal(t, RiskMedium, got.Level)
	assert.Contains(t, got.Triggers, TriggerSentimentFailed)
	assert.Contains(t, got.Triggers, "hopeless")
}

func TestDetector_HealthyMessageStaysLow(t *testing.T) {
	detector := newScenarioDetector(t,
		`{"riskLevel": "low", "confidence": 0.2, "indicators": [], "reasoning": "no risk content"}`,
		SentimentResult{Score: 0.6, Emotions: EmotionScores{Joy: 0.7}},
		nil,
		BehavioralPattern{MoodScores: moodSeries(7, 8, 7, 8), ConversationFrequency: 5},
	)

	got := detector.Detect(context.Background(), "Today was actually a pretty good day, went for a run", ConversationContext{UserID: "user-1"})

	assert.Equal(t, RiskLow, got.Level)
	assert.False(t, got.Escalated)
	assert.Equal(t, 3600, got.UrgencySeconds)
	assert.ElementsMatch(t, []string{ActionWellnessTips, ActionRoutineCheckIn}, got.Actions)
}

func TestDetector_RequiresAnalyzers(t *testing.T) {
	require.Panics(t, func() {
		NewDetector(nil, NewFusionEngine(DefaultCalibration(), nil), 0, nil, nil)
	})
}

func TestFailureAssessmentFor(t *testing.T) {
	for source, trigger := range map[string]string{
		SourceSentiment:  TriggerSentimentFailed,
		SourceBehavioral: TriggerPatternFailed,
		SourceAI:         TriggerAIFailed,
		SourceKeyword:    TriggerAnalysisError,
	} {
		t.Run(fmt.Sprintf("%s degrades to %s", source, trigger), func(t *testing.T) {
			got := failureAssessmentFor(source, "timed out")
			assert.Equal(t, RiskLow, got.Level)
			assert.Equal(t, 0.1, got.Confidence)
			assert.Equal(t, []string{trigger}, got.Triggers)
			assert.Equal(t, source, got.Source)
		})
	}
}
