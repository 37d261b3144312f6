package crisis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var patternTracer = otel.Tracer("havenmind/pattern-analyzer")

// PatternReader loads behavioral history for a user. MoodScores must be
// ordered oldest first so the trend calculation sees chronological deltas.
type PatternReader interface {
	BehavioralPattern(ctx context.Context, userID string) (BehavioralPattern, error)
}

// highRiskFactors is the fixed set of profile tags that each add confidence
// and surface as their own trigger.
var highRiskFactors = map[string]struct{}{
	RiskFactorPreviousAttempts: {},
	RiskFactorSubstanceAbuse:   {},
	RiskFactorSocialIsolation:  {},
	RiskFactorRecentLoss:       {},
}

// PatternAnalyzer derives a risk signal from mood trajectory, conversation
// cadence, sleep quality, and known risk factors. Behavioral inference is the
// weakest evidence in the pipeline, so its confidence ceiling sits below the
// other analyzers.
type PatternAnalyzer struct {
	reader PatternReader
	cal    Calibration
	logger *logging.Logger
}

var _ Analyzer = (*PatternAnalyzer)(nil)

func NewPatternAnalyzer(reader PatternReader, cal Calibration, logger *logging.Logger) *PatternAnalyzer {
	if reader == nil {
		panic("crisis: pattern reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PatternAnalyzer{reader: reader, cal: cal, logger: logger}
}

func (a *PatternAnalyzer) Name() string { return SourceBehavioral }

func (a *PatternAnalyzer) Analyze(ctx context.Context, _ string, cc ConversationContext) Assessment {
	ctx, span := patternTracer.Start(ctx, "crisis.patterns")
	defer span.End()

	pattern, err := a.reader.BehavioralPattern(ctx, cc.UserID)
	if err != nil {
		a.logger.Warn("behavioral pattern read failed", "error", err.Error(), "user_id", cc.UserID)
		span.SetAttributes(attribute.Bool("crisis.pattern_failed", true))
		return Assessment{
			Level:      RiskLow,
			Confidence: 0.1,
			Triggers:   []string{TriggerPatternFailed},
			Source:     SourceBehavioral,
			Reasoning:  "behavioral history unavailable",
		}
	}

	level := RiskLow
	confidence := 0.3
	var triggers []string

	avgMood, trend, hasMood := moodStats(pattern.MoodScores)
	reasoning := "no recent mood data"
	if hasMood {
		reasoning = fmt.Sprintf("avg mood %.1f over %d entries, trend %.2f", avgMood, len(pattern.MoodScores), trend)
		switch {
		case avgMood < a.cal.CriticalMoodAverage && trend < a.cal.DecliningTrend:
			level = RiskHigh
			confidence = 0.85
			triggers = append(triggers, TriggerDecliningMoodTrajectory)
		case avgMood < a.cal.LowMoodAverage:
			level = RiskMedium
			confidence = 0.7
			triggers = append(triggers, TriggerLowMoodPattern)
		}
	}

	// More help-seeking raises signal confidence, not severity.
	if pattern.ConversationFrequency > a.cal.HighWeeklyFrequency {
		confidence += 0.1
		triggers = append(triggers, TriggerIncreasedHelpSeeking)
	}
	if pattern.ConversationFrequency == 0 {
		level = maxLevel(level, RiskMedium)
		confidence += 0.1
		triggers = append(triggers, TriggerSocialWithdrawal)
	}

	if avgSleep, ok := sleepAverage(pattern.MoodScores); ok && avgSleep < a.cal.PoorSleepAverage {
		level = maxLevel(level, RiskMedium)
		confidence += 0.1
		triggers = append(triggers, TriggerSevereSleepDisruption)
	}

	for _, factor := range pattern.RiskFactors {
		if _, ok := highRiskFactors[factor]; !ok {
			continue
		}
		confidence += a.cal.RiskFactorBoost
		triggers = append(triggers, factor)
	}

	confidence = clampConfidence(confidence, a.cal.BehavioralMaxConfidence)

	span.SetAttributes(
		attribute.Float64("crisis.avg_mood", avgMood),
		attribute.Float64("crisis.mood_trend", trend),
		attribute.Int("crisis.conversation_frequency", pattern.ConversationFrequency),
		attribute.String("crisis.pattern_level", level.String()),
	)

	return Assessment{
		Level:      level,
		Confidence: confidence,
		Triggers:   triggers,
		Source:     SourceBehavioral,
		Reasoning:  reasoning,
	}
}

// moodStats returns the average score and the mean of successive differences
// for chronologically ordered entries.
func moodStats(entries []MoodEntry) (avg, trend float64, ok bool) {
	if len(entries) == 0 {
		return 0, 0, false
	}
	var sum float64
	for _, e := range entries {
		sum += float64(e.Score)
	}
	avg = sum / float64(len(entries))

	if len(entries) < 2 {
		return avg, 0, true
	}
	var deltas float64
	for i := 1; i < len(entries); i++ {
		deltas += float64(entries[i].Score - entries[i-1].Score)
	}
	trend = deltas / float64(len(entries)-1)
	return avg, trend, true
}

// sleepAverage averages the recorded sleep samples; entries without a sleep
// reading are skipped.
func sleepAverage(entries []MoodEntry) (float64, bool) {
	var sum float64
	var n int
	for _, e := range entries {
		if e.SleepQuality <= 0 {
			continue
		}
		sum += float64(e.SleepQuality)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
