package crisis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/internal/observability/metrics"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var detectorTracer = otel.Tracer("havenmind/crisis-detector")

// Analyzer is one independent risk signal source. Implementations never
// return an error: failure is expressed as a low-confidence assessment
// carrying a diagnostic trigger.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, message string, cc ConversationContext) Assessment
}

const defaultAnalyzerTimeout = 5 * time.Second

// Detector fans one message out to every analyzer concurrently, bounds each
// run, and fuses whatever came back. A slow, panicking or failing analyzer
// degrades to a diagnostic signal; it never takes the assessment down.
type Detector struct {
	analyzers []Analyzer
	fusion    *FusionEngine
	timeout   time.Duration
	metrics   *metrics.CrisisMetrics
	events    *EventLogger
	logger    *logging.Logger
}

func NewDetector(analyzers []Analyzer, fusion *FusionEngine, timeout time.Duration, m *metrics.CrisisMetrics, logger *logging.Logger) *Detector {
	if len(analyzers) == 0 {
		panic("crisis: detector needs at least one analyzer")
	}
	if fusion == nil {
		panic("crisis: detector fusion engine cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{
		analyzers: analyzers,
		fusion:    fusion,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// WithEventLog attaches the structured event stream. A nil logger disables
// emission.
func (d *Detector) WithEventLog(events *EventLogger) *Detector {
	d.events = events
	return d
}

// Detect runs the full analysis for one message. It never returns an error:
// worst case it falls back to a conservative manual-review assessment.
func (d *Detector) Detect(ctx context.Context, message string, cc ConversationContext) (out OverallAssessment) {
	ctx, span := detectorTracer.Start(ctx, "crisis.detect")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("crisis detection panicked", "panic", r, "user_id", cc.UserID)
			span.SetAttributes(attribute.Bool("crisis.fallback", true))
			d.events.AnalysisFallback(ctx, cc.UserID, cc.SessionID)
			out = fallbackAssessment()
		}
	}()

	d.events.AnalysisStarted(ctx, cc.UserID, cc.SessionID, len(message), len(d.analyzers))

	results := make(chan Assessment, len(d.analyzers))
	for _, analyzer := range d.analyzers {
		go d.runAnalyzer(ctx, analyzer, message, cc, results)
	}

	assessments := make([]Assessment, 0, len(d.analyzers))
	for range d.analyzers {
		assessments = append(assessments, <-results)
	}

	out = d.fusion.Fuse(assessments)
	d.events.AssessmentFused(ctx, cc.UserID, cc.SessionID, out)

	d.metrics.ObserveAssessment(out.Level.String(), out.Escalated)
	if out.Escalated {
		d.metrics.ObserveEscalationOverride()
	}
	span.SetAttributes(
		attribute.String("crisis.level", out.Level.String()),
		attribute.Float64("crisis.confidence", out.Confidence),
		attribute.Bool("crisis.escalated", out.Escalated),
	)
	return out
}

// runAnalyzer executes one analyzer inside its own goroutine with a deadline.
// A result arriving after the deadline is discarded.
func (d *Detector) runAnalyzer(ctx context.Context, analyzer Analyzer, message string, cc ConversationContext, results chan<- Assessment) {
	name := analyzer.Name()
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	inner := make(chan Assessment, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("analyzer panicked", "analyzer", name, "panic", r)
				inner <- failureAssessmentFor(name, "analyzer panicked")
			}
		}()
		inner <- analyzer.Analyze(runCtx, message, cc)
	}()

	start := time.Now()
	select {
	case a := <-inner:
		elapsed := time.Since(start)
		d.metrics.ObserveAnalyzerLatency(name, elapsed.Seconds())
		if isDegraded(a) {
			d.metrics.ObserveAnalyzerFailure(name)
		}
		d.events.AnalyzerCompleted(ctx, cc.UserID, cc.SessionID, name, a, elapsed.Milliseconds())
		results <- a
	case <-runCtx.Done():
		d.metrics.ObserveAnalyzerLatency(name, time.Since(start).Seconds())
		d.metrics.ObserveAnalyzerFailure(name)
		d.logger.Warn("analyzer timed out", "analyzer", name, "timeout", d.timeout.String())
		d.events.AnalyzerTimedOut(ctx, cc.UserID, cc.SessionID, name, d.timeout)
		results <- failureAssessmentFor(name, "analyzer timed out")
	}
}

// failureAssessmentFor maps an analyzer to its diagnostic trigger so the
// fused assessment records which signal was missing.
func failureAssessmentFor(source, reason string) Assessment {
	trigger := TriggerAnalysisError
	switch source {
	case SourceSentiment:
		trigger = TriggerSentimentFailed
	case SourceBehavioral:
		trigger = TriggerPatternFailed
	case SourceAI:
		trigger = TriggerAIFailed
	}
	return Assessment{
		Level:      RiskLow,
		Confidence: 0.1,
		Triggers:   []string{trigger},
		Source:     source,
		Reasoning:  reason,
	}
}

func isDegraded(a Assessment) bool {
	for _, trigger := range a.Triggers {
		switch trigger {
		case TriggerSentimentFailed, TriggerPatternFailed, TriggerAIFailed, TriggerAnalysisError:
			return true
		}
	}
	return false
}

// fallbackAssessment is the hard-coded conservative answer when analysis
// itself broke: medium risk, routed to a human.
func fallbackAssessment() OverallAssessment {
	return OverallAssessment{
		Assessment: Assessment{
			Level:      RiskMedium,
			Confidence: 0.1,
			Triggers:   []string{TriggerAnalysisError},
			Source:     SourceFusion,
			Reasoning:  "analysis failed, defaulting to manual review",
		},
		Actions:        []string{ActionManualReview, ActionProvideResources},
		UrgencySeconds: 1800,
	}
}
