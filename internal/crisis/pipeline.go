package crisis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var pipelineTracer = otel.Tracer("havenmind/crisis-pipeline")

type historyAppender interface {
	Append(ctx context.Context, sessionID string, msg Message) error
}

type sessionToucher interface {
	TouchSession(ctx context.Context, sessionID, userID string) error
}

// activityHandler closes out open follow-up check-ins when the user writes.
type activityHandler interface {
	HandleUserActivity(ctx context.Context, userID string) (int64, error)
}

// AnalyzeResult is what one message analysis produced: the fused assessment
// and whatever the intervention protocol did with it.
type AnalyzeResult struct {
	Assessment   OverallAssessment  `json:"assessment"`
	Intervention InterventionResult `json:"intervention"`
}

// Pipeline is the analysis entry point shared by the HTTP API and the queue
// worker. It assembles context, runs detection, hands the result to the
// orchestrator, then records the message in session history. Bookkeeping runs
// after detection so a message never influences its own context.
type Pipeline struct {
	provider     *ContextProvider
	detector     *Detector
	orchestrator *Orchestrator
	history      historyAppender
	sessions     sessionToucher
	activity     activityHandler
	audit        *compliance.AuditService
	logger       *logging.Logger
}

// PipelineOption configures optional bookkeeping collaborators.
type PipelineOption func(*Pipeline)

// WithHistoryAppender records analyzed messages into session history.
func WithHistoryAppender(h historyAppender) PipelineOption {
	return func(p *Pipeline) { p.history = h }
}

// WithSessionToucher keeps session activity timestamps current.
func WithSessionToucher(s sessionToucher) PipelineOption {
	return func(p *Pipeline) { p.sessions = s }
}

// WithActivityHandler completes open follow-up check-ins on user activity.
func WithActivityHandler(a activityHandler) PipelineOption {
	return func(p *Pipeline) { p.activity = a }
}

// WithAuditTrail records fallback decisions in the audit trail.
func WithAuditTrail(audit *compliance.AuditService) PipelineOption {
	return func(p *Pipeline) { p.audit = audit }
}

// NewPipeline wires the analysis path.
func NewPipeline(provider *ContextProvider, detector *Detector, orchestrator *Orchestrator, logger *logging.Logger, opts ...PipelineOption) *Pipeline {
	if provider == nil || detector == nil || orchestrator == nil {
		panic("crisis: pipeline requires provider, detector and orchestrator")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pipeline{
		provider:     provider,
		detector:     detector,
		orchestrator: orchestrator,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze assesses one message end to end. Detection failures degrade to the
// conservative fallback assessment instead of surfacing as errors; only
// invalid input errors out.
func (p *Pipeline) Analyze(ctx context.Context, req AnalyzeRequest) (out AnalyzeResult, err error) {
	if strings.TrimSpace(req.UserID) == "" {
		return AnalyzeResult{}, errors.New("crisis: user id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return AnalyzeResult{}, errors.New("crisis: message is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = req.UserID
	}
	if strings.TrimSpace(req.MessageID) == "" {
		req.MessageID = uuid.NewString()
	}

	ctx, span := pipelineTracer.Start(ctx, "crisis.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("crisis.user_id", req.UserID),
		attribute.String("crisis.session_id", req.SessionID),
	)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analysis pipeline panicked",
				"panic", r, "user_id", req.UserID, "session_id", req.SessionID)
			span.SetAttributes(attribute.Bool("crisis.fallback", true))
			out = AnalyzeResult{Assessment: fallbackAssessment()}
			err = nil
			if p.audit != nil {
				_ = p.audit.LogAnalysisFallback(ctx, req.UserID, req.SessionID, fmt.Sprint(r))
			}
		}
	}()

	cc := p.provider.Context(ctx, req.UserID, req.SessionID)
	overall := p.detector.Detect(ctx, req.Message, cc)
	intervention := p.orchestrator.Intervene(ctx, req, overall)

	p.recordActivity(ctx, req)

	span.SetAttributes(
		attribute.String("crisis.level", overall.Level.String()),
		attribute.Bool("crisis.intervened", intervention.Intervened),
	)
	return AnalyzeResult{Assessment: overall, Intervention: intervention}, nil
}

// recordActivity runs the post-analysis bookkeeping. All of it is best
// effort: losing a history write must never lose an assessment.
func (p *Pipeline) recordActivity(ctx context.Context, req AnalyzeRequest) {
	if p.history != nil {
		msg := Message{
			ID:        req.MessageID,
			Role:      "user",
			Content:   req.Message,
			CreatedAt: time.Now().UTC(),
		}
		if err := p.history.Append(ctx, req.SessionID, msg); err != nil {
			p.logger.Warn("failed to append session history",
				"session_id", req.SessionID, "error", err)
		}
	}
	if p.sessions != nil {
		if err := p.sessions.TouchSession(ctx, req.SessionID, req.UserID); err != nil {
			p.logger.Warn("failed to touch session",
				"session_id", req.SessionID, "error", err)
		}
	}
	if p.activity != nil {
		if n, err := p.activity.HandleUserActivity(ctx, req.UserID); err != nil {
			p.logger.Warn("failed to settle follow-up check-ins",
				"user_id", req.UserID, "error", err)
		} else if n > 0 {
			p.logger.Info("user activity completed open check-ins",
				"user_id", req.UserID, "completed", n)
		}
	}
}
