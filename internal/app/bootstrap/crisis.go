package bootstrap

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/havenmind/wellness-ai-platform/internal/compliance"
	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	"github.com/havenmind/wellness-ai-platform/internal/crisis"
	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/internal/followup"
	"github.com/havenmind/wellness-ai-platform/internal/notify"
	"github.com/havenmind/wellness-ai-platform/internal/observability/metrics"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// CrisisDeps carries the shared infrastructure the analysis stack builds on.
// Pool and Redis are required; a nil optional collaborator skips its
// intervention stage rather than failing assembly.
type CrisisDeps struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Audit     *compliance.AuditService
	Jobs      *crisis.Publisher
	FollowUps *followup.Scheduler
	Activity  *followup.Worker
	Outbox    *events.OutboxStore
	Emergency *notify.EmergencyClient
	Metrics   *metrics.CrisisMetrics
}

// CrisisStack is the assembled analysis pipeline plus the stores the HTTP
// handlers and the queue worker read directly.
type CrisisStack struct {
	Pipeline *crisis.Pipeline
	Store    *crisis.Store
	Profiles *crisis.ProfileStore
	History  *crisis.HistoryStore
}

// BuildCalibration returns the shipped calibration with config overrides
// applied. Zero-valued config fields keep the shipped defaults.
func BuildCalibration(cfg *appconfig.Config) crisis.Calibration {
	cal := crisis.DefaultCalibration()
	if cfg == nil {
		return cal
	}
	if cfg.EscalationConfidence > 0 {
		cal.EscalationConfidence = cfg.EscalationConfidence
	}
	if cfg.NotifyConfidence > 0 {
		cal.NotifyConfidence = cfg.NotifyConfidence
	}
	if cfg.KeywordMatchIncrement > 0 {
		cal.KeywordMatchIncrement = cfg.KeywordMatchIncrement
	}
	if cfg.FusionCriticalThreshold > 0 {
		cal.CriticalThreshold = cfg.FusionCriticalThreshold
	}
	if cfg.FusionHighThreshold > 0 {
		cal.HighThreshold = cfg.FusionHighThreshold
	}
	if cfg.FusionMediumThreshold > 0 {
		cal.MediumThreshold = cfg.FusionMediumThreshold
	}
	if cfg.FollowUpInterval > 0 {
		cal.FollowUpInterval = cfg.FollowUpInterval
	}
	return cal
}

// BuildLLMClient wires the generative model stack: Bedrock primary with
// Gemini as fallback when both are configured, either alone otherwise. The
// returned model id is what analyzers should request; a nil client means no
// provider is configured and the model-backed analyzers are skipped.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (crisis.LLMClient, string) {
	if cfg == nil {
		return nil, ""
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var bedrock crisis.LLMClient
	if cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config for Bedrock", "error", err)
		} else {
			bedrock = crisis.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		}
	}

	var gemini crisis.LLMClient
	if cfg.GeminiAPIKey != "" {
		client, err := crisis.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
		} else {
			gemini = client
		}
	}

	switch {
	case bedrock != nil && gemini != nil:
		logger.Info("llm stack configured", "primary", "bedrock", "fallback", "gemini", "model", cfg.BedrockModelID)
		return crisis.NewFallbackLLMClient(bedrock, gemini, logger), cfg.BedrockModelID
	case bedrock != nil:
		logger.Info("llm stack configured", "primary", "bedrock", "model", cfg.BedrockModelID)
		return bedrock, cfg.BedrockModelID
	case gemini != nil:
		logger.Info("llm stack configured", "primary", "gemini", "model", cfg.GeminiModel)
		return gemini, cfg.GeminiModel
	default:
		logger.Warn("no llm provider configured; running lexical and behavioral analyzers only")
		return nil, ""
	}
}

// BuildCrisisStack assembles the full analysis path: context provider,
// analyzers, fusion, detector, intervention orchestrator and pipeline.
func BuildCrisisStack(ctx context.Context, cfg *appconfig.Config, deps CrisisDeps, logger *logging.Logger) (*CrisisStack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("bootstrap: postgres pool is required for crisis analysis")
	}
	if deps.Redis == nil {
		return nil, fmt.Errorf("bootstrap: redis is required for session history")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cal := BuildCalibration(cfg)
	store := crisis.NewStore(deps.Pool)
	profiles := crisis.NewProfileStore(deps.Pool)
	history := crisis.NewHistoryStore(deps.Redis, nil)

	provider := crisis.NewContextProvider(history, store, profiles, crisis.ContextWindows{
		Messages:    cfg.ContextMessageWindow,
		CrisisFlags: days(cfg.CrisisFlagWindowDays),
		Mood:        days(cfg.MoodWindowDays),
		Sessions:    days(cfg.SessionWindowDays),
	}, logger)

	analyzers := []crisis.Analyzer{
		crisis.NewKeywordAnalyzer(cal, logger),
		crisis.NewPatternAnalyzer(provider, cal, logger),
	}

	if llm, modelID := BuildLLMClient(ctx, cfg, logger); llm != nil {
		sentimentModel := cfg.BedrockSentimentModelID
		if sentimentModel == "" {
			sentimentModel = modelID
		}
		analyzers = append(analyzers,
			crisis.NewSentimentAnalyzer(crisis.NewLLMSentimentClient(llm, sentimentModel, logger), cal, logger),
			crisis.NewAIAnalyzer(llm, modelID, cal, logger),
		)
	}

	eventLog := crisis.NewEventLogger(logger)
	fusion := crisis.NewFusionEngine(cal, logger)
	detector := crisis.NewDetector(analyzers, fusion, cfg.AnalyzerTimeout, deps.Metrics, logger).
		WithEventLog(eventLog)

	orchOpts := []crisis.OrchestratorOption{
		crisis.WithResourceDirectory(notify.DefaultDirectory(), cfg.ResourceRegion),
		crisis.WithEventLog(eventLog),
	}
	if deps.Jobs != nil {
		orchOpts = append(orchOpts, crisis.WithJobPublisher(deps.Jobs))
	}
	if deps.Emergency != nil {
		orchOpts = append(orchOpts, crisis.WithEmergencyContactor(deps.Emergency))
	} else {
		logger.Warn("emergency escalation disabled (EMERGENCY_WEBHOOK_URL not set)")
	}
	if deps.FollowUps != nil {
		orchOpts = append(orchOpts, crisis.WithFollowUpScheduler(deps.FollowUps))
	}
	if deps.Outbox != nil {
		orchOpts = append(orchOpts, crisis.WithOutbox(deps.Outbox))
	}
	if deps.Audit != nil {
		orchOpts = append(orchOpts, crisis.WithAuditService(deps.Audit))
	}
	orchestrator := crisis.NewOrchestrator(store, cal, deps.Metrics, logger, orchOpts...)

	pipeOpts := []crisis.PipelineOption{
		crisis.WithHistoryAppender(history),
		crisis.WithSessionToucher(profiles),
	}
	if deps.Activity != nil {
		pipeOpts = append(pipeOpts, crisis.WithActivityHandler(deps.Activity))
	}
	if deps.Audit != nil {
		pipeOpts = append(pipeOpts, crisis.WithAuditTrail(deps.Audit))
	}
	pipeline := crisis.NewPipeline(provider, detector, orchestrator, logger, pipeOpts...)

	logger.Info("crisis analysis stack assembled",
		"analyzers", len(analyzers),
		"escalation_confidence", cal.EscalationConfidence,
		"region", cfg.ResourceRegion,
	)

	return &CrisisStack{
		Pipeline: pipeline,
		Store:    store,
		Profiles: profiles,
		History:  history,
	}, nil
}

func days(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * 24 * time.Hour
}
