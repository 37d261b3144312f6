package crisis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

var contextTracer = otel.Tracer("havenmind/context-provider")

type conversationHistory interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

type crisisFlagCounter interface {
	CountEventsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type moodProfile interface {
	MoodEntries(ctx context.Context, userID string, since time.Time) ([]MoodEntry, error)
	LatestMood(ctx context.Context, userID string) (*int, error)
	CountSessionsSince(ctx context.Context, userID string, since time.Time) (int, error)
	RiskFactors(ctx context.Context, userID string) ([]string, error)
}

// ContextWindows bounds how far back the provider looks for each signal.
type ContextWindows struct {
	Messages    int
	CrisisFlags time.Duration
	Mood        time.Duration
	Sessions    time.Duration
}

func DefaultContextWindows() ContextWindows {
	return ContextWindows{
		Messages:    20,
		CrisisFlags: 7 * 24 * time.Hour,
		Mood:        14 * 24 * time.Hour,
		Sessions:    7 * 24 * time.Hour,
	}
}

// ContextProvider assembles the per-message ConversationContext the analyzers
// read, and serves the behavioral analyzer's historical pattern. Reads are
// best-effort: a missing signal degrades to its zero value instead of
// blocking the assessment.
type ContextProvider struct {
	history conversationHistory
	events  crisisFlagCounter
	profile moodProfile
	windows ContextWindows
	logger  *logging.Logger
	now     func() time.Time
}

var _ PatternReader = (*ContextProvider)(nil)

func NewContextProvider(history conversationHistory, events crisisFlagCounter, profile moodProfile, windows ContextWindows, logger *logging.Logger) *ContextProvider {
	if history == nil || events == nil || profile == nil {
		panic("crisis: context provider requires history, events and profile stores")
	}
	if logger == nil {
		logger = logging.Default()
	}
	defaults := DefaultContextWindows()
	if windows.Messages <= 0 {
		windows.Messages = defaults.Messages
	}
	if windows.CrisisFlags <= 0 {
		windows.CrisisFlags = defaults.CrisisFlags
	}
	if windows.Mood <= 0 {
		windows.Mood = defaults.Mood
	}
	if windows.Sessions <= 0 {
		windows.Sessions = defaults.Sessions
	}
	return &ContextProvider{
		history: history,
		events:  events,
		profile: profile,
		windows: windows,
		logger:  logger,
		now:     time.Now,
	}
}

// Context builds the conversation context for one incoming message.
func (p *ContextProvider) Context(ctx context.Context, userID, sessionID string) ConversationContext {
	ctx, span := contextTracer.Start(ctx, "crisis.assemble_context")
	defer span.End()

	cc := ConversationContext{UserID: userID, SessionID: sessionID}

	messages, err := p.history.Recent(ctx, sessionID, p.windows.Messages)
	if err != nil {
		p.logger.Warn("session history unavailable", "session_id", sessionID, "error", err)
	} else {
		cc.RecentMessages = messages
	}

	flags, err := p.events.CountEventsSince(ctx, userID, p.now().Add(-p.windows.CrisisFlags))
	if err != nil {
		p.logger.Warn("crisis flag count unavailable", "user_id", userID, "error", err)
	} else {
		cc.RecentCrisisFlags = flags
	}

	mood, err := p.profile.LatestMood(ctx, userID)
	if err != nil {
		p.logger.Warn("latest mood unavailable", "user_id", userID, "error", err)
	} else {
		cc.CurrentMood = mood
	}

	span.SetAttributes(
		attribute.Int("context.recent_messages", len(cc.RecentMessages)),
		attribute.Int("context.crisis_flags", cc.RecentCrisisFlags),
		attribute.Bool("context.mood_known", cc.CurrentMood != nil),
	)
	return cc
}

// BehavioralPattern reads the mood, session and risk-factor history the
// behavioral analyzer scores. Mood history is the load-bearing signal, so a
// failure there is returned; the supplementary reads degrade to zero values.
func (p *ContextProvider) BehavioralPattern(ctx context.Context, userID string) (BehavioralPattern, error) {
	ctx, span := contextTracer.Start(ctx, "crisis.behavioral_pattern")
	defer span.End()

	now := p.now()
	entries, err := p.profile.MoodEntries(ctx, userID, now.Add(-p.windows.Mood))
	if err != nil {
		span.RecordError(err)
		return BehavioralPattern{}, fmt.Errorf("crisis: mood history: %w", err)
	}

	pattern := BehavioralPattern{MoodScores: entries}

	sessions, err := p.profile.CountSessionsSince(ctx, userID, now.Add(-p.windows.Sessions))
	if err != nil {
		p.logger.Warn("session count unavailable", "user_id", userID, "error", err)
	} else {
		pattern.ConversationFrequency = sessions
	}

	factors, err := p.profile.RiskFactors(ctx, userID)
	if err != nil {
		p.logger.Warn("risk factors unavailable", "user_id", userID, "error", err)
	} else {
		pattern.RiskFactors = factors
	}

	span.SetAttributes(
		attribute.Int("pattern.mood_entries", len(pattern.MoodScores)),
		attribute.Int("pattern.weekly_sessions", pattern.ConversationFrequency),
	)
	return pattern, nil
}
