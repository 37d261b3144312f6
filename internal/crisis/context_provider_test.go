package crisis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	messages  []Message
	err       error
	lastLimit int
}

func (s *stubHistory) Recent(_ context.Context, _ string, limit int) ([]Message, error) {
	s.lastLimit = limit
	return s.messages, s.err
}

type stubFlagCounter struct {
	count     int
	err       error
	lastSince time.Time
}

func (s *stubFlagCounter) CountEventsSince(_ context.Context, _ string, since time.Time) (int, error) {
	s.lastSince = since
	return s.count, s.err
}

type stubProfile struct {
	entries      []MoodEntry
	entriesErr   error
	mood         *int
	moodErr      error
	sessions     int
	sessionsErr  error
	factors      []string
	factorsErr   error
	moodSince    time.Time
	sessionSince time.Time
}

func (s *stubProfile) MoodEntries(_ context.Context, _ string, since time.Time) ([]MoodEntry, error) {
	s.moodSince = since
	return s.entries, s.entriesErr
}

func (s *stubProfile) LatestMood(context.Context, string) (*int, error) {
	return s.mood, s.moodErr
}

func (s *stubProfile) CountSessionsSince(_ context.Context, _ string, since time.Time) (int, error) {
	s.sessionSince = since
	return s.sessions, s.sessionsErr
}

func (s *stubProfile) RiskFactors(context.Context, string) ([]string, error) {
	return s.factors, s.factorsErr
}

func TestContextProvider_Context(t *testing.T) {
	mood := 4
	history := &stubHistory{messages: []Message{{ID: "m1", Role: "user", Content: "hi"}}}
	events := &stubFlagCounter{count: 3}
	profile := &stubProfile{mood: &mood}

	provider := NewContextProvider(history, events, profile, ContextWindows{}, nil)
	cc := provider.Context(context.Background(), "user-1", "sess-1")

	assert.Equal(t, "user-1", cc.UserID)
	assert.Equal(t, "sess-1", cc.SessionID)
	assert.Len(t, cc.RecentMessages, 1)
	assert.Equal(t, 3, cc.RecentCrisisFlags)
	require.NotNil(t, cc.CurrentMood)
	assert.Equal(t, 4, *cc.CurrentMood)
	assert.Equal(t, 20, history.lastLimit)
}

func TestContextProvider_ContextDegradesPerSignal(t *testing.T) {
	history := &stubHistory{err: errors.New("redis down")}
	events := &stubFlagCounter{err: errors.New("pg down")}
	profile := &stubProfile{moodErr: errors.New("pg down")}

	provider := NewContextProvider(history, events, profile, ContextWindows{}, nil)
	cc := provider.Context(context.Background(), "user-1", "sess-1")

	assert.Equal(t, "user-1", cc.UserID)
	assert.Empty(t, cc.RecentMessages)
	assert.Zero(t, cc.RecentCrisisFlags)
	assert.Nil(t, cc.CurrentMood)
}

func TestContextProvider_ContextWindowArithmetic(t *testing.T) {
	history := &stubHistory{}
	events := &stubFlagCounter{}
	profile := &stubProfile{}

	provider := NewContextProvider(history, events, profile, ContextWindows{Messages: 5}, nil)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return now }

	provider.Context(context.Background(), "user-1", "sess-1")
	_, err := provider.BehavioralPattern(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 5, history.lastLimit)
	assert.Equal(t, now.AddDate(0, 0, -7), events.lastSince)
	assert.Equal(t, now.AddDate(0, 0, -14), profile.moodSince)
	assert.Equal(t, now.AddDate(0, 0, -7), profile.sessionSince)
}

func TestContextProvider_BehavioralPattern(t *testing.T) {
	profile := &stubProfile{
		entries:  []MoodEntry{{Score: 3}, {Score: 2}},
		sessions: 11,
		factors:  []string{RiskFactorSubstanceAbuse},
	}
	provider := NewContextProvider(&stubHistory{}, &stubFlagCounter{}, profile, ContextWindows{}, nil)

	pattern, err := provider.BehavioralPattern(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Len(t, pattern.MoodScores, 2)
	assert.Equal(t, 11, pattern.ConversationFrequency)
	assert.Equal(t, []string{RiskFactorSubstanceAbuse}, pattern.RiskFactors)
}

func TestContextProvider_BehavioralPatternMoodFailureIsError(t *testing.T) {
	profile := &stubProfile{entriesErr: errors.New("pg down")}
	provider := NewContextProvider(&stubHistory{}, &stubFlagCounter{}, profile, ContextWindows{}, nil)

	_, err := provider.BehavioralPattern(context.Background(), "user-1")

	assert.Error(t, err)
}

func TestContextProvider_BehavioralPatternSupplementaryReadsDegrade(t *testing.T) {
	profile := &stubProfile{
		entries:     []MoodEntry{{Score: 6}},
		sessionsErr: errors.New("pg down"),
		factorsErr:  errors.New("pg down"),
	}
	provider := NewContextProvider(&stubHistory{}, &stubFlagCounter{}, profile, ContextWindows{}, nil)

	pattern, err := provider.BehavioralPattern(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Len(t, pattern.MoodScores, 1)
	assert.Zero(t, pattern.ConversationFrequency)
	assert.Nil(t, pattern.RiskFactors)
}
