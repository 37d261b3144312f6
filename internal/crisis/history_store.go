package crisis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	sessionHistoryTTL = 24 * time.Hour
	// historyMaxLength bounds the per-session list so a long-running session
	// cannot grow without limit.
	historyMaxLength = 200
)

// HistoryStore keeps the rolling per-session message history in Redis. The
// context provider reads a bounded window from it when assembling
// ConversationContext.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewHistoryStore(client *redis.Client, tracer trace.Tracer) *HistoryStore {
	if client == nil {
		panic("crisis: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("havenmind/session-history")
	}
	return &HistoryStore{redis: client, tracer: tracer}
}

// Append adds one message to the session history and refreshes the TTL.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, msg Message) error {
	ctx, span := s.tracer.Start(ctx, "crisis.history_append")
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("crisis: failed to marshal message: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, sessionHistoryKey(sessionID), data)
	pipe.LTrim(ctx, sessionHistoryKey(sessionID), -historyMaxLength, -1)
	pipe.Expire(ctx, sessionHistoryKey(sessionID), sessionHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("crisis: failed to persist message: %w", err)
	}
	return nil
}

// Recent returns up to limit messages, oldest first. An unknown session
// yields an empty history, not an error, because a first message legitimately
// has no history yet.
func (s *HistoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "crisis.history_recent")
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}

	raw, err := s.redis.LRange(ctx, sessionHistoryKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("crisis: failed to load history: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("crisis: failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func sessionHistoryKey(sessionID string) string {
	return fmt.Sprintf("crisis:history:%s", sessionID)
}
