package alertfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/havenmind/wellness-ai-platform/internal/events"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// backlogSize bounds how many recent events a new subscriber receives.
const backlogSize = 50

// EventFrame is one crisis event as sent to feed subscribers.
type EventFrame struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Aggregate     string          `json:"aggregate"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// Frame is the wire message for feed subscribers.
type Frame struct {
	Type   string       `json:"type"` // "event", "backlog", "pong"
	Event  *EventFrame  `json:"event,omitempty"`
	Events []EventFrame `json:"events,omitempty"`
}

// InboundFrame is what subscribers send.
type InboundFrame struct {
	Type string `json:"type"` // "ping"
}

// Hub fans crisis events out to connected on-call dashboards. It plugs into
// the outbox deliverer as a DeliveryHandler and keeps a short backlog so a
// dashboard that reconnects still sees what it missed.
type Hub struct {
	logger *logging.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	recent []EventFrame
}

type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.JSON.Send(s.conn, f)
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Handle broadcasts one outbox entry to every subscriber. It never fails
// delivery: the feed is observational, and a slow or dead dashboard must not
// hold the outbox open. Undecodable payloads are logged and skipped.
func (h *Hub) Handle(_ context.Context, entry events.OutboxEntry) error {
	env, err := entry.DecodeEnvelope()
	if err != nil {
		h.logger.Error("alert feed: undeliverable outbox payload", "event_id", entry.ID, "error", err)
		return nil
	}

	frame := EventFrame{
		EventID:       env.EventID.String(),
		EventType:     env.EventType,
		Aggregate:     env.Aggregate,
		CorrelationID: env.CorrelationID,
		Timestamp:     time.UnixMicro(env.TimestampMicros).UTC().Format(time.RFC3339),
		Payload:       env.Payload,
	}

	h.mu.Lock()
	h.recent = append(h.recent, frame)
	if len(h.recent) > backlogSize {
		h.recent = h.recent[len(h.recent)-backlogSize:]
	}
	targets := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		if err := sub.send(Frame{Type: "event", Event: &frame}); err != nil {
			h.logger.Debug("alert feed: dropping subscriber", "error", err)
			h.unsubscribe(sub)
		}
	}
	return nil
}

// Subscribers reports how many dashboards are connected.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// HandleWebSocket upgrades to WebSocket and streams the feed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Hub) serveWS(conn *websocket.Conn, r *http.Request) {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	backlog := append([]EventFrame(nil), h.recent...)
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	defer h.unsubscribe(sub)

	if err := sub.send(Frame{Type: "backlog", Events: backlog}); err != nil {
		return
	}

	h.logger.Info("alert feed: subscriber connected", "remote", r.RemoteAddr, "backlog", len(backlog))

	for {
		var msg InboundFrame
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("alert feed: subscriber disconnected", "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = sub.send(Frame{Type: "pong"})
		}
	}
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}
