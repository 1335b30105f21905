package transport

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/events"
	"github.com/spec-kit/live-support/internal/observability"
)

const (
	writeTimeout  = 5 * time.Second
	sendQueueSize = 32
)

// PresenceSink receives connect/disconnect signals from the transport layer.
// The role comes from the authenticated principal on the upgraded connection.
type PresenceSink interface {
	Connect(actorID string, role domain.Role)
	Disconnect(actorID string)
}

// Envelope is the wire format pushed to clients.
type Envelope struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   interface{}      `json:"payload"`
}

// session is one client connection. Writes go through a buffered queue
// drained by a dedicated writer goroutine, so a stalled peer never blocks
// the hub lock or other actors' deliveries.
type session struct {
	conn *websocket.Conn
	send chan Envelope
}

// Hub maintains per-actor WebSocket sessions and delivers notifications
// best-effort, at most once. A notification to a disconnected actor or a
// full session queue is dropped; the request store remains the source of
// truth and a reconnecting client re-fetches state.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*session]struct{}
	presence PresenceSink
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewHub creates the hub.
func NewHub(presence PresenceSink, metrics *observability.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[*session]struct{}),
		presence: presence,
		metrics:  metrics,
		logger:   logger,
	}
}

// Serve owns a client connection for its lifetime: registers it, feeds the
// presence tracker, starts the writer, and blocks reading until the peer
// goes away.
func (h *Hub) Serve(actorID string, role domain.Role, conn *websocket.Conn) {
	s := &session{conn: conn, send: make(chan Envelope, sendQueueSize)}
	h.register(actorID, s)
	h.presence.Connect(actorID, role)
	go h.writePump(actorID, s)
	defer func() {
		h.unregister(actorID, s)
		h.presence.Disconnect(actorID)
	}()

	for {
		// Clients do not send application data; the read pump only
		// detects closure.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// SendToActor queues one event for every open session of the actor. Never
// blocks: a full queue drops the envelope.
func (h *Hub) SendToActor(actorID string, eventType events.EventType, payload interface{}) {
	envelope := Envelope{Type: eventType, Timestamp: time.Now(), Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	sessions := h.sessions[actorID]
	if len(sessions) == 0 {
		h.metrics.RecordDroppedNotification()
		h.logger.Debug("notification dropped, actor disconnected",
			zap.String("actor_id", actorID), zap.String("event_type", string(eventType)))
		return
	}
	for s := range sessions {
		h.enqueue(actorID, s, envelope)
	}
}

// Broadcast queues one event for every connected actor.
func (h *Hub) Broadcast(eventType events.EventType, payload interface{}) {
	envelope := Envelope{Type: eventType, Timestamp: time.Now(), Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for actorID, sessions := range h.sessions {
		for s := range sessions {
			h.enqueue(actorID, s, envelope)
		}
	}
}

// enqueue performs a non-blocking send. Callers hold h.mu, which also
// serializes enqueue against unregister's close of the channel.
func (h *Hub) enqueue(actorID string, s *session, envelope Envelope) {
	select {
	case s.send <- envelope:
	default:
		h.metrics.RecordDroppedNotification()
		h.logger.Debug("notification dropped, session queue full",
			zap.String("actor_id", actorID), zap.String("event_type", string(envelope.Type)))
	}
}

// writePump drains the session queue onto the wire with a per-write
// deadline. On a failed or timed-out write it closes the connection, which
// unblocks the read pump and tears the session down.
func (h *Hub) writePump(actorID string, s *session) {
	for envelope := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteJSON(envelope); err != nil {
			h.metrics.RecordDroppedNotification()
			h.logger.Debug("notification write failed",
				zap.String("actor_id", actorID), zap.Error(err))
			_ = s.conn.Close()
			// Count whatever was queued behind the dead connection.
			for range s.send {
				h.metrics.RecordDroppedNotification()
			}
			return
		}
	}
}

func (h *Hub) register(actorID string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.sessions[actorID]
	if !ok {
		sessions = make(map[*session]struct{})
		h.sessions[actorID] = sessions
	}
	sessions[s] = struct{}{}
}

func (h *Hub) unregister(actorID string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.sessions[actorID]
	if !ok {
		return
	}
	if _, live := sessions[s]; !live {
		return
	}
	delete(sessions, s)
	if len(sessions) == 0 {
		delete(h.sessions, actorID)
	}
	close(s.send)
}
