package events

import (
	"time"

	"github.com/spec-kit/live-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestMatched   EventType = "request_matched"
	EventRequestTimeout   EventType = "request_timeout"
	EventRequestCancelled EventType = "request_cancelled"
	EventRequestCompleted EventType = "request_completed"
	EventAgentResponded   EventType = "agent_responded"
	EventAgentPresence    EventType = "agent_presence"
)

// Event represents a domain event emitted by the matching engine and the
// presence tracker.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestMatchedPayload payload.
type RequestMatchedPayload struct {
	RequesterID string             `json:"requester_id"`
	AgentID     string             `json:"agent_id"`
	Kind        domain.RequestKind `json:"kind"`
}

// RequestTimeoutPayload payload.
type RequestTimeoutPayload struct {
	RequesterID string `json:"requester_id"`
	Reason      string `json:"reason"`
}

// RequestCancelledPayload payload.
type RequestCancelledPayload struct {
	RequesterID string `json:"requester_id"`
}

// RequestCompletedPayload payload.
type RequestCompletedPayload struct {
	RequesterID string  `json:"requester_id"`
	AgentID     *string `json:"agent_id,omitempty"`
}

// AgentRespondedPayload payload.
type AgentRespondedPayload struct {
	RequesterID string                 `json:"requester_id"`
	AgentID     string                 `json:"agent_id"`
	Outcome     domain.ResponseOutcome `json:"outcome"`
}

// AgentPresencePayload payload.
type AgentPresencePayload struct {
	AgentID string               `json:"agent_id"`
	State   domain.PresenceState `json:"state"`
}
