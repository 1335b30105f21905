package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/events"
)

// Wire-level notification names delivered to per-actor channels.
const (
	NoticeRequestMatched   events.EventType = "request_matched"
	NoticeRequestAssigned  events.EventType = "request_assigned"
	NoticeRequestTimeout   events.EventType = "request_timeout"
	NoticeRequestCancelled events.EventType = "request_cancelled"
	NoticeRequestCompleted events.EventType = "request_completed"
	NoticeAgentAccepted    events.EventType = "agent_accepted"
	NoticeAgentRejected    events.EventType = "agent_rejected"
	NoticeAgentPresence    events.EventType = "agent_presence"
)

// ActorChannel delivers typed notifications to named per-actor channels.
type ActorChannel interface {
	SendToActor(actorID string, eventType events.EventType, payload interface{})
	Broadcast(eventType events.EventType, payload interface{})
}

// Service translates domain events into per-actor notifications.
type Service struct {
	dispatcher events.Dispatcher
	channel    ActorChannel
	logger     *zap.Logger
}

// NewService creates the service.
func NewService(dispatcher events.Dispatcher, channel ActorChannel, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		dispatcher: dispatcher,
		channel:    channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to domain events.
func (s *Service) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventRequestMatched, s.handleRequestMatched)
	s.dispatcher.Subscribe(events.EventRequestTimeout, s.handleRequestTimeout)
	s.dispatcher.Subscribe(events.EventRequestCancelled, s.handleRequestCancelled)
	s.dispatcher.Subscribe(events.EventRequestCompleted, s.handleRequestCompleted)
	s.dispatcher.Subscribe(events.EventAgentResponded, s.handleAgentResponded)
	s.dispatcher.Subscribe(events.EventAgentPresence, s.handleAgentPresence)
}

func (s *Service) handleRequestMatched(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestMatchedPayload)
	if !ok {
		return nil
	}
	s.logger.Info("RequestMatched",
		zap.String("request_id", event.RequestID),
		zap.String("agent_id", payload.AgentID))
	s.channel.SendToActor(payload.RequesterID, NoticeRequestMatched, event)
	s.channel.SendToActor(payload.AgentID, NoticeRequestAssigned, event)
	return nil
}

func (s *Service) handleRequestTimeout(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestTimeoutPayload)
	if !ok {
		return nil
	}
	s.logger.Info("RequestTimeout",
		zap.String("request_id", event.RequestID),
		zap.String("reason", payload.Reason))
	s.channel.SendToActor(payload.RequesterID, NoticeRequestTimeout, event)
	return nil
}

func (s *Service) handleRequestCancelled(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestCancelledPayload)
	if !ok {
		return nil
	}
	s.channel.SendToActor(payload.RequesterID, NoticeRequestCancelled, event)
	return nil
}

func (s *Service) handleRequestCompleted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestCompletedPayload)
	if !ok {
		return nil
	}
	s.channel.SendToActor(payload.RequesterID, NoticeRequestCompleted, event)
	if payload.AgentID != nil {
		s.channel.SendToActor(*payload.AgentID, NoticeRequestCompleted, event)
	}
	return nil
}

func (s *Service) handleAgentResponded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AgentRespondedPayload)
	if !ok {
		return nil
	}
	notice := NoticeAgentRejected
	if payload.Outcome == domain.ResponseOutcomeAccept {
		notice = NoticeAgentAccepted
	}
	s.channel.SendToActor(payload.RequesterID, notice, event)
	return nil
}

func (s *Service) handleAgentPresence(_ context.Context, event events.Event) error {
	s.channel.Broadcast(NoticeAgentPresence, event)
	return nil
}
