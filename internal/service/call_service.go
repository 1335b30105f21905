package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/live-support/internal/domain"
)

// CallService hands accepted requests off to the video-call subsystem.
// Session establishment and recording live outside this service; only the
// hand-off happens here.
type CallService struct {
	logger *zap.Logger
}

// NewCallService creates the service.
func NewCallService(logger *zap.Logger) *CallService {
	return &CallService{logger: logger}
}

// StartCall triggers call establishment for an accepted request.
func (s *CallService) StartCall(_ context.Context, request *domain.SupportRequest) {
	agentID := ""
	if request.AssignedAgentID != nil {
		agentID = *request.AssignedAgentID
	}
	s.logger.Info("starting call session",
		zap.String("request_id", request.ID),
		zap.String("requester_id", request.RequesterID),
		zap.String("agent_id", agentID))
}
