package dto

import (
	"time"

	"github.com/spec-kit/live-support/internal/domain"
)

// CreateRequestRequest payload for new support requests.
type CreateRequestRequest struct {
	Kind             domain.RequestKind `json:"kind"`
	PreferredAgentID *string            `json:"preferred_agent_id,omitempty"`
}

// RespondRequest payload for an agent's accept/reject answer.
type RespondRequest struct {
	Accept bool `json:"accept"`
}

// RequestSnapshot is the public view of a support request.
type RequestSnapshot struct {
	ID               string                  `json:"id"`
	RequesterID      string                  `json:"requester_id"`
	Kind             domain.RequestKind      `json:"kind"`
	PreferredAgentID *string                 `json:"preferred_agent_id,omitempty"`
	Status           domain.RequestStatus    `json:"status"`
	AssignedAgentID  *string                 `json:"assigned_agent_id,omitempty"`
	ResponseOutcome  *domain.ResponseOutcome `json:"response_outcome,omitempty"`
	TimeoutReason    *string                 `json:"timeout_reason,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	MatchedAt        *time.Time              `json:"matched_at,omitempty"`
	CompletedAt      *time.Time              `json:"completed_at,omitempty"`
	TimeoutAt        *time.Time              `json:"timeout_at,omitempty"`
}

// NewRequestSnapshot maps the domain aggregate to its public view.
func NewRequestSnapshot(request *domain.SupportRequest) RequestSnapshot {
	return RequestSnapshot{
		ID:               request.ID,
		RequesterID:      request.RequesterID,
		Kind:             request.Kind,
		PreferredAgentID: request.PreferredAgentID,
		Status:           request.Status,
		AssignedAgentID:  request.AssignedAgentID,
		ResponseOutcome:  request.ResponseOutcome,
		TimeoutReason:    request.TimeoutReason,
		CreatedAt:        request.CreatedAt,
		MatchedAt:        request.MatchedAt,
		CompletedAt:      request.CompletedAt,
		TimeoutAt:        request.TimeoutAt,
	}
}
