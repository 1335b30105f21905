package domain

import "time"

// RequestKind distinguishes how an agent is selected.
type RequestKind string

const (
	RequestKindQuickSupport RequestKind = "QUICK_SUPPORT"
	RequestKindChooseAgent  RequestKind = "CHOOSE_AGENT"
)

// RequestStatus enumerates lifecycle states for support requests.
type RequestStatus string

const (
	RequestStatusWaiting   RequestStatus = "WAITING"
	RequestStatusMatched   RequestStatus = "MATCHED"
	RequestStatusTimeout   RequestStatus = "TIMEOUT"
	RequestStatusCancelled RequestStatus = "CANCELLED"
	RequestStatusCompleted RequestStatus = "COMPLETED"
)

// ResponseOutcome records how the assigned agent answered a matched request.
type ResponseOutcome string

const (
	ResponseOutcomeAccept ResponseOutcome = "ACCEPT"
	ResponseOutcomeReject ResponseOutcome = "REJECT"
)

// SupportRequest is the aggregate for a single help request, tracked from
// WAITING to a terminal outcome.
type SupportRequest struct {
	ID               string
	RequesterID      string
	Kind             RequestKind
	PreferredAgentID *string
	Status           RequestStatus
	AssignedAgentID  *string
	ResponseOutcome  *ResponseOutcome
	TimeoutReason    *string
	CreatedAt        time.Time
	MatchedAt        *time.Time
	CompletedAt      *time.Time
	TimeoutAt        *time.Time
}

// IsWaiting reports whether the request is still awaiting a match.
func (r *SupportRequest) IsWaiting() bool {
	return r.Status == RequestStatusWaiting
}

// IsMatched reports whether the request is paired with an agent and awaiting
// the agent's response.
func (r *SupportRequest) IsMatched() bool {
	return r.Status == RequestStatusMatched
}

// IsActive reports whether the request still occupies its requester's single
// active slot.
func (r *SupportRequest) IsActive() bool {
	return r.Status == RequestStatusWaiting || r.Status == RequestStatusMatched
}

// IsTerminal reports whether no further transition is possible.
func (r *SupportRequest) IsTerminal() bool {
	switch r.Status {
	case RequestStatusTimeout, RequestStatusCancelled, RequestStatusCompleted:
		return true
	}
	return false
}
