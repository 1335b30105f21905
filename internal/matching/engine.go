package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/live-support/internal/config"
	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/events"
	"github.com/spec-kit/live-support/internal/observability"
	"github.com/spec-kit/live-support/internal/repository"
	"github.com/spec-kit/live-support/internal/timeout"
	apperrors "github.com/spec-kit/live-support/pkg/util"
)

// Timeout reasons surfaced through GetRequestStatus. Matching failures are
// normal outcomes, not errors.
const (
	ReasonAgentNotFound    = "agent not found"
	ReasonAgentOffline     = "agent offline"
	ReasonAgentBusy        = "agent busy"
	ReasonNoAgentAvailable = "no agent available"
	ReasonRequestExpired   = "request expired"
)

// PresenceView is the engine's read-only view of actor presence.
type PresenceView interface {
	IsOnline(actorID string) bool
}

// TaskRunner accepts fire-and-forget units of work. Matching attempts run
// there, never on the caller's path.
type TaskRunner interface {
	Submit(task func())
}

// CallStarter hands an accepted request off to the call subsystem.
type CallStarter interface {
	StartCall(ctx context.Context, request *domain.SupportRequest)
}

// Engine orchestrates request matching: it pairs WAITING requests with
// eligible agents, enforces response timeouts, and reconciles concurrent
// transitions through guarded store commits.
type Engine struct {
	requests   repository.RequestRepository
	users      repository.UserRepository
	presence   PresenceView
	exclusions *ExclusionRegistry
	workload   *WorkloadCounter
	scheduler  *timeout.Scheduler
	dispatcher events.Dispatcher
	runner     TaskRunner
	calls      CallStarter
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.MatchingConfig
}

// EngineDependencies bundles the engine's collaborators.
type EngineDependencies struct {
	RequestRepo repository.RequestRepository
	UserRepo    repository.UserRepository
	Presence    PresenceView
	Exclusions  *ExclusionRegistry
	Workload    *WorkloadCounter
	Scheduler   *timeout.Scheduler
	Dispatcher  events.Dispatcher
	Runner      TaskRunner
	Calls       CallStarter
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewEngine constructs the engine.
func NewEngine(cfg config.MatchingConfig, deps EngineDependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		requests:   deps.RequestRepo,
		users:      deps.UserRepo,
		presence:   deps.Presence,
		exclusions: deps.Exclusions,
		workload:   deps.Workload,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		runner:     deps.Runner,
		calls:      deps.Calls,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateRequest persists a WAITING request, schedules its timeout, and starts
// the matching attempt asynchronously. It returns before any matching happens.
func (e *Engine) CreateRequest(ctx context.Context, requesterID string, kind domain.RequestKind, preferredAgentID *string) (*domain.SupportRequest, error) {
	switch kind {
	case domain.RequestKindQuickSupport, domain.RequestKindChooseAgent:
	default:
		return nil, apperrors.NewValidationError("invalid request kind", map[string]any{"kind": kind})
	}
	if kind == domain.RequestKindChooseAgent && (preferredAgentID == nil || *preferredAgentID == "") {
		return nil, apperrors.NewValidationError("preferred_agent_id is required for choose-agent requests", nil)
	}
	if kind == domain.RequestKindQuickSupport {
		preferredAgentID = nil
	}

	active, err := e.requests.FindActiveByRequester(ctx, requesterID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if active != nil {
		return nil, apperrors.NewConflict("requester already has an active support request",
			map[string]any{"request_id": active.ID})
	}

	request := &domain.SupportRequest{
		ID:               uuid.NewString(),
		RequesterID:      requesterID,
		Kind:             kind,
		PreferredAgentID: preferredAgentID,
		Status:           domain.RequestStatusWaiting,
	}
	if err := e.requests.Create(ctx, request); err != nil {
		// The partial unique index on active requests is the authoritative
		// guard; the lookup above only produces the friendlier error.
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("requester already has an active support request", nil)
		}
		return nil, apperrors.MapError(err)
	}

	requestID := request.ID
	e.scheduler.Schedule(requestID, e.cfg.TimeoutFor(kind == domain.RequestKindChooseAgent), func() {
		e.fireTimeout(requestID, ReasonRequestExpired)
	})
	e.runner.Submit(func() {
		e.runMatching(requestID)
	})

	e.logger.Info("support request created",
		zap.String("request_id", requestID),
		zap.String("requester_id", requesterID),
		zap.String("kind", string(kind)))
	return request, nil
}

// RespondToRequest applies the assigned agent's accept/reject answer to a
// MATCHED request.
func (e *Engine) RespondToRequest(ctx context.Context, requestID, agentID string, accept bool) (*domain.SupportRequest, error) {
	request, err := e.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := e.getAgent(ctx, agentID); err != nil {
		return nil, err
	}
	if request.AssignedAgentID == nil || *request.AssignedAgentID != agentID {
		return nil, apperrors.NewForbidden("agent is not assigned to this request")
	}
	if !request.IsMatched() {
		return nil, apperrors.NewInvalidState("request is not awaiting an agent response",
			map[string]any{"status": request.Status})
	}

	outcome := domain.ResponseOutcomeReject
	if accept {
		outcome = domain.ResponseOutcomeAccept
	}
	now := time.Now()
	won, err := e.requests.CommitCompleted(ctx, requestID, &outcome, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		return nil, apperrors.NewInvalidState("request is not awaiting an agent response", nil)
	}

	request.Status = domain.RequestStatusCompleted
	request.ResponseOutcome = &outcome
	request.CompletedAt = &now
	e.metrics.RecordOutcome(domain.RequestStatusCompleted)

	if accept {
		// A match that stuck ends the requester's search episode.
		e.exclusions.Clear(request.RequesterID)
		if e.calls != nil {
			e.calls.StartCall(ctx, request)
		}
	} else if request.Kind == domain.RequestKindQuickSupport {
		e.exclusions.Add(request.RequesterID, agentID)
	}

	e.publish(ctx, events.NewEvent(events.EventAgentResponded, requestID, request.RequesterID,
		events.AgentRespondedPayload{
			RequesterID: request.RequesterID,
			AgentID:     agentID,
			Outcome:     outcome,
		}))

	e.logger.Info("agent responded",
		zap.String("request_id", requestID),
		zap.String("agent_id", agentID),
		zap.String("outcome", string(outcome)))
	return request, nil
}

// CancelRequest cancels a WAITING request on behalf of its requester. It
// returns false without error when the request already left WAITING.
func (e *Engine) CancelRequest(ctx context.Context, requestID, requesterID string) (bool, *domain.SupportRequest, error) {
	request, err := e.getRequest(ctx, requestID)
	if err != nil {
		return false, nil, err
	}
	if request.RequesterID != requesterID {
		return false, nil, apperrors.NewForbidden("only the requester may cancel the request")
	}
	if !request.IsWaiting() {
		return false, request, nil
	}

	won, err := e.requests.CommitCancelled(ctx, requestID)
	if err != nil {
		return false, nil, apperrors.MapError(err)
	}
	if !won {
		return false, request, nil
	}

	e.scheduler.Cancel(requestID)
	request.Status = domain.RequestStatusCancelled
	e.metrics.RecordOutcome(domain.RequestStatusCancelled)
	e.publish(ctx, events.NewEvent(events.EventRequestCancelled, requestID, requesterID,
		events.RequestCancelledPayload{RequesterID: requesterID}))

	e.logger.Info("request cancelled", zap.String("request_id", requestID))
	return true, request, nil
}

// CompleteRequest finishes a MATCHED request without an agent response;
// either party of the match may do so.
func (e *Engine) CompleteRequest(ctx context.Context, requestID, callerID string) (*domain.SupportRequest, error) {
	request, err := e.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	isParty := request.RequesterID == callerID ||
		(request.AssignedAgentID != nil && *request.AssignedAgentID == callerID)
	if !isParty {
		return nil, apperrors.NewForbidden("caller is not a party to this request")
	}
	if !request.IsMatched() {
		return nil, apperrors.NewInvalidState("request is not in progress",
			map[string]any{"status": request.Status})
	}

	now := time.Now()
	won, err := e.requests.CommitCompleted(ctx, requestID, nil, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		return nil, apperrors.NewInvalidState("request is not in progress", nil)
	}

	request.Status = domain.RequestStatusCompleted
	request.CompletedAt = &now
	e.exclusions.Clear(request.RequesterID)
	e.metrics.RecordOutcome(domain.RequestStatusCompleted)
	e.publish(ctx, events.NewEvent(events.EventRequestCompleted, requestID, request.RequesterID,
		events.RequestCompletedPayload{
			RequesterID: request.RequesterID,
			AgentID:     request.AssignedAgentID,
		}))
	return request, nil
}

// GetRequestStatus returns the current request snapshot.
func (e *Engine) GetRequestStatus(ctx context.Context, requestID string) (*domain.SupportRequest, error) {
	return e.getRequest(ctx, requestID)
}

// GetOnlineAgents lists agents that are currently visibly online.
func (e *Engine) GetOnlineAgents(ctx context.Context) ([]domain.User, error) {
	agents, err := e.users.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	online := make([]domain.User, 0, len(agents))
	for _, agent := range agents {
		if e.presence.IsOnline(agent.ID) {
			online = append(online, agent)
		}
	}
	return online, nil
}

// HandleRequesterOffline clears process-local matching state for a requester
// whose presence flipped offline. Wired to the presence tracker.
func (e *Engine) HandleRequesterOffline(actorID string) {
	e.exclusions.Clear(actorID)
}

// ExpireStaleRequests transitions WAITING requests past their deadline to
// TIMEOUT. It backs up the in-memory timers, which do not survive a restart.
func (e *Engine) ExpireStaleRequests(ctx context.Context, now time.Time) error {
	minTimeout := e.cfg.ChooseAgentTimeout
	if e.cfg.QuickSupportTimeout < minTimeout {
		minTimeout = e.cfg.QuickSupportTimeout
	}
	stale, err := e.requests.ListWaitingBefore(ctx, now.Add(-minTimeout))
	if err != nil {
		return err
	}
	for i := range stale {
		request := &stale[i]
		deadline := request.CreatedAt.Add(e.cfg.TimeoutFor(request.Kind == domain.RequestKindChooseAgent))
		if now.After(deadline) {
			e.fireTimeout(request.ID, ReasonRequestExpired)
		}
	}
	return nil
}

// runMatching is one asynchronous matching task. Any unexpected fault is
// logged and the task abandoned; the request's independent timeout still
// guarantees a terminal state.
func (e *Engine) runMatching(requestID string) {
	ctx := context.Background()

	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		e.logger.Error("matching: load request failed",
			zap.String("request_id", requestID), zap.Error(err))
		return
	}
	if !request.IsWaiting() {
		return
	}

	if request.Kind == domain.RequestKindChooseAgent {
		e.matchChooseAgent(ctx, request)
		return
	}
	e.matchQuickSupport(ctx, request)
}

// matchChooseAgent validates the preferred agent once; choose-agent requests
// are never retried.
func (e *Engine) matchChooseAgent(ctx context.Context, request *domain.SupportRequest) {
	e.metrics.RecordMatchingAttempt()

	agent, err := e.users.GetByID(ctx, *request.PreferredAgentID)
	if err != nil || !agent.IsAgent() {
		e.fireTimeout(request.ID, ReasonAgentNotFound)
		return
	}
	if !e.presence.IsOnline(agent.ID) {
		e.fireTimeout(request.ID, ReasonAgentOffline)
		return
	}
	count, err := e.workload.ActiveMatchedCount(ctx, agent.ID)
	if err != nil {
		e.logger.Error("matching: workload query failed",
			zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	if count >= e.cfg.ChooseAgentCap {
		e.fireTimeout(request.ID, ReasonAgentBusy)
		return
	}
	e.commitMatch(ctx, request, agent.ID)
}

// matchQuickSupport tries up to the configured number of attempts, spaced by
// a fixed interval, and times the request out when all fail.
func (e *Engine) matchQuickSupport(ctx context.Context, request *domain.SupportRequest) {
	attempts := e.cfg.QuickSupportAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(e.cfg.AttemptInterval)
			current, err := e.requests.GetByID(ctx, request.ID)
			if err != nil {
				e.logger.Error("matching: reload request failed",
					zap.String("request_id", request.ID), zap.Error(err))
				return
			}
			if !current.IsWaiting() {
				return
			}
		}

		e.metrics.RecordMatchingAttempt()
		agentID, err := e.pickQuickSupportAgent(ctx, request.RequesterID)
		if err != nil {
			e.logger.Error("matching: agent selection failed",
				zap.String("request_id", request.ID), zap.Error(err))
			return
		}
		if agentID != "" {
			e.commitMatch(ctx, request, agentID)
			return
		}
		e.logger.Debug("matching attempt found no agent",
			zap.String("request_id", request.ID), zap.Int("attempt", attempt))
	}

	e.fireTimeout(request.ID, ReasonNoAgentAvailable)
}

// pickQuickSupportAgent returns the online, non-excluded agent with the
// lowest workload below the cap, ties broken by lowest id. Empty when no
// agent is eligible.
func (e *Engine) pickQuickSupportAgent(ctx context.Context, requesterID string) (string, error) {
	agents, err := e.users.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return "", err
	}

	bestID := ""
	bestWorkload := 0
	for _, agent := range agents {
		if !e.presence.IsOnline(agent.ID) {
			continue
		}
		if e.exclusions.Contains(requesterID, agent.ID) {
			continue
		}
		count, err := e.workload.ActiveMatchedCount(ctx, agent.ID)
		if err != nil {
			return "", err
		}
		if count >= e.cfg.QuickSupportCap {
			continue
		}
		if bestID == "" || count < bestWorkload || (count == bestWorkload && agent.ID < bestID) {
			bestID = agent.ID
			bestWorkload = count
		}
	}
	return bestID, nil
}

// commitMatch applies the guarded WAITING→MATCHED transition. The loser of a
// race with the timeout observes a stale status and does nothing further.
func (e *Engine) commitMatch(ctx context.Context, request *domain.SupportRequest, agentID string) {
	now := time.Now()
	won, err := e.requests.CommitMatched(ctx, request.ID, agentID, now)
	if err != nil {
		e.logger.Error("matching: commit failed",
			zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	if !won {
		return
	}

	e.scheduler.Cancel(request.ID)
	e.metrics.RecordOutcome(domain.RequestStatusMatched)
	e.publish(ctx, events.NewEvent(events.EventRequestMatched, request.ID, request.RequesterID,
		events.RequestMatchedPayload{
			RequesterID: request.RequesterID,
			AgentID:     agentID,
			Kind:        request.Kind,
		}))

	e.logger.Info("request matched",
		zap.String("request_id", request.ID),
		zap.String("agent_id", agentID))
}

// fireTimeout applies the guarded WAITING→TIMEOUT transition. Safe to call
// from the scheduler, the matching task, and the stale sweep concurrently;
// only one caller wins.
func (e *Engine) fireTimeout(requestID, reason string) {
	ctx := context.Background()
	now := time.Now()

	won, err := e.requests.CommitTimeout(ctx, requestID, reason, now)
	if err != nil {
		e.logger.Error("timeout commit failed",
			zap.String("request_id", requestID), zap.Error(err))
		return
	}
	if !won {
		return
	}

	e.scheduler.Cancel(requestID)
	e.metrics.RecordOutcome(domain.RequestStatusTimeout)

	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		e.logger.Error("timeout: reload request failed",
			zap.String("request_id", requestID), zap.Error(err))
		return
	}
	e.publish(ctx, events.NewEvent(events.EventRequestTimeout, requestID, request.RequesterID,
		events.RequestTimeoutPayload{
			RequesterID: request.RequesterID,
			Reason:      reason,
		}))

	e.logger.Info("request timed out",
		zap.String("request_id", requestID),
		zap.String("reason", reason))
}

func (e *Engine) getRequest(ctx context.Context, requestID string) (*domain.SupportRequest, error) {
	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("support request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

func (e *Engine) getAgent(ctx context.Context, agentID string) (*domain.User, error) {
	agent, err := e.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.IsAgent() {
		return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
	}
	return agent, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Publish(ctx, event)
}
