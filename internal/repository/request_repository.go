package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/live-support/internal/domain"
)

// RequestRepository encapsulates support request persistence. The transition
// methods are conditional updates: they apply only when the row is still in
// the expected prior status and report whether the commit won. This is the
// arbitration point between a matching commit and a timeout firing on the
// same request.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.SupportRequest) error
	GetByID(ctx context.Context, id string) (*domain.SupportRequest, error)
	FindActiveByRequester(ctx context.Context, requesterID string) (*domain.SupportRequest, error)
	CountMatchedByAgent(ctx context.Context, agentID string) (int, error)
	ListWaitingBefore(ctx context.Context, cutoff time.Time) ([]domain.SupportRequest, error)
	CommitMatched(ctx context.Context, id, agentID string, at time.Time) (bool, error)
	CommitTimeout(ctx context.Context, id, reason string, at time.Time) (bool, error)
	CommitCancelled(ctx context.Context, id string) (bool, error)
	CommitCompleted(ctx context.Context, id string, outcome *domain.ResponseOutcome, at time.Time) (bool, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates the repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, requester_id, kind, preferred_agent_id, status, assigned_agent_id,
       response_outcome, timeout_reason, created_at, matched_at, completed_at, timeout_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.SupportRequest) error {
	const query = `
        INSERT INTO support_requests (id, requester_id, kind, preferred_agent_id, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		request.ID,
		request.RequesterID,
		request.Kind,
		request.PreferredAgentID,
		request.Status,
	).Scan(&request.CreatedAt)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.SupportRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM support_requests WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *requestRepository) FindActiveByRequester(ctx context.Context, requesterID string) (*domain.SupportRequest, error) {
	query := `SELECT ` + requestColumns + `
        FROM support_requests
        WHERE requester_id=$1 AND status IN ('WAITING','MATCHED')
        ORDER BY created_at DESC
        LIMIT 1`
	return r.fetchSingle(ctx, query, requesterID)
}

func (r *requestRepository) CountMatchedByAgent(ctx context.Context, agentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM support_requests WHERE assigned_agent_id=$1 AND status='MATCHED'`
	var count int
	if err := r.pool.QueryRow(ctx, query, agentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *requestRepository) ListWaitingBefore(ctx context.Context, cutoff time.Time) ([]domain.SupportRequest, error) {
	query := `SELECT ` + requestColumns + `
        FROM support_requests
        WHERE status='WAITING' AND created_at < $1
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) CommitMatched(ctx context.Context, id, agentID string, at time.Time) (bool, error) {
	const query = `
        UPDATE support_requests
        SET status='MATCHED', assigned_agent_id=$1, matched_at=$2
        WHERE id=$3 AND status='WAITING'`
	cmd, err := r.pool.Exec(ctx, query, agentID, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) CommitTimeout(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	const query = `
        UPDATE support_requests
        SET status='TIMEOUT', timeout_reason=$1, timeout_at=$2
        WHERE id=$3 AND status='WAITING'`
	cmd, err := r.pool.Exec(ctx, query, reason, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) CommitCancelled(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE support_requests
        SET status='CANCELLED'
        WHERE id=$1 AND status='WAITING'`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) CommitCompleted(ctx context.Context, id string, outcome *domain.ResponseOutcome, at time.Time) (bool, error) {
	const query = `
        UPDATE support_requests
        SET status='COMPLETED', response_outcome=$1, completed_at=$2
        WHERE id=$3 AND status='MATCHED'`
	cmd, err := r.pool.Exec(ctx, query, outcome, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.SupportRequest, error) {
	var request domain.SupportRequest
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&request.ID,
		&request.RequesterID,
		&request.Kind,
		&request.PreferredAgentID,
		&request.Status,
		&request.AssignedAgentID,
		&request.ResponseOutcome,
		&request.TimeoutReason,
		&request.CreatedAt,
		&request.MatchedAt,
		&request.CompletedAt,
		&request.TimeoutAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func scanRequests(rows pgx.Rows) ([]domain.SupportRequest, error) {
	var result []domain.SupportRequest
	for rows.Next() {
		var request domain.SupportRequest
		if err := rows.Scan(
			&request.ID,
			&request.RequesterID,
			&request.Kind,
			&request.PreferredAgentID,
			&request.Status,
			&request.AssignedAgentID,
			&request.ResponseOutcome,
			&request.TimeoutReason,
			&request.CreatedAt,
			&request.MatchedAt,
			&request.CompletedAt,
			&request.TimeoutAt,
		); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
