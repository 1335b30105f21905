package matching

import (
	"context"

	"github.com/spec-kit/live-support/internal/repository"
)

// WorkloadCounter answers how many requests an agent is currently handling.
// It holds no state of its own; the request store is the source of truth.
type WorkloadCounter struct {
	requests repository.RequestRepository
}

// NewWorkloadCounter creates the counter.
func NewWorkloadCounter(requests repository.RequestRepository) *WorkloadCounter {
	return &WorkloadCounter{requests: requests}
}

// ActiveMatchedCount counts requests currently MATCHED and assigned to the agent.
func (w *WorkloadCounter) ActiveMatchedCount(ctx context.Context, agentID string) (int, error) {
	return w.requests.CountMatchedByAgent(ctx, agentID)
}
