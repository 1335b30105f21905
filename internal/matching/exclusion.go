package matching

import "sync"

// ExclusionRegistry tracks, per requester, the agents to skip during
// quick-support matching. Entries are added when an agent rejects the
// requester and cleared when the requester goes offline or completes a
// request with an accepted match. State is process-local.
type ExclusionRegistry struct {
	mu      sync.Mutex
	entries map[string]map[string]struct{}
}

// NewExclusionRegistry creates an empty registry.
func NewExclusionRegistry() *ExclusionRegistry {
	return &ExclusionRegistry{entries: make(map[string]map[string]struct{})}
}

// Add records that the agent must be skipped for the requester.
func (r *ExclusionRegistry) Add(requesterID, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.entries[requesterID]
	if !ok {
		set = make(map[string]struct{})
		r.entries[requesterID] = set
	}
	set[agentID] = struct{}{}
}

// Contains reports whether the agent is excluded for the requester.
func (r *ExclusionRegistry) Contains(requesterID, agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.entries[requesterID]
	if !ok {
		return false
	}
	_, excluded := set[agentID]
	return excluded
}

// Clear drops every exclusion entry for the requester.
func (r *ExclusionRegistry) Clear(requesterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, requesterID)
}
