package presence

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/live-support/internal/domain"
)

// Listener observes presence flips. Called outside the tracker lock.
type Listener func(actorID string, role domain.Role, state domain.PresenceState)

// GraceResolver returns the offline grace window for a role. Agents get a
// longer window than end-users so a brief transport drop is invisible.
// Resolvers run outside the tracker lock and must not block.
type GraceResolver func(role domain.Role) time.Duration

// FixedGrace returns a resolver that applies the same window to every role.
func FixedGrace(d time.Duration) GraceResolver {
	return func(domain.Role) time.Duration { return d }
}

type entry struct {
	sessions     int
	role         domain.Role
	grace        time.Duration
	offlineTimer *time.Timer
}

// Tracker maintains debounced online/offline state per actor from transport
// connect/disconnect signals. The grace window is resolved once per Connect,
// before the lock is taken; presence reads never wait on the resolver.
// State is process-local and rebuilt from live connections after a restart.
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*entry
	grace     GraceResolver
	listeners []Listener
	logger    *zap.Logger
}

// NewTracker creates a tracker.
func NewTracker(grace GraceResolver, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		entries: make(map[string]*entry),
		grace:   grace,
		logger:  logger,
	}
}

// OnChange registers a presence listener. Register before the transport
// starts delivering events.
func (t *Tracker) OnChange(listener Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// Connect records a new transport session for the actor. The caller supplies
// the actor's authenticated role. A reconnect inside the grace window cancels
// the pending offline flip with no visible change.
func (t *Tracker) Connect(actorID string, role domain.Role) {
	grace := t.grace(role)

	t.mu.Lock()
	e, ok := t.entries[actorID]
	if !ok {
		e = &entry{}
		t.entries[actorID] = e
	}
	wasOnline := e.sessions > 0 || e.offlineTimer != nil
	if e.offlineTimer != nil {
		e.offlineTimer.Stop()
		e.offlineTimer = nil
	}
	e.sessions++
	e.role = role
	e.grace = grace
	t.mu.Unlock()

	if !wasOnline {
		t.logger.Info("actor online",
			zap.String("actor_id", actorID), zap.String("role", string(role)))
		t.notify(actorID, role, domain.PresenceOnline)
	}
}

// Disconnect records a closed transport session. When the last session drops,
// the offline flip is deferred by the grace window captured at connect time.
func (t *Tracker) Disconnect(actorID string) {
	t.mu.Lock()
	e, ok := t.entries[actorID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if e.sessions > 0 {
		e.sessions--
	}
	if e.sessions > 0 {
		t.mu.Unlock()
		return
	}

	role := e.role
	if e.grace <= 0 {
		delete(t.entries, actorID)
		t.mu.Unlock()
		t.logger.Info("actor offline", zap.String("actor_id", actorID))
		t.notify(actorID, role, domain.PresenceOffline)
		return
	}

	if e.offlineTimer != nil {
		e.offlineTimer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(e.grace, func() {
		t.mu.Lock()
		current, ok := t.entries[actorID]
		if !ok || current != e || e.sessions > 0 || e.offlineTimer != timer {
			t.mu.Unlock()
			return
		}
		delete(t.entries, actorID)
		t.mu.Unlock()
		t.logger.Info("actor offline after grace", zap.String("actor_id", actorID))
		t.notify(actorID, role, domain.PresenceOffline)
	})
	e.offlineTimer = timer
	t.mu.Unlock()
}

// ForceOffline flips the actor offline immediately, bypassing the grace
// window. Used by explicit logout.
func (t *Tracker) ForceOffline(actorID string) {
	t.mu.Lock()
	e, ok := t.entries[actorID]
	var role domain.Role
	if ok {
		role = e.role
		if e.offlineTimer != nil {
			e.offlineTimer.Stop()
		}
		delete(t.entries, actorID)
	}
	t.mu.Unlock()

	if ok {
		t.logger.Info("actor forced offline", zap.String("actor_id", actorID))
		t.notify(actorID, role, domain.PresenceOffline)
	}
}

// GetState reports the actor's visible presence.
func (t *Tracker) GetState(actorID string) domain.PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[actorID]; ok {
		return domain.PresenceOnline
	}
	return domain.PresenceOffline
}

// IsOnline reports whether the actor is visibly online.
func (t *Tracker) IsOnline(actorID string) bool {
	return t.GetState(actorID) == domain.PresenceOnline
}

// OnlineActors lists all visibly online actor ids in stable order.
func (t *Tracker) OnlineActors() []string {
	t.mu.Lock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (t *Tracker) notify(actorID string, role domain.Role, state domain.PresenceState) {
	t.mu.Lock()
	listeners := append([]Listener{}, t.listeners...)
	t.mu.Unlock()
	for _, listener := range listeners {
		listener(actorID, role, state)
	}
}
