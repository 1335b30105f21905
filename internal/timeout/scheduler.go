package timeout

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler owns one cancellable deferred action per request id. Scheduling
// for an id that already has a live handle replaces it. Cancellation is
// best-effort: a cancel racing an already-started action is a no-op, so the
// action itself must re-check request state before acting.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	logger *zap.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		logger: logger,
	}
}

// Schedule registers a single deferred invocation of action at now+duration,
// replacing any prior handle for the same request id.
func (s *Scheduler) Schedule(requestID string, duration time.Duration, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.timers[requestID]; ok {
		prior.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(duration, func() {
		s.mu.Lock()
		// A replacement scheduled after this timer was set must keep its
		// own handle; only remove ours.
		if current, ok := s.timers[requestID]; ok && current == timer {
			delete(s.timers, requestID)
		}
		s.mu.Unlock()
		action()
	})
	s.timers[requestID] = timer
	s.logger.Debug("timeout scheduled",
		zap.String("request_id", requestID),
		zap.Duration("duration", duration))
}

// Cancel stops the pending action for the request id, if any. Returns whether
// a live handle was removed.
func (s *Scheduler) Cancel(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[requestID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, requestID)
	s.logger.Debug("timeout cancelled", zap.String("request_id", requestID))
	return true
}

// Stop cancels every pending action. Used at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
