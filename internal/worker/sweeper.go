package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/live-support/internal/matching"
)

// Sweeper periodically times out WAITING requests that outlived their
// deadline. The in-memory timeout scheduler loses its handles on restart;
// the sweep is the durable backstop.
type Sweeper struct {
	cron   *cron.Cron
	engine *matching.Engine
	logger *zap.Logger
}

// NewSweeper registers the sweep on the given cron schedule.
func NewSweeper(schedule string, engine *matching.Engine, logger *zap.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		cron:   cron.New(),
		engine: engine,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	if err := s.engine.ExpireStaleRequests(context.Background(), time.Now()); err != nil {
		s.logger.Error("stale request sweep failed", zap.Error(err))
	}
}
