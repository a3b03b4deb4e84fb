package engine

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is the period of the safety sweep that re-evaluates
// every known save, guarding against mutation paths that bypassed the inline
// post-mutation evaluation.
const DefaultSweepInterval = 5 * time.Second

// Scheduler drives periodic re-evaluation. The sweep is O(achievements ×
// requirements) per save; with counts in the dozens it needs no indexing.
type Scheduler struct {
	engine   *Engine
	logger   *slog.Logger
	interval time.Duration
	ticks    <-chan time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicks injects the tick source so tests can drive sweeps synchronously
// instead of waiting on real time.
func WithTicks(ch <-chan time.Time) SchedulerOption {
	return func(s *Scheduler) { s.ticks = ch }
}

func NewScheduler(e *Engine, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{engine: e, logger: logger, interval: DefaultSweepInterval}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the sweep loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	ticks := s.ticks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(s.interval)
		ticks = ticker.C
	}

	go func() {
		defer close(s.done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Sweep re-evaluates every save the engine has seen this session.
func (s *Scheduler) Sweep(ctx context.Context) {
	for _, save := range s.engine.Saves() {
		s.engine.EvaluateAll(ctx, save)
	}
	s.logger.Debug("evaluation sweep complete", "saves", len(s.engine.Saves()))
}
