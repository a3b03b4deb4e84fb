// Package achieve is the batteries-included entry point: it assembles an
// engine, event bus and safety-net scheduler from options, with in-memory
// defaults for embedding into a game loop.
package achieve

import (
	"context"
	"log/slog"
	"time"

	mem "achievekit/adapters/memory"
	"achievekit/core"
	"achievekit/engine"
	"achievekit/realtime"
)

// Option configures the achievement service builder.
type Option func(*builder)

type builder struct {
	store         engine.SnapshotStore
	granter       engine.RewardGranter
	logger        *slog.Logger
	mode          engine.DispatchMode
	hub           *realtime.Hub
	sweepInterval time.Duration
	hooks         []func(core.Event)
}

// WithStore sets the persistence adapter.
func WithStore(s engine.SnapshotStore) Option { return func(b *builder) { b.store = s } }

// WithGranter sets the reward granter the host supplies.
func WithGranter(g engine.RewardGranter) Option { return func(b *builder) { b.granter = g } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(b *builder) { b.logger = l } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(b *builder) { b.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(b *builder) { b.hub = h } }

// WithSweepInterval overrides the safety-net evaluation period.
func WithSweepInterval(d time.Duration) Option { return func(b *builder) { b.sweepInterval = d } }

// WithHook subscribes a callback to every engine event, for analytics or
// leaderboard trackers.
func WithHook(fn func(core.Event)) Option {
	return func(b *builder) { b.hooks = append(b.hooks, fn) }
}

// Service bundles the assembled engine with its background scheduler.
type Service struct {
	Engine    *engine.Engine
	Scheduler *engine.Scheduler
}

// New builds a configured achievement service. Defaults when not provided:
//   - store: in-memory
//   - granter: no-op
//   - dispatch: sync
//   - sweep interval: engine.DefaultSweepInterval
func New(catalog *core.Catalog, opts ...Option) *Service {
	b := &builder{
		mode:          engine.DispatchSync,
		sweepInterval: engine.DefaultSweepInterval,
	}
	for _, o := range opts {
		o(b)
	}
	if b.store == nil {
		b.store = mem.New()
	}
	if b.granter == nil {
		b.granter = engine.GranterFunc(func(context.Context, core.SaveID, string, core.Manifest) error {
			return nil
		})
	}

	bus := engine.NewEventBus(b.mode)
	eng := engine.New(catalog, b.store, bus, b.granter, b.logger)

	allEvents := []core.EventType{
		core.EventCounterUpdated,
		core.EventAchievementUnlocked,
		core.EventAchievementClaimed,
		core.EventItemCollected,
		core.EventCollectionCompleted,
	}
	if b.hub != nil {
		for _, et := range allEvents {
			bus.Subscribe(et, func(ctx context.Context, e core.Event) { b.hub.Broadcast(ctx, e) })
		}
	}
	for _, hook := range b.hooks {
		hook := hook
		for _, et := range allEvents {
			bus.Subscribe(et, func(_ context.Context, e core.Event) { hook(e) })
		}
	}

	sched := engine.NewScheduler(eng, b.logger, engine.WithInterval(b.sweepInterval))
	return &Service{Engine: eng, Scheduler: sched}
}

// Start launches the safety-net sweep. Stop with (*Service).Stop.
func (s *Service) Start(ctx context.Context) { s.Scheduler.Start(ctx) }

// Stop halts the background sweep and drains the async bus if used.
func (s *Service) Stop() {
	s.Scheduler.Stop()
	s.Engine.Bus().Close()
}
