package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"achievekit/core"
)

// Engine tracks cumulative progress per save slot, drives the achievement
// state machine, aggregates collections, and persists state through a
// SnapshotStore. Runtime operations never fail toward the host: unknown ids
// and repeated claims are no-ops, so polling-driven callers need no error
// handling. Configuration problems surface once, at construction.
type Engine struct {
	logger  *slog.Logger
	catalog *core.Catalog
	store   SnapshotStore
	bus     *EventBus
	granter RewardGranter
	now     func() time.Time

	mu    sync.RWMutex
	saves map[core.SaveID]*saveState
}

// saveState serializes all mutations for one save. A transition decision must
// be atomic with its idempotency check, so everything for a save happens
// under this one mutex.
type saveState struct {
	mu   sync.Mutex
	snap core.Snapshot
}

func New(catalog *core.Catalog, store SnapshotStore, bus *EventBus, granter RewardGranter, logger *slog.Logger) *Engine {
	if catalog == nil || store == nil || bus == nil || granter == nil {
		panic("engine.New requires non-nil catalog, store, bus, and granter")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:  logger,
		catalog: catalog,
		store:   store,
		bus:     bus,
		granter: granter,
		now:     func() time.Time { return time.Now().UTC() },
		saves:   make(map[core.SaveID]*saveState),
	}
}

// SetClock overrides the engine clock. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Catalog exposes the immutable definitions.
func (e *Engine) Catalog() *core.Catalog { return e.catalog }

// Bus exposes the event bus for subscribers.
func (e *Engine) Bus() *EventBus { return e.bus }

// Saves lists every save the engine has touched this session. The periodic
// sweep re-evaluates each of them.
func (e *Engine) Saves() []core.SaveID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.SaveID, 0, len(e.saves))
	for id := range e.saves {
		out = append(out, id)
	}
	return out
}

// state returns the per-save record, loading persisted state on first touch.
func (e *Engine) state(ctx context.Context, save core.SaveID) *saveState {
	e.mu.RLock()
	st, ok := e.saves[save]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	if st, ok = e.saves[save]; ok {
		e.mu.Unlock()
		return st
	}
	st = &saveState{}
	e.saves[save] = st
	st.mu.Lock() // hold the save lock through the initial load
	e.mu.Unlock()
	defer st.mu.Unlock()

	snap, found, err := e.store.Load(ctx, save)
	if err != nil {
		// Whole-document unreadability falls back to a fresh state rather
		// than blocking startup.
		e.logger.Error("snapshot load failed, starting fresh", "save", save, "error", err)
		found = false
	}
	if !found {
		snap = core.Snapshot{}
	}
	st.snap = e.reconcile(save, snap)
	if e.retryPendingGrantsLocked(ctx, save, st) {
		e.persistLocked(ctx, save, st)
	}
	return st
}

// reconcile aligns a loaded snapshot with the current catalog: entries for
// ids no longer defined are dropped, missing entries start at defaults.
func (e *Engine) reconcile(save core.SaveID, snap core.Snapshot) core.Snapshot {
	out := core.Snapshot{
		Counters:     make(map[core.CounterKey]int64, len(snap.Counters)),
		Achievements: make(map[string]core.AchievementProgress),
		Collections:  make(map[string]core.CollectionProgress),
	}
	for k, v := range snap.Counters {
		if v < 0 {
			v = 0
		}
		out.Counters[k] = v
	}
	for id, prog := range snap.Achievements {
		if _, ok := e.catalog.Achievement(id); !ok {
			e.logger.Debug("dropping achievement state for unknown id", "save", save, "achievement", id)
			continue
		}
		if prog.Claimed && !prog.Unlocked {
			// claimed implies unlocked; repair rather than reject
			prog.Unlocked = true
		}
		out.Achievements[id] = prog
	}
	for id, prog := range snap.Collections {
		def, ok := e.catalog.Collection(id)
		if !ok {
			e.logger.Debug("dropping collection state for unknown id", "save", save, "collection", id)
			continue
		}
		items := make(map[string]core.ItemProgress, len(prog.Items))
		for iid, ip := range prog.Items {
			if _, ok := e.catalog.Item(id, iid); !ok {
				e.logger.Debug("dropping item state for unknown id", "save", save, "collection", id, "item", iid)
				continue
			}
			items[iid] = ip
		}
		prog.Items = items
		// completed is derived, never trusted from the blob
		prog.Completed = collectedCount(def, items) == len(def.Items)
		out.Collections[id] = prog
	}
	return out
}

// retryPendingGrantsLocked re-attempts grants that were persisted but not
// confirmed before a crash. No unlock or completion events are re-emitted.
func (e *Engine) retryPendingGrantsLocked(ctx context.Context, save core.SaveID, st *saveState) bool {
	changed := false
	for id, prog := range st.snap.Achievements {
		if !prog.GrantPending {
			continue
		}
		def, _ := e.catalog.Achievement(id)
		if err := e.granter.Grant(ctx, save, "achievement:"+id, def.Reward.Clone()); err != nil {
			e.logger.Warn("pending achievement grant failed", "save", save, "achievement", id, "error", err)
			continue
		}
		prog.GrantPending = false
		st.snap.Achievements[id] = prog
		changed = true
	}
	for id, prog := range st.snap.Collections {
		if !prog.RewardPending {
			continue
		}
		def, _ := e.catalog.Collection(id)
		if err := e.granter.Grant(ctx, save, "collection:"+id, def.Reward.Clone()); err != nil {
			e.logger.Warn("pending collection grant failed", "save", save, "collection", id, "error", err)
			continue
		}
		prog.RewardPending = false
		st.snap.Collections[id] = prog
		changed = true
	}
	return changed
}

func (e *Engine) persistLocked(ctx context.Context, save core.SaveID, st *saveState) {
	if err := e.store.Save(ctx, save, st.snap.Clone()); err != nil {
		e.logger.Error("snapshot save failed", "save", save, "error", err)
	}
}

// ReportProgress increments a counter and re-evaluates locked achievements in
// the same logical tick. Non-positive deltas are no-ops. Returns the new
// counter value.
func (e *Engine) ReportProgress(ctx context.Context, save core.SaveID, key core.CounterKey, delta int64) int64 {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return 0
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	value := st.snap.Counters[key]
	if delta <= 0 || key == "" {
		return value
	}
	value += delta
	e.setCounterLocked(ctx, save, st, key, value)
	e.evaluateLocked(ctx, save, st)
	e.persistLocked(ctx, save, st)
	return value
}

// SetProgress sets a counter to an absolute value (negative values clamp to
// zero). Decrements are permitted but achievements never re-lock, so a
// decremented counter can leave displayed progress ahead of the counters;
// callers that decrement own that inconsistency.
func (e *Engine) SetProgress(ctx context.Context, save core.SaveID, key core.CounterKey, value int64) int64 {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return 0
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	old := st.snap.Counters[key]
	if key == "" {
		return old
	}
	if value < 0 {
		value = 0
	}
	e.setCounterLocked(ctx, save, st, key, value)
	e.evaluateLocked(ctx, save, st)
	e.persistLocked(ctx, save, st)
	return old
}

func (e *Engine) setCounterLocked(ctx context.Context, save core.SaveID, st *saveState, key core.CounterKey, value int64) {
	if st.snap.Counters == nil {
		st.snap.Counters = make(map[core.CounterKey]int64)
	}
	st.snap.Counters[key] = value
	e.bus.Publish(ctx, core.NewCounterUpdated(save, key, value))
}

// Counter reads a counter; unknown keys read as zero.
func (e *Engine) Counter(ctx context.Context, save core.SaveID, key core.CounterKey) int64 {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return 0
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snap.Counters[key]
}

// evaluateLocked runs the pure evaluator over every achievement and applies
// Locked→Unlocked transitions. Progress is refreshed on every pass while
// locked; once unlocked it pins at the target and never moves again. Returns
// whether any state changed.
func (e *Engine) evaluateLocked(ctx context.Context, save core.SaveID, st *saveState) bool {
	lookup := func(k core.CounterKey) int64 { return st.snap.Counters[k] }
	changed := false
	for _, def := range e.catalog.Achievements() {
		prog := st.snap.Achievements[def.ID]
		if prog.Unlocked {
			continue
		}
		ev := core.Evaluate(def.Requirements, lookup)
		if ev.Satisfied {
			now := e.now()
			prog.Unlocked = true
			prog.UnlockedAt = &now
			prog.Progress = ev.Target
			if st.snap.Achievements == nil {
				st.snap.Achievements = make(map[string]core.AchievementProgress)
			}
			st.snap.Achievements[def.ID] = prog
			changed = true
			e.bus.Publish(ctx, core.NewAchievementUnlocked(save, def))
			e.logger.Info("achievement unlocked", "save", save, "achievement", def.ID, "rarity", def.Rarity)
			continue
		}
		if prog.Progress != ev.Progress {
			prog.Progress = ev.Progress
			if st.snap.Achievements == nil {
				st.snap.Achievements = make(map[string]core.AchievementProgress)
			}
			st.snap.Achievements[def.ID] = prog
			changed = true
		}
	}
	return changed
}

// EvaluateAll re-evaluates every achievement for a save and persists any
// transition. It is the single evaluation entry point: the engine calls it
// inline after mutations and the scheduler calls it as a periodic safety net
// for mutation paths that bypassed the inline trigger.
func (e *Engine) EvaluateAll(ctx context.Context, save core.SaveID) {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	if e.evaluateLocked(ctx, save, st) {
		e.persistLocked(ctx, save, st)
	}
}

// ClaimAchievement moves an unlocked achievement to claimed and hands its
// reward manifest to the granter exactly once. Unknown ids, locked
// achievements, and repeated claims are safe no-ops.
func (e *Engine) ClaimAchievement(ctx context.Context, save core.SaveID, id string) {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return
	}
	def, ok := e.catalog.Achievement(id)
	if !ok {
		e.logger.Debug("claim for unknown achievement", "save", save, "achievement", id)
		return
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	prog := st.snap.Achievements[id]
	if !prog.Unlocked || prog.Claimed {
		return
	}
	// Persist the transition first, then attempt the grant. A crash between
	// the two leaves GrantPending set and the grant is retried on next load.
	prog.Claimed = true
	prog.GrantPending = len(def.Reward) > 0
	st.snap.Achievements[id] = prog
	e.persistLocked(ctx, save, st)

	if prog.GrantPending {
		if err := e.granter.Grant(ctx, save, "achievement:"+id, def.Reward.Clone()); err != nil {
			e.logger.Warn("achievement reward grant failed, will retry on next load",
				"save", save, "achievement", id, "error", err)
		} else {
			prog.GrantPending = false
			st.snap.Achievements[id] = prog
			e.persistLocked(ctx, save, st)
		}
	}
	e.bus.Publish(ctx, core.NewAchievementClaimed(save, def))
}

// CollectItem marks a collection item collected. Unknown ids and repeat
// collections are no-ops. The first collection of an item increments the
// derived items_collected counter and re-evaluates achievements; completing
// the collection grants its reward exactly once.
func (e *Engine) CollectItem(ctx context.Context, save core.SaveID, collectionID, itemID string) {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return
	}
	def, ok := e.catalog.Collection(collectionID)
	if !ok {
		e.logger.Debug("collect for unknown collection", "save", save, "collection", collectionID)
		return
	}
	item, ok := e.catalog.Item(collectionID, itemID)
	if !ok {
		e.logger.Debug("collect for unknown item", "save", save, "collection", collectionID, "item", itemID)
		return
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()

	prog := st.snap.Collections[collectionID]
	if prog.Items == nil {
		prog.Items = make(map[string]core.ItemProgress, len(def.Items))
	}
	if prog.Items[itemID].Collected {
		return
	}
	now := e.now()
	prog.Items[itemID] = core.ItemProgress{Collected: true, CollectedAt: &now}
	if st.snap.Collections == nil {
		st.snap.Collections = make(map[string]core.CollectionProgress)
	}
	st.snap.Collections[collectionID] = prog

	e.setCounterLocked(ctx, save, st, core.CounterItemsCollected, st.snap.Counters[core.CounterItemsCollected]+1)
	e.bus.Publish(ctx, core.NewItemCollected(save, collectionID, item))
	e.evaluateLocked(ctx, save, st)

	if !prog.Completed && collectedCount(def, prog.Items) == len(def.Items) {
		prog.Completed = true
		prog.RewardPending = len(def.Reward) > 0
		st.snap.Collections[collectionID] = prog
		e.persistLocked(ctx, save, st)

		if prog.RewardPending {
			if err := e.granter.Grant(ctx, save, "collection:"+collectionID, def.Reward.Clone()); err != nil {
				e.logger.Warn("collection reward grant failed, will retry on next load",
					"save", save, "collection", collectionID, "error", err)
			} else {
				prog.RewardPending = false
				st.snap.Collections[collectionID] = prog
			}
		}
		e.bus.Publish(ctx, core.NewCollectionCompleted(save, def))
		e.logger.Info("collection completed", "save", save, "collection", collectionID)
	}
	e.persistLocked(ctx, save, st)
}

func collectedCount(def core.CollectionDef, items map[string]core.ItemProgress) int {
	n := 0
	for _, it := range def.Items {
		if items[it.ID].Collected {
			n++
		}
	}
	return n
}

// Score sums rarity points over unlocked achievements. Feeds the leaderboard.
func (e *Engine) Score(ctx context.Context, save core.SaveID) int64 {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return 0
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	var score int64
	for id, prog := range st.snap.Achievements {
		if !prog.Unlocked {
			continue
		}
		if def, ok := e.catalog.Achievement(id); ok {
			score += def.Rarity.ScorePoints()
		}
	}
	return score
}

// Snapshot returns a point-in-time deep copy of a save's state.
func (e *Engine) Snapshot(ctx context.Context, save core.SaveID) core.Snapshot {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return core.Snapshot{}
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snap.Clone()
}
