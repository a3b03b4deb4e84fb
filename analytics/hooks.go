// Package analytics aggregates achievement KPIs from engine events.
package analytics

import (
	"sync"
	"time"

	"achievekit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// BridgeHook fans one event source out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Metrics tracks unlock, claim and collection KPIs. All counters are
// in-process; export them via the Exporter types.
type Metrics struct {
	mu sync.RWMutex

	// engagement
	activeSavesByDay map[string]map[core.SaveID]struct{}

	// achievements
	unlocksByDay    map[string]int64
	unlocksByRarity map[core.Rarity]int64
	claimsByDay     map[string]int64

	// collections
	completionsByDay map[string]int64
	itemsByRarity    map[core.Rarity]int64

	// real-time counters since construction
	realtime struct {
		unlocks     int64
		claims      int64
		completions int64
	}
}

func NewMetrics() *Metrics {
	return &Metrics{
		activeSavesByDay: make(map[string]map[core.SaveID]struct{}),
		unlocksByDay:     make(map[string]int64),
		unlocksByRarity:  make(map[core.Rarity]int64),
		claimsByDay:      make(map[string]int64),
		completionsByDay: make(map[string]int64),
		itemsByRarity:    make(map[core.Rarity]int64),
	}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (m *Metrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(e.Time)
	saves := m.activeSavesByDay[day]
	if saves == nil {
		saves = map[core.SaveID]struct{}{}
		m.activeSavesByDay[day] = saves
	}
	saves[e.Save] = struct{}{}

	switch e.Type {
	case core.EventAchievementUnlocked:
		m.unlocksByDay[day]++
		m.unlocksByRarity[e.Rarity]++
		m.realtime.unlocks++
	case core.EventAchievementClaimed:
		m.claimsByDay[day]++
		m.realtime.claims++
	case core.EventItemCollected:
		m.itemsByRarity[e.Rarity]++
	case core.EventCollectionCompleted:
		m.completionsByDay[day]++
		m.realtime.completions++
	}
}

func (m *Metrics) ActiveSaves(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeSavesByDay[day])
}

func (m *Metrics) UnlocksByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocksByDay[day]
}

func (m *Metrics) UnlocksByRarity(r core.Rarity) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocksByRarity[r]
}

func (m *Metrics) ClaimsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claimsByDay[day]
}

func (m *Metrics) CompletionsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completionsByDay[day]
}

func (m *Metrics) ItemsByRarity(r core.Rarity) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.itemsByRarity[r]
}

// RealtimeStats returns the totals accumulated since construction.
func (m *Metrics) RealtimeStats() (unlocks, claims, completions int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realtime.unlocks, m.realtime.claims, m.realtime.completions
}

// Summary is a point-in-time export of one day's KPIs.
type Summary struct {
	Day         string                `json:"day"`
	ActiveSaves int                   `json:"active_saves"`
	Unlocks     int64                 `json:"unlocks"`
	Claims      int64                 `json:"claims"`
	Completions int64                 `json:"completions"`
	ByRarity    map[core.Rarity]int64 `json:"unlocks_by_rarity"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Summarize builds an export snapshot for the given day.
func (m *Metrics) Summarize(day string) *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byRarity := make(map[core.Rarity]int64, len(m.unlocksByRarity))
	for r, n := range m.unlocksByRarity {
		byRarity[r] = n
	}
	return &Summary{
		Day:         day,
		ActiveSaves: len(m.activeSavesByDay[day]),
		Unlocks:     m.unlocksByDay[day],
		Claims:      m.claimsByDay[day],
		Completions: m.completionsByDay[day],
		ByRarity:    byRarity,
		CreatedAt:   time.Now().UTC(),
	}
}
