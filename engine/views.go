package engine

import (
	"context"
	"time"

	"achievekit/core"
)

// AchievementView is the read model handed to UIs: definition fields plus the
// save's current progress toward the target.
type AchievementView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    core.Category `json:"category"`
	Rarity      core.Rarity   `json:"rarity"`
	Unlocked    bool          `json:"unlocked"`
	Claimed     bool          `json:"claimed"`
	UnlockedAt  *time.Time    `json:"unlocked_at,omitempty"`
	Progress    int64         `json:"progress"`
	Target      int64         `json:"target"`
}

// ItemView is one collectible in a collection listing.
type ItemView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Rarity    core.Rarity `json:"rarity"`
	Collected bool        `json:"collected"`
}

// CollectionView is the read model for one collection.
type CollectionView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Completed         bool       `json:"completed"`
	CompletionPercent int        `json:"completion_percentage"`
	Items             []ItemView `json:"items"`
}

// Achievements lists every achievement in display order with the save's
// progress. Read-only and side-effect-free apart from lazily loading the save.
func (e *Engine) Achievements(ctx context.Context, save core.SaveID) []AchievementView {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return nil
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	defs := e.catalog.Achievements()
	out := make([]AchievementView, 0, len(defs))
	for _, def := range defs {
		prog := st.snap.Achievements[def.ID]
		out = append(out, AchievementView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Category,
			Rarity:      def.Rarity,
			Unlocked:    prog.Unlocked,
			Claimed:     prog.Claimed,
			UnlockedAt:  prog.UnlockedAt,
			Progress:    prog.Progress,
			Target:      def.Target(),
		})
	}
	return out
}

// ListUnlocked returns ids of unlocked achievements in display order.
func (e *Engine) ListUnlocked(ctx context.Context, save core.SaveID) []string {
	return e.filterAchievements(ctx, save, func(p core.AchievementProgress) bool {
		return p.Unlocked
	})
}

// ListClaimable returns ids of achievements that are unlocked but not yet
// claimed, in display order.
func (e *Engine) ListClaimable(ctx context.Context, save core.SaveID) []string {
	return e.filterAchievements(ctx, save, func(p core.AchievementProgress) bool {
		return p.Unlocked && !p.Claimed
	})
}

func (e *Engine) filterAchievements(ctx context.Context, save core.SaveID, keep func(core.AchievementProgress) bool) []string {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return nil
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []string
	for _, def := range e.catalog.Achievements() {
		if keep(st.snap.Achievements[def.ID]) {
			out = append(out, def.ID)
		}
	}
	return out
}

// Collections lists every collection with per-item collected flags and the
// derived completion percentage (integer rounding).
func (e *Engine) Collections(ctx context.Context, save core.SaveID) []CollectionView {
	save, err := core.NormalizeSaveID(save)
	if err != nil {
		return nil
	}
	st := e.state(ctx, save)
	st.mu.Lock()
	defer st.mu.Unlock()
	defs := e.catalog.Collections()
	out := make([]CollectionView, 0, len(defs))
	for _, def := range defs {
		prog := st.snap.Collections[def.ID]
		items := make([]ItemView, 0, len(def.Items))
		collected := 0
		for _, it := range def.Items {
			ip := prog.Items[it.ID]
			if ip.Collected {
				collected++
			}
			items = append(items, ItemView{ID: it.ID, Name: it.Name, Rarity: it.Rarity, Collected: ip.Collected})
		}
		pct := 0
		if len(def.Items) > 0 {
			pct = collected * 100 / len(def.Items)
		}
		out = append(out, CollectionView{
			ID:                def.ID,
			Name:              def.Name,
			Completed:         prog.Completed,
			CompletionPercent: pct,
			Items:             items,
		})
	}
	return out
}
