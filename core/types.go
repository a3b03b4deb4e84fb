package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SaveID identifies one save slot. All engine state is scoped to a save.
type SaveID string

// CounterKey names a progress counter such as "levels_completed".
type CounterKey string

// CounterItemsCollected is maintained by the engine itself: it increments the
// first time any collection item is collected, so achievements can require
// cross-cutting item counts.
const CounterItemsCollected CounterKey = "items_collected"

// Category classifies an achievement for display and analytics.
type Category string

const (
	CategoryProgression Category = "progression"
	CategorySkill       Category = "skill"
	CategoryCollection  Category = "collection"
	CategorySocial      Category = "social"
	CategorySpecial     Category = "special"
	CategoryTimeBased   Category = "time_based"
)

// ValidateCategory ensures the category is one of the closed set.
func ValidateCategory(c Category) error {
	switch c {
	case CategoryProgression, CategorySkill, CategoryCollection, CategorySocial, CategorySpecial, CategoryTimeBased:
		return nil
	}
	return fmt.Errorf("unknown category %q", c)
}

// Rarity grades achievements and collection items.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// ValidateRarity ensures the rarity is one of the closed set.
func ValidateRarity(r Rarity) error {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return nil
	}
	return fmt.Errorf("unknown rarity %q", r)
}

// ScorePoints maps a rarity to the score it contributes once unlocked.
func (r Rarity) ScorePoints() int64 {
	switch r {
	case RarityCommon:
		return 10
	case RarityUncommon:
		return 25
	case RarityRare:
		return 50
	case RarityEpic:
		return 100
	case RarityLegendary:
		return 250
	}
	return 0
}

// RewardKind is the closed set of grantable reward types.
type RewardKind string

const (
	RewardCoins RewardKind = "coins"
	RewardGems  RewardKind = "gems"
	RewardItem  RewardKind = "item"
)

// Reward is a single grantable line in a manifest. ItemID is set only for
// RewardItem kinds.
type Reward struct {
	Kind   RewardKind `json:"kind"`
	ItemID string     `json:"item_id,omitempty"`
	Amount int64      `json:"amount"`
}

// Manifest lists everything granted for one unlock or completion.
type Manifest []Reward

// Validate rejects unknown kinds, non-positive amounts, and item rewards
// without an item id.
func (m Manifest) Validate() error {
	for i, r := range m {
		switch r.Kind {
		case RewardCoins, RewardGems:
			if r.ItemID != "" {
				return fmt.Errorf("reward[%d]: item_id not allowed for kind %q", i, r.Kind)
			}
		case RewardItem:
			if strings.TrimSpace(r.ItemID) == "" {
				return fmt.Errorf("reward[%d]: item reward requires item_id", i)
			}
		default:
			return fmt.Errorf("reward[%d]: unknown kind %q", i, r.Kind)
		}
		if r.Amount <= 0 {
			return fmt.Errorf("reward[%d]: amount must be positive", i)
		}
	}
	return nil
}

// Clone returns an independent copy of the manifest.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return nil
	}
	cp := make(Manifest, len(m))
	copy(cp, m)
	return cp
}

// Requirement is one (counter, threshold) pair. An achievement unlocks when
// every requirement is met.
type Requirement struct {
	Key       CounterKey `json:"key"`
	Threshold int64      `json:"threshold"`
}

// SortRequirements orders requirements by key for deterministic listings.
// Evaluation itself is order-independent.
func SortRequirements(reqs []Requirement) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Key < reqs[j].Key })
}

// AchievementDef is the immutable definition of one achievement. Definitions
// come from the content catalog at startup and are never persisted.
type AchievementDef struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Category     Category      `json:"category"`
	Rarity       Rarity        `json:"rarity"`
	Requirements []Requirement `json:"requirements"`
	Reward       Manifest      `json:"reward,omitempty"`
	Priority     int           `json:"priority"`
}

// Validate checks a single definition; uniqueness across definitions is
// checked by the catalog loader.
func (d AchievementDef) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("achievement id is empty")
	}
	if err := ValidateCategory(d.Category); err != nil {
		return fmt.Errorf("achievement %s: %w", d.ID, err)
	}
	if err := ValidateRarity(d.Rarity); err != nil {
		return fmt.Errorf("achievement %s: %w", d.ID, err)
	}
	if len(d.Requirements) == 0 {
		return fmt.Errorf("achievement %s: requirement set is empty", d.ID)
	}
	seen := make(map[CounterKey]struct{}, len(d.Requirements))
	for _, r := range d.Requirements {
		if strings.TrimSpace(string(r.Key)) == "" {
			return fmt.Errorf("achievement %s: requirement key is empty", d.ID)
		}
		if r.Threshold <= 0 {
			return fmt.Errorf("achievement %s: threshold for %s must be positive", d.ID, r.Key)
		}
		if _, dup := seen[r.Key]; dup {
			return fmt.Errorf("achievement %s: duplicate requirement key %s", d.ID, r.Key)
		}
		seen[r.Key] = struct{}{}
	}
	if err := d.Reward.Validate(); err != nil {
		return fmt.Errorf("achievement %s: %w", d.ID, err)
	}
	return nil
}

// Target is the maximum progress value: the sum of all thresholds.
func (d AchievementDef) Target() int64 {
	var t int64
	for _, r := range d.Requirements {
		t += r.Threshold
	}
	return t
}

// AchievementProgress is the mutable per-save state of one achievement.
// Claimed implies Unlocked; Unlocked never reverts within a session.
// GrantPending is set while a claim has been persisted but its reward grant
// has not been confirmed, so a crash between the two retries the grant
// exactly once on the next load.
type AchievementProgress struct {
	Unlocked     bool       `json:"unlocked"`
	Claimed      bool       `json:"claimed"`
	GrantPending bool       `json:"grant_pending,omitempty"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	Progress     int64      `json:"progress"`
}

// CollectionItemDef is one collectible in a collection.
type CollectionItemDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Rarity      Rarity `json:"rarity"`
}

// CollectionDef is the immutable definition of one collection.
type CollectionDef struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Items       []CollectionItemDef `json:"items"`
	Reward      Manifest            `json:"reward,omitempty"`
}

// Validate checks a single collection definition.
func (d CollectionDef) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("collection id is empty")
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("collection %s: item list is empty", d.ID)
	}
	seen := make(map[string]struct{}, len(d.Items))
	for _, it := range d.Items {
		if strings.TrimSpace(it.ID) == "" {
			return fmt.Errorf("collection %s: item id is empty", d.ID)
		}
		if err := ValidateRarity(it.Rarity); err != nil {
			return fmt.Errorf("collection %s item %s: %w", d.ID, it.ID, err)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("collection %s: duplicate item id %s", d.ID, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	if err := d.Reward.Validate(); err != nil {
		return fmt.Errorf("collection %s: %w", d.ID, err)
	}
	return nil
}

// ItemProgress is the mutable per-save state of one collection item.
type ItemProgress struct {
	Collected   bool       `json:"collected"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

// CollectionProgress is the mutable per-save state of one collection.
// Completed is derived from the items and never set directly by callers.
type CollectionProgress struct {
	Completed     bool                    `json:"completed"`
	RewardPending bool                    `json:"reward_pending,omitempty"`
	Items         map[string]ItemProgress `json:"items,omitempty"`
}

/// Snapshot is the full persisted document for one save: counters plus the
// mutable fields of every achievement and collection. Definitions are
// re-supplied by the catalog on load and reconciled by id.
type Snapshot struct {
	Counters     map[CounterKey]int64           `json:"counters,omitempty"`
	Achievements map[string]AchievementProgress `json:"achievements,omitempty"`
	Collections  map[string]CollectionProgress  `json:"collections,omitempty"`
}

// Clone returns a deep copy so snapshots can be handed out without locking.
func (s Snapshot) Clone() Snapshot {
	cp := Snapshot{
		Counters:     make(map[CounterKey]int64, len(s.Counters)),
		Achievements: make(map[string]AchievementProgress, len(s.Achievements)),
		Collections:  make(map[string]CollectionProgress, len(s.Collections)),
	}
	for k, v := range s.Counters {
		cp.Counters[k] = v
	}
	for id, a := range s.Achievements {
		cp.Achievements[id] = a
	}
	for id, c := range s.Collections {
		items := make(map[string]ItemProgress, len(c.Items))
		for iid, ip := range c.Items {
			items[iid] = ip
		}
		c.Items = items
		cp.Collections[id] = c
	}
	return cp
}

// NormalizeSaveID trims and lowercases save identifiers.
func NormalizeSaveID(id SaveID) (SaveID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty save id")
	}
	return SaveID(strings.ToLower(s)), nil
}
