package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	mem "achievekit/adapters/memory"
	"achievekit/core"
)

func testCatalog(t *testing.T) *core.Catalog {
	t.Helper()
	cat, err := core.NewCatalog(
		[]core.AchievementDef{
			{
				ID: "first_level", Name: "First Steps",
				Category: core.CategoryProgression, Rarity: core.RarityCommon, Priority: 1,
				Requirements: []core.Requirement{{Key: "levels_completed", Threshold: 1}},
				Reward:       core.Manifest{{Kind: core.RewardCoins, Amount: 100}, {Kind: core.RewardGems, Amount: 10}},
			},
			{
				ID: "veteran", Name: "Veteran",
				Category: core.CategorySkill, Rarity: core.RarityRare, Priority: 2,
				Requirements: []core.Requirement{{Key: "battles_won", Threshold: 5}, {Key: "levels_completed", Threshold: 3}},
				Reward:       core.Manifest{{Kind: core.RewardCoins, Amount: 500}},
			},
			{
				ID: "hoarder", Name: "Hoarder",
				Category: core.CategoryCollection, Rarity: core.RarityEpic, Priority: 3,
				Requirements: []core.Requirement{{Key: core.CounterItemsCollected, Threshold: 2}},
			},
		},
		[]core.CollectionDef{
			{
				ID: "gems", Name: "Gems of Power",
				Items: []core.CollectionItemDef{
					{ID: "ruby", Name: "Ruby", Rarity: core.RarityRare},
					{ID: "opal", Name: "Opal", Rarity: core.RarityEpic},
				},
				Reward: core.Manifest{{Kind: core.RewardCoins, Amount: 250}},
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

// recordingGranter records grants and can be told to fail.
type recordingGranter struct {
	mu     sync.Mutex
	grants []string
	fail   bool
}

func (g *recordingGranter) Grant(_ context.Context, save core.SaveID, source string, m core.Manifest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("grant service unavailable")
	}
	g.grants = append(g.grants, string(save)+"/"+source)
	return nil
}

func (g *recordingGranter) count(entry string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.grants {
		if e == entry {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*Engine, *recordingGranter, *mem.Store) {
	t.Helper()
	store := mem.New()
	granter := &recordingGranter{}
	eng := New(testCatalog(t), store, NewEventBus(DispatchSync), granter, nil)
	return eng, granter, store
}

func countEvents(eng *Engine, typ core.EventType) *int {
	n := new(int)
	eng.Bus().Subscribe(typ, func(context.Context, core.Event) { *n++ })
	return n
}

func TestUnlockOnThreshold(t *testing.T) {
	eng, granter, _ := newTestEngine(t)
	ctx := context.Background()
	unlocks := countEvents(eng, core.EventAchievementUnlocked)

	eng.ReportProgress(ctx, "slot-1", "levels_completed", 1)

	if got := eng.ListUnlocked(ctx, "slot-1"); len(got) != 1 || got[0] != "first_level" {
		t.Fatalf("unlocked=%v", got)
	}
	if *unlocks != 1 {
		t.Fatalf("unlock events=%d", *unlocks)
	}
	// unlock alone must not grant
	if len(granter.grants) != 0 {
		t.Fatalf("reward granted before claim: %v", granter.grants)
	}
}

func TestConjunctiveUnlockAnyOrder(t *testing.T) {
	ctx := context.Background()
	orders := [][2]func(*Engine){
		{
			func(e *Engine) { e.ReportProgress(ctx, "s", "battles_won", 5) },
			func(e *Engine) { e.ReportProgress(ctx, "s", "levels_completed", 3) },
		},
		{
			func(e *Engine) { e.ReportProgress(ctx, "s", "levels_completed", 3) },
			func(e *Engine) { e.ReportProgress(ctx, "s", "battles_won", 5) },
		},
	}
	for i, steps := range orders {
		eng, _, _ := newTestEngine(t)
		steps[0](eng)
		claimable := eng.ListClaimable(ctx, "s")
		for _, id := range claimable {
			if id == "veteran" {
				t.Fatalf("order %d: unlocked with one requirement met", i)
			}
		}
		steps[1](eng)
		found := false
		for _, id := range eng.ListUnlocked(ctx, "s") {
			if id == "veteran" {
				found = true
			}
		}
		if !found {
			t.Fatalf("order %d: both requirements met but locked", i)
		}
	}
}

func TestPartialProgressVisibleWhileLocked(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	eng.ReportProgress(ctx, "s", "battles_won", 2)
	var veteran AchievementView
	for _, v := range eng.Achievements(ctx, "s") {
		if v.ID == "veteran" {
			veteran = v
		}
	}
	if veteran.Unlocked {
		t.Fatal("should be locked")
	}
	if veteran.Progress != 2 || veteran.Target != 8 {
		t.Fatalf("progress=%d target=%d", veteran.Progress, veteran.Target)
	}

	// repeated evaluation with fixed counters is stable
	eng.EvaluateAll(ctx, "s")
	eng.EvaluateAll(ctx, "s")
	for _, v := range eng.Achievements(ctx, "s") {
		if v.ID == "veteran" && v.Progress != 2 {
			t.Fatalf("progress drifted to %d", v.Progress)
		}
	}
}

func TestClaimIsIdempotent(t *testing.T) {
	eng, granter, _ := newTestEngine(t)
	ctx := context.Background()
	claims := countEvents(eng, core.EventAchievementClaimed)

	eng.ReportProgress(ctx, "slot-1", "levels_completed", 1)
	for i := 0; i < 5; i++ {
		eng.ClaimAchievement(ctx, "slot-1", "first_level")
	}

	if n := granter.count("slot-1/achievement:first_level"); n != 1 {
		t.Fatalf("reward granted %d times", n)
	}
	if *claims != 1 {
		t.Fatalf("claim events=%d", *claims)
	}
	if got := eng.ListClaimable(ctx, "slot-1"); len(got) != 0 {
		t.Fatalf("still claimable: %v", got)
	}
}

func TestClaimBeforeUnlockIsNoop(t *testing.T) {
	eng, granter, _ := newTestEngine(t)
	ctx := context.Background()

	eng.ClaimAchievement(ctx, "s", "first_level")
	if len(granter.grants) != 0 {
		t.Fatal("claim before unlock must not grant")
	}
}

func TestUnknownIDsAreNoops(t *testing.T) {
	eng, granter, _ := newTestEngine(t)
	ctx := context.Background()

	eng.ClaimAchievement(ctx, "s", "does-not-exist")
	eng.CollectItem(ctx, "s", "bogus", "bogus")
	eng.CollectItem(ctx, "s", "gems", "bogus")

	if len(granter.grants) != 0 {
		t.Fatalf("grants: %v", granter.grants)
	}
	if eng.Counter(ctx, "s", core.CounterItemsCollected) != 0 {
		t.Fatal("counter moved on bogus collect")
	}
}

func TestCollectionCompletionDerived(t *testing.T) {
	eng, granter, _ := newTestEngine(t)
	ctx := context.Background()
	completions := countEvents(eng, core.EventCollectionCompleted)
	collects := countEvents(eng, core.EventItemCollected)

	eng.CollectItem(ctx, "s", "gems", "ruby")
	views := eng.Collections(ctx, "s")
	if len(views) != 1 || views[0].CompletionPercent != 50 || views[0].Completed {
		t.Fatalf("after one item: %+v", views)
	}

	// re-collecting is a no-op: no event, no counter bump
	eng.CollectItem(ctx, "s", "gems", "ruby")
	if *collects != 1 {
		t.Fatalf("collect events=%d", *collects)
	}
	if eng.Counter(ctx, "s", core.CounterItemsCollected) != 1 {
		t.Fatal("items_collected bumped twice for one item")
	}

	eng.CollectItem(ctx, "s", "gems", "opal")
	views = eng.Collections(ctx, "s")
	if !views[0].Completed || views[0].CompletionPercent != 100 {
		t.Fatalf("after all items: %+v", views)
	}
	if *completions != 1 {
		t.Fatalf("completion events=%d", *completions)
	}
	if n := granter.count("s/collection:gems"); n != 1 {
		t.Fatalf("collection reward granted %d times", n)
	}

	// already-completed re-check is a guaranteed no-op
	eng.EvaluateAll(ctx, "s")
	eng.CollectItem(ctx, "s", "gems", "opal")
	if *completions != 1 || granter.count("s/collection:gems") != 1 {
		t.Fatal("completion side effects repeated")
	}
}

func TestItemsCollectedFeedsAchievements(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	eng.CollectItem(ctx, "s", "gems", "ruby")
	eng.CollectItem(ctx, "s", "gems", "opal")

	found := false
	for _, id := range eng.ListUnlocked(ctx, "s") {
		if id == "hoarder" {
			found = true
		}
	}
	if !found {
		t.Fatal("items_collected achievement should unlock after two items")
	}
}

func TestRoundTripPersistence(t *testing.T) {
	store := mem.New()
	granter := &recordingGranter{}
	ctx := context.Background()

	eng := New(testCatalog(t), store, NewEventBus(DispatchSync), granter, nil)
	eng.ReportProgress(ctx, "slot-1", "levels_completed", 2)
	eng.ReportProgress(ctx, "slot-1", "battles_won", 1)
	eng.ClaimAchievement(ctx, "slot-1", "first_level")
	eng.CollectItem(ctx, "slot-1", "gems", "ruby")

	// a fresh engine over the same store observes identical state
	eng2 := New(testCatalog(t), store, NewEventBus(DispatchSync), granter, nil)
	if got, want := eng2.ListUnlocked(ctx, "slot-1"), eng.ListUnlocked(ctx, "slot-1"); len(got) != len(want) {
		t.Fatalf("unlocked sets differ: %v vs %v", got, want)
	}
	if eng2.Counter(ctx, "slot-1", "levels_completed") != 2 {
		t.Fatal("counter lost")
	}
	if eng2.Counter(ctx, "slot-1", core.CounterItemsCollected) != 1 {
		t.Fatal("derived counter lost")
	}
	var fl AchievementView
	for _, v := range eng2.Achievements(ctx, "slot-1") {
		if v.ID == "first_level" {
			fl = v
		}
	}
	if !fl.Unlocked || !fl.Claimed {
		t.Fatalf("claim state lost: %+v", fl)
	}
	views := eng2.Collections(ctx, "slot-1")
	if views[0].CompletionPercent != 50 {
		t.Fatalf("collection state lost: %+v", views)
	}

	// reload must not re-grant
	if n := granter.count("slot-1/achievement:first_level"); n != 1 {
		t.Fatalf("granted %d times across reload", n)
	}
}

func TestGrantRetriedOnceOnLoad(t *testing.T) {
	store := mem.New()
	granter := &recordingGranter{fail: true}
	ctx := context.Background()

	eng := New(testCatalog(t), store, NewEventBus(DispatchSync), granter, nil)
	unlocks := countEvents(eng, core.EventAchievementUnlocked)
	eng.ReportProgress(ctx, "s", "levels_completed", 1)
	eng.ClaimAchievement(ctx, "s", "first_level")
	if len(granter.grants) != 0 {
		t.Fatal("grant should have failed")
	}

	// the claim transition persisted with the grant still pending
	snap, ok, err := store.Load(ctx, "s")
	if err != nil || !ok {
		t.Fatal("snapshot missing")
	}
	if !snap.Achievements["first_level"].Claimed || !snap.Achievements["first_level"].GrantPending {
		t.Fatalf("state: %+v", snap.Achievements["first_level"])
	}

	// simulate restart with the grant service back up
	granter.fail = false
	eng2 := New(testCatalog(t), store, NewEventBus(DispatchSync), granter, nil)
	unlocks2 := countEvents(eng2, core.EventAchievementUnlocked)
	_ = eng2.Achievements(ctx, "s") // first touch loads and retries

	if n := granter.count("s/achievement:first_level"); n != 1 {
		t.Fatalf("retry granted %d times", n)
	}
	snap, _, _ = store.Load(ctx, "s")
	if snap.Achievements["first_level"].GrantPending {
		t.Fatal("pending flag not cleared after retry")
	}
	// retry must not re-show the unlock notification
	if *unlocks2 != 0 {
		t.Fatalf("unlock re-emitted on load: %d (original %d)", *unlocks2, *unlocks)
	}
}

func TestReconcileDropsUnknownAndDefaultsMissing(t *testing.T) {
	store := mem.New()
	ctx := context.Background()
	_ = store.Save(ctx, "s", core.Snapshot{
		Counters: map[core.CounterKey]int64{"battles_won": 4},
		Achievements: map[string]core.AchievementProgress{
			"removed_from_catalog": {Unlocked: true},
			"veteran":              {Progress: 4},
		},
		Collections: map[string]core.CollectionProgress{
			"retired_collection": {Completed: true},
		},
	})

	eng := New(testCatalog(t), store, NewEventBus(DispatchSync), &recordingGranter{}, nil)
	views := eng.Achievements(ctx, "s")
	if len(views) != 3 {
		t.Fatalf("expected all catalog achievements, got %d", len(views))
	}
	for _, v := range views {
		if v.ID == "first_level" && (v.Unlocked || v.Progress != 0) {
			t.Fatalf("missing entry should default to locked: %+v", v)
		}
	}
	snap := eng.Snapshot(ctx, "s")
	if _, ok := snap.Achievements["removed_from_catalog"]; ok {
		t.Fatal("unknown achievement id kept")
	}
	if _, ok := snap.Collections["retired_collection"]; ok {
		t.Fatal("unknown collection id kept")
	}
}

func TestSetProgressDoesNotRelock(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	eng.ReportProgress(ctx, "s", "levels_completed", 1)
	if len(eng.ListUnlocked(ctx, "s")) == 0 {
		t.Fatal("setup: expected unlock")
	}

	eng.SetProgress(ctx, "s", "levels_completed", 0)
	found := false
	for _, id := range eng.ListUnlocked(ctx, "s") {
		if id == "first_level" {
			found = true
		}
	}
	if !found {
		t.Fatal("achievement re-locked after counter decrement")
	}
}

func TestScore(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	if eng.Score(ctx, "s") != 0 {
		t.Fatal("fresh save should score 0")
	}
	eng.ReportProgress(ctx, "s", "levels_completed", 1)
	if got := eng.Score(ctx, "s"); got != core.RarityCommon.ScorePoints() {
		t.Fatalf("score=%d", got)
	}
}
