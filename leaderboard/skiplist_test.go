package leaderboard

import (
	"testing"

	"achievekit/core"
)

func TestSkipListBasic(t *testing.T) {
	s := NewSkipList()
	s.Update(core.SaveID("a"), 10)
	s.Update(core.SaveID("b"), 20)
	s.Update(core.SaveID("c"), 15)
	top := s.TopN(3)
	if len(top) != 3 || top[0].Save != "b" || top[1].Save != "c" || top[2].Save != "a" {
		t.Fatalf("unexpected order: %#v", top)
	}
	s.Update(core.SaveID("a"), 25)
	top = s.TopN(1)
	if top[0].Save != "a" {
		t.Fatalf("top should be a, got %#v", top)
	}
}

func TestSkipListRemoveAndRank(t *testing.T) {
	s := NewSkipList()
	s.Update("a", 10)
	s.Update("b", 20)
	s.Update("c", 15)

	if got := s.Rank("c"); got != 2 {
		t.Fatalf("rank c = %d, want 2", got)
	}
	s.Remove("b")
	if got := s.Rank("c"); got != 1 {
		t.Fatalf("rank c after removal = %d, want 1", got)
	}
	if _, ok := s.Get("b"); ok {
		t.Fatal("b should be gone")
	}
	if got := s.Rank("b"); got != 0 {
		t.Fatalf("rank of absent save = %d, want 0", got)
	}
}

func TestSkipListTieBreaksBySaveID(t *testing.T) {
	s := NewSkipList()
	s.Update("zeta", 50)
	s.Update("alpha", 50)
	top := s.TopN(2)
	if top[0].Save != "alpha" || top[1].Save != "zeta" {
		t.Fatalf("ties should order by save id: %#v", top)
	}
}

func TestTrackerAccumulatesUnlockPoints(t *testing.T) {
	tr := NewTracker(NewSkipList())
	tr.OnEvent(core.NewAchievementUnlocked("s1", core.AchievementDef{ID: "a", Rarity: core.RarityCommon}))
	tr.OnEvent(core.NewAchievementUnlocked("s1", core.AchievementDef{ID: "b", Rarity: core.RarityRare}))
	tr.OnEvent(core.NewAchievementUnlocked("s2", core.AchievementDef{ID: "a", Rarity: core.RarityEpic}))
	tr.OnEvent(core.NewCounterUpdated("s1", "kills", 1)) // ignored

	e, ok := tr.Board().Get("s1")
	if !ok || e.Score != 60 {
		t.Fatalf("s1 score = %+v", e)
	}
	top := tr.Board().TopN(2)
	if top[0].Save != "s2" {
		t.Fatalf("epic unlock should lead: %#v", top)
	}
}

func TestTrackerSeed(t *testing.T) {
	tr := NewTracker(NewSkipList())
	tr.Seed("restored", 135)
	e, ok := tr.Board().Get("restored")
	if !ok || e.Score != 135 {
		t.Fatalf("seeded entry = %+v ok=%v", e, ok)
	}
}
