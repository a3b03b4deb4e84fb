package core

import "testing"

func TestNormalizeSaveID(t *testing.T) {
	id, err := NormalizeSaveID(" Slot-1 ")
	if err != nil || id != "slot-1" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeSaveID("   "); err == nil {
		t.Fatal("expected empty error")
	}
}

func TestManifestValidate(t *testing.T) {
	ok := Manifest{{Kind: RewardCoins, Amount: 100}, {Kind: RewardItem, ItemID: "sword", Amount: 1}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	bad := []Manifest{
		{{Kind: "shards", Amount: 1}},
		{{Kind: RewardCoins, Amount: 0}},
		{{Kind: RewardItem, Amount: 1}},
		{{Kind: RewardGems, ItemID: "x", Amount: 1}},
	}
	for i, m := range bad {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
}

func TestAchievementDefValidate(t *testing.T) {
	def := AchievementDef{
		ID:           "first_level",
		Name:         "First Steps",
		Category:     CategoryProgression,
		Rarity:       RarityCommon,
		Requirements: []Requirement{{Key: "levels_completed", Threshold: 1}},
		Reward:       Manifest{{Kind: RewardCoins, Amount: 100}},
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if def.Target() != 1 {
		t.Fatalf("target=%d", def.Target())
	}

	dup := def
	dup.Requirements = []Requirement{{Key: "a", Threshold: 1}, {Key: "a", Threshold: 2}}
	if err := dup.Validate(); err == nil {
		t.Fatal("duplicate requirement key should fail")
	}

	empty := def
	empty.Requirements = nil
	if err := empty.Validate(); err == nil {
		t.Fatal("empty requirement set should fail")
	}

	badCat := def
	badCat.Category = "arcade"
	if err := badCat.Validate(); err == nil {
		t.Fatal("unknown category should fail")
	}
}

func TestCollectionDefValidate(t *testing.T) {
	def := CollectionDef{
		ID:    "gems",
		Name:  "Gems of Power",
		Items: []CollectionItemDef{{ID: "ruby", Rarity: RarityRare}, {ID: "opal", Rarity: RarityEpic}},
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	dup := def
	dup.Items = []CollectionItemDef{{ID: "ruby", Rarity: RarityRare}, {ID: "ruby", Rarity: RarityRare}}
	if err := dup.Validate(); err == nil {
		t.Fatal("duplicate item id should fail")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	snap := Snapshot{
		Counters:     map[CounterKey]int64{"kills": 3},
		Achievements: map[string]AchievementProgress{"a": {Unlocked: true, Progress: 5}},
		Collections: map[string]CollectionProgress{
			"c": {Items: map[string]ItemProgress{"i": {Collected: true}}},
		},
	}
	cp := snap.Clone()
	cp.Counters["kills"] = 99
	cp.Collections["c"].Items["i"] = ItemProgress{}
	if snap.Counters["kills"] != 3 {
		t.Fatal("counters aliased")
	}
	if !snap.Collections["c"].Items["i"].Collected {
		t.Fatal("item map aliased")
	}
}

func TestRarityScorePoints(t *testing.T) {
	if RarityCommon.ScorePoints() >= RarityLegendary.ScorePoints() {
		t.Fatal("legendary should outscore common")
	}
	if Rarity("bogus").ScorePoints() != 0 {
		t.Fatal("unknown rarity scores 0")
	}
}
