package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"achievekit/core"
)

func TestSaveLoadAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s1, err := New(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := core.Snapshot{
		Counters:     map[core.CounterKey]int64{"levels_completed": 3},
		Achievements: map[string]core.AchievementProgress{"first_level": {Unlocked: true, Claimed: true, Progress: 1}},
		Collections: map[string]core.CollectionProgress{
			"gems": {Items: map[string]core.ItemProgress{"ruby": {Collected: true}}},
		},
	}
	if err := s1.Save(ctx, "slot-1", snap); err != nil {
		t.Fatal(err)
	}

	s2, err := New(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s2.Load(ctx, "slot-1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Counters["levels_completed"] != 3 {
		t.Fatalf("counters: %+v", got.Counters)
	}
	if !got.Achievements["first_level"].Claimed {
		t.Fatalf("achievements: %+v", got.Achievements)
	}
	if !got.Collections["gems"].Items["ruby"].Collected {
		t.Fatalf("collections: %+v", got.Collections)
	}
}

func TestCorruptEntryIsDroppedNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	doc := `{
	  "slot-1": {
	    "counters": {"good": 5, "bad": "not-a-number"},
	    "achievements": {
	      "ok": {"unlocked": true, "progress": 2},
	      "broken": ["wrong-shape"]
	    }
	  }
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Load(context.Background(), "slot-1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Counters["good"] != 5 {
		t.Fatal("good counter lost")
	}
	if _, exists := got.Counters["bad"]; exists {
		t.Fatal("corrupt counter kept")
	}
	if !got.Achievements["ok"].Unlocked {
		t.Fatal("good achievement lost")
	}
	if _, exists := got.Achievements["broken"]; exists {
		t.Fatal("corrupt achievement kept")
	}
}

func TestUnreadableDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{{{{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(context.Background(), "slot-1"); ok {
		t.Fatal("expected empty store")
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.json")
	s, err := New(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), "s", core.Snapshot{Counters: map[core.CounterKey]int64{"x": 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}
