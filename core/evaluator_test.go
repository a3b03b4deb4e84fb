package core

import (
	"math/rand/v2"
	"testing"
)

func mapLookup(m map[CounterKey]int64) CounterLookup {
	return func(k CounterKey) int64 { return m[k] }
}

func TestEvaluateConjunctive(t *testing.T) {
	reqs := []Requirement{{Key: "a", Threshold: 5}, {Key: "b", Threshold: 3}}

	ev := Evaluate(reqs, mapLookup(map[CounterKey]int64{"a": 5}))
	if ev.Satisfied {
		t.Fatal("should not satisfy with b missing")
	}
	if ev.Progress != 5 || ev.Target != 8 {
		t.Fatalf("progress=%d target=%d", ev.Progress, ev.Target)
	}

	ev = Evaluate(reqs, mapLookup(map[CounterKey]int64{"a": 5, "b": 3}))
	if !ev.Satisfied || ev.Progress != 8 {
		t.Fatalf("expected satisfied with full progress, got %+v", ev)
	}
}

func TestEvaluateCapsOverflowedCounters(t *testing.T) {
	reqs := []Requirement{{Key: "kills", Threshold: 10}}
	ev := Evaluate(reqs, mapLookup(map[CounterKey]int64{"kills": 9999}))
	if !ev.Satisfied || ev.Progress != 10 {
		t.Fatalf("progress should cap at threshold, got %+v", ev)
	}
}

func TestEvaluateUnknownKeysReadZero(t *testing.T) {
	reqs := []Requirement{{Key: "never_written", Threshold: 1}}
	ev := Evaluate(reqs, mapLookup(map[CounterKey]int64{}))
	if ev.Satisfied || ev.Progress != 0 {
		t.Fatalf("unknown key should evaluate to zero, got %+v", ev)
	}
}

func TestEvaluateOrderIndependent(t *testing.T) {
	reqs := []Requirement{
		{Key: "a", Threshold: 5},
		{Key: "b", Threshold: 3},
		{Key: "c", Threshold: 7},
		{Key: "d", Threshold: 1},
	}
	counters := map[CounterKey]int64{"a": 2, "b": 3, "c": 10, "d": 0}
	want := Evaluate(reqs, mapLookup(counters))

	for i := 0; i < 50; i++ {
		shuffled := make([]Requirement, len(reqs))
		copy(shuffled, reqs)
		rand.Shuffle(len(shuffled), func(x, y int) { shuffled[x], shuffled[y] = shuffled[y], shuffled[x] })
		got := Evaluate(shuffled, mapLookup(counters))
		if got != want {
			t.Fatalf("order changed result: %+v vs %+v", got, want)
		}
	}
}

func TestEvaluateRepeatable(t *testing.T) {
	reqs := []Requirement{{Key: "a", Threshold: 5}, {Key: "b", Threshold: 3}}
	counters := map[CounterKey]int64{"a": 4, "b": 1}
	first := Evaluate(reqs, mapLookup(counters))
	for i := 0; i < 10; i++ {
		if got := Evaluate(reqs, mapLookup(counters)); got != first {
			t.Fatalf("evaluation not stable: %+v vs %+v", got, first)
		}
	}
}
