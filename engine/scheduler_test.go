package engine

import (
	"context"
	"testing"
	"time"

)

// The sweep catches mutation paths that bypassed the inline evaluation, e.g.
// a snapshot written by another process. Simulate by mutating the counter map
// behind the engine's back.
func TestSweepCatchesBypassedMutations(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	eng.ReportProgress(ctx, "s", "levels_completed", 0) // touch the save
	st := eng.state(ctx, "s")
	st.mu.Lock()
	st.snap.Counters["levels_completed"] = 1
	st.mu.Unlock()

	if len(eng.ListUnlocked(ctx, "s")) != 0 {
		t.Fatal("setup: should still be locked")
	}

	ticks := make(chan time.Time, 1)
	sched := NewScheduler(eng, nil, WithTicks(ticks))
	sched.Start(ctx)
	defer sched.Stop()

	ticks <- time.Now()
	deadline := time.After(time.Second)
	for len(eng.ListUnlocked(ctx, "s")) == 0 {
		select {
		case <-deadline:
			t.Fatal("sweep never unlocked the achievement")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSweepSynchronous(t *testing.T) {
	eng, _, store := newTestEngine(t)
	ctx := context.Background()
	eng.ReportProgress(ctx, "s", "battles_won", 2)

	sched := NewScheduler(eng, nil, WithInterval(time.Minute))
	sched.Sweep(ctx)
	sched.Sweep(ctx)

	snap, ok, err := store.Load(ctx, "s")
	if err != nil || !ok {
		t.Fatal("snapshot missing")
	}
	if snap.Counters["battles_won"] != 2 {
		t.Fatalf("counters: %+v", snap.Counters)
	}
}
