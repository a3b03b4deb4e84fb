package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achievekit/core"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewWithClient(client, nil)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	snap := core.Snapshot{
		Counters: map[core.CounterKey]int64{"levels_completed": 7, "battles_won": 2},
		Achievements: map[string]core.AchievementProgress{
			"first_level": {Unlocked: true, Claimed: true, Progress: 1},
			"veteran":     {Progress: 2},
		},
		Collections: map[string]core.CollectionProgress{
			"gems": {Completed: false, Items: map[string]core.ItemProgress{"ruby": {Collected: true}}},
		},
	}
	require.NoError(t, store.Save(ctx, "slot-1", snap))

	got, ok, err := store.Load(ctx, "slot-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.Counters["levels_completed"])
	assert.True(t, got.Achievements["first_level"].Claimed)
	assert.Equal(t, int64(2), got.Achievements["veteran"].Progress)
	assert.True(t, got.Collections["gems"].Items["ruby"].Collected)
}

func TestLoadUnknownSave(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveReplacesStaleEntries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s", core.Snapshot{
		Counters: map[core.CounterKey]int64{"old": 1, "kept": 2},
	}))
	require.NoError(t, store.Save(ctx, "s", core.Snapshot{
		Counters: map[core.CounterKey]int64{"kept": 3},
	}))

	got, ok, err := store.Load(ctx, "s")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Counters["kept"])
	_, exists := got.Counters["old"]
	assert.False(t, exists, "stale counter should be gone after full rewrite")
}

func TestCorruptFieldIsDroppedNotFatal(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s", core.Snapshot{
		Counters:     map[core.CounterKey]int64{"good": 5},
		Achievements: map[string]core.AchievementProgress{"ok": {Unlocked: true}},
	}))
	mr.HSet("save:s:counters", "bad", "not-a-number")
	mr.HSet("save:s:achievements", "broken", `["wrong-shape"]`)

	got, ok, err := store.Load(ctx, "s")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), got.Counters["good"])
	_, exists := got.Counters["bad"]
	assert.False(t, exists)
	assert.True(t, got.Achievements["ok"].Unlocked)
	_, exists = got.Achievements["broken"]
	assert.False(t, exists)
}

func TestEmptySnapshotStillExists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "fresh", core.Snapshot{}))

	_, ok, err := store.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok, "meta key should mark the save as present")
}
