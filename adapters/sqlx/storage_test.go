package sqlx_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "achievekit/adapters/sqlx"
	"achievekit/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_Save(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	save := core.SaveID("slot-1")
	when := time.Now()
	snap := core.Snapshot{
		Counters: map[core.CounterKey]int64{"levels_completed": 3},
		Achievements: map[string]core.AchievementProgress{
			"first_level": {Unlocked: true, UnlockedAt: &when, Progress: 1},
		},
		Collections: map[string]core.CollectionProgress{
			"gems": {Items: map[string]core.ItemProgress{"ruby": {Collected: true, CollectedAt: &when}}},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM save_counters`).WithArgs(save).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM save_achievements`).WithArgs(save).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM save_collections`).WithArgs(save).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM save_items`).WithArgs(save).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO save_counters`).
		WithArgs(save, "levels_completed", int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO save_achievements`).
		WithArgs(save, "first_level", true, false, false, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO save_collections`).
		WithArgs(save, "gems", false, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO save_items`).
		WithArgs(save, "gems", "ruby", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO save_meta`).
		WithArgs(save, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(ctx, save, snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Load(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	save := core.SaveID("slot-1")
	when := time.Now().UTC()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(save).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT counter_key, value FROM save_counters`).
		WithArgs(save).
		WillReturnRows(sqlmock.NewRows([]string{"counter_key", "value"}).
			AddRow("levels_completed", 3).
			AddRow("battles_won", 5))
	mock.ExpectQuery(`SELECT achievement_id, unlocked, claimed, grant_pending, unlocked_at, progress FROM save_achievements`).
		WithArgs(save).
		WillReturnRows(sqlmock.NewRows([]string{"achievement_id", "unlocked", "claimed", "grant_pending", "unlocked_at", "progress"}).
			AddRow("first_level", true, true, false, when, 1))
	mock.ExpectQuery(`SELECT collection_id, completed, reward_pending FROM save_collections`).
		WithArgs(save).
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "completed", "reward_pending"}).
			AddRow("gems", false, false))
	mock.ExpectQuery(`SELECT collection_id, item_id, collected, collected_at FROM save_items`).
		WithArgs(save).
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "item_id", "collected", "collected_at"}).
			AddRow("gems", "ruby", true, when))

	snap, ok, err := store.Load(ctx, save)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), snap.Counters["levels_completed"])
	require.True(t, snap.Achievements["first_level"].Claimed)
	require.NotNil(t, snap.Achievements["first_level"].UnlockedAt)
	require.True(t, snap.Collections["gems"].Items["ruby"].Collected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_LoadUnknownSave(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.SaveID("nobody")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, ok, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_EnsureSchema(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
