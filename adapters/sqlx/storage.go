// Package sqlx implements a SnapshotStore on a relational database via
// jmoiron/sqlx. Postgres and MySQL are supported.
//
// Snapshots are normalized into per-entry rows so a damaged row only costs
// that entry on load:
//
//	save_meta(save_id, updated_at)
//	save_counters(save_id, counter_key, value)
//	save_achievements(save_id, achievement_id, unlocked, claimed, grant_pending, unlocked_at, progress)
//	save_collections(save_id, collection_id, completed, reward_pending)
//	save_items(save_id, collection_id, item_id, collected, collected_at)
package sqlx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"achievekit/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds database connection configuration.
type Config struct {
	Driver          Driver        `json:"driver"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Store implements engine.SnapshotStore backed by a SQL database.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and verifies connectivity.
func New(config Config) (*Store, error) {
	db, err := sqlx.Connect(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Driver, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	return NewWithDB(db, config.Driver), nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	timeType := "TIMESTAMPTZ"
	if s.driver == DriverMySQL {
		timeType = "DATETIME"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS save_meta (
			save_id VARCHAR(128) PRIMARY KEY,
			updated_at %s NOT NULL
		)`, timeType),
		`CREATE TABLE IF NOT EXISTS save_counters (
			save_id VARCHAR(128) NOT NULL,
			counter_key VARCHAR(128) NOT NULL,
			value BIGINT NOT NULL,
			PRIMARY KEY (save_id, counter_key)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS save_achievements (
			save_id VARCHAR(128) NOT NULL,
			achievement_id VARCHAR(128) NOT NULL,
			unlocked BOOLEAN NOT NULL,
			claimed BOOLEAN NOT NULL,
			grant_pending BOOLEAN NOT NULL,
			unlocked_at %s NULL,
			progress BIGINT NOT NULL,
			PRIMARY KEY (save_id, achievement_id)
		)`, timeType),
		`CREATE TABLE IF NOT EXISTS save_collections (
			save_id VARCHAR(128) NOT NULL,
			collection_id VARCHAR(128) NOT NULL,
			completed BOOLEAN NOT NULL,
			reward_pending BOOLEAN NOT NULL,
			PRIMARY KEY (save_id, collection_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS save_items (
			save_id VARCHAR(128) NOT NULL,
			collection_id VARCHAR(128) NOT NULL,
			item_id VARCHAR(128) NOT NULL,
			collected BOOLEAN NOT NULL,
			collected_at %s NULL,
			PRIMARY KEY (save_id, collection_id, item_id)
		)`, timeType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save replaces all rows for the save in one transaction.
func (s *Store) Save(ctx context.Context, save core.SaveID, snap core.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"save_counters", "save_achievements", "save_collections", "save_items"} {
		q := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE save_id = ?", table))
		if _, err := tx.ExecContext(ctx, q, save); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	insCounter := tx.Rebind("INSERT INTO save_counters (save_id, counter_key, value) VALUES (?, ?, ?)")
	for k, v := range snap.Counters {
		if _, err := tx.ExecContext(ctx, insCounter, save, string(k), v); err != nil {
			return fmt.Errorf("failed to insert counter %s: %w", k, err)
		}
	}

	insAch := tx.Rebind(`INSERT INTO save_achievements
		(save_id, achievement_id, unlocked, claimed, grant_pending, unlocked_at, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for id, p := range snap.Achievements {
		var unlockedAt sql.NullTime
		if p.UnlockedAt != nil {
			unlockedAt = sql.NullTime{Time: *p.UnlockedAt, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insAch, save, id, p.Unlocked, p.Claimed, p.GrantPending, unlockedAt, p.Progress); err != nil {
			return fmt.Errorf("failed to insert achievement %s: %w", id, err)
		}
	}

	insCol := tx.Rebind("INSERT INTO save_collections (save_id, collection_id, completed, reward_pending) VALUES (?, ?, ?, ?)")
	insItem := tx.Rebind("INSERT INTO save_items (save_id, collection_id, item_id, collected, collected_at) VALUES (?, ?, ?, ?, ?)")
	for id, p := range snap.Collections {
		if _, err := tx.ExecContext(ctx, insCol, save, id, p.Completed, p.RewardPending); err != nil {
			return fmt.Errorf("failed to insert collection %s: %w", id, err)
		}
		for itemID, ip := range p.Items {
			var collectedAt sql.NullTime
			if ip.CollectedAt != nil {
				collectedAt = sql.NullTime{Time: *ip.CollectedAt, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, insItem, save, id, itemID, ip.Collected, collectedAt); err != nil {
				return fmt.Errorf("failed to insert item %s/%s: %w", id, itemID, err)
			}
		}
	}

	upsertMeta := "INSERT INTO save_meta (save_id, updated_at) VALUES (?, ?) ON CONFLICT (save_id) DO UPDATE SET updated_at = EXCLUDED.updated_at"
	if s.driver == DriverMySQL {
		upsertMeta = "INSERT INTO save_meta (save_id, updated_at) VALUES (?, ?) ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)"
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(upsertMeta), save, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load rebuilds a snapshot from the normalized rows.
func (s *Store) Load(ctx context.Context, save core.SaveID) (core.Snapshot, bool, error) {
	var exists bool
	probe := s.db.Rebind("SELECT EXISTS (SELECT 1 FROM save_meta WHERE save_id = ?)")
	if err := s.db.GetContext(ctx, &exists, probe, save); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to probe snapshot: %w", err)
	}
	if !exists {
		return core.Snapshot{}, false, nil
	}

	snap := core.Snapshot{
		Counters:     make(map[core.CounterKey]int64),
		Achievements: make(map[string]core.AchievementProgress),
		Collections:  make(map[string]core.CollectionProgress),
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind("SELECT counter_key, value FROM save_counters WHERE save_id = ?"), save)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read counters: %w", err)
	}
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return core.Snapshot{}, false, fmt.Errorf("failed to scan counter: %w", err)
		}
		snap.Counters[core.CounterKey(key)] = value
	}
	rows.Close()

	rows, err = s.db.QueryxContext(ctx, s.db.Rebind(
		"SELECT achievement_id, unlocked, claimed, grant_pending, unlocked_at, progress FROM save_achievements WHERE save_id = ?"), save)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read achievements: %w", err)
	}
	for rows.Next() {
		var id string
		var p core.AchievementProgress
		var unlockedAt sql.NullTime
		if err := rows.Scan(&id, &p.Unlocked, &p.Claimed, &p.GrantPending, &unlockedAt, &p.Progress); err != nil {
			rows.Close()
			return core.Snapshot{}, false, fmt.Errorf("failed to scan achievement: %w", err)
		}
		if unlockedAt.Valid {
			ts := unlockedAt.Time
			p.UnlockedAt = &ts
		}
		snap.Achievements[id] = p
	}
	rows.Close()

	rows, err = s.db.QueryxContext(ctx, s.db.Rebind(
		"SELECT collection_id, completed, reward_pending FROM save_collections WHERE save_id = ?"), save)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read collections: %w", err)
	}
	for rows.Next() {
		var id string
		var p core.CollectionProgress
		if err := rows.Scan(&id, &p.Completed, &p.RewardPending); err != nil {
			rows.Close()
			return core.Snapshot{}, false, fmt.Errorf("failed to scan collection: %w", err)
		}
		p.Items = make(map[string]core.ItemProgress)
		snap.Collections[id] = p
	}
	rows.Close()

	rows, err = s.db.QueryxContext(ctx, s.db.Rebind(
		"SELECT collection_id, item_id, collected, collected_at FROM save_items WHERE save_id = ?"), save)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read items: %w", err)
	}
	for rows.Next() {
		var colID, itemID string
		var ip core.ItemProgress
		var collectedAt sql.NullTime
		if err := rows.Scan(&colID, &itemID, &ip.Collected, &collectedAt); err != nil {
			rows.Close()
			return core.Snapshot{}, false, fmt.Errorf("failed to scan item: %w", err)
		}
		if collectedAt.Valid {
			ts := collectedAt.Time
			ip.CollectedAt = &ts
		}
		col, ok := snap.Collections[colID]
		if !ok {
			col = core.CollectionProgress{Items: make(map[string]core.ItemProgress)}
		}
		col.Items[itemID] = ip
		snap.Collections[colID] = col
	}
	rows.Close()

	return snap, true, nil
}
