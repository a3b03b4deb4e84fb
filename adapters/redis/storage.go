// Package redis implements a SnapshotStore on Redis.
//
// Data structure per save:
//   - save:{id}:counters     -> hash of counter key -> int64
//   - save:{id}:achievements -> hash of achievement id -> JSON progress
//   - save:{id}:collections  -> hash of collection id -> JSON progress
//   - save:{id}:meta         -> last-write timestamp (existence marker)
//
// Keeping entries as individual hash fields isolates per-entry corruption:
// an undecodable field is skipped on load instead of failing the save.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"achievekit/core"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password,omitempty"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns sensible defaults for Redis configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.SnapshotStore backed by Redis.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Redis-backed store and verifies connectivity.
func New(config Config, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client (useful for testing).
func NewWithClient(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// Close closes the Redis connection.
func (s *Store) Close() error { return s.client.Close() }

func countersKey(save core.SaveID) string { return fmt.Sprintf("save:%s:counters", save) }
func achievementsKey(save core.SaveID) string {
	return fmt.Sprintf("save:%s:achievements", save)
}
func collectionsKey(save core.SaveID) string { return fmt.Sprintf("save:%s:collections", save) }
func metaKey(save core.SaveID) string        { return fmt.Sprintf("save:%s:meta", save) }

// Save replaces the stored snapshot in one transaction-pipelined write.
func (s *Store) Save(ctx context.Context, save core.SaveID, snap core.Snapshot) error {
	counters := make(map[string]string, len(snap.Counters))
	for k, v := range snap.Counters {
		counters[string(k)] = strconv.FormatInt(v, 10)
	}
	achievements := make(map[string]string, len(snap.Achievements))
	for id, p := range snap.Achievements {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal achievement %s: %w", id, err)
		}
		achievements[id] = string(b)
	}
	collections := make(map[string]string, len(snap.Collections))
	for id, p := range snap.Collections {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal collection %s: %w", id, err)
		}
		collections[id] = string(b)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, countersKey(save), achievementsKey(save), collectionsKey(save))
	if len(counters) > 0 {
		pipe.HSet(ctx, countersKey(save), counters)
	}
	if len(achievements) > 0 {
		pipe.HSet(ctx, achievementsKey(save), achievements)
	}
	if len(collections) > 0 {
		pipe.HSet(ctx, collectionsKey(save), collections)
	}
	pipe.Set(ctx, metaKey(save), time.Now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load rebuilds a snapshot from the per-save hashes. Undecodable fields are
// dropped and logged.
func (s *Store) Load(ctx context.Context, save core.SaveID) (core.Snapshot, bool, error) {
	exists, err := s.client.Exists(ctx, metaKey(save)).Result()
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to probe snapshot: %w", err)
	}
	if exists == 0 {
		return core.Snapshot{}, false, nil
	}

	snap := core.Snapshot{
		Counters:     make(map[core.CounterKey]int64),
		Achievements: make(map[string]core.AchievementProgress),
		Collections:  make(map[string]core.CollectionProgress),
	}

	counters, err := s.client.HGetAll(ctx, countersKey(save)).Result()
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read counters: %w", err)
	}
	for k, v := range counters {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.logger.Warn("dropping corrupt counter field", "save", save, "counter", k, "error", err)
			continue
		}
		snap.Counters[core.CounterKey(k)] = n
	}

	achievements, err := s.client.HGetAll(ctx, achievementsKey(save)).Result()
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read achievements: %w", err)
	}
	for id, v := range achievements {
		var p core.AchievementProgress
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			s.logger.Warn("dropping corrupt achievement field", "save", save, "achievement", id, "error", err)
			continue
		}
		snap.Achievements[id] = p
	}

	collections, err := s.client.HGetAll(ctx, collectionsKey(save)).Result()
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read collections: %w", err)
	}
	for id, v := range collections {
		var p core.CollectionProgress
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			s.logger.Warn("dropping corrupt collection field", "save", save, "collection", id, "error", err)
			continue
		}
		snap.Collections[id] = p
	}

	return snap, true, nil
}
