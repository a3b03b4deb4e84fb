// Package jsonfile persists all saves to a single JSON document on disk.
// Suitable for standalone games and small deployments.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"achievekit/core"
)

// Store writes the whole state file atomically via tmp+rename. Loading is
// tolerant: a corrupt per-save or per-entry section is dropped and logged
// rather than failing the whole load, and an unreadable document starts the
// store empty.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
	// in-memory cache; the file is the durable copy
	data map[core.SaveID]core.Snapshot
}

func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger, data: map[core.SaveID]core.Snapshot{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			// unreadable document: fresh state beats a blocked startup
			logger.Error("state file unreadable, starting empty", "path", path, "error", err)
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for save, section := range raw {
		snap, err := decodeSnapshot(section, s.logger, save)
		if err != nil {
			s.logger.Warn("dropping corrupt save section", "save", save, "error", err)
			continue
		}
		s.data[core.SaveID(save)] = snap
	}
	return nil
}

// rawSnapshot mirrors core.Snapshot with raw entries so one corrupt entry
// can be isolated instead of poisoning the document.
type rawSnapshot struct {
	Counters     map[string]json.RawMessage `json:"counters"`
	Achievements map[string]json.RawMessage `json:"achievements"`
	Collections  map[string]json.RawMessage `json:"collections"`
}

func decodeSnapshot(b []byte, logger *slog.Logger, save string) (core.Snapshot, error) {
	var raw rawSnapshot
	if err := json.Unmarshal(b, &raw); err != nil {
		return core.Snapshot{}, err
	}
	snap := core.Snapshot{
		Counters:     make(map[core.CounterKey]int64, len(raw.Counters)),
		Achievements: make(map[string]core.AchievementProgress, len(raw.Achievements)),
		Collections:  make(map[string]core.CollectionProgress, len(raw.Collections)),
	}
	for k, v := range raw.Counters {
		var n int64
		if err := json.Unmarshal(v, &n); err != nil {
			logger.Warn("dropping corrupt counter", "save", save, "counter", k, "error", err)
			continue
		}
		snap.Counters[core.CounterKey(k)] = n
	}
	for id, v := range raw.Achievements {
		var p core.AchievementProgress
		if err := json.Unmarshal(v, &p); err != nil {
			logger.Warn("dropping corrupt achievement entry", "save", save, "achievement", id, "error", err)
			continue
		}
		snap.Achievements[id] = p
	}
	for id, v := range raw.Collections {
		var p core.CollectionProgress
		if err := json.Unmarshal(v, &p); err != nil {
			logger.Warn("dropping corrupt collection entry", "save", save, "collection", id, "error", err)
			continue
		}
		snap.Collections[id] = p
	}
	return snap, nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.Snapshot, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Save(_ context.Context, save core.SaveID, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[save] = snap.Clone()
	return s.persist()
}

func (s *Store) Load(_ context.Context, save core.SaveID) (core.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[save]
	if !ok {
		return core.Snapshot{}, false, nil
	}
	return snap.Clone(), true, nil
}
