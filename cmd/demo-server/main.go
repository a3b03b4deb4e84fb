package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	mem "achievekit/adapters/memory"
	ws "achievekit/adapters/websocket"
	"achievekit/core"
	"achievekit/engine"
	"achievekit/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))
	logger := slog.Default()

	catalog, err := core.NewCatalog(
		[]core.AchievementDef{
			{
				ID:           "first_level",
				Name:         "First Steps",
				Description:  "Complete your first level",
				Category:     core.CategoryProgression,
				Rarity:       core.RarityCommon,
				Requirements: []core.Requirement{{Key: "levels_completed", Threshold: 1}},
				Reward:       core.Manifest{{Kind: core.RewardCoins, Amount: 100}},
			},
			{
				ID:           "veteran",
				Name:         "Veteran",
				Description:  "Win five battles",
				Category:     core.CategorySkill,
				Rarity:       core.RarityRare,
				Requirements: []core.Requirement{{Key: "battles_won", Threshold: 5}},
				Reward:       core.Manifest{{Kind: core.RewardGems, Amount: 25}},
			},
		},
		[]core.CollectionDef{
			{
				ID:   "gems",
				Name: "Gem Collection",
				Items: []core.CollectionItemDef{
					{ID: "ruby", Name: "Ruby", Rarity: core.RarityRare},
					{ID: "opal", Name: "Opal", Rarity: core.RarityEpic},
				},
				Reward: core.Manifest{{Kind: core.RewardItem, ItemID: "gem_crown", Amount: 1}},
			},
		},
	)
	if err != nil {
		slog.Error("bad demo catalog", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	granter := engine.GranterFunc(func(_ context.Context, save core.SaveID, source string, manifest core.Manifest) error {
		logger.Info("granting reward", "save", save, "source", source, "rewards", len(manifest))
		return nil
	})
	eng := engine.New(catalog, store, bus, granter, logger)
	hub := realtime.NewHub()

	// Forward achievement events to WebSocket clients
	for _, et := range []core.EventType{
		core.EventCounterUpdated,
		core.EventAchievementUnlocked,
		core.EventAchievementClaimed,
		core.EventItemCollected,
		core.EventCollectionCompleted,
	} {
		bus.Subscribe(et, func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	}

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/saves/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /saves/{id}/progress?key=battles_won&delta=1,
		// POST /saves/{id}/achievements/{aid}/claim,
		// POST /saves/{id}/collections/{cid}/items/{iid}/collect, GET /saves/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		save, err := core.NormalizeSaveID(core.SaveID(parts[1]))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 3 && parts[2] == "progress" {
				key := core.CounterKey(r.URL.Query().Get("key"))
				delta, _ := strconv.ParseInt(r.URL.Query().Get("delta"), 10, 64)
				value := eng.ReportProgress(ctx, save, key, delta)
				writeJSON(w, map[string]any{"key": key, "value": value})
				return
			}
			if len(parts) >= 5 && parts[2] == "achievements" && parts[4] == "claim" {
				eng.ClaimAchievement(ctx, save, parts[3])
				writeJSON(w, map[string]any{"ok": true})
				return
			}
			if len(parts) >= 7 && parts[2] == "collections" && parts[4] == "items" && parts[6] == "collect" {
				eng.CollectItem(ctx, save, parts[3], parts[5])
				writeJSON(w, map[string]any{"ok": true})
				return
			}
		case http.MethodGet:
			writeJSON(w, map[string]any{
				"save":         save,
				"score":        eng.Score(ctx, save),
				"achievements": eng.Achievements(ctx, save),
				"collections":  eng.Collections(ctx, save),
			})
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
