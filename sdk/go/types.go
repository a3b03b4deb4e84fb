package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AchievementView mirrors the public JSON surface of one achievement row.
type AchievementView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Rarity      string     `json:"rarity"`
	Unlocked    bool       `json:"unlocked"`
	Claimed     bool       `json:"claimed"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	Progress    int64      `json:"progress"`
	Target      int64      `json:"target"`
}

// ItemView is one collectible row inside a CollectionView.
type ItemView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rarity    string `json:"rarity"`
	Collected bool   `json:"collected"`
}

// CollectionView mirrors the public JSON surface of one collection.
type CollectionView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Completed         bool       `json:"completed"`
	CompletionPercent int        `json:"completion_percentage"`
	Items             []ItemView `json:"items"`
}

// SaveState is the full per-save summary.
type SaveState struct {
	Save         string            `json:"save"`
	Score        int64             `json:"score"`
	Achievements []AchievementView `json:"achievements"`
	Collections  []CollectionView  `json:"collections"`
}

// LeaderboardEntry is one row of the score board.
type LeaderboardEntry struct {
	Save  string `json:"save"`
	Score int64  `json:"score"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptySaveID is returned when the save id is empty.
var ErrEmptySaveID = errors.New("save id is required")
