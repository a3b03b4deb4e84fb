// Package leaderboard ranks save slots by achievement score.
package leaderboard

import (
	"sync"

	"achievekit/core"
)

// Entry represents a score entry.
type Entry struct {
	Save  core.SaveID `json:"save"`
	Score int64       `json:"score"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(save core.SaveID, score int64)
	Remove(save core.SaveID)
	TopN(n int) []Entry
	Get(save core.SaveID) (Entry, bool)
}

// Tracker keeps a board current from unlock events. Score is the sum of
// rarity points over unlocked achievements, so it only ever grows.
type Tracker struct {
	mu     sync.Mutex
	board  Board
	scores map[core.SaveID]int64
}

func NewTracker(board Board) *Tracker {
	return &Tracker{board: board, scores: map[core.SaveID]int64{}}
}

// OnEvent accumulates rarity points on achievement unlocks.
func (t *Tracker) OnEvent(e core.Event) {
	if e.Type != core.EventAchievementUnlocked {
		return
	}
	t.mu.Lock()
	t.scores[e.Save] += e.Rarity.ScorePoints()
	score := t.scores[e.Save]
	t.mu.Unlock()
	t.board.Update(e.Save, score)
}

// Seed sets a save's score directly, used when loading existing saves.
func (t *Tracker) Seed(save core.SaveID, score int64) {
	t.mu.Lock()
	t.scores[save] = score
	t.mu.Unlock()
	t.board.Update(save, score)
}

func (t *Tracker) Board() Board { return t.board }
