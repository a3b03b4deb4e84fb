package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"achievekit/core"
)

// A skip list keyed by (score desc, save asc) for O(log n) updates.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
}

type SkipList struct {
	mu     sync.RWMutex
	head   *node
	lvl    int
	bySave map[core.SaveID]*node
	rng    *rand.Rand
}

func NewSkipList() *SkipList {
	// crypto/rand seeds the PCG so level choices differ between runs
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:   &node{},
		lvl:    1,
		bySave: map[core.SaveID]*node{},
		rng:    rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.Score == b.Score {
		return a.Save < b.Save
	}
	return a.Score > b.Score // higher score first
}

// Update inserts or moves the save to its new score.
func (s *SkipList) Update(save core.SaveID, score int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.bySave[save]; ok {
		s.removeLocked(save, old.e)
	}
	e := Entry{Save: save, Score: score}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.bySave[save] = n
}

func (s *SkipList) removeLocked(save core.SaveID, e Entry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.Save != save {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.bySave, save)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(save core.SaveID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.bySave[save]; ok {
		s.removeLocked(save, n.e)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, n)
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out
}

func (s *SkipList) Get(save core.SaveID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.bySave[save]; ok {
		return n.e, true
	}
	return Entry{}, false
}

// Rank returns the 1-based position of a save, 0 if absent.
func (s *SkipList) Rank(save core.SaveID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.bySave[save]; !ok {
		return 0
	}
	rank := 0
	for cur := s.head.next[0]; cur != nil; cur = cur.next[0] {
		rank++
		if cur.e.Save == save {
			return rank
		}
	}
	return 0
}

var _ Board = (*SkipList)(nil)
