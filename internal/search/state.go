package search

import (
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
)

// State holds the current snapshot. Publishing swaps the pointer; readers
// never observe a partially built snapshot.
type State struct {
	cur atomic.Pointer[Snapshot]
	gen atomic.Uint64
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// Current returns the most recently published snapshot.
func (s *State) Current() (*Snapshot, bool) {
	snap := s.cur.Load()
	return snap, snap != nil
}

// Publish stamps snap with the next generation and makes it current. snap must
// not be modified afterwards.
func (s *State) Publish(snap *Snapshot) *Snapshot {
	snap.Generation = s.gen.Add(1)
	s.cur.Store(snap)
	return snap
}

// begin publishes a searching snapshot that keeps the previous groups and
// statistics visible while the new search runs.
func (s *State) begin(id, query string) *Snapshot {
	next := &Snapshot{
		ID:        id,
		Query:     query,
		Outcome:   OutcomeSearching,
		Status:    searchingStatus(query),
		Groups:    []aggregate.Group{},
		StartedAt: time.Now(),
	}
	if prev, ok := s.Current(); ok {
		next.Groups = prev.Groups
		next.Stats = prev.Stats
		next.TotalRecords = prev.TotalRecords
	}
	return s.Publish(next)
}
