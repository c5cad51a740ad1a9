// Package memstore provides an in-memory implementation of search.HistoryStore.
package memstore

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/linnemanlabs/tcscope/internal/search"
)

// DefaultCapacity is the number of entries kept when New is given no size.
const DefaultCapacity = 500

// Store holds search history in memory, evicting the oldest entries once
// capacity is reached. Suitable for dev/testing.
type Store struct {
	entries *lru.Cache // search ID -> *search.Entry
}

// New initializes a Store holding at most capacity entries.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only fails on a non-positive size
	c, _ := lru.New(capacity)
	return &Store{entries: c}
}

// Put stores a copy of the entry.
func (s *Store) Put(_ context.Context, e *search.Entry) error {
	cp := *e
	s.entries.Add(e.ID, &cp)
	return nil
}

// Get retrieves an entry by search ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*search.Entry, bool, error) {
	v, ok := s.entries.Peek(id)
	if !ok {
		return nil, false, nil
	}
	cp := *v.(*search.Entry)
	return &cp, true, nil
}

// List returns up to limit entries, most recently started first.
func (s *Store) List(_ context.Context, limit int) ([]*search.Entry, error) {
	keys := s.entries.Keys()
	out := make([]*search.Entry, 0, len(keys))
	for _, k := range keys {
		v, ok := s.entries.Peek(k)
		if !ok {
			continue
		}
		cp := *v.(*search.Entry)
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
