package search

import (
	"context"
	"time"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Entry is a finished search as kept in history. Only the summary of the
// outcome is stored; indicator payloads are not persisted.
type Entry struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	QueryType     string    `json:"query_type,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	TotalRecords  int       `json:"total_records"`
	Groups        int       `json:"groups"`
	FailedChunks  int       `json:"failed_chunks"`
	DroppedChunks int       `json:"dropped_chunks"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	Duration      float64   `json:"duration_seconds"`
}

// NewEntry summarizes snap for the history store.
func NewEntry(snap *Snapshot) *Entry {
	return &Entry{
		ID:            snap.ID,
		Query:         snap.Query,
		QueryType:     snap.QueryType,
		Outcome:       snap.Outcome,
		Status:        snap.Status,
		Error:         snap.Error,
		TotalRecords:  snap.TotalRecords,
		Groups:        len(snap.Groups),
		FailedChunks:  snap.FailedChunks,
		DroppedChunks: snap.DroppedChunks,
		StartedAt:     snap.StartedAt,
		CompletedAt:   snap.CompletedAt,
		Duration:      snap.Duration,
	}
}

// HistoryStore is the persistence interface for completed searches.
type HistoryStore interface {
	Put(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, bool, error)
	// List returns up to limit entries, most recently started first.
	List(ctx context.Context, limit int) ([]*Entry, error)
}

// ClampLimit bounds a caller-supplied history limit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultHistoryLimit
	case n > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return n
	}
}
