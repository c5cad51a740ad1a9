package search

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
)

// Outcome tracks where a search is in its lifecycle.
type Outcome string

const (
	// OutcomeSearching means the search is still running
	OutcomeSearching Outcome = "searching"

	// OutcomeNoResults means phase 1 matched nothing
	OutcomeNoResults Outcome = "no_results"

	// OutcomeSuccess means results were fetched and aggregated
	OutcomeSuccess Outcome = "success"

	// OutcomeFailed means phase 1 failed and results were cleared
	OutcomeFailed Outcome = "failed"
)

// Snapshot is the complete, immutable outcome of one search as seen by API
// clients. A new search replaces it wholesale.
type Snapshot struct {
	ID            string               `json:"id"`
	Generation    uint64               `json:"generation"`
	Query         string               `json:"query"`
	QueryType     string               `json:"query_type,omitempty"`
	Outcome       Outcome              `json:"outcome"`
	Status        string               `json:"status"`
	Error         string               `json:"error,omitempty"`
	Groups        []aggregate.Group    `json:"groups"`
	Stats         aggregate.Statistics `json:"stats"`
	TotalRecords  int                  `json:"total_records"`
	Chunks        int                  `json:"chunks"`
	FailedChunks  int                  `json:"failed_chunks"`
	DroppedChunks int                  `json:"dropped_chunks"`
	StartedAt     time.Time            `json:"started_at"`
	CompletedAt   time.Time            `json:"completed_at,omitzero"`
	Duration      float64              `json:"duration_seconds"`
	Brief         string               `json:"brief,omitempty"`
}

// Hits returns the groups holding at least one indicator rated minRating or
// higher, ordered as in the snapshot.
func (s *Snapshot) Hits(minRating float64) []aggregate.Group {
	var out []aggregate.Group
	for _, g := range s.Groups {
		if g.MaxRating() >= minRating {
			out = append(out, g)
		}
	}
	return out
}

func searchingStatus(q string) string { return fmt.Sprintf("Searching for '%s'...", q) }

func noResultsStatus(q string) string { return fmt.Sprintf("No results found for '%s'.", q) }

func successStatus(records, groups int) string {
	return fmt.Sprintf("Found %d indicators in %d groups.", records, groups)
}

func failedStatus(err error) string { return fmt.Sprintf("Search failed: %v", err) }
