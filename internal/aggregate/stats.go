package aggregate

import (
	"time"

	"github.com/linnemanlabs/tcscope/internal/indicator"
)

// falsePositiveTag is compared after ASCII lowercasing.
const falsePositiveTag = "false positive"

// Statistics summarizes a merged indicator set. Nil averages mean undefined.
type Statistics struct {
	TotalCount     int        `json:"total_count"`
	UniqueOwners   int        `json:"unique_owners"`
	ActiveCount    int        `json:"active_count"`
	FalsePositives int        `json:"false_positives"`
	AvgRating      *float64   `json:"avg_rating"`
	AvgConfidence  *float64   `json:"avg_confidence"`
	EarliestAdded  *time.Time `json:"earliest_added,omitempty"`
	LatestModified *time.Time `json:"latest_modified,omitempty"`
}

// ComputeStatistics is a pure function over the indicator set. An empty input
// returns the zero Statistics.
func ComputeStatistics(in []indicator.Indicator) Statistics {
	if len(in) == 0 {
		return Statistics{}
	}

	var (
		st          = Statistics{TotalCount: len(in)}
		owners      = make(map[string]struct{}, len(in))
		ratingSum   float64
		ratingCount int
		confSum     int
		earliest    = in[0].DateAdded
		latest      = in[0].LastModified
	)

	for i := range in {
		ind := &in[i]

		owners[ind.OwnerName] = struct{}{}

		if ind.Active {
			st.ActiveCount++
		}
		if IsFalsePositive(ind) {
			st.FalsePositives++
		}

		// 0.0 means unrated and stays out of both sum and count
		if ind.Rating > 0 {
			ratingSum += ind.Rating
			ratingCount++
		}
		confSum += ind.Confidence

		if ind.DateAdded.Before(earliest) {
			earliest = ind.DateAdded
		}
		if ind.LastModified.After(latest) {
			latest = ind.LastModified
		}
	}

	st.UniqueOwners = len(owners)
	if ratingCount > 0 {
		avg := ratingSum / float64(ratingCount)
		st.AvgRating = &avg
	}
	avgConf := float64(confSum) / float64(len(in))
	st.AvgConfidence = &avgConf
	st.EarliestAdded = &earliest
	st.LatestModified = &latest

	return st
}

// IsFalsePositive reports whether the indicator is flagged as a false positive
// or carries a "False Positive" tag.
func IsFalsePositive(ind *indicator.Indicator) bool {
	if ind.FalsePositiveFlag {
		return true
	}
	for _, t := range ind.Tags {
		if NormalizeSummary(t.Name) == falsePositiveTag {
			return true
		}
	}
	return false
}
