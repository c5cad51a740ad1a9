package aggregate

import (
	"reflect"
	"testing"
	"time"

	"github.com/linnemanlabs/tcscope/internal/indicator"
)

func TestComputeStatistics_Empty(t *testing.T) {
	t.Parallel()

	st := ComputeStatistics(nil)
	if !reflect.DeepEqual(st, Statistics{}) {
		t.Errorf("ComputeStatistics(nil) = %+v, want zero value", st)
	}
	if st.AvgRating != nil || st.AvgConfidence != nil {
		t.Error("expected nil averages for empty input")
	}
}

func TestComputeStatistics_AvgRatingExcludesUnrated(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{{Rating: 0.0}, {Rating: 4.0}, {Rating: 2.0}}
	st := ComputeStatistics(in)
	if st.AvgRating == nil {
		t.Fatal("AvgRating = nil, want 3.0")
	}
	if *st.AvgRating != 3.0 {
		t.Errorf("AvgRating = %v, want 3.0", *st.AvgRating)
	}
}

func TestComputeStatistics_AllUnrated(t *testing.T) {
	t.Parallel()

	st := ComputeStatistics([]indicator.Indicator{{Rating: 0}, {Rating: 0, Confidence: 10}})
	if st.AvgRating != nil {
		t.Errorf("AvgRating = %v, want nil", *st.AvgRating)
	}
	if st.AvgConfidence == nil || *st.AvgConfidence != 5 {
		t.Errorf("AvgConfidence = %v, want 5", st.AvgConfidence)
	}
}

func TestComputeStatistics_AvgConfidenceIncludesAll(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{{Confidence: 80}, {Confidence: 60}, {Confidence: 40}, {Confidence: 50}}
	st := ComputeStatistics(in)
	if st.AvgConfidence == nil {
		t.Fatal("AvgConfidence = nil")
	}
	if *st.AvgConfidence != 57.5 {
		t.Errorf("AvgConfidence = %v, want 57.5", *st.AvgConfidence)
	}
}

func TestComputeStatistics_FalsePositives(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{
		// flag and tag: counted once
		{FalsePositiveFlag: true, Tags: []indicator.Tag{{Name: "False Positive"}}},
		// flag only
		{FalsePositiveFlag: true},
		// tag only, different case
		{Tags: []indicator.Tag{{Name: "c2"}, {Name: "FALSE POSITIVE"}}},
		// neither
		{Tags: []indicator.Tag{{Name: "False Positives"}}},
		{},
	}

	st := ComputeStatistics(in)
	if st.FalsePositives != 3 {
		t.Errorf("FalsePositives = %d, want 3", st.FalsePositives)
	}
}

func TestComputeStatistics_Counts(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []indicator.Indicator{
		{OwnerName: "A", Active: true, DateAdded: t0.Add(48 * time.Hour), LastModified: t0.Add(72 * time.Hour)},
		{OwnerName: "A", Active: false, DateAdded: t0, LastModified: t0.Add(24 * time.Hour)},
		{OwnerName: "a", Active: true, DateAdded: t0.Add(24 * time.Hour), LastModified: t0.Add(96 * time.Hour)},
	}

	st := ComputeStatistics(in)
	if st.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", st.TotalCount)
	}
	// owner names are compared exactly
	if st.UniqueOwners != 2 {
		t.Errorf("UniqueOwners = %d, want 2", st.UniqueOwners)
	}
	if st.ActiveCount != 2 {
		t.Errorf("ActiveCount = %d, want 2", st.ActiveCount)
	}
	if st.EarliestAdded == nil || !st.EarliestAdded.Equal(t0) {
		t.Errorf("EarliestAdded = %v, want %v", st.EarliestAdded, t0)
	}
	if st.LatestModified == nil || !st.LatestModified.Equal(t0.Add(96*time.Hour)) {
		t.Errorf("LatestModified = %v, want %v", st.LatestModified, t0.Add(96*time.Hour))
	}
}

func TestComputeStatistics_Idempotent(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{
		{OwnerName: "A", Rating: 3.3, Confidence: 17, Active: true},
		{OwnerName: "B", Rating: 1.1, Confidence: 99},
		{OwnerName: "C", Rating: 0, Confidence: 42, FalsePositiveFlag: true},
	}

	a := ComputeStatistics(in)
	b := ComputeStatistics(in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ:\n%+v\n%+v", a, b)
	}
	if *a.AvgRating != *b.AvgRating || *a.AvgConfidence != *b.AvgConfidence {
		t.Error("averages not bit-identical")
	}
}
