// Package aggregate groups indicators by normalized summary and computes
// statistics over a merged search result set.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/linnemanlabs/tcscope/internal/indicator"
)

// TypePolicy selects how a group's representative type is chosen when its
// members disagree.
type TypePolicy string

const (
	// TypeFirst takes the type of the first member encountered.
	TypeFirst TypePolicy = "first"

	// TypeMajority takes the most common member type, ties going to the type seen first.
	TypeMajority TypePolicy = "majority"

	// TypeFlag takes the first member's type and marks the group as conflicted.
	TypeFlag TypePolicy = "flag"
)

// ParseTypePolicy converts a config string into a TypePolicy.
func ParseTypePolicy(s string) (TypePolicy, error) {
	switch p := TypePolicy(s); p {
	case TypeFirst, TypeMajority, TypeFlag:
		return p, nil
	case "":
		return TypeFirst, nil
	default:
		return "", fmt.Errorf("unknown type policy %q (want first, majority or flag)", s)
	}
}

// Group is a set of indicators sharing a case-insensitive summary.
// Conflict is set when members carry more than one type.
type Group struct {
	Summary  string                `json:"summary"`
	Type     string                `json:"type"`
	Conflict bool                  `json:"conflict,omitempty"`
	Members  []indicator.Indicator `json:"members"`
}

// MaxRating returns the highest member rating.
func (g *Group) MaxRating() float64 {
	var top float64
	for i := range g.Members {
		if g.Members[i].Rating > top {
			top = g.Members[i].Rating
		}
	}
	return top
}

// NormalizeSummary returns the grouping key for a summary: ASCII letters are
// lowercased, every other byte is kept as is.
func NormalizeSummary(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if b == nil {
				b = []byte(s)
			}
			b[i] = c + ('a' - 'A')
		}
	}
	if b == nil {
		return s
	}
	return string(b)
}

// GroupIndicators partitions indicators by normalized summary. Members keep
// input order, the display summary comes from the first member, and groups
// are sorted by their normalized summary.
func GroupIndicators(in []indicator.Indicator, policy TypePolicy) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, ind := range in {
		key := NormalizeSummary(ind.Summary)
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, Group{Summary: ind.Summary, Type: ind.Type})
		}
		groups[idx].Members = append(groups[idx].Members, ind)
	}

	for i := range groups {
		resolveType(&groups[i], policy)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return NormalizeSummary(groups[i].Summary) < NormalizeSummary(groups[j].Summary)
	})
	return groups
}

func resolveType(g *Group, policy TypePolicy) {
	counts := make(map[string]int)
	var order []string
	for i := range g.Members {
		t := g.Members[i].Type
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}
	g.Conflict = len(order) > 1

	if policy != TypeMajority || !g.Conflict {
		return
	}
	best := order[0]
	for _, t := range order[1:] {
		if counts[t] > counts[best] {
			best = t
		}
	}
	g.Type = best
}
