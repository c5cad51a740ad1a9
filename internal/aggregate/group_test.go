package aggregate

import (
	"testing"

	"github.com/linnemanlabs/tcscope/internal/indicator"
)

func ind(id int64, typ, summary string) indicator.Indicator {
	return indicator.Indicator{ID: id, Type: typ, Summary: summary, Active: true}
}

func TestNormalizeSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"bad.com", "bad.com"},
		{"BAD.COM", "bad.com"},
		{"Bad.Com", "bad.com"},
		{"", ""},
		{"10.0.0.1", "10.0.0.1"},
		// non-ASCII letters are not folded
		{"ÄBC", "Äbc"},
	}
	for _, tt := range tests {
		if got := NormalizeSummary(tt.in); got != tt.want {
			t.Errorf("NormalizeSummary(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupIndicators_MixedCaseScenario(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{
		{ID: 1, Type: "Host", Summary: "bad.com", OwnerName: "Org A"},
		{ID: 2, Type: "Host", Summary: "Bad.com", OwnerName: "Org B"},
		{ID: 3, Type: "Host", Summary: "BAD.COM", OwnerName: "Org C"},
	}

	groups := GroupIndicators(in, TypeFirst)
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Summary != "bad.com" {
		t.Errorf("summary = %q, want %q (first member)", g.Summary, "bad.com")
	}
	if len(g.Members) != 3 {
		t.Fatalf("members = %d, want 3", len(g.Members))
	}
	for i, want := range []int64{1, 2, 3} {
		if g.Members[i].ID != want {
			t.Errorf("members[%d].ID = %d, want %d", i, g.Members[i].ID, want)
		}
	}

	st := ComputeStatistics(in)
	if st.UniqueOwners != 3 {
		t.Errorf("UniqueOwners = %d, want 3", st.UniqueOwners)
	}
}

func TestGroupIndicators_PartitionAndOrder(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{
		ind(1, "Host", "zeta.net"),
		ind(2, "Address", "10.0.0.1"),
		ind(3, "Host", "Alpha.org"),
		ind(4, "Host", "ZETA.net"),
		ind(5, "Host", "alpha.ORG"),
		ind(6, "Host", "mid.io"),
	}

	groups := GroupIndicators(in, TypeFirst)

	wantOrder := []string{"10.0.0.1", "Alpha.org", "mid.io", "zeta.net"}
	if len(groups) != len(wantOrder) {
		t.Fatalf("groups = %d, want %d", len(groups), len(wantOrder))
	}
	total := 0
	for i, g := range groups {
		if g.Summary != wantOrder[i] {
			t.Errorf("groups[%d].Summary = %q, want %q", i, g.Summary, wantOrder[i])
		}
		total += len(g.Members)
	}
	if total != len(in) {
		t.Errorf("member total = %d, want %d", total, len(in))
	}

	// member order is input order, not re-sorted
	alpha := groups[1]
	if alpha.Members[0].ID != 3 || alpha.Members[1].ID != 5 {
		t.Errorf("alpha members = [%d %d], want [3 5]", alpha.Members[0].ID, alpha.Members[1].ID)
	}
}

func TestGroupIndicators_DeterministicAcrossInputOrder(t *testing.T) {
	t.Parallel()

	a := []indicator.Indicator{ind(1, "Host", "b.com"), ind(2, "Host", "a.com"), ind(3, "Host", "c.com")}
	b := []indicator.Indicator{ind(3, "Host", "c.com"), ind(1, "Host", "b.com"), ind(2, "Host", "a.com")}

	ga := GroupIndicators(a, TypeFirst)
	gb := GroupIndicators(b, TypeFirst)
	for i := range ga {
		if ga[i].Summary != gb[i].Summary {
			t.Errorf("group %d: %q vs %q", i, ga[i].Summary, gb[i].Summary)
		}
	}
}

func TestGroupIndicators_Empty(t *testing.T) {
	t.Parallel()

	groups := GroupIndicators(nil, TypeFirst)
	if groups == nil {
		t.Fatal("GroupIndicators(nil) = nil, want empty slice")
	}
	if len(groups) != 0 {
		t.Errorf("groups = %d, want 0", len(groups))
	}
}

func TestGroupIndicators_TypePolicy(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{
		ind(1, "URL", "evil.example"),
		ind(2, "Host", "evil.example"),
		ind(3, "Host", "EVIL.example"),
	}

	tests := []struct {
		policy       TypePolicy
		wantType     string
		wantConflict bool
	}{
		{TypeFirst, "URL", true},
		{TypeMajority, "Host", true},
		{TypeFlag, "URL", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			t.Parallel()

			groups := GroupIndicators(in, tt.policy)
			if len(groups) != 1 {
				t.Fatalf("groups = %d, want 1", len(groups))
			}
			if groups[0].Type != tt.wantType {
				t.Errorf("type = %q, want %q", groups[0].Type, tt.wantType)
			}
			if groups[0].Conflict != tt.wantConflict {
				t.Errorf("conflict = %v, want %v", groups[0].Conflict, tt.wantConflict)
			}
		})
	}
}

func TestGroupIndicators_MajorityTieKeepsFirst(t *testing.T) {
	t.Parallel()

	in := []indicator.Indicator{
		ind(1, "URL", "x"),
		ind(2, "Host", "x"),
	}
	groups := GroupIndicators(in, TypeMajority)
	if groups[0].Type != "URL" {
		t.Errorf("type = %q, want URL on tie", groups[0].Type)
	}
}

func TestGroupIndicators_NoConflict(t *testing.T) {
	t.Parallel()

	groups := GroupIndicators([]indicator.Indicator{ind(1, "Host", "x"), ind(2, "Host", "X")}, TypeFlag)
	if groups[0].Conflict {
		t.Error("conflict = true, want false for uniform types")
	}
}

func TestParseTypePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    TypePolicy
		wantErr bool
	}{
		{"first", TypeFirst, false},
		{"majority", TypeMajority, false},
		{"flag", TypeFlag, false},
		{"", TypeFirst, false},
		{"vote", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTypePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTypePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTypePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroup_MaxRating(t *testing.T) {
	t.Parallel()

	g := Group{Members: []indicator.Indicator{{Rating: 1.5}, {Rating: 4}, {Rating: 0}}}
	if got := g.MaxRating(); got != 4 {
		t.Errorf("MaxRating = %v, want 4", got)
	}
}
