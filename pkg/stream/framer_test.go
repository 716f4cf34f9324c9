package stream

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name     string
		buffered int
		want     []int
	}{
		{"empty", 0, nil},
		{"tiny buffer", 10, seq(1, 10)},
		{"estimate only fits", 45, seq(1, 45)},
		{"estimate and small commons", 100, append(seq(1, 47), 60, 80, 100)},
		{"estimate between commons", 250, append(seq(1, 41), 50, 60, 80, 100, 120, 150, 180, 200, 250)},
		{"all commons", 1000, append(seq(1, 39), 60, 80, 100, 120, 150, 180, 200, 250, 300, 350, 400)},
		{"estimate clamped to max", 100000, append(seq(1, 39), 60, 80, 100, 120, 150, 180, 200, 250, 300, 350, 400)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Candidates(tc.buffered)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Candidates(%d) mismatch (-want +got):\n%s", tc.buffered, diff)
			}
		})
	}
}

func TestCandidates_Invariants(t *testing.T) {
	for _, buffered := range []int{1, 7, 39, 40, 41, 59, 60, 199, 200, 201, 399, 400, 401, 2000, 4000, 4001, 1 << 20} {
		got := Candidates(buffered)
		if len(got) > MaxCandidates {
			t.Errorf("Candidates(%d): %d entries, want <= %d", buffered, len(got), MaxCandidates)
		}
		if !slices.IsSorted(got) {
			t.Errorf("Candidates(%d) not sorted: %v", buffered, got)
		}
		if len(slices.Compact(slices.Clone(got))) != len(got) {
			t.Errorf("Candidates(%d) has duplicates: %v", buffered, got)
		}
		if len(got) > 0 && got[len(got)-1] > buffered {
			t.Errorf("Candidates(%d) includes %d which does not fit", buffered, got[len(got)-1])
		}
	}
}

func TestCandidates_Deterministic(t *testing.T) {
	for _, buffered := range []int{33, 321, 4096} {
		if diff := cmp.Diff(Candidates(buffered), Candidates(buffered)); diff != "" {
			t.Errorf("Candidates(%d) differs between calls:\n%s", buffered, diff)
		}
	}
}
