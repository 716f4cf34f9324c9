package stream

import (
	"maps"
	"slices"
)

// Blind-search tuning. These values decide which boundary wins on ambiguous
// input and must not change.
const (
	// MaxCandidates bounds the number of trial lengths per search.
	MaxCandidates = 50

	// MaxCandidateLength is the longest sequential trial length.
	MaxCandidateLength = 4000

	// SilenceThreshold is the largest 16-bit magnitude a decode may contain
	// and still be rejected as a misaligned, silent candidate.
	SilenceThreshold = 100

	minEstimate = 40
	maxEstimate = 400
)

// commonPacketSizes are packet lengths typical of 20 ms frames across the
// usual bitrate range.
var commonPacketSizes = []int{60, 80, 100, 120, 150, 180, 200, 250, 300, 350, 400}

// Candidates returns the trial packet lengths for a buffer holding buffered
// bytes, in the ascending order they are tried. The set is built from, in
// priority order: an estimate of buffered/5 clamped to [40, 400]; the common
// packet sizes; then every length from 1 up to min(4000, buffered) until the
// set holds [MaxCandidates] entries. Only lengths that fit in the buffer are
// included.
func Candidates(buffered int) []int {
	set := make(map[int]struct{}, MaxCandidates)

	if est := min(max(buffered/5, minEstimate), maxEstimate); est <= buffered {
		set[est] = struct{}{}
	}
	for _, size := range commonPacketSizes {
		if size <= buffered {
			set[size] = struct{}{}
		}
	}
	for size := 1; size <= min(MaxCandidateLength, buffered); size++ {
		set[size] = struct{}{}
		if len(set) >= MaxCandidates {
			break
		}
	}

	return slices.Sorted(maps.Keys(set))
}
