// Package feedapi serves the read-only HTTP surface over the story store:
// a diversified, paginated feed, breaking-news and single-story lookups,
// and an admin-gated health/metrics endpoint (§4.7).
package feedapi

import "newsfeed/internal/domain/entity"

// verificationWeight maps a story's corroborating-source count to the
// tie-breaking weight used during diversification: better-corroborated
// stories are preferred when multiple candidates are simultaneously
// eligible for the same output slot.
func verificationWeight(sourceCount int) int {
	switch {
	case sourceCount <= 1:
		return 1
	case sourceCount <= 3:
		return 2
	default:
		return 3
	}
}

// Diversify reorders a rank-sorted candidate list so the output never
// contains three consecutive stories from the same primary source, moving
// the minimum number of candidates out of place to do so. It is a pure,
// deterministic function over its input: the same candidate list always
// produces the same output order.
//
// candidates must already be sorted by the Feed API's ranking rule
// (repository.SortByRecency); Diversify only reorders for source spread, it
// never re-ranks by recency or status itself. The full reordered list is
// returned — callers apply limit/offset afterward.
func Diversify(candidates []entity.Story) []entity.Story {
	output := make([]entity.Story, 0, len(candidates))
	deferred := make([]entity.Story, 0)
	sourceCounts := make(map[string]int)

	eligible := func(s entity.Story) bool {
		n := len(output)
		if n < 2 {
			return true
		}
		return !(output[n-1].PrimarySource == s.PrimarySource && output[n-2].PrimarySource == s.PrimarySource)
	}

	accept := func(s entity.Story) {
		output = append(output, s)
		sourceCounts[s.PrimarySource]++
	}

	// drainDeferred repeatedly picks the best eligible deferred candidate
	// (fewest existing output entries for its source, then highest
	// verification weight, then earliest original position) until none of
	// the remaining deferred items are eligible.
	drainDeferred := func() {
		for {
			pick := -1
			for i, d := range deferred {
				if !eligible(d) {
					continue
				}
				if pick == -1 || betterPick(d, deferred[pick], sourceCounts) {
					pick = i
				}
			}
			if pick == -1 {
				return
			}
			picked := deferred[pick]
			deferred = append(deferred[:pick], deferred[pick+1:]...)
			accept(picked)
		}
	}

	for _, c := range candidates {
		if eligible(c) {
			accept(c)
			drainDeferred()
		} else {
			deferred = append(deferred, c)
		}
	}

	// One full pass is complete; whatever is still deferred could not be
	// placed without a third consecutive same-source run anywhere in the
	// remaining slots, so it's appended in original relative order.
	output = append(output, deferred...)
	return output
}

// betterPick reports whether a is a better next pick than b among
// simultaneously-eligible deferred candidates.
func betterPick(a, b entity.Story, sourceCounts map[string]int) bool {
	ac, bc := sourceCounts[a.PrimarySource], sourceCounts[b.PrimarySource]
	if ac != bc {
		return ac < bc
	}
	aw, bw := verificationWeight(a.SourceCount), verificationWeight(b.SourceCount)
	if aw != bw {
		return aw > bw
	}
	return false
}
