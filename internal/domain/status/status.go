// Package status computes the update significance score and the status
// transition table for stories, per §4.5. Both are pure functions of their
// inputs; callers supply "now" explicitly so the package stays deterministic
// and testable without a clock dependency.
package status

import (
	"time"

	"newsfeed/internal/domain/entity"
	"newsfeed/internal/domain/fingerprint"
)

// DefaultBreakingWindow is the interval within which continued source
// additions keep a story in BREAKING status.
const DefaultBreakingWindow = 30 * time.Minute

// Significance computes σ(S, A) ∈ [0, 1] = 0.4*T + 0.4*I + 0.2*N, the score
// controlling whether an attach bumps Story.LastUpdated (and therefore feed
// ordering).
//
//   - T (time factor): 0.2 if now-LastUpdated < 1h, 0.8 if > 6h, linear
//     between.
//   - I (info factor): let sim = similarity(S.Title, A.Title). 0.2 if sim >
//     0.8, 0.9 if sim < 0.5, 0.5 otherwise.
//   - N (novelty factor): 0.8 if current SourceCount == 1, 0.5 if < 5, 0.3
//     otherwise. "Current" source count is the count before the attach
//     being scored.
func Significance(s *entity.Story, articleTitle string, currentSourceCount int, now time.Time) float64 {
	t := timeFactor(now.Sub(s.LastUpdated))
	i := infoFactor(fingerprint.Similarity(s.Title, articleTitle))
	n := noveltyFactor(currentSourceCount)
	return 0.4*t + 0.4*i + 0.2*n
}

func timeFactor(since time.Duration) float64 {
	const (
		lower    = time.Hour
		upper    = 6 * time.Hour
		lowScore = 0.2
		hiScore  = 0.8
	)
	switch {
	case since < lower:
		return lowScore
	case since > upper:
		return hiScore
	default:
		frac := float64(since-lower) / float64(upper-lower)
		return lowScore + frac*(hiScore-lowScore)
	}
}

func infoFactor(sim float64) float64 {
	switch {
	case sim > 0.8:
		return 0.2
	case sim < 0.5:
		return 0.9
	default:
		return 0.5
	}
}

func noveltyFactor(sourceCount int) float64 {
	switch {
	case sourceCount == 1:
		return 0.8
	case sourceCount < 5:
		return 0.5
	default:
		return 0.3
	}
}

// SignificanceThreshold is the cutoff above which an attach bumps
// Story.LastUpdated (§4.4: "if σ > 0.5 then set last_updated = now").
const SignificanceThreshold = 0.5

// NextStatus evaluates the status transition table from §4.5 given the
// story's current source count and the time since its last source was
// added. Transitions are idempotent: returning the story's current status is
// a valid, expected outcome.
func NextStatus(sourceCount int, timeSinceLastSource time.Duration, breakingWindow time.Duration) entity.Status {
	switch {
	case sourceCount <= 1:
		return entity.StatusMonitoring
	case sourceCount == 2:
		return entity.StatusDeveloping
	case timeSinceLastSource > breakingWindow:
		return entity.StatusVerified
	default:
		return entity.StatusBreaking
	}
}

// Apply evaluates the transition table against a story's current state and
// updates its Status and BreakingDetectedAt in place, per §4.5. It is called
// after every attach and from the periodic sweep. now is the evaluation
// time; breakingWindow is the configured breaking window (default
// DefaultBreakingWindow).
func Apply(s *entity.Story, now time.Time, breakingWindow time.Duration) {
	since := now.Sub(s.LastSourceAddedAt)
	next := NextStatus(s.SourceCount, since, breakingWindow)

	if next == entity.StatusBreaking && s.Status != entity.StatusBreaking {
		t := now
		s.BreakingDetectedAt = &t
	}
	// Leaving BREAKING leaves BreakingDetectedAt untouched; it is informational.

	s.Status = next
}
