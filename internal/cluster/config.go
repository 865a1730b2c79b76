// Package cluster implements the Clustering Engine (§4.4): it consumes the
// article change feed and attaches each article to exactly one story,
// matching by event fingerprint first and headline similarity second.
package cluster

import (
	"time"

	pkgconfig "newsfeed/internal/pkg/config"
)

// Config tunes the matching algorithm and consumer loop. All fields have
// defaults per §4.4/§4.5 and are overridable via environment variables so
// operators can retune without a redeploy.
type Config struct {
	// CandidateWindow bounds how far back the candidate query looks for
	// stories in the article's category (default 72h).
	CandidateWindow time.Duration

	// CandidateLimit caps the candidate set size (default 100).
	CandidateLimit int

	// AttachThreshold is the minimum fuzzy-match similarity to attach to an
	// existing story rather than create a new one (default 0.45).
	AttachThreshold float64

	// BreakingWindow is passed through to the status transition table
	// (default 30m).
	BreakingWindow time.Duration

	// MaxAttachAttempts bounds the optimistic-concurrency retry loop on a
	// story write (default 3, per §4.4).
	MaxAttachAttempts int

	// IdlePollPeriod is how long the consumer waits between change-feed
	// polls when a batch comes back empty.
	IdlePollPeriod time.Duration

	// LeasePrefix identifies this consumer's checkpoint lease on the
	// article change feed.
	LeasePrefix string
}

// DefaultConfig returns the §4.4-specified defaults.
func DefaultConfig() Config {
	return Config{
		CandidateWindow:   72 * time.Hour,
		CandidateLimit:    100,
		AttachThreshold:   0.45,
		BreakingWindow:    30 * time.Minute,
		MaxAttachAttempts: 3,
		IdlePollPeriod:    2 * time.Second,
		LeasePrefix:       "clustering-engine",
	}
}

// LoadConfigFromEnv builds a Config from environment variables, falling
// back to DefaultConfig for anything unset or invalid — the same fail-open
// pattern as the rest of the ambient config stack.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if r := pkgconfig.LoadEnvDuration("CLUSTER_CANDIDATE_WINDOW", cfg.CandidateWindow, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.CandidateWindow = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvInt("CLUSTER_CANDIDATE_LIMIT", cfg.CandidateLimit, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 1000) }); !r.FallbackApplied {
		cfg.CandidateLimit = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvDuration("CLUSTER_IDLE_POLL_PERIOD", cfg.IdlePollPeriod, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.IdlePollPeriod = r.Value.(time.Duration)
	}
	cfg.LeasePrefix = pkgconfig.LoadEnvString("CLUSTER_LEASE_PREFIX", cfg.LeasePrefix)

	return cfg
}
