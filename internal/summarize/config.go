// Package summarize implements the Summarizer (§4.6): a change-feed and
// timer-driven dispatcher that attaches AI-generated summaries to stories
// under a cost cap, with a bounded worker pool and an optional batch path
// for older, backlogged stories.
package summarize

import (
	"time"

	pkgconfig "newsfeed/internal/pkg/config"
)

// Config tunes the dispatcher's queue, worker pool, cost ceiling, and
// batch-routing thresholds. All fields have §4.6 defaults and are
// overridable via environment variables.
type Config struct {
	// WorkerCount is the fixed real-time worker pool size (default 4).
	WorkerCount int

	// QueueCapacity bounds the in-memory per-story coalescing queue.
	QueueCapacity int

	// BackfillPeriod is how often the backfill sweep scans for stale
	// summaries (default 10m).
	BackfillPeriod time.Duration

	// BackfillWindow bounds how far back the backfill sweep looks
	// (default 4h); older stories are never retroactively summarized.
	BackfillWindow time.Duration

	// GenerationTimeout bounds a single LLM call, including its internal
	// retries (default 30s).
	GenerationTimeout time.Duration

	// HourlyCostCeilingCents is the approximate spend ceiling per rolling
	// hour, in US cents. The dispatcher stops pulling from the queue once
	// it's exhausted and resumes at the next window.
	HourlyCostCeilingCents int

	// BatchQueueDepthThreshold is the queue depth above which eligible
	// stories are routed to the batch path instead of the real-time pool.
	BatchQueueDepthThreshold int

	// BatchFastPathCutoff is the story age below which the real-time path
	// is always preferred, regardless of queue depth.
	BatchFastPathCutoff time.Duration

	// BatchMaxPrompts caps how many stories are grouped into one
	// submitted batch.
	BatchMaxPrompts int

	// BatchPollPeriod is how often the batch-polling thread checks
	// outstanding batch jobs for completion.
	BatchPollPeriod time.Duration

	// Model is the provider-specific model id used for generation.
	Model string

	// LeasePrefix identifies this consumer's checkpoint lease on the
	// story change feed.
	LeasePrefix string
}

// DefaultConfig returns the §4.6-specified dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:              4,
		QueueCapacity:            500,
		BackfillPeriod:           10 * time.Minute,
		BackfillWindow:           4 * time.Hour,
		GenerationTimeout:        30 * time.Second,
		HourlyCostCeilingCents:   500,
		BatchQueueDepthThreshold: 20,
		BatchFastPathCutoff:      time.Hour,
		BatchMaxPrompts:          20,
		BatchPollPeriod:          30 * time.Second,
		Model:                    "claude-sonnet-4-5",
		LeasePrefix:              "summarizer",
	}
}

// LoadConfigFromEnv builds a Config from environment variables, falling
// back to DefaultConfig for anything unset or invalid.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if r := pkgconfig.LoadEnvInt("SUMMARIZER_WORKER_COUNT", cfg.WorkerCount, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 32) }); !r.FallbackApplied {
		cfg.WorkerCount = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvInt("SUMMARIZER_QUEUE_CAPACITY", cfg.QueueCapacity, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 100000) }); !r.FallbackApplied {
		cfg.QueueCapacity = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvDuration("SUMMARIZER_BACKFILL_PERIOD", cfg.BackfillPeriod, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.BackfillPeriod = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvDuration("SUMMARIZER_BACKFILL_WINDOW", cfg.BackfillWindow, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.BackfillWindow = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvDuration("SUMMARIZER_GENERATION_TIMEOUT", cfg.GenerationTimeout, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.GenerationTimeout = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvInt("SUMMARIZER_HOURLY_COST_CEILING_CENTS", cfg.HourlyCostCeilingCents, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 1000000) }); !r.FallbackApplied {
		cfg.HourlyCostCeilingCents = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvInt("SUMMARIZER_BATCH_QUEUE_DEPTH_THRESHOLD", cfg.BatchQueueDepthThreshold, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 100000) }); !r.FallbackApplied {
		cfg.BatchQueueDepthThreshold = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvDuration("SUMMARIZER_BATCH_FAST_PATH_CUTOFF", cfg.BatchFastPathCutoff, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.BatchFastPathCutoff = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvInt("SUMMARIZER_BATCH_MAX_PROMPTS", cfg.BatchMaxPrompts, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 1000) }); !r.FallbackApplied {
		cfg.BatchMaxPrompts = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvDuration("SUMMARIZER_BATCH_POLL_PERIOD", cfg.BatchPollPeriod, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.BatchPollPeriod = r.Value.(time.Duration)
	}
	cfg.Model = pkgconfig.LoadEnvString("SUMMARIZER_MODEL", cfg.Model)
	cfg.LeasePrefix = pkgconfig.LoadEnvString("SUMMARIZER_LEASE_PREFIX", cfg.LeasePrefix)

	return cfg
}
