// Package poll implements the Feed Poller: a staggered per-feed scheduler
// that fetches RSS/Atom feeds, categorizes and fingerprints new articles, and
// inserts them into the article store for the Clustering Engine to pick up.
package poll

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "newsfeed/internal/pkg/config"
)

// FeedConfig is a single entry in the feed registry: one polled source.
type FeedConfig struct {
	ID             string `yaml:"id"`
	URL            string `yaml:"url"`
	SourceID       string `yaml:"source_id"`
	CategoryHint   string `yaml:"category_hint"`
	PollPeriodSecs int    `yaml:"poll_period_seconds"`
}

// PollPeriod returns the feed's poll period as a duration, defaulting to 5
// minutes when unset in the registry.
func (f FeedConfig) PollPeriod() time.Duration {
	if f.PollPeriodSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(f.PollPeriodSecs) * time.Second
}

// feedRegistryFile is the on-disk shape of the feed registry: a flat list
// under a top-level "feeds" key, config-as-data per SPEC_FULL.md §0.
type feedRegistryFile struct {
	Feeds []FeedConfig `yaml:"feeds"`
}

// LoadFeedRegistry reads the ~120-feed registry from a YAML file.
func LoadFeedRegistry(path string) ([]FeedConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed registry %s: %w", path, err)
	}
	var parsed feedRegistryFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse feed registry %s: %w", path, err)
	}
	for i, f := range parsed.Feeds {
		if f.ID == "" || f.URL == "" {
			return nil, fmt.Errorf("feed registry %s: entry %d missing id or url", path, i)
		}
	}
	return parsed.Feeds, nil
}

// Config holds the Feed Poller's tunable parameters, per §4.3.
type Config struct {
	// CyclePeriod is how often the coordinator wakes up to select due feeds.
	CyclePeriod time.Duration

	// BatchSize is the maximum number of feeds selected per cycle.
	BatchSize int

	// FetchWorkers bounds the concurrent fetch pool (§5).
	FetchWorkers int

	// MaxBackoff caps the exponential backoff applied after consecutive
	// failures.
	MaxBackoff time.Duration

	// BaseBackoff is the initial backoff unit: backoff_until = now +
	// min(MaxBackoff, BaseBackoff * 2^failure_count).
	BaseBackoff time.Duration
}

// DefaultConfig returns the Feed Poller's default tuning, matching §4.3's
// stated defaults (C = 10s, B = 5).
func DefaultConfig() Config {
	return Config{
		CyclePeriod:  10 * time.Second,
		BatchSize:    5,
		FetchWorkers: 10,
		MaxBackoff:   5 * time.Minute,
		BaseBackoff:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads Feed Poller tuning from the environment, falling
// back to DefaultConfig on any unset or invalid value — the same fail-open
// pattern as the rest of the ambient config stack.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if r := pkgconfig.LoadEnvDuration("POLL_CYCLE_PERIOD", cfg.CyclePeriod, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.CyclePeriod = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvInt("POLL_BATCH_SIZE", cfg.BatchSize, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 200) }); !r.FallbackApplied {
		cfg.BatchSize = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvInt("POLL_FETCH_WORKERS", cfg.FetchWorkers, func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 50) }); !r.FallbackApplied {
		cfg.FetchWorkers = r.Value.(int)
	}
	if r := pkgconfig.LoadEnvDuration("POLL_MAX_BACKOFF", cfg.MaxBackoff, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.MaxBackoff = r.Value.(time.Duration)
	}
	if r := pkgconfig.LoadEnvDuration("POLL_BASE_BACKOFF", cfg.BaseBackoff, pkgconfig.ValidatePositiveDuration); !r.FallbackApplied {
		cfg.BaseBackoff = r.Value.(time.Duration)
	}

	return cfg
}
