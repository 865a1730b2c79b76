// Package statussweep runs the periodic sweep that re-evaluates every
// active story's status transition (§4.5), independent of the Clustering
// Engine's per-attach evaluation: a story can leave BREAKING purely because
// time has passed since its last source was added, with no new attach to
// trigger it.
package statussweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"newsfeed/internal/clock"
	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
	domainstatus "newsfeed/internal/domain/status"
	"newsfeed/internal/notify"
	"newsfeed/internal/observability/metrics"
	"newsfeed/internal/repository"
)

// Config tunes the sweep's cadence and scan window.
type Config struct {
	// SweepPeriod is how often the sweep runs (default 2m, per §4.5).
	SweepPeriod time.Duration

	// Window bounds how far back the sweep scans for active stories;
	// stories older than this have already settled into VERIFIED and don't
	// need re-evaluation.
	Window time.Duration

	// Limit caps the number of stories scanned per sweep.
	Limit int

	// BreakingWindow is passed through to the status transition table.
	BreakingWindow time.Duration
}

// DefaultConfig returns the §4.5-specified sweep defaults.
func DefaultConfig() Config {
	return Config{
		SweepPeriod:    2 * time.Minute,
		Window:         72 * time.Hour,
		Limit:          1000,
		BreakingWindow: domainstatus.DefaultBreakingWindow,
	}
}

// Sweeper periodically re-applies the status transition table across every
// active story, catching BREAKING -> VERIFIED demotions that no new attach
// will ever trigger.
type Sweeper struct {
	cfg      Config
	stories  repository.StoryRepository
	clock    clock.Clock
	notifier notify.Service
}

// New builds a Sweeper over the given story repository. notifier may be
// nil, in which case status transitions are simply not announced.
func New(cfg Config, stories repository.StoryRepository, clk clock.Clock, notifier notify.Service) *Sweeper {
	return &Sweeper{cfg: cfg, stories: stories, clock: clk, notifier: notifier}
}

// Run starts the cron-scheduled sweep and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.SweepPeriod), func() {
		if err := s.SweepOnce(ctx); err != nil {
			slog.Error("status sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule status sweep: %w", err)
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

// SweepOnce re-evaluates every category's active stories once, and refreshes
// the pipeline-wide business gauges. It is exported so a one-shot
// invocation (tests, a manual reconciliation run) doesn't need the cron
// scheduler.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.clock.Now()
	stories, err := s.stories.FeedCandidates(ctx, "", now, s.cfg.Window, s.cfg.Limit)
	if err != nil {
		return fmt.Errorf("list active stories for sweep: %w", err)
	}

	const snapshotWindow = 24 * time.Hour
	cutoff := now.Add(-snapshotWindow)

	var totalSources, articlesIngested, storiesCreated, summariesGenerated int
	for i := range stories {
		story := stories[i]
		before := story.Status
		domainstatus.Apply(&story, now, s.cfg.BreakingWindow)
		totalSources += story.SourceCount

		if story.CreatedAt.After(cutoff) {
			storiesCreated++
		}
		if story.Summary != nil && story.Summary.GeneratedAt.After(cutoff) {
			summariesGenerated++
		}
		for _, ref := range story.SourceArticles {
			if ref.PublishedAt.After(cutoff) {
				articlesIngested++
			}
		}

		if story.Status == before {
			continue
		}
		if err := s.commitStatus(ctx, &story, before); err != nil {
			slog.Warn("status sweep failed to commit transition",
				slog.String("story_id", story.ID), slog.Any("error", err))
		}
	}

	avgSources := 0.0
	if len(stories) > 0 {
		avgSources = float64(totalSources) / float64(len(stories))
	}
	metrics.UpdatePipelineSnapshot(articlesIngested, storiesCreated, summariesGenerated, avgSources)

	return nil
}

const maxCommitAttempts = 3

// commitStatus writes a story's new status with a short optimistic-
// concurrency retry, re-reading and re-applying the transition on conflict
// since another writer (an attach) may have changed the story underneath
// the sweep. On a successful commit it announces the transition using the
// actually-committed status, not the speculative one computed before the
// re-read.
func (s *Sweeper) commitStatus(ctx context.Context, story *entity.Story, before entity.Status) error {
	id, category := story.ID, story.Category
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		current, etag, err := s.stories.Get(ctx, id, category)
		if err != nil {
			return fmt.Errorf("reload story %s: %w", id, err)
		}
		domainstatus.Apply(current, s.clock.Now(), s.cfg.BreakingWindow)

		if _, err := s.stories.Update(ctx, current, etag); err != nil {
			if attempt < maxCommitAttempts && isPreconditionFailed(err) {
				continue
			}
			return fmt.Errorf("commit status for %s: %w", id, err)
		}
		s.announceTransition(ctx, current, before)
		return nil
	}
	return fmt.Errorf("commit status for %s: exhausted %d attempts", id, maxCommitAttempts)
}

// announceTransition fires the notification hook when a sweep changed a
// story's status, per the Status Transitioner's event hook (§9).
func (s *Sweeper) announceTransition(ctx context.Context, story *entity.Story, before entity.Status) {
	if s.notifier == nil || story.Status == before {
		return
	}
	switch story.Status {
	case entity.StatusBreaking:
		_ = s.notifier.NotifyBreaking(ctx, story)
	case entity.StatusVerified:
		s.notifier.NotifyTransition(ctx, story, notify.EventVerified)
	case entity.StatusDeveloping:
		s.notifier.NotifyTransition(ctx, story, notify.EventDeveloping)
	}
}

func isPreconditionFailed(err error) bool {
	return errors.Is(err, docstore.ErrPreconditionFailed)
}
