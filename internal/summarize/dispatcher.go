package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"newsfeed/internal/clock"
	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/llm"
	"newsfeed/internal/repository"
)

const commitRetryAttempts = 3

// Dispatcher is the Summarizer (H): a change-feed and timer-driven pipeline
// that keeps every feed-eligible story's summary current, under a cost cap.
type Dispatcher struct {
	cfg       Config
	stories   repository.StoryRepository
	batches   repository.BatchTrackingRepository
	provider  llm.Provider
	queue     *Queue
	costMeter *CostMeter
	clock     clock.Clock

	mu             sync.Mutex
	inFlight       map[string]struct{}
	pendingBatches map[string][]workItem
	batchVersions  map[string]map[string]int
}

// New builds a Dispatcher. provider may optionally implement
// llm.BatchProvider; when it doesn't, the batch path is skipped and every
// story is generated through the real-time worker pool.
func New(cfg Config, stories repository.StoryRepository, batches repository.BatchTrackingRepository, provider llm.Provider, clk clock.Clock) *Dispatcher {
	return &Dispatcher{
		cfg:            cfg,
		stories:        stories,
		batches:        batches,
		provider:       provider,
		queue:          NewQueue(cfg.QueueCapacity),
		costMeter:      NewCostMeter(cfg.HourlyCostCeilingCents, clk),
		clock:          clk,
		inFlight:       make(map[string]struct{}),
		pendingBatches: make(map[string][]workItem),
		batchVersions:  make(map[string]map[string]int),
	}
}

// Run starts every Summarizer subsystem and blocks until ctx is cancelled or
// one of them returns an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error { return d.runChangeFeed(gctx) })
	group.Go(func() error { return d.runBackfillSweep(gctx) })
	if _, ok := d.provider.(llm.BatchProvider); ok {
		group.Go(func() error { return d.runBatchSubmitter(gctx) })
		group.Go(func() error { return d.runBatchPoller(gctx) })
	}
	for i := 0; i < d.cfg.WorkerCount; i++ {
		group.Go(func() error { return d.runWorker(gctx) })
	}

	return group.Wait()
}

// runChangeFeed enqueues every story upsert whose summary is stale, per
// §4.6 trigger 1.
func (d *Dispatcher) runChangeFeed(ctx context.Context) error {
	consumer, err := d.stories.ChangeFeed(ctx, d.cfg.LeasePrefix)
	if err != nil {
		return fmt.Errorf("open story change feed: %w", err)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		batch, err := consumer.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			slog.Error("summarizer change feed read failed", slog.Any("error", err))
		} else if batch != nil && len(batch.Events) > 0 {
			for _, ev := range batch.Events {
				d.maybeEnqueue(ctx, ev.ID, ev.Partition)
			}
			if err := batch.Checkpoint(ctx); err != nil {
				slog.Error("summarizer checkpoint failed", slog.Any("error", err))
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) maybeEnqueue(ctx context.Context, storyID, category string) {
	story, _, err := d.stories.Get(ctx, storyID, category)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			slog.Warn("summarizer failed to load story for enqueue", slog.String("story_id", storyID), slog.Any("error", err))
		}
		return
	}
	if story.NeedsSummary() {
		d.queue.Enqueue(storyID, category)
	}
}

// runBackfillSweep enqueues stale-summary stories within the backfill
// window on a fixed cadence, per §4.6 trigger 2.
func (d *Dispatcher) runBackfillSweep(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", d.cfg.BackfillPeriod), func() {
		if err := d.backfillOnce(ctx); err != nil {
			slog.Error("summarizer backfill sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule backfill sweep: %w", err)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

// backfillOnce scans feed-eligible stories updated within the backfill
// window and enqueues any with a stale summary.
func (d *Dispatcher) backfillOnce(ctx context.Context) error {
	now := d.clock.Now()
	stories, err := d.stories.FeedCandidates(ctx, "", now, d.cfg.BackfillWindow, 1000)
	if err != nil {
		return fmt.Errorf("list backfill candidates: %w", err)
	}
	for i := range stories {
		if stories[i].NeedsSummary() {
			d.queue.Enqueue(stories[i].ID, stories[i].Category)
		}
	}
	return nil
}

// runWorker is one of the fixed real-time generation workers.
func (d *Dispatcher) runWorker(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		item, ok := d.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-d.queue.Notify():
			case <-ticker.C:
			}
			continue
		}
		d.process(ctx, item)
	}
}

// process generates (or fails) a single story's summary in the real-time
// path: per-story mutual exclusion, a fresh re-read, the cost-meter check,
// and an atomic commit.
func (d *Dispatcher) process(ctx context.Context, item workItem) {
	if !d.lockStory(item.StoryID) {
		return
	}
	defer d.unlockStory(item.StoryID)

	story, _, err := d.stories.Get(ctx, item.StoryID, item.Category)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			slog.Warn("summarizer failed to reload story", slog.String("story_id", item.StoryID), slog.Any("error", err))
		}
		return
	}
	if !story.NeedsSummary() {
		return
	}

	prompt := buildPrompt(story)
	cost := EstimateCost(d.cfg.Model, len(prompt))
	if !d.costMeter.TryReserve(cost) {
		slog.Warn("summarizer cost ceiling reached, deferring story", slog.String("story_id", item.StoryID))
		d.queue.Enqueue(item.StoryID, item.Category)
		time.Sleep(nextWindowWait(d.cfg.HourlyCostCeilingCents))
		return
	}

	versionAtStart := story.SourceCount
	text, err := d.provider.Summarize(ctx, prompt, d.cfg.Model, d.cfg.GenerationTimeout)
	if err != nil {
		d.commitFailure(ctx, item.StoryID, item.Category, err)
		return
	}

	if err := d.commitSummary(ctx, item.StoryID, item.Category, text, versionAtStart); err != nil {
		slog.Error("summarizer failed to commit summary", slog.String("story_id", item.StoryID), slog.Any("error", err))
	}
}

func (d *Dispatcher) lockStory(storyID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[storyID]; busy {
		return false
	}
	d.inFlight[storyID] = struct{}{}
	return true
}

func (d *Dispatcher) unlockStory(storyID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, storyID)
}

// commitSummary writes the generated summary with the source count pinned
// to generation start, retrying on an etag conflict without re-validating
// staleness — §4.6: "the write still commits" even if source_count grew
// meanwhile.
func (d *Dispatcher) commitSummary(ctx context.Context, storyID, category, text string, version int) error {
	now := d.clock.Now()
	for attempt := 1; attempt <= commitRetryAttempts; attempt++ {
		story, etag, err := d.stories.Get(ctx, storyID, category)
		if err != nil {
			return fmt.Errorf("reload story %s: %w", storyID, err)
		}
		story.Summary = &entity.Summary{
			Text:        text,
			Version:     version,
			GeneratedAt: now,
			Model:       d.cfg.Model,
			WordCount:   wordCount(text),
		}
		if _, err := d.stories.Update(ctx, story, etag); err != nil {
			if attempt < commitRetryAttempts && errors.Is(err, docstore.ErrPreconditionFailed) {
				continue
			}
			return fmt.Errorf("commit summary for %s: %w", storyID, err)
		}
		return nil
	}
	return fmt.Errorf("commit summary for %s: exhausted %d attempts", storyID, commitRetryAttempts)
}

// commitFailure records a failed generation attempt without blocking the
// queue, per §4.6's failure branch.
func (d *Dispatcher) commitFailure(ctx context.Context, storyID, category string, genErr error) {
	for attempt := 1; attempt <= commitRetryAttempts; attempt++ {
		story, etag, err := d.stories.Get(ctx, storyID, category)
		if err != nil {
			slog.Warn("summarizer failed to reload story to record failure", slog.String("story_id", storyID), slog.Any("error", err))
			return
		}
		story.SummaryAttempts++
		story.LastSummaryError = genErr.Error()
		if _, err := d.stories.Update(ctx, story, etag); err != nil {
			if attempt < commitRetryAttempts && errors.Is(err, docstore.ErrPreconditionFailed) {
				continue
			}
			slog.Warn("summarizer failed to record generation failure", slog.String("story_id", storyID), slog.Any("error", err))
			return
		}
		return
	}
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
