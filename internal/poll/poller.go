package poll

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"newsfeed/internal/clock"
	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/categorize"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/domain/fingerprint"
	"newsfeed/internal/poll/contentfetch"
	"newsfeed/internal/repository"
)

// Poller is the Feed Poller coordinator (§4.3): every cycle it selects up to
// BatchSize due feeds, fetches them concurrently through a bounded worker
// pool, and inserts newly-discovered articles.
type Poller struct {
	cfg         Config
	feeds       map[string]FeedConfig
	pollStates  repository.PollStateRepository
	articles    repository.ArticleRepository
	fetcher     *FeedFetcher
	content     *contentfetch.Fetcher
	categorizer *categorize.Categorizer
	clock       clock.Clock
}

// New builds a Poller over the given feed registry and dependencies.
func New(
	cfg Config,
	feeds []FeedConfig,
	pollStates repository.PollStateRepository,
	articles repository.ArticleRepository,
	fetcher *FeedFetcher,
	content *contentfetch.Fetcher,
	categorizer *categorize.Categorizer,
	clk clock.Clock,
) *Poller {
	byID := make(map[string]FeedConfig, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}
	return &Poller{
		cfg:         cfg,
		feeds:       byID,
		pollStates:  pollStates,
		articles:    articles,
		fetcher:     fetcher,
		content:     content,
		categorizer: categorizer,
		clock:       clk,
	}
}

// Run drives the coordinator's cycle loop until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CyclePeriod)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil {
			slog.Error("poll cycle failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single cycle: select due feeds, commit their next
// schedule, then fetch concurrently — grounded in the teacher's bounded
// errgroup/semaphore worker pool pattern.
func (p *Poller) RunOnce(ctx context.Context) error {
	now := p.clock.Now()
	due, err := p.pollStates.ListDue(ctx, now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("list due feeds: %w", err)
	}

	due = p.filterBackoff(due, now)
	sort.Slice(due, func(i, j int) bool { return due[i].LastPollAt.Before(due[j].LastPollAt) })

	if len(due) > p.cfg.BatchSize {
		due = due[:p.cfg.BatchSize]
	}
	if len(due) == 0 {
		return nil
	}

	selected := make([]FeedConfig, 0, len(due))
	for _, state := range due {
		feed, ok := p.feeds[state.FeedID]
		if !ok {
			continue
		}
		if err := p.commitNextDue(ctx, feed, now); err != nil {
			slog.Warn("failed to commit next poll schedule, skipping this cycle",
				slog.String("feed_id", feed.ID), slog.Any("error", err))
			continue
		}
		selected = append(selected, feed)
	}

	sem := semaphore.NewWeighted(int64(p.cfg.FetchWorkers))
	results := make(chan error, len(selected))
	for _, feed := range selected {
		feed := feed
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- err
			continue
		}
		go func() {
			defer sem.Release(1)
			results <- p.pollFeed(ctx, feed)
		}()
	}

	var firstErr error
	for range selected {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// filterBackoff drops feeds still in their backoff window — ListDue already
// filters on next_due_at but not backoff_until, since the latter is a
// per-feed field the coordinator owns exclusively.
func (p *Poller) filterBackoff(states []entity.PollState, now time.Time) []entity.PollState {
	out := states[:0]
	for _, s := range states {
		if s.BackoffUntil.IsZero() || !now.Before(s.BackoffUntil) {
			out = append(out, s)
		}
	}
	return out
}

// commitNextDue advances next_due_at before fetching, so a crash mid-fetch
// does not produce a double-poll in the same window (§4.3).
func (p *Poller) commitNextDue(ctx context.Context, feed FeedConfig, now time.Time) error {
	state, etag, err := p.pollStates.Get(ctx, feed.ID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			state = &entity.PollState{FeedID: feed.ID}
			etag = ""
		} else {
			return err
		}
	}
	state.LastPollAt = now
	state.NextDueAt = now.Add(feed.PollPeriod())

	for attempt := 0; attempt < 3; attempt++ {
		_, err := p.pollStates.Upsert(ctx, state, etag)
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrPreconditionFailed) {
			return err
		}
		fresh, freshETag, getErr := p.pollStates.Get(ctx, feed.ID)
		if getErr != nil {
			return getErr
		}
		state = fresh
		state.LastPollAt = now
		state.NextDueAt = now.Add(feed.PollPeriod())
		etag = freshETag
	}
	return fmt.Errorf("commit next due for feed %s: exhausted retries", feed.ID)
}

// pollFeed fetches a single feed and ingests any new articles. Per §4.3,
// fetches across distinct feeds run in parallel but a single feed's fetch is
// never run concurrently with itself (the coordinator only selects a feed
// once it is due, and next_due_at is already committed forward).
func (p *Poller) pollFeed(ctx context.Context, feed FeedConfig) error {
	now := p.clock.Now()
	state, etag, err := p.pollStates.Get(ctx, feed.ID)
	if err != nil {
		return fmt.Errorf("reload poll state for %s: %w", feed.ID, err)
	}

	result, fetchErr := p.fetcher.Fetch(ctx, feed.URL, state.ETag, state.LastModified)
	if fetchErr != nil {
		return p.recordFailure(ctx, feed, state, etag, now, fetchErr)
	}

	if result.NotModified {
		return p.recordSuccess(ctx, feed, state, etag, now, "", "")
	}

	for _, item := range result.Items {
		if err := p.ingestItem(ctx, feed, item); err != nil {
			// Parse/ingest errors are recorded but treated as a successful
			// fetch (§4.3: "parse errors: record error, no retry").
			slog.Warn("failed to ingest feed item",
				slog.String("feed_id", feed.ID), slog.String("url", item.URL), slog.Any("error", err))
		}
	}

	return p.recordSuccess(ctx, feed, state, etag, now, result.ETag, result.LastModified)
}

func (p *Poller) ingestItem(ctx context.Context, feed FeedConfig, item FeedItem) error {
	description := p.content.Enhance(ctx, item.URL, item.Description)
	category := feed.CategoryHint
	var confidence float64
	if p.categorizer != nil {
		result := p.categorizer.Categorize(item.Title, description, item.URL, feed.SourceID)
		// A feed's category_hint, where configured, is a stronger signal than
		// the categorizer's uncertain general-fallback verdict (§4.2's 0.30
		// threshold exists precisely because some sources are ambiguous) —
		// only let the categorizer override the hint when it's confident.
		if result.Category != categorize.General || feed.CategoryHint == "" {
			category = string(result.Category)
			confidence = result.Confidence
		}
	}

	article := &entity.Article{
		ID:                 deriveArticleID(feed.SourceID, item.URL),
		Source:             feed.SourceID,
		SourceName:         feed.SourceID,
		Title:              item.Title,
		Description:        description,
		URL:                item.URL,
		PublishedAt:        item.PublishedAt,
		FetchedAt:          p.clock.Now(),
		Category:           category,
		CategoryConfidence: confidence,
		StoryFingerprint:   fingerprint.Fingerprint(item.Title),
	}

	err := p.articles.Create(ctx, article)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		// Duplicate article id: already ingested, not an error (§4.3).
		return nil
	}
	return err
}

// deriveArticleID implements §4.3's "id = hash(source_id + canonical_url)".
func deriveArticleID(sourceID, canonicalURL string) string {
	sum := md5.Sum([]byte(sourceID + "|" + canonicalURL))
	return hex.EncodeToString(sum[:])
}

func (p *Poller) recordSuccess(ctx context.Context, feed FeedConfig, state *entity.PollState, etag string, now time.Time, newConditionalETag, lastModified string) error {
	state.FailureCount = 0
	if newConditionalETag != "" {
		state.ETag = newConditionalETag
	}
	if lastModified != "" {
		state.LastModified = lastModified
	}
	_, err := p.pollStates.Upsert(ctx, state, etag)
	if err != nil && !errors.Is(err, docstore.ErrPreconditionFailed) {
		return fmt.Errorf("record success for feed %s: %w", feed.ID, err)
	}
	return nil
}

func (p *Poller) recordFailure(ctx context.Context, feed FeedConfig, state *entity.PollState, etag string, now time.Time, fetchErr error) error {
	state.FailureCount++
	backoff := p.cfg.BaseBackoff * time.Duration(1<<uint(state.FailureCount-1))
	if backoff > p.cfg.MaxBackoff || backoff <= 0 {
		backoff = p.cfg.MaxBackoff
	}
	state.BackoffUntil = now.Add(backoff)

	if _, err := p.pollStates.Upsert(ctx, state, etag); err != nil && !errors.Is(err, docstore.ErrPreconditionFailed) {
		slog.Error("failed to record feed failure state", slog.String("feed_id", feed.ID), slog.Any("error", err))
	}
	slog.Warn("feed fetch failed", slog.String("feed_id", feed.ID), slog.Int("failure_count", state.FailureCount), slog.Any("error", fetchErr))
	return nil
}
