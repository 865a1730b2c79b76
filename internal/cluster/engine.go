package cluster

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	mathrand "math/rand"
	"sort"
	"time"

	"newsfeed/internal/clock"
	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/domain/fingerprint"
	"newsfeed/internal/domain/status"
	"newsfeed/internal/notify"
	"newsfeed/internal/observability/metrics"
	"newsfeed/internal/repository"
)

// attachMinBackoff and attachMaxBackoff bound the jittered retry delay on
// the story optimistic-concurrency write loop, per §4.4 ("retry up to 3
// times with jittered backoff (10-100 ms)"). This is a tight in-memory CAS
// retry, not a network call, so it doesn't go through the general-purpose
// retry.WithBackoff (tuned for transient network/HTTP failures).
const (
	attachMinBackoff = 10 * time.Millisecond
	attachMaxBackoff = 100 * time.Millisecond
)

// Engine is the Clustering Engine (F): a single-active consumer over the
// article change feed that attaches each delivered article to exactly one
// story, per the matching algorithm in §4.4.
type Engine struct {
	cfg      Config
	articles repository.ArticleRepository
	stories  repository.StoryRepository
	clock    clock.Clock
	notifier notify.Service
}

// New builds an Engine over the given repositories. notifier may be nil,
// in which case status transitions are simply not announced.
func New(cfg Config, articles repository.ArticleRepository, stories repository.StoryRepository, clk clock.Clock, notifier notify.Service) *Engine {
	return &Engine{cfg: cfg, articles: articles, stories: stories, clock: clk, notifier: notifier}
}

// Run drives the change-feed consumer loop until ctx is cancelled: pull a
// batch, process every event, checkpoint, and idle-poll when nothing is
// pending. A processing error on one event does not block the rest of the
// batch or the checkpoint — §4.4 dead-letters after exhausted retries
// rather than stalling the consumer.
func (e *Engine) Run(ctx context.Context) error {
	consumer, err := e.articles.ChangeFeed(ctx, e.cfg.LeasePrefix)
	if err != nil {
		return fmt.Errorf("open article change feed: %w", err)
	}

	ticker := time.NewTicker(e.cfg.IdlePollPeriod)
	defer ticker.Stop()

	for {
		batch, err := consumer.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			slog.Error("clustering engine change feed read failed", slog.Any("error", err))
		} else if batch != nil && len(batch.Events) > 0 {
			e.processBatch(ctx, batch.Events)
			if err := batch.Checkpoint(ctx); err != nil {
				slog.Error("clustering engine checkpoint failed", slog.Any("error", err))
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

// processBatch handles every event in delivery order; per-partition order
// is preserved by the change feed, cross-partition order is not — the
// matching algorithm is order-tolerant (§4.4 "Ordering guarantees").
func (e *Engine) processBatch(ctx context.Context, events []docstore.ChangeEvent) {
	for _, ev := range events {
		if err := e.processEvent(ctx, ev); err != nil {
			slog.Error("clustering engine failed to process article",
				slog.String("article_id", ev.ID), slog.Any("error", err))
		}
	}
}

func (e *Engine) processEvent(ctx context.Context, ev docstore.ChangeEvent) error {
	start := e.clock.Now()
	article, err := e.articles.Get(ctx, ev.ID, ev.Partition)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load article %s: %w", ev.ID, err)
	}

	if err := e.ProcessArticle(ctx, article); err != nil {
		return err
	}
	metrics.RecordClusterAttachDuration(e.clock.Now().Sub(start))
	return nil
}

// ProcessArticle runs the full matching algorithm for a single article: the
// idempotency skip guard, candidate selection, fingerprint/fuzzy matching,
// and attach-or-create. It is exported so the change-feed path and direct
// callers (tests, a reprocessing CLI) share one entrypoint.
func (e *Engine) ProcessArticle(ctx context.Context, article *entity.Article) error {
	if article.Processed && article.StoryID != "" {
		if story, _, err := e.stories.Get(ctx, article.StoryID, article.Category); err == nil && story.HasArticle(article.ID) {
			return nil
		}
	}

	candidates, err := e.stories.CandidatesForCategory(ctx, article.Category, e.clock.Now(), e.cfg.CandidateWindow, e.cfg.CandidateLimit)
	if err != nil {
		return fmt.Errorf("query candidates for %s: %w", article.Category, err)
	}

	match := e.match(article, candidates)
	if match == nil {
		return e.createStory(ctx, article)
	}
	return e.attach(ctx, match.ID, article)
}

// match implements steps 3-4 of §4.4: fingerprint match wins outright;
// otherwise the highest-similarity candidate above the attach threshold,
// tie-broken by most recent last_updated.
func (e *Engine) match(article *entity.Article, candidates []entity.Story) *entity.Story {
	fp := fingerprint.Fingerprint(article.Title)
	for i := range candidates {
		if candidates[i].EventFingerprint == fp {
			return &candidates[i]
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastUpdated.After(candidates[j].LastUpdated)
	})

	var best *entity.Story
	bestScore := -1.0
	for i := range candidates {
		score := fingerprint.Similarity(article.Title, candidates[i].Title)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if best != nil && bestScore > e.cfg.AttachThreshold {
		return best
	}
	return nil
}

// attach resolves the optimistic-concurrency write loop against story id:
// re-reading and re-checking the duplicate-source guard on every retry per
// §4.4. A docstore circuit breaker isn't wrapped here since the retry loop
// itself already bounds attempts at 3; DocstoreConfig guards the repository
// layer's own write path instead.
func (e *Engine) attach(ctx context.Context, storyID string, article *entity.Article) error {
	var dup bool
	var lastErr error
	var committed *entity.Story
	var beforeStatus entity.Status

	for attempt := 1; attempt <= e.cfg.MaxAttachAttempts; attempt++ {
		story, etag, err := e.stories.Get(ctx, storyID, article.Category)
		if err != nil {
			return fmt.Errorf("reload story %s: %w", storyID, err)
		}

		if story.HasSource(article.Source) {
			dup = true
			lastErr = nil
			break
		}

		now := e.clock.Now()
		sourceCountBeforeAttach := story.SourceCount
		sig := status.Significance(story, article.Title, sourceCountBeforeAttach, now)
		beforeStatus = story.Status

		story.SourceArticles = append(story.SourceArticles, entity.SourceArticleRef{
			ArticleID:   article.ID,
			Source:      article.Source,
			Title:       article.Title,
			URL:         article.URL,
			PublishedAt: article.PublishedAt,
		})
		story.SourceCount++
		story.LastSourceAddedAt = now
		story.UpdateSignificance = sig
		if sig > status.SignificanceThreshold {
			story.LastUpdated = now
		}
		status.Apply(story, now, e.cfg.BreakingWindow)

		if _, err := e.stories.Update(ctx, story, etag); err != nil {
			if !errors.Is(err, docstore.ErrPreconditionFailed) {
				return fmt.Errorf("attach %s to %s: %w", article.ID, storyID, err)
			}
			lastErr = err
			if attempt < e.cfg.MaxAttachAttempts {
				select {
				case <-time.After(jitteredBackoff()):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		lastErr = nil
		committed = story
		break
	}

	if lastErr != nil {
		metrics.RecordClusterDeadLetter(article.Category)
		return fmt.Errorf("dead-lettering article %s after %d attach attempts: %w", article.ID, e.cfg.MaxAttachAttempts, lastErr)
	}

	if dup {
		metrics.RecordClusterDecision(article.Category, "duplicate_source")
	} else {
		metrics.RecordClusterDecision(article.Category, "attach")
		e.announceTransition(ctx, committed, beforeStatus)
	}
	return e.articles.MarkProcessed(ctx, article.ID, article.Category, storyID)
}

// announceTransition fires the notification hook when an attach changed a
// story's status, per the Status Transitioner's event hook (§9).
func (e *Engine) announceTransition(ctx context.Context, story *entity.Story, before entity.Status) {
	if e.notifier == nil || story == nil || story.Status == before {
		return
	}
	switch story.Status {
	case entity.StatusBreaking:
		_ = e.notifier.NotifyBreaking(ctx, story)
	case entity.StatusVerified:
		e.notifier.NotifyTransition(ctx, story, notify.EventVerified)
	case entity.StatusDeveloping:
		e.notifier.NotifyTransition(ctx, story, notify.EventDeveloping)
	}
}

// jitteredBackoff returns a random delay in [attachMinBackoff,
// attachMaxBackoff), per §4.4's "jittered backoff (10-100 ms)".
func jitteredBackoff() time.Duration {
	span := attachMaxBackoff - attachMinBackoff
	return attachMinBackoff + time.Duration(mathrand.Int63n(int64(span))) //nolint:gosec // jitter, not a security boundary
}

// createStory builds a brand-new MONITORING-status story from the
// unmatched article, per §4.4's "No match" branch.
func (e *Engine) createStory(ctx context.Context, article *entity.Article) error {
	now := e.clock.Now()
	story := &entity.Story{
		ID:                newStoryID(now),
		Category:          article.Category,
		Title:             article.Title,
		PrimarySource:     article.Source,
		SourceCount:       1,
		EventFingerprint:  fingerprint.Fingerprint(article.Title),
		Status:            entity.StatusMonitoring,
		CreatedAt:         now,
		LastUpdated:       now,
		LastSourceAddedAt: now,
		SourceArticles: []entity.SourceArticleRef{{
			ArticleID:   article.ID,
			Source:      article.Source,
			Title:       article.Title,
			URL:         article.URL,
			PublishedAt: article.PublishedAt,
		}},
	}

	if _, err := e.stories.Create(ctx, story); err != nil {
		return fmt.Errorf("create story for article %s: %w", article.ID, err)
	}

	metrics.RecordClusterDecision(article.Category, "create")
	return e.articles.MarkProcessed(ctx, article.ID, article.Category, story.ID)
}

// newStoryID builds a story id per §4.4: "story_" + utc_timestamp_compact +
// "_" + rand6hex.
func newStoryID(now time.Time) string {
	return fmt.Sprintf("story_%s_%s", now.UTC().Format("20060102T150405"), randHex6())
}

func randHex6() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing indicates a broken entropy source; a
		// deterministic fallback still yields a syntactically valid id.
		return hex.EncodeToString([]byte{byte(math.MaxUint8), 0, 0})
	}
	return hex.EncodeToString(b[:])
}
