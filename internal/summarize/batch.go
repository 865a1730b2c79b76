package summarize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/llm"
)

// batchSubmitInterval is how often the submitter checks whether the queue
// has backed up enough to route a group of stories to the batch path.
const batchSubmitInterval = 15 * time.Second

// runBatchSubmitter periodically checks queue depth; once it exceeds
// BatchQueueDepthThreshold, it pulls a chunk of pending stories and routes
// the ones old enough (past BatchFastPathCutoff) into a submitted batch,
// returning fresher ones to the queue for the real-time pool per §4.6.
func (d *Dispatcher) runBatchSubmitter(ctx context.Context) error {
	provider, ok := d.provider.(llm.BatchProvider)
	if !ok {
		return nil
	}

	ticker := time.NewTicker(batchSubmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if d.queue.Len() > d.cfg.BatchQueueDepthThreshold {
				d.submitBatch(ctx, provider)
			}
		}
	}
}

func (d *Dispatcher) submitBatch(ctx context.Context, provider llm.BatchProvider) {
	items := d.queue.DequeueN(d.cfg.BatchMaxPrompts)
	if len(items) == 0 {
		return
	}

	now := d.clock.Now()
	var batchable []workItem
	prompts := make(map[string]string)
	storyVersions := make(map[string]int)

	for _, item := range items {
		story, _, err := d.stories.Get(ctx, item.StoryID, item.Category)
		if err != nil {
			if !errors.Is(err, entity.ErrNotFound) {
				slog.Warn("batch submitter failed to reload story", slog.String("story_id", item.StoryID), slog.Any("error", err))
			}
			continue
		}
		if !story.NeedsSummary() {
			continue
		}
		if now.Sub(story.LastSourceAddedAt) < d.cfg.BatchFastPathCutoff {
			// Fresh story: the real-time path is preferred, put it back.
			d.queue.Enqueue(item.StoryID, item.Category)
			continue
		}
		batchable = append(batchable, item)
		prompts[item.StoryID] = buildPrompt(story)
		storyVersions[item.StoryID] = story.SourceCount
	}

	if len(batchable) == 0 {
		return
	}

	batchID, err := provider.SubmitBatch(ctx, prompts, d.cfg.Model)
	if err != nil {
		slog.Error("batch submission failed, returning stories to queue", slog.Any("error", err))
		for _, item := range batchable {
			d.queue.Enqueue(item.StoryID, item.Category)
		}
		return
	}

	costEstimate := 0.0
	for _, prompt := range prompts {
		costEstimate += EstimateCost(d.cfg.Model, len(prompt))
	}

	storyIDs := make([]string, 0, len(batchable))
	for _, item := range batchable {
		storyIDs = append(storyIDs, item.StoryID)
	}

	record := &entity.BatchTracking{
		BatchID:      batchID,
		Status:       entity.BatchSubmitted,
		SubmittedAt:  now,
		StoryIDs:     storyIDs,
		CostEstimate: costEstimate,
	}
	if _, err := d.batches.Create(ctx, record); err != nil {
		slog.Error("failed to persist batch tracking record", slog.String("batch_id", batchID), slog.Any("error", err))
	}

	d.mu.Lock()
	d.pendingBatches[batchID] = append([]workItem(nil), batchable...)
	d.mu.Unlock()

	d.versions(batchID, storyVersions)
}

// versions stashes the per-story source count at submission time so the
// poller can commit the right summary version without re-reading stale
// state; kept alongside pendingBatches under the same lock.
func (d *Dispatcher) versions(batchID string, v map[string]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.batchVersions == nil {
		d.batchVersions = make(map[string]map[string]int)
	}
	d.batchVersions[batchID] = v
}

// runBatchPoller periodically polls every outstanding batch job and
// commits results as they complete.
func (d *Dispatcher) runBatchPoller(ctx context.Context) error {
	provider, ok := d.provider.(llm.BatchProvider)
	if !ok {
		return nil
	}

	ticker := time.NewTicker(d.cfg.BatchPollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.pollOutstandingBatches(ctx, provider)
		}
	}
}

func (d *Dispatcher) pollOutstandingBatches(ctx context.Context, provider llm.BatchProvider) {
	d.mu.Lock()
	ids := make([]string, 0, len(d.pendingBatches))
	for id := range d.pendingBatches {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, batchID := range ids {
		done, results, err := provider.PollBatch(ctx, batchID)
		if err != nil {
			slog.Error("batch poll failed", slog.String("batch_id", batchID), slog.Any("error", err))
			continue
		}
		if !done {
			continue
		}
		d.completeBatch(ctx, batchID, results)
	}
}

func (d *Dispatcher) completeBatch(ctx context.Context, batchID string, results []llm.BatchResult) {
	d.mu.Lock()
	items := d.pendingBatches[batchID]
	versions := d.batchVersions[batchID]
	delete(d.pendingBatches, batchID)
	delete(d.batchVersions, batchID)
	d.mu.Unlock()

	categoryByStory := make(map[string]string, len(items))
	for _, item := range items {
		categoryByStory[item.StoryID] = item.Category
	}

	for _, result := range results {
		category, ok := categoryByStory[result.RequestID]
		if !ok {
			continue
		}
		if result.Err != nil {
			d.commitFailure(ctx, result.RequestID, category, result.Err)
			continue
		}
		version := versions[result.RequestID]
		if err := d.commitSummary(ctx, result.RequestID, category, result.Text, version); err != nil {
			slog.Error("failed to commit batch summary", slog.String("story_id", result.RequestID), slog.Any("error", err))
		}
	}

	record, etag, err := d.batches.Get(ctx, batchID)
	if err != nil {
		slog.Warn("failed to reload batch tracking record on completion", slog.String("batch_id", batchID), slog.Any("error", err))
		return
	}
	record.Status = entity.BatchCompleted
	if _, err := d.batches.Update(ctx, record, etag); err != nil && !errors.Is(err, docstore.ErrPreconditionFailed) {
		slog.Warn("failed to mark batch tracking record completed", slog.String("batch_id", batchID), slog.Any("error", err))
	}
}
