package summarize

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/clock"
	"newsfeed/internal/docstore/memory"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/repository"
)

// fakeProvider is a deterministic llm.Provider for tests: it returns a
// fixed summary text and counts calls.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (f *fakeProvider) Summarize(_ context.Context, _, _ string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeBatchProvider additionally resolves every submitted prompt
// immediately on the first poll, mirroring the Claude adapter's eager
// resolution.
type fakeBatchProvider struct {
	fakeProvider
	mu      sync.Mutex
	batches map[string]map[string]string
	seq     int
}

func newFakeBatchProvider() *fakeBatchProvider {
	return &fakeBatchProvider{batches: make(map[string]map[string]string)}
}

func (f *fakeBatchProvider) SubmitBatch(_ context.Context, prompts map[string]string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := "batch-test"
	if f.seq > 1 {
		id = "batch-test-2"
	}
	f.batches[id] = prompts
	return id, nil
}

func (f *fakeBatchProvider) PollBatch(_ context.Context, batchID string) (bool, []BatchResult, error) {
	f.mu.Lock()
	prompts, ok := f.batches[batchID]
	delete(f.batches, batchID)
	f.mu.Unlock()
	if !ok {
		return false, nil, nil
	}
	results := make([]BatchResult, 0, len(prompts))
	for storyID := range prompts {
		results = append(results, BatchResult{RequestID: storyID, Text: "batch summary"})
	}
	return true, results, nil
}

func newTestDispatcher(t *testing.T, provider interface{}) (*Dispatcher, repository.StoryRepository) {
	t.Helper()
	store := memory.New()
	stories := repository.NewStoryRepository(store)
	batches := repository.NewBatchTrackingRepository(store)

	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cfg.QueueCapacity = 10

	var d *Dispatcher
	switch p := provider.(type) {
	case *fakeBatchProvider:
		d = New(cfg, stories, batches, p, clock.NewFakeClock(time.Now()))
	case *fakeProvider:
		d = New(cfg, stories, batches, p, clock.NewFakeClock(time.Now()))
	default:
		t.Fatalf("unsupported provider type %T", provider)
	}
	return d, stories
}

func newSummarizableStory(now time.Time) *entity.Story {
	return &entity.Story{
		ID:                "story-1",
		Category:          "world",
		Title:             "Storm makes landfall",
		PrimarySource:     "bbc",
		SourceCount:       2,
		Status:            entity.StatusDeveloping,
		CreatedAt:         now,
		LastUpdated:       now,
		LastSourceAddedAt: now,
		SourceArticles: []entity.SourceArticleRef{
			{ArticleID: "a1", Source: "bbc", Title: "Storm makes landfall", PublishedAt: now},
			{ArticleID: "a2", Source: "reuters", Title: "Landfall confirmed", PublishedAt: now},
		},
	}
}

func TestProcess_GeneratesAndCommitsSummary(t *testing.T) {
	provider := &fakeProvider{text: "a concise summary"}
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	story := newSummarizableStory(now)
	_, err := stories.Create(context.Background(), story)
	require.NoError(t, err)

	d.process(context.Background(), workItem{StoryID: story.ID, Category: story.Category})

	got, _, err := stories.Get(context.Background(), story.ID, story.Category)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "a concise summary", got.Summary.Text)
	assert.Equal(t, 2, got.Summary.Version)
	assert.Equal(t, 1, provider.callCount())
}

func TestProcess_PinsVersionToSourceCountAtGenerationStart(t *testing.T) {
	provider := &fakeProvider{text: "summary text"}
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	story := newSummarizableStory(now)
	etag, err := stories.Create(context.Background(), story)
	require.NoError(t, err)

	// Simulate a source being attached concurrently, between the
	// dispatcher's read and its commit, by bumping the story's source
	// count directly in the store before process() reaches commitSummary.
	// process() itself only reads once before calling Summarize, so the
	// pinned version must reflect source_count=2, not whatever it becomes
	// later.
	story.SourceCount = 3
	_, err = stories.Update(context.Background(), story, etag)
	require.NoError(t, err)

	versionAtStart := 2
	err = d.commitSummary(context.Background(), story.ID, story.Category, "summary text", versionAtStart)
	require.NoError(t, err)

	got, _, err := stories.Get(context.Background(), story.ID, story.Category)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, versionAtStart, got.Summary.Version)
	assert.Equal(t, 3, got.SourceCount)
}

func TestProcess_RecordsFailureWithoutBlockingQueue(t *testing.T) {
	provider := &fakeProvider{err: assertError{"provider unavailable"}}
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	story := newSummarizableStory(now)
	_, err := stories.Create(context.Background(), story)
	require.NoError(t, err)

	d.process(context.Background(), workItem{StoryID: story.ID, Category: story.Category})

	got, _, err := stories.Get(context.Background(), story.ID, story.Category)
	require.NoError(t, err)
	assert.Nil(t, got.Summary)
	assert.Equal(t, 1, got.SummaryAttempts)
	assert.Contains(t, got.LastSummaryError, "provider unavailable")
}

func TestProcess_SkipsStoryThatNoLongerNeedsSummary(t *testing.T) {
	provider := &fakeProvider{text: "unused"}
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	story := newSummarizableStory(now)
	story.Summary = &entity.Summary{Text: "already current", Version: story.SourceCount, GeneratedAt: now}
	_, err := stories.Create(context.Background(), story)
	require.NoError(t, err)

	d.process(context.Background(), workItem{StoryID: story.ID, Category: story.Category})

	assert.Equal(t, 0, provider.callCount())
}

func TestMaybeEnqueue_EnqueuesOnlyWhenSummaryStale(t *testing.T) {
	provider := &fakeProvider{text: "x"}
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	stale := newSummarizableStory(now)
	stale.ID = "stale-story"
	_, err := stories.Create(context.Background(), stale)
	require.NoError(t, err)

	current := newSummarizableStory(now)
	current.ID = "current-story"
	current.Summary = &entity.Summary{Text: "up to date", Version: current.SourceCount}
	_, err = stories.Create(context.Background(), current)
	require.NoError(t, err)

	d.maybeEnqueue(context.Background(), stale.ID, stale.Category)
	d.maybeEnqueue(context.Background(), current.ID, current.Category)

	assert.Equal(t, 1, d.queue.Len())
}

func TestBackfillOnce_EnqueuesStaleStoriesWithinWindow(t *testing.T) {
	provider := &fakeProvider{text: "x"}
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	story := newSummarizableStory(now)
	_, err := stories.Create(context.Background(), story)
	require.NoError(t, err)

	err = d.backfillOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, d.queue.Len())
}

func TestSubmitBatch_RoutesFreshStoriesBackToRealTimeQueue(t *testing.T) {
	provider := newFakeBatchProvider()
	d, stories := newTestDispatcher(t, provider)

	now := time.Now()
	fresh := newSummarizableStory(now)
	fresh.ID = "fresh-story"
	fresh.LastSourceAddedAt = now
	_, err := stories.Create(context.Background(), fresh)
	require.NoError(t, err)

	d.queue.Enqueue(fresh.ID, fresh.Category)
	d.submitBatch(context.Background(), provider)

	assert.Equal(t, 1, d.queue.Len(), "fresh story should be returned to the real-time queue, not batched")
}

func TestSubmitBatch_BatchesOldStoriesAndCommitsOnPoll(t *testing.T) {
	provider := newFakeBatchProvider()
	d, stories := newTestDispatcher(t, provider)

	old := newSummarizableStory(time.Now().Add(-24 * time.Hour))
	old.ID = "old-story"
	_, err := stories.Create(context.Background(), old)
	require.NoError(t, err)

	d.queue.Enqueue(old.ID, old.Category)
	d.submitBatch(context.Background(), provider)

	assert.Equal(t, 0, d.queue.Len())

	d.pollOutstandingBatches(context.Background(), provider)

	got, _, err := stories.Get(context.Background(), old.ID, old.Category)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "batch summary", got.Summary.Text)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
