package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/clock"
	"newsfeed/internal/docstore/memory"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/repository"
)

func newTestEngine(t *testing.T, clk clock.Clock) (*Engine, repository.ArticleRepository, repository.StoryRepository) {
	t.Helper()
	store := memory.New()
	articles := repository.NewArticleRepository(store)
	stories := repository.NewStoryRepository(store)
	cfg := DefaultConfig()
	return New(cfg, articles, stories, clk, nil), articles, stories
}

func newArticle(id, title string) *entity.Article {
	return &entity.Article{
		ID:          id,
		Source:      "bbc",
		SourceName:  "BBC",
		Title:       title,
		URL:         "https://example.com/" + id,
		Category:    "world",
		PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEngine_ProcessArticle_CreatesNewStoryOnNoMatch(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine, articles, stories := newTestEngine(t, clk)
	ctx := context.Background()

	a := newArticle("a1", "Major earthquake hits California coast")
	require.NoError(t, articles.Create(ctx, a))

	require.NoError(t, engine.ProcessArticle(ctx, a))

	got, err := articles.Get(ctx, "a1", "world")
	require.NoError(t, err)
	assert.True(t, got.Processed)
	require.NotEmpty(t, got.StoryID)

	story, _, err := stories.Get(ctx, got.StoryID, "world")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusMonitoring, story.Status)
	assert.Equal(t, 1, story.SourceCount)
}

func TestEngine_ProcessArticle_AttachesParaphraseByFingerprint(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine, articles, stories := newTestEngine(t, clk)
	ctx := context.Background()

	first := newArticle("a1", "Major earthquake hits California coast")
	require.NoError(t, articles.Create(ctx, first))
	require.NoError(t, engine.ProcessArticle(ctx, first))

	firstArticle, err := articles.Get(ctx, "a1", "world")
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	second := newArticle("a2", "California coast hits major earthquake")
	second.Source = "reuters"
	require.NoError(t, articles.Create(ctx, second))
	require.NoError(t, engine.ProcessArticle(ctx, second))

	secondArticle, err := articles.Get(ctx, "a2", "world")
	require.NoError(t, err)
	assert.Equal(t, firstArticle.StoryID, secondArticle.StoryID)

	story, _, err := stories.Get(ctx, firstArticle.StoryID, "world")
	require.NoError(t, err)
	assert.Equal(t, 2, story.SourceCount)
	assert.Equal(t, entity.StatusDeveloping, story.Status)
}

func TestEngine_ProcessArticle_RejectsDuplicateSource(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine, articles, stories := newTestEngine(t, clk)
	ctx := context.Background()

	first := newArticle("a1", "Major earthquake hits California coast")
	require.NoError(t, articles.Create(ctx, first))
	require.NoError(t, engine.ProcessArticle(ctx, first))
	firstArticle, err := articles.Get(ctx, "a1", "world")
	require.NoError(t, err)

	dup := newArticle("a2", "Major earthquake hits California coast again")
	dup.Source = "bbc"
	require.NoError(t, articles.Create(ctx, dup))
	require.NoError(t, engine.ProcessArticle(ctx, dup))

	dupArticle, err := articles.Get(ctx, "a2", "world")
	require.NoError(t, err)
	assert.Equal(t, firstArticle.StoryID, dupArticle.StoryID)

	story, _, err := stories.Get(ctx, firstArticle.StoryID, "world")
	require.NoError(t, err)
	assert.Equal(t, 1, story.SourceCount, "duplicate source must not append a second entry")
}

func TestEngine_ProcessArticle_SkipGuardIsIdempotent(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine, articles, stories := newTestEngine(t, clk)
	ctx := context.Background()

	a := newArticle("a1", "Major earthquake hits California coast")
	require.NoError(t, articles.Create(ctx, a))
	require.NoError(t, engine.ProcessArticle(ctx, a))

	reloaded, err := articles.Get(ctx, "a1", "world")
	require.NoError(t, err)

	require.NoError(t, engine.ProcessArticle(ctx, reloaded))

	story, _, err := stories.Get(ctx, reloaded.StoryID, "world")
	require.NoError(t, err)
	assert.Equal(t, 1, story.SourceCount, "redelivery must not duplicate the attach")
}

func TestEngine_ProcessArticle_UnrelatedTitleCreatesSeparateStory(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine, articles, stories := newTestEngine(t, clk)
	ctx := context.Background()

	first := newArticle("a1", "Major earthquake hits California coast")
	require.NoError(t, articles.Create(ctx, first))
	require.NoError(t, engine.ProcessArticle(ctx, first))

	second := newArticle("a2", "Central bank raises interest rates")
	require.NoError(t, articles.Create(ctx, second))
	require.NoError(t, engine.ProcessArticle(ctx, second))

	a1, err := articles.Get(ctx, "a1", "world")
	require.NoError(t, err)
	a2, err := articles.Get(ctx, "a2", "world")
	require.NoError(t, err)
	assert.NotEqual(t, a1.StoryID, a2.StoryID)

	all, err := stories.CandidatesForCategory(ctx, "world", clk.Now(), DefaultConfig().CandidateWindow, 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
