package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/docstore"
	"newsfeed/internal/docstore/memory"
	"newsfeed/internal/domain/entity"
)

func TestStoryRepository_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRepository(memory.New())

	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	story := &entity.Story{
		ID:          "story_20260729120000_abc123",
		Category:    "world",
		Title:       "Major earthquake hits California coast",
		Status:      entity.StatusMonitoring,
		SourceCount: 1,
		CreatedAt:   now,
		LastUpdated: now,
	}

	etag, err := repo.Create(ctx, story)
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	got, gotETag, err := repo.Get(ctx, story.ID, "world")
	require.NoError(t, err)
	assert.Equal(t, etag, gotETag)
	assert.Equal(t, story.Title, got.Title)

	got.SourceCount = 2
	newETag, err := repo.Update(ctx, got, gotETag)
	require.NoError(t, err)
	assert.NotEqual(t, gotETag, newETag)

	_, _, err = repo.Update(ctx, got, gotETag)
	assert.ErrorIs(t, err, docstore.ErrPreconditionFailed)
}

func TestStoryRepository_CandidatesForCategory_FiltersByWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	fresh := &entity.Story{ID: "s1", Category: "world", LastUpdated: now.Add(-time.Hour)}
	stale := &entity.Story{ID: "s2", Category: "world", LastUpdated: now.Add(-100 * time.Hour)}
	_, err := repo.Create(ctx, fresh)
	require.NoError(t, err)
	_, err = repo.Create(ctx, stale)
	require.NoError(t, err)

	candidates, err := repo.CandidatesForCategory(ctx, "world", now, 72*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "s1", candidates[0].ID)
}

func TestStoryRepository_FeedCandidates_ExcludesMonitoring(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	monitoring := &entity.Story{ID: "s1", Category: "world", Status: entity.StatusMonitoring, LastUpdated: now}
	developing := &entity.Story{ID: "s2", Category: "world", Status: entity.StatusDeveloping, LastUpdated: now}
	_, err := repo.Create(ctx, monitoring)
	require.NoError(t, err)
	_, err = repo.Create(ctx, developing)
	require.NoError(t, err)

	candidates, err := repo.FeedCandidates(ctx, "world", now, 7*24*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "s2", candidates[0].ID)
}

func TestStoryRepository_GetByID_ScansAcrossPartitions(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRepository(memory.New())

	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	story := &entity.Story{
		ID:          "story_20260729120000_abc123",
		Category:    "technology",
		Title:       "A new chip architecture ships",
		Status:      entity.StatusVerified,
		SourceCount: 2,
		CreatedAt:   now,
		LastUpdated: now,
	}
	_, err := repo.Create(ctx, story)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "technology", got.Category)
	assert.Equal(t, story.Title, got.Title)
}

func TestStoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewStoryRepository(memory.New())
	_, err := repo.GetByID(context.Background(), "story_does_not_exist")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSortByRecency_BreakingFirstThenRecency(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	stories := []entity.Story{
		{ID: "a", Status: entity.StatusDeveloping, LastUpdated: now},
		{ID: "b", Status: entity.StatusBreaking, LastUpdated: now.Add(-time.Hour)},
		{ID: "c", Status: entity.StatusVerified, LastUpdated: now.Add(-30 * time.Minute)},
	}
	SortByRecency(stories)
	assert.Equal(t, "b", stories[0].ID)
	assert.Equal(t, "c", stories[1].ID)
	assert.Equal(t, "a", stories[2].ID)
}
