package feedapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/docstore/memory"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/repository"
)

func seedStory(t *testing.T, ctx context.Context, repo repository.StoryRepository, s *entity.Story) {
	t.Helper()
	_, err := repo.Create(ctx, s)
	require.NoError(t, err)
}

func TestQueryFeed_ExcludesMonitoringAndPaginates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	seedStory(t, ctx, repo, &entity.Story{
		ID: "s1", Category: "world", Status: entity.StatusMonitoring,
		PrimarySource: "bbc", SourceCount: 1, LastUpdated: now, CreatedAt: now,
	})
	seedStory(t, ctx, repo, &entity.Story{
		ID: "s2", Category: "world", Status: entity.StatusVerified,
		PrimarySource: "reuters", SourceCount: 2, LastUpdated: now.Add(-time.Minute), CreatedAt: now,
	})
	seedStory(t, ctx, repo, &entity.Story{
		ID: "s3", Category: "world", Status: entity.StatusDeveloping,
		PrimarySource: "ap", SourceCount: 2, LastUpdated: now.Add(-2 * time.Minute), CreatedAt: now,
	})

	page, err := queryFeed(ctx, repo, now, QueryParams{Category: "world", Limit: 20, Offset: 0})
	require.NoError(t, err)

	ids := idsOf(page)
	assert.ElementsMatch(t, []string{"s2", "s3"}, ids, "MONITORING story must never appear in the feed")
}

func TestQueryFeed_RespectsLimitAndOffset(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedStory(t, ctx, repo, &entity.Story{
			ID: idFor(i), Category: "world", Status: entity.StatusVerified,
			PrimarySource: sourceFor(i), SourceCount: 2,
			LastUpdated: now.Add(-time.Duration(i) * time.Minute), CreatedAt: now,
		})
	}

	firstPage, err := queryFeed(ctx, repo, now, QueryParams{Category: "world", Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, firstPage, 2)

	secondPage, err := queryFeed(ctx, repo, now, QueryParams{Category: "world", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, secondPage, 2)

	assert.NotEqual(t, idsOf(firstPage), idsOf(secondPage))
}

func TestQueryBreaking_OnlyReturnsBreakingStatus(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	seedStory(t, ctx, repo, &entity.Story{
		ID: "s1", Category: "world", Status: entity.StatusBreaking,
		PrimarySource: "bbc", SourceCount: 3, LastUpdated: now, CreatedAt: now,
	})
	seedStory(t, ctx, repo, &entity.Story{
		ID: "s2", Category: "world", Status: entity.StatusVerified,
		PrimarySource: "reuters", SourceCount: 3, LastUpdated: now, CreatedAt: now,
	})

	got, err := queryBreaking(ctx, repo, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestQueryLastModified_ReturnsMaxAcrossScope(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	seedStory(t, ctx, repo, &entity.Story{
		ID: "s1", Category: "world", Status: entity.StatusVerified,
		PrimarySource: "bbc", SourceCount: 2, LastUpdated: now.Add(-time.Hour), CreatedAt: now,
	})
	seedStory(t, ctx, repo, &entity.Story{
		ID: "s2", Category: "world", Status: entity.StatusVerified,
		PrimarySource: "reuters", SourceCount: 2, LastUpdated: now, CreatedAt: now,
	})

	got, err := queryLastModified(ctx, repo, now, "world")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(now))
}

func TestQueryLastModified_NilWhenScopeEmpty(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStoryRepository(memory.New())
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	got, err := queryLastModified(ctx, repo, now, "nonexistent-category")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func idFor(i int) string {
	return []string{"a", "b", "c", "d", "e"}[i]
}

func sourceFor(i int) string {
	return []string{"bbc", "reuters", "ap", "afp", "cnn"}[i]
}
