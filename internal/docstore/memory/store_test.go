package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/docstore"
)

func TestUpsert_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	body, _ := json.Marshal(map[string]any{"category": "world", "title": "first"})
	doc := docstore.Document{Container: "raw_articles", ID: "a1", Partition: "world", Body: body}

	etag1, err := s.Upsert(ctx, "raw_articles", doc, "")
	require.NoError(t, err)
	assert.NotEmpty(t, etag1)

	got, err := s.Get(ctx, "raw_articles", "a1", "world")
	require.NoError(t, err)
	assert.Equal(t, etag1, got.ETag)

	body2, _ := json.Marshal(map[string]any{"category": "world", "title": "updated"})
	doc2 := docstore.Document{Container: "raw_articles", ID: "a1", Partition: "world", Body: body2}
	etag2, err := s.Upsert(ctx, "raw_articles", doc2, etag1)
	require.NoError(t, err)
	assert.NotEqual(t, etag1, etag2)
}

func TestUpsert_CreateConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	body, _ := json.Marshal(map[string]any{"category": "world"})
	doc := docstore.Document{Container: "raw_articles", ID: "a1", Partition: "world", Body: body}

	_, err := s.Upsert(ctx, "raw_articles", doc, "")
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "raw_articles", doc, "")
	assert.ErrorIs(t, err, docstore.ErrPreconditionFailed)
}

func TestUpsert_StaleETagRejected(t *testing.T) {
	ctx := context.Background()
	s := New()

	body, _ := json.Marshal(map[string]any{"category": "world"})
	doc := docstore.Document{Container: "raw_articles", ID: "a1", Partition: "world", Body: body}
	_, err := s.Upsert(ctx, "raw_articles", doc, "")
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "raw_articles", doc, "stale-etag")
	assert.ErrorIs(t, err, docstore.ErrPreconditionFailed)
}

func TestGet_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Get(ctx, "raw_articles", "missing", "world")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestQuery_FiltersByPartitionAndEquals(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, c := range []struct{ id, category, status string }{
		{"s1", "world", "DEVELOPING"},
		{"s2", "world", "MONITORING"},
		{"s3", "tech", "DEVELOPING"},
	} {
		body, _ := json.Marshal(map[string]any{"category": c.category, "status": c.status})
		doc := docstore.Document{Container: "story_clusters", ID: c.id, Partition: c.category, Body: body}
		_, err := s.Upsert(ctx, "story_clusters", doc, "")
		require.NoError(t, err)
	}

	results, err := s.Query(ctx, "story_clusters", docstore.Predicate{
		Partition: "world",
		Equals:    map[string]any{"status": "DEVELOPING"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].ID)
}

func TestChangeFeed_DeliversOnceCheckpointed(t *testing.T) {
	ctx := context.Background()
	s := New()

	body, _ := json.Marshal(map[string]any{"category": "world"})
	doc := docstore.Document{Container: "raw_articles", ID: "a1", Partition: "world", Body: body}
	_, err := s.Upsert(ctx, "raw_articles", doc, "")
	require.NoError(t, err)

	consumer, err := s.ChangeFeed(ctx, "raw_articles", "cluster-lease")
	require.NoError(t, err)

	batch, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	assert.Equal(t, "a1", batch.Events[0].ID)

	require.NoError(t, batch.Checkpoint(ctx))

	batch2, err := consumer.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch2.Events)
}

func TestChangeFeed_RedeliversWithoutCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := New()

	body, _ := json.Marshal(map[string]any{"category": "world"})
	doc := docstore.Document{Container: "raw_articles", ID: "a1", Partition: "world", Body: body}
	_, err := s.Upsert(ctx, "raw_articles", doc, "")
	require.NoError(t, err)

	consumer, err := s.ChangeFeed(ctx, "raw_articles", "cluster-lease")
	require.NoError(t, err)

	batch1, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch1.Events, 1)

	// No checkpoint call: redelivery on next Next, matching at-least-once
	// semantics.
	batch2, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch2.Events, 1)
}
