package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
)

// StoryRepository is the typed view over the story_clusters container.
type StoryRepository interface {
	Get(ctx context.Context, id, category string) (*entity.Story, string, error)

	// GetByID looks up a story by id alone, without a known category, by
	// scanning all partitions — the Feed API's /story/{id} route has no
	// other way to resolve a story's partition key ahead of the read.
	GetByID(ctx context.Context, id string) (*entity.Story, error)

	// Create inserts a brand-new story (etag == "" on the underlying
	// upsert).
	Create(ctx context.Context, story *entity.Story) (etag string, err error)

	// Update writes story back with the expected etag, returning
	// docstore.ErrPreconditionFailed on a concurrent conflict. Callers
	// (the Clustering Engine) re-read and retry per §4.4.
	Update(ctx context.Context, story *entity.Story, etag string) (newETag string, err error)

	// CandidatesForCategory returns stories in category updated within
	// window of now, capped at limit, UNSORTED — the Clustering Engine and
	// Feed API must sort in application code per §4.4/§4.7's prohibition on
	// relying on the store's ordered query.
	CandidatesForCategory(ctx context.Context, category string, now time.Time, window time.Duration, limit int) ([]entity.Story, error)

	// FeedCandidates returns stories matching the Feed API's maturity
	// filter (DEVELOPING, VERIFIED, BREAKING), optionally scoped to
	// category, updated within window of now, capped at limit, UNSORTED.
	FeedCandidates(ctx context.Context, category string, now time.Time, window time.Duration, limit int) ([]entity.Story, error)

	// ChangeFeed returns a consumer over the story_clusters change log,
	// checkpointed under leasePrefix — the Summarizer's change-feed
	// trigger.
	ChangeFeed(ctx context.Context, leasePrefix string) (docstore.ChangeFeedConsumer, error)
}

type storyRepository struct {
	store docstore.Store
}

// NewStoryRepository builds a StoryRepository over the given store.
func NewStoryRepository(store docstore.Store) StoryRepository {
	return &storyRepository{store: store}
}

func (r *storyRepository) Get(ctx context.Context, id, category string) (*entity.Story, string, error) {
	doc, err := r.store.Get(ctx, docstore.ContainerStoryClusters, id, category)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, "", entity.ErrNotFound
		}
		return nil, "", fmt.Errorf("get story %s: %w", id, err)
	}
	story, err := decodeStory(doc)
	if err != nil {
		return nil, "", err
	}
	return story, doc.ETag, nil
}

func (r *storyRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	docs, err := r.store.Query(ctx, docstore.ContainerStoryClusters, docstore.Predicate{
		Equals: map[string]any{"id": id},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("query story %s: %w", id, err)
	}
	if len(docs) == 0 {
		return nil, entity.ErrNotFound
	}
	return decodeStory(&docs[0])
}

func (r *storyRepository) Create(ctx context.Context, story *entity.Story) (string, error) {
	body, err := json.Marshal(story)
	if err != nil {
		return "", fmt.Errorf("encode story %s: %w", story.ID, err)
	}
	doc := docstore.Document{
		Container: docstore.ContainerStoryClusters,
		ID:        story.ID,
		Partition: story.Partition(),
		Body:      body,
	}
	return r.store.Upsert(ctx, docstore.ContainerStoryClusters, doc, "")
}

func (r *storyRepository) Update(ctx context.Context, story *entity.Story, etag string) (string, error) {
	body, err := json.Marshal(story)
	if err != nil {
		return "", fmt.Errorf("encode story %s: %w", story.ID, err)
	}
	doc := docstore.Document{
		Container: docstore.ContainerStoryClusters,
		ID:        story.ID,
		Partition: story.Partition(),
		Body:      body,
	}
	return r.store.Upsert(ctx, docstore.ContainerStoryClusters, doc, etag)
}

func (r *storyRepository) CandidatesForCategory(ctx context.Context, category string, now time.Time, window time.Duration, limit int) ([]entity.Story, error) {
	cutoff := now.Add(-window).UTC().Format(time.RFC3339)
	docs, err := r.store.Query(ctx, docstore.ContainerStoryClusters, docstore.Predicate{
		Partition: category,
		GTE:       map[string]any{"last_updated": cutoff},
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query story candidates for %s: %w", category, err)
	}
	return decodeStories(docs)
}

func (r *storyRepository) FeedCandidates(ctx context.Context, category string, now time.Time, window time.Duration, limit int) ([]entity.Story, error) {
	cutoff := now.Add(-window).UTC().Format(time.RFC3339)
	pred := docstore.Predicate{
		GTE:   map[string]any{"last_updated": cutoff},
		Limit: limit,
	}
	if category != "" {
		pred.Partition = category
	}

	docs, err := r.store.Query(ctx, docstore.ContainerStoryClusters, pred)
	if err != nil {
		return nil, fmt.Errorf("query feed candidates: %w", err)
	}

	stories, err := decodeStories(docs)
	if err != nil {
		return nil, err
	}

	filtered := stories[:0]
	for _, s := range stories {
		switch s.Status {
		case entity.StatusDeveloping, entity.StatusVerified, entity.StatusBreaking:
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func (r *storyRepository) ChangeFeed(ctx context.Context, leasePrefix string) (docstore.ChangeFeedConsumer, error) {
	return r.store.ChangeFeed(ctx, docstore.ContainerStoryClusters, leasePrefix)
}

func decodeStory(doc *docstore.Document) (*entity.Story, error) {
	var story entity.Story
	if err := json.Unmarshal(doc.Body, &story); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", doc.ID, err)
	}
	return &story, nil
}

func decodeStories(docs []docstore.Document) ([]entity.Story, error) {
	stories := make([]entity.Story, 0, len(docs))
	for _, doc := range docs {
		var story entity.Story
		if err := json.Unmarshal(doc.Body, &story); err != nil {
			return nil, fmt.Errorf("decode story %s: %w", doc.ID, err)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// SortByRecency orders stories by (status == BREAKING desc, last_updated
// desc), the exact in-application sort §4.4 and §4.7 require in place of
// the store's unreliable ordered query.
func SortByRecency(stories []entity.Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		iBreaking := stories[i].Status == entity.StatusBreaking
		jBreaking := stories[j].Status == entity.StatusBreaking
		if iBreaking != jBreaking {
			return iBreaking
		}
		return stories[i].LastUpdated.After(stories[j].LastUpdated)
	})
}
