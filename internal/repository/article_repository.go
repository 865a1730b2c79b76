// Package repository provides typed, docstore-backed repositories for the
// pipeline's entities: Article, Story, PollState, and BatchTracking. Each
// repository translates between entity.* and internal/docstore.Document, and
// is the only place in the codebase that knows a container's JSON shape.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
)

// ArticleRepository is the typed view over the raw_articles container.
type ArticleRepository interface {
	// Get returns the article with the given id, or entity.ErrNotFound.
	Get(ctx context.Context, id, category string) (*entity.Article, error)

	// Create inserts a new article. On primary-key conflict (the article
	// already exists) it returns docstore.ErrPreconditionFailed, which
	// callers treat as an idempotent duplicate skip per §4.3.
	Create(ctx context.Context, article *entity.Article) error

	// MarkProcessed sets Processed and StoryID on an already-stored
	// article, retrying on optimistic-concurrency conflicts the same way
	// the Clustering Engine retries story attaches.
	MarkProcessed(ctx context.Context, id, category, storyID string) error

	// ChangeFeed returns a consumer over the raw_articles change log,
	// checkpointed under leasePrefix.
	ChangeFeed(ctx context.Context, leasePrefix string) (docstore.ChangeFeedConsumer, error)
}

type articleRepository struct {
	store docstore.Store
}

// NewArticleRepository builds an ArticleRepository over the given store.
func NewArticleRepository(store docstore.Store) ArticleRepository {
	return &articleRepository{store: store}
}

func (r *articleRepository) Get(ctx context.Context, id, category string) (*entity.Article, error) {
	doc, err := r.store.Get(ctx, docstore.ContainerRawArticles, id, category)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return decodeArticle(doc)
}

func (r *articleRepository) Create(ctx context.Context, article *entity.Article) error {
	body, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("encode article %s: %w", article.ID, err)
	}
	doc := docstore.Document{
		Container: docstore.ContainerRawArticles,
		ID:        article.ID,
		Partition: article.Partition(),
		Body:      body,
	}
	_, err = r.store.Upsert(ctx, docstore.ContainerRawArticles, doc, "")
	return err
}

const maxMarkProcessedAttempts = 3

func (r *articleRepository) MarkProcessed(ctx context.Context, id, category, storyID string) error {
	var lastErr error
	for attempt := 1; attempt <= maxMarkProcessedAttempts; attempt++ {
		doc, err := r.store.Get(ctx, docstore.ContainerRawArticles, id, category)
		if err != nil {
			return fmt.Errorf("mark processed: reload %s: %w", id, err)
		}
		article, err := decodeArticle(doc)
		if err != nil {
			return err
		}
		article.Processed = true
		article.StoryID = storyID

		body, err := json.Marshal(article)
		if err != nil {
			return fmt.Errorf("mark processed: encode %s: %w", id, err)
		}
		updated := docstore.Document{
			Container: docstore.ContainerRawArticles,
			ID:        id,
			Partition: category,
			Body:      body,
		}
		_, err = r.store.Upsert(ctx, docstore.ContainerRawArticles, updated, doc.ETag)
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrPreconditionFailed) {
			return fmt.Errorf("mark processed: upsert %s: %w", id, err)
		}
		lastErr = err
		_ = attempt
	}
	return fmt.Errorf("mark processed %s: %w after %d attempts", id, lastErr, maxMarkProcessedAttempts)
}

func (r *articleRepository) ChangeFeed(ctx context.Context, leasePrefix string) (docstore.ChangeFeedConsumer, error) {
	return r.store.ChangeFeed(ctx, docstore.ContainerRawArticles, leasePrefix)
}

func decodeArticle(doc *docstore.Document) (*entity.Article, error) {
	var article entity.Article
	if err := json.Unmarshal(doc.Body, &article); err != nil {
		return nil, fmt.Errorf("decode article %s: %w", doc.ID, err)
	}
	return &article, nil
}
