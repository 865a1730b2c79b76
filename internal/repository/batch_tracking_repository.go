package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
)

// BatchTrackingRepository is the typed view over the batch_tracking
// container, used by the Summarizer's batch-mode path (§4.6).
type BatchTrackingRepository interface {
	Get(ctx context.Context, batchID string) (*entity.BatchTracking, string, error)
	Create(ctx context.Context, batch *entity.BatchTracking) (etag string, err error)
	Update(ctx context.Context, batch *entity.BatchTracking, etag string) (newETag string, err error)
}

type batchTrackingRepository struct {
	store docstore.Store
}

// NewBatchTrackingRepository builds a BatchTrackingRepository over the
// given store.
func NewBatchTrackingRepository(store docstore.Store) BatchTrackingRepository {
	return &batchTrackingRepository{store: store}
}

func (r *batchTrackingRepository) Get(ctx context.Context, batchID string) (*entity.BatchTracking, string, error) {
	doc, err := r.store.Get(ctx, docstore.ContainerBatchTracking, batchID, batchID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, "", entity.ErrNotFound
		}
		return nil, "", fmt.Errorf("get batch %s: %w", batchID, err)
	}
	var batch entity.BatchTracking
	if err := json.Unmarshal(doc.Body, &batch); err != nil {
		return nil, "", fmt.Errorf("decode batch %s: %w", batchID, err)
	}
	return &batch, doc.ETag, nil
}

func (r *batchTrackingRepository) Create(ctx context.Context, batch *entity.BatchTracking) (string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("encode batch %s: %w", batch.BatchID, err)
	}
	doc := docstore.Document{
		Container: docstore.ContainerBatchTracking,
		ID:        batch.BatchID,
		Partition: batch.Partition(),
		Body:      body,
	}
	return r.store.Upsert(ctx, docstore.ContainerBatchTracking, doc, "")
}

func (r *batchTrackingRepository) Update(ctx context.Context, batch *entity.BatchTracking, etag string) (string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("encode batch %s: %w", batch.BatchID, err)
	}
	doc := docstore.Document{
		Container: docstore.ContainerBatchTracking,
		ID:        batch.BatchID,
		Partition: batch.Partition(),
		Body:      body,
	}
	return r.store.Upsert(ctx, docstore.ContainerBatchTracking, doc, etag)
}
