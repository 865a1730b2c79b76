package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
)

// PollStateRepository is the typed view over the feed_poll_states
// container, written only by the Feed Poller coordinator (§5).
type PollStateRepository interface {
	// Get returns the feed's poll state and the docstore concurrency etag to
	// pass back to Upsert. Note this is distinct from entity.PollState.ETag,
	// which is the feed's own HTTP ETag used for conditional GET.
	Get(ctx context.Context, feedID string) (*entity.PollState, string, error)

	// Upsert creates or updates a feed's poll state. etag is the docstore
	// etag returned by the prior Get/Upsert, or "" to create.
	Upsert(ctx context.Context, state *entity.PollState, etag string) (newETag string, err error)

	// ListDue returns poll states whose NextDueAt has passed, for the
	// coordinator's per-cycle feed selection (§4.3). Results are unordered;
	// the coordinator sorts by LastPollAt to prioritize starved feeds.
	ListDue(ctx context.Context, nowRFC3339 string) ([]entity.PollState, error)
}

type pollStateRepository struct {
	store docstore.Store
}

// NewPollStateRepository builds a PollStateRepository over the given store.
func NewPollStateRepository(store docstore.Store) PollStateRepository {
	return &pollStateRepository{store: store}
}

func (r *pollStateRepository) Get(ctx context.Context, feedID string) (*entity.PollState, string, error) {
	doc, err := r.store.Get(ctx, docstore.ContainerFeedPollState, feedID, feedID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, "", entity.ErrNotFound
		}
		return nil, "", fmt.Errorf("get poll state %s: %w", feedID, err)
	}
	var state entity.PollState
	if err := json.Unmarshal(doc.Body, &state); err != nil {
		return nil, "", fmt.Errorf("decode poll state %s: %w", feedID, err)
	}
	return &state, doc.ETag, nil
}

func (r *pollStateRepository) Upsert(ctx context.Context, state *entity.PollState, etag string) (string, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode poll state %s: %w", state.FeedID, err)
	}
	doc := docstore.Document{
		Container: docstore.ContainerFeedPollState,
		ID:        state.FeedID,
		Partition: state.Partition(),
		Body:      body,
	}
	return r.store.Upsert(ctx, docstore.ContainerFeedPollState, doc, etag)
}

func (r *pollStateRepository) ListDue(ctx context.Context, nowRFC3339 string) ([]entity.PollState, error) {
	// feed_poll_states is not bounded by a business-category partition; the
	// coordinator scans the whole container, which stays small (one
	// document per configured feed, on the order of ~120).
	docs, err := r.store.Query(ctx, docstore.ContainerFeedPollState, docstore.Predicate{})
	if err != nil {
		return nil, fmt.Errorf("list due poll states: %w", err)
	}

	states := make([]entity.PollState, 0, len(docs))
	for _, doc := range docs {
		var state entity.PollState
		if err := json.Unmarshal(doc.Body, &state); err != nil {
			return nil, fmt.Errorf("decode poll state %s: %w", doc.ID, err)
		}
		if state.NextDueAt.IsZero() || !state.NextDueAt.After(parseOrZero(nowRFC3339)) {
			states = append(states, state)
		}
	}
	return states, nil
}
