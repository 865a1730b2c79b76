package feedapi

import (
	"context"
	"time"

	"newsfeed/internal/domain/entity"
	"newsfeed/internal/repository"
)

// defaultWindow bounds the feed query's time window per §4.7 ("default 7
// days") for store-query performance.
const defaultWindow = 7 * 24 * time.Hour

// candidateMultiplier controls how many extra candidates beyond limit are
// fetched before diversification narrows them back down, per §4.7 step 2
// ("fetch 3·limit candidates").
const candidateMultiplier = 3

// maxScanLimit bounds any feed query that doesn't have a natural page
// size of its own (last-modified scans the whole scope); the store's
// query contract warns against an unbounded, container-scanning query.
const maxScanLimit = 1000

// queryFeed implements the §4.7 feed query pipeline: fetch, sort, diversify,
// then slice to limit+offset. It returns the diversified, paginated page
// plus the full pre-pagination candidate count (useful for callers that
// want to know whether more pages exist).
func queryFeed(ctx context.Context, stories repository.StoryRepository, now time.Time, params QueryParams) ([]entity.Story, error) {
	fetchLimit := candidateMultiplier * params.Limit
	candidates, err := stories.FeedCandidates(ctx, params.Category, now, defaultWindow, fetchLimit)
	if err != nil {
		return nil, err
	}

	repository.SortByRecency(candidates)
	diversified := Diversify(candidates)

	start := params.Offset
	if start > len(diversified) {
		start = len(diversified)
	}
	end := start + params.Limit
	if end > len(diversified) {
		end = len(diversified)
	}
	return diversified[start:end], nil
}

// queryBreaking returns every currently-BREAKING story, capped at limit,
// sorted most-recent first.
func queryBreaking(ctx context.Context, stories repository.StoryRepository, now time.Time, limit int) ([]entity.Story, error) {
	candidates, err := stories.FeedCandidates(ctx, "", now, defaultWindow, candidateMultiplier*limit)
	if err != nil {
		return nil, err
	}

	breaking := candidates[:0]
	for _, s := range candidates {
		if s.Status == entity.StatusBreaking {
			breaking = append(breaking, s)
		}
	}
	repository.SortByRecency(breaking)

	if len(breaking) > limit {
		breaking = breaking[:limit]
	}
	return breaking, nil
}

// queryLastModified returns the maximum LastUpdated across the feed's
// maturity-filtered, optionally category-scoped scope, or nil if the scope
// is empty.
func queryLastModified(ctx context.Context, stories repository.StoryRepository, now time.Time, category string) (*time.Time, error) {
	candidates, err := stories.FeedCandidates(ctx, category, now, defaultWindow, maxScanLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	max := candidates[0].LastUpdated
	for _, s := range candidates[1:] {
		if s.LastUpdated.After(max) {
			max = s.LastUpdated
		}
	}
	return &max, nil
}
