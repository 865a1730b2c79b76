package feedapi

import (
	"fmt"
	"net/http"
	"strconv"

	"newsfeed/internal/common/pagination"
)

// QueryParams is the parsed, validated set of query parameters the feed
// endpoint accepts: an optional category filter plus offset/limit
// pagination (§6: "either offset/limit, default 20, max 100, or opaque
// cursor" — this API takes the offset/limit form).
type QueryParams struct {
	Category string
	Limit    int
	Offset   int
}

// ParseFeedQueryParams parses category/limit/offset from the request,
// applying the same default/max-limit bounds as the page-based pagination
// package (internal/common/pagination) without adopting its page-based
// Params shape, which doesn't fit an offset cursor.
func ParseFeedQueryParams(r *http.Request, cfg pagination.Config) (QueryParams, error) {
	params := QueryParams{
		Category: r.URL.Query().Get("category"),
		Limit:    cfg.DefaultLimit,
		Offset:   0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > cfg.MaxLimit {
			return params, fmt.Errorf("invalid query parameter: limit must be between 1 and %d", cfg.MaxLimit)
		}
		params.Limit = limit
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return params, fmt.Errorf("invalid query parameter: offset must be a non-negative integer")
		}
		params.Offset = offset
	}

	return params, nil
}
