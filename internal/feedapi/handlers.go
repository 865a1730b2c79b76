package feedapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"newsfeed/internal/clock"
	"newsfeed/internal/common/pagination"
	"newsfeed/internal/docstore"
	"newsfeed/internal/domain/entity"
	"newsfeed/internal/handler/http/respond"
	"newsfeed/internal/llm"
	"newsfeed/internal/observability/metrics"
	"newsfeed/internal/poll"
	"newsfeed/internal/repository"
)

const (
	storyPrefix   = "/story/"
	sourcesSuffix = "/sources"
)

const feedCacheTTL = 30 * time.Second

// FeedHandler serves GET /feed: a diversified, paginated page of
// DEVELOPING/VERIFIED/BREAKING stories, optionally scoped to a category.
type FeedHandler struct {
	Stories       repository.StoryRepository
	Clock         clock.Clock
	PaginationCfg pagination.Config
	Cache         *responseCache
}

func (h FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := ParseFeedQueryParams(r, h.PaginationCfg)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	now := h.Clock.Now()
	lastModified, err := queryLastModified(r.Context(), h.Stories, now, params.Category)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	cacheKeyTime := now
	if lastModified != nil {
		cacheKeyTime = *lastModified
	}
	key := feedCacheKey(params.Category, params.Limit, params.Offset, cacheKeyTime)

	if body, ok := h.Cache.get(key, now); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
		return
	}

	page, err := queryFeed(r.Context(), h.Stories, now, params)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]storySummaryDTO, len(page))
	for i, s := range page {
		summaries[i] = toStorySummaryDTO(s)
	}
	resp := feedResponse{
		Stories:  summaries,
		Category: params.Category,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}

	body, err := json.Marshal(resp)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	h.Cache.set(key, body, now)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// LastModifiedHandler serves GET /feed/last-modified: the most recent
// LastUpdated timestamp across the feed's scope, for conditional-GET
// clients that only want to know whether anything changed.
type LastModifiedHandler struct {
	Stories repository.StoryRepository
	Clock   clock.Clock
}

func (h LastModifiedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	lastModified, err := queryLastModified(r.Context(), h.Stories, h.Clock.Now(), category)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, lastModifiedResponse{LastModified: lastModified})
}

// BreakingHandler serves GET /breaking: every currently-BREAKING story.
type BreakingHandler struct {
	Stories       repository.StoryRepository
	Clock         clock.Clock
	PaginationCfg pagination.Config
}

func (h BreakingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := h.PaginationCfg.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		params, err := ParseFeedQueryParams(r, h.PaginationCfg)
		if err != nil {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		limit = params.Limit
	}

	stories, err := queryBreaking(r.Context(), h.Stories, h.Clock.Now(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]storySummaryDTO, len(stories))
	for i, s := range stories {
		summaries[i] = toStorySummaryDTO(s)
	}
	respond.JSON(w, http.StatusOK, feedResponse{Stories: summaries, Limit: limit})
}

// storyRouter dispatches the single "/story/" mux pattern between the
// detail and sources handlers based on a trailing "/sources" segment,
// mirroring the rest of the codebase's trailing-slash-plus-manual-suffix
// routing rather than Go's newer {id} mux wildcards.
type storyRouter struct {
	detail  http.Handler
	sources http.Handler
}

func (s storyRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, sourcesSuffix) {
		s.sources.ServeHTTP(w, r)
		return
	}
	s.detail.ServeHTTP(w, r)
}

// StoryHandler serves GET /story/{id}: the full detail of a single story,
// regardless of which category partition it lives in.
type StoryHandler struct {
	Stories repository.StoryRepository
}

func (h StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := extractStoryID(r.URL.Path, storyPrefix, "")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	story, err := h.Stories.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			respond.SafeError(w, http.StatusNotFound, errors.New("story not found"))
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toStoryDetailDTO(*story))
}

// SourcesHandler serves GET /story/{id}/sources: just the source article
// list of a single story, for clients that don't need the full detail DTO.
type SourcesHandler struct {
	Stories repository.StoryRepository
}

func (h SourcesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := extractStoryID(r.URL.Path, storyPrefix, sourcesSuffix)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	story, err := h.Stories.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			respond.SafeError(w, http.StatusNotFound, errors.New("story not found"))
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	detail := toStoryDetailDTO(*story)
	respond.JSON(w, http.StatusOK, sourcesResponse{SourceArticles: detail.SourceArticles})
}

// AdminMetricsHandler serves GET /admin/metrics: component health plus the
// rolling 24h pipeline counters, gated behind feedapi/auth.RequireAdmin by
// the caller that registers this handler.
type AdminMetricsHandler struct {
	Clock       clock.Clock
	DocStore    docstore.HealthReporter
	LLM         llm.HealthReporter
	FeedFetcher *poll.FeedFetcher
}

func (h AdminMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := h.Clock.Now()
	components := []componentHealth{
		breakerHealth("docstore", h.DocStore.CircuitBreakerState(), now),
	}
	if h.LLM != nil {
		components = append(components, breakerHealth("llm", h.LLM.CircuitBreakerState(), now))
	}
	if h.FeedFetcher != nil {
		components = append(components, breakerHealth("feed_fetcher", h.FeedFetcher.CircuitBreakerState(), now))
	}

	snapshot := metrics.ReadPipelineSnapshot()
	respond.JSON(w, http.StatusOK, adminMetricsResponse{
		Components:            components,
		ArticlesIngested24h:   snapshot.ArticlesIngested24h,
		StoriesCreated24h:     snapshot.StoriesCreated24h,
		SummariesGenerated24h: snapshot.SummariesGenerated24h,
		AvgSourcesPerStory:    snapshot.AvgSourcesPerStory,
	})
}

// breakerHealth translates a gobreaker state string into the §4.7
// health/state vocabulary: "open" means the dependency is failing calls
// outright (down), "half-open" means it's being probed after a trip
// (degraded), "closed" means normal operation (healthy).
func breakerHealth(component, state string, now time.Time) componentHealth {
	health := componentHealth{Component: component, LastChecked: now}
	switch state {
	case "open":
		health.State = "down"
		health.Message = "circuit breaker open"
	case "half-open":
		health.State = "degraded"
		health.Message = "circuit breaker probing after trip"
	default:
		health.State = "healthy"
	}
	return health
}
