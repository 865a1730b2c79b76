package feedapi

import (
	"net/http"

	"newsfeed/internal/clock"
	"newsfeed/internal/common/pagination"
	"newsfeed/internal/docstore"
	"newsfeed/internal/feedapi/auth"
	"newsfeed/internal/llm"
	"newsfeed/internal/poll"
	"newsfeed/internal/repository"
)

// Deps wires everything the Feed API's handlers need. LLM and FeedFetcher
// are optional: cmd/api runs as its own process, separate from the
// cluster/summarizer/poller workers that actually hold those circuit
// breakers in memory, so a given deployment may not have them wired and
// /admin/metrics simply omits those component rows.
type Deps struct {
	Stories       repository.StoryRepository
	DocStore      docstore.HealthReporter
	LLM           llm.HealthReporter
	FeedFetcher   *poll.FeedFetcher
	Clock         clock.Clock
	PaginationCfg pagination.Config
	AdminSecret   []byte
}

// Register wires every §4.7 route onto mux: the five public read routes
// plus the admin-gated metrics route.
func Register(mux *http.ServeMux, deps Deps) {
	cache := newResponseCache(feedCacheTTL)

	mux.Handle("GET /feed", FeedHandler{
		Stories:       deps.Stories,
		Clock:         deps.Clock,
		PaginationCfg: deps.PaginationCfg,
		Cache:         cache,
	})
	mux.Handle("GET /feed/last-modified", LastModifiedHandler{
		Stories: deps.Stories,
		Clock:   deps.Clock,
	})
	mux.Handle("GET /breaking", BreakingHandler{
		Stories:       deps.Stories,
		Clock:         deps.Clock,
		PaginationCfg: deps.PaginationCfg,
	})
	mux.Handle("GET /story/", storyRouter{
		detail:  StoryHandler{Stories: deps.Stories},
		sources: SourcesHandler{Stories: deps.Stories},
	})

	adminHandler := AdminMetricsHandler{
		Clock:       deps.Clock,
		DocStore:    deps.DocStore,
		LLM:         deps.LLM,
		FeedFetcher: deps.FeedFetcher,
	}
	mux.Handle("GET /admin/metrics", auth.RequireAdmin(deps.AdminSecret, adminHandler))
}
