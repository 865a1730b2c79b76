package feedapi

import (
	"time"

	"newsfeed/internal/domain/entity"
)

// storySummaryDTO is the compact story shape returned by /feed and
// /breaking: enough to render a feed card, without the full source list.
type storySummaryDTO struct {
	ID            string     `json:"id"`
	Category      string     `json:"category"`
	Title         string     `json:"title"`
	PrimarySource string     `json:"primary_source"`
	SourceCount   int        `json:"source_count"`
	Status        string     `json:"status"`
	LastUpdated   time.Time  `json:"last_updated"`
	Summary       *string    `json:"summary,omitempty"`
	BreakingSince *time.Time `json:"breaking_since,omitempty"`
}

// storyDetailDTO is the full story shape returned by /story/{id},
// including every source article.
type storyDetailDTO struct {
	storySummaryDTO
	SourceArticles []sourceArticleDTO `json:"source_articles"`
}

type sourceArticleDTO struct {
	ArticleID   string    `json:"article_id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

func toStorySummaryDTO(s entity.Story) storySummaryDTO {
	dto := storySummaryDTO{
		ID:            s.ID,
		Category:      s.Category,
		Title:         s.Title,
		PrimarySource: s.PrimarySource,
		SourceCount:   s.SourceCount,
		Status:        string(s.Status),
		LastUpdated:   s.LastUpdated,
		BreakingSince: s.BreakingDetectedAt,
	}
	if s.Summary != nil {
		dto.Summary = &s.Summary.Text
	}
	return dto
}

func toStoryDetailDTO(s entity.Story) storyDetailDTO {
	refs := make([]sourceArticleDTO, len(s.SourceArticles))
	for i, ref := range s.SourceArticles {
		refs[i] = sourceArticleDTO{
			ArticleID:   ref.ArticleID,
			Source:      ref.Source,
			Title:       ref.Title,
			URL:         ref.URL,
			PublishedAt: ref.PublishedAt,
		}
	}
	return storyDetailDTO{
		storySummaryDTO: toStorySummaryDTO(s),
		SourceArticles:  refs,
	}
}

// feedResponse is the body of GET /feed.
type feedResponse struct {
	Stories  []storySummaryDTO `json:"stories"`
	Category string            `json:"category,omitempty"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// lastModifiedResponse is the body of GET /feed/last-modified.
type lastModifiedResponse struct {
	LastModified *time.Time `json:"last_modified"`
}

// sourcesResponse is the body of GET /story/{id}/sources.
type sourcesResponse struct {
	SourceArticles []sourceArticleDTO `json:"source_articles"`
}

// componentHealth is one row of /admin/metrics's component health array.
type componentHealth struct {
	Component      string    `json:"component"`
	State          string    `json:"state"`
	Message        string    `json:"message,omitempty"`
	LastChecked    time.Time `json:"last_checked"`
	ResponseTimeMS int64     `json:"response_time_ms"`
}

// adminMetricsResponse is the body of GET /admin/metrics.
type adminMetricsResponse struct {
	Components            []componentHealth `json:"components"`
	ArticlesIngested24h   int               `json:"articles_ingested_24h"`
	StoriesCreated24h     int               `json:"stories_created_24h"`
	SummariesGenerated24h int               `json:"summaries_generated_24h"`
	AvgSourcesPerStory    float64           `json:"avg_sources_per_story"`
}
