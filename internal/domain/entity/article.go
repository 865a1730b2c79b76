// Package entity defines the core domain entities and validation logic for the
// news aggregation pipeline: Article, Story, and the store-adjacent records
// (PollState, BatchTracking) the pipeline shares across subsystems.
package entity

import "time"

// Article represents a single source's rendering of a news event. It is
// immutable after insert except for the Processed and StoryID fields, which
// the Clustering Engine sets once it has attached the article to a story.
//
// ID is derived from hash(source + canonical URL), so a re-fetch of the same
// item collides with the original insert rather than duplicating it.
type Article struct {
	ID                 string    `json:"id"`
	Source             string    `json:"source"`
	SourceName         string    `json:"source_name"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	URL                string    `json:"url"`
	PublishedAt        time.Time `json:"published_at"`
	FetchedAt          time.Time `json:"fetched_at"`
	Category           string    `json:"category"`
	CategoryConfidence float64   `json:"category_confidence"`
	StoryFingerprint   string    `json:"story_fingerprint"`
	Processed          bool      `json:"processed"`
	StoryID            string    `json:"story_id,omitempty"`
}

// Partition returns the document-store partition key for an article: its
// category, per the data model in §3.
func (a *Article) Partition() string { return a.Category }

// SourceArticleRef is a story's per-source entry: a compact reference back to
// the article that contributed it, kept in insertion order inside
// Story.SourceArticles.
type SourceArticleRef struct {
	ArticleID   string    `json:"article_id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}
