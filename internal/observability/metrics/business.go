package metrics

import (
	"fmt"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// RecordArticlesFetched records the number of articles fetched from a source.
// This metric helps track feed crawling performance and source activity.
func RecordArticlesFetched(sourceName string, sourceID int64, count int) {
	ArticlesFetchedTotal.WithLabelValues(
		sourceName,
		fmt.Sprintf("%d", sourceID),
	).Add(float64(count))
}

// RecordArticleSummarized records the result of an article summarization operation.
// Status should be either "success" or "failure".
func RecordArticleSummarized(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	ArticlesSummarizedTotal.WithLabelValues(status).Inc()
}

// RecordSummarizationDuration records the time taken to summarize an article.
// This helps identify performance issues with the AI summarization service.
func RecordSummarizationDuration(duration time.Duration) {
	SummarizationDuration.Observe(duration.Seconds())
}

// RecordFeedCrawl records metrics for a feed crawl operation.
func RecordFeedCrawl(sourceID int64, duration time.Duration, itemsFound, itemsInserted, itemsDuplicated int64) {
	FeedCrawlDuration.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
	).Observe(duration.Seconds())

	// Record the breakdown of items processed
	if itemsFound > 0 {
		RecordArticlesFetched("", sourceID, int(itemsFound))
	}
}

// RecordFeedCrawlError records an error during feed crawling.
func RecordFeedCrawlError(sourceID int64, errorType string) {
	FeedCrawlErrors.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
		errorType,
	).Inc()
}

// UpdateArticlesTotal updates the total count of articles in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateArticlesTotal(count int) {
	ArticlesTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// RecordContentFetchSuccess records a successful content fetch operation.
// This tracks both the duration and size of fetched content.
//
// Parameters:
//   - duration: Time taken to fetch the content
//   - size: Size of fetched content in characters
//
// Example:
//
//	start := time.Now()
//	content, err := fetcher.FetchContent(ctx, url)
//	if err == nil {
//	    RecordContentFetchSuccess(time.Since(start), len(content))
//	}
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
//
// Parameters:
//   - duration: Time taken before the fetch failed
//
// Example:
//
//	start := time.Now()
//	_, err := fetcher.FetchContent(ctx, url)
//	if err != nil {
//	    RecordContentFetchFailed(time.Since(start))
//	}
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a skipped content fetch operation.
// This occurs when RSS content is sufficient (>= threshold) and fetching is unnecessary.
//
// Example:
//
//	if len(rssContent) >= threshold {
//	    RecordContentFetchSkipped()
//	    return rssContent
//	}
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordClusterDecision records the Clustering Engine's outcome for a single
// article: "attach" (joined an existing story), "create" (started a new
// one), "duplicate_source" (rejected per invariant 2), or "skip" (already
// processed).
func RecordClusterDecision(category, decision string) {
	ClusterDecisionsTotal.WithLabelValues(category, decision).Inc()
}

// RecordClusterDeadLetter records an article that exhausted its attach
// retries without being clustered.
func RecordClusterDeadLetter(category string) {
	ClusterDeadLetterTotal.WithLabelValues(category).Inc()
}

// RecordClusterAttachDuration records the time spent resolving a single
// article to a story cluster.
func RecordClusterAttachDuration(duration time.Duration) {
	ClusterAttachDuration.Observe(duration.Seconds())
}

// UpdatePipelineSnapshot refreshes the rolling 24h business gauges, called
// periodically by the status sweep.
func UpdatePipelineSnapshot(articlesIngested, storiesCreated, summariesGenerated int, avgSources float64) {
	ArticlesIngested24h.Set(float64(articlesIngested))
	StoriesCreated24h.Set(float64(storiesCreated))
	SummariesGenerated24h.Set(float64(summariesGenerated))
	AvgSourcesPerStory.Set(avgSources)
}

// PipelineSnapshot is the set of rolling business counts last recorded by
// UpdatePipelineSnapshot.
type PipelineSnapshot struct {
	ArticlesIngested24h   int
	StoriesCreated24h     int
	SummariesGenerated24h int
	AvgSourcesPerStory    float64
}

// ReadPipelineSnapshot reads back the current values of the rolling business
// gauges. Gauges only expose their value through the collector interface, so
// each read goes through a Write into a dto.Metric rather than a stored field.
func ReadPipelineSnapshot() PipelineSnapshot {
	return PipelineSnapshot{
		ArticlesIngested24h:   int(readGaugeValue(ArticlesIngested24h)),
		StoriesCreated24h:     int(readGaugeValue(StoriesCreated24h)),
		SummariesGenerated24h: int(readGaugeValue(SummariesGenerated24h)),
		AvgSourcesPerStory:    readGaugeValue(AvgSourcesPerStory),
	}
}

func readGaugeValue(g interface{ Write(*dto.Metric) error }) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_articles", "insert_article").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
