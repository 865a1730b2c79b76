// Package observability collects the Prometheus metrics recorders shared
// across the poller, cluster, summarizer, and feed API processes.
//
// Subpackages:
//   - metrics: Prometheus registry and recorders for pipeline throughput
//     and per-stage counters
//
// Example usage:
//
//	import "newsfeed/internal/observability/metrics"
//
//	func processArticles(source string) {
//	    metrics.RecordArticlesFetched(source, 10)
//	}
package observability
