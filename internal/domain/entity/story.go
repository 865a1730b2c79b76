package entity

import "time"

// Status is a story's verification state. Stories advance strictly forward as
// corroborating sources accumulate; see internal/domain/status for the
// transition table.
type Status string

const (
	StatusMonitoring Status = "MONITORING"
	StatusDeveloping Status = "DEVELOPING"
	StatusVerified   Status = "VERIFIED"
	StatusBreaking   Status = "BREAKING"
)

// Summary is the AI-generated synopsis attached to a story by the
// Summarizer. Version is pinned to the SourceCount the story had at
// generation time; a summary is stale once SourceCount grows past it.
type Summary struct {
	Text        string    `json:"text"`
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Model       string    `json:"model"`
	WordCount   int       `json:"word_count"`
}

// Story is a cluster of articles believed to describe the same event. It is
// mutable: the Clustering Engine appends source articles and the Status
// Transitioner and Summarizer update its status and summary respectively, but
// it is never deleted by the core.
type Story struct {
	ID                 string             `json:"id"`
	Category           string             `json:"category"`
	Title              string             `json:"title"`
	PrimarySource      string             `json:"primary_source"`
	SourceArticles     []SourceArticleRef `json:"source_articles"`
	SourceCount        int                `json:"source_count"`
	EventFingerprint   string             `json:"event_fingerprint"`
	Status             Status             `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	LastUpdated        time.Time          `json:"last_updated"`
	LastSourceAddedAt  time.Time          `json:"last_source_added_at"`
	BreakingDetectedAt *time.Time         `json:"breaking_detected_at,omitempty"`
	UpdateSignificance float64            `json:"update_significance"`
	Summary            *Summary           `json:"summary,omitempty"`
	SummaryAttempts    int                `json:"summary_attempts"`
	LastSummaryError   string             `json:"last_summary_error,omitempty"`
}

// Partition returns the document-store partition key for a story: its
// category, per the data model in §3.
func (s *Story) Partition() string { return s.Category }

// HasSource reports whether any of the story's source articles already came
// from the given source id (invariant 2: no duplicate source per story).
func (s *Story) HasSource(source string) bool {
	for _, ref := range s.SourceArticles {
		if ref.Source == source {
			return true
		}
	}
	return false
}

// HasArticle reports whether the story already lists the given article id
// among its source articles, the idempotency check the Clustering Engine
// uses to recognize a redelivered, already-attached article (§4.4 step 1).
func (s *Story) HasArticle(articleID string) bool {
	for _, ref := range s.SourceArticles {
		if ref.ArticleID == articleID {
			return true
		}
	}
	return false
}

// NeedsSummary reports whether the story's current summary (if any) is stale
// relative to its source count, the trigger condition both the change-feed
// consumer and the backfill sweep apply in the Summarizer.
func (s *Story) NeedsSummary() bool {
	if s.SourceCount < 1 || s.Status == StatusMonitoring {
		return false
	}
	return s.Summary == nil || s.Summary.Version < s.SourceCount
}

// PollState tracks a single feed's scheduling state in the poll-state store:
// when it was last polled, when it is next due, and its backoff state after
// consecutive failures.
type PollState struct {
	FeedID       string    `json:"feed_id"`
	LastPollAt   time.Time `json:"last_poll_at"`
	NextDueAt    time.Time `json:"next_due_at"`
	FailureCount int       `json:"failure_count"`
	BackoffUntil time.Time `json:"backoff_until"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
}

// Partition returns the document-store partition key for a poll state: the
// feed id, per the container table in §6.
func (p *PollState) Partition() string { return p.FeedID }

// BatchTrackingStatus is the lifecycle state of a submitted LLM batch job.
type BatchTrackingStatus string

const (
	BatchSubmitted BatchTrackingStatus = "submitted"
	BatchRunning   BatchTrackingStatus = "running"
	BatchCompleted BatchTrackingStatus = "completed"
	BatchFailed    BatchTrackingStatus = "failed"
)

// BatchTracking records a batch summarization job: the prompts submitted
// together, claimed later by polling the batch id.
type BatchTracking struct {
	BatchID      string              `json:"batch_id"`
	Status       BatchTrackingStatus `json:"status"`
	SubmittedAt  time.Time           `json:"submitted_at"`
	StoryIDs     []string            `json:"story_ids"`
	CostEstimate float64             `json:"cost_estimate"`
}

// Partition returns the document-store partition key for a batch record: the
// batch id, per the container table in §6.
func (b *BatchTracking) Partition() string { return b.BatchID }
