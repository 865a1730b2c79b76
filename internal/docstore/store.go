// Package docstore defines the document-store contract the core pipeline
// consumes, per §6: point reads, partitioned queries, atomic upsert with
// optimistic concurrency, and a per-container change feed delivered in
// commit order to a single active consumer per lease prefix.
//
// The store's query path deliberately does not support server-side
// ordering: the known source defect this contract reproduces is that the
// store's ordered query omits fields, so callers must sort in application
// code and bound result sets with predicates (see SPEC_FULL.md §0). Query
// never returns results pre-sorted by any field; Get is unaffected since it
// addresses a single document directly.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Well-known container names, matching the containers named in §6.
const (
	ContainerRawArticles   = "raw_articles"
	ContainerStoryClusters = "story_clusters"
	ContainerLeases        = "leases"
	ContainerFeedPollState = "feed_poll_states"
	ContainerBatchTracking = "batch_tracking"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates Get found no document with the given id/partition.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrPreconditionFailed indicates Upsert's etag no longer matches the
	// stored document (optimistic-concurrency conflict).
	ErrPreconditionFailed = errors.New("docstore: precondition failed")
)

// Document is a single stored record: its container-scoped id, partition
// key, opaque concurrency token, and JSON body.
type Document struct {
	Container string
	ID        string
	Partition string
	ETag      string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// Predicate describes a bounded, partitioned query. Equals, GTE, and In are
// matched against top-level JSON fields of the document body. Predicate
// intentionally carries no sort order — Query results are unordered; callers
// sort in application code.
type Predicate struct {
	// Partition restricts the query to a single partition. Required for
	// the store to bound its scan; the empty string matches no partition
	// filter and is reserved for containers that are not partitioned by a
	// business key (e.g. leases).
	Partition string

	// Equals restricts to documents whose field equals the given value.
	Equals map[string]any

	// GTE restricts to documents whose field is >= the given value
	// (used for time-range bounding, e.g. last_updated >= cutoff).
	GTE map[string]any

	// In restricts to documents whose field is one of the given values.
	In map[string][]any

	// Limit caps the number of documents returned. Zero means unbounded,
	// which callers should avoid on any container-scanning query.
	Limit int
}

// Store is the document-store contract every subsystem consumes. The one
// concrete implementation wired into SPEC_FULL.md is internal/docstore/postgres;
// internal/docstore/memory backs deterministic tests.
type Store interface {
	// Get returns the document with the given id and partition, or
	// ErrNotFound.
	Get(ctx context.Context, container, id, partition string) (*Document, error)

	// Query returns documents matching pred. Results are not guaranteed to
	// be in any particular order — see the package doc.
	Query(ctx context.Context, container string, pred Predicate) ([]Document, error)

	// Upsert atomically creates or updates a document. If etag is empty,
	// Upsert creates the document and fails with ErrPreconditionFailed if
	// one already exists at (container, id). If etag is non-empty, Upsert
	// updates only if the stored document's current etag matches, failing
	// with ErrPreconditionFailed otherwise. On success it returns the new
	// etag.
	Upsert(ctx context.Context, container string, doc Document, etag string) (newETag string, err error)

	// ChangeFeed returns a consumer over container's change log, checkpointed
	// per leasePrefix. Only one active consumer per (container, leasePrefix)
	// should run at a time; the contract does not enforce this, callers are
	// expected to run a single consumer per lease the way a cron-scheduled
	// singleton process would.
	ChangeFeed(ctx context.Context, container, leasePrefix string) (ChangeFeedConsumer, error)
}

// ChangeOp is the kind of mutation a ChangeEvent records.
type ChangeOp string

const (
	ChangeOpInsert ChangeOp = "insert"
	ChangeOpUpdate ChangeOp = "update"
)

// ChangeEvent is a single change-feed entry: enough to re-fetch the current
// document via Get. The feed does not carry the document body itself —
// consumers re-read via Get, which also means a consumer always observes the
// latest state rather than a stale snapshot from the time of the write.
type ChangeEvent struct {
	Seq         int64
	Container   string
	ID          string
	Partition   string
	Op          ChangeOp
	CommittedAt time.Time
}

// ChangeBatch is a page of change events delivered to a single consumer.
// Checkpoint must be called after the batch has been fully processed;
// failing to checkpoint causes the batch to be redelivered on the next Next
// call (at-least-once delivery, matching §4.4's idempotency requirement).
type ChangeBatch struct {
	Events     []ChangeEvent
	checkpoint func(ctx context.Context) error
}

// Checkpoint commits this batch's position for the consumer's lease,
// advancing the lease so the batch is not redelivered.
func (b *ChangeBatch) Checkpoint(ctx context.Context) error {
	if b.checkpoint == nil {
		return nil
	}
	return b.checkpoint(ctx)
}

// NewChangeBatch constructs a ChangeBatch backed by the given checkpoint
// closure. Store implementations use this to wire their own commit logic
// into the batch the consumer receives.
func NewChangeBatch(events []ChangeEvent, checkpoint func(ctx context.Context) error) *ChangeBatch {
	return &ChangeBatch{Events: events, checkpoint: checkpoint}
}

// ChangeFeedConsumer is a typed pull API over a container's change feed,
// per the re-architecture translation in SPEC_FULL.md §0: the feed is
// modeled as explicit polling with explicit checkpointing, not an implicit
// callback.
type ChangeFeedConsumer interface {
	// Next blocks (subject to ctx) until at least one new change event is
	// available, or returns an empty batch if the context is done.
	Next(ctx context.Context) (*ChangeBatch, error)
}
