// Package memory implements internal/docstore.Store in process memory, for
// deterministic unit tests of repositories and consumers that would
// otherwise need a live Postgres instance.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsfeed/internal/docstore"
)

type record struct {
	doc docstore.Document
}

type changeLogEntry struct {
	event docstore.ChangeEvent
}

// Store is an in-memory, mutex-protected implementation of docstore.Store.
// It reproduces the contract's ordering guarantees (change feed delivered
// in append order per consumer lease) without reproducing the field-omission
// defect the real store has on ordered queries, since Query here simply
// never exposes an order at all — exactly like the real contract.
type Store struct {
	mu         sync.Mutex
	documents  map[string]map[string]record // container -> id -> record
	changeLog  map[string][]changeLogEntry  // container -> ordered entries
	checkpoint map[string]int64             // container|leasePrefix -> last seq checkpointed
	seq        int64
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		documents:  make(map[string]map[string]record),
		changeLog:  make(map[string][]changeLogEntry),
		checkpoint: make(map[string]int64),
	}
}

func (s *Store) Get(_ context.Context, container, id, partition string) (*docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.documents[container]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	rec, ok := byID[id]
	if !ok || rec.doc.Partition != partition {
		return nil, docstore.ErrNotFound
	}
	docCopy := rec.doc
	return &docCopy, nil
}

func (s *Store) Query(_ context.Context, container string, pred docstore.Predicate) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.documents[container]
	results := make([]docstore.Document, 0, len(byID))

	for _, rec := range byID {
		if pred.Partition != "" && rec.doc.Partition != pred.Partition {
			continue
		}
		if !matchesPredicate(rec.doc, pred) {
			continue
		}
		results = append(results, rec.doc)
	}

	// Deliberately unordered beyond map iteration: shuffle-stable sort by id
	// only to keep test output reproducible across runs, NOT to imply any
	// field ordering guarantee to callers.
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	if pred.Limit > 0 && len(results) > pred.Limit {
		results = results[:pred.Limit]
	}
	return results, nil
}

func matchesPredicate(doc docstore.Document, pred docstore.Predicate) bool {
	var body map[string]any
	if len(doc.Body) > 0 {
		if err := json.Unmarshal(doc.Body, &body); err != nil {
			return false
		}
	}

	for field, want := range pred.Equals {
		if toComparable(body[field]) != toComparable(want) {
			return false
		}
	}
	for field, min := range pred.GTE {
		got, ok := body[field]
		if !ok || !gte(got, min) {
			return false
		}
	}
	for field, options := range pred.In {
		got, ok := body[field]
		if !ok {
			return false
		}
		matched := false
		for _, opt := range options {
			if toComparable(got) == toComparable(opt) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func toComparable(v any) any {
	switch t := v.(type) {
	case float64, string, bool, nil:
		return t
	default:
		return v
	}
}

// gte compares two values that are expected to be either RFC3339 time
// strings or numbers, the only two field types the core's queries bound by
// range (last_updated timestamps, source counts).
func gte(got, min any) bool {
	switch g := got.(type) {
	case float64:
		m, ok := min.(float64)
		return ok && g >= m
	case string:
		gt, err1 := time.Parse(time.RFC3339, g)
		mt, err2 := parseTimeLike(min)
		if err1 == nil && err2 == nil {
			return !gt.Before(mt)
		}
		m, ok := min.(string)
		return ok && g >= m
	default:
		return false
	}
}

func parseTimeLike(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return time.Parse(time.RFC3339, t)
	case time.Time:
		return t, nil
	}
	return time.Time{}, docstore.ErrNotFound
}

func (s *Store) Upsert(_ context.Context, container string, doc docstore.Document, etag string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.documents[container] == nil {
		s.documents[container] = make(map[string]record)
	}
	byID := s.documents[container]

	existing, exists := byID[doc.ID]

	op := docstore.ChangeOpInsert
	if etag == "" {
		if exists {
			return "", docstore.ErrPreconditionFailed
		}
	} else {
		if !exists || existing.doc.ETag != etag {
			return "", docstore.ErrPreconditionFailed
		}
		op = docstore.ChangeOpUpdate
	}

	newETag := uuid.NewString()
	doc.ETag = newETag
	doc.UpdatedAt = time.Now()
	byID[doc.ID] = record{doc: doc}

	s.seq++
	s.changeLog[container] = append(s.changeLog[container], changeLogEntry{
		event: docstore.ChangeEvent{
			Seq:         s.seq,
			Container:   container,
			ID:          doc.ID,
			Partition:   doc.Partition,
			Op:          op,
			CommittedAt: doc.UpdatedAt,
		},
	})

	return newETag, nil
}

func (s *Store) ChangeFeed(_ context.Context, container, leasePrefix string) (docstore.ChangeFeedConsumer, error) {
	return &consumer{store: s, container: container, leasePrefix: leasePrefix}, nil
}

type consumer struct {
	store       *Store
	container   string
	leasePrefix string
}

const consumerBatchLimit = 100

func (c *consumer) Next(ctx context.Context) (*docstore.ChangeBatch, error) {
	c.store.mu.Lock()
	key := c.container + "|" + c.leasePrefix
	checkpointed := c.store.checkpoint[key]
	log := c.store.changeLog[c.container]

	var pending []docstore.ChangeEvent
	for _, entry := range log {
		if entry.event.Seq > checkpointed {
			pending = append(pending, entry.event)
			if len(pending) >= consumerBatchLimit {
				break
			}
		}
	}
	c.store.mu.Unlock()

	if len(pending) == 0 {
		select {
		case <-ctx.Done():
			return docstore.NewChangeBatch(nil, func(context.Context) error { return nil }), ctx.Err()
		default:
			return docstore.NewChangeBatch(nil, func(context.Context) error { return nil }), nil
		}
	}

	newCheckpoint := pending[len(pending)-1].Seq
	return docstore.NewChangeBatch(pending, func(context.Context) error {
		c.store.mu.Lock()
		defer c.store.mu.Unlock()
		if newCheckpoint > c.store.checkpoint[key] {
			c.store.checkpoint[key] = newCheckpoint
		}
		return nil
	}), nil
}
