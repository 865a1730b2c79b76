// Package postgres implements internal/docstore.Store over a Postgres
// database/sql connection, following the teacher's connection-pool and
// migration conventions (internal/infra/db). Container documents live in a
// single jsonb-backed documents table; a change_log table and a leases
// table stand in for the store's change feed and its per-consumer
// checkpoint, committed in the same transaction as the document write so
// the feed never observes a write the document table itself doesn't have.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsfeed/internal/docstore"
)

// Store is a Postgres-backed docstore.Store.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened, already-migrated *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, container, id, partition string) (*docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT container, id, partition, etag, body, updated_at
		FROM documents
		WHERE container = $1 AND id = $2 AND partition = $3`,
		container, id, partition)

	var doc docstore.Document
	if err := row.Scan(&doc.Container, &doc.ID, &doc.Partition, &doc.ETag, &doc.Body, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("docstore get: %w", err)
	}
	return &doc, nil
}

// Query never emits an ORDER BY clause over document fields, by design: the
// contract's known defect is that the store's ordered query omits fields,
// so callers must sort candidate results in application code.
func (s *Store) Query(ctx context.Context, container string, pred docstore.Predicate) ([]docstore.Document, error) {
	var b strings.Builder
	args := []any{container}
	b.WriteString("SELECT container, id, partition, etag, body, updated_at FROM documents WHERE container = $1")

	if pred.Partition != "" {
		args = append(args, pred.Partition)
		fmt.Fprintf(&b, " AND partition = $%d", len(args))
	}
	for field, want := range pred.Equals {
		args = append(args, fmt.Sprintf("%v", want))
		fmt.Fprintf(&b, " AND body->>'%s' = $%d", field, len(args))
	}
	for field, min := range pred.GTE {
		args = append(args, fmt.Sprintf("%v", min))
		fmt.Fprintf(&b, " AND body->>'%s' >= $%d", field, len(args))
	}
	for field, options := range pred.In {
		placeholders := make([]string, 0, len(options))
		for _, opt := range options {
			args = append(args, fmt.Sprintf("%v", opt))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		fmt.Fprintf(&b, " AND body->>'%s' IN (%s)", field, strings.Join(placeholders, ", "))
	}
	if pred.Limit > 0 {
		args = append(args, pred.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("docstore query: %w", err)
	}
	defer rows.Close()

	var results []docstore.Document
	for rows.Next() {
		var doc docstore.Document
		if err := rows.Scan(&doc.Container, &doc.ID, &doc.Partition, &doc.ETag, &doc.Body, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("docstore query scan: %w", err)
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, container string, doc docstore.Document, etag string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("docstore upsert: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	newETag := newOpaqueETag()
	op := docstore.ChangeOpInsert

	if etag == "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (container, id, partition, etag, body, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (container, id) DO NOTHING`,
			container, doc.ID, doc.Partition, newETag, []byte(doc.Body))
		if err != nil {
			return "", fmt.Errorf("docstore upsert insert: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return "", docstore.ErrPreconditionFailed
		}
	} else {
		op = docstore.ChangeOpUpdate
		res, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET etag = $1, partition = $2, body = $3, updated_at = now()
			WHERE container = $4 AND id = $5 AND etag = $6`,
			newETag, doc.Partition, []byte(doc.Body), container, doc.ID, etag)
		if err != nil {
			return "", fmt.Errorf("docstore upsert update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return "", docstore.ErrPreconditionFailed
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO change_log (container, id, partition, op, committed_at)
		VALUES ($1, $2, $3, $4, now())`,
		container, doc.ID, doc.Partition, string(op)); err != nil {
		return "", fmt.Errorf("docstore upsert changelog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("docstore upsert commit: %w", err)
	}
	return newETag, nil
}

func (s *Store) ChangeFeed(_ context.Context, container, leasePrefix string) (docstore.ChangeFeedConsumer, error) {
	return &consumer{db: s.db, container: container, leasePrefix: leasePrefix}, nil
}

const consumerBatchLimit = 100

// pollInterval bounds how often an empty Next call re-checks the change
// log when no rows are immediately available.
const pollInterval = 500 * time.Millisecond

type consumer struct {
	db          *sql.DB
	container   string
	leasePrefix string
}

func (c *consumer) Next(ctx context.Context) (*docstore.ChangeBatch, error) {
	checkpoint, err := c.currentCheckpoint(ctx)
	if err != nil {
		return nil, err
	}

	events, err := c.fetchSince(ctx, checkpoint)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		select {
		case <-ctx.Done():
			return docstore.NewChangeBatch(nil, noopCheckpoint), ctx.Err()
		case <-time.After(pollInterval):
			return docstore.NewChangeBatch(nil, noopCheckpoint), nil
		}
	}

	newCheckpoint := events[len(events)-1].Seq
	return docstore.NewChangeBatch(events, func(ctx context.Context) error {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO leases (lease_prefix, container, checkpoint_seq)
			VALUES ($1, $2, $3)
			ON CONFLICT (lease_prefix, container)
			DO UPDATE SET checkpoint_seq = GREATEST(leases.checkpoint_seq, EXCLUDED.checkpoint_seq)`,
			c.leasePrefix, c.container, newCheckpoint)
		return err
	}), nil
}

func noopCheckpoint(context.Context) error { return nil }

func (c *consumer) currentCheckpoint(ctx context.Context) (int64, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT checkpoint_seq FROM leases WHERE lease_prefix = $1 AND container = $2`,
		c.leasePrefix, c.container)

	var checkpoint int64
	if err := row.Scan(&checkpoint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("docstore changefeed checkpoint: %w", err)
	}
	return checkpoint, nil
}

// fetchSince is the one place this store orders a query by a document
// field: change_log's seq is the store's own commit-order bookkeeping, not
// a caller-facing document field, so it is exempt from the "no ordered
// query" contract that governs Query.
func (c *consumer) fetchSince(ctx context.Context, checkpoint int64) ([]docstore.ChangeEvent, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT seq, id, partition, op, committed_at
		FROM change_log
		WHERE container = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3`,
		c.container, checkpoint, consumerBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("docstore changefeed fetch: %w", err)
	}
	defer rows.Close()

	var events []docstore.ChangeEvent
	for rows.Next() {
		var (
			e  docstore.ChangeEvent
			op string
		)
		e.Container = c.container
		if err := rows.Scan(&e.Seq, &e.ID, &e.Partition, &op, &e.CommittedAt); err != nil {
			return nil, fmt.Errorf("docstore changefeed scan: %w", err)
		}
		e.Op = docstore.ChangeOp(op)
		events = append(events, e)
	}
	return events, rows.Err()
}
