package postgres

import "database/sql"

// MigrateUp creates the tables backing internal/docstore.Store: one
// documents table holding every container's jsonb bodies, a change_log
// table standing in for the store's change feed, and a leases table
// tracking each consumer's checkpoint.
func MigrateUp(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			container   TEXT NOT NULL,
			id          TEXT NOT NULL,
			partition   TEXT NOT NULL,
			etag        TEXT NOT NULL,
			body        JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (container, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_partition ON documents(container, partition)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_body_gin ON documents USING gin(body jsonb_path_ops)`,

		`CREATE TABLE IF NOT EXISTS change_log (
			seq          BIGSERIAL PRIMARY KEY,
			container    TEXT NOT NULL,
			id           TEXT NOT NULL,
			partition    TEXT NOT NULL,
			op           TEXT NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_change_log_container_seq ON change_log(container, seq)`,

		`CREATE TABLE IF NOT EXISTS leases (
			lease_prefix    TEXT NOT NULL,
			container       TEXT NOT NULL,
			checkpoint_seq  BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (lease_prefix, container)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
