// Package postgres implements the persistence ports on PostgreSQL. Everything
// stored here is pure and reproducible from (input, version, seed), so the
// schema carries no ownership or history; rows may be evicted freely.
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens and pings a PostgreSQL connection
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the cache tables if they do not exist
func EnsureSchema(db *sqlx.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS feature_vectors (
		raw_name   TEXT        NOT NULL,
		version    TEXT        NOT NULL,
		vector     JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (raw_name, version)
	);

	CREATE TABLE IF NOT EXISTS test_results (
		dataset_hash TEXT        NOT NULL,
		spec_hash    TEXT        NOT NULL,
		seed         BIGINT      NOT NULL,
		result       JSONB       NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (dataset_hash, spec_hash, seed)
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
