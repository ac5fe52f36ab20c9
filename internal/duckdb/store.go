// Package duckdb provides a queryable index of registered Beacon documents.
// Documents are appended to DuckDB tables and re-indexed only when the
// source file changes.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding the beacon index.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			beacon_key VARCHAR PRIMARY KEY,
			beacon_id VARCHAR,
			path VARCHAR,
			size BIGINT,
			mod_time BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS datasets (
			beacon_key VARCHAR,
			ordinal BIGINT,
			dataset_id VARCHAR,
			description VARCHAR,
			assembly_id VARCHAR,
			sample_count BIGINT,
			call_count BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS variants (
			beacon_key VARCHAR,
			ord BIGINT,
			dataset_ordinal BIGINT,
			chrom VARCHAR,
			pos BIGINT,
			ref VARCHAR,
			alt VARCHAR,
			variant_id VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
