// Package duckdb persists clumping runs in DuckDB so results can be queried
// after the fact: the seeds of each run, the members removed with each seed,
// and the variants that could not be clumped.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for clumping results.
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
			return nil, fmt.Errorf("create results directory: %w", err)
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

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clump_runs (
			run_id VARCHAR PRIMARY KEY,
			created_at TIMESTAMP,
			input_path VARCHAR,
			input_size BIGINT,
			input_mtime TIMESTAMP,
			threshold DOUBLE,
			window_bp BIGINT,
			seeds BIGINT,
			failed BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS clump_results (
			run_id VARCHAR,
			marker VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			pvalue DOUBLE,
			ld_with VARCHAR,
			ld_with_values VARCHAR,
			failed_clump VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS clump_members (
			run_id VARCHAR,
			seed_marker VARCHAR,
			member_idx INTEGER,
			marker VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			pvalue DOUBLE,
			rsq DOUBLE,
			dprime DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS clump_failures (
			run_id VARCHAR,
			fail_idx INTEGER,
			marker VARCHAR,
			chrom VARCHAR,
			pos BIGINT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
