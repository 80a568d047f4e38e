package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a file-backed Store for running the pipeline without
// access to the LIMS database. Use ":memory:" as the path for a
// throwaway database.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens or creates a SQLite database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	store := &SQLiteStore{sqlStore{db: db}}
	if err := store.createTables(ctx, "INTEGER PRIMARY KEY AUTOINCREMENT"); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// SeedStrain inserts a row into the available-strains table so
// variant lookups succeed on a fresh local database.
func (s *SQLiteStore) SeedStrain(ctx context.Context, variant, plateID1, plateID2 string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO NE_available_strains (mutant_strain, plate_id_1, plate_id_2) VALUES (?, ?, ?)`,
		variant, plateID1, plateID2)
	if err != nil {
		return fmt.Errorf("failed to seed strain %q: %w", variant, err)
	}
	return nil
}

// SeedWorkflow inserts a workflow tracking row expecting n variants.
func (s *SQLiteStore) SeedWorkflow(ctx context.Context, workflowID, variants int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO NE_workflow_tracking (workflow_id, no_of_variants, status) VALUES (?, ?, 'running')`,
		workflowID, variants)
	if err != nil {
		return fmt.Errorf("failed to seed workflow %d: %w", workflowID, err)
	}
	return nil
}
