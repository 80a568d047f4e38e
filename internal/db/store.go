package db

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested workflow, plate ID, or
// tracking entry does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for analysis and titration results in
// the LIMS serology database.
//
// Implementations:
//   - MySQLStore for the production and staging databases
//   - SQLiteStore for local runs without network access
//   - MemoryStore for tests
type Store interface {
	// VariantForPlateID looks up the variant name assigned to a
	// plate ID in the available-strains table. Returns ErrNotFound
	// for an unknown plate ID.
	VariantForPlateID(ctx context.Context, plateID string) (string, error)

	// TitrationVariantForWorkflow looks up the variant recorded in
	// the titration workflow tracking table.
	TitrationVariantForWorkflow(ctx context.Context, workflowID int) (string, error)

	// AlreadyUploaded reports whether final results exist for the
	// workflow and variant. Results are uploaded all-or-nothing, so
	// one results table suffices for the check.
	AlreadyUploaded(ctx context.Context, workflowID int, variant string) (bool, error)

	// TitrationAlreadyUploaded reports whether titration final
	// results exist for the workflow.
	TitrationAlreadyUploaded(ctx context.Context, workflowID int) (bool, error)

	InsertRawResults(ctx context.Context, rows []RawResultRow) error
	InsertRawIndex(ctx context.Context, rows []RawIndexRow) error
	InsertNormalisedResults(ctx context.Context, rows []NormalisedResultRow) error
	InsertFinalResults(ctx context.Context, rows []FinalResultRow) error
	InsertFailures(ctx context.Context, rows []FailedResultRow) error
	InsertModelParameters(ctx context.Context, rows []ModelParameterRow) error

	// InsertReporterPlateStatus marks the workflow and variant as
	// awaiting a reporter decision.
	InsertReporterPlateStatus(ctx context.Context, workflowID int, variant, status string) error

	// ExpectedVariants returns the number of variants the workflow
	// tracking table expects for the workflow.
	ExpectedVariants(ctx context.Context, workflowID int) (int, error)

	// UploadedVariants returns the number of distinct variants with
	// final results for the workflow.
	UploadedVariants(ctx context.Context, workflowID int) (int, error)

	// MarkWorkflowComplete sets the workflow status to complete and
	// stamps the end date and final results upload time.
	MarkWorkflowComplete(ctx context.Context, workflowID int, now time.Time) error

	InsertTitrationNormalisedResults(ctx context.Context, rows []TitrationNormalisedRow) error
	InsertTitrationModelParameters(ctx context.Context, rows []TitrationModelParameterRow) error
	InsertTitrationFinalResults(ctx context.Context, rows []TitrationFinalResultRow) error

	// MarkTitrationComplete sets the titration workflow status to
	// complete and stamps the end date.
	MarkTitrationComplete(ctx context.Context, workflowID int, variant string, now time.Time) error

	Close() error
}
