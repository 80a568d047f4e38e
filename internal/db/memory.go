package db

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests. It records every
// insert so tests can assert on what the pipeline uploaded.
type MemoryStore struct {
	mu sync.RWMutex

	// Strains maps plate ID to variant name.
	Strains map[string]string
	// WorkflowVariants maps workflow ID to the expected variant count.
	WorkflowVariants map[int]int
	// TitrationVariants maps workflow ID to the tracked variant.
	TitrationVariants map[int]string

	RawResults          []RawResultRow
	RawIndex            []RawIndexRow
	NormalisedResults   []NormalisedResultRow
	FinalResults        []FinalResultRow
	Failures            []FailedResultRow
	ModelParameters     []ModelParameterRow
	ReporterStatuses    []string
	CompletedWorkflows  []int
	TitrationNormalised []TitrationNormalisedRow
	TitrationParameters []TitrationModelParameterRow
	TitrationFinal      []TitrationFinalResultRow
	CompletedTitrations []int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Strains:           make(map[string]string),
		WorkflowVariants:  make(map[int]int),
		TitrationVariants: make(map[int]string),
	}
}

func (m *MemoryStore) VariantForPlateID(_ context.Context, plateID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	variant, ok := m.Strains[plateID]
	if !ok {
		return "", fmt.Errorf("plate ID %q: %w", plateID, ErrNotFound)
	}
	return variant, nil
}

func (m *MemoryStore) TitrationVariantForWorkflow(_ context.Context, workflowID int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	variant, ok := m.TitrationVariants[workflowID]
	if !ok {
		return "", fmt.Errorf("titration workflow %d: %w", workflowID, ErrNotFound)
	}
	return variant, nil
}

func (m *MemoryStore) AlreadyUploaded(_ context.Context, workflowID int, variant string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.FinalResults {
		if row.WorkflowID == workflowID && row.Variant == variant {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) TitrationAlreadyUploaded(_ context.Context, workflowID int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.TitrationFinal {
		if row.WorkflowID == workflowID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertRawResults(_ context.Context, rows []RawResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RawResults = append(m.RawResults, rows...)
	return nil
}

func (m *MemoryStore) InsertRawIndex(_ context.Context, rows []RawIndexRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RawIndex = append(m.RawIndex, rows...)
	return nil
}

func (m *MemoryStore) InsertNormalisedResults(_ context.Context, rows []NormalisedResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NormalisedResults = append(m.NormalisedResults, rows...)
	return nil
}

func (m *MemoryStore) InsertFinalResults(_ context.Context, rows []FinalResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinalResults = append(m.FinalResults, rows...)
	return nil
}

func (m *MemoryStore) InsertFailures(_ context.Context, rows []FailedResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, rows...)
	return nil
}

func (m *MemoryStore) InsertModelParameters(_ context.Context, rows []ModelParameterRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ModelParameters = append(m.ModelParameters, rows...)
	return nil
}

func (m *MemoryStore) InsertReporterPlateStatus(_ context.Context, workflowID int, variant, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReporterStatuses = append(m.ReporterStatuses,
		fmt.Sprintf("%d/%s/%s", workflowID, variant, status))
	return nil
}

func (m *MemoryStore) ExpectedVariants(_ context.Context, workflowID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.WorkflowVariants[workflowID]
	if !ok {
		return 0, fmt.Errorf("workflow %d: %w", workflowID, ErrNotFound)
	}
	return n, nil
}

func (m *MemoryStore) UploadedVariants(_ context.Context, workflowID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	variants := make(map[string]struct{})
	for _, row := range m.FinalResults {
		if row.WorkflowID == workflowID {
			variants[row.Variant] = struct{}{}
		}
	}
	return len(variants), nil
}

func (m *MemoryStore) MarkWorkflowComplete(_ context.Context, workflowID int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompletedWorkflows = append(m.CompletedWorkflows, workflowID)
	return nil
}

func (m *MemoryStore) InsertTitrationNormalisedResults(_ context.Context, rows []TitrationNormalisedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TitrationNormalised = append(m.TitrationNormalised, rows...)
	return nil
}

func (m *MemoryStore) InsertTitrationModelParameters(_ context.Context, rows []TitrationModelParameterRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TitrationParameters = append(m.TitrationParameters, rows...)
	return nil
}

func (m *MemoryStore) InsertTitrationFinalResults(_ context.Context, rows []TitrationFinalResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TitrationFinal = append(m.TitrationFinal, rows...)
	return nil
}

func (m *MemoryStore) MarkTitrationComplete(_ context.Context, workflowID int, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompletedTitrations = append(m.CompletedTitrations, workflowID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
