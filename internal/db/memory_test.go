package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreVariantLookup(t *testing.T) {
	store := NewMemoryStore()
	store.Strains["S11"] = "England2"
	ctx := context.Background()

	variant, err := store.VariantForPlateID(ctx, "S11")
	require.NoError(t, err)
	require.Equal(t, "England2", variant)

	_, err = store.VariantForPlateID(ctx, "S99")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAlreadyUploaded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done, err := store.AlreadyUploaded(ctx, 34, "England2")
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, store.InsertFinalResults(ctx, []FinalResultRow{
		{Well: "A1", WorkflowID: 34, Variant: "England2"},
	}))

	done, err = store.AlreadyUploaded(ctx, 34, "England2")
	require.NoError(t, err)
	require.True(t, done)

	// a different variant of the same workflow is still pending
	done, err = store.AlreadyUploaded(ctx, 34, "B.1.1.7")
	require.NoError(t, err)
	require.False(t, done)
}

func TestMemoryStoreTitration(t *testing.T) {
	store := NewMemoryStore()
	store.TitrationVariants[102] = "B.1.1.7"
	ctx := context.Background()

	variant, err := store.TitrationVariantForWorkflow(ctx, 102)
	require.NoError(t, err)
	require.Equal(t, "B.1.1.7", variant)

	done, err := store.TitrationAlreadyUploaded(ctx, 102)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, store.InsertTitrationFinalResults(ctx, []TitrationFinalResultRow{
		{Dilution: 8, WorkflowID: 102},
	}))
	done, err = store.TitrationAlreadyUploaded(ctx, 102)
	require.NoError(t, err)
	require.True(t, done)

	require.NoError(t, store.MarkTitrationComplete(ctx, 102, "B.1.1.7", time.Now()))
	require.Equal(t, []int{102}, store.CompletedTitrations)
}

func TestMemoryStoreUploadedVariants(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertFinalResults(ctx, []FinalResultRow{
		{Well: "A1", WorkflowID: 34, Variant: "England2"},
		{Well: "A2", WorkflowID: 34, Variant: "England2"},
		{Well: "A1", WorkflowID: 34, Variant: "B.1.1.7"},
		{Well: "A1", WorkflowID: 99, Variant: "B.1.351"},
	}))

	n, err := store.UploadedVariants(ctx, 34)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
