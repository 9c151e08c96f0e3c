package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMergeSchemas makes sure all migrations apply cleanly on top of each
// other and every table ends up in the merged schema.
func TestMergeSchemas(t *testing.T) {
	t.Parallel()

	schema, err := mergeSchemas(
		filepath.Join("..", "..", "invdb", "sqlc", "migrations"),
	)
	require.NoError(t, err)

	tables := []string{
		"inventory_secrets", "inventory_slots", "batches",
		"batch_inventories", "batch_artifacts", "cached_records",
		"ledger_inventories", "ledger_registry", "ledger_transactions",
	}
	for _, table := range tables {
		require.Contains(t, schema, " "+table+" (")
	}

	_, err = mergeSchemas(t.TempDir() + "/missing")
	require.Error(t, err)
}
