package invdb

import (
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReplacerFS makes sure the schema is rewritten for postgres without
// touching the embedded files.
func TestReplacerFS(t *testing.T) {
	t.Parallel()

	const name = "sqlc/migrations/000002_batch_log.up.sql"

	replaced := newReplacerFS(sqlSchemas, map[string]string{
		"BLOB":                "BYTEA",
		"INTEGER PRIMARY KEY": "SERIAL PRIMARY KEY",
		"TIMESTAMP":           "TIMESTAMP WITHOUT TIME ZONE",
	})

	f, err := replaced.Open(name)
	require.NoError(t, err)

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Contains(t, string(content), "id SERIAL PRIMARY KEY")
	require.Contains(t, string(content), "tx_digest BYTEA")
	require.Contains(
		t, string(content), "created_at TIMESTAMP WITHOUT TIME ZONE",
	)
	require.NotContains(t, string(content), "BLOB")

	original, err := fs.ReadFile(sqlSchemas, name)
	require.NoError(t, err)
	require.Contains(t, string(original), "id INTEGER PRIMARY KEY")

	_, err = replaced.Open("sqlc/migrations/unknown.sql")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

// TestMigrationsApplied checks that a fresh database carries every table.
func TestMigrationsApplied(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	ctx := context.Background()

	for _, table := range []string{
		"inventory_secrets", "inventory_slots", "batches",
		"batch_inventories", "batch_artifacts", "cached_records",
		"ledger_inventories", "ledger_registry", "ledger_transactions",
	} {
		_, err := db.ExecContext(
			ctx, "SELECT COUNT(*) FROM "+table,
		)
		require.NoError(t, err, table)
	}
}
