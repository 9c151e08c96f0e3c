//go:build test_db_postgres

package invdb

import (
	"testing"
)

// activeTestDB is the name of the database backend the tests run against.
const activeTestDB = "postgres"

// NewTestDB is a helper function that creates a Postgres database for testing.
func NewTestDB(t *testing.T) *PostgresStore {
	return NewTestPostgresDB(t)
}
