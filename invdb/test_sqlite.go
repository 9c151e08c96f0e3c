//go:build !test_db_postgres

package invdb

import (
	"testing"
)

// activeTestDB is the name of the database backend the tests run against.
const activeTestDB = "sqlite3"

// NewTestDB is a helper function that creates an SQLite database for testing.
func NewTestDB(t *testing.T) *SqliteStore {
	return NewTestSqliteDB(t)
}
