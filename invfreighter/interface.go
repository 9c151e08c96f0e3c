package invfreighter

import (
	"context"
	"errors"

	"github.com/lightninglabs/zkinv/inventory"
)

// ErrRecordNotCached is returned when the record cache holds nothing for an
// inventory.
var ErrRecordNotCached = errors.New("record not cached")

// BatchLog journals batches as they move through the commit protocol. The
// journal is informational: it never holds secret state and a batch is never
// resumed from it.
type BatchLog interface {
	// LogNewBatch records a batch that was just picked up and returns
	// its id.
	LogNewBatch(ctx context.Context, batch *BatchRecord) (int64, error)

	// UpdateBatch stores the latest state, digest, artifacts and failure
	// reason of a batch.
	UpdateBatch(ctx context.Context, batch *BatchRecord) error

	// FetchBatch returns a single batch.
	FetchBatch(ctx context.Context, id int64) (*BatchRecord, error)

	// ListBatches returns the most recent batches, newest first. A limit
	// of zero returns all of them.
	ListBatches(ctx context.Context, limit int) ([]*BatchRecord, error)
}

// RecordCache holds the last on-chain records seen for display. It is never
// consulted for correctness.
type RecordCache interface {
	// CacheRecords stores the given records, replacing older ones.
	CacheRecords(ctx context.Context, records ...*inventory.Record) error

	// CachedRecord returns the cached record of an inventory, or
	// ErrRecordNotCached.
	CachedRecord(ctx context.Context,
		id inventory.ID) (*inventory.Record, error)
}
