package invdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/invdb/sqlc"
	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightningnetwork/lnd/clock"
)

// CachedRecordUpsert is a type alias for the params to cache a record.
type CachedRecordUpsert = sqlc.UpsertCachedRecordParams

// RecordCacheStorage is the storage needed by the RecordCache.
type RecordCacheStorage interface {
	// UpsertCachedRecord stores a record, replacing an older one.
	UpsertCachedRecord(ctx context.Context, arg CachedRecordUpsert) error

	// FetchCachedRecord fetches the cached record of an inventory.
	FetchCachedRecord(ctx context.Context,
		inventoryID []byte) (sqlc.CachedRecord, error)
}

// BatchedRecordCacheStorage is a version of the RecordCacheStorage that's
// capable of batched database operations.
type BatchedRecordCacheStorage interface {
	RecordCacheStorage

	BatchedTx[RecordCacheStorage]
}

// RecordCache keeps the last on-chain record seen for every inventory.
type RecordCache struct {
	db BatchedRecordCacheStorage

	clock clock.Clock
}

// A compile time assertion to ensure RecordCache meets the
// invfreighter.RecordCache interface.
var _ invfreighter.RecordCache = (*RecordCache)(nil)

// NewRecordCache creates a new RecordCache on top of an open database.
func NewRecordCache(db *BaseDB, clock clock.Clock) *RecordCache {
	txCreator := func(tx *sql.Tx) RecordCacheStorage {
		return db.WithTx(tx)
	}

	return &RecordCache{
		db:    NewTransactionExecutor(db, txCreator),
		clock: clock,
	}
}

// CacheRecords stores the given records, replacing older ones.
func (r *RecordCache) CacheRecords(ctx context.Context,
	records ...*inventory.Record) error {

	now := r.clock.Now().UTC()
	return r.db.ExecTx(ctx, WriteTxOption(), func(q RecordCacheStorage) error {
		for _, record := range records {
			err := q.UpsertCachedRecord(ctx, CachedRecordUpsert{
				InventoryID: record.ID[:],
				Commitment:  record.Commitment[:],
				Nonce:       sqlInt64(record.Nonce),
				OwnerKey:    serializeKey(record.Owner),
				MaxCapacity: sqlInt64(record.MaxCapacity),
				CachedAt:    now,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// CachedRecord returns the cached record of an inventory.
func (r *RecordCache) CachedRecord(ctx context.Context,
	id inventory.ID) (*inventory.Record, error) {

	var record *inventory.Record
	err := r.db.ExecTx(ctx, ReadTxOption(), func(q RecordCacheStorage) error {
		dbRecord, err := q.FetchCachedRecord(ctx, id[:])
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return invfreighter.ErrRecordNotCached

		case err != nil:
			return err
		}

		record, err = parseRecord(
			dbRecord.InventoryID, dbRecord.Commitment,
			dbRecord.Nonce, dbRecord.OwnerKey,
			dbRecord.MaxCapacity,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// parseRecord assembles an inventory record from its columns.
func parseRecord(rawID, rawCommitment []byte, nonce int64, rawOwner []byte,
	maxCapacity int64) (*inventory.Record, error) {

	id, err := parseInventoryID(rawID)
	if err != nil {
		return nil, err
	}

	commitment, err := parseField32(rawCommitment, "commitment")
	if err != nil {
		return nil, err
	}

	owner, err := parseKey(rawOwner)
	if err != nil {
		return nil, err
	}

	return &inventory.Record{
		ID:          id,
		Commitment:  inventory.Commitment(commitment),
		Nonce:       uint64(nonce),
		Owner:       owner,
		MaxCapacity: uint64(maxCapacity),
	}, nil
}
