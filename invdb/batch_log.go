package invdb

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/invdb/sqlc"
	"github.com/lightninglabs/zkinv/invfreighter"
)

var (
	// ErrBatchNotFound is returned when a batch isn't in the journal.
	ErrBatchNotFound = errors.New("batch not found")
)

type (
	// NewBatch is a type alias for the params to journal a new batch.
	NewBatch = sqlc.InsertBatchParams

	// BatchUpdate is a type alias for the params to update a batch.
	BatchUpdate = sqlc.UpdateBatchParams

	// NewBatchInventory is a type alias for the params to link a batch
	// to an inventory.
	NewBatchInventory = sqlc.InsertBatchInventoryParams

	// NewBatchArtifact is a type alias for the params to store a proof
	// artifact of a batch.
	NewBatchArtifact = sqlc.InsertBatchArtifactParams
)

// BatchLogStorage is the storage needed by the BatchLog.
type BatchLogStorage interface {
	// InsertBatch journals a new batch and returns its id.
	InsertBatch(ctx context.Context, arg NewBatch) (int32, error)

	// InsertBatchInventory links a batch to an inventory it touches.
	InsertBatchInventory(ctx context.Context, arg NewBatchInventory) error

	// UpdateBatch updates the state of a batch.
	UpdateBatch(ctx context.Context, arg BatchUpdate) (int64, error)

	// DeleteBatchArtifacts removes all artifacts of a batch.
	DeleteBatchArtifacts(ctx context.Context, batchID int32) error

	// InsertBatchArtifact stores the artifact of a single step.
	InsertBatchArtifact(ctx context.Context, arg NewBatchArtifact) error

	// FetchBatch fetches a single batch.
	FetchBatch(ctx context.Context, id int32) (sqlc.Batch, error)

	// FetchBatches fetches the most recent batches.
	FetchBatches(ctx context.Context, limit int32) ([]sqlc.Batch, error)

	// FetchBatchInventories fetches the inventories of a batch in
	// order.
	FetchBatchInventories(ctx context.Context, batchID int32) ([][]byte,
		error)

	// FetchBatchArtifacts fetches the artifacts of a batch in order.
	FetchBatchArtifacts(ctx context.Context, batchID int32) ([][]byte,
		error)
}

// BatchedBatchLogStorage is a version of the BatchLogStorage that's capable
// of batched database operations.
type BatchedBatchLogStorage interface {
	BatchLogStorage

	BatchedTx[BatchLogStorage]
}

// BatchLog is a SQL backed journal of the batches driven by the porter.
type BatchLog struct {
	db BatchedBatchLogStorage
}

// A compile time assertion to ensure BatchLog meets the
// invfreighter.BatchLog interface.
var _ invfreighter.BatchLog = (*BatchLog)(nil)

// NewBatchLog creates a new BatchLog on top of an open database.
func NewBatchLog(db *BaseDB) *BatchLog {
	txCreator := func(tx *sql.Tx) BatchLogStorage {
		return db.WithTx(tx)
	}

	return &BatchLog{
		db: NewTransactionExecutor(db, txCreator),
	}
}

// LogNewBatch journals a batch that was just picked up.
func (b *BatchLog) LogNewBatch(ctx context.Context,
	batch *invfreighter.BatchRecord) (int64, error) {

	var batchID int32
	err := b.db.ExecTx(ctx, WriteTxOption(), func(q BatchLogStorage) error {
		var err error
		batchID, err = q.InsertBatch(ctx, NewBatch{
			State:      int16(batch.State),
			NumEntries: sqlInt32(batch.NumEntries),
			CreatedAt:  batch.CreatedAt.UTC(),
			UpdatedAt:  batch.UpdatedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("unable to insert batch: %w", err)
		}

		for i, id := range batch.Inventories {
			id := id
			err := q.InsertBatchInventory(ctx, NewBatchInventory{
				BatchID:     batchID,
				Idx:         sqlInt32(i),
				InventoryID: id[:],
			})
			if err != nil {
				return fmt.Errorf("unable to link inventory "+
					"%v: %w", id, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return int64(batchID), nil
}

// UpdateBatch stores the latest state, digest, artifacts and failure reason
// of a batch.
func (b *BatchLog) UpdateBatch(ctx context.Context,
	batch *invfreighter.BatchRecord) error {

	var digest []byte
	if batch.TxDigest != nil {
		digest = batch.TxDigest[:]
	}

	artifacts, err := fMapErr(batch.Artifacts, encodeArtifact)
	if err != nil {
		return err
	}

	batchID := sqlInt32(batch.ID)
	return b.db.ExecTx(ctx, WriteTxOption(), func(q BatchLogStorage) error {
		rows, err := q.UpdateBatch(ctx, BatchUpdate{
			ID:        batchID,
			State:     int16(batch.State),
			TxDigest:  digest,
			Failure:   batch.Failure,
			UpdatedAt: batch.UpdatedAt.UTC(),
		})
		switch {
		case err != nil:
			return err

		case rows == 0:
			return fmt.Errorf("%w: %d", ErrBatchNotFound, batch.ID)
		}

		if err := q.DeleteBatchArtifacts(ctx, batchID); err != nil {
			return err
		}

		for i, artifact := range artifacts {
			err := q.InsertBatchArtifact(ctx, NewBatchArtifact{
				BatchID:   batchID,
				StepIndex: sqlInt32(i),
				Artifact:  artifact,
			})
			if err != nil {
				return fmt.Errorf("unable to store artifact "+
					"%d: %w", i, err)
			}
		}

		return nil
	})
}

// FetchBatch returns a single batch.
func (b *BatchLog) FetchBatch(ctx context.Context,
	id int64) (*invfreighter.BatchRecord, error) {

	var batch *invfreighter.BatchRecord
	err := b.db.ExecTx(ctx, ReadTxOption(), func(q BatchLogStorage) error {
		dbBatch, err := q.FetchBatch(ctx, sqlInt32(id))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: %d", ErrBatchNotFound, id)

		case err != nil:
			return err
		}

		batch, err = fetchBatchDetails(ctx, q, dbBatch)
		return err
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// ListBatches returns the most recent batches, newest first. A limit of zero
// returns all of them.
func (b *BatchLog) ListBatches(ctx context.Context,
	limit int) ([]*invfreighter.BatchRecord, error) {

	var batches []*invfreighter.BatchRecord
	err := b.db.ExecTx(ctx, ReadTxOption(), func(q BatchLogStorage) error {
		dbBatches, err := q.FetchBatches(ctx, sqlLimit(limit))
		if err != nil {
			return err
		}

		batches = make([]*invfreighter.BatchRecord, 0, len(dbBatches))
		for _, dbBatch := range dbBatches {
			batch, err := fetchBatchDetails(ctx, q, dbBatch)
			if err != nil {
				return err
			}
			batches = append(batches, batch)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// fetchBatchDetails fetches the inventories and artifacts of a batch row.
func fetchBatchDetails(ctx context.Context, q BatchLogStorage,
	dbBatch sqlc.Batch) (*invfreighter.BatchRecord, error) {

	batch := &invfreighter.BatchRecord{
		ID:         int64(dbBatch.ID),
		State:      invfreighter.BatchState(dbBatch.State),
		NumEntries: int(dbBatch.NumEntries),
		Failure:    dbBatch.Failure,
		CreatedAt:  dbBatch.CreatedAt.UTC(),
		UpdatedAt:  dbBatch.UpdatedAt.UTC(),
	}

	if len(dbBatch.TxDigest) != 0 {
		digest, err := chainhash.NewHash(dbBatch.TxDigest)
		if err != nil {
			return nil, err
		}
		batch.TxDigest = digest
	}

	rawIDs, err := q.FetchBatchInventories(ctx, dbBatch.ID)
	if err != nil {
		return nil, err
	}
	batch.Inventories, err = fMapErr(rawIDs, parseInventoryID)
	if err != nil {
		return nil, err
	}

	rawArtifacts, err := q.FetchBatchArtifacts(ctx, dbBatch.ID)
	if err != nil {
		return nil, err
	}
	batch.Artifacts, err = fMapErr(rawArtifacts, inventory.DecodeArtifact)
	if err != nil {
		return nil, fmt.Errorf("unable to decode artifact: %w", err)
	}

	return batch, nil
}

// encodeArtifact serializes an artifact for storage.
func encodeArtifact(a *inventory.ProofArtifact) ([]byte, error) {
	var b bytes.Buffer
	if err := a.Encode(&b); err != nil {
		return nil, fmt.Errorf("unable to encode artifact: %w", err)
	}

	return b.Bytes(), nil
}
