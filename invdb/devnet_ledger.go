package invdb

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/invdb/sqlc"
	"github.com/lightninglabs/zkinv/ledger"
	"github.com/lightningnetwork/lnd/clock"
)

type (
	// NewLedgerInventory is a type alias for the params to create an
	// on-chain record.
	NewLedgerInventory = sqlc.InsertLedgerInventoryParams

	// LedgerInventoryUpdate is a type alias for the params to advance an
	// on-chain record.
	LedgerInventoryUpdate = sqlc.UpdateLedgerInventoryParams

	// NewRegistryItem is a type alias for the params to add a registry
	// entry.
	NewRegistryItem = sqlc.InsertRegistryItemParams

	// NewLedgerTransaction is a type alias for the params to store an
	// accepted transaction.
	NewLedgerTransaction = sqlc.InsertLedgerTransactionParams
)

// LedgerStorage is the storage needed by the DevnetLedger.
type LedgerStorage interface {
	// InsertLedgerInventory creates an on-chain record.
	InsertLedgerInventory(ctx context.Context, arg NewLedgerInventory) error

	// FetchLedgerInventory fetches an on-chain record.
	FetchLedgerInventory(ctx context.Context,
		inventoryID []byte) (sqlc.LedgerInventory, error)

	// UpdateLedgerInventory advances an on-chain record if it's still
	// at the expected nonce.
	UpdateLedgerInventory(ctx context.Context,
		arg LedgerInventoryUpdate) (int64, error)

	// DeleteRegistry removes all registry entries.
	DeleteRegistry(ctx context.Context) error

	// InsertRegistryItem adds a registry entry.
	InsertRegistryItem(ctx context.Context, arg NewRegistryItem) error

	// FetchRegistry fetches all registry entries.
	FetchRegistry(ctx context.Context) ([]sqlc.LedgerRegistry, error)

	// InsertLedgerTransaction stores an accepted transaction.
	InsertLedgerTransaction(ctx context.Context,
		arg NewLedgerTransaction) error

	// CountLedgerTransactions returns the number of accepted
	// transactions.
	CountLedgerTransactions(ctx context.Context) (int64, error)
}

// BatchedLedgerStorage is a version of the LedgerStorage that's capable of
// batched database operations.
type BatchedLedgerStorage interface {
	LedgerStorage

	BatchedTx[LedgerStorage]
}

// DevnetLedger is a ledger.Ledger kept in a SQL database. Every transaction
// is executed against the ledger rule set within a single database
// transaction, so a rejected call rolls back all calls before it.
type DevnetLedger struct {
	db BatchedLedgerStorage

	verifier ledger.ProofVerifier

	clock clock.Clock
}

// A compile time assertion to ensure DevnetLedger meets the ledger.Ledger
// interface.
var _ ledger.Ledger = (*DevnetLedger)(nil)

// NewDevnetLedger creates a new devnet ledger on top of an open database. A
// ledger.BindingVerifier is used if verifier is nil.
func NewDevnetLedger(db *BaseDB, verifier ledger.ProofVerifier,
	clock clock.Clock) *DevnetLedger {

	if verifier == nil {
		verifier = &ledger.BindingVerifier{}
	}

	txCreator := func(tx *sql.Tx) LedgerStorage {
		return db.WithTx(tx)
	}

	return &DevnetLedger{
		db:       NewTransactionExecutor(db, txCreator),
		verifier: verifier,
		clock:    clock,
	}
}

// txView is a ledger.StateView over an open database transaction.
type txView struct {
	ctx  context.Context
	q    LedgerStorage
	root inventory.FieldElement

	// startNonces holds the stored nonce of every inventory the
	// transaction read, as of the first read.
	startNonces map[inventory.ID]uint64
}

// newTxView creates a view over q pinned to the given registry root.
func newTxView(ctx context.Context, q LedgerStorage,
	root inventory.FieldElement) *txView {

	return &txView{
		ctx:         ctx,
		q:           q,
		root:        root,
		startNonces: make(map[inventory.ID]uint64),
	}
}

// Record returns the current record of an inventory.
func (v *txView) Record(id inventory.ID) (*inventory.Record, error) {
	record, err := fetchLedgerRecord(v.ctx, v.q, id)
	if err != nil {
		return nil, err
	}

	if _, ok := v.startNonces[id]; !ok {
		v.startNonces[id] = record.Nonce
	}

	return record, nil
}

// startNonce returns the nonce an inventory had when the transaction first
// read it.
func (v *txView) startNonce(id inventory.ID) (uint64, bool) {
	nonce, ok := v.startNonces[id]
	return nonce, ok
}

// RegistryRoot returns the registry root the transaction is executed
// against.
func (v *txView) RegistryRoot() inventory.FieldElement {
	return v.root
}

// fetchLedgerRecord fetches and parses an on-chain record.
func fetchLedgerRecord(ctx context.Context, q LedgerStorage,
	id inventory.ID) (*inventory.Record, error) {

	dbRecord, err := q.FetchLedgerInventory(ctx, id[:])
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %v", ledger.ErrInventoryNotFound, id)

	case err != nil:
		return nil, err
	}

	return parseRecord(
		dbRecord.InventoryID, dbRecord.Commitment, dbRecord.Nonce,
		dbRecord.OwnerKey, dbRecord.MaxCapacity,
	)
}

// fetchRegistry fetches and parses the registry.
func fetchRegistry(ctx context.Context,
	q LedgerStorage) (*inventory.Registry, error) {

	items, err := q.FetchRegistry(ctx)
	if err != nil {
		return nil, err
	}

	volumes := make(map[inventory.ItemID]uint64, len(items))
	for _, item := range items {
		volumes[inventory.ItemID(item.ItemID)] = uint64(item.Volume)
	}

	return inventory.NewRegistry(volumes)
}

// FetchInventory returns the current record of an inventory.
func (d *DevnetLedger) FetchInventory(ctx context.Context,
	id inventory.ID) (*inventory.Record, error) {

	var record *inventory.Record
	err := d.db.ExecTx(ctx, ReadTxOption(), func(q LedgerStorage) error {
		var err error
		record, err = fetchLedgerRecord(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// FetchRegistry returns the current item registry.
func (d *DevnetLedger) FetchRegistry(
	ctx context.Context) (*inventory.Registry, error) {

	var registry *inventory.Registry
	err := d.db.ExecTx(ctx, ReadTxOption(), func(q LedgerStorage) error {
		var err error
		registry, err = fetchRegistry(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	return registry, nil
}

// SetRegistry replaces the item registry.
func (d *DevnetLedger) SetRegistry(ctx context.Context,
	volumes map[inventory.ItemID]uint64) (*inventory.Registry, error) {

	registry, err := inventory.NewRegistry(volumes)
	if err != nil {
		return nil, err
	}

	err = d.db.ExecTx(ctx, WriteTxOption(), func(q LedgerStorage) error {
		if err := q.DeleteRegistry(ctx); err != nil {
			return err
		}

		for id, volume := range registry.Volumes {
			err := q.InsertRegistryItem(ctx, NewRegistryItem{
				ItemID: sqlInt32(id),
				Volume: sqlInt64(volume),
			})
			if err != nil {
				return fmt.Errorf("unable to insert item %d: "+
					"%w", id, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Registry set to %d items, root %v", len(registry.Volumes),
		registry.Root)

	return registry, nil
}

// SubmitTransaction applies all calls of the transaction in order, or none of
// them.
func (d *DevnetLedger) SubmitTransaction(ctx context.Context,
	tx *ledger.Transaction) (*ledger.Receipt, error) {

	log.Debugf("Executing transaction: %v", newLogClosure(func() string {
		return spew.Sdump(tx.Calls)
	}))

	digest, err := tx.Digest()
	if err != nil {
		return nil, err
	}

	var rawTx bytes.Buffer
	if err := tx.Encode(&rawTx); err != nil {
		return nil, err
	}

	var updated map[inventory.ID]*inventory.Record
	err = d.db.ExecTx(ctx, WriteTxOption(), func(q LedgerStorage) error {
		registry, err := fetchRegistry(ctx, q)
		if err != nil {
			return fmt.Errorf("unable to fetch registry: %w", err)
		}

		view := newTxView(ctx, q, registry.Root)
		updated, err = ledger.Execute(tx, view, d.verifier)
		if err != nil {
			return err
		}

		for id, record := range updated {
			id := id

			// Several calls may have advanced the same inventory,
			// so the stored nonce is the one we first read.
			expected, ok := view.startNonce(id)
			if !ok {
				return fmt.Errorf("inventory %v updated without "+
					"being read", id)
			}

			rows, err := q.UpdateLedgerInventory(
				ctx, LedgerInventoryUpdate{
					InventoryID: id[:],
					Commitment:  record.Commitment[:],
					Nonce:       sqlInt64(record.Nonce),
					Nonce_2:     sqlInt64(expected),
				},
			)
			switch {
			case err != nil:
				return err

			// A concurrent transaction advanced the record after
			// we read it.
			case rows == 0:
				return fmt.Errorf("%w: inventory %v moved "+
					"concurrently", inventory.ErrNonceMismatch,
					id)
			}
		}

		return q.InsertLedgerTransaction(ctx, NewLedgerTransaction{
			Digest:     digest[:],
			RawTx:      rawTx.Bytes(),
			NumCalls:   sqlInt32(len(tx.Calls)),
			AcceptedAt: d.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Accepted transaction %v with %d calls", digest,
		len(tx.Calls))

	return &ledger.Receipt{
		Digest:  digest,
		Records: updated,
	}, nil
}

// CreateInventory creates a new inventory with a random id at nonce zero.
func (d *DevnetLedger) CreateInventory(ctx context.Context,
	owner *btcec.PublicKey, commitment inventory.Commitment,
	maxCapacity uint64) (*inventory.Record, error) {

	if owner == nil {
		return nil, fmt.Errorf("%w: inventory needs an owner",
			inventory.ErrInvalidOperation)
	}

	var id inventory.ID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}

	record := &inventory.Record{
		ID:          id,
		Commitment:  commitment,
		Owner:       owner,
		MaxCapacity: maxCapacity,
	}

	err := d.db.ExecTx(ctx, WriteTxOption(), func(q LedgerStorage) error {
		return q.InsertLedgerInventory(ctx, NewLedgerInventory{
			InventoryID: id[:],
			Commitment:  commitment[:],
			Nonce:       0,
			OwnerKey:    serializeKey(owner),
			MaxCapacity: sqlInt64(maxCapacity),
			CreatedAt:   d.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create inventory: %w", err)
	}

	log.Infof("Created inventory %v", id)

	return record, nil
}

// NumTransactions returns the number of accepted transactions.
func (d *DevnetLedger) NumTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.ExecTx(ctx, ReadTxOption(), func(q LedgerStorage) error {
		var err error
		count, err = q.CountLedgerTransactions(ctx)
		return err
	})

	return count, err
}
