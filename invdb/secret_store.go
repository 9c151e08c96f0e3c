package invdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/invdb/sqlc"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// NewSecret is a type alias for the params to store a blinding
	// factor.
	NewSecret = sqlc.UpsertInventorySecretParams

	// NewSlot is a type alias for the params to store a single slot.
	NewSlot = sqlc.InsertInventorySlotParams
)

// SecretStorage is the storage needed by the SecretStore.
type SecretStorage interface {
	// UpsertInventorySecret stores the blinding factor of an inventory.
	UpsertInventorySecret(ctx context.Context, arg NewSecret) error

	// DeleteInventorySlots removes all slots of an inventory.
	DeleteInventorySlots(ctx context.Context, inventoryID []byte) error

	// InsertInventorySlot stores a single slot.
	InsertInventorySlot(ctx context.Context, arg NewSlot) error

	// FetchInventorySecret fetches the blinding factor of an inventory.
	FetchInventorySecret(ctx context.Context,
		inventoryID []byte) (sqlc.InventorySecret, error)

	// FetchInventorySlots fetches all slots of an inventory sorted by
	// item.
	FetchInventorySlots(ctx context.Context,
		inventoryID []byte) ([]sqlc.InventorySlot, error)

	// ListSecretInventories lists all inventories with a stored secret.
	ListSecretInventories(ctx context.Context) ([][]byte, error)
}

// BatchedSecretStorage is a version of the SecretStorage that's capable of
// batched database operations.
type BatchedSecretStorage interface {
	SecretStorage

	BatchedTx[SecretStorage]
}

// SecretStore is a SQL backed inventory.StateStore. A multi inventory write
// is a single database transaction.
type SecretStore struct {
	db BatchedSecretStorage

	clock clock.Clock
}

// A compile time assertion to ensure SecretStore meets the
// inventory.StateStore interface.
var _ inventory.StateStore = (*SecretStore)(nil)

// NewSecretStore creates a new SecretStore on top of an open database.
func NewSecretStore(db *BaseDB, clock clock.Clock) *SecretStore {
	txCreator := func(tx *sql.Tx) SecretStorage {
		return db.WithTx(tx)
	}

	return &SecretStore{
		db:    NewTransactionExecutor(db, txCreator),
		clock: clock,
	}
}

// FetchState returns the stored state of an inventory.
func (s *SecretStore) FetchState(ctx context.Context,
	id inventory.ID) (*inventory.State, error) {

	var state *inventory.State
	err := s.db.ExecTx(ctx, ReadTxOption(), func(q SecretStorage) error {
		secret, err := q.FetchInventorySecret(ctx, id[:])
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: %v", inventory.ErrStateNotFound,
				id)

		case err != nil:
			return err
		}

		blinding, err := parseField32(secret.Blinding, "blinding")
		if err != nil {
			return err
		}

		dbSlots, err := q.FetchInventorySlots(ctx, id[:])
		if err != nil {
			return err
		}

		slots := fMap(dbSlots, func(s sqlc.InventorySlot) inventory.Slot {
			return inventory.Slot{
				ItemID:   inventory.ItemID(s.ItemID),
				Quantity: uint64(s.Quantity),
			}
		})

		state, err = inventory.NewState(
			slots, inventory.Blinding(blinding),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// PutState overwrites the state of a single inventory.
func (s *SecretStore) PutState(ctx context.Context, id inventory.ID,
	state *inventory.State) error {

	return s.PutStates(ctx, map[inventory.ID]*inventory.State{id: state})
}

// PutStates overwrites the states of several inventories in a single
// database transaction.
func (s *SecretStore) PutStates(ctx context.Context,
	states map[inventory.ID]*inventory.State) error {

	ids := maps.Keys(states)
	slices.SortFunc(ids, func(a, b inventory.ID) bool {
		return slices.Compare(a[:], b[:]) < 0
	})

	now := s.clock.Now().UTC()
	err := s.db.ExecTx(ctx, WriteTxOption(), func(q SecretStorage) error {
		for _, id := range ids {
			state := states[id]

			err := q.UpsertInventorySecret(ctx, NewSecret{
				InventoryID: id[:],
				Blinding:    state.Blinding[:],
				UpdatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("unable to store blinding of "+
					"%v: %w", id, err)
			}

			if err := q.DeleteInventorySlots(ctx, id[:]); err != nil {
				return err
			}

			for _, slot := range state.SlotList() {
				err := q.InsertInventorySlot(ctx, NewSlot{
					InventoryID: id[:],
					ItemID:      sqlInt64(slot.ItemID),
					Quantity:    sqlInt64(slot.Quantity),
				})
				if err != nil {
					return fmt.Errorf("unable to store slot "+
						"%d of %v: %w", slot.ItemID, id,
						err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Debugf("Stored secret state of %d inventories", len(states))

	return nil
}

// ListInventories returns the ids of all inventories with a stored state.
func (s *SecretStore) ListInventories(
	ctx context.Context) ([]inventory.ID, error) {

	var ids []inventory.ID
	err := s.db.ExecTx(ctx, ReadTxOption(), func(q SecretStorage) error {
		rawIDs, err := q.ListSecretInventories(ctx)
		if err != nil {
			return err
		}

		ids, err = fMapErr(rawIDs, parseInventoryID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}
