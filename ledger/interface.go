package ledger

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/zkinv/inventory"
)

// Receipt is returned for an accepted transaction.
type Receipt struct {
	// Digest identifies the transaction.
	Digest chainhash.Hash

	// Records are the records of all touched inventories after the
	// transaction was applied.
	Records map[inventory.ID]*inventory.Record
}

// Ledger is the on-chain state machine holding inventory records and the
// item registry.
type Ledger interface {
	// FetchInventory returns the current record of an inventory, or
	// ErrInventoryNotFound.
	FetchInventory(ctx context.Context,
		id inventory.ID) (*inventory.Record, error)

	// FetchRegistry returns the current item registry.
	FetchRegistry(ctx context.Context) (*inventory.Registry, error)

	// SubmitTransaction applies all calls of the transaction in order,
	// or none of them.
	SubmitTransaction(ctx context.Context, tx *Transaction) (*Receipt,
		error)

	// CreateInventory creates a new inventory at nonce zero.
	CreateInventory(ctx context.Context, owner *btcec.PublicKey,
		commitment inventory.Commitment,
		maxCapacity uint64) (*inventory.Record, error)
}

// Signer authorizes transactions.
type Signer interface {
	// PubKey returns the signing key, or ErrSignerUnavailable.
	PubKey() (*btcec.PublicKey, error)

	// SignDigest signs a transaction digest, or fails with
	// ErrSignerUnavailable.
	SignDigest(digest chainhash.Hash) (*schnorr.Signature, error)
}
