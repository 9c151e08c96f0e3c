package inventory

import (
	"github.com/btcsuite/btcd/btcec/v2"
)

// Record is the public on-chain record of an inventory. The chain is
// authoritative for every field.
type Record struct {
	// ID is the immutable object id of the inventory.
	ID ID

	// Commitment is the latest accepted commitment.
	Commitment Commitment

	// Nonce is bumped by one on every accepted transition. A proof built
	// for nonce N only applies while the record is at nonce N.
	Nonce uint64

	// Owner is the key authorized to submit transitions.
	Owner *btcec.PublicKey

	// MaxCapacity bounds the used volume. Zero means unbounded.
	MaxCapacity uint64
}

// Context returns the immutable chain context a proof for the next
// transition of this record must be bound to.
func (r *Record) Context(registryRoot FieldElement) ChainContext {
	return ChainContext{
		Nonce:        r.Nonce,
		InventoryID:  r.ID,
		RegistryRoot: registryRoot,
		MaxCapacity:  r.MaxCapacity,
	}
}

// ChainContext is the slice of freshly synced chain state a single proof is
// bound to.
type ChainContext struct {
	// Nonce is the nonce the proven transition must be applied at.
	Nonce uint64

	// InventoryID is the inventory the proof is bound to.
	InventoryID ID

	// RegistryRoot is the registry the item volume is proven against.
	RegistryRoot FieldElement

	// MaxCapacity is the capacity bound, zero if unbounded.
	MaxCapacity uint64
}

// Advance returns the context for the transition following this one.
func (c ChainContext) Advance() ChainContext {
	c.Nonce++
	return c
}

// Bounded returns true if the inventory has a capacity limit.
func (c ChainContext) Bounded() bool {
	return c.MaxCapacity != 0
}
