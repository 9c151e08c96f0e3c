package prover

import (
	"context"

	"github.com/lightninglabs/zkinv/inventory"
)

// TransitionRequest is everything the prover needs to prove a single state
// transition: the pre state, the fresh blinding factor of the post state,
// the operation and the chain context the proof is bound to.
type TransitionRequest struct {
	// OldState holds the pre state slots and its blinding factor.
	OldState *inventory.State

	// OldVolume is the used volume of the pre state.
	OldVolume uint64

	// NewBlinding is the blinding factor of the post state.
	NewBlinding inventory.Blinding

	// Op is the operation being proven.
	Op inventory.Operation

	// Context is the freshly synced chain context the proof is bound to.
	Context inventory.ChainContext
}

// Attestation is a read-only proof about a committed state.
type Attestation struct {
	// Proof is the serialized proof.
	Proof []byte

	// PublicInputs are the public inputs of the proof.
	PublicInputs []inventory.FieldElement
}

// Prover is the external proof generation backend.
type Prover interface {
	inventory.CommitmentDeriver

	// ProveTransition proves a deposit or withdraw.
	ProveTransition(ctx context.Context,
		req *TransitionRequest) (*inventory.ProofArtifact, error)

	// ProveHolding proves the state holds at least minQuantity units of
	// an item without revealing the rest of the inventory.
	ProveHolding(ctx context.Context, state *inventory.State,
		usedVolume uint64, item inventory.ItemID,
		minQuantity uint64) (*Attestation, error)

	// ProveCapacity proves the state's used volume is within maxCapacity.
	ProveCapacity(ctx context.Context, state *inventory.State,
		usedVolume, maxCapacity uint64) (*Attestation, error)
}
