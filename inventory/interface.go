package inventory

import (
	"context"
)

// StateStore durably maps an inventory to the secret state needed to prove
// its next transition. Losing an entry makes the inventory unprovable.
type StateStore interface {
	// FetchState returns the stored state of an inventory, or
	// ErrStateNotFound.
	FetchState(ctx context.Context, id ID) (*State, error)

	// PutState overwrites the state of a single inventory.
	PutState(ctx context.Context, id ID, state *State) error

	// PutStates overwrites the states of several inventories in a single
	// all-or-nothing write.
	PutStates(ctx context.Context, states map[ID]*State) error

	// ListInventories returns the ids of all inventories with a stored
	// state.
	ListInventories(ctx context.Context) ([]ID, error)
}

// CommitmentDeriver derives the commitment a state opens. The result is only
// ever compared against commitments found on chain, it is never trusted on
// its own.
type CommitmentDeriver interface {
	// DeriveCommitment returns the commitment binding the slots, used
	// volume and blinding factor of the given state.
	DeriveCommitment(ctx context.Context, state *State,
		usedVolume uint64) (Commitment, error)
}
