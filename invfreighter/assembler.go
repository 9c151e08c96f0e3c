package invfreighter

import (
	"fmt"

	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/ledger"
)

// AssembleTransaction builds the unsigned transaction carrying one call per
// proven step, in logical order. The ledger applies the calls in exactly
// this order, so call i only verifies once calls 0..i-1 bumped the nonce.
func AssembleTransaction(proven []*ProvenStep) (*ledger.Transaction, error) {
	if len(proven) == 0 {
		return nil, fmt.Errorf("%w: nothing to assemble",
			inventory.ErrInvalidOperation)
	}

	calls := make([]ledger.Call, 0, len(proven))
	for i, p := range proven {
		if p.Index != i {
			return nil, fmt.Errorf("step %d found at position %d",
				p.Index, i)
		}
		if err := checkArtifact(&p.Step, p.Artifact); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		a := p.Artifact
		calls = append(calls, ledger.Call{
			InventoryID:   a.InventoryID,
			Op:            p.Op.Type,
			ItemID:        p.Op.ItemID,
			Amount:        p.Op.Amount,
			Nonce:         a.Nonce,
			RegistryRoot:  a.RegistryRoot,
			NewCommitment: a.NewCommitment,
			Proof:         a.Proof,
			PublicInputs:  a.PublicInputs,
			TransferGroup: p.TransferGroup,
		})
	}

	return &ledger.Transaction{Calls: calls}, nil
}

// FinalStates returns the post state of the last step of every inventory.
// These are written to the state store once the transaction landed.
func FinalStates(proven []*ProvenStep) map[inventory.ID]*inventory.State {
	final := make(map[inventory.ID]*inventory.State)
	for _, p := range proven {
		final[p.InventoryID] = p.Post.Copy()
	}

	return final
}

// Artifacts returns the artifacts of the proven steps in logical order.
func Artifacts(proven []*ProvenStep) []*inventory.ProofArtifact {
	artifacts := make([]*inventory.ProofArtifact, 0, len(proven))
	for _, p := range proven {
		artifacts = append(artifacts, p.Artifact)
	}

	return artifacts
}
