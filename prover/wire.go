package prover

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/inventory"
)

const (
	healthPath           = "/health"
	transitionPath       = "/api/prove/state-transition"
	itemExistsPath       = "/api/prove/item-exists"
	capacityPath         = "/api/prove/capacity"
	createCommitmentPath = "/api/commitment/create"
)

type itemJSON struct {
	ItemID   uint64 `json:"item_id"`
	Quantity uint64 `json:"quantity"`
}

func slotsJSON(state *inventory.State) []itemJSON {
	return fn.Map(state.SlotList(), func(s inventory.Slot) itemJSON {
		return itemJSON{ItemID: uint64(s.ItemID), Quantity: s.Quantity}
	})
}

type transitionRequestJSON struct {
	Inventory     []itemJSON `json:"inventory"`
	CurrentVolume uint64     `json:"current_volume"`
	OldBlinding   string     `json:"old_blinding"`
	NewBlinding   string     `json:"new_blinding"`
	ItemID        uint64     `json:"item_id"`
	Amount        uint64     `json:"amount"`
	ItemVolume    uint64     `json:"item_volume"`
	RegistryRoot  string     `json:"registry_root"`
	MaxCapacity   uint64     `json:"max_capacity"`
	Nonce         uint64     `json:"nonce"`
	InventoryID   string     `json:"inventory_id"`
	OpType        string     `json:"op_type"`
}

func newTransitionRequestJSON(req *TransitionRequest) *transitionRequestJSON {
	return &transitionRequestJSON{
		Inventory:     slotsJSON(req.OldState),
		CurrentVolume: req.OldVolume,
		OldBlinding:   req.OldState.Blinding.String(),
		NewBlinding:   req.NewBlinding.String(),
		ItemID:        uint64(req.Op.ItemID),
		Amount:        req.Op.Amount,
		ItemVolume:    req.Op.ItemVolume,
		RegistryRoot:  req.Context.RegistryRoot.String(),
		MaxCapacity:   req.Context.MaxCapacity,
		Nonce:         req.Context.Nonce,
		InventoryID:   req.Context.InventoryID.FieldElement().String(),
		OpType:        req.Op.Type.String(),
	}
}

type transitionResponseJSON struct {
	Proof         string   `json:"proof"`
	PublicInputs  []string `json:"public_inputs"`
	NewCommitment string   `json:"new_commitment"`
	NewVolume     uint64   `json:"new_volume"`
	Nonce         uint64   `json:"nonce"`
	InventoryID   string   `json:"inventory_id"`
	RegistryRoot  string   `json:"registry_root"`
}

// artifact decodes the response and checks that the prover bound the proof
// to exactly the context that was requested.
func (r *transitionResponseJSON) artifact(
	req *TransitionRequest) (*inventory.ProofArtifact, error) {

	proof, err := decodeProof(r.Proof)
	if err != nil {
		return nil, err
	}

	inputs, err := fn.MapErr(r.PublicInputs, inventory.ParseFieldElement)
	if err != nil {
		return nil, fmt.Errorf("invalid public inputs: %w", err)
	}

	commitment, err := inventory.ParseCommitment(r.NewCommitment)
	if err != nil {
		return nil, fmt.Errorf("invalid new commitment: %w", err)
	}

	echoedID, err := inventory.ParseFieldElement(r.InventoryID)
	if err != nil {
		return nil, fmt.Errorf("invalid inventory id: %w", err)
	}

	echoedRoot, err := inventory.ParseFieldElement(r.RegistryRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid registry root: %w", err)
	}

	switch {
	case r.Nonce != req.Context.Nonce:
		return nil, fmt.Errorf("proof bound to nonce %d, requested %d",
			r.Nonce, req.Context.Nonce)

	case echoedID != req.Context.InventoryID.FieldElement():
		return nil, fmt.Errorf("proof bound to inventory %v, "+
			"requested %v", echoedID, req.Context.InventoryID)

	case echoedRoot != req.Context.RegistryRoot:
		return nil, fmt.Errorf("proof bound to registry root %v, "+
			"requested %v", echoedRoot, req.Context.RegistryRoot)
	}

	return &inventory.ProofArtifact{
		Proof:         proof,
		PublicInputs:  inputs,
		Nonce:         r.Nonce,
		InventoryID:   req.Context.InventoryID,
		RegistryRoot:  echoedRoot,
		NewCommitment: commitment,
		NewVolume:     r.NewVolume,
	}, nil
}

type itemExistsRequestJSON struct {
	Inventory     []itemJSON `json:"inventory"`
	CurrentVolume uint64     `json:"current_volume"`
	Blinding      string     `json:"blinding"`
	ItemID        uint64     `json:"item_id"`
	MinQuantity   uint64     `json:"min_quantity"`
}

type capacityRequestJSON struct {
	Inventory     []itemJSON `json:"inventory"`
	CurrentVolume uint64     `json:"current_volume"`
	Blinding      string     `json:"blinding"`
	MaxCapacity   uint64     `json:"max_capacity"`
}

type proofResponseJSON struct {
	Proof        string   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
}

func (r *proofResponseJSON) attestation() (*Attestation, error) {
	proof, err := decodeProof(r.Proof)
	if err != nil {
		return nil, err
	}

	inputs, err := fn.MapErr(r.PublicInputs, inventory.ParseFieldElement)
	if err != nil {
		return nil, fmt.Errorf("invalid public inputs: %w", err)
	}

	return &Attestation{Proof: proof, PublicInputs: inputs}, nil
}

type createCommitmentRequestJSON struct {
	Inventory     []itemJSON `json:"inventory"`
	CurrentVolume uint64     `json:"current_volume"`
	Blinding      string     `json:"blinding"`
}

type createCommitmentResponseJSON struct {
	Commitment    string `json:"commitment"`
	InventoryRoot string `json:"inventory_root"`
}

type healthResponseJSON struct {
	Status string `json:"status"`
}

type errorResponseJSON struct {
	Error string `json:"error"`
}

func decodeProof(s string) ([]byte, error) {
	proof, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid proof encoding: %w", err)
	}
	if len(proof) == 0 {
		return nil, fmt.Errorf("empty proof")
	}

	return proof, nil
}
