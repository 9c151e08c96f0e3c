package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightninglabs/zkinv/inventory"
)

var (
	// ErrInventoryNotFound is returned when an inventory does not exist
	// on chain.
	ErrInventoryNotFound = errors.New("inventory not found")

	// ErrMalformedTransaction is returned for transactions that are
	// rejected before any call is evaluated.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrUnauthorized is returned when the signer does not own an
	// inventory touched by the transaction, or the signature is invalid.
	ErrUnauthorized = errors.New("unauthorized")
)

// CallError reports the call of a transaction that aborted it.
type CallError struct {
	// Index is the position of the failing call.
	Index int

	// Call is the failing call.
	Call *Call

	// Err is the reason.
	Err error
}

// Error returns the error message.
func (e *CallError) Error() string {
	return fmt.Sprintf("call %d (%v) aborted transaction: %v", e.Index,
		e.Call, e.Err)
}

// Unwrap returns the underlying reason.
func (e *CallError) Unwrap() error {
	return e.Err
}

// ProofVerifier checks a call's proof against the verifying key of its
// operation type.
type ProofVerifier interface {
	// VerifyProof returns an error if the proof does not verify.
	VerifyProof(call *Call) error
}

// BindingVerifier checks that a call's public inputs bind its proof to the
// nonce, inventory and registry root the call claims. It does not check the
// proof itself.
type BindingVerifier struct{}

// A compile time assertion to ensure BindingVerifier meets the ProofVerifier
// interface.
var _ ProofVerifier = (*BindingVerifier)(nil)

// VerifyProof checks the public input binding of the call.
func (b *BindingVerifier) VerifyProof(call *Call) error {
	inputs := call.PublicInputs

	switch {
	case len(call.Proof) == 0:
		return fmt.Errorf("empty proof")

	case len(inputs) != inventory.NumTransitionInputs:
		return fmt.Errorf("expected %d public inputs, got %d",
			inventory.NumTransitionInputs, len(inputs))

	case inputs[inventory.PublicInputNonce] !=
		inventory.FieldFromUint64(call.Nonce):

		return fmt.Errorf("proof not bound to nonce %d", call.Nonce)

	case inputs[inventory.PublicInputInventoryID] !=
		call.InventoryID.FieldElement():

		return fmt.Errorf("proof not bound to inventory %v",
			call.InventoryID)

	case inputs[inventory.PublicInputRegistryRoot] != call.RegistryRoot:
		return fmt.Errorf("proof not bound to registry root %v",
			call.RegistryRoot)
	}

	return nil
}

// StateView is the read access to chain state needed to execute a
// transaction.
type StateView interface {
	// Record returns the current record of an inventory.
	Record(id inventory.ID) (*inventory.Record, error)

	// RegistryRoot returns the current registry root.
	RegistryRoot() inventory.FieldElement
}

// CheckStructure validates the shape of a transaction: at least one call,
// and every transfer group made of exactly one withdraw and one deposit of
// the same item and amount on two different inventories.
func CheckStructure(tx *Transaction) error {
	if len(tx.Calls) == 0 {
		return fmt.Errorf("%w: no calls", ErrMalformedTransaction)
	}

	groups := make(map[uint32][]*Call)
	for i := range tx.Calls {
		c := &tx.Calls[i]
		if c.TransferGroup != 0 {
			groups[c.TransferGroup] = append(
				groups[c.TransferGroup], c,
			)
		}
	}

	for id, legs := range groups {
		if len(legs) != 2 {
			return fmt.Errorf("%w: transfer %d has %d legs",
				ErrMalformedTransaction, id, len(legs))
		}

		w, d := legs[0], legs[1]
		if w.Op == inventory.OpDeposit {
			w, d = d, w
		}

		switch {
		case w.Op != inventory.OpWithdraw || d.Op != inventory.OpDeposit:
			return fmt.Errorf("%w: transfer %d needs a withdraw "+
				"and a deposit", ErrMalformedTransaction, id)

		case w.ItemID != d.ItemID || w.Amount != d.Amount:
			return fmt.Errorf("%w: transfer %d legs move different "+
				"items", ErrMalformedTransaction, id)

		case w.InventoryID == d.InventoryID:
			return fmt.Errorf("%w: transfer %d within a single "+
				"inventory", ErrMalformedTransaction, id)
		}
	}

	return nil
}

// CheckSignature verifies the transaction signature and that the signer owns
// every touched inventory.
func CheckSignature(tx *Transaction, view StateView) error {
	if tx.Signer == nil || len(tx.Signature) == 0 {
		return fmt.Errorf("%w: unsigned transaction", ErrUnauthorized)
	}

	digest, err := tx.Digest()
	if err != nil {
		return err
	}

	sig, err := schnorr.ParseSignature(tx.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !sig.Verify(digest[:], tx.Signer) {
		return fmt.Errorf("%w: invalid signature", ErrUnauthorized)
	}

	signer := schnorr.SerializePubKey(tx.Signer)
	for _, id := range tx.Inventories() {
		record, err := view.Record(id)
		if err != nil {
			return err
		}

		if record.Owner == nil ||
			!bytes.Equal(schnorr.SerializePubKey(record.Owner), signer) {

			return fmt.Errorf("%w: signer does not own inventory %v",
				ErrUnauthorized, id)
		}
	}

	return nil
}

// ApplyCall checks a single call against the current record of its
// inventory and, if it is valid, returns the updated record. The passed
// record is not modified.
func ApplyCall(record *inventory.Record, registryRoot inventory.FieldElement,
	call *Call, verifier ProofVerifier) (*inventory.Record, error) {

	if call.InventoryID != record.ID {
		return nil, fmt.Errorf("%w: call for inventory %v applied to %v",
			inventory.ErrProofVerificationFailed, call.InventoryID,
			record.ID)
	}

	if call.Nonce != record.Nonce {
		return nil, fmt.Errorf("%w: call nonce %d, inventory at %d",
			inventory.ErrNonceMismatch, call.Nonce, record.Nonce)
	}

	if call.RegistryRoot != registryRoot {
		return nil, fmt.Errorf("%w: stale registry root %v",
			inventory.ErrProofVerificationFailed, call.RegistryRoot)
	}

	if err := verifier.VerifyProof(call); err != nil {
		return nil, fmt.Errorf("%w: %v",
			inventory.ErrProofVerificationFailed, err)
	}

	next := *record
	next.Commitment = call.NewCommitment
	next.Nonce++

	return &next, nil
}

// Execute evaluates all calls of a transaction in order against view. Each
// call sees the effects of the calls before it. On success the final records
// of all touched inventories are returned, nothing is written: persisting the
// result is up to the caller, which keeps the execution all-or-nothing.
func Execute(tx *Transaction, view StateView,
	verifier ProofVerifier) (map[inventory.ID]*inventory.Record, error) {

	if err := CheckStructure(tx); err != nil {
		return nil, err
	}
	if err := CheckSignature(tx, view); err != nil {
		return nil, err
	}

	root := view.RegistryRoot()
	updated := make(map[inventory.ID]*inventory.Record)

	for i := range tx.Calls {
		call := &tx.Calls[i]

		current, ok := updated[call.InventoryID]
		if !ok {
			record, err := view.Record(call.InventoryID)
			if err != nil {
				return nil, &CallError{Index: i, Call: call, Err: err}
			}
			current = record
		}

		next, err := ApplyCall(current, root, call, verifier)
		if err != nil {
			return nil, &CallError{Index: i, Call: call, Err: err}
		}

		updated[call.InventoryID] = next
	}

	return updated, nil
}
