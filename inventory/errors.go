package inventory

import "errors"

var (
	// ErrInsufficientBalance is returned when a withdraw asks for more
	// than the slot holds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrCapacityExceeded is returned when a deposit would push the used
	// volume past the inventory's capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidOperation is returned for malformed operations: a zero
	// amount, an unknown or out of range item, or a value that does not
	// fit the circuit's range checks.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrProver is returned when the prover is unreachable, timed out or
	// rejected a request.
	ErrProver = errors.New("prover error")

	// ErrStateDesync is returned when the locally stored secret state
	// does not open the commitment found on chain.
	ErrStateDesync = errors.New("local state out of sync with chain")

	// ErrNonceMismatch is returned by a ledger when a call carries a nonce
	// other than the current one.
	ErrNonceMismatch = errors.New("nonce mismatch")

	// ErrProofVerificationFailed is returned by a ledger when a call's
	// proof or public inputs do not verify.
	ErrProofVerificationFailed = errors.New("proof verification failed")

	// ErrSignerUnavailable is returned when no key is available to sign a
	// transaction.
	ErrSignerUnavailable = errors.New("signer unavailable")

	// ErrStateNotFound is returned when no secret state is stored for an
	// inventory.
	ErrStateNotFound = errors.New("inventory state not found")

	// ErrInventoryBusy is returned when a batch touches an inventory that
	// another in-flight batch is already operating on.
	ErrInventoryBusy = errors.New("inventory has a batch in flight")
)

// IsLocal returns true for the errors raised by local pre-flight validation.
// These never reach the prover or the chain.
func IsLocal(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrInvalidOperation)
}
