package invfreighter

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/ledger"
)

// BatchState is the state of a batch within the commit protocol.
type BatchState uint8

const (
	// BatchStateIdle is the state of a queued batch that has not been
	// picked up yet.
	BatchStateIdle BatchState = iota

	// BatchStateSyncing fetches the authoritative records of all touched
	// inventories and checks the local secret state against them.
	BatchStateSyncing

	// BatchStateProjecting computes the intermediate states of every
	// step.
	BatchStateProjecting

	// BatchStateProving generates the proofs of all steps in parallel.
	BatchStateProving

	// BatchStateSubmitting assembles, signs and submits the transaction.
	BatchStateSubmitting

	// BatchStateCommitted is the terminal state of a batch that landed on
	// chain and whose final secret state was persisted.
	BatchStateCommitted

	// BatchStateAborted is the terminal state of a batch that failed.
	// Nothing was written to the local state store.
	BatchStateAborted
)

// String returns a human readable name of the state.
func (s BatchState) String() string {
	switch s {
	case BatchStateIdle:
		return "BatchStateIdle"

	case BatchStateSyncing:
		return "BatchStateSyncing"

	case BatchStateProjecting:
		return "BatchStateProjecting"

	case BatchStateProving:
		return "BatchStateProving"

	case BatchStateSubmitting:
		return "BatchStateSubmitting"

	case BatchStateCommitted:
		return "BatchStateCommitted"

	case BatchStateAborted:
		return "BatchStateAborted"

	default:
		return fmt.Sprintf("<unknown batch state %d>", uint8(s))
	}
}

// Terminal returns true for the Committed and Aborted states.
func (s BatchState) Terminal() bool {
	return s == BatchStateCommitted || s == BatchStateAborted
}

// Entry is a single user level operation of a batch: either a deposit or
// withdraw against one inventory, or a transfer between two.
type Entry struct {
	// Inventory is the inventory operated on. For transfers this is the
	// source.
	Inventory inventory.ID

	// Destination is set for transfers only.
	Destination *inventory.ID

	// ItemID is the item moved.
	ItemID inventory.ItemID

	// Amount is the number of units moved.
	Amount uint64

	// Type is deposit or withdraw. It is ignored for transfers.
	Type inventory.OpType
}

// Deposit returns a deposit entry.
func Deposit(id inventory.ID, item inventory.ItemID, amount uint64) Entry {
	return Entry{
		Inventory: id,
		ItemID:    item,
		Amount:    amount,
		Type:      inventory.OpDeposit,
	}
}

// Withdraw returns a withdraw entry.
func Withdraw(id inventory.ID, item inventory.ItemID, amount uint64) Entry {
	return Entry{
		Inventory: id,
		ItemID:    item,
		Amount:    amount,
		Type:      inventory.OpWithdraw,
	}
}

// TransferEntry returns an entry moving items between two inventories.
func TransferEntry(t inventory.Transfer) Entry {
	dest := t.Destination
	return Entry{
		Inventory:   t.Source,
		Destination: &dest,
		ItemID:      t.ItemID,
		Amount:      t.Amount,
		Type:        inventory.OpWithdraw,
	}
}

// IsTransfer returns true if the entry moves items between inventories.
func (e Entry) IsTransfer() bool {
	return e.Destination != nil
}

// String returns a short description of the entry.
func (e Entry) String() string {
	if e.IsTransfer() {
		return fmt.Sprintf("transfer(%v -> %v, item=%d, amount=%d)",
			e.Inventory, *e.Destination, e.ItemID, e.Amount)
	}

	return fmt.Sprintf("%v(%v, item=%d, amount=%d)", e.Type, e.Inventory,
		e.ItemID, e.Amount)
}

// Batch is an ordered list of entries whose proofs are generated in parallel
// but applied on chain strictly in order within one atomic transaction.
type Batch struct {
	Entries []Entry
}

// NewBatch creates a batch from the given entries.
func NewBatch(entries ...Entry) *Batch {
	return &Batch{Entries: entries}
}

// Inventories returns the distinct inventories touched by the batch in order
// of first appearance.
func (b *Batch) Inventories() []inventory.ID {
	seen := make(map[inventory.ID]struct{})

	var ids []inventory.ID
	add := func(id inventory.ID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, e := range b.Entries {
		add(e.Inventory)
		if e.IsTransfer() {
			add(*e.Destination)
		}
	}

	return ids
}

// BatchRecord is the journal entry of a batch.
type BatchRecord struct {
	// ID identifies the batch within the journal.
	ID int64

	// State is the last state the batch reached.
	State BatchState

	// Inventories are the inventories the batch touches.
	Inventories []inventory.ID

	// NumEntries is the number of entries of the batch.
	NumEntries int

	// TxDigest is the digest of the submitted transaction, if any.
	TxDigest *chainhash.Hash

	// Artifacts are the proofs generated for the batch, in logical
	// order.
	Artifacts []*inventory.ProofArtifact

	// Failure is the reason an aborted batch failed.
	Failure string

	// CreatedAt is the time the batch was picked up.
	CreatedAt time.Time

	// UpdatedAt is the time of the last state change.
	UpdatedAt time.Time
}

// BatchResult is returned for a committed batch.
type BatchResult struct {
	// LogID is the journal id of the batch, zero without a journal.
	LogID int64

	// Receipt is the ledger's receipt of the transaction.
	Receipt *ledger.Receipt

	// Artifacts are the proofs the transaction carried, in logical order.
	Artifacts []*inventory.ProofArtifact

	// States are the persisted final secret states of all touched
	// inventories.
	States map[inventory.ID]*inventory.State
}
