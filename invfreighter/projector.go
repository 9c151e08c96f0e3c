package invfreighter

import (
	"fmt"

	"github.com/lightninglabs/zkinv/inventory"
)

// Snapshot is the synced starting point of an inventory: its authoritative
// record and the local secret state that opens the record's commitment.
type Snapshot struct {
	// Record is the freshly fetched on-chain record.
	Record *inventory.Record

	// State is the local secret state, including its blinding factor.
	State *inventory.State

	// UsedVolume is the used volume of State under the synced registry.
	UsedVolume uint64
}

// Step is a single projected transition of a batch.
type Step struct {
	// Index is the logical position of the step within the batch.
	Index int

	// InventoryID is the inventory the step applies to.
	InventoryID inventory.ID

	// Op is the operation of the step with its registry volume filled
	// in.
	Op inventory.Operation

	// Pre is the state before the step. Only the first step of an
	// inventory carries a blinding factor here, later ones get theirs
	// once blindings are assigned.
	Pre *inventory.State

	// Post is the state after the step, without a blinding factor.
	Post *inventory.State

	// PreVolume is the used volume of Pre.
	PreVolume uint64

	// PostVolume is the used volume of Post.
	PostVolume uint64

	// Context is the chain context the step's proof is bound to. Its
	// nonce is the synced nonce plus the number of earlier steps on the
	// same inventory.
	Context inventory.ChainContext

	// TransferGroup pairs the two legs of a transfer, zero otherwise.
	TransferGroup uint32
}

// chainHead is the running head of one inventory's chain during projection.
type chainHead struct {
	state  *inventory.State
	volume uint64
	ctx    inventory.ChainContext
}

// Project computes the chain of intermediate states of a batch. It is a pure
// fold over the batch entries: step i's pre state is step i-1's post state on
// the same inventory, and the first step of an inventory starts from its
// snapshot. A transfer expands into a withdraw step on the source followed by
// a deposit step on the destination. Every step is checked with
// CheckOperation, so an infeasible batch fails here before any proof is
// requested.
func Project(batch *Batch, snapshots map[inventory.ID]*Snapshot,
	registry *inventory.Registry) ([]Step, error) {

	var (
		steps     []Step
		heads     = make(map[inventory.ID]*chainHead)
		nextGroup uint32
	)

	fail := func(id inventory.ID, op inventory.Operation,
		err error) error {

		return &BatchError{Steps: []*StepError{{
			Index:       len(steps),
			InventoryID: id,
			Op:          op,
			Err:         err,
		}}}
	}

	head := func(id inventory.ID) (*chainHead, error) {
		if h, ok := heads[id]; ok {
			return h, nil
		}

		snap, ok := snapshots[id]
		if !ok {
			return nil, fmt.Errorf("inventory %v was not synced", id)
		}

		h := &chainHead{
			state:  snap.State.Copy(),
			volume: snap.UsedVolume,
			ctx:    snap.Record.Context(registry.Root),
		}
		heads[id] = h

		return h, nil
	}

	project := func(id inventory.ID, op inventory.Operation,
		group uint32) error {

		h, err := head(id)
		if err != nil {
			return fail(id, op, err)
		}

		err = CheckOperation(h.state, h.volume, op, h.ctx)
		if err != nil {
			return fail(id, op, err)
		}

		post, err := h.state.Apply(op)
		if err != nil {
			return fail(id, op, err)
		}
		postVolume := inventory.NextVolume(h.volume, op)

		steps = append(steps, Step{
			Index:         len(steps),
			InventoryID:   id,
			Op:            op,
			Pre:           h.state,
			Post:          post,
			PreVolume:     h.volume,
			PostVolume:    postVolume,
			Context:       h.ctx,
			TransferGroup: group,
		})

		heads[id] = &chainHead{
			state:  post.Copy(),
			volume: postVolume,
			ctx:    h.ctx.Advance(),
		}

		return nil
	}

	for _, entry := range batch.Entries {
		op := inventory.Operation{
			ItemID: entry.ItemID,
			Amount: entry.Amount,
			Type:   entry.Type,
		}

		volume, err := registry.Volume(entry.ItemID)
		if err != nil {
			// An overdraft is reported ahead of an unknown item.
			if h, headErr := head(entry.Inventory); headErr == nil {
				balErr := checkBalance(h.state, op)
				if balErr != nil {
					return nil, fail(entry.Inventory, op, balErr)
				}
			}

			return nil, fail(entry.Inventory, op, err)
		}
		op.ItemVolume = volume

		if !entry.IsTransfer() {
			if err := project(entry.Inventory, op, 0); err != nil {
				return nil, err
			}
			continue
		}

		if *entry.Destination == entry.Inventory {
			return nil, fail(entry.Inventory, op, fmt.Errorf(
				"%w: transfer to itself",
				inventory.ErrInvalidOperation,
			))
		}

		nextGroup++
		transfer := inventory.Transfer{
			Source:      entry.Inventory,
			Destination: *entry.Destination,
			ItemID:      entry.ItemID,
			Amount:      entry.Amount,
		}
		withdraw, deposit := transfer.Legs(volume)

		err = project(transfer.Source, withdraw, nextGroup)
		if err != nil {
			return nil, err
		}
		err = project(transfer.Destination, deposit, nextGroup)
		if err != nil {
			return nil, err
		}
	}

	return steps, nil
}
