package invfreighter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/stretchr/testify/require"
)

var testVolumes = map[inventory.ItemID]uint64{
	1: 2, 2: 3, 3: 5, 4: 10,
}

func newTestRegistry(t *testing.T) *inventory.Registry {
	t.Helper()

	reg, err := inventory.NewRegistry(testVolumes)
	require.NoError(t, err)

	return reg
}

func newTestState(t *testing.T,
	slots map[inventory.ItemID]uint64) *inventory.State {

	t.Helper()

	blinding, err := inventory.NewBlinding()
	require.NoError(t, err)

	state := inventory.EmptyState(blinding)
	for id, qty := range slots {
		state.Slots[id] = qty
	}

	return state
}

func newTestSnapshot(t *testing.T, reg *inventory.Registry, id byte,
	slots map[inventory.ItemID]uint64, maxCapacity uint64) *Snapshot {

	t.Helper()

	state := newTestState(t, slots)
	used, err := state.UsedVolume(reg)
	require.NoError(t, err)

	return &Snapshot{
		Record: &inventory.Record{
			ID:          inventory.ID{id},
			Commitment:  prover.MockCommitment(state, used),
			Nonce:       7,
			MaxCapacity: maxCapacity,
		},
		State:      state,
		UsedVolume: used,
	}
}

// TestCheckOperation covers the local feasibility checks and their order.
func TestCheckOperation(t *testing.T) {
	t.Parallel()

	pre := &inventory.State{Slots: map[inventory.ItemID]uint64{
		1: 100, 2: 50,
	}}
	bounded := inventory.ChainContext{MaxCapacity: 1000}
	unbounded := inventory.ChainContext{}

	op := func(typ inventory.OpType, item inventory.ItemID,
		amount, volume uint64) inventory.Operation {

		return inventory.Operation{
			ItemID:     item,
			Amount:     amount,
			Type:       typ,
			ItemVolume: volume,
		}
	}

	testCases := []struct {
		name      string
		volume    uint64
		op        inventory.Operation
		ctx       inventory.ChainContext
		expectErr error
	}{{
		name:   "withdraw within balance",
		volume: 350,
		op:     op(inventory.OpWithdraw, 1, 30, 2),
		ctx:    bounded,
	}, {
		name:      "withdraw above balance",
		volume:    350,
		op:        op(inventory.OpWithdraw, 1, 150, 2),
		ctx:       bounded,
		expectErr: inventory.ErrInsufficientBalance,
	}, {
		name:      "balance is checked before range",
		volume:    350,
		op:        op(inventory.OpWithdraw, 1, inventory.MaxValue+1, 2),
		ctx:       bounded,
		expectErr: inventory.ErrInsufficientBalance,
	}, {
		name:      "withdraw of item not held",
		volume:    350,
		op:        op(inventory.OpWithdraw, 3, 1, 5),
		ctx:       bounded,
		expectErr: inventory.ErrInsufficientBalance,
	}, {
		name:   "deposit up to capacity",
		volume: 350,
		op:     op(inventory.OpDeposit, 3, 130, 5),
		ctx:    bounded,
	}, {
		name:      "deposit past capacity",
		volume:    350,
		op:        op(inventory.OpDeposit, 3, 131, 5),
		ctx:       bounded,
		expectErr: inventory.ErrCapacityExceeded,
	}, {
		name:      "huge deposit doesn't wrap around",
		volume:    350,
		op:        op(inventory.OpDeposit, 3, 1<<62, 8),
		ctx:       bounded,
		expectErr: inventory.ErrCapacityExceeded,
	}, {
		name:   "zero volume deposit into full inventory",
		volume: 1000,
		op:     op(inventory.OpDeposit, 3, 40, 0),
		ctx:    bounded,
	}, {
		name:   "zero volume deposit into overfull inventory",
		volume: 1200,
		op:     op(inventory.OpDeposit, 3, 40, 0),
		ctx:    bounded,
	}, {
		name:   "withdraw from overfull inventory",
		volume: 1200,
		op:     op(inventory.OpWithdraw, 1, 10, 2),
		ctx:    bounded,
	}, {
		name:      "deposit into overfull inventory",
		volume:    1200,
		op:        op(inventory.OpDeposit, 3, 1, 5),
		ctx:       bounded,
		expectErr: inventory.ErrCapacityExceeded,
	}, {
		name:   "unbounded deposit",
		volume: 350,
		op:     op(inventory.OpDeposit, 3, 100_000, 5),
		ctx:    unbounded,
	}, {
		name:      "zero amount",
		volume:    350,
		op:        op(inventory.OpDeposit, 3, 0, 5),
		ctx:       bounded,
		expectErr: inventory.ErrInvalidOperation,
	}, {
		name:      "item out of range",
		volume:    350,
		op:        op(inventory.OpDeposit, inventory.MaxItemID+1, 1, 0),
		ctx:       unbounded,
		expectErr: inventory.ErrInvalidOperation,
	}, {
		name:      "amount out of range",
		volume:    350,
		op:        op(inventory.OpDeposit, 3, inventory.MaxValue+1, 0),
		ctx:       unbounded,
		expectErr: inventory.ErrInvalidOperation,
	}, {
		name:      "used volume overflows",
		volume:    inventory.MaxValue - 4,
		op:        op(inventory.OpDeposit, 3, 1, 5),
		ctx:       unbounded,
		expectErr: inventory.ErrInvalidOperation,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := CheckOperation(pre, tc.volume, tc.op, tc.ctx)
			if tc.expectErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.expectErr)
		})
	}
}

// TestProjectChain checks that the projection chains states and nonces per
// inventory and is deterministic.
func TestProjectChain(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, map[inventory.ItemID]uint64{
		1: 100, 2: 50,
	}, 1000)
	b := newTestSnapshot(t, reg, 2, map[inventory.ItemID]uint64{
		3: 4,
	}, 0)
	snapshots := map[inventory.ID]*Snapshot{
		a.Record.ID: a,
		b.Record.ID: b,
	}

	batch := NewBatch(
		Withdraw(a.Record.ID, 1, 30),
		TransferEntry(inventory.Transfer{
			Source:      b.Record.ID,
			Destination: a.Record.ID,
			ItemID:      3,
			Amount:      4,
		}),
		Deposit(a.Record.ID, 2, 1),
	)

	steps, err := Project(batch, snapshots, reg)
	require.NoError(t, err)
	require.Len(t, steps, 4)

	again, err := Project(batch, snapshots, reg)
	require.NoError(t, err)
	require.Equal(t, steps, again)

	// The snapshots themselves are never touched.
	require.Equal(t, uint64(100), a.State.Quantity(1))
	require.Equal(t, uint64(4), b.State.Quantity(3))

	type expect struct {
		id    inventory.ID
		nonce uint64
		group uint32
		pre   uint64
		post  uint64
	}
	expected := []expect{
		{a.Record.ID, 7, 0, 350, 290},
		{b.Record.ID, 7, 1, 20, 0},
		{a.Record.ID, 8, 1, 290, 310},
		{a.Record.ID, 9, 0, 310, 313},
	}
	for i, e := range expected {
		step := steps[i]
		require.Equal(t, i, step.Index)
		require.Equal(t, e.id, step.InventoryID)
		require.Equal(t, e.nonce, step.Context.Nonce)
		require.Equal(t, e.id, step.Context.InventoryID)
		require.Equal(t, reg.Root, step.Context.RegistryRoot)
		require.Equal(t, e.group, step.TransferGroup)
		require.Equal(t, e.pre, step.PreVolume)
		require.Equal(t, e.post, step.PostVolume)
	}

	// Each step starts where the previous step on the same inventory
	// ended.
	require.Equal(t, steps[0].Post.Slots, steps[2].Pre.Slots)
	require.Equal(t, steps[2].Post.Slots, steps[3].Pre.Slots)
	require.Empty(t, steps[1].Post.Slots)
	require.Equal(t, map[inventory.ItemID]uint64{
		1: 70, 2: 51, 3: 4,
	}, steps[3].Post.Slots)

	// Only the first step of a chain carries the stored blinding.
	require.Equal(t, a.State.Blinding, steps[0].Pre.Blinding)
	require.True(t, steps[2].Pre.Blinding.IsZero())
}

// TestProjectFailure checks that projection stops at the first infeasible
// step and reports its index.
func TestProjectFailure(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, map[inventory.ItemID]uint64{
		1: 10,
	}, 0)
	snapshots := map[inventory.ID]*Snapshot{a.Record.ID: a}

	testCases := []struct {
		name      string
		batch     *Batch
		expectErr error
		failIdx   int
	}{{
		name: "withdraw past earlier withdraw",
		batch: NewBatch(
			Withdraw(a.Record.ID, 1, 6),
			Withdraw(a.Record.ID, 1, 6),
		),
		expectErr: inventory.ErrInsufficientBalance,
		failIdx:   1,
	}, {
		name: "item not in registry",
		batch: NewBatch(
			Deposit(a.Record.ID, 9, 1),
		),
		expectErr: inventory.ErrInvalidOperation,
		failIdx:   0,
	}, {
		name: "withdraw of unknown item not held",
		batch: NewBatch(
			Withdraw(a.Record.ID, 9, 1),
		),
		expectErr: inventory.ErrInsufficientBalance,
		failIdx:   0,
	}, {
		name: "transfer of unknown item not held",
		batch: NewBatch(
			Deposit(a.Record.ID, 1, 1),
			TransferEntry(inventory.Transfer{
				Source:      a.Record.ID,
				Destination: inventory.ID{2},
				ItemID:      9,
				Amount:      1,
			}),
		),
		expectErr: inventory.ErrInsufficientBalance,
		failIdx:   1,
	}, {
		name: "transfer to itself",
		batch: NewBatch(TransferEntry(inventory.Transfer{
			Source:      a.Record.ID,
			Destination: a.Record.ID,
			ItemID:      1,
			Amount:      1,
		})),
		expectErr: inventory.ErrInvalidOperation,
		failIdx:   0,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Project(tc.batch, snapshots, reg)
			require.ErrorIs(t, err, tc.expectErr)

			var batchErr *BatchError
			require.ErrorAs(t, err, &batchErr)
			require.Equal(t, []int{tc.failIdx}, batchErr.FailedIndexes())
		})
	}
}

// TestSchedulerBlindings checks that every step gets its own blinding and
// the chain of blindings is threaded through each inventory.
func TestSchedulerBlindings(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, map[inventory.ItemID]uint64{
		1: 100,
	}, 0)
	b := newTestSnapshot(t, reg, 2, nil, 0)
	snapshots := map[inventory.ID]*Snapshot{
		a.Record.ID: a,
		b.Record.ID: b,
	}

	steps, err := Project(NewBatch(
		Withdraw(a.Record.ID, 1, 1),
		Deposit(b.Record.ID, 2, 1),
		Withdraw(a.Record.ID, 1, 1),
	), snapshots, reg)
	require.NoError(t, err)

	mock := prover.NewMockProver(0)
	scheduler := NewProofScheduler(mock, SchedulerConfig{})

	proven, err := scheduler.ProveSteps(context.Background(), steps)
	require.NoError(t, err)
	require.Len(t, proven, 3)

	seen := make(map[inventory.Blinding]struct{})
	for _, p := range proven {
		require.False(t, p.Post.Blinding.IsZero())
		require.NotEqual(t, p.Pre.Blinding, p.Post.Blinding)
		seen[p.Post.Blinding] = struct{}{}

		require.Equal(t, p.Post.Blinding, p.Request.NewBlinding)
		require.Equal(t, p.Pre.Blinding, p.Request.OldState.Blinding)
	}
	require.Len(t, seen, 3)

	require.Equal(t, a.State.Blinding, proven[0].Pre.Blinding)
	require.Equal(t, b.State.Blinding, proven[1].Pre.Blinding)
	require.Equal(t, proven[0].Post.Blinding, proven[2].Pre.Blinding)

	// The commitment chain matches the states we'll persist.
	final := FinalStates(proven)
	require.Equal(
		t, prover.MockCommitment(final[a.Record.ID], 196),
		proven[2].Artifact.NewCommitment,
	)

	// The projected steps were not mutated.
	require.True(t, steps[2].Pre.Blinding.IsZero())
}

// TestSchedulerFailure checks that one failing proof fails the batch but
// doesn't cancel its siblings.
func TestSchedulerFailure(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, nil, 0)
	snapshots := map[inventory.ID]*Snapshot{a.Record.ID: a}

	entries := make([]Entry, 4)
	for i := range entries {
		entries[i] = Deposit(a.Record.ID, 1, 1)
	}
	steps, err := Project(NewBatch(entries...), snapshots, reg)
	require.NoError(t, err)

	errBoom := errors.New("boom")
	mock := prover.NewMockProver(20 * time.Millisecond)
	mock.FailTransition = func(req *prover.TransitionRequest) error {
		if req.Context.Nonce == a.Record.Nonce+1 {
			return errBoom
		}
		return nil
	}

	scheduler := NewProofScheduler(mock, SchedulerConfig{})
	_, err = scheduler.ProveSteps(context.Background(), steps)
	require.ErrorIs(t, err, inventory.ErrProver)
	require.ErrorIs(t, err, errBoom)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, []int{1}, batchErr.FailedIndexes())

	// All siblings ran to completion.
	require.Equal(t, 4, mock.Calls())
}

// TestSchedulerTimeout checks that a hung proof fails the batch.
func TestSchedulerTimeout(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, nil, 0)
	snapshots := map[inventory.ID]*Snapshot{a.Record.ID: a}

	steps, err := Project(
		NewBatch(Deposit(a.Record.ID, 1, 1)), snapshots, reg,
	)
	require.NoError(t, err)

	mock := prover.NewMockProver(time.Minute)
	scheduler := NewProofScheduler(mock, SchedulerConfig{
		ProofTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err = scheduler.ProveSteps(context.Background(), steps)
	require.ErrorIs(t, err, inventory.ErrProver)
	require.Less(t, time.Since(start), 10*time.Second)
}

// TestSchedulerRejectsReusedBlinding makes sure a blinding source that
// repeats itself never makes it to the prover.
func TestSchedulerRejectsReusedBlinding(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, nil, 0)
	snapshots := map[inventory.ID]*Snapshot{a.Record.ID: a}

	steps, err := Project(NewBatch(
		Deposit(a.Record.ID, 1, 1),
		Deposit(a.Record.ID, 1, 1),
	), snapshots, reg)
	require.NoError(t, err)

	fixed := inventory.Blinding(inventory.FieldFromUint64(42))
	mock := prover.NewMockProver(0)
	scheduler := NewProofScheduler(mock, SchedulerConfig{
		NewBlinding: func() (inventory.Blinding, error) {
			return fixed, nil
		},
	})

	_, err = scheduler.ProveSteps(context.Background(), steps)
	require.ErrorIs(t, err, inventory.ErrInvalidOperation)
	require.Zero(t, mock.Calls())
}

// TestAssembleOrder checks calls are emitted in logical order with their
// transfer groups, and out of order input is refused.
func TestAssembleOrder(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	a := newTestSnapshot(t, reg, 1, map[inventory.ItemID]uint64{
		4: 5,
	}, 0)
	b := newTestSnapshot(t, reg, 2, nil, 0)
	snapshots := map[inventory.ID]*Snapshot{
		a.Record.ID: a,
		b.Record.ID: b,
	}

	steps, err := Project(NewBatch(
		Deposit(a.Record.ID, 1, 3),
		TransferEntry(inventory.Transfer{
			Source:      a.Record.ID,
			Destination: b.Record.ID,
			ItemID:      4,
			Amount:      2,
		}),
	), snapshots, reg)
	require.NoError(t, err)

	mock := prover.NewMockProver(0)
	mock.LatencyFor = func(req *prover.TransitionRequest) time.Duration {
		// Earlier steps finish last.
		return time.Duration(10-req.Context.Nonce) * 5 * time.Millisecond
	}
	proven, err := NewProofScheduler(mock, SchedulerConfig{}).ProveSteps(
		context.Background(), steps,
	)
	require.NoError(t, err)

	tx, err := AssembleTransaction(proven)
	require.NoError(t, err)
	require.Len(t, tx.Calls, 3)

	require.Equal(t, a.Record.ID, tx.Calls[0].InventoryID)
	require.Equal(t, inventory.OpDeposit, tx.Calls[0].Op)
	require.Equal(t, uint64(7), tx.Calls[0].Nonce)
	require.Zero(t, tx.Calls[0].TransferGroup)

	require.Equal(t, a.Record.ID, tx.Calls[1].InventoryID)
	require.Equal(t, inventory.OpWithdraw, tx.Calls[1].Op)
	require.Equal(t, uint64(8), tx.Calls[1].Nonce)
	require.Equal(t, uint32(1), tx.Calls[1].TransferGroup)

	require.Equal(t, b.Record.ID, tx.Calls[2].InventoryID)
	require.Equal(t, inventory.OpDeposit, tx.Calls[2].Op)
	require.Equal(t, uint64(7), tx.Calls[2].Nonce)
	require.Equal(t, uint32(1), tx.Calls[2].TransferGroup)

	for i, call := range tx.Calls {
		require.Equal(
			t, proven[i].Artifact.NewCommitment, call.NewCommitment,
		)
	}

	swapped := []*ProvenStep{proven[1], proven[0], proven[2]}
	_, err = AssembleTransaction(swapped)
	require.Error(t, err)
}
