package invfreighter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/ledger"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
)

// memBatchLog is a BatchLog kept in memory.
type memBatchLog struct {
	mu      sync.Mutex
	batches []BatchRecord
}

func (m *memBatchLog) LogNewBatch(_ context.Context,
	batch *BatchRecord) (int64, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *batch
	rec.ID = int64(len(m.batches) + 1)
	m.batches = append(m.batches, rec)

	return rec.ID, nil
}

func (m *memBatchLog) UpdateBatch(_ context.Context,
	batch *BatchRecord) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if batch.ID < 1 || int(batch.ID) > len(m.batches) {
		return fmt.Errorf("unknown batch %d", batch.ID)
	}
	m.batches[batch.ID-1] = *batch

	return nil
}

func (m *memBatchLog) FetchBatch(_ context.Context,
	id int64) (*BatchRecord, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 1 || int(id) > len(m.batches) {
		return nil, fmt.Errorf("unknown batch %d", id)
	}
	rec := m.batches[id-1]

	return &rec, nil
}

func (m *memBatchLog) ListBatches(_ context.Context,
	limit int) ([]*BatchRecord, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*BatchRecord
	for i := len(m.batches) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		rec := m.batches[i]
		out = append(out, &rec)
	}

	return out, nil
}

// memRecordCache is a RecordCache kept in memory.
type memRecordCache struct {
	mu      sync.Mutex
	records map[inventory.ID]inventory.Record
}

func newMemRecordCache() *memRecordCache {
	return &memRecordCache{
		records: make(map[inventory.ID]inventory.Record),
	}
}

func (m *memRecordCache) CacheRecords(_ context.Context,
	records ...*inventory.Record) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		m.records[r.ID] = *r
	}

	return nil
}

func (m *memRecordCache) CachedRecord(_ context.Context,
	id inventory.ID) (*inventory.Record, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotCached
	}

	return &r, nil
}

type porterHarness struct {
	t *testing.T

	prover   *prover.MockProver
	ledger   *ledger.MemLedger
	store    *inventory.FileStore
	signer   *ledger.KeySigner
	registry *inventory.Registry
	batchLog *memBatchLog
	cache    *memRecordCache
	ticker   *ticker.Force
	errChan  chan error

	porter *BatchPorter
}

func newPorterHarness(t *testing.T, latency time.Duration,
	verifier ledger.ProofVerifier) *porterHarness {

	t.Helper()

	reg := newTestRegistry(t)

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	h := &porterHarness{
		t:        t,
		prover:   prover.NewMockProver(latency),
		ledger:   ledger.NewMemLedger(reg, verifier),
		store:    inventory.NewFileStore(
			filepath.Join(t.TempDir(), "states.json"),
		),
		signer:   ledger.NewKeySigner(privKey),
		registry: reg,
		batchLog: &memBatchLog{},
		cache:    newMemRecordCache(),
		errChan:  make(chan error, 10),
	}
	h.startPorter(h.signer)

	return h
}

func (h *porterHarness) startPorter(signer ledger.Signer) {
	if h.porter != nil {
		require.NoError(h.t, h.porter.Stop())
	}

	// A stopped ticker can't be resumed.
	h.ticker = ticker.NewForce(time.Hour)

	h.porter = NewBatchPorter(&BatchPorterConfig{
		Prover:      h.prover,
		Ledger:      h.ledger,
		Signer:      signer,
		StateStore:  h.store,
		BatchLog:    h.batchLog,
		RecordCache: h.cache,
		Clock:       clock.NewTestClock(time.Unix(1_700_000_000, 0)),
		SyncTicker:  h.ticker,
		ErrChan:     h.errChan,
	})
	require.NoError(h.t, h.porter.Start())

	porter := h.porter
	h.t.Cleanup(func() {
		require.NoError(h.t, porter.Stop())
	})
}

// newInventory adds an inventory holding slots to the ledger and the local
// store, owned by the harness signer.
func (h *porterHarness) newInventory(slots map[inventory.ItemID]uint64,
	maxCapacity uint64) inventory.ID {

	h.t.Helper()

	state := newTestState(h.t, slots)
	used, err := state.UsedVolume(h.registry)
	require.NoError(h.t, err)

	owner, err := h.signer.PubKey()
	require.NoError(h.t, err)

	record, err := h.ledger.CreateInventory(
		context.Background(), owner,
		prover.MockCommitment(state, used), maxCapacity,
	)
	require.NoError(h.t, err)

	err = h.store.PutState(context.Background(), record.ID, state)
	require.NoError(h.t, err)

	return record.ID
}

func (h *porterHarness) state(id inventory.ID) *inventory.State {
	state, err := h.store.FetchState(context.Background(), id)
	require.NoError(h.t, err)

	return state
}

func (h *porterHarness) record(id inventory.ID) *inventory.Record {
	record, err := h.ledger.FetchInventory(context.Background(), id)
	require.NoError(h.t, err)

	return record
}

func (h *porterHarness) execute(entries ...Entry) (*BatchResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	return h.porter.ExecuteBatch(ctx, NewBatch(entries...))
}

// assertUntouched checks that a failed batch left no trace on chain or in
// the local store.
func (h *porterHarness) assertUntouched(id inventory.ID,
	state *inventory.State, record *inventory.Record) {

	h.t.Helper()

	require.True(h.t, state.Equal(h.state(id)))
	require.Equal(h.t, record, h.record(id))
}

func (h *porterHarness) lastBatch() *BatchRecord {
	batches, err := h.batchLog.ListBatches(context.Background(), 1)
	require.NoError(h.t, err)
	require.Len(h.t, batches, 1)

	return batches[0]
}

// TestScenarioWithdrawThenDeposit runs a withdraw followed by a deposit of a
// new item on one inventory.
func TestScenarioWithdrawThenDeposit(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 50*time.Millisecond, nil)
	id := h.newInventory(map[inventory.ItemID]uint64{1: 100, 2: 50}, 1000)
	preBlinding := h.state(id).Blinding

	result, err := h.execute(Withdraw(id, 1, 30), Deposit(id, 3, 10))
	require.NoError(t, err)

	expected := map[inventory.ItemID]uint64{1: 70, 2: 50, 3: 10}
	require.Equal(t, expected, result.States[id].Slots)

	stored := h.state(id)
	require.Equal(t, expected, stored.Slots)
	require.True(t, stored.Equal(result.States[id]))
	require.NotEqual(t, preBlinding, stored.Blinding)

	// Both proofs were generated side by side.
	require.Equal(t, 2, h.prover.Calls())
	require.Equal(t, 2, h.prover.MaxInFlight())

	// One transaction with both calls in order.
	require.Equal(t, 1, h.ledger.Accepted())
	tx := h.ledger.LastSubmitted()
	require.Len(t, tx.Calls, 2)
	require.Equal(t, inventory.OpWithdraw, tx.Calls[0].Op)
	require.Equal(t, inventory.ItemID(1), tx.Calls[0].ItemID)
	require.Equal(t, uint64(30), tx.Calls[0].Amount)
	require.Equal(t, uint64(0), tx.Calls[0].Nonce)
	require.Equal(t, inventory.OpDeposit, tx.Calls[1].Op)
	require.Equal(t, inventory.ItemID(3), tx.Calls[1].ItemID)
	require.Equal(t, uint64(10), tx.Calls[1].Amount)
	require.Equal(t, uint64(1), tx.Calls[1].Nonce)

	// The stored state opens the new on-chain commitment.
	record := h.record(id)
	require.Equal(t, uint64(2), record.Nonce)
	require.Equal(
		t, prover.MockCommitment(stored, 140+150+50), record.Commitment,
	)
	require.Len(t, result.Artifacts, 2)
	require.Equal(t, record.Commitment, result.Artifacts[1].NewCommitment)

	batch := h.lastBatch()
	require.Equal(t, BatchStateCommitted, batch.State)
	require.Equal(t, result.LogID, batch.ID)
	require.Equal(t, result.Receipt.Digest, *batch.TxDigest)
	require.Len(t, batch.Artifacts, 2)
	require.Empty(t, batch.Failure)

	cached, err := h.cache.CachedRecord(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, uint64(2), cached.Nonce)
}

// TestScenarioInsufficientBalance makes sure an overdrawn withdraw never
// reaches the prover.
func TestScenarioInsufficientBalance(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	id := h.newInventory(map[inventory.ItemID]uint64{1: 100, 2: 50}, 1000)
	state, record := h.state(id), h.record(id)

	_, err := h.execute(Withdraw(id, 1, 150))
	require.ErrorIs(t, err, inventory.ErrInsufficientBalance)

	require.Zero(t, h.prover.Calls())
	require.Zero(t, h.ledger.Submitted())
	h.assertUntouched(id, state, record)

	batch := h.lastBatch()
	require.Equal(t, BatchStateAborted, batch.State)
	require.Contains(t, batch.Failure, "insufficient balance")
}

// TestScenarioTransferCapacityExceeded makes sure a transfer into a full
// inventory fails as a whole before any proof is generated.
func TestScenarioTransferCapacityExceeded(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	src := h.newInventory(map[inventory.ItemID]uint64{4: 5}, 0)
	dst := h.newInventory(map[inventory.ItemID]uint64{3: 19}, 100)
	srcState, srcRecord := h.state(src), h.record(src)
	dstState, dstRecord := h.state(dst), h.record(dst)

	_, err := h.execute(TransferEntry(inventory.Transfer{
		Source:      src,
		Destination: dst,
		ItemID:      4,
		Amount:      1,
	}))
	require.ErrorIs(t, err, inventory.ErrCapacityExceeded)

	// The destination leg is the one that failed.
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, []int{1}, batchErr.FailedIndexes())
	require.Equal(t, dst, batchErr.Steps[0].InventoryID)

	// Neither leg got anywhere.
	require.Zero(t, h.prover.Calls())
	require.Zero(t, h.ledger.Submitted())
	h.assertUntouched(src, srcState, srcRecord)
	h.assertUntouched(dst, dstState, dstRecord)
}

// TestScenarioParallelProofs checks that the wall clock time of a batch is
// bounded by the slowest proof, not the sum of all proofs.
func TestScenarioParallelProofs(t *testing.T) {
	t.Parallel()

	const (
		numDeposits = 5
		latency     = 200 * time.Millisecond
	)

	h := newPorterHarness(t, latency, nil)
	id := h.newInventory(nil, 0)

	entries := make([]Entry, numDeposits)
	for i := range entries {
		entries[i] = Deposit(id, inventory.ItemID(i%3+1), uint64(i+1))
	}

	start := time.Now()
	_, err := h.execute(entries...)
	elapsed := time.Since(start)
	require.NoError(t, err)

	require.GreaterOrEqual(t, elapsed, latency)
	require.Less(t, elapsed, numDeposits*latency-latency)
	require.Equal(t, numDeposits, h.prover.MaxInFlight())
	require.Equal(t, uint64(numDeposits), h.record(id).Nonce)
}

// TestOrderPreservation makes proofs complete in reverse order and checks
// the transaction still follows the logical order.
func TestOrderPreservation(t *testing.T) {
	t.Parallel()

	const numSteps = 6

	h := newPorterHarness(t, 0, nil)
	h.prover.LatencyFor = func(req *prover.TransitionRequest) time.Duration {
		return time.Duration(numSteps-req.Context.Nonce) *
			15 * time.Millisecond
	}
	id := h.newInventory(map[inventory.ItemID]uint64{1: 50}, 0)

	var entries []Entry
	for i := 0; i < numSteps; i++ {
		if i%2 == 0 {
			entries = append(entries, Deposit(id, 2, uint64(i+1)))
		} else {
			entries = append(entries, Withdraw(id, 1, uint64(i)))
		}
	}

	result, err := h.execute(entries...)
	require.NoError(t, err)

	// The prover saw the requests in some order, the chain in ours.
	tx := h.ledger.LastSubmitted()
	require.Len(t, tx.Calls, numSteps)
	for i, call := range tx.Calls {
		require.Equal(t, uint64(i), call.Nonce)
		require.Equal(t, entries[i].Type, call.Op)
		require.Equal(t, entries[i].Amount, call.Amount)
		require.Equal(t, uint64(i), result.Artifacts[i].Nonce)
	}

	require.Equal(t, map[inventory.ItemID]uint64{
		1: 50 - 1 - 3 - 5, 2: 1 + 3 + 5,
	}, h.state(id).Slots)
}

// TestProofFailureIsAtomic makes sure a single failed proof leaves chain and
// local state untouched.
func TestProofFailureIsAtomic(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 10*time.Millisecond, nil)
	id := h.newInventory(map[inventory.ItemID]uint64{1: 10}, 0)
	state, record := h.state(id), h.record(id)

	errBoom := errors.New("prover crashed")
	h.prover.FailTransition = func(req *prover.TransitionRequest) error {
		if req.Context.Nonce == 2 {
			return errBoom
		}
		return nil
	}

	_, err := h.execute(
		Deposit(id, 1, 1), Deposit(id, 1, 1), Deposit(id, 1, 1),
		Deposit(id, 1, 1),
	)
	require.ErrorIs(t, err, inventory.ErrProver)
	require.ErrorIs(t, err, errBoom)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, []int{2}, batchErr.FailedIndexes())

	require.Equal(t, 4, h.prover.Calls())
	require.Zero(t, h.ledger.Submitted())
	h.assertUntouched(id, state, record)
}

// rejectItemVerifier fails every call moving the given item.
type rejectItemVerifier struct {
	item inventory.ItemID
}

func (r *rejectItemVerifier) VerifyProof(call *ledger.Call) error {
	if call.ItemID == r.item {
		return fmt.Errorf("bad proof")
	}

	return (&ledger.BindingVerifier{}).VerifyProof(call)
}

// TestLedgerRejectionIsAtomic makes sure a call rejected on chain rolls back
// the whole transaction and leaves the local store alone.
func TestLedgerRejectionIsAtomic(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, &rejectItemVerifier{item: 3})
	src := h.newInventory(map[inventory.ItemID]uint64{3: 4}, 0)
	dst := h.newInventory(nil, 0)
	srcState, srcRecord := h.state(src), h.record(src)
	dstState, dstRecord := h.state(dst), h.record(dst)

	_, err := h.execute(
		Deposit(src, 1, 5),
		TransferEntry(inventory.Transfer{
			Source:      src,
			Destination: dst,
			ItemID:      3,
			Amount:      2,
		}),
	)
	require.ErrorIs(t, err, inventory.ErrProofVerificationFailed)

	var callErr *ledger.CallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, 1, callErr.Index)

	require.Equal(t, 3, h.prover.Calls())
	require.Equal(t, 1, h.ledger.Submitted())
	require.Zero(t, h.ledger.Accepted())
	h.assertUntouched(src, srcState, srcRecord)
	h.assertUntouched(dst, dstState, dstRecord)

	require.Equal(t, BatchStateAborted, h.lastBatch().State)
}

// TestTransfer moves items between two inventories in one transaction.
func TestTransfer(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	src := h.newInventory(map[inventory.ItemID]uint64{4: 5}, 0)
	dst := h.newInventory(map[inventory.ItemID]uint64{3: 2}, 100)

	_, err := h.execute(TransferEntry(inventory.Transfer{
		Source:      src,
		Destination: dst,
		ItemID:      4,
		Amount:      2,
	}))
	require.NoError(t, err)

	require.Equal(
		t, map[inventory.ItemID]uint64{4: 3}, h.state(src).Slots,
	)
	require.Equal(
		t, map[inventory.ItemID]uint64{3: 2, 4: 2}, h.state(dst).Slots,
	)

	tx := h.ledger.LastSubmitted()
	require.Len(t, tx.Calls, 2)
	require.Equal(t, tx.Calls[0].TransferGroup, tx.Calls[1].TransferGroup)
	require.NotZero(t, tx.Calls[0].TransferGroup)

	require.Equal(t, uint64(1), h.record(src).Nonce)
	require.Equal(t, uint64(1), h.record(dst).Nonce)

	// A follow-up batch chains from the stored state.
	_, err = h.execute(Withdraw(dst, 4, 2), Withdraw(src, 4, 3))
	require.NoError(t, err)
	require.Empty(t, h.state(src).Slots)
	require.Equal(
		t, map[inventory.ItemID]uint64{3: 2}, h.state(dst).Slots,
	)
}

// TestReplayRejected resubmits the calls of an accepted batch.
func TestReplayRejected(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	id := h.newInventory(nil, 0)

	_, err := h.execute(Deposit(id, 1, 1))
	require.NoError(t, err)

	replay := &ledger.Transaction{Calls: h.ledger.LastSubmitted().Calls}
	require.NoError(t, ledger.SignTransaction(h.signer, replay))

	_, err = h.ledger.SubmitTransaction(context.Background(), replay)
	require.ErrorIs(t, err, inventory.ErrNonceMismatch)
	require.Equal(t, uint64(1), h.record(id).Nonce)
}

// TestStateDesync makes sure a local state that doesn't open the on-chain
// commitment aborts the batch before any proof is requested.
func TestStateDesync(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	id := h.newInventory(map[inventory.ItemID]uint64{1: 10}, 0)

	stale := h.state(id)
	stale.Slots[1] = 11
	require.NoError(t, h.store.PutState(context.Background(), id, stale))

	_, err := h.execute(Withdraw(id, 1, 1))
	require.ErrorIs(t, err, inventory.ErrStateDesync)
	require.Zero(t, h.prover.Calls())

	// An inventory we hold no state for is out of sync as well.
	owner, err := h.signer.PubKey()
	require.NoError(t, err)
	other, err := h.ledger.CreateInventory(
		context.Background(), owner, inventory.Commitment{1}, 0,
	)
	require.NoError(t, err)

	_, err = h.execute(Deposit(other.ID, 1, 1))
	require.ErrorIs(t, err, inventory.ErrStateDesync)
	require.ErrorIs(t, err, inventory.ErrStateNotFound)

	_, err = h.execute(Deposit(other.ID, 1, 1), Deposit(id, 1, 1))
	require.ErrorIs(t, err, inventory.ErrStateDesync)
}

// TestSignerChecks makes sure a batch is refused before proving if we can't
// sign for it.
func TestSignerChecks(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	id := h.newInventory(map[inventory.ItemID]uint64{1: 10}, 0)

	h.startPorter(ledger.NewKeySigner(nil))
	_, err := h.execute(Withdraw(id, 1, 1))
	require.ErrorIs(t, err, inventory.ErrSignerUnavailable)
	require.Zero(t, h.prover.Calls())

	otherKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	h.startPorter(ledger.NewKeySigner(otherKey))
	_, err = h.execute(Withdraw(id, 1, 1))
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	require.Zero(t, h.prover.Calls())
}

// TestOverlappingBatches checks that a second batch on an inventory with a
// batch in flight is refused while disjoint batches proceed.
func TestOverlappingBatches(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 300*time.Millisecond, nil)
	a := h.newInventory(nil, 0)
	b := h.newInventory(nil, 0)

	errChan := make(chan error, 1)
	go func() {
		_, err := h.execute(Deposit(a, 1, 1))
		errChan <- err
	}()

	require.Eventually(t, func() bool {
		return h.prover.Calls() > 0
	}, 5*time.Second, 5*time.Millisecond)

	_, err := h.execute(Deposit(a, 2, 1))
	require.ErrorIs(t, err, inventory.ErrInventoryBusy)

	_, err = h.execute(Deposit(b, 2, 1))
	require.NoError(t, err)

	require.NoError(t, <-errChan)
	require.Equal(t, uint64(1), h.record(a).Nonce)

	// Once the first batch is done the inventory is free again.
	_, err = h.execute(Deposit(a, 2, 1))
	require.NoError(t, err)
}

// TestEmptyBatch checks that an empty batch is refused.
func TestEmptyBatch(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)

	_, err := h.execute()
	require.ErrorIs(t, err, inventory.ErrInvalidOperation)
}

// TestCreateInventory creates an inventory through the porter and uses it.
func TestCreateInventory(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	ctx := context.Background()

	record, err := h.porter.CreateInventory(ctx, 100)
	require.NoError(t, err)
	require.Zero(t, record.Nonce)
	require.Equal(t, uint64(100), record.MaxCapacity)

	state := h.state(record.ID)
	require.Empty(t, state.Slots)
	require.False(t, state.Blinding.IsZero())

	status, err := h.porter.Status(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, status.InSync)
	require.False(t, status.Stale)

	_, err = h.execute(Deposit(record.ID, 4, 10))
	require.NoError(t, err)

	_, err = h.execute(Deposit(record.ID, 1, 1))
	require.ErrorIs(t, err, inventory.ErrCapacityExceeded)

	status, err = h.porter.Status(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, status.InSync)
	require.Equal(t, uint64(100), status.UsedVolume)
	require.Equal(t, uint64(1), status.Record.Nonce)
}

// TestAttestations checks the read-only proofs against the current state.
func TestAttestations(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	ctx := context.Background()
	id := h.newInventory(map[inventory.ItemID]uint64{1: 100}, 250)

	att, err := h.porter.AttestHolding(ctx, id, 1, 100)
	require.NoError(t, err)
	require.NotEmpty(t, att.Proof)

	_, err = h.porter.AttestHolding(ctx, id, 1, 101)
	require.ErrorIs(t, err, inventory.ErrInsufficientBalance)

	_, err = h.porter.AttestCapacity(ctx, id)
	require.NoError(t, err)

	// Attestations never touch the chain.
	require.Zero(t, h.ledger.Submitted())
}

// TestRecordRefresh forces a sync tick and checks the record cache picks up
// inventories it has never seen.
func TestRecordRefresh(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	ids := []inventory.ID{
		h.newInventory(nil, 0),
		h.newInventory(map[inventory.ItemID]uint64{2: 1}, 0),
	}

	for _, id := range ids {
		_, err := h.cache.CachedRecord(context.Background(), id)
		require.ErrorIs(t, err, ErrRecordNotCached)
	}

	h.ticker.Force <- time.Now()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			_, err := h.cache.CachedRecord(
				context.Background(), id,
			)
			if err != nil {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

// TestListBatches checks the journal is exposed newest first.
func TestListBatches(t *testing.T) {
	t.Parallel()

	h := newPorterHarness(t, 0, nil)
	id := h.newInventory(map[inventory.ItemID]uint64{1: 1}, 0)

	_, err := h.execute(Withdraw(id, 1, 2))
	require.Error(t, err)
	_, err = h.execute(Withdraw(id, 1, 1))
	require.NoError(t, err)

	batches, err := h.porter.ListBatches(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	states := []BatchState{batches[0].State, batches[1].State}
	require.Equal(
		t, []BatchState{BatchStateCommitted, BatchStateAborted},
		states,
	)
	require.True(t, sort.SliceIsSorted(batches, func(i, j int) bool {
		return batches[i].ID > batches[j].ID
	}))
}
