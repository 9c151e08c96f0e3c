package invfreighter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/ledger"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// DefaultTimeout is the timeout used for journal and store accesses
	// that are not bound to a caller's context.
	DefaultTimeout = 30 * time.Second
)

// BatchPorterConfig is the main config for the batch porter.
type BatchPorterConfig struct {
	// Prover generates transition proofs and derives commitments.
	Prover prover.Prover

	// Ledger is the chain the inventories live on.
	Ledger ledger.Ledger

	// Signer authorizes the assembled transactions.
	Signer ledger.Signer

	// StateStore holds the secret state of every local inventory. The
	// porter is its only writer.
	StateStore inventory.StateStore

	// BatchLog, if set, journals every batch.
	BatchLog BatchLog

	// RecordCache, if set, is updated with every record seen.
	RecordCache RecordCache

	// Clock is used to timestamp journal entries.
	Clock clock.Clock

	// SyncTicker, if set, periodically refreshes the record cache for all
	// local inventories.
	SyncTicker ticker.Ticker

	// SyncRetry is the backoff used for on-chain reads while syncing.
	// Proof requests and submissions are never retried.
	SyncRetry fn.RetryConfig

	// Scheduler configures the parallel proof scheduler.
	Scheduler SchedulerConfig

	// ErrChan is the main error channel the porter reports critical
	// errors to.
	ErrChan chan<- error
}

// BatchPorter drives batches through the commit protocol: sync the touched
// inventories, project the intermediate states, prove all steps in parallel,
// then assemble and submit a single atomic transaction. The local state
// store is only written once the ledger accepted the transaction.
type BatchPorter struct {
	startOnce sync.Once
	stopOnce  sync.Once

	cfg *BatchPorterConfig

	scheduler *ProofScheduler

	batchReqs chan *batchRequest

	// busy is the set of inventories with a batch in flight.
	busy    map[inventory.ID]struct{}
	busyMtx sync.Mutex

	*fn.ContextGuard
}

// batchRequest is a batch handed to the porter's main goroutine.
type batchRequest struct {
	ctx      context.Context
	batch    *Batch
	respChan chan *BatchResult
	errChan  chan error
}

// batchPackage carries a batch and everything derived from it through the
// states of the commit protocol.
type batchPackage struct {
	State BatchState

	Batch *Batch

	Record *BatchRecord

	Registry *inventory.Registry

	Snapshots map[inventory.ID]*Snapshot

	Steps []Step

	Proven []*ProvenStep

	Tx *ledger.Transaction

	Receipt *ledger.Receipt

	States map[inventory.ID]*inventory.State
}

// NewBatchPorter creates a new instance of the BatchPorter given a valid
// config.
func NewBatchPorter(cfg *BatchPorterConfig) *BatchPorter {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &BatchPorter{
		cfg:       cfg,
		scheduler: NewProofScheduler(cfg.Prover, cfg.Scheduler),
		batchReqs: make(chan *batchRequest),
		busy:      make(map[inventory.ID]struct{}),
		ContextGuard: &fn.ContextGuard{
			DefaultTimeout: DefaultTimeout,
			Quit:           make(chan struct{}),
		},
	}
}

// Start kicks off the batch porter's main goroutine.
func (p *BatchPorter) Start() error {
	p.startOnce.Do(func() {
		log.Infof("Starting BatchPorter")

		if p.cfg.SyncTicker != nil {
			p.cfg.SyncTicker.Resume()
		}

		p.Wg.Add(1)
		go p.batchPorter()
	})

	return nil
}

// Stop signals the batch porter to stop and waits for all in-flight batches
// to return.
func (p *BatchPorter) Stop() error {
	p.stopOnce.Do(func() {
		log.Infof("Stopping BatchPorter")

		close(p.Quit)
		p.Wg.Wait()

		if p.cfg.SyncTicker != nil {
			p.cfg.SyncTicker.Stop()
		}
	})

	return nil
}

// ExecuteBatch is the main external entry point to the porter. It blocks
// until the batch is either committed or aborted. A batch touching an
// inventory that already has a batch in flight is rejected with
// inventory.ErrInventoryBusy.
func (p *BatchPorter) ExecuteBatch(ctx context.Context,
	batch *Batch) (*BatchResult, error) {

	req := &batchRequest{
		ctx:      ctx,
		batch:    batch,
		respChan: make(chan *BatchResult, 1),
		errChan:  make(chan error, 1),
	}

	if !fn.SendOrQuit(p.batchReqs, req, p.Quit) {
		return nil, fmt.Errorf("BatchPorter shutting down")
	}

	select {
	case resp := <-req.respChan:
		return resp, nil

	case err := <-req.errChan:
		return nil, err

	case <-p.Quit:
		return nil, fmt.Errorf("BatchPorter shutting down")
	}
}

// batchPorter is the main goroutine of the BatchPorter. It admits incoming
// batches and refreshes the record cache on every sync tick.
func (p *BatchPorter) batchPorter() {
	defer p.Wg.Done()

	var syncTicks <-chan time.Time
	if p.cfg.SyncTicker != nil {
		syncTicks = p.cfg.SyncTicker.Ticks()
	}

	for {
		select {
		case req := <-p.batchReqs:
			ids := req.batch.Inventories()
			if err := p.reserve(ids); err != nil {
				req.errChan <- err
				continue
			}

			// Batches on disjoint inventories run side by side.
			p.Wg.Add(1)
			go func() {
				defer p.Wg.Done()
				defer p.release(ids)

				resp, err := p.executeBatch(req.ctx, req.batch)
				if err != nil {
					req.errChan <- err
					return
				}
				req.respChan <- resp
			}()

		case <-syncTicks:
			p.refreshRecords()

		case <-p.Quit:
			return
		}
	}
}

// reserve marks all given inventories as busy, or none if one of them
// already is.
func (p *BatchPorter) reserve(ids []inventory.ID) error {
	p.busyMtx.Lock()
	defer p.busyMtx.Unlock()

	for _, id := range ids {
		if _, ok := p.busy[id]; ok {
			return fmt.Errorf("%w: %v", inventory.ErrInventoryBusy,
				id)
		}
	}
	for _, id := range ids {
		p.busy[id] = struct{}{}
	}

	return nil
}

// release clears the busy flag of the given inventories.
func (p *BatchPorter) release(ids []inventory.ID) {
	p.busyMtx.Lock()
	defer p.busyMtx.Unlock()

	for _, id := range ids {
		delete(p.busy, id)
	}
}

// isBusy returns true if a batch is in flight for the inventory.
func (p *BatchPorter) isBusy(id inventory.ID) bool {
	p.busyMtx.Lock()
	defer p.busyMtx.Unlock()

	_, ok := p.busy[id]
	return ok
}

// executeBatch runs a single batch to a terminal state.
func (p *BatchPorter) executeBatch(ctx context.Context,
	batch *Batch) (*BatchResult, error) {

	ctx, cancel := p.WithCtxQuitFrom(ctx)
	defer cancel()

	pkg := &batchPackage{
		State: BatchStateIdle,
		Batch: batch,
	}

	if err := p.advanceState(ctx, pkg); err != nil {
		p.abort(pkg, err)
		return nil, err
	}

	result := &BatchResult{
		Receipt:   pkg.Receipt,
		Artifacts: Artifacts(pkg.Proven),
		States:    pkg.States,
	}
	if pkg.Record != nil {
		result.LogID = pkg.Record.ID
	}

	return result, nil
}

// advanceState advances the state machine until the batch reaches a terminal
// state or a state fails.
func (p *BatchPorter) advanceState(ctx context.Context,
	pkg *batchPackage) error {

	for !pkg.State.Terminal() {
		log.Debugf("BatchPorter executing state: %v", pkg.State)

		// Before we attempt a state transition, make sure that we
		// aren't trying to shut down.
		select {
		case <-p.Quit:
			return fmt.Errorf("BatchPorter shutting down")

		default:
		}

		if err := p.stateStep(ctx, pkg); err != nil {
			log.Errorf("Error evaluating state (%v): %v", pkg.State,
				err)
			return err
		}

		p.journal(pkg, "")
	}

	return nil
}

// stateStep executes the current state of the batch and moves it to the
// next one.
func (p *BatchPorter) stateStep(ctx context.Context, pkg *batchPackage) error {
	switch pkg.State {
	// A new batch is checked for emptiness and journaled before any
	// chain access.
	case BatchStateIdle:
		if len(pkg.Batch.Entries) == 0 {
			return fmt.Errorf("%w: empty batch",
				inventory.ErrInvalidOperation)
		}

		if err := p.logNewBatch(ctx, pkg); err != nil {
			return err
		}

		pkg.State = BatchStateSyncing
		return nil

	// Fetch the authoritative records of every touched inventory and
	// make sure our secret state still opens them.
	case BatchStateSyncing:
		registry, snapshots, err := p.syncInventories(
			ctx, pkg.Batch.Inventories(), true,
		)
		if err != nil {
			return err
		}

		pkg.Registry = registry
		pkg.Snapshots = snapshots
		pkg.State = BatchStateProjecting
		return nil

	// Compute every intermediate state. Infeasible batches stop here,
	// before any proof is requested.
	case BatchStateProjecting:
		steps, err := Project(pkg.Batch, pkg.Snapshots, pkg.Registry)
		if err != nil {
			return err
		}

		log.Infof("Projected %d steps over %d inventories", len(steps),
			len(pkg.Snapshots))

		pkg.Steps = steps
		pkg.State = BatchStateProving
		return nil

	case BatchStateProving:
		proven, err := p.scheduler.ProveSteps(ctx, pkg.Steps)
		if err != nil {
			return err
		}

		pkg.Proven = proven
		pkg.State = BatchStateSubmitting
		return nil

	// Assemble and submit the transaction. Only once the ledger accepted
	// it is the final secret state written, in a single write.
	case BatchStateSubmitting:
		tx, err := AssembleTransaction(pkg.Proven)
		if err != nil {
			return err
		}
		if err := ledger.SignTransaction(p.cfg.Signer, tx); err != nil {
			return fmt.Errorf("unable to sign transaction: %w", err)
		}
		pkg.Tx = tx

		if digest, err := tx.Digest(); err == nil && pkg.Record != nil {
			pkg.Record.TxDigest = &digest
		}

		log.Infof("Submitting transaction with %d calls", len(tx.Calls))

		receipt, err := p.cfg.Ledger.SubmitTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("transaction rejected: %w", err)
		}
		pkg.Receipt = receipt

		log.Infof("Transaction %v accepted", receipt.Digest)

		// From here on the batch is on chain. A failure to persist
		// the final state can't roll anything back.
		pkg.States = FinalStates(pkg.Proven)
		pkg.State = BatchStateCommitted

		storeCtx, cancel := p.CtxBlocking()
		defer cancel()

		err = p.cfg.StateStore.PutStates(storeCtx, pkg.States)
		if err != nil {
			err = fmt.Errorf("transaction %v committed but the "+
				"final state could not be stored: %w",
				receipt.Digest, err)
			p.reportErr(err)

			return err
		}

		p.cacheRecords(storeCtx, receipt.Records)

		return nil

	default:
		return fmt.Errorf("unknown state: %v", pkg.State)
	}
}

// syncInventories fetches the registry and the records of the given
// inventories, and loads the local secret state of each. If checkOwner is
// set, the signer must own every inventory.
func (p *BatchPorter) syncInventories(ctx context.Context,
	ids []inventory.ID, checkOwner bool) (*inventory.Registry,
	map[inventory.ID]*Snapshot, error) {

	retryCfg := p.cfg.SyncRetry
	retryCfg.ShouldRetry = func(err error) bool {
		return !errors.Is(err, ledger.ErrInventoryNotFound) &&
			!errors.Is(err, context.Canceled)
	}

	registry, err := fn.RetryFuncN(
		ctx, retryCfg, func() (*inventory.Registry, error) {
			return p.cfg.Ledger.FetchRegistry(ctx)
		},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to fetch registry: %w", err)
	}

	var (
		snapshots = make(map[inventory.ID]*Snapshot, len(ids))
		snapMtx   sync.Mutex
	)
	err = fn.ParSlice(ctx, ids, func(ctx context.Context,
		id inventory.ID) error {

		record, err := fn.RetryFuncN(
			ctx, retryCfg, func() (*inventory.Record, error) {
				return p.cfg.Ledger.FetchInventory(ctx, id)
			},
		)
		if err != nil {
			return fmt.Errorf("unable to fetch inventory %v: %w",
				id, err)
		}

		snap, err := p.openRecord(ctx, registry, record)
		if err != nil {
			return err
		}

		snapMtx.Lock()
		snapshots[id] = snap
		snapMtx.Unlock()

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if checkOwner {
		if err := p.checkOwner(snapshots); err != nil {
			return nil, nil, err
		}
	}

	records := make(map[inventory.ID]*inventory.Record, len(snapshots))
	for id, snap := range snapshots {
		records[id] = snap.Record
	}
	p.cacheRecords(ctx, records)

	return registry, snapshots, nil
}

// openRecord loads the local secret state of a record and makes sure it
// opens the record's commitment.
func (p *BatchPorter) openRecord(ctx context.Context,
	registry *inventory.Registry, record *inventory.Record) (*Snapshot,
	error) {

	state, err := p.cfg.StateStore.FetchState(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: inventory %v: %w",
			inventory.ErrStateDesync, record.ID, err)
	}

	usedVolume, err := state.UsedVolume(registry)
	if err != nil {
		return nil, fmt.Errorf("%w: inventory %v: %w",
			inventory.ErrStateDesync, record.ID, err)
	}

	commitment, err := p.cfg.Prover.DeriveCommitment(
		ctx, state, usedVolume,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to derive commitment of %v: %w",
			record.ID, err)
	}

	if commitment != record.Commitment {
		return nil, fmt.Errorf("%w: inventory %v at nonce %d commits "+
			"to %v, local state opens %v", inventory.ErrStateDesync,
			record.ID, record.Nonce, record.Commitment, commitment)
	}

	return &Snapshot{
		Record:     record,
		State:      state,
		UsedVolume: usedVolume,
	}, nil
}

// checkOwner makes sure our signer is available and owns every synced
// inventory, so no proof is generated for a transaction we can't submit.
func (p *BatchPorter) checkOwner(snapshots map[inventory.ID]*Snapshot) error {
	pubKey, err := p.cfg.Signer.PubKey()
	if err != nil {
		return err
	}
	ourKey := schnorr.SerializePubKey(pubKey)

	for id, snap := range snapshots {
		owner := snap.Record.Owner
		if owner == nil ||
			!bytes.Equal(schnorr.SerializePubKey(owner), ourKey) {

			return fmt.Errorf("%w: inventory %v is owned by another "+
				"key", ledger.ErrUnauthorized, id)
		}
	}

	return nil
}

// abort moves a failed batch to its terminal state. A batch that already
// committed stays committed.
func (p *BatchPorter) abort(pkg *batchPackage, err error) {
	if pkg.State == BatchStateCommitted {
		p.journal(pkg, err.Error())
		return
	}

	log.Warnf("Aborting batch in state %v: %v", pkg.State, err)

	pkg.State = BatchStateAborted
	p.journal(pkg, err.Error())
}

// logNewBatch creates the journal entry of a batch.
func (p *BatchPorter) logNewBatch(ctx context.Context,
	pkg *batchPackage) error {

	if p.cfg.BatchLog == nil {
		return nil
	}

	now := p.cfg.Clock.Now()
	record := &BatchRecord{
		State:       BatchStateSyncing,
		Inventories: pkg.Batch.Inventories(),
		NumEntries:  len(pkg.Batch.Entries),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := p.cfg.BatchLog.LogNewBatch(ctx, record)
	if err != nil {
		return fmt.Errorf("unable to journal batch: %w", err)
	}
	record.ID = id
	pkg.Record = record

	return nil
}

// journal writes the current state of a batch to the batch log. Journal
// failures are logged but don't fail the batch.
func (p *BatchPorter) journal(pkg *batchPackage, failure string) {
	if p.cfg.BatchLog == nil || pkg.Record == nil {
		return
	}

	pkg.Record.State = pkg.State
	pkg.Record.UpdatedAt = p.cfg.Clock.Now()
	pkg.Record.Failure = failure
	if pkg.Proven != nil {
		pkg.Record.Artifacts = Artifacts(pkg.Proven)
	}

	ctx, cancel := p.CtxBlocking()
	defer cancel()

	if err := p.cfg.BatchLog.UpdateBatch(ctx, pkg.Record); err != nil {
		log.Warnf("Unable to journal batch %d: %v", pkg.Record.ID, err)
	}
}

// cacheRecords updates the record cache, if any.
func (p *BatchPorter) cacheRecords(ctx context.Context,
	records map[inventory.ID]*inventory.Record) {

	if p.cfg.RecordCache == nil || len(records) == 0 {
		return
	}

	list := make([]*inventory.Record, 0, len(records))
	for _, r := range records {
		list = append(list, r)
	}

	if err := p.cfg.RecordCache.CacheRecords(ctx, list...); err != nil {
		log.Warnf("Unable to cache records: %v", err)
	}
}

// reportErr hands a critical error to the main error channel without
// blocking.
func (p *BatchPorter) reportErr(err error) {
	if p.cfg.ErrChan == nil {
		return
	}

	select {
	case p.cfg.ErrChan <- err:
	default:
		log.Errorf("Error channel full, dropping: %v", err)
	}
}

// refreshRecords fetches the records of all local inventories into the
// record cache. An inventory whose nonce moved without a batch of ours is
// reported, since our secret state can no longer open it.
func (p *BatchPorter) refreshRecords() {
	if p.cfg.RecordCache == nil {
		return
	}

	ctx, cancel := p.WithCtxQuit()
	defer cancel()

	ids, err := p.cfg.StateStore.ListInventories(ctx)
	if err != nil {
		log.Warnf("Unable to list inventories: %v", err)
		return
	}

	log.Debugf("Refreshing records of %d inventories", len(ids))

	_ = fn.ParSlice(ctx, ids, func(ctx context.Context,
		id inventory.ID) error {

		record, err := p.cfg.Ledger.FetchInventory(ctx, id)
		if err != nil {
			log.Warnf("Unable to refresh inventory %v: %v", id, err)
			return nil
		}

		cached, err := p.cfg.RecordCache.CachedRecord(ctx, id)
		if err == nil && record.Nonce > cached.Nonce && !p.isBusy(id) {
			log.Warnf("Inventory %v advanced from nonce %d to %d "+
				"outside of this client", id, cached.Nonce,
				record.Nonce)
		}

		if err := p.cfg.RecordCache.CacheRecords(ctx, record); err != nil {
			log.Warnf("Unable to cache record of %v: %v", id, err)
		}

		return nil
	})
}

// CreateInventory creates a new empty inventory owned by our signer. The
// secret state is stored once the ledger created the record.
func (p *BatchPorter) CreateInventory(ctx context.Context,
	maxCapacity uint64) (*inventory.Record, error) {

	ctx, cancel := p.WithCtxQuitFrom(ctx)
	defer cancel()

	owner, err := p.cfg.Signer.PubKey()
	if err != nil {
		return nil, err
	}

	blinding, err := p.scheduler.cfg.NewBlinding()
	if err != nil {
		return nil, err
	}
	state := inventory.EmptyState(blinding)

	commitment, err := p.cfg.Prover.DeriveCommitment(ctx, state, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to derive commitment: %w", err)
	}

	record, err := p.cfg.Ledger.CreateInventory(
		ctx, owner, commitment, maxCapacity,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create inventory: %w", err)
	}

	log.Infof("Created inventory %v (max_capacity=%d)", record.ID,
		maxCapacity)

	storeCtx, storeCancel := p.CtxBlocking()
	defer storeCancel()

	if err := p.cfg.StateStore.PutState(storeCtx, record.ID, state); err != nil {
		err = fmt.Errorf("inventory %v created but its state could "+
			"not be stored: %w", record.ID, err)
		p.reportErr(err)

		return nil, err
	}

	p.cacheRecords(storeCtx, map[inventory.ID]*inventory.Record{
		record.ID: record,
	})

	return record, nil
}

// InventoryStatus is the combined view of an inventory's record and local
// state.
type InventoryStatus struct {
	// Record is the on-chain record.
	Record *inventory.Record

	// Stale is set if the record came from the cache because the ledger
	// could not be reached.
	Stale bool

	// State is the local secret state, nil if none is stored.
	State *inventory.State

	// UsedVolume is the used volume of State.
	UsedVolume uint64

	// InSync is set if State opens the record's commitment.
	InSync bool
}

// Status returns the current view of an inventory. The record is fetched
// fresh and only falls back to the record cache if the ledger fails.
func (p *BatchPorter) Status(ctx context.Context,
	id inventory.ID) (*InventoryStatus, error) {

	ctx, cancel := p.WithCtxQuitFrom(ctx)
	defer cancel()

	status := &InventoryStatus{}

	record, err := p.cfg.Ledger.FetchInventory(ctx, id)
	switch {
	case err == nil:
		status.Record = record

	case p.cfg.RecordCache != nil && !errors.Is(
		err, ledger.ErrInventoryNotFound,
	):
		cached, cacheErr := p.cfg.RecordCache.CachedRecord(ctx, id)
		if cacheErr != nil {
			return nil, err
		}

		log.Warnf("Using cached record of %v: %v", id, err)
		status.Record = cached
		status.Stale = true

	default:
		return nil, err
	}

	state, err := p.cfg.StateStore.FetchState(ctx, id)
	switch {
	case errors.Is(err, inventory.ErrStateNotFound):
		return status, nil

	case err != nil:
		return nil, err
	}
	status.State = state

	registry, err := p.cfg.Ledger.FetchRegistry(ctx)
	if err != nil {
		return status, nil
	}

	usedVolume, err := state.UsedVolume(registry)
	if err != nil {
		return status, nil
	}
	status.UsedVolume = usedVolume

	commitment, err := p.cfg.Prover.DeriveCommitment(
		ctx, state, usedVolume,
	)
	if err == nil {
		status.InSync = commitment == status.Record.Commitment
	}

	return status, nil
}

// AttestHolding proves that an inventory holds at least minQuantity units of
// an item, against its current on-chain commitment.
func (p *BatchPorter) AttestHolding(ctx context.Context, id inventory.ID,
	item inventory.ItemID, minQuantity uint64) (*prover.Attestation,
	error) {

	ctx, cancel := p.WithCtxQuitFrom(ctx)
	defer cancel()

	snap, err := p.syncOne(ctx, id)
	if err != nil {
		return nil, err
	}

	return p.cfg.Prover.ProveHolding(
		ctx, snap.State, snap.UsedVolume, item, minQuantity,
	)
}

// AttestCapacity proves that an inventory's used volume is within its
// capacity, against its current on-chain commitment.
func (p *BatchPorter) AttestCapacity(ctx context.Context,
	id inventory.ID) (*prover.Attestation, error) {

	ctx, cancel := p.WithCtxQuitFrom(ctx)
	defer cancel()

	snap, err := p.syncOne(ctx, id)
	if err != nil {
		return nil, err
	}

	return p.cfg.Prover.ProveCapacity(
		ctx, snap.State, snap.UsedVolume, snap.Record.MaxCapacity,
	)
}

// syncOne syncs a single inventory without requiring ownership.
func (p *BatchPorter) syncOne(ctx context.Context,
	id inventory.ID) (*Snapshot, error) {

	_, snapshots, err := p.syncInventories(
		ctx, []inventory.ID{id}, false,
	)
	if err != nil {
		return nil, err
	}

	return snapshots[id], nil
}

// ListBatches returns the most recent journaled batches.
func (p *BatchPorter) ListBatches(ctx context.Context,
	limit int) ([]*BatchRecord, error) {

	if p.cfg.BatchLog == nil {
		return nil, nil
	}

	return p.cfg.BatchLog.ListBatches(ctx, limit)
}
