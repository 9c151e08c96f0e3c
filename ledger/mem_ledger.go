package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/zkinv/inventory"
	"golang.org/x/exp/maps"
)

// MemLedger is an in-memory Ledger. Transactions are executed against a
// snapshot and the results are swapped in under a single lock, so an aborted
// transaction leaves no trace.
type MemLedger struct {
	mu sync.Mutex

	records  map[inventory.ID]*inventory.Record
	registry *inventory.Registry
	verifier ProofVerifier

	// BeforeSubmit, if set, is called with every submitted transaction
	// before it is executed. A non-nil error rejects the transaction.
	BeforeSubmit func(tx *Transaction) error

	submitted []*Transaction
	accepted  int
}

// A compile time assertion to ensure MemLedger meets the Ledger interface.
var _ Ledger = (*MemLedger)(nil)

// NewMemLedger creates an in-memory ledger with the given registry. A
// BindingVerifier is used if verifier is nil.
func NewMemLedger(registry *inventory.Registry,
	verifier ProofVerifier) *MemLedger {

	if verifier == nil {
		verifier = &BindingVerifier{}
	}

	return &MemLedger{
		records:  make(map[inventory.ID]*inventory.Record),
		registry: registry,
		verifier: verifier,
	}
}

// memView is a StateView over the ledger's maps. It must only be used while
// holding the ledger's lock.
type memView struct {
	l *MemLedger
}

func (v *memView) Record(id inventory.ID) (*inventory.Record, error) {
	record, ok := v.l.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInventoryNotFound, id)
	}

	cp := *record
	return &cp, nil
}

func (v *memView) RegistryRoot() inventory.FieldElement {
	return v.l.registry.Root
}

// FetchInventory returns the current record of an inventory.
func (m *MemLedger) FetchInventory(_ context.Context,
	id inventory.ID) (*inventory.Record, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	return (&memView{l: m}).Record(id)
}

// FetchRegistry returns the current registry.
func (m *MemLedger) FetchRegistry(
	_ context.Context) (*inventory.Registry, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	return &inventory.Registry{
		Root:    m.registry.Root,
		Volumes: maps.Clone(m.registry.Volumes),
	}, nil
}

// SetRegistry replaces the registry.
func (m *MemLedger) SetRegistry(registry *inventory.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registry = registry
}

// SubmitTransaction executes the transaction atomically.
func (m *MemLedger) SubmitTransaction(_ context.Context,
	tx *Transaction) (*Receipt, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitted = append(m.submitted, tx)

	log.Debugf("Executing transaction: %v", newLogClosure(func() string {
		return spew.Sdump(tx.Calls)
	}))

	if m.BeforeSubmit != nil {
		if err := m.BeforeSubmit(tx); err != nil {
			return nil, err
		}
	}

	updated, err := Execute(tx, &memView{l: m}, m.verifier)
	if err != nil {
		return nil, err
	}

	digest, err := tx.Digest()
	if err != nil {
		return nil, err
	}

	for id, record := range updated {
		m.records[id] = record
	}
	m.accepted++

	receipt := &Receipt{
		Digest:  digest,
		Records: make(map[inventory.ID]*inventory.Record, len(updated)),
	}
	for id, record := range updated {
		cp := *record
		receipt.Records[id] = &cp
	}

	return receipt, nil
}

// CreateInventory creates a new inventory with a random id.
func (m *MemLedger) CreateInventory(_ context.Context,
	owner *btcec.PublicKey, commitment inventory.Commitment,
	maxCapacity uint64) (*inventory.Record, error) {

	var id inventory.ID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}

	return m.AddInventory(&inventory.Record{
		ID:          id,
		Commitment:  commitment,
		Owner:       owner,
		MaxCapacity: maxCapacity,
	})
}

// AddInventory inserts a record as is.
func (m *MemLedger) AddInventory(
	record *inventory.Record) (*inventory.Record, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.ID]; ok {
		return nil, fmt.Errorf("inventory %v already exists", record.ID)
	}

	cp := *record
	m.records[record.ID] = &cp

	out := cp
	return &out, nil
}

// Submitted returns the number of transactions submitted, including rejected
// ones.
func (m *MemLedger) Submitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.submitted)
}

// LastSubmitted returns the most recently submitted transaction.
func (m *MemLedger) LastSubmitted() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.submitted) == 0 {
		return nil
	}

	return m.submitted[len(m.submitted)-1]
}

// Accepted returns the number of accepted transactions.
func (m *MemLedger) Accepted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.accepted
}
