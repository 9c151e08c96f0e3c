package prover

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightninglabs/zkinv/inventory"
)

// MockCommitment is the commitment scheme of the MockProver: the field
// reduction of a sha256 digest over the sorted slots, the used volume and
// the blinding factor.
func MockCommitment(state *inventory.State,
	usedVolume uint64) inventory.Commitment {

	h := sha256.New()
	var buf [8]byte
	for _, slot := range state.SlotList() {
		binary.BigEndian.PutUint64(buf[:], uint64(slot.ItemID))
		_, _ = h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], slot.Quantity)
		_, _ = h.Write(buf[:])
	}
	binary.BigEndian.PutUint64(buf[:], usedVolume)
	_, _ = h.Write(buf[:])
	_, _ = h.Write(state.Blinding[:])

	return inventory.Commitment(inventory.FieldFromBigEndian(h.Sum(nil)))
}

// MockProver is an in-memory Prover producing structurally valid but
// meaningless proofs. It performs the same feasibility checks as the real
// circuits and can inject latency and failures.
type MockProver struct {
	// Latency is slept before every transition proof.
	Latency time.Duration

	// FailTransition, if set, is consulted before every transition proof
	// and a non-nil result is returned as the proof error.
	FailTransition func(req *TransitionRequest) error

	// LatencyFor, if set, overrides Latency per request.
	LatencyFor func(req *TransitionRequest) time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu       sync.Mutex
	requests []*TransitionRequest
}

// A compile time assertion to ensure MockProver meets the Prover interface.
var _ Prover = (*MockProver)(nil)

// NewMockProver creates a mock prover with the given per-proof latency.
func NewMockProver(latency time.Duration) *MockProver {
	return &MockProver{Latency: latency}
}

// Calls returns the number of transition proofs requested so far.
func (m *MockProver) Calls() int {
	return int(m.calls.Load())
}

// MaxInFlight returns the highest number of concurrently running transition
// proofs observed.
func (m *MockProver) MaxInFlight() int {
	return int(m.maxSeen.Load())
}

// Requests returns the transition requests received so far in arrival
// order.
func (m *MockProver) Requests() []*TransitionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*TransitionRequest(nil), m.requests...)
}

// ProveTransition proves a transition after the configured latency.
func (m *MockProver) ProveTransition(ctx context.Context,
	req *TransitionRequest) (*inventory.ProofArtifact, error) {

	m.calls.Add(1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if cur <= seen || m.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	latency := m.Latency
	if m.LatencyFor != nil {
		latency = m.LatencyFor(req)
	}
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", inventory.ErrProver, ctx.Err())
	}

	if m.FailTransition != nil {
		if err := m.FailTransition(req); err != nil {
			return nil, err
		}
	}

	next, err := req.OldState.Apply(req.Op)
	if err != nil {
		return nil, &RequestError{
			Path:       transitionPath,
			StatusCode: 400,
			Message:    err.Error(),
		}
	}
	next.Blinding = req.NewBlinding

	newVolume := inventory.NextVolume(req.OldVolume, req.Op)
	if req.Op.Type == inventory.OpDeposit && req.Context.Bounded() &&
		newVolume > req.Context.MaxCapacity {

		return nil, &RequestError{
			Path:       transitionPath,
			StatusCode: 400,
			Message: fmt.Sprintf("Capacity exceeded: %d > %d",
				newVolume, req.Context.MaxCapacity),
		}
	}

	oldCommitment := MockCommitment(req.OldState, req.OldVolume)
	newCommitment := MockCommitment(next, newVolume)

	h := sha256.New()
	_, _ = h.Write(oldCommitment[:])
	_, _ = h.Write(newCommitment[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(req.Op.ItemID))
	_, _ = h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], req.Op.Amount)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte{byte(req.Op.Type)})
	signalHash := inventory.FieldFromBigEndian(h.Sum(nil))

	proof := sha256.Sum256(append(signalHash[:], req.NewBlinding[:]...))

	return &inventory.ProofArtifact{
		Proof: proof[:],
		PublicInputs: []inventory.FieldElement{
			signalHash,
			inventory.FieldFromUint64(req.Context.Nonce),
			req.Context.InventoryID.FieldElement(),
			req.Context.RegistryRoot,
		},
		Nonce:         req.Context.Nonce,
		InventoryID:   req.Context.InventoryID,
		RegistryRoot:  req.Context.RegistryRoot,
		NewCommitment: newCommitment,
		NewVolume:     newVolume,
	}, nil
}

// DeriveCommitment returns MockCommitment of the state.
func (m *MockProver) DeriveCommitment(_ context.Context,
	state *inventory.State, usedVolume uint64) (inventory.Commitment,
	error) {

	return MockCommitment(state, usedVolume), nil
}

// ProveHolding returns a mock attestation if the state holds enough units.
func (m *MockProver) ProveHolding(_ context.Context, state *inventory.State,
	usedVolume uint64, item inventory.ItemID,
	minQuantity uint64) (*Attestation, error) {

	if have := state.Quantity(item); have < minQuantity {
		return nil, &RequestError{
			Path:       itemExistsPath,
			StatusCode: 400,
			Message: fmt.Sprintf("Insufficient quantity: have %d, "+
				"need >= %d", have, minQuantity),
		}
	}

	commitment := MockCommitment(state, usedVolume)
	proof := sha256.Sum256(commitment[:])

	return &Attestation{
		Proof: proof[:],
		PublicInputs: []inventory.FieldElement{
			inventory.FieldElement(commitment),
			inventory.FieldFromUint64(uint64(item)),
			inventory.FieldFromUint64(minQuantity),
		},
	}, nil
}

// ProveCapacity returns a mock attestation if the volume fits.
func (m *MockProver) ProveCapacity(_ context.Context, state *inventory.State,
	usedVolume, maxCapacity uint64) (*Attestation, error) {

	if maxCapacity != 0 && usedVolume > maxCapacity {
		return nil, &RequestError{
			Path:       capacityPath,
			StatusCode: 400,
			Message: fmt.Sprintf("Capacity exceeded: %d > %d",
				usedVolume, maxCapacity),
		}
	}

	commitment := MockCommitment(state, usedVolume)
	proof := sha256.Sum256(commitment[:])

	return &Attestation{
		Proof: proof[:],
		PublicInputs: []inventory.FieldElement{
			inventory.FieldElement(commitment),
			inventory.FieldFromUint64(maxCapacity),
		},
	}, nil
}
