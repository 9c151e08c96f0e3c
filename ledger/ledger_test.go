package ledger

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	t      *testing.T
	ledger *MemLedger
	signer *KeySigner
	root   inventory.FieldElement
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	reg, err := inventory.NewRegistry(map[inventory.ItemID]uint64{
		1: 2, 2: 3, 3: 5,
	})
	require.NoError(t, err)

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return &testHarness{
		t:      t,
		ledger: NewMemLedger(reg, nil),
		signer: NewKeySigner(privKey),
		root:   reg.Root,
	}
}

func (h *testHarness) newInventory() *inventory.Record {
	pub, err := h.signer.PubKey()
	require.NoError(h.t, err)

	record, err := h.ledger.CreateInventory(
		context.Background(), pub,
		inventory.Commitment(inventory.FieldFromUint64(1)), 0,
	)
	require.NoError(h.t, err)
	require.Zero(h.t, record.Nonce)

	return record
}

// call builds a correctly bound call for the given inventory and nonce.
func (h *testHarness) call(id inventory.ID, nonce uint64, op inventory.OpType,
	commitment uint64) Call {

	return Call{
		InventoryID:   id,
		Op:            op,
		ItemID:        1,
		Amount:        5,
		Nonce:         nonce,
		RegistryRoot:  h.root,
		NewCommitment: inventory.Commitment(inventory.FieldFromUint64(commitment)),
		Proof:         []byte{0x01, 0x02},
		PublicInputs: []inventory.FieldElement{
			inventory.FieldFromUint64(commitment),
			inventory.FieldFromUint64(nonce),
			id.FieldElement(),
			h.root,
		},
	}
}

func (h *testHarness) submit(calls ...Call) (*Receipt, error) {
	tx := &Transaction{Calls: calls}
	require.NoError(h.t, SignTransaction(h.signer, tx))

	return h.ledger.SubmitTransaction(context.Background(), tx)
}

func (h *testHarness) record(id inventory.ID) *inventory.Record {
	record, err := h.ledger.FetchInventory(context.Background(), id)
	require.NoError(h.t, err)

	return record
}

// TestLedgerSequentialCalls checks that calls in one transaction see the
// nonce bumps of the calls before them.
func TestLedgerSequentialCalls(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	inv := h.newInventory()

	receipt, err := h.submit(
		h.call(inv.ID, 0, inventory.OpDeposit, 10),
		h.call(inv.ID, 1, inventory.OpWithdraw, 11),
		h.call(inv.ID, 2, inventory.OpDeposit, 12),
	)
	require.NoError(t, err)

	record := h.record(inv.ID)
	require.EqualValues(t, 3, record.Nonce)
	require.Equal(
		t, inventory.Commitment(inventory.FieldFromUint64(12)),
		record.Commitment,
	)
	require.Equal(t, record, receipt.Records[inv.ID])
}

// TestLedgerAtomicAbort makes sure a failing call rolls back the calls that
// came before it in the same transaction.
func TestLedgerAtomicAbort(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		mutate    func(calls []Call)
		expectErr error
		failIdx   int
	}{{
		name: "nonce gap",
		mutate: func(calls []Call) {
			calls[1].Nonce = 5
			calls[1].PublicInputs[1] = inventory.FieldFromUint64(5)
		},
		expectErr: inventory.ErrNonceMismatch,
		failIdx:   1,
	}, {
		name: "public input not bound to nonce",
		mutate: func(calls []Call) {
			calls[1].PublicInputs[1] = inventory.FieldFromUint64(0)
		},
		expectErr: inventory.ErrProofVerificationFailed,
		failIdx:   1,
	}, {
		name: "proof bound to other inventory",
		mutate: func(calls []Call) {
			calls[1].PublicInputs[2] = inventory.FieldFromUint64(9)
		},
		expectErr: inventory.ErrProofVerificationFailed,
		failIdx:   1,
	}, {
		name: "stale registry root",
		mutate: func(calls []Call) {
			calls[1].RegistryRoot = inventory.FieldFromUint64(3)
			calls[1].PublicInputs[3] = inventory.FieldFromUint64(3)
		},
		expectErr: inventory.ErrProofVerificationFailed,
		failIdx:   1,
	}, {
		name: "empty proof",
		mutate: func(calls []Call) {
			calls[1].Proof = nil
		},
		expectErr: inventory.ErrProofVerificationFailed,
		failIdx:   1,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(t)
			inv := h.newInventory()

			calls := []Call{
				h.call(inv.ID, 0, inventory.OpDeposit, 10),
				h.call(inv.ID, 1, inventory.OpDeposit, 11),
			}
			tc.mutate(calls)

			_, err := h.submit(calls...)
			require.ErrorIs(t, err, tc.expectErr)

			var callErr *CallError
			require.ErrorAs(t, err, &callErr)
			require.Equal(t, tc.failIdx, callErr.Index)

			// The first call must not have been applied.
			require.Equal(t, inv, h.record(inv.ID))
			require.Zero(t, h.ledger.Accepted())
		})
	}
}

// TestLedgerReplay checks that a call generated for an old nonce is
// rejected once the nonce has moved on.
func TestLedgerReplay(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	inv := h.newInventory()

	first := h.call(inv.ID, 0, inventory.OpDeposit, 10)
	_, err := h.submit(first)
	require.NoError(t, err)

	_, err = h.submit(first)
	require.ErrorIs(t, err, inventory.ErrNonceMismatch)

	record := h.record(inv.ID)
	require.EqualValues(t, 1, record.Nonce)

	// A valid proof for another inventory can't be moved over either.
	other := h.newInventory()
	stolen := h.call(inv.ID, 1, inventory.OpDeposit, 20)
	stolen.InventoryID = other.ID
	stolen.Nonce = 0
	stolen.PublicInputs[1] = inventory.FieldFromUint64(0)

	_, err = h.submit(stolen)
	require.ErrorIs(t, err, inventory.ErrProofVerificationFailed)
}

// TestLedgerTransferStructure covers the pairing rules of transfer legs.
func TestLedgerTransferStructure(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	src, dst := h.newInventory(), h.newInventory()

	withdraw := h.call(src.ID, 0, inventory.OpWithdraw, 10)
	withdraw.TransferGroup = 1
	deposit := h.call(dst.ID, 0, inventory.OpDeposit, 20)
	deposit.TransferGroup = 1

	// A lone leg is malformed.
	_, err := h.submit(withdraw)
	require.ErrorIs(t, err, ErrMalformedTransaction)

	// Mismatched amounts are malformed.
	bad := deposit
	bad.Amount++
	_, err = h.submit(withdraw, bad)
	require.ErrorIs(t, err, ErrMalformedTransaction)

	// A failing destination leg rolls back the source leg.
	badProof := deposit
	badProof.Proof = nil
	_, err = h.submit(withdraw, badProof)
	require.ErrorIs(t, err, inventory.ErrProofVerificationFailed)
	require.Equal(t, src, h.record(src.ID))

	_, err = h.submit(withdraw, deposit)
	require.NoError(t, err)
	require.EqualValues(t, 1, h.record(src.ID).Nonce)
	require.EqualValues(t, 1, h.record(dst.ID).Nonce)
}

// TestLedgerAuthorization checks signatures and ownership.
func TestLedgerAuthorization(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	inv := h.newInventory()
	ctx := context.Background()

	// Unsigned.
	_, err := h.ledger.SubmitTransaction(ctx, &Transaction{
		Calls: []Call{h.call(inv.ID, 0, inventory.OpDeposit, 10)},
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	// Signed by someone else.
	otherKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tx := &Transaction{
		Calls: []Call{h.call(inv.ID, 0, inventory.OpDeposit, 10)},
	}
	require.NoError(t, SignTransaction(NewKeySigner(otherKey), tx))
	_, err = h.ledger.SubmitTransaction(ctx, tx)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Tampered after signing.
	tx = &Transaction{
		Calls: []Call{h.call(inv.ID, 0, inventory.OpDeposit, 10)},
	}
	require.NoError(t, SignTransaction(h.signer, tx))
	tx.Calls[0].Amount++
	_, err = h.ledger.SubmitTransaction(ctx, tx)
	require.ErrorIs(t, err, ErrUnauthorized)

	// No key at all.
	err = SignTransaction(NewKeySigner(nil), tx)
	require.ErrorIs(t, err, inventory.ErrSignerUnavailable)
}

// TestTransactionEncoding checks the signed transaction survives the TLV
// encoding and keeps its digest.
func TestTransactionEncoding(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	inv := h.newInventory()

	tx := &Transaction{Calls: []Call{
		h.call(inv.ID, 0, inventory.OpDeposit, 10),
		h.call(inv.ID, 1, inventory.OpWithdraw, 11),
	}}
	tx.Calls[1].TransferGroup = 3
	require.NoError(t, SignTransaction(h.signer, tx))

	var b bytes.Buffer
	require.NoError(t, tx.Encode(&b))

	var decoded Transaction
	require.NoError(t, decoded.Decode(bytes.NewReader(b.Bytes())))
	require.Equal(t, tx.Calls, decoded.Calls)
	require.Equal(t, tx.Signature, decoded.Signature)
	require.True(t, tx.Signer.IsEqual(decoded.Signer))

	digest, err := tx.Digest()
	require.NoError(t, err)
	decodedDigest, err := decoded.Digest()
	require.NoError(t, err)
	require.Equal(t, digest, decodedDigest)
}

// TestKeyFile checks key files can be created and loaded.
func TestKeyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys", "signer.key")

	missing, err := LoadKeySigner(path)
	require.NoError(t, err)
	_, err = missing.PubKey()
	require.ErrorIs(t, err, inventory.ErrSignerUnavailable)

	created, err := CreateKeyFile(path)
	require.NoError(t, err)

	_, err = CreateKeyFile(path)
	require.Error(t, err)

	loaded, err := LoadKeySigner(path)
	require.NoError(t, err)

	createdPub, err := created.PubKey()
	require.NoError(t, err)
	loadedPub, err := loaded.PubKey()
	require.NoError(t, err)
	require.True(t, createdPub.IsEqual(loadedPub))
}
