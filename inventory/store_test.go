package inventory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func randID(t *testing.T, b byte) ID {
	t.Helper()

	var id ID
	id[0] = b
	id[31] = b

	return id
}

// TestFileStore exercises the JSON state store.
func TestFileStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secrets", "inventory.json")
	store := NewFileStore(path)

	idA, idB := randID(t, 1), randID(t, 2)

	_, err := store.FetchState(ctx, idA)
	require.ErrorIs(t, err, ErrStateNotFound)

	blindingA, err := NewBlinding()
	require.NoError(t, err)
	stateA := &State{
		Slots:    map[ItemID]uint64{1: 100, 2: 50},
		Blinding: blindingA,
	}
	require.NoError(t, store.PutState(ctx, idA, stateA))

	blindingB, err := NewBlinding()
	require.NoError(t, err)
	stateB := &State{
		Slots:    map[ItemID]uint64{3: 10},
		Blinding: blindingB,
	}
	stateA2 := stateA.Copy()
	stateA2.Slots[1] = 70

	require.NoError(t, store.PutStates(ctx, map[ID]*State{
		idA: stateA2,
		idB: stateB,
	}))

	// A fresh store reading the same file sees the same contents.
	reopened := NewFileStore(path)

	gotA, err := reopened.FetchState(ctx, idA)
	require.NoError(t, err)
	require.True(t, stateA2.Equal(gotA))

	gotB, err := reopened.FetchState(ctx, idB)
	require.NoError(t, err)
	require.True(t, stateB.Equal(gotB))

	ids, err := reopened.ListInventories(ctx)
	require.NoError(t, err)
	require.Equal(t, []ID{idA, idB}, ids)

	// The persisted layout is blinding plus slot list.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"blinding"`)
	require.Contains(t, string(raw), `"item_id"`)
	require.Contains(t, string(raw), blindingB.String())
}

// TestArtifactEncoding makes sure an artifact survives the TLV encoding used
// by the batch log.
func TestArtifactEncoding(t *testing.T) {
	t.Parallel()

	id := randID(t, 7)
	root := ComputeRegistryRoot(map[ItemID]uint64{1: 2})
	artifact := &ProofArtifact{
		Proof: bytes.Repeat([]byte{0xaa}, 256),
		PublicInputs: []FieldElement{
			FieldFromUint64(99), FieldFromUint64(3),
			id.FieldElement(), root,
		},
		Nonce:         3,
		InventoryID:   id,
		RegistryRoot:  root,
		NewCommitment: Commitment(FieldFromUint64(1234)),
		NewVolume:     77,
	}

	var b bytes.Buffer
	require.NoError(t, artifact.Encode(&b))

	decoded, err := DecodeArtifact(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, artifact, decoded)

	hash, ok := decoded.SignalHash()
	require.True(t, ok)
	require.Equal(t, FieldFromUint64(99), hash)
}
