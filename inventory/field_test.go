package inventory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

// TestBlindingFresh makes sure every blinding factor is distinct and
// canonical.
func TestBlindingFresh(t *testing.T) {
	t.Parallel()

	seen := make(map[Blinding]struct{})
	for i := 0; i < 32; i++ {
		b, err := NewBlinding()
		require.NoError(t, err)
		require.False(t, b.IsZero())

		_, ok := seen[b]
		require.False(t, ok)
		seen[b] = struct{}{}

		parsed, err := ParseBlinding(b.String())
		require.NoError(t, err)
		require.Equal(t, b, parsed)
	}
}

// TestFieldEncoding checks the little-endian hex encoding.
func TestFieldEncoding(t *testing.T) {
	t.Parallel()

	one := FieldFromUint64(1)
	require.Equal(t, "0x01"+strings.Repeat("00", 31), one.String())

	parsed, err := ParseFieldElement("0x1")
	require.NoError(t, err)
	require.Equal(t, one, parsed)

	// The modulus itself is not a canonical encoding.
	modulus := fr.Modulus()
	var le [FieldSize]byte
	modulus.FillBytes(le[:])
	for i, j := 0, len(le)-1; i < j; i, j = i+1, j-1 {
		le[i], le[j] = le[j], le[i]
	}
	_, err = ParseFieldElement(FieldElement(le).String())
	require.Error(t, err)

	_, err = ParseFieldElement("0x" + strings.Repeat("00", 33))
	require.Error(t, err)

	_, err = ParseFieldElement("zz")
	require.Error(t, err)
}

// TestIDFieldReduction makes sure ids larger than the field are reduced.
func TestIDFieldReduction(t *testing.T) {
	t.Parallel()

	id, err := NewIDFromString("0x2a")
	require.NoError(t, err)
	require.Equal(t, FieldFromUint64(42), id.FieldElement())
	require.True(t, strings.HasSuffix(id.String(), "2a"))

	var maxID ID
	for i := range maxID {
		maxID[i] = 0xff
	}
	_, err = maxID.FieldElement().Element()
	require.NoError(t, err)

	raw, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, id, decoded)
}

// TestRegistryRoot checks the root only depends on the table contents.
func TestRegistryRoot(t *testing.T) {
	t.Parallel()

	a := ComputeRegistryRoot(map[ItemID]uint64{1: 2, 2: 3})
	b := ComputeRegistryRoot(map[ItemID]uint64{2: 3, 1: 2})
	c := ComputeRegistryRoot(map[ItemID]uint64{1: 2, 2: 4})

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	_, err := NewRegistry(map[ItemID]uint64{MaxItemID + 1: 1})
	require.ErrorIs(t, err, ErrInvalidOperation)
}
