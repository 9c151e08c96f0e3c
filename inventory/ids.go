package inventory

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	// TreeDepth is the depth of the sparse Merkle tree holding the slots
	// of an inventory.
	TreeDepth = 12

	// MaxItemID is the largest item identifier that fits in the tree.
	MaxItemID ItemID = 1<<TreeDepth - 1

	// MaxValue bounds quantities, amounts and volumes. The circuits range
	// check these to 32 bits.
	MaxValue uint64 = 1<<32 - 1
)

// ItemID identifies a kind of item. It is also the leaf index of the item's
// slot in the inventory tree.
type ItemID uint32

// Valid returns true if the id fits in the inventory tree.
func (i ItemID) Valid() bool {
	return i <= MaxItemID
}

// ID is the 32-byte object identifier of an on-chain inventory record.
type ID [32]byte

// NewIDFromString parses a 0x prefixed (optional) big-endian hex object id.
func NewIDFromString(s string) (ID, error) {
	raw, err := decodeHex(s, len(ID{}))
	if err != nil {
		return ID{}, fmt.Errorf("invalid inventory id %q: %w", s, err)
	}

	// Object ids are numbers, short encodings are left padded.
	var id ID
	copy(id[len(id)-len(raw):], raw)

	return id, nil
}

// String returns the 0x prefixed hex encoding of the id.
func (i ID) String() string {
	return "0x" + hex.EncodeToString(i[:])
}

// FieldElement returns the id reduced into the scalar field. This is the
// value a proof is bound to.
func (i ID) FieldElement() FieldElement {
	return FieldFromBigEndian(i[:])
}

// MarshalJSON encodes the id as a hex string.
func (i ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON decodes the id from a hex string.
func (i *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	id, err := NewIDFromString(s)
	if err != nil {
		return err
	}
	*i = id

	return nil
}
