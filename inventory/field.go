package inventory

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// FieldSize is the length of a serialized BN254 scalar.
const FieldSize = fr.Bytes

// FieldElement is the canonical 32-byte little-endian serialization of a BN254
// scalar field element. This is the encoding the prover speaks for
// commitments, blinding factors, roots and public inputs.
type FieldElement [FieldSize]byte

// NewFieldElement serializes e.
func NewFieldElement(e *fr.Element) FieldElement {
	var f [FieldSize]byte
	fr.LittleEndian.PutElement(&f, *e)

	return FieldElement(f)
}

// FieldFromUint64 returns the field element representing v.
func FieldFromUint64(v uint64) FieldElement {
	var e fr.Element
	e.SetUint64(v)

	return NewFieldElement(&e)
}

// FieldFromBigEndian reduces an arbitrary big-endian byte string into the
// field.
func FieldFromBigEndian(b []byte) FieldElement {
	var e fr.Element
	e.SetBytes(b)

	return NewFieldElement(&e)
}

// Element decodes f, failing if it is not a canonical encoding.
func (f FieldElement) Element() (fr.Element, error) {
	b := [FieldSize]byte(f)
	return fr.LittleEndian.Element(&b)
}

// IsZero returns true if f is the zero element.
func (f FieldElement) IsZero() bool {
	return f == FieldElement{}
}

// String returns the 0x prefixed hex encoding of f.
func (f FieldElement) String() string {
	return "0x" + hex.EncodeToString(f[:])
}

// MarshalJSON encodes f as a hex string.
func (f FieldElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes f from a hex string.
func (f *FieldElement) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	parsed, err := ParseFieldElement(s)
	if err != nil {
		return err
	}
	*f = parsed

	return nil
}

// ParseFieldElement decodes a 0x prefixed (optional) little-endian hex string.
// Short strings are zero padded, non-canonical values are rejected.
func ParseFieldElement(s string) (FieldElement, error) {
	raw, err := decodeHex(s, FieldSize)
	if err != nil {
		return FieldElement{}, fmt.Errorf("invalid field element: %w",
			err)
	}

	var f FieldElement
	copy(f[:], raw)

	if _, err := f.Element(); err != nil {
		return FieldElement{}, fmt.Errorf("invalid field element: %w",
			err)
	}

	return f, nil
}

// decodeHex decodes a hex string of at most maxLen bytes, accepting an
// optional 0x prefix and an odd number of digits.
func decodeHex(s string, maxLen int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) > maxLen {
		return nil, fmt.Errorf("got %d bytes, max %d", len(raw),
			maxLen)
	}

	return raw, nil
}

// Blinding is the secret randomness mixed into a commitment. A new one is
// drawn for every state change.
type Blinding FieldElement

// NewBlinding draws a uniformly random blinding factor.
func NewBlinding() (Blinding, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return Blinding{}, fmt.Errorf("unable to generate blinding: %w",
			err)
	}

	return Blinding(NewFieldElement(&e)), nil
}

// ParseBlinding decodes a hex encoded blinding factor.
func ParseBlinding(s string) (Blinding, error) {
	f, err := ParseFieldElement(s)
	return Blinding(f), err
}

// String returns the hex encoding of the blinding factor.
func (b Blinding) String() string {
	return FieldElement(b).String()
}

// IsZero returns true if no blinding factor has been set.
func (b Blinding) IsZero() bool {
	return FieldElement(b).IsZero()
}

// Commitment is the public hash of an inventory's contents, volume and
// blinding factor.
type Commitment FieldElement

// ParseCommitment decodes a hex encoded commitment.
func ParseCommitment(s string) (Commitment, error) {
	f, err := ParseFieldElement(s)
	return Commitment(f), err
}

// String returns the hex encoding of the commitment.
func (c Commitment) String() string {
	return FieldElement(c).String()
}

// MarshalJSON encodes c as a hex string.
func (c Commitment) MarshalJSON() ([]byte, error) {
	return FieldElement(c).MarshalJSON()
}

// UnmarshalJSON decodes c from a hex string.
func (c *Commitment) UnmarshalJSON(b []byte) error {
	return (*FieldElement)(c).UnmarshalJSON(b)
}
