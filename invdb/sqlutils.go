package invdb

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/zkinv/inventory"
	"golang.org/x/exp/constraints"
)

// sqlInt64 turns a numerical integer type into the int64 sqlc uses for
// BIGINT columns. Every value we store is range checked to 32 bits, so the
// conversion never overflows.
func sqlInt64[T constraints.Integer](num T) int64 {
	return int64(num)
}

// sqlInt32 turns a numerical integer type into the int32 sqlc uses for
// INTEGER columns.
func sqlInt32[T constraints.Integer](num T) int32 {
	return int32(num)
}

// sqlLimit maps a limit where zero means "all" to a SQL LIMIT value.
func sqlLimit(limit int) int32 {
	if limit <= 0 || limit > math.MaxInt32 {
		return math.MaxInt32
	}

	return int32(limit)
}

// parseInventoryID turns a raw id column into an inventory id.
func parseInventoryID(b []byte) (inventory.ID, error) {
	var id inventory.ID
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid inventory id length %d", len(b))
	}
	copy(id[:], b)

	return id, nil
}

// parseField32 copies a raw 32 byte column into a field sized array.
func parseField32(b []byte, name string) ([32]byte, error) {
	var f [32]byte
	if len(b) != len(f) {
		return f, fmt.Errorf("invalid %s length %d", name, len(b))
	}
	copy(f[:], b)

	return f, nil
}

// serializeKey returns the compressed encoding of a key, nil for a nil key.
func serializeKey(key *btcec.PublicKey) []byte {
	if key == nil {
		return nil
	}

	return key.SerializeCompressed()
}

// parseKey parses a compressed key column, nil for an empty column.
func parseKey(b []byte) (*btcec.PublicKey, error) {
	if len(b) == 0 {
		return nil, nil
	}

	return btcec.ParsePubKey(b)
}

// fMap takes an input slice, and applies the function f to each element,
// yielding a new slice.
func fMap[T1, T2 any](s []T1, f func(T1) T2) []T2 {
	r := make([]T2, len(s))
	for i, v := range s {
		r[i] = f(v)
	}
	return r
}

// fMapErr is like fMap but stops at the first error.
func fMapErr[T1, T2 any](s []T1, f func(T1) (T2, error)) ([]T2, error) {
	r := make([]T2, len(s))
	for i, v := range s {
		var err error
		r[i], err = f(v)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
