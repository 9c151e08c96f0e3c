package inventory

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Registry is the public table of per-unit item volumes together with the
// root committing to it.
type Registry struct {
	// Root commits to Volumes. Proofs touching capacity are bound to it.
	Root FieldElement

	// Volumes maps an item to its per-unit volume.
	Volumes map[ItemID]uint64
}

// NewRegistry creates a registry from a volume table and computes its root.
func NewRegistry(volumes map[ItemID]uint64) (*Registry, error) {
	for id, vol := range volumes {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: item %d out of range",
				ErrInvalidOperation, id)
		}
		if vol > MaxValue {
			return nil, fmt.Errorf("%w: volume %d of item %d out "+
				"of range", ErrInvalidOperation, vol, id)
		}
	}

	return &Registry{
		Root:    ComputeRegistryRoot(volumes),
		Volumes: maps.Clone(volumes),
	}, nil
}

// Volume returns the per-unit volume of an item.
func (r *Registry) Volume(id ItemID) (uint64, error) {
	vol, ok := r.Volumes[id]
	if !ok {
		return 0, fmt.Errorf("%w: item %d not in registry",
			ErrInvalidOperation, id)
	}

	return vol, nil
}

// ComputeRegistryRoot commits to a volume table as the field reduction of the
// sha256 digest of its entries sorted by item id.
func ComputeRegistryRoot(volumes map[ItemID]uint64) FieldElement {
	ids := maps.Keys(volumes)
	slices.Sort(ids)

	h := sha256.New()
	var entry [12]byte
	for _, id := range ids {
		binary.BigEndian.PutUint32(entry[:4], uint32(id))
		binary.BigEndian.PutUint64(entry[4:], volumes[id])
		_, _ = h.Write(entry[:])
	}

	return FieldFromBigEndian(h.Sum(nil))
}
