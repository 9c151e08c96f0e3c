package inventory

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Slot is a single (item, quantity) leaf of an inventory.
type Slot struct {
	ItemID   ItemID `json:"item_id"`
	Quantity uint64 `json:"quantity"`
}

// State is the secret state of an inventory: its slot contents and the
// blinding factor of its current commitment. Slots never hold a zero
// quantity.
type State struct {
	// Slots maps an item to the quantity held.
	Slots map[ItemID]uint64

	// Blinding is the blinding factor of the commitment that opens to
	// this state.
	Blinding Blinding
}

// NewState creates a state from a slot list, pruning empty slots.
func NewState(slots []Slot, blinding Blinding) (*State, error) {
	s := &State{
		Slots:    make(map[ItemID]uint64, len(slots)),
		Blinding: blinding,
	}

	// Empty slots are pruned from the state but still count as taken.
	seen := make(map[ItemID]struct{}, len(slots))
	for _, slot := range slots {
		if !slot.ItemID.Valid() {
			return nil, fmt.Errorf("%w: item %d out of range",
				ErrInvalidOperation, slot.ItemID)
		}
		if _, ok := seen[slot.ItemID]; ok {
			return nil, fmt.Errorf("duplicate slot for item %d",
				slot.ItemID)
		}
		seen[slot.ItemID] = struct{}{}

		if slot.Quantity > MaxValue {
			return nil, fmt.Errorf("%w: quantity %d of item %d "+
				"out of range", ErrInvalidOperation,
				slot.Quantity, slot.ItemID)
		}
		if slot.Quantity == 0 {
			continue
		}

		s.Slots[slot.ItemID] = slot.Quantity
	}

	return s, nil
}

// EmptyState returns a fresh state with no slots.
func EmptyState(blinding Blinding) *State {
	return &State{
		Slots:    make(map[ItemID]uint64),
		Blinding: blinding,
	}
}

// Quantity returns the quantity held of the given item.
func (s *State) Quantity(id ItemID) uint64 {
	return s.Slots[id]
}

// SlotList returns the slots sorted by item id.
func (s *State) SlotList() []Slot {
	ids := maps.Keys(s.Slots)
	slices.Sort(ids)

	slots := make([]Slot, 0, len(ids))
	for _, id := range ids {
		slots = append(slots, Slot{ItemID: id, Quantity: s.Slots[id]})
	}

	return slots
}

// Copy returns a deep copy of the state.
func (s *State) Copy() *State {
	return &State{
		Slots:    maps.Clone(s.Slots),
		Blinding: s.Blinding,
	}
}

// Equal returns true if both states hold the same slots and blinding.
func (s *State) Equal(o *State) bool {
	return s.Blinding == o.Blinding && maps.Equal(s.Slots, o.Slots)
}

// UsedVolume computes the volume occupied by the state's slots according to
// the registry.
func (s *State) UsedVolume(reg *Registry) (uint64, error) {
	var total uint64
	for id, qty := range s.Slots {
		vol, err := reg.Volume(id)
		if err != nil {
			return 0, err
		}

		total += qty * vol
		if total > MaxValue {
			return 0, fmt.Errorf("%w: used volume overflows",
				ErrInvalidOperation)
		}
	}

	return total, nil
}

// Apply returns the state that results from applying op, leaving s
// untouched. The blinding factor of the result is left unset, a fresh one
// is assigned once the transition is proven.
func (s *State) Apply(op Operation) (*State, error) {
	if !op.ItemID.Valid() {
		return nil, fmt.Errorf("%w: item %d out of range",
			ErrInvalidOperation, op.ItemID)
	}

	next := &State{Slots: maps.Clone(s.Slots)}
	if next.Slots == nil {
		next.Slots = make(map[ItemID]uint64)
	}

	current := s.Slots[op.ItemID]
	switch op.Type {
	case OpWithdraw:
		if current < op.Amount {
			return nil, fmt.Errorf("%w: item %d holds %d, "+
				"withdraw of %d", ErrInsufficientBalance,
				op.ItemID, current, op.Amount)
		}

		if current == op.Amount {
			delete(next.Slots, op.ItemID)
		} else {
			next.Slots[op.ItemID] = current - op.Amount
		}

	case OpDeposit:
		if current+op.Amount > MaxValue {
			return nil, fmt.Errorf("%w: item %d quantity would "+
				"overflow", ErrInvalidOperation, op.ItemID)
		}
		if op.Amount > 0 {
			next.Slots[op.ItemID] = current + op.Amount
		}

	default:
		return nil, fmt.Errorf("%w: unknown op type %v",
			ErrInvalidOperation, op.Type)
	}

	return next, nil
}

// NextVolume returns the used volume after applying op to an inventory
// currently occupying usedVolume. Withdrawals never go below zero.
func NextVolume(usedVolume uint64, op Operation) uint64 {
	delta := op.VolumeDelta()

	if op.Type == OpWithdraw {
		if delta > usedVolume {
			return 0
		}
		return usedVolume - delta
	}

	return usedVolume + delta
}
