package inventory

import (
	"fmt"
	"strings"
)

// OpType is the kind of state transition applied to an inventory. The values
// match the op_type the circuits expect.
type OpType uint8

const (
	// OpDeposit adds items to an inventory.
	OpDeposit OpType = 0

	// OpWithdraw removes items from an inventory.
	OpWithdraw OpType = 1
)

// String returns a human readable name of the op type.
func (o OpType) String() string {
	switch o {
	case OpDeposit:
		return "deposit"

	case OpWithdraw:
		return "withdraw"

	default:
		return fmt.Sprintf("<unknown op %d>", uint8(o))
	}
}

// ParseOpType is the inverse of OpType.String.
func ParseOpType(s string) (OpType, error) {
	switch strings.ToLower(s) {
	case "deposit":
		return OpDeposit, nil

	case "withdraw":
		return OpWithdraw, nil

	default:
		return 0, fmt.Errorf("%w: unknown op type %q",
			ErrInvalidOperation, s)
	}
}

// Operation is a single deposit or withdraw against one inventory.
type Operation struct {
	// ItemID is the item being moved.
	ItemID ItemID

	// Amount is the number of units moved.
	Amount uint64

	// Type is deposit or withdraw.
	Type OpType

	// ItemVolume is the per-unit volume of the item as listed in the
	// registry the operation is proven against.
	ItemVolume uint64
}

// String returns a short description of the operation.
func (o Operation) String() string {
	return fmt.Sprintf("%v(item=%d, amount=%d)", o.Type, o.ItemID,
		o.Amount)
}

// VolumeDelta is the change in used volume the operation causes.
func (o Operation) VolumeDelta() uint64 {
	return o.Amount * o.ItemVolume
}

// Transfer moves Amount units of ItemID from Source to Destination. It is
// applied as a withdraw on the source and a deposit on the destination that
// either both land or both roll back.
type Transfer struct {
	Source      ID
	Destination ID
	ItemID      ItemID
	Amount      uint64
}

// Legs returns the withdraw and deposit halves of the transfer.
func (t Transfer) Legs(itemVolume uint64) (Operation, Operation) {
	withdraw := Operation{
		ItemID:     t.ItemID,
		Amount:     t.Amount,
		Type:       OpWithdraw,
		ItemVolume: itemVolume,
	}
	deposit := withdraw
	deposit.Type = OpDeposit

	return withdraw, deposit
}
