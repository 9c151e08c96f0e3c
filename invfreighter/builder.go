package invfreighter

import (
	"fmt"

	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/prover"
)

// CheckOperation checks that op can be applied to a state occupying
// preVolume under the given chain context. The checks run in a fixed order:
// balance, then capacity, then the shape of the operation itself. None of
// them touch the prover.
func CheckOperation(pre *inventory.State, preVolume uint64,
	op inventory.Operation, chainCtx inventory.ChainContext) error {

	if err := checkBalance(pre, op); err != nil {
		return err
	}

	if op.Type == inventory.OpDeposit && chainCtx.Bounded() &&
		exceedsCapacity(preVolume, op, chainCtx.MaxCapacity) {

		return fmt.Errorf("%w: used volume %d plus %d x %d exceeds "+
			"capacity %d", inventory.ErrCapacityExceeded, preVolume,
			op.Amount, op.ItemVolume, chainCtx.MaxCapacity)
	}

	switch {
	case op.Amount == 0:
		return fmt.Errorf("%w: zero amount", inventory.ErrInvalidOperation)

	case !op.ItemID.Valid():
		return fmt.Errorf("%w: item %d out of range [0, %d]",
			inventory.ErrInvalidOperation, op.ItemID,
			inventory.MaxItemID)

	case op.Amount > inventory.MaxValue:
		return fmt.Errorf("%w: amount %d out of range",
			inventory.ErrInvalidOperation, op.Amount)

	case op.ItemVolume > inventory.MaxValue:
		return fmt.Errorf("%w: item volume %d out of range",
			inventory.ErrInvalidOperation, op.ItemVolume)

	case op.Type != inventory.OpDeposit && op.Type != inventory.OpWithdraw:
		return fmt.Errorf("%w: unknown op type %v",
			inventory.ErrInvalidOperation, op.Type)
	}

	if op.Type == inventory.OpDeposit {
		if pre.Quantity(op.ItemID)+op.Amount > inventory.MaxValue {
			return fmt.Errorf("%w: quantity of item %d overflows",
				inventory.ErrInvalidOperation, op.ItemID)
		}
		if preVolume+op.VolumeDelta() > inventory.MaxValue {
			return fmt.Errorf("%w: used volume overflows",
				inventory.ErrInvalidOperation)
		}
	}

	return nil
}

// checkBalance makes sure a withdraw doesn't take more than pre holds.
func checkBalance(pre *inventory.State, op inventory.Operation) error {
	if op.Type != inventory.OpWithdraw {
		return nil
	}

	if have := pre.Quantity(op.ItemID); have < op.Amount {
		return fmt.Errorf("%w: item %d holds %d, withdraw of %d",
			inventory.ErrInsufficientBalance, op.ItemID, have,
			op.Amount)
	}

	return nil
}

// exceedsCapacity returns true if depositing op on top of usedVolume would
// exceed maxCapacity. The product amount*volume is never formed so huge
// amounts can't wrap around. Operations that don't add volume never exceed
// the capacity.
func exceedsCapacity(usedVolume uint64, op inventory.Operation,
	maxCapacity uint64) bool {

	if op.Type != inventory.OpDeposit || op.ItemVolume == 0 {
		return false
	}
	if usedVolume > maxCapacity {
		return true
	}

	return op.Amount > (maxCapacity-usedVolume)/op.ItemVolume
}

// BuildRequest validates a projected step and turns it into the request the
// prover expects. pre must carry the blinding factor of the step's pre state
// and newBlinding becomes the blinding factor of its post state.
func BuildRequest(step *Step, pre *inventory.State,
	newBlinding inventory.Blinding) (*prover.TransitionRequest, error) {

	err := CheckOperation(pre, step.PreVolume, step.Op, step.Context)
	if err != nil {
		return nil, err
	}

	switch {
	case step.Context.InventoryID != step.InventoryID:
		return nil, fmt.Errorf("%w: chain context of %v used for %v",
			inventory.ErrInvalidOperation, step.Context.InventoryID,
			step.InventoryID)

	case newBlinding.IsZero():
		return nil, fmt.Errorf("%w: missing blinding factor",
			inventory.ErrInvalidOperation)

	case newBlinding == pre.Blinding:
		return nil, fmt.Errorf("%w: blinding factor reused",
			inventory.ErrInvalidOperation)
	}

	return &prover.TransitionRequest{
		OldState:    pre.Copy(),
		OldVolume:   step.PreVolume,
		NewBlinding: newBlinding,
		Op:          step.Op,
		Context:     step.Context,
	}, nil
}
