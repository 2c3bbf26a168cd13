package compound

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultGasFloorMultiple is the minimum ratio of fee value to gas cost
// before a compound is worth submitting.
var DefaultGasFloorMultiple = decimal.NewFromInt(3)

// Snapshot is what a strategy sees each cycle.
type Snapshot struct {
	// AccruedFeeValue is the total uncollected fee value (USD) carried
	// across cycles, including this cycle's harvest.
	AccruedFeeValue decimal.Decimal
	// SinceLastCompound is the elapsed time since the last successful
	// compound (or engine start).
	SinceLastCompound time.Duration
}

// Strategy decides whether accumulated fees justify a compound. The gas
// floor is applied separately and unconditionally.
type Strategy interface {
	Name() string
	ShouldCompound(snap Snapshot) (bool, string)
}

// DollarStrategy compounds once accrued fee value crosses a threshold.
type DollarStrategy struct {
	ThresholdUSD decimal.Decimal
}

func (s DollarStrategy) Name() string { return "dollar" }

func (s DollarStrategy) ShouldCompound(snap Snapshot) (bool, string) {
	if snap.AccruedFeeValue.GreaterThanOrEqual(s.ThresholdUSD) {
		return true, fmt.Sprintf("accrued $%s >= threshold $%s", snap.AccruedFeeValue.StringFixed(2), s.ThresholdUSD.StringFixed(2))
	}
	return false, fmt.Sprintf("accrued $%s below threshold $%s", snap.AccruedFeeValue.StringFixed(2), s.ThresholdUSD.StringFixed(2))
}

// TimeStrategy compounds on a fixed interval regardless of amount.
type TimeStrategy struct {
	Interval time.Duration
}

func (s TimeStrategy) Name() string { return "time" }

func (s TimeStrategy) ShouldCompound(snap Snapshot) (bool, string) {
	if snap.SinceLastCompound >= s.Interval {
		return true, fmt.Sprintf("interval %s elapsed", s.Interval)
	}
	return false, fmt.Sprintf("only %s of %s elapsed", snap.SinceLastCompound.Round(time.Second), s.Interval)
}

// passesGasFloor checks that fee value covers the configured multiple of
// gas cost. Compounding below the floor destroys value.
func passesGasFloor(feeValue, gasCost, multiple decimal.Decimal) (bool, string) {
	if multiple.Sign() <= 0 {
		multiple = DefaultGasFloorMultiple
	}
	floor := gasCost.Mul(multiple)
	if feeValue.LessThan(floor) {
		return false, fmt.Sprintf("fee value $%s below gas floor $%s (%sx gas $%s)",
			feeValue.StringFixed(2), floor.StringFixed(2), multiple, gasCost.StringFixed(2))
	}
	return true, ""
}
