package chain

import (
	"context"
	"errors"

	"rangeKeeper/internal/model"
)

// WriteFailure distinguishes how a state-changing transaction failed.
// The distinction matters: retrying a revert wastes gas on the same
// outcome, and retrying an unconfirmed write risks double submission.
type WriteFailure int

const (
	// FailureReverted means the transaction was mined with status 0.
	FailureReverted WriteFailure = iota
	// FailureUnconfirmed means the transaction was broadcast but no
	// receipt arrived before the deadline.
	FailureUnconfirmed
	// FailureNetwork means the transaction may never have reached the
	// network at all.
	FailureNetwork
)

func (f WriteFailure) String() string {
	switch f {
	case FailureReverted:
		return "reverted"
	case FailureUnconfirmed:
		return "unconfirmed"
	default:
		return "network"
	}
}

// ClassifyWriteError maps a SendCall error onto the failure taxonomy.
func ClassifyWriteError(err error) WriteFailure {
	var revert *model.TransactionRevertError
	if errors.As(err, &revert) {
		return FailureReverted
	}
	var unconfirmed *model.TransactionUnconfirmedError
	if errors.As(err, &unconfirmed) {
		return FailureUnconfirmed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureUnconfirmed
	}
	return FailureNetwork
}
