package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ValidationError reports a malformed input caught before any chain
// interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ChainReadError wraps an RPC read failure after retries were exhausted.
type ChainReadError struct {
	Op  string
	Err error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("chain read %s: %v", e.Op, e.Err)
}

func (e *ChainReadError) Unwrap() error { return e.Err }

// TransactionRevertError reports a confirmed on-chain revert. Reverts are
// never auto-retried: they usually mean the state the plan was computed
// against has moved.
type TransactionRevertError struct {
	TxHash common.Hash
	Op     string
}

func (e *TransactionRevertError) Error() string {
	return fmt.Sprintf("transaction reverted (%s): %s", e.Op, e.TxHash.Hex())
}

// TransactionUnconfirmedError reports a broadcast write whose receipt did
// not arrive within the deadline. The transaction may still land;
// resubmitting blindly risks a double spend.
type TransactionUnconfirmedError struct {
	TxHash common.Hash
	Op     string
	Err    error
}

func (e *TransactionUnconfirmedError) Error() string {
	return fmt.Sprintf("transaction unconfirmed (%s): %s: %v", e.Op, e.TxHash.Hex(), e.Err)
}

func (e *TransactionUnconfirmedError) Unwrap() error { return e.Err }

// PartialPipelineFailure marks a rebalance that removed the old position
// but failed to add the new one. The withdrawn funds sit safely in the
// caller's wallet; only the add step needs to be retried.
type PartialPipelineFailure struct {
	RemoveTxHash common.Hash
	Amount0      *big.Int
	Amount1      *big.Int
	Err          error
}

func (e *PartialPipelineFailure) Error() string {
	return fmt.Sprintf("rebalance removed liquidity (tx %s) but re-add failed, funds uninvested: %v",
		e.RemoveTxHash.Hex(), e.Err)
}

func (e *PartialPipelineFailure) Unwrap() error { return e.Err }
