package actions

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Writer broadcasts a contract call and waits for its confirmation or
// explicit revert.
type Writer interface {
	SendCall(ctx context.Context, to common.Address, calldata []byte) (*types.Receipt, error)
}

// Executor submits encoded plans to the position manager.
type Executor struct {
	writer          Writer
	positionManager common.Address
	logger          *zap.Logger
}

// NewExecutor builds an Executor.
func NewExecutor(writer Writer, positionManager common.Address, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{writer: writer, positionManager: positionManager, logger: logger}
}

// Submit encodes the plan with the given deadline, broadcasts it, and
// blocks until it confirms. The returned hash identifies the mined
// transaction.
func (e *Executor) Submit(ctx context.Context, plan *Plan, deadline time.Time) (common.Hash, error) {
	calldata, err := plan.Encode(big.NewInt(deadline.Unix()))
	if err != nil {
		return common.Hash{}, err
	}

	e.logger.Info("submitting action batch",
		zap.Strings("actions", plan.Ops()),
		zap.Time("deadline", deadline),
	)

	receipt, err := e.writer.SendCall(ctx, e.positionManager, calldata)
	if err != nil {
		return common.Hash{}, err
	}

	e.logger.Info("action batch confirmed",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt.TxHash, nil
}
