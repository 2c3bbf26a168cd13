package rebalance

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangeKeeper/internal/actions"
	"rangeKeeper/internal/liquidity"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/position"
	"rangeKeeper/internal/tickmath"
)

// PositionReader resolves position and pool state from chain.
type PositionReader interface {
	Position(ctx context.Context, id *big.Int) (position.Position, error)
	PoolState(ctx context.Context, key position.PoolKey) (position.PoolState, error)
}

// BalanceReader reads wallet token balances.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// Submitter broadcasts an encoded plan and waits for confirmation.
type Submitter interface {
	Submit(ctx context.Context, plan *actions.Plan, deadline time.Time) (common.Hash, error)
}

// Options configures one rebalance run.
type Options struct {
	// WidthPercent is the total price width of the new band, e.g. 10
	// for a band spanning roughly -5% to +5% around current price.
	WidthPercent float64
	// Deadline bounds each broadcast batch.
	Deadline time.Duration
	// DryRun computes the full plan without broadcasting.
	DryRun bool
}

// Result reports what a rebalance computed and, when live, executed.
type Result struct {
	OldTickLower int32
	OldTickUpper int32
	NewTickLower int32
	NewTickUpper int32
	NewLiquidity *big.Int
	Amount0      *big.Int
	Amount1      *big.Int
	ExitPlan     *actions.Plan
	AddPlan      *actions.Plan
	RemoveTxHash common.Hash
	AddTxHash    common.Hash
	DryRun       bool
}

// Engine moves a position to a fresh band centered on the current tick.
type Engine struct {
	reader    PositionReader
	balances  BalanceReader
	submitter Submitter
	owner     common.Address
	logger    *zap.Logger
}

// NewEngine builds a rebalance engine writing on behalf of owner.
func NewEngine(reader PositionReader, balances BalanceReader, submitter Submitter, owner common.Address, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		reader:    reader,
		balances:  balances,
		submitter: submitter,
		owner:     owner,
		logger:    logger,
	}
}

// Run executes the full pipeline: read, compute the new range, remove
// the old position, and re-add at the new range. A failure before the
// remove confirms leaves the position untouched. A failure after it is
// returned as a PartialPipelineFailure: the withdrawn funds are safe in
// the owner's wallet and only the add step needs retrying.
func (e *Engine) Run(ctx context.Context, positionID *big.Int, opts Options) (*Result, error) {
	if opts.WidthPercent <= 0 {
		return nil, model.NewValidationError("width-percent", "must be positive, got %v", opts.WidthPercent)
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 5 * time.Minute
	}

	pos, err := e.reader.Position(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	if pos.Liquidity == nil || pos.Liquidity.Sign() == 0 {
		return nil, model.NewValidationError("position", "no liquidity to rebalance")
	}

	state, err := e.reader.PoolState(ctx, pos.PoolKey)
	if err != nil {
		return nil, err
	}

	newLower, newUpper, err := computeRange(state.Tick, pos.PoolKey.TickSpacing, opts.WidthPercent)
	if err != nil {
		return nil, err
	}

	// Predict what the removal returns; this sizes the re-add.
	sqrtLower, err := tickmath.SqrtPriceAtTick(pos.TickLower)
	if err != nil {
		return nil, err
	}
	sqrtUpper, err := tickmath.SqrtPriceAtTick(pos.TickUpper)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := liquidity.Amounts(pos.Liquidity, state.SqrtPriceX96, sqrtLower, sqrtUpper)
	if err != nil {
		return nil, err
	}

	newLiq, addPlan, err := e.buildAdd(pos.PoolKey, state.SqrtPriceX96, newLower, newUpper, amount0, amount1)
	if err != nil {
		return nil, err
	}

	exitPlan, err := actions.ExitPlan(pos, nil, nil, e.owner)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OldTickLower: pos.TickLower,
		OldTickUpper: pos.TickUpper,
		NewTickLower: newLower,
		NewTickUpper: newUpper,
		NewLiquidity: newLiq,
		Amount0:      amount0,
		Amount1:      amount1,
		ExitPlan:     exitPlan,
		AddPlan:      addPlan,
		DryRun:       opts.DryRun,
	}

	e.logger.Info("rebalance plan computed",
		zap.String("position", positionID.String()),
		zap.Int32("old_lower", pos.TickLower),
		zap.Int32("old_upper", pos.TickUpper),
		zap.Int32("new_lower", newLower),
		zap.Int32("new_upper", newUpper),
		zap.String("new_liquidity", newLiq.String()),
		zap.Bool("dry_run", opts.DryRun),
	)

	if opts.DryRun {
		return result, nil
	}

	removeTx, err := e.submitter.Submit(ctx, exitPlan, time.Now().Add(opts.Deadline))
	if err != nil {
		// Nothing moved: the position is intact.
		return nil, err
	}
	result.RemoveTxHash = removeTx

	addTx, err := e.submitter.Submit(ctx, addPlan, time.Now().Add(opts.Deadline))
	if err != nil {
		return result, &model.PartialPipelineFailure{
			RemoveTxHash: removeTx,
			Amount0:      amount0,
			Amount1:      amount1,
			Err:          err,
		}
	}
	result.AddTxHash = addTx

	e.logger.Info("rebalance complete",
		zap.String("position", positionID.String()),
		zap.String("remove_tx", removeTx.Hex()),
		zap.String("add_tx", addTx.Hex()),
	)
	return result, nil
}

// RetryAdd re-runs only the add step after a partial failure. It sizes
// the mint from current wallet balances rather than any cached figure:
// recovery recomputes from ground truth.
func (e *Engine) RetryAdd(ctx context.Context, key position.PoolKey, tickLower, tickUpper int32, opts Options) (*Result, error) {
	if opts.Deadline <= 0 {
		opts.Deadline = 5 * time.Minute
	}

	state, err := e.reader.PoolState(ctx, key)
	if err != nil {
		return nil, err
	}

	amount0, err := e.balances.TokenBalance(ctx, key.Currency0, e.owner)
	if err != nil {
		return nil, err
	}
	amount1, err := e.balances.TokenBalance(ctx, key.Currency1, e.owner)
	if err != nil {
		return nil, err
	}

	newLiq, addPlan, err := e.buildAdd(key, state.SqrtPriceX96, tickLower, tickUpper, amount0, amount1)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NewTickLower: tickLower,
		NewTickUpper: tickUpper,
		NewLiquidity: newLiq,
		Amount0:      amount0,
		Amount1:      amount1,
		AddPlan:      addPlan,
		DryRun:       opts.DryRun,
	}
	if opts.DryRun {
		return result, nil
	}

	addTx, err := e.submitter.Submit(ctx, addPlan, time.Now().Add(opts.Deadline))
	if err != nil {
		return result, err
	}
	result.AddTxHash = addTx
	return result, nil
}

func (e *Engine) buildAdd(key position.PoolKey, sqrtPrice *big.Int, tickLower, tickUpper int32, amount0, amount1 *big.Int) (*big.Int, *actions.Plan, error) {
	sqrtLower, err := tickmath.SqrtPriceAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := tickmath.SqrtPriceAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}

	newLiq, err := liquidity.ForAmounts(sqrtPrice, sqrtLower, sqrtUpper, amount0, amount1)
	if err != nil {
		return nil, nil, err
	}
	if newLiq.Sign() == 0 {
		return nil, nil, model.NewValidationError("liquidity", "computed zero liquidity for new range")
	}

	addPlan, err := actions.MintPlan(key, tickLower, tickUpper, newLiq, amount0, amount1, e.owner)
	if err != nil {
		return nil, nil, err
	}
	return newLiq, addPlan, nil
}

// computeRange builds a symmetric band around the current tick, aligned
// outward to the spacing so the requested width is never narrowed.
func computeRange(currentTick, spacing int32, widthPercent float64) (int32, int32, error) {
	half := tickmath.WidthForPercent(widthPercent)
	if half == 0 {
		return 0, 0, model.NewValidationError("width-percent", "band too narrow: %v%%", widthPercent)
	}

	lower := tickmath.AlignTick(currentTick-half, spacing, tickmath.RoundDown)
	upper := tickmath.AlignTick(currentTick+half, spacing, tickmath.RoundUp)
	if lower >= upper {
		return 0, 0, model.NewValidationError("range", "degenerate band [%d, %d]", lower, upper)
	}
	return lower, upper, nil
}
