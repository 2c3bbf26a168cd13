package compound

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeKeeper/internal/actions"
	"rangeKeeper/internal/clock"
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

// BalanceReader snapshots wallet balances for a set of tokens at once.
type BalanceReader interface {
	TokenBalances(ctx context.Context, tokens []common.Address, account common.Address) ([]*big.Int, error)
}

// Submitter broadcasts an encoded plan and waits for confirmation.
type Submitter interface {
	Submit(ctx context.Context, plan *actions.Plan, deadline time.Time) (common.Hash, error)
}

// Pricer converts a token amount into a USD value for threshold math.
type Pricer interface {
	ValueUSD(token common.Address, amount *big.Int) decimal.Decimal
}

// GasOracle estimates the USD cost of one compound transaction.
type GasOracle interface {
	CompoundCostUSD(ctx context.Context) (decimal.Decimal, error)
}

// Config tunes the engine.
type Config struct {
	// GasFloorMultiple is the minimum fee-value-to-gas-cost ratio;
	// zero falls back to DefaultGasFloorMultiple.
	GasFloorMultiple decimal.Decimal
	// Deadline bounds each broadcast batch.
	Deadline time.Duration
	// Spender is the contract approved to pull the reinvested tokens.
	Spender common.Address
	// Owner is the wallet holding the position and harvested fees.
	Owner common.Address
}

// CycleResult reports what one compound cycle did.
type CycleResult struct {
	Fees0      *big.Int
	Fees1      *big.Int
	Liquidity  *big.Int
	Plan       *actions.Plan
	CollectTx  common.Hash
	ReinvestTx common.Hash
	Compounded bool
	DryRun     bool
}

// Engine harvests position fees and reinvests them as liquidity when a
// strategy says the accumulated value is worth the gas.
type Engine struct {
	reader    PositionReader
	balances  BalanceReader
	approver  ApproverFunc
	submitter Submitter
	pricer    Pricer
	gas       GasOracle
	strategy  Strategy
	clk       clock.Clock
	cfg       Config
	logger    *zap.Logger

	accrued      decimal.Decimal
	lastCompound time.Time
}

// ApproverFunc adapts an allowance call into the engine.
type ApproverFunc func(ctx context.Context, token, spender common.Address, amount *big.Int) error

// NewEngine builds a compound engine.
func NewEngine(
	reader PositionReader,
	balances BalanceReader,
	approver ApproverFunc,
	submitter Submitter,
	pricer Pricer,
	gas GasOracle,
	strategy Strategy,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 5 * time.Minute
	}
	return &Engine{
		reader:       reader,
		balances:     balances,
		approver:     approver,
		submitter:    submitter,
		pricer:       pricer,
		gas:          gas,
		strategy:     strategy,
		clk:          clk,
		cfg:          cfg,
		logger:       logger,
		accrued:      decimal.Zero,
		lastCompound: clk.Now(),
	}
}

// Cycle runs one full evaluate-and-maybe-compound pass. Skipping is
// always safe: harvested fees stay in the wallet for the next cycle.
// With dryRun set the same decision and plan are computed but nothing
// is broadcast.
func (e *Engine) Cycle(ctx context.Context, positionID *big.Int, dryRun bool) (model.CompoundDecision, *CycleResult, error) {
	pos, err := e.reader.Position(ctx, positionID)
	if err != nil {
		return model.CompoundDecision{}, nil, err
	}
	if pos.Liquidity == nil || pos.Liquidity.Sign() == 0 {
		decision := model.CompoundDecision{Reason: "position has no liquidity"}
		return decision, &CycleResult{Fees0: new(big.Int), Fees1: new(big.Int), DryRun: dryRun}, nil
	}

	state, err := e.reader.PoolState(ctx, pos.PoolKey)
	if err != nil {
		return model.CompoundDecision{}, nil, err
	}

	key := pos.PoolKey
	result := &CycleResult{Fees0: new(big.Int), Fees1: new(big.Int), DryRun: dryRun}

	currencies := []common.Address{key.Currency0, key.Currency1}
	before, err := e.balances.TokenBalances(ctx, currencies, e.cfg.Owner)
	if err != nil {
		return model.CompoundDecision{}, nil, err
	}

	after := before
	if !dryRun {
		collectPlan, err := actions.CollectPlan(pos, e.cfg.Owner)
		if err != nil {
			return model.CompoundDecision{}, nil, err
		}
		collectTx, err := e.submitter.Submit(ctx, collectPlan, e.clk.Now().Add(e.cfg.Deadline))
		if err != nil {
			return model.CompoundDecision{}, nil, err
		}
		result.CollectTx = collectTx

		// The balance diff is the exact fee amount received, fee-on-
		// transfer quirks included.
		after, err = e.balances.TokenBalances(ctx, currencies, e.cfg.Owner)
		if err != nil {
			return model.CompoundDecision{}, nil, err
		}

		result.Fees0 = new(big.Int).Sub(after[0], before[0])
		result.Fees1 = new(big.Int).Sub(after[1], before[1])

		harvested := e.pricer.ValueUSD(key.Currency0, result.Fees0).
			Add(e.pricer.ValueUSD(key.Currency1, result.Fees1))
		e.accrued = e.accrued.Add(harvested)
	}

	gasCost, err := e.gas.CompoundCostUSD(ctx)
	if err != nil {
		return model.CompoundDecision{}, nil, err
	}

	decision := e.decide(gasCost)
	e.logger.Info("compound decision",
		zap.String("position", positionID.String()),
		zap.String("strategy", e.strategy.Name()),
		zap.Bool("should_compound", decision.ShouldCompound),
		zap.String("fee_value_usd", decision.EstimatedFeeValue.StringFixed(2)),
		zap.String("gas_cost_usd", decision.EstimatedGasCost.StringFixed(2)),
		zap.String("reason", decision.Reason),
	)

	if !decision.ShouldCompound {
		return decision, result, nil
	}

	// Reinvest everything the wallet holds of both pool currencies.
	reinvestLiq, plan, err := e.buildReinvest(pos, state, after[0], after[1])
	if err != nil {
		return decision, result, err
	}
	result.Liquidity = reinvestLiq
	result.Plan = plan

	if dryRun {
		return decision, result, nil
	}

	if err := e.approver(ctx, key.Currency0, e.cfg.Spender, after[0]); err != nil {
		return decision, result, err
	}
	if err := e.approver(ctx, key.Currency1, e.cfg.Spender, after[1]); err != nil {
		return decision, result, err
	}

	reinvestTx, err := e.submitter.Submit(ctx, plan, e.clk.Now().Add(e.cfg.Deadline))
	if err != nil {
		return decision, result, err
	}
	result.ReinvestTx = reinvestTx
	result.Compounded = true

	e.accrued = decimal.Zero
	e.lastCompound = e.clk.Now()

	e.logger.Info("compound complete",
		zap.String("position", positionID.String()),
		zap.String("tx", reinvestTx.Hex()),
		zap.String("liquidity", reinvestLiq.String()),
	)
	return decision, result, nil
}

func (e *Engine) decide(gasCost decimal.Decimal) model.CompoundDecision {
	snap := Snapshot{
		AccruedFeeValue:   e.accrued,
		SinceLastCompound: e.clk.Now().Sub(e.lastCompound),
	}

	decision := model.CompoundDecision{
		EstimatedFeeValue: e.accrued,
		EstimatedGasCost:  gasCost,
	}

	should, reason := e.strategy.ShouldCompound(snap)
	if !should {
		decision.Reason = reason
		return decision
	}

	// Gas floor gates both strategies; a time trigger with dust fees
	// would still burn more than it earns.
	if ok, floorReason := passesGasFloor(e.accrued, gasCost, e.cfg.GasFloorMultiple); !ok {
		decision.Reason = floorReason
		return decision
	}

	decision.ShouldCompound = true
	decision.Reason = reason
	return decision
}

func (e *Engine) buildReinvest(pos position.Position, state position.PoolState, amount0, amount1 *big.Int) (*big.Int, *actions.Plan, error) {
	sqrtLower, err := tickmath.SqrtPriceAtTick(pos.TickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := tickmath.SqrtPriceAtTick(pos.TickUpper)
	if err != nil {
		return nil, nil, err
	}

	liq, err := liquidity.ForAmounts(state.SqrtPriceX96, sqrtLower, sqrtUpper, amount0, amount1)
	if err != nil {
		return nil, nil, err
	}
	if liq.Sign() == 0 {
		return nil, nil, model.NewValidationError("reinvest", "harvested amounts back no liquidity at current price")
	}

	plan, err := actions.ReinvestPlan(pos, liq, amount0, amount1)
	if err != nil {
		return nil, nil, err
	}
	return liq, plan, nil
}

// Run loops Cycle on the interval until the context is cancelled.
// Cancellation is honored only between cycles: a broadcast write cannot
// be rescinded mid-flight.
func (e *Engine) Run(ctx context.Context, positionID *big.Int, interval time.Duration, dryRun bool) error {
	for {
		if _, _, err := e.Cycle(ctx, positionID, dryRun); err != nil {
			return err
		}
		if err := e.clk.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
