package compound

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"rangeKeeper/internal/actions"
	"rangeKeeper/internal/position"
	"rangeKeeper/internal/tickmath"
)

var (
	token0  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	owner   = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	spender = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.now = f.now.Add(d)
	return ctx.Err()
}

type fakeReader struct {
	pos   position.Position
	state position.PoolState
}

func (f *fakeReader) Position(context.Context, *big.Int) (position.Position, error) {
	return f.pos, nil
}

func (f *fakeReader) PoolState(context.Context, position.PoolKey) (position.PoolState, error) {
	return f.state, nil
}

type approval struct {
	token  common.Address
	amount *big.Int
}

// harness wires the balance, submit, and approve fakes together so a
// collect submit credits pending fees into the fake wallet.
type harness struct {
	balances  map[common.Address]*big.Int
	nextFees  map[common.Address]*big.Int
	submits   []*actions.Plan
	approvals []approval
}

func newHarness() *harness {
	return &harness{
		balances: map[common.Address]*big.Int{
			token0: new(big.Int),
			token1: new(big.Int),
		},
	}
}

func (h *harness) creditNextCollect(fee0, fee1 int64) {
	h.nextFees = map[common.Address]*big.Int{
		token0: big.NewInt(fee0),
		token1: big.NewInt(fee1),
	}
}

func (h *harness) TokenBalances(_ context.Context, tokens []common.Address, _ common.Address) ([]*big.Int, error) {
	out := make([]*big.Int, len(tokens))
	for i, token := range tokens {
		out[i] = new(big.Int).Set(h.balances[token])
	}
	return out, nil
}

func (h *harness) Submit(_ context.Context, plan *actions.Plan, _ time.Time) (common.Hash, error) {
	h.submits = append(h.submits, plan)
	if h.nextFees != nil {
		for token, fee := range h.nextFees {
			h.balances[token].Add(h.balances[token], fee)
		}
		h.nextFees = nil
	}
	return common.HexToHash("0x1234"), nil
}

func (h *harness) Approve(_ context.Context, token, _ common.Address, amount *big.Int) error {
	h.approvals = append(h.approvals, approval{token: token, amount: new(big.Int).Set(amount)})
	return nil
}

func testPosition(t *testing.T) (position.Position, position.PoolState) {
	t.Helper()
	sqrtPrice, err := tickmath.SqrtPriceAtTick(0)
	if err != nil {
		t.Fatalf("sqrt price: %v", err)
	}
	key := position.PoolKey{
		Currency0:   token0,
		Currency1:   token1,
		Fee:         3000,
		TickSpacing: 60,
	}
	pos := position.Position{
		ID:        big.NewInt(42),
		PoolKey:   key,
		TickLower: -1200,
		TickUpper: 1200,
		Liquidity: big.NewInt(1_000_000_000),
	}
	return pos, position.PoolState{SqrtPriceX96: sqrtPrice, Tick: 0}
}

type unitPricer struct{}

// One wei of either token is one dollar. Keeps the threshold sums in
// the tests readable.
func (unitPricer) ValueUSD(_ common.Address, amount *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(amount, 0)
}

type fixedGas struct {
	cost decimal.Decimal
}

func (f fixedGas) CompoundCostUSD(context.Context) (decimal.Decimal, error) {
	return f.cost, nil
}

func newTestEngine(t *testing.T, h *harness, strategy Strategy, gasUSD int64) *Engine {
	t.Helper()
	pos, state := testPosition(t)
	reader := &fakeReader{pos: pos, state: state}
	cfg := Config{
		Spender: spender,
		Owner:   owner,
	}
	clk := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	return NewEngine(reader, h, h.Approve, h, unitPricer{}, fixedGas{cost: decimal.NewFromInt(gasUSD)}, strategy, clk, cfg, nil)
}

func TestCycleNoLiquidityNoOp(t *testing.T) {
	h := newHarness()
	engine := newTestEngine(t, h, DollarStrategy{ThresholdUSD: decimal.NewFromInt(1)}, 0)
	engine.reader.(*fakeReader).pos.Liquidity = new(big.Int)

	decision, res, err := engine.Cycle(context.Background(), big.NewInt(42), false)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if decision.ShouldCompound {
		t.Fatal("empty position must not compound")
	}
	if len(h.submits) != 0 {
		t.Fatalf("empty position must not broadcast, got %d submits", len(h.submits))
	}
	if res.Fees0.Sign() != 0 || res.Fees1.Sign() != 0 {
		t.Fatalf("no fees expected: %s / %s", res.Fees0, res.Fees1)
	}
}

func TestHarvestAccruesAcrossCyclesThenCompounds(t *testing.T) {
	h := newHarness()
	engine := newTestEngine(t, h, DollarStrategy{ThresholdUSD: decimal.NewFromInt(30)}, 0)

	// Cycle 1: $20 of fees, below the $30 threshold. Collect only.
	h.creditNextCollect(10, 10)
	decision, res, err := engine.Cycle(context.Background(), big.NewInt(42), false)
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if decision.ShouldCompound {
		t.Fatalf("$20 accrued must defer: %s", decision.Reason)
	}
	if res.Fees0.Cmp(big.NewInt(10)) != 0 || res.Fees1.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("fee diff wrong: %s / %s", res.Fees0, res.Fees1)
	}
	if len(h.submits) != 1 {
		t.Fatalf("deferral should only broadcast the collect, got %d", len(h.submits))
	}

	// Cycle 2: another $20 carries accrued to $40, over the threshold.
	h.creditNextCollect(10, 10)
	decision, res, err = engine.Cycle(context.Background(), big.NewInt(42), false)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if !decision.ShouldCompound {
		t.Fatalf("$40 accrued must compound: %s", decision.Reason)
	}
	if !decision.EstimatedFeeValue.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("accrued value should carry deferred fees: %s", decision.EstimatedFeeValue)
	}
	if !res.Compounded {
		t.Fatal("result should record the compound")
	}
	if res.Liquidity == nil || res.Liquidity.Sign() <= 0 {
		t.Fatalf("reinvest liquidity should be positive: %v", res.Liquidity)
	}
	if len(h.submits) != 3 {
		t.Fatalf("compound cycle adds collect + reinvest, got %d total", len(h.submits))
	}

	// Cycle 3: accrued was reset, so dust defers again.
	h.creditNextCollect(1, 0)
	decision, _, err = engine.Cycle(context.Background(), big.NewInt(42), false)
	if err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if decision.ShouldCompound {
		t.Fatal("accrued value must reset after a compound")
	}
}

func TestGasFloorGatesTimeStrategy(t *testing.T) {
	h := newHarness()
	engine := newTestEngine(t, h, TimeStrategy{Interval: 0}, 10)

	// Interval trigger fires but $6 of fees cannot cover 3x $10 gas.
	h.creditNextCollect(3, 3)
	decision, _, err := engine.Cycle(context.Background(), big.NewInt(42), false)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if decision.ShouldCompound {
		t.Fatalf("gas floor must gate a time trigger: %s", decision.Reason)
	}
	if len(h.submits) != 1 {
		t.Fatalf("only the collect should broadcast, got %d", len(h.submits))
	}
	if !decision.EstimatedGasCost.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("gas cost should surface in the decision: %s", decision.EstimatedGasCost)
	}
}

func TestDryRunBroadcastsNothing(t *testing.T) {
	h := newHarness()
	h.balances[token0] = big.NewInt(1_000_000)
	h.balances[token1] = big.NewInt(1_000_000)
	engine := newTestEngine(t, h, TimeStrategy{Interval: 0}, 0)

	decision, res, err := engine.Cycle(context.Background(), big.NewInt(42), true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !decision.ShouldCompound {
		t.Fatalf("zero-cost time trigger should decide to compound: %s", decision.Reason)
	}
	if res.Plan == nil {
		t.Fatal("dry run should still build the reinvest plan")
	}
	if res.Compounded {
		t.Fatal("dry run must not mark a compound")
	}
	if len(h.submits) != 0 || len(h.approvals) != 0 {
		t.Fatalf("dry run broadcast something: %d submits, %d approvals", len(h.submits), len(h.approvals))
	}
}

func TestCompoundApprovesBothCurrencies(t *testing.T) {
	h := newHarness()
	engine := newTestEngine(t, h, DollarStrategy{ThresholdUSD: decimal.NewFromInt(1)}, 0)

	h.creditNextCollect(500_000, 500_000)
	_, res, err := engine.Cycle(context.Background(), big.NewInt(42), false)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !res.Compounded {
		t.Fatal("expected a compound")
	}
	if len(h.approvals) != 2 {
		t.Fatalf("both currencies need allowance, got %d approvals", len(h.approvals))
	}
	if h.approvals[0].token != token0 || h.approvals[1].token != token1 {
		t.Fatalf("unexpected approval order: %v", h.approvals)
	}
	for _, a := range h.approvals {
		if a.amount.Cmp(big.NewInt(500_000)) != 0 {
			t.Fatalf("approval should cover the full wallet balance: %s", a.amount)
		}
	}
}
