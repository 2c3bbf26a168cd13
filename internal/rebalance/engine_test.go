package rebalance

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rangeKeeper/internal/actions"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/position"
	"rangeKeeper/internal/tickmath"
)

type fakeReader struct {
	pos   position.Position
	state position.PoolState

	posErr   error
	stateErr error
}

func (f *fakeReader) Position(context.Context, *big.Int) (position.Position, error) {
	return f.pos, f.posErr
}

func (f *fakeReader) PoolState(context.Context, position.PoolKey) (position.PoolState, error) {
	return f.state, f.stateErr
}

type fakeBalances struct {
	balances map[common.Address]*big.Int
}

func (f *fakeBalances) TokenBalance(_ context.Context, token, _ common.Address) (*big.Int, error) {
	if b, ok := f.balances[token]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

type fakeSubmitter struct {
	submitted []*actions.Plan
	failAt    int // 1-based index of the submit that fails, 0 = never
	err       error
}

func (f *fakeSubmitter) Submit(_ context.Context, plan *actions.Plan, _ time.Time) (common.Hash, error) {
	f.submitted = append(f.submitted, plan)
	if f.failAt > 0 && len(f.submitted) == f.failAt {
		return common.Hash{}, f.err
	}
	return common.HexToHash("0x1234"), nil
}

func newTestEngine(reader *fakeReader, submitter *fakeSubmitter) *Engine {
	return NewEngine(reader, &fakeBalances{}, submitter, common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"), nil)
}

func testReader(t *testing.T) *fakeReader {
	t.Helper()
	sqrtPrice, err := tickmath.SqrtPriceAtTick(0)
	if err != nil {
		t.Fatalf("sqrt price: %v", err)
	}
	key := position.PoolKey{
		Currency0:   common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Currency1:   common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Fee:         3000,
		TickSpacing: 60,
	}
	return &fakeReader{
		pos: position.Position{
			ID:        big.NewInt(7),
			PoolKey:   key,
			TickLower: -1200,
			TickUpper: 1200,
			Liquidity: big.NewInt(1_000_000_000),
		},
		state: position.PoolState{SqrtPriceX96: sqrtPrice, Tick: 0},
	}
}

func TestRunComputesSymmetricAlignedRange(t *testing.T) {
	reader := testReader(t)
	submitter := &fakeSubmitter{}
	engine := newTestEngine(reader, submitter)

	res, err := engine.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10, DryRun: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.NewTickLower >= 0 || res.NewTickUpper <= 0 {
		t.Fatalf("band must straddle current tick: [%d, %d]", res.NewTickLower, res.NewTickUpper)
	}
	if res.NewTickLower%60 != 0 || res.NewTickUpper%60 != 0 {
		t.Fatalf("band must align to spacing: [%d, %d]", res.NewTickLower, res.NewTickUpper)
	}
	// Outward alignment: the band covers at least the requested width.
	half := tickmath.WidthForPercent(10)
	if res.NewTickLower > -half || res.NewTickUpper < half {
		t.Fatalf("band narrower than requested: [%d, %d] vs half-width %d", res.NewTickLower, res.NewTickUpper, half)
	}
}

func TestDryRunParity(t *testing.T) {
	reader := testReader(t)

	dry := newTestEngine(reader, &fakeSubmitter{})
	dryRes, err := dry.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10, DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}

	liveSubmitter := &fakeSubmitter{}
	live := newTestEngine(reader, liveSubmitter)
	liveRes, err := live.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10})
	if err != nil {
		t.Fatalf("live run: %v", err)
	}

	if dryRes.NewTickLower != liveRes.NewTickLower || dryRes.NewTickUpper != liveRes.NewTickUpper {
		t.Fatalf("dry and live ranges differ")
	}
	if dryRes.NewLiquidity.Cmp(liveRes.NewLiquidity) != 0 {
		t.Fatalf("dry and live liquidity differ")
	}

	deadline := big.NewInt(2_000_000_000)
	dryExit, err := dryRes.ExitPlan.Encode(deadline)
	if err != nil {
		t.Fatalf("encode dry exit: %v", err)
	}
	liveExit, err := liveRes.ExitPlan.Encode(deadline)
	if err != nil {
		t.Fatalf("encode live exit: %v", err)
	}
	if string(dryExit) != string(liveExit) {
		t.Fatalf("dry and live exit plans differ")
	}

	if len(liveSubmitter.submitted) != 2 {
		t.Fatalf("live run must submit remove then add, got %d submissions", len(liveSubmitter.submitted))
	}
}

func TestDryRunBroadcastsNothing(t *testing.T) {
	reader := testReader(t)
	submitter := &fakeSubmitter{}
	engine := newTestEngine(reader, submitter)

	if _, err := engine.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10, DryRun: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(submitter.submitted) != 0 {
		t.Fatalf("dry run submitted %d plans", len(submitter.submitted))
	}
}

func TestRemoveFailureIsFatalNotPartial(t *testing.T) {
	reader := testReader(t)
	submitter := &fakeSubmitter{failAt: 1, err: errors.New("revert")}
	engine := newTestEngine(reader, submitter)

	_, err := engine.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10})
	if err == nil {
		t.Fatalf("expected failure")
	}
	var partial *model.PartialPipelineFailure
	if errors.As(err, &partial) {
		t.Fatalf("remove failure must not be a partial pipeline failure")
	}
}

func TestAddFailureIsPartialPipelineFailure(t *testing.T) {
	reader := testReader(t)
	submitter := &fakeSubmitter{failAt: 2, err: errors.New("revert")}
	engine := newTestEngine(reader, submitter)

	_, err := engine.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10})
	if err == nil {
		t.Fatalf("expected failure")
	}
	var partial *model.PartialPipelineFailure
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialPipelineFailure, got %T: %v", err, err)
	}
	if partial.RemoveTxHash == (common.Hash{}) {
		t.Fatalf("partial failure must carry the remove tx hash")
	}
	if partial.Amount0 == nil || partial.Amount1 == nil {
		t.Fatalf("partial failure must carry the withdrawn amounts")
	}
}

func TestRetryAddUsesWalletBalances(t *testing.T) {
	reader := testReader(t)
	key := reader.pos.PoolKey
	balances := &fakeBalances{balances: map[common.Address]*big.Int{
		key.Currency0: big.NewInt(500_000),
		key.Currency1: big.NewInt(600_000),
	}}
	submitter := &fakeSubmitter{}
	engine := NewEngine(reader, balances, submitter, common.HexToAddress("0xdd"), nil)

	res, err := engine.RetryAdd(context.Background(), key, -600, 600, Options{})
	if err != nil {
		t.Fatalf("retry add: %v", err)
	}
	if res.Amount0.Cmp(big.NewInt(500_000)) != 0 || res.Amount1.Cmp(big.NewInt(600_000)) != 0 {
		t.Fatalf("retry must size from wallet balances: %s / %s", res.Amount0, res.Amount1)
	}
	if len(submitter.submitted) != 1 {
		t.Fatalf("retry add must submit exactly the add plan")
	}
	if res.NewLiquidity.Sign() <= 0 {
		t.Fatalf("retry add computed no liquidity")
	}
}

func TestRunRejectsZeroLiquidityPosition(t *testing.T) {
	reader := testReader(t)
	reader.pos.Liquidity = new(big.Int)
	engine := newTestEngine(reader, &fakeSubmitter{})

	_, err := engine.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 10})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRunRejectsBadWidth(t *testing.T) {
	engine := newTestEngine(testReader(t), &fakeSubmitter{})
	if _, err := engine.Run(context.Background(), big.NewInt(7), Options{WidthPercent: 0}); err == nil {
		t.Fatalf("zero width must fail")
	}
}
