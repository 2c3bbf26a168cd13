package actions

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/position"
)

func testPoolKey(hooked bool) position.PoolKey {
	key := position.PoolKey{
		Currency0:   common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Currency1:   common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Fee:         3000,
		TickSpacing: 60,
	}
	if hooked {
		key.Hooks = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	}
	return key
}

func testPosition(hooked bool) position.Position {
	return position.Position{
		ID:        big.NewInt(42),
		PoolKey:   testPoolKey(hooked),
		TickLower: -600,
		TickUpper: 600,
		Liquidity: big.NewInt(1_000_000),
		Owner:     common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
	}
}

// decodeBatch unwraps modifyLiquidities calldata back into opcodes and
// per-action param blobs.
func decodeBatch(t *testing.T, calldata []byte) ([]byte, [][]byte) {
	t.Helper()

	pmABI, err := position.PositionManagerABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	method := pmABI.Methods["modifyLiquidities"]
	if !bytes.Equal(calldata[:4], method.ID) {
		t.Fatalf("selector mismatch")
	}
	outer, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		t.Fatalf("unpack outer: %v", err)
	}
	unlockData := outer[0].([]byte)

	inner, err := unlockArguments().Unpack(unlockData)
	if err != nil {
		t.Fatalf("unpack unlock data: %v", err)
	}
	return inner[0].([]byte), inner[1].([][]byte)
}

func TestCollectPlanEncoding(t *testing.T) {
	pos := testPosition(false)
	recipient := pos.Owner

	plan, err := CollectPlan(pos, recipient)
	if err != nil {
		t.Fatalf("collect plan: %v", err)
	}

	calldata, err := plan.Encode(big.NewInt(1_700_000_000))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	ops, params := decodeBatch(t, calldata)
	if !bytes.Equal(ops, []byte{OpDecreaseLiquidity, OpTakePair}) {
		t.Fatalf("ops mismatch: %x", ops)
	}
	if len(params) != 2 {
		t.Fatalf("params count: %d", len(params))
	}

	// The decrease must carry liquidity 0 (collect idiom).
	values, err := decreaseArguments().Unpack(params[0])
	if err != nil {
		t.Fatalf("unpack decrease: %v", err)
	}
	if values[0].(*big.Int).Cmp(pos.ID) != 0 {
		t.Fatalf("token id mismatch")
	}
	if values[1].(*big.Int).Sign() != 0 {
		t.Fatalf("collect must decrease zero liquidity")
	}

	takeValues, err := pairRecipientArguments().Unpack(params[1])
	if err != nil {
		t.Fatalf("unpack take: %v", err)
	}
	if takeValues[2].(common.Address) != recipient {
		t.Fatalf("take recipient mismatch")
	}
}

func TestExitPlanOrder(t *testing.T) {
	plan, err := ExitPlan(testPosition(false), big.NewInt(1), big.NewInt(1), common.HexToAddress("0x1"))
	if err != nil {
		t.Fatalf("exit plan: %v", err)
	}
	calldata, err := plan.Encode(big.NewInt(1_700_000_000))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ops, _ := decodeBatch(t, calldata)
	if !bytes.Equal(ops, []byte{OpDecreaseLiquidity, OpBurnPosition, OpTakePair}) {
		t.Fatalf("exit ops mismatch: %x", ops)
	}
}

func TestMintPlanSettlesPair(t *testing.T) {
	key := testPoolKey(false)
	plan, err := MintPlan(key, -120, 120, big.NewInt(5000), big.NewInt(100), big.NewInt(200), common.HexToAddress("0x2"))
	if err != nil {
		t.Fatalf("mint plan: %v", err)
	}
	calldata, err := plan.Encode(big.NewInt(1_700_000_000))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ops, params := decodeBatch(t, calldata)
	if !bytes.Equal(ops, []byte{OpMintPosition, OpSettlePair}) {
		t.Fatalf("mint ops mismatch: %x", ops)
	}

	values, err := mintArguments().Unpack(params[0])
	if err != nil {
		t.Fatalf("unpack mint: %v", err)
	}
	if values[1].(*big.Int).Int64() != -120 || values[2].(*big.Int).Int64() != 120 {
		t.Fatalf("mint ticks mismatch")
	}
}

func TestReinvestPlanHookPolicy(t *testing.T) {
	hookless, err := ReinvestPlan(testPosition(false), big.NewInt(10), nil, nil)
	if err != nil {
		t.Fatalf("hookless reinvest: %v", err)
	}
	calldata, err := hookless.Encode(big.NewInt(1_700_000_000))
	if err != nil {
		t.Fatalf("encode hookless: %v", err)
	}
	ops, _ := decodeBatch(t, calldata)
	if !bytes.Equal(ops, []byte{OpDecreaseLiquidity, OpIncreaseLiquidity, OpSettlePair, OpCloseCurrency, OpCloseCurrency}) {
		t.Fatalf("hookless reinvest ops mismatch: %x", ops)
	}

	hooked, err := ReinvestPlan(testPosition(true), big.NewInt(10), nil, nil)
	if err != nil {
		t.Fatalf("hooked reinvest: %v", err)
	}
	calldata, err = hooked.Encode(big.NewInt(1_700_000_000))
	if err != nil {
		t.Fatalf("encode hooked: %v", err)
	}
	ops, _ = decodeBatch(t, calldata)
	for _, op := range ops {
		if op == OpSettlePair {
			t.Fatalf("hooked pool must not use SETTLE_PAIR")
		}
	}
	if !bytes.Equal(ops, []byte{OpDecreaseLiquidity, OpIncreaseLiquidity, OpCloseCurrency, OpCloseCurrency}) {
		t.Fatalf("hooked reinvest ops mismatch: %x", ops)
	}
}

func TestEncodeRejectsUnsettledCurrency(t *testing.T) {
	pos := testPosition(false)
	p := NewPlan()
	if err := p.DecreaseLiquidity(pos.ID, pos.PoolKey, pos.Liquidity, nil, nil, nil); err != nil {
		t.Fatalf("decrease: %v", err)
	}

	_, err := p.Encode(big.NewInt(1_700_000_000))
	if err == nil {
		t.Fatalf("unsettled batch must not encode")
	}
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestEncodeRejectsEmptyPlanAndBadDeadline(t *testing.T) {
	if _, err := NewPlan().Encode(big.NewInt(1)); err == nil {
		t.Fatalf("empty plan must not encode")
	}

	plan, err := CollectPlan(testPosition(false), common.HexToAddress("0x1"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := plan.Encode(nil); err == nil {
		t.Fatalf("nil deadline must fail")
	}
	if _, err := plan.Encode(big.NewInt(0)); err == nil {
		t.Fatalf("zero deadline must fail")
	}
}
