package actions

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/position"
)

// Position manager action opcodes. The values are fixed by the on-chain
// decoder; a wrong opcode reverts the whole batch.
const (
	OpIncreaseLiquidity byte = 0x00
	OpDecreaseLiquidity byte = 0x01
	OpMintPosition      byte = 0x02
	OpBurnPosition      byte = 0x03
	OpSettle            byte = 0x0b
	OpSettlePair        byte = 0x0d
	OpTake              byte = 0x0e
	OpTakePair          byte = 0x11
	OpCloseCurrency     byte = 0x12
	OpSweep             byte = 0x14
)

func opName(op byte) string {
	switch op {
	case OpIncreaseLiquidity:
		return "INCREASE_LIQUIDITY"
	case OpDecreaseLiquidity:
		return "DECREASE_LIQUIDITY"
	case OpMintPosition:
		return "MINT_POSITION"
	case OpBurnPosition:
		return "BURN_POSITION"
	case OpSettle:
		return "SETTLE"
	case OpSettlePair:
		return "SETTLE_PAIR"
	case OpTake:
		return "TAKE"
	case OpTakePair:
		return "TAKE_PAIR"
	case OpCloseCurrency:
		return "CLOSE_CURRENCY"
	case OpSweep:
		return "SWEEP"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02x", op)
	}
}

type step struct {
	op     byte
	params []byte
}

// Plan is an ordered batch of actions plus the per-currency bookkeeping
// the unlock callback enforces: every touched currency must end settled,
// taken, or closed or the whole batch reverts.
type Plan struct {
	steps    []step
	touched  []common.Address
	resolved map[common.Address]bool
}

// NewPlan returns an empty action plan.
func NewPlan() *Plan {
	return &Plan{resolved: make(map[common.Address]bool)}
}

func (p *Plan) touch(currencies ...common.Address) {
	for _, c := range currencies {
		found := false
		for _, existing := range p.touched {
			if existing == c {
				found = true
				break
			}
		}
		if !found {
			p.touched = append(p.touched, c)
		}
	}
}

func (p *Plan) resolve(currencies ...common.Address) {
	for _, c := range currencies {
		p.resolved[c] = true
	}
}

// Len returns the number of actions in the plan.
func (p *Plan) Len() int { return len(p.steps) }

// Ops lists the action names in order, for logging and dry runs.
func (p *Plan) Ops() []string {
	out := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		out = append(out, opName(s.op))
	}
	return out
}

// MintPosition appends a mint of a fresh position.
func (p *Plan) MintPosition(key position.PoolKey, tickLower, tickUpper int32, liq, amount0Max, amount1Max *big.Int, owner common.Address, hookData []byte) error {
	params, err := mintArguments().Pack(
		poolKeyTuple(key),
		big.NewInt(int64(tickLower)),
		big.NewInt(int64(tickUpper)),
		bigOrZero(liq),
		bigOrZero(amount0Max),
		bigOrZero(amount1Max),
		owner,
		bytesOrEmpty(hookData),
	)
	if err != nil {
		return fmt.Errorf("pack mint: %w", err)
	}
	p.steps = append(p.steps, step{op: OpMintPosition, params: params})
	p.touch(key.Currency0, key.Currency1)
	return nil
}

// IncreaseLiquidity appends a liquidity increase on an existing position.
func (p *Plan) IncreaseLiquidity(tokenID *big.Int, key position.PoolKey, liq, amount0Max, amount1Max *big.Int, hookData []byte) error {
	params, err := increaseArguments().Pack(
		bigOrZero(tokenID),
		bigOrZero(liq),
		bigOrZero(amount0Max),
		bigOrZero(amount1Max),
		bytesOrEmpty(hookData),
	)
	if err != nil {
		return fmt.Errorf("pack increase: %w", err)
	}
	p.steps = append(p.steps, step{op: OpIncreaseLiquidity, params: params})
	p.touch(key.Currency0, key.Currency1)
	return nil
}

// DecreaseLiquidity appends a liquidity decrease. A zero amount is the
// fee-collect idiom: it moves nothing but realizes accrued fees as
// currency deltas.
func (p *Plan) DecreaseLiquidity(tokenID *big.Int, key position.PoolKey, liq, amount0Min, amount1Min *big.Int, hookData []byte) error {
	params, err := decreaseArguments().Pack(
		bigOrZero(tokenID),
		bigOrZero(liq),
		bigOrZero(amount0Min),
		bigOrZero(amount1Min),
		bytesOrEmpty(hookData),
	)
	if err != nil {
		return fmt.Errorf("pack decrease: %w", err)
	}
	p.steps = append(p.steps, step{op: OpDecreaseLiquidity, params: params})
	p.touch(key.Currency0, key.Currency1)
	return nil
}

// BurnPosition appends a burn. The position's liquidity must already be
// zero or be removed within the same batch.
func (p *Plan) BurnPosition(tokenID *big.Int, key position.PoolKey, amount0Min, amount1Min *big.Int, hookData []byte) error {
	params, err := burnArguments().Pack(
		bigOrZero(tokenID),
		bigOrZero(amount0Min),
		bigOrZero(amount1Min),
		bytesOrEmpty(hookData),
	)
	if err != nil {
		return fmt.Errorf("pack burn: %w", err)
	}
	p.steps = append(p.steps, step{op: OpBurnPosition, params: params})
	p.touch(key.Currency0, key.Currency1)
	return nil
}

// SettlePair appends a settle of both currencies from the caller.
func (p *Plan) SettlePair(currency0, currency1 common.Address) error {
	params, err := pairArguments().Pack(currency0, currency1)
	if err != nil {
		return fmt.Errorf("pack settle pair: %w", err)
	}
	p.steps = append(p.steps, step{op: OpSettlePair, params: params})
	p.resolve(currency0, currency1)
	return nil
}

// TakePair appends a take of both currencies to the recipient.
func (p *Plan) TakePair(currency0, currency1, recipient common.Address) error {
	params, err := pairRecipientArguments().Pack(currency0, currency1, recipient)
	if err != nil {
		return fmt.Errorf("pack take pair: %w", err)
	}
	p.steps = append(p.steps, step{op: OpTakePair, params: params})
	p.resolve(currency0, currency1)
	return nil
}

// CloseCurrency appends a close, which settles or takes whichever way
// the currency's net delta points. This is the only safe terminal action
// on pools whose hooks adjust fees during the batch.
func (p *Plan) CloseCurrency(currency common.Address) error {
	params, err := currencyArguments().Pack(currency)
	if err != nil {
		return fmt.Errorf("pack close: %w", err)
	}
	p.steps = append(p.steps, step{op: OpCloseCurrency, params: params})
	p.resolve(currency)
	return nil
}

// Sweep appends a dust sweep of the currency to the recipient.
func (p *Plan) Sweep(currency, recipient common.Address) error {
	params, err := currencyRecipientArguments().Pack(currency, recipient)
	if err != nil {
		return fmt.Errorf("pack sweep: %w", err)
	}
	p.steps = append(p.steps, step{op: OpSweep, params: params})
	p.resolve(currency)
	return nil
}

// Encode serializes the batch into modifyLiquidities calldata. It fails
// if any touched currency was left unsettled, since the on-chain unlock
// callback would revert the batch anyway.
func (p *Plan) Encode(deadline *big.Int) ([]byte, error) {
	if len(p.steps) == 0 {
		return nil, model.NewValidationError("plan", "empty action batch")
	}
	for _, c := range p.touched {
		if !p.resolved[c] {
			return nil, model.NewValidationError("plan", "currency %s left unsettled", c.Hex())
		}
	}
	if deadline == nil || deadline.Sign() <= 0 {
		return nil, model.NewValidationError("plan", "deadline must be positive")
	}

	ops := make([]byte, 0, len(p.steps))
	params := make([][]byte, 0, len(p.steps))
	for _, s := range p.steps {
		ops = append(ops, s.op)
		params = append(params, s.params)
	}

	unlockData, err := unlockArguments().Pack(ops, params)
	if err != nil {
		return nil, fmt.Errorf("pack unlock data: %w", err)
	}

	pmABI, err := position.PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	calldata, err := pmABI.Pack("modifyLiquidities", unlockData, deadline)
	if err != nil {
		return nil, fmt.Errorf("pack modifyLiquidities: %w", err)
	}
	return calldata, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bytesOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func poolKeyTuple(key position.PoolKey) struct {
	Currency0   common.Address `json:"currency0"`
	Currency1   common.Address `json:"currency1"`
	Fee         *big.Int       `json:"fee"`
	TickSpacing *big.Int       `json:"tickSpacing"`
	Hooks       common.Address `json:"hooks"`
} {
	return struct {
		Currency0   common.Address `json:"currency0"`
		Currency1   common.Address `json:"currency1"`
		Fee         *big.Int       `json:"fee"`
		TickSpacing *big.Int       `json:"tickSpacing"`
		Hooks       common.Address `json:"hooks"`
	}{
		Currency0:   key.Currency0,
		Currency1:   key.Currency1,
		Fee:         new(big.Int).SetUint64(uint64(key.Fee)),
		TickSpacing: big.NewInt(int64(key.TickSpacing)),
		Hooks:       key.Hooks,
	}
}

// Per-action parameter schemas, built once. These mirror the on-chain
// decoder byte-for-byte.
var (
	argsOnce sync.Once

	mintArgs              abi.Arguments
	increaseArgs          abi.Arguments
	decreaseArgs          abi.Arguments
	burnArgs              abi.Arguments
	pairArgs              abi.Arguments
	pairRecipientArgs     abi.Arguments
	currencyArgs          abi.Arguments
	currencyRecipientArgs abi.Arguments
	unlockArgs            abi.Arguments
)

func buildArguments() {
	poolKeyComponents := []abi.ArgumentMarshaling{
		{Name: "currency0", Type: "address"},
		{Name: "currency1", Type: "address"},
		{Name: "fee", Type: "uint24"},
		{Name: "tickSpacing", Type: "int24"},
		{Name: "hooks", Type: "address"},
	}

	poolKeyType, _ := abi.NewType("tuple", "", poolKeyComponents)
	addressType, _ := abi.NewType("address", "", nil)
	int24Type, _ := abi.NewType("int24", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	uint128Type, _ := abi.NewType("uint128", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)
	bytesArrayType, _ := abi.NewType("bytes[]", "", nil)

	mintArgs = abi.Arguments{
		{Type: poolKeyType}, {Type: int24Type}, {Type: int24Type},
		{Type: uint256Type}, {Type: uint128Type}, {Type: uint128Type},
		{Type: addressType}, {Type: bytesType},
	}
	increaseArgs = abi.Arguments{
		{Type: uint256Type}, {Type: uint256Type},
		{Type: uint128Type}, {Type: uint128Type}, {Type: bytesType},
	}
	decreaseArgs = abi.Arguments{
		{Type: uint256Type}, {Type: uint256Type},
		{Type: uint128Type}, {Type: uint128Type}, {Type: bytesType},
	}
	burnArgs = abi.Arguments{
		{Type: uint256Type}, {Type: uint128Type}, {Type: uint128Type}, {Type: bytesType},
	}
	pairArgs = abi.Arguments{{Type: addressType}, {Type: addressType}}
	pairRecipientArgs = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: addressType}}
	currencyArgs = abi.Arguments{{Type: addressType}}
	currencyRecipientArgs = abi.Arguments{{Type: addressType}, {Type: addressType}}
	unlockArgs = abi.Arguments{{Type: bytesType}, {Type: bytesArrayType}}
}

func mintArguments() abi.Arguments              { argsOnce.Do(buildArguments); return mintArgs }
func increaseArguments() abi.Arguments          { argsOnce.Do(buildArguments); return increaseArgs }
func decreaseArguments() abi.Arguments          { argsOnce.Do(buildArguments); return decreaseArgs }
func burnArguments() abi.Arguments              { argsOnce.Do(buildArguments); return burnArgs }
func pairArguments() abi.Arguments              { argsOnce.Do(buildArguments); return pairArgs }
func pairRecipientArguments() abi.Arguments     { argsOnce.Do(buildArguments); return pairRecipientArgs }
func currencyArguments() abi.Arguments          { argsOnce.Do(buildArguments); return currencyArgs }
func currencyRecipientArguments() abi.Arguments { argsOnce.Do(buildArguments); return currencyRecipientArgs }
func unlockArguments() abi.Arguments            { argsOnce.Do(buildArguments); return unlockArgs }
