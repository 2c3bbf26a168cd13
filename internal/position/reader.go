package position

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

// Caller performs read-only contract calls. Reads are idempotent; the
// implementation is expected to retry transient failures itself.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// StateReader resolves positions and pool state from chain.
type StateReader struct {
	caller          Caller
	positionManager common.Address
	stateView       common.Address
	logger          *zap.Logger
}

// NewStateReader builds a StateReader against the given contracts.
func NewStateReader(caller Caller, positionManager, stateView common.Address, logger *zap.Logger) *StateReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateReader{
		caller:          caller,
		positionManager: positionManager,
		stateView:       stateView,
		logger:          logger,
	}
}

// Position loads a position's pool key, range, liquidity, and owner.
func (r *StateReader) Position(ctx context.Context, id *big.Int) (Position, error) {
	if id == nil || id.Sign() <= 0 {
		return Position{}, model.NewValidationError("position", "id must be positive")
	}

	pmABI, err := PositionManagerABI()
	if err != nil {
		return Position{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := r.call(ctx, r.positionManager, pmABI, "getPoolAndPositionInfo", id)
	if err != nil {
		return Position{}, err
	}
	if len(values) != 2 {
		return Position{}, &model.ChainReadError{Op: "getPoolAndPositionInfo", Err: fmt.Errorf("unexpected output count %d", len(values))}
	}

	key, err := decodePoolKeyValue(values[0])
	if err != nil {
		return Position{}, &model.ChainReadError{Op: "getPoolAndPositionInfo", Err: err}
	}

	rawInfo, err := asBigInt(values[1])
	if err != nil {
		return Position{}, &model.ChainReadError{Op: "getPoolAndPositionInfo", Err: err}
	}
	info, err := DecodePackedInfo(rawInfo)
	if err != nil {
		return Position{}, &model.ChainReadError{Op: "getPoolAndPositionInfo", Err: err}
	}

	liq, err := r.Liquidity(ctx, id)
	if err != nil {
		return Position{}, err
	}

	owner, err := r.OwnerOf(ctx, id)
	if err != nil {
		return Position{}, err
	}

	pos := Position{
		ID:        new(big.Int).Set(id),
		PoolKey:   key,
		TickLower: info.TickLower,
		TickUpper: info.TickUpper,
		Liquidity: liq,
		Owner:     owner,
	}

	r.logger.Debug("position loaded",
		zap.String("id", id.String()),
		zap.Int32("tick_lower", pos.TickLower),
		zap.Int32("tick_upper", pos.TickUpper),
		zap.String("liquidity", liq.String()),
	)
	return pos, nil
}

// Liquidity returns the position's current liquidity.
func (r *StateReader) Liquidity(ctx context.Context, id *big.Int) (*big.Int, error) {
	pmABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := r.call(ctx, r.positionManager, pmABI, "getPositionLiquidity", id)
	if err != nil {
		return nil, err
	}
	liq, err := asBigInt(values[0])
	if err != nil {
		return nil, &model.ChainReadError{Op: "getPositionLiquidity", Err: err}
	}
	return liq, nil
}

// OwnerOf returns the position token's owner.
func (r *StateReader) OwnerOf(ctx context.Context, id *big.Int) (common.Address, error) {
	pmABI, err := PositionManagerABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := r.call(ctx, r.positionManager, pmABI, "ownerOf", id)
	if err != nil {
		return common.Address{}, err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, &model.ChainReadError{Op: "ownerOf", Err: err}
	}
	return owner, nil
}

// PoolState reads the pool's slot0 through the state view.
func (r *StateReader) PoolState(ctx context.Context, key PoolKey) (PoolState, error) {
	poolID, err := key.ID()
	if err != nil {
		return PoolState{}, err
	}

	svABI, err := StateViewABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse state view abi: %w", err)
	}
	values, err := r.call(ctx, r.stateView, svABI, "getSlot0", poolID)
	if err != nil {
		return PoolState{}, err
	}
	if len(values) != 4 {
		return PoolState{}, &model.ChainReadError{Op: "getSlot0", Err: fmt.Errorf("unexpected output count %d", len(values))}
	}

	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, &model.ChainReadError{Op: "getSlot0", Err: err}
	}
	if sqrtPrice.Sign() == 0 {
		return PoolState{}, &model.ChainReadError{Op: "getSlot0", Err: fmt.Errorf("pool not initialized")}
	}

	tickBig, err := asBigInt(values[1])
	if err != nil {
		return PoolState{}, &model.ChainReadError{Op: "getSlot0", Err: err}
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return PoolState{}, &model.ChainReadError{Op: "getSlot0", Err: err}
	}

	lpFee, err := asBigInt(values[3])
	if err != nil {
		return PoolState{}, &model.ChainReadError{Op: "getSlot0", Err: err}
	}

	return PoolState{
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		LPFee:        uint32(lpFee.Uint64()),
	}, nil
}

func (r *StateReader) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, &model.ChainReadError{Op: method, Err: err}
	}
	if len(output) == 0 {
		return nil, &model.ChainReadError{Op: method, Err: fmt.Errorf("empty response, contract may not exist")}
	}

	values, err := contractABI.Unpack(method, output)
	if err != nil {
		return nil, &model.ChainReadError{Op: method, Err: fmt.Errorf("unpack: %w", err)}
	}
	return values, nil
}

func decodePoolKeyValue(value interface{}) (PoolKey, error) {
	key := *abi.ConvertType(value, new(struct {
		Currency0   common.Address `json:"currency0"`
		Currency1   common.Address `json:"currency1"`
		Fee         *big.Int       `json:"fee"`
		TickSpacing *big.Int       `json:"tickSpacing"`
		Hooks       common.Address `json:"hooks"`
	})).(*struct {
		Currency0   common.Address `json:"currency0"`
		Currency1   common.Address `json:"currency1"`
		Fee         *big.Int       `json:"fee"`
		TickSpacing *big.Int       `json:"tickSpacing"`
		Hooks       common.Address `json:"hooks"`
	})

	spacing, err := int24FromBig(key.TickSpacing)
	if err != nil {
		return PoolKey{}, fmt.Errorf("tick spacing: %w", err)
	}
	return PoolKey{
		Currency0:   key.Currency0,
		Currency1:   key.Currency1,
		Fee:         uint32(key.Fee.Uint64()),
		TickSpacing: spacing,
		Hooks:       key.Hooks,
	}, nil
}
