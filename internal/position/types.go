package position

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"rangeKeeper/internal/model"
)

// PoolKey identifies a pool. Field order and packing must match the
// on-chain struct exactly: its keccak hash is the pool identifier.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

var (
	poolKeyArgs     abi.Arguments
	poolKeyArgsOnce sync.Once
)

func poolKeyArguments() abi.Arguments {
	poolKeyArgsOnce.Do(func() {
		addressType, _ := abi.NewType("address", "", nil)
		uint24Type, _ := abi.NewType("uint24", "", nil)
		int24Type, _ := abi.NewType("int24", "", nil)
		poolKeyArgs = abi.Arguments{
			{Type: addressType},
			{Type: addressType},
			{Type: uint24Type},
			{Type: int24Type},
			{Type: addressType},
		}
	})
	return poolKeyArgs
}

// ID returns the keccak256 hash of the ABI-encoded key, the canonical
// 32-byte pool identifier.
func (k PoolKey) ID() ([32]byte, error) {
	encoded, err := poolKeyArguments().Pack(
		k.Currency0,
		k.Currency1,
		new(big.Int).SetUint64(uint64(k.Fee)),
		big.NewInt(int64(k.TickSpacing)),
		k.Hooks,
	)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode pool key: %w", err)
	}
	var id [32]byte
	copy(id[:], crypto.Keccak256(encoded))
	return id, nil
}

// HasHook reports whether the pool carries attached hook logic, which
// changes the settlement sequence a batch may safely use.
func (k PoolKey) HasHook() bool {
	return k.Hooks != (common.Address{})
}

// Validate checks the key's internal consistency.
func (k PoolKey) Validate() error {
	if k.Currency0 == k.Currency1 {
		return model.NewValidationError("poolKey", "currencies must differ")
	}
	if k.TickSpacing <= 0 {
		return model.NewValidationError("poolKey", "tick spacing must be positive, got %d", k.TickSpacing)
	}
	return nil
}

// Position is one liquidity deposit: its pool, range, and magnitude.
type Position struct {
	ID        *big.Int
	PoolKey   PoolKey
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	Owner     common.Address
}

// Validate checks the range invariants against the pool's tick spacing.
func (p Position) Validate() error {
	if p.TickLower >= p.TickUpper {
		return model.NewValidationError("range", "tickLower %d must be below tickUpper %d", p.TickLower, p.TickUpper)
	}
	spacing := p.PoolKey.TickSpacing
	if spacing > 0 && (p.TickLower%spacing != 0 || p.TickUpper%spacing != 0) {
		return model.NewValidationError("range", "ticks [%d, %d] must be multiples of spacing %d", p.TickLower, p.TickUpper, spacing)
	}
	return p.PoolKey.Validate()
}

// InRange reports whether a tick falls inside the position's range,
// lower-inclusive and upper-exclusive.
func (p Position) InRange(currentTick int32) bool {
	return currentTick >= p.TickLower && currentTick < p.TickUpper
}

// PoolState is the mutable pool view: price, tick, and the active fee.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	LPFee        uint32
}
