package actions

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rangeKeeper/internal/position"
)

// The constructors below encode the valid opcode combinations as policy.
// Arbitrary sequences compile fine on-chain right up until the unlock
// callback reverts them, so callers go through these instead of the raw
// Plan methods.

// CollectPlan harvests accrued fees without moving liquidity: a
// zero-amount decrease followed by a take of both currencies.
func CollectPlan(pos position.Position, recipient common.Address) (*Plan, error) {
	p := NewPlan()
	if err := p.DecreaseLiquidity(pos.ID, pos.PoolKey, big.NewInt(0), nil, nil, nil); err != nil {
		return nil, err
	}
	if err := p.TakePair(pos.PoolKey.Currency0, pos.PoolKey.Currency1, recipient); err != nil {
		return nil, err
	}
	return p, nil
}

// ExitPlan removes all liquidity, burns the position token, and takes
// both currencies to the recipient.
func ExitPlan(pos position.Position, amount0Min, amount1Min *big.Int, recipient common.Address) (*Plan, error) {
	p := NewPlan()
	if err := p.DecreaseLiquidity(pos.ID, pos.PoolKey, pos.Liquidity, amount0Min, amount1Min, nil); err != nil {
		return nil, err
	}
	if err := p.BurnPosition(pos.ID, pos.PoolKey, nil, nil, nil); err != nil {
		return nil, err
	}
	if err := p.TakePair(pos.PoolKey.Currency0, pos.PoolKey.Currency1, recipient); err != nil {
		return nil, err
	}
	return p, nil
}

// MintPlan opens a new position and settles the deposit.
func MintPlan(key position.PoolKey, tickLower, tickUpper int32, liq, amount0Max, amount1Max *big.Int, owner common.Address) (*Plan, error) {
	p := NewPlan()
	if err := p.MintPosition(key, tickLower, tickUpper, liq, amount0Max, amount1Max, owner, nil); err != nil {
		return nil, err
	}
	if err := p.SettlePair(key.Currency0, key.Currency1); err != nil {
		return nil, err
	}
	return p, nil
}

// IncreasePlan adds liquidity to an existing position and settles it.
func IncreasePlan(pos position.Position, liq, amount0Max, amount1Max *big.Int) (*Plan, error) {
	p := NewPlan()
	if err := p.IncreaseLiquidity(pos.ID, pos.PoolKey, liq, amount0Max, amount1Max, nil); err != nil {
		return nil, err
	}
	if err := p.SettlePair(pos.PoolKey.Currency0, pos.PoolKey.Currency1); err != nil {
		return nil, err
	}
	return p, nil
}

// ReinvestPlan turns wallet-held fees back into position liquidity.
// Hooked pools must avoid SETTLE_PAIR: its fixed accounting path fights
// hook-side fee adjustment and reverts, so the batch closes each
// currency instead. Hookless pools settle the pair then close both
// sides, sweeping any dust back to the owner.
func ReinvestPlan(pos position.Position, liq, amount0Max, amount1Max *big.Int) (*Plan, error) {
	p := NewPlan()
	if err := p.DecreaseLiquidity(pos.ID, pos.PoolKey, big.NewInt(0), nil, nil, nil); err != nil {
		return nil, err
	}
	if err := p.IncreaseLiquidity(pos.ID, pos.PoolKey, liq, amount0Max, amount1Max, nil); err != nil {
		return nil, err
	}
	if !pos.PoolKey.HasHook() {
		if err := p.SettlePair(pos.PoolKey.Currency0, pos.PoolKey.Currency1); err != nil {
			return nil, err
		}
	}
	if err := p.CloseCurrency(pos.PoolKey.Currency0); err != nil {
		return nil, err
	}
	if err := p.CloseCurrency(pos.PoolKey.Currency1); err != nil {
		return nil, err
	}
	return p, nil
}
