package liquidity

import (
	"fmt"
	"math/big"
)

var (
	// Q96 is the fixed-point scale of sqrt prices.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// MaxUint128 caps any computed liquidity magnitude.
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// Side identifies which token funds a single-sided deposit.
type Side int

const (
	Token0Side Side = iota
	Token1Side
)

func (s Side) String() string {
	if s == Token0Side {
		return "token0"
	}
	return "token1"
}

// ForAmounts computes the liquidity a deposit of amount0/amount1 backs
// within [sqrtA, sqrtB] at current price sqrtP. Below the range only
// token0 counts, above it only token1; within, the scarcer side caps the
// result. Rounds down: never promise liquidity the deposit can't back.
func ForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := orderSqrtPrices(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if sqrtP == nil || sqrtP.Sign() <= 0 {
		return nil, fmt.Errorf("current sqrt price must be positive")
	}
	if amount0 == nil {
		amount0 = new(big.Int)
	}
	if amount1 == nil {
		amount1 = new(big.Int)
	}
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return nil, fmt.Errorf("amounts must be non-negative")
	}

	var liq *big.Int
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		liq = liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) < 0:
		liq0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		liq1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		liq = liq0
		if liq1.Cmp(liq0) < 0 {
			liq = liq1
		}
	default:
		liq = liquidityForAmount1(sqrtA, sqrtB, amount1)
	}

	if liq.Cmp(MaxUint128) > 0 {
		liq = new(big.Int).Set(MaxUint128)
	}
	return liq, nil
}

// Amounts computes the token amounts a liquidity magnitude represents
// within [sqrtA, sqrtB] at current price sqrtP. Rounds down, so removing
// liquidity predicts no more than the pool will actually return.
func Amounts(liq, sqrtP, sqrtA, sqrtB *big.Int) (amount0, amount1 *big.Int, err error) {
	sqrtA, sqrtB, err = orderSqrtPrices(sqrtA, sqrtB)
	if err != nil {
		return nil, nil, err
	}
	if liq == nil || liq.Sign() < 0 {
		return nil, nil, fmt.Errorf("liquidity must be non-negative")
	}
	if sqrtP == nil || sqrtP.Sign() <= 0 {
		return nil, nil, fmt.Errorf("current sqrt price must be positive")
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return amount0ForLiquidity(sqrtA, sqrtB, liq), new(big.Int), nil
	case sqrtP.Cmp(sqrtB) < 0:
		return amount0ForLiquidity(sqrtP, sqrtB, liq), amount1ForLiquidity(sqrtA, sqrtP, liq), nil
	default:
		return new(big.Int), amount1ForLiquidity(sqrtA, sqrtB, liq), nil
	}
}

// ValidateSingleSided checks that a range sits entirely on the correct
// side of the current price for a one-token deposit. A token0-only
// deposit needs the whole range at or above current price, token1-only
// at or below; otherwise the mint would demand the other token.
func ValidateSingleSided(side Side, sqrtP, sqrtA, sqrtB *big.Int) error {
	sqrtA, sqrtB, err := orderSqrtPrices(sqrtA, sqrtB)
	if err != nil {
		return err
	}
	switch side {
	case Token0Side:
		if sqrtP.Cmp(sqrtA) > 0 {
			return fmt.Errorf("token0-only range must sit above current price")
		}
	case Token1Side:
		if sqrtP.Cmp(sqrtB) < 0 {
			return fmt.Errorf("token1-only range must sit below current price")
		}
	default:
		return fmt.Errorf("unknown deposit side %d", side)
	}
	return nil
}

// liquidityForAmount0 returns amount0 * (sqrtA*sqrtB/Q96) / (sqrtB-sqrtA).
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Div(intermediate, Q96)
	num := new(big.Int).Mul(amount0, intermediate)
	return num.Div(num, new(big.Int).Sub(sqrtB, sqrtA))
}

// liquidityForAmount1 returns amount1 * Q96 / (sqrtB-sqrtA).
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	num := new(big.Int).Mul(amount1, Q96)
	return num.Div(num, new(big.Int).Sub(sqrtB, sqrtA))
}

// amount0ForLiquidity returns liq * Q96 * (sqrtB-sqrtA) / sqrtB / sqrtA.
func amount0ForLiquidity(sqrtA, sqrtB, liq *big.Int) *big.Int {
	num := new(big.Int).Lsh(liq, 96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))
	num.Div(num, sqrtB)
	return num.Div(num, sqrtA)
}

// amount1ForLiquidity returns liq * (sqrtB-sqrtA) / Q96.
func amount1ForLiquidity(sqrtA, sqrtB, liq *big.Int) *big.Int {
	num := new(big.Int).Mul(liq, new(big.Int).Sub(sqrtB, sqrtA))
	return num.Div(num, Q96)
}

func orderSqrtPrices(sqrtA, sqrtB *big.Int) (*big.Int, *big.Int, error) {
	if sqrtA == nil || sqrtB == nil || sqrtA.Sign() <= 0 || sqrtB.Sign() <= 0 {
		return nil, nil, fmt.Errorf("range sqrt prices must be positive")
	}
	if sqrtA.Cmp(sqrtB) == 0 {
		return nil, nil, fmt.Errorf("range sqrt prices must differ")
	}
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	return sqrtA, sqrtB, nil
}
