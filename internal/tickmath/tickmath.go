package tickmath

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Tick bounds from the canonical TickMath library.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtPrice is the sqrt price at MinTick.
	MinSqrtPrice = big.NewInt(4295128739)
	// MaxSqrtPrice is the sqrt price at MaxTick.
	MaxSqrtPrice = mustBig("1461446703485210103287273052203988822378723970342")

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// sqrt(1.0001^-(2^i)) in Q128, i = 0..19. These must match the
	// on-chain library bit-for-bit or downstream liquidity math drifts.
	tickRatios = [20]*big.Int{
		mustHex("fffcb933bd6fad37aa2d162d1a594001"),
		mustHex("fff97272373d413259a46990580e213a"),
		mustHex("fff2e50f5f656932ef12357cf3c7fdcc"),
		mustHex("ffe5caca7e10e4e61c3624eaa0941cd0"),
		mustHex("ffcb9843d60f6159c9db58835c926644"),
		mustHex("ff973b41fa98c081472e6896dfb254c0"),
		mustHex("ff2ea16466c96a3843ec78b326b52861"),
		mustHex("fe5dee046a99a2a811c461f1969c3053"),
		mustHex("fcbe86c7900a88aedcffc83b479aa3a4"),
		mustHex("f987a7253ac413176f2b074cf7815e54"),
		mustHex("f3392b0822b70005940c7a398e4b70f3"),
		mustHex("e7159475a2c29b7443b29c7fa6e889d9"),
		mustHex("d097f3bdfd2022b8845ad8f792aa5825"),
		mustHex("a9f746462d870fdf8a65dc1f90e061e5"),
		mustHex("70d869a156d2a1b890bb3df62baf32f7"),
		mustHex("31be135f97d08fd981231505542fcfa6"),
		mustHex("9aa508b5b7a84e1c677de54f3e99bc9"),
		mustHex("5d6af8dedb81196699c329225ee604"),
		mustHex("2216e584f5fa1ea926041bedfe98"),
		mustHex("48a170391f7dc42444e8fa2"),
	}
)

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("tickmath: bad constant " + s)
	}
	return n
}

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("tickmath: bad constant " + s)
	}
	return n
}

// SqrtPriceAtTick returns sqrt(1.0001^tick) * 2^96 as a Q64.96 value.
// Ported from the protocol's TickMath; the rounding (final round-up on
// the 32-bit truncation) is part of the contract and must be preserved.
func SqrtPriceAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of bounds [%d, %d]", tick, MinTick, MaxTick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(big.Int).Lsh(big.NewInt(1), 128)
	if absTick&1 != 0 {
		ratio.Set(tickRatios[0])
	}
	for i := 1; i < len(tickRatios); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickRatios[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio = new(big.Int).Div(maxUint256, ratio)
	}

	// Q128 -> Q96, rounding up so the result always round-trips through
	// TickAtSqrtPrice.
	rem := new(big.Int).And(ratio, new(big.Int).SetUint64(0xffffffff))
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// TickAtSqrtPrice returns the largest tick whose sqrt price is <= the
// given value.
func TickAtSqrtPrice(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtPrice) < 0 || sqrtPriceX96.Cmp(MaxSqrtPrice) > 0 {
		return 0, fmt.Errorf("sqrt price out of bounds: %v", sqrtPriceX96)
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		midPrice, err := SqrtPriceAtTick(mid)
		if err != nil {
			return 0, err
		}
		if midPrice.Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// RoundDirection selects which way AlignTick rounds.
type RoundDirection int

const (
	RoundDown RoundDirection = iota
	RoundUp
)

// AlignTick rounds a tick to a multiple of spacing in the requested
// direction and clamps the result to the aligned global bounds.
func AlignTick(tick, spacing int32, dir RoundDirection) int32 {
	if spacing <= 0 {
		return tick
	}

	q := tick / spacing
	r := tick % spacing
	if r != 0 {
		switch dir {
		case RoundDown:
			if r < 0 {
				q--
			}
		case RoundUp:
			if r > 0 {
				q++
			}
		}
	}
	aligned := q * spacing

	// Truncating division is ceil for MinTick and floor for MaxTick,
	// which is exactly the inward clamp we want.
	minAligned := (MinTick / spacing) * spacing
	maxAligned := (MaxTick / spacing) * spacing
	if aligned < minAligned {
		return minAligned
	}
	if aligned > maxAligned {
		return maxAligned
	}
	return aligned
}

// logBase is ln(1.0001), the tick-space log base.
var logBase = math.Log(1.0001)

// TicksPerPercent is how many ticks cover a one percent price move,
// derived from the log base rather than hardcoded per tick spacing.
var TicksPerPercent = math.Log(1.01) / logBase

// WidthForPercent converts a symmetric percentage band into a tick
// half-width, rounded up so the band never undershoots the request.
func WidthForPercent(percent float64) int32 {
	if percent <= 0 {
		return 0
	}
	return int32(math.Ceil(percent / 2 * TicksPerPercent))
}

// TickForMarketCap derives the tick at which the pool token trades at a
// target market cap. The implied per-token price (in the quote asset) is
// targetMcap / totalSupply scaled by refPrice, and the tick is its log
// base 1.0001.
func TickForMarketCap(targetMcap, refPrice decimal.Decimal, totalSupply *big.Int, supplyDecimals int32) (int32, error) {
	if targetMcap.Sign() <= 0 {
		return 0, fmt.Errorf("target market cap must be positive")
	}
	if refPrice.Sign() <= 0 {
		return 0, fmt.Errorf("reference price must be positive")
	}
	if totalSupply == nil || totalSupply.Sign() <= 0 {
		return 0, fmt.Errorf("total supply must be positive")
	}

	supply := decimal.NewFromBigInt(totalSupply, -supplyDecimals)
	impliedPrice := targetMcap.Div(supply)
	ratio, _ := impliedPrice.Div(refPrice).Float64()
	if ratio <= 0 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return 0, fmt.Errorf("price ratio out of range")
	}

	tick := int32(math.Floor(math.Log(ratio) / logBase))
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("derived tick %d out of bounds", tick)
	}
	return tick, nil
}
