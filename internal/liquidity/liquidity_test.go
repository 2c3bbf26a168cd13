package liquidity

import (
	"math/big"
	"testing"

	"rangeKeeper/internal/tickmath"
)

func sqrtAt(t *testing.T, tick int32) *big.Int {
	t.Helper()
	price, err := tickmath.SqrtPriceAtTick(tick)
	if err != nil {
		t.Fatalf("sqrt price at %d: %v", tick, err)
	}
	return price
}

func TestForAmountsRegimes(t *testing.T) {
	sqrtA := sqrtAt(t, -600)
	sqrtB := sqrtAt(t, 600)
	amount0 := big.NewInt(1_000_000)
	amount1 := big.NewInt(1_000_000)

	below, err := ForAmounts(sqrtAt(t, -1200), sqrtA, sqrtB, amount0, amount1)
	if err != nil {
		t.Fatalf("below: %v", err)
	}
	within, err := ForAmounts(sqrtAt(t, 0), sqrtA, sqrtB, amount0, amount1)
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	above, err := ForAmounts(sqrtAt(t, 1200), sqrtA, sqrtB, amount0, amount1)
	if err != nil {
		t.Fatalf("above: %v", err)
	}

	for name, liq := range map[string]*big.Int{"below": below, "within": within, "above": above} {
		if liq.Sign() <= 0 {
			t.Fatalf("%s: liquidity not positive: %s", name, liq)
		}
	}

	// Within range the scarcer side is binding: starving token1 collapses
	// the result even with plenty of token0.
	starved, err := ForAmounts(sqrtAt(t, 0), sqrtA, sqrtB, amount0, big.NewInt(10))
	if err != nil {
		t.Fatalf("starved: %v", err)
	}
	if starved.Cmp(within) >= 0 {
		t.Fatalf("starving token1 must reduce in-range liquidity: %s vs %s", starved, within)
	}
}

func TestForAmountsIgnoresFarSideToken(t *testing.T) {
	sqrtA := sqrtAt(t, 1000)
	sqrtB := sqrtAt(t, 2000)
	current := sqrtAt(t, 0) // below the range

	base, err := ForAmounts(current, sqrtA, sqrtB, big.NewInt(5_000_000), big.NewInt(0))
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	varied, err := ForAmounts(current, sqrtA, sqrtB, big.NewInt(5_000_000), big.NewInt(999_999_999))
	if err != nil {
		t.Fatalf("varied: %v", err)
	}
	if base.Cmp(varied) != 0 {
		t.Fatalf("token1 must be ignored below range: %s vs %s", base, varied)
	}

	// Symmetric property above the range for token0.
	current = sqrtAt(t, 3000)
	base, err = ForAmounts(current, sqrtA, sqrtB, big.NewInt(0), big.NewInt(5_000_000))
	if err != nil {
		t.Fatalf("base above: %v", err)
	}
	varied, err = ForAmounts(current, sqrtA, sqrtB, big.NewInt(123_456_789), big.NewInt(5_000_000))
	if err != nil {
		t.Fatalf("varied above: %v", err)
	}
	if base.Cmp(varied) != 0 {
		t.Fatalf("token0 must be ignored above range: %s vs %s", base, varied)
	}
}

func TestRoundTripNeverGainsValue(t *testing.T) {
	cases := []struct {
		current, lower, upper int32
	}{
		{0, -600, 600},
		{-1200, -600, 600},
		{1200, -600, 600},
		{55, -887220, 887220},
		{100_000, 99_000, 101_000},
	}

	amount0 := big.NewInt(123_456_789)
	amount1 := big.NewInt(987_654_321)

	for _, tc := range cases {
		sqrtP := sqrtAt(t, tc.current)
		sqrtA := sqrtAt(t, tc.lower)
		sqrtB := sqrtAt(t, tc.upper)

		liq, err := ForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1)
		if err != nil {
			t.Fatalf("%+v: ForAmounts: %v", tc, err)
		}
		back0, back1, err := Amounts(liq, sqrtP, sqrtA, sqrtB)
		if err != nil {
			t.Fatalf("%+v: Amounts: %v", tc, err)
		}
		if back0.Cmp(amount0) > 0 {
			t.Fatalf("%+v: amount0 grew: %s > %s", tc, back0, amount0)
		}
		if back1.Cmp(amount1) > 0 {
			t.Fatalf("%+v: amount1 grew: %s > %s", tc, back1, amount1)
		}
	}
}

func TestForAmountsClampsToMaxUint128(t *testing.T) {
	sqrtA := sqrtAt(t, -1)
	sqrtB := sqrtAt(t, 1)
	huge := new(big.Int).Lsh(big.NewInt(1), 200)

	liq, err := ForAmounts(sqrtAt(t, 0), sqrtA, sqrtB, huge, huge)
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if liq.Cmp(MaxUint128) > 0 {
		t.Fatalf("liquidity exceeds uint128 max: %s", liq)
	}
}

func TestValidateSingleSided(t *testing.T) {
	sqrtA := sqrtAt(t, 1000)
	sqrtB := sqrtAt(t, 2000)

	if err := ValidateSingleSided(Token0Side, sqrtAt(t, 500), sqrtA, sqrtB); err != nil {
		t.Fatalf("token0 above price should pass: %v", err)
	}
	if err := ValidateSingleSided(Token0Side, sqrtAt(t, 1500), sqrtA, sqrtB); err == nil {
		t.Fatalf("token0 range straddling price must fail")
	}
	if err := ValidateSingleSided(Token1Side, sqrtAt(t, 2500), sqrtA, sqrtB); err != nil {
		t.Fatalf("token1 below price should pass: %v", err)
	}
	if err := ValidateSingleSided(Token1Side, sqrtAt(t, 1500), sqrtA, sqrtB); err == nil {
		t.Fatalf("token1 range straddling price must fail")
	}
}

func TestInvalidInputs(t *testing.T) {
	sqrtA := sqrtAt(t, -60)
	if _, err := ForAmounts(sqrtAt(t, 0), sqrtA, sqrtA, big.NewInt(1), big.NewInt(1)); err == nil {
		t.Fatalf("equal bounds must fail")
	}
	if _, err := ForAmounts(sqrtAt(t, 0), sqrtA, sqrtAt(t, 60), big.NewInt(-1), big.NewInt(1)); err == nil {
		t.Fatalf("negative amount must fail")
	}
	if _, _, err := Amounts(big.NewInt(-5), sqrtAt(t, 0), sqrtA, sqrtAt(t, 60)); err == nil {
		t.Fatalf("negative liquidity must fail")
	}
}
