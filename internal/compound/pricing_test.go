package compound

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestStaticPricerScalesByDecimals(t *testing.T) {
	usdc := common.HexToAddress("0x1111111111111111111111111111111111111111")
	weth := common.HexToAddress("0x2222222222222222222222222222222222222222")
	p := StaticPricer{
		Prices: map[common.Address]decimal.Decimal{
			usdc: decimal.NewFromInt(1),
			weth: decimal.NewFromInt(2000),
		},
		Decimals: map[common.Address]int32{usdc: 6, weth: 18},
	}

	if got := p.ValueUSD(usdc, big.NewInt(1_000_000)); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("1e6 of a 6-decimal $1 token should be $1, got %s", got)
	}
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if got := p.ValueUSD(weth, oneEth); !got.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("1e18 of an 18-decimal $2000 token should be $2000, got %s", got)
	}
}

func TestStaticPricerUnknownTokenIsZero(t *testing.T) {
	p := StaticPricer{}
	if got := p.ValueUSD(common.HexToAddress("0x33"), big.NewInt(1000)); !got.IsZero() {
		t.Fatalf("unpriced token should be worth zero, got %s", got)
	}
}

type fixedGasPricer struct {
	price *big.Int
}

func (f fixedGasPricer) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.price, nil
}

func TestChainGasOracleCost(t *testing.T) {
	// 50 gwei x 400k gas = 0.02 native, at $2000 = $40.
	oracle := ChainGasOracle{
		Pricer:    fixedGasPricer{price: big.NewInt(50_000_000_000)},
		GasUnits:  400_000,
		NativeUSD: decimal.NewFromInt(2000),
	}
	cost, err := oracle.CompoundCostUSD(context.Background())
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	if !cost.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected $40, got %s", cost)
	}
}
