package compound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// StaticPricer values tokens from a fixed USD-per-whole-token table.
// Good enough for stable pairs and operator-supplied quotes; anything
// needing live quotes plugs in its own Pricer.
type StaticPricer struct {
	// Prices maps token address to USD per whole token.
	Prices map[common.Address]decimal.Decimal
	// Decimals maps token address to its ERC-20 decimals.
	Decimals map[common.Address]int32
}

func (p StaticPricer) ValueUSD(token common.Address, amount *big.Int) decimal.Decimal {
	if amount == nil || amount.Sign() == 0 {
		return decimal.Zero
	}
	price, ok := p.Prices[token]
	if !ok {
		return decimal.Zero
	}
	dec, ok := p.Decimals[token]
	if !ok {
		dec = 18
	}
	return decimal.NewFromBigInt(amount, -dec).Mul(price)
}

// GasPricer supplies the current gas price.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// ChainGasOracle prices a compound transaction from the node's gas
// price suggestion, a fixed gas unit budget, and a native token quote.
type ChainGasOracle struct {
	Pricer GasPricer
	// GasUnits is the assumed gas usage of one compound batch.
	GasUnits uint64
	// NativeUSD is USD per whole native token (18 decimals).
	NativeUSD decimal.Decimal
}

// DefaultCompoundGasUnits covers a decrease+increase+close batch with
// headroom.
const DefaultCompoundGasUnits = 400_000

func (o ChainGasOracle) CompoundCostUSD(ctx context.Context) (decimal.Decimal, error) {
	gasPrice, err := o.Pricer.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	units := o.GasUnits
	if units == 0 {
		units = DefaultCompoundGasUnits
	}
	costWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(units))
	return decimal.NewFromBigInt(costWei, -18).Mul(o.NativeUSD), nil
}
