package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"rangeKeeper/internal/actions"
	"rangeKeeper/internal/compound"
)

func newCompoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compound <position-id>",
		Short: "Harvest fees and reinvest them when worth the gas",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompound,
	}
	cmd.Flags().String("strategy", "dollar", "trigger strategy (dollar, time)")
	cmd.Flags().Float64("threshold-usd", 50, "fee value threshold for the dollar strategy")
	cmd.Flags().Duration("compound-interval", 24*time.Hour, "interval for the time strategy")
	cmd.Flags().Float64("gas-floor-multiple", 3, "minimum fee value as a multiple of gas cost")
	cmd.Flags().Float64("price0", 0, "USD per whole token of currency0")
	cmd.Flags().Float64("price1", 0, "USD per whole token of currency1")
	cmd.Flags().Int32("decimals0", 18, "ERC-20 decimals of currency0")
	cmd.Flags().Int32("decimals1", 18, "ERC-20 decimals of currency1")
	cmd.Flags().Float64("native-usd", 0, "USD per whole native token, for gas pricing")
	cmd.Flags().Uint64("gas-units", compound.DefaultCompoundGasUnits, "assumed gas usage of one compound batch")
	cmd.Flags().Duration("deadline", 5*time.Minute, "transaction deadline")
	cmd.Flags().Bool("dry-run", false, "evaluate and print the decision without broadcasting")
	cmd.Flags().Duration("watch", 0, "rerun on this interval instead of exiting")
	cmd.Flags().String("recipient", "", "owner account (defaults to the signing account)")
	return cmd
}

func buildStrategy(cmd *cobra.Command) (compound.Strategy, error) {
	name, _ := cmd.Flags().GetString("strategy")
	switch name {
	case "dollar":
		threshold, _ := cmd.Flags().GetFloat64("threshold-usd")
		return compound.DollarStrategy{ThresholdUSD: decimal.NewFromFloat(threshold)}, nil
	case "time":
		interval, _ := cmd.Flags().GetDuration("compound-interval")
		return compound.TimeStrategy{Interval: interval}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want dollar or time)", name)
	}
}

func runCompound(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	rt, err := newRuntime(ctx, cmd, !dryRun)
	if err != nil {
		return err
	}
	defer rt.close()

	ids, err := parsePositionIDs(args)
	if err != nil {
		return err
	}
	owner, err := rt.owner()
	if err != nil {
		return err
	}

	strategy, err := buildStrategy(cmd)
	if err != nil {
		return err
	}

	// The pool currencies come from the position itself, so the price
	// flags map onto them once here.
	pos, err := rt.reader.Position(ctx, ids[0])
	if err != nil {
		return err
	}
	price0, _ := cmd.Flags().GetFloat64("price0")
	price1, _ := cmd.Flags().GetFloat64("price1")
	decimals0, _ := cmd.Flags().GetInt32("decimals0")
	decimals1, _ := cmd.Flags().GetInt32("decimals1")
	pricer := compound.StaticPricer{
		Prices: map[common.Address]decimal.Decimal{
			pos.PoolKey.Currency0: decimal.NewFromFloat(price0),
			pos.PoolKey.Currency1: decimal.NewFromFloat(price1),
		},
		Decimals: map[common.Address]int32{
			pos.PoolKey.Currency0: decimals0,
			pos.PoolKey.Currency1: decimals1,
		},
	}

	nativeUSD, _ := cmd.Flags().GetFloat64("native-usd")
	gasUnits, _ := cmd.Flags().GetUint64("gas-units")
	oracle := compound.ChainGasOracle{
		Pricer:    rt.client,
		GasUnits:  gasUnits,
		NativeUSD: decimal.NewFromFloat(nativeUSD),
	}

	gasFloor, _ := cmd.Flags().GetFloat64("gas-floor-multiple")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	executor := actions.NewExecutor(rt.client, rt.positionManager, rt.logger)

	engine := compound.NewEngine(
		rt.reader,
		rt.client,
		rt.client.EnsureAllowance,
		executor,
		pricer,
		oracle,
		strategy,
		nil,
		compound.Config{
			GasFloorMultiple: decimal.NewFromFloat(gasFloor),
			Deadline:         deadline,
			Spender:          rt.positionManager,
			Owner:            owner,
		},
		rt.logger,
	)

	watch, _ := cmd.Flags().GetDuration("watch")
	if watch > 0 {
		return engine.Run(ctx, ids[0], watch, dryRun)
	}

	decision, res, err := engine.Cycle(ctx, ids[0], dryRun)
	if err != nil {
		return err
	}

	fmt.Printf("position %s: fees %s / %s\n", ids[0], res.Fees0, res.Fees1)
	fmt.Printf("decision: compound=%v fee value $%s, gas $%s: %s\n",
		decision.ShouldCompound,
		decision.EstimatedFeeValue.StringFixed(2),
		decision.EstimatedGasCost.StringFixed(2),
		decision.Reason,
	)
	if res.Plan != nil {
		fmt.Printf("reinvest plan [%s], liquidity %s\n", strings.Join(res.Plan.Ops(), ", "), res.Liquidity)
	}
	if res.Compounded {
		fmt.Printf("reinvest tx %s\n", res.ReinvestTx.Hex())
	}
	return nil
}
