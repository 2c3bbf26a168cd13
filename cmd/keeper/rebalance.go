package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rangeKeeper/internal/actions"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/rebalance"
)

func newRebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance <position-id>",
		Short: "Move a position to a fresh band around the current price",
		Args:  cobra.ExactArgs(1),
		RunE:  runRebalance,
	}
	cmd.Flags().Float64("width-percent", 10, "total price width of the new band in percent")
	cmd.Flags().Duration("deadline", 5*time.Minute, "transaction deadline")
	cmd.Flags().Bool("dry-run", false, "compute and print the plan without broadcasting")
	cmd.Flags().String("recipient", "", "owner account (defaults to the signing account)")
	return cmd
}

func runRebalance(cmd *cobra.Command, args []string) error {
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

	executor := actions.NewExecutor(rt.client, rt.positionManager, rt.logger)
	engine := rebalance.NewEngine(rt.reader, rt.client, executor, owner, rt.logger)

	res, err := engine.Run(ctx, ids[0], rebalance.Options{
		WidthPercent: rt.cfg.WidthPercent,
		Deadline:     rt.cfg.Deadline,
		DryRun:       dryRun,
	})
	if err != nil {
		var partial *model.PartialPipelineFailure
		if errors.As(err, &partial) {
			fmt.Printf("rebalance PARTIAL: removed in tx %s, re-add failed\n", partial.RemoveTxHash.Hex())
			fmt.Printf("withdrawn funds are in the wallet: %s / %s\n", partial.Amount0, partial.Amount1)
			fmt.Println("rerun once the cause is fixed; only the add step is outstanding")
		}
		return err
	}

	fmt.Printf("position %s: [%d, %d) -> [%d, %d)\n",
		ids[0], res.OldTickLower, res.OldTickUpper, res.NewTickLower, res.NewTickUpper)
	fmt.Printf("new liquidity %s (amounts %s / %s)\n", res.NewLiquidity, res.Amount0, res.Amount1)

	if res.DryRun {
		fmt.Printf("dry run: exit plan [%s]\n", strings.Join(res.ExitPlan.Ops(), ", "))
		fmt.Printf("dry run: add plan  [%s]\n", strings.Join(res.AddPlan.Ops(), ", "))
		return nil
	}

	fmt.Printf("remove tx %s\n", res.RemoveTxHash.Hex())
	fmt.Printf("add tx    %s\n", res.AddTxHash.Hex())
	return nil
}
