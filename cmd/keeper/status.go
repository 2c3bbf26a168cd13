package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rangeKeeper/internal/position"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [position-id...]",
		Short: "Report range status for positions",
		RunE:  runStatus,
	}
	cmd.Flags().Float64("edge-fraction", position.DefaultEdgeFraction, "fraction of range width counted as near-edge")
	cmd.Flags().StringSlice("positions", nil, "position token ids (comma-separated)")
	return cmd
}

// runStatus prints one line per position and exits non-zero when any
// position needs attention, so it slots into cron and shell checks.
func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := newRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	raw := args
	if len(raw) == 0 {
		raw = rt.cfg.Positions
	}
	ids, err := parsePositionIDs(raw)
	if err != nil {
		return err
	}

	unhealthy := 0
	for _, id := range ids {
		pos, err := rt.reader.Position(ctx, id)
		if err != nil {
			return err
		}
		state, err := rt.reader.PoolState(ctx, pos.PoolKey)
		if err != nil {
			return err
		}

		status, coverage := position.Classify(pos.TickLower, pos.TickUpper, state.Tick, rt.cfg.EdgeFraction)
		if !status.Healthy() {
			unhealthy++
		}

		fmt.Printf("position %s\t%s\ttick %d in [%d, %d)\tcoverage %.2f\tliquidity %s\n",
			id, status, state.Tick, pos.TickLower, pos.TickUpper, coverage, pos.Liquidity)
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d positions need attention", unhealthy, len(ids))
	}
	return nil
}
