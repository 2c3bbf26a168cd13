package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/monitor"
	"rangeKeeper/internal/storage"
	"rangeKeeper/internal/storage/postgres"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch positions and alert on status transitions",
		RunE:  runMonitor,
	}
	cmd.Flags().StringSlice("positions", nil, "position token ids (comma-separated)")
	cmd.Flags().Duration("interval", 5*time.Minute, "check interval")
	cmd.Flags().Float64("edge-fraction", 0, "fraction of range width counted as near-edge")
	cmd.Flags().String("state-file", "./data/monitor_state.json", "snapshot state file")
	cmd.Flags().String("alerts-out", "", "optional alert JSONL path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for alert history")
	cmd.Flags().Bool("once", false, "run a single cycle and exit")
	cmd.Flags().Bool("force", false, "emit current status even without a transition (implies --once)")
	return cmd
}

// historyFanout forwards alerts to every configured history sink.
type historyFanout []monitor.HistoryStore

func (h historyFanout) RecordAlert(ctx context.Context, alert model.AlertRecord) error {
	var firstErr error
	for _, store := range h {
		if err := store.RecordAlert(ctx, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// jsonlHistory adapts the JSONL sink to the history interface.
type jsonlHistory struct {
	sink *storage.JsonlStorage
}

func (h jsonlHistory) RecordAlert(_ context.Context, alert model.AlertRecord) error {
	return h.sink.PutAlertBatch([]model.AlertRecord{alert})
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := newRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	ids, err := parsePositionIDs(rt.cfg.Positions)
	if err != nil {
		return err
	}

	var sinks historyFanout
	if rt.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, rt.cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	if rt.cfg.AlertsOut != "" {
		sinks = append(sinks, jsonlHistory{sink: storage.NewJsonlStorage(rt.cfg.AlertsOut)})
	}
	var history monitor.HistoryStore
	if len(sinks) > 0 {
		history = sinks
	}

	mon := monitor.NewMonitor(
		rt.reader,
		&monitor.FileStateStore{Path: rt.cfg.StateFile},
		&monitor.LogNotifier{Logger: rt.logger},
		history,
		nil,
		monitor.Config{PositionIDs: ids, EdgeFraction: rt.cfg.EdgeFraction},
		rt.logger,
	)

	once, _ := cmd.Flags().GetBool("once")
	force, _ := cmd.Flags().GetBool("force")

	rt.logger.Info("monitor start",
		zap.Int("positions", len(ids)),
		zap.Duration("interval", rt.cfg.Interval),
		zap.String("state_file", rt.cfg.StateFile),
		zap.Bool("once", once || force),
	)

	if once || force {
		_, err := mon.RunCycle(ctx, force)
		return err
	}
	return mon.Run(ctx, rt.cfg.Interval)
}
