package monitor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"rangeKeeper/internal/clock"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/position"
)

// PositionReader resolves position and pool state from chain.
type PositionReader interface {
	Position(ctx context.Context, id *big.Int) (position.Position, error)
	PoolState(ctx context.Context, key position.PoolKey) (position.PoolState, error)
}

// HistoryStore records emitted alerts for auditing. Optional.
type HistoryStore interface {
	RecordAlert(ctx context.Context, alert model.AlertRecord) error
}

// Config tunes the monitor.
type Config struct {
	// PositionIDs are the positions watched each cycle.
	PositionIDs []*big.Int
	// EdgeFraction overrides position.DefaultEdgeFraction when > 0.
	EdgeFraction float64
}

// Monitor watches positions and alerts on status transitions. Alerts
// are deduplicated: an unchanged status across cycles stays silent.
type Monitor struct {
	reader   PositionReader
	state    StateStore
	notifier Notifier
	history  HistoryStore
	clk      clock.Clock
	cfg      Config
	logger   *zap.Logger
}

// NewMonitor builds a monitor. history may be nil.
func NewMonitor(reader PositionReader, state StateStore, notifier Notifier, history HistoryStore, clk clock.Clock, cfg Config, logger *zap.Logger) *Monitor {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = &MemoryStateStore{}
	}
	return &Monitor{
		reader:   reader,
		state:    state,
		notifier: notifier,
		history:  history,
		clk:      clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunCycle checks every configured position once and returns the alerts
// it emitted. force emits the current status for every position even
// without a transition. A notifier failure is logged, never fatal: the
// snapshot still advances so the next cycle does not re-fire.
func (m *Monitor) RunCycle(ctx context.Context, force bool) ([]model.AlertRecord, error) {
	snapshots, err := m.state.Load(ctx)
	if err != nil {
		return nil, err
	}

	var emitted []model.AlertRecord
	var firstErr error
	for _, id := range m.cfg.PositionIDs {
		alert, err := m.checkPosition(ctx, id, snapshots, force)
		if err != nil {
			m.logger.Error("position check failed", zap.String("position", id.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if alert != nil {
			emitted = append(emitted, *alert)
		}
	}

	if err := m.state.Save(ctx, snapshots); err != nil {
		return emitted, err
	}
	return emitted, firstErr
}

func (m *Monitor) checkPosition(ctx context.Context, id *big.Int, snapshots map[string]model.PositionSnapshot, force bool) (*model.AlertRecord, error) {
	pos, err := m.reader.Position(ctx, id)
	if err != nil {
		return nil, err
	}
	state, err := m.reader.PoolState(ctx, pos.PoolKey)
	if err != nil {
		return nil, err
	}

	status, coverage := position.Classify(pos.TickLower, pos.TickUpper, state.Tick, m.cfg.EdgeFraction)
	key := id.String()
	prior, seen := snapshots[key]

	snapshots[key] = model.PositionSnapshot{
		Status:          status.String(),
		CoveragePercent: coverage,
		CurrentTick:     state.Tick,
		LastCheckedAt:   m.clk.Now().UTC(),
	}

	m.logger.Debug("position checked",
		zap.String("position", key),
		zap.String("status", status.String()),
		zap.Float64("coverage", coverage),
		zap.Int32("tick", state.Tick),
	)

	// The first observation counts as a transition from unknown.
	changed := !seen || prior.Status != status.String()
	if !changed && !force {
		return nil, nil
	}

	from := "UNKNOWN"
	if seen {
		from = prior.Status
	}
	alert := model.AlertRecord{
		PositionID:      key,
		FromStatus:      from,
		ToStatus:        status.String(),
		CoveragePercent: coverage,
		CurrentTick:     state.Tick,
		Message:         fmt.Sprintf("position %s: %s -> %s (tick %d, coverage %.2f)", key, from, status.String(), state.Tick, coverage),
		CreatedAt:       m.clk.Now().UTC(),
	}

	if err := m.notifier.Notify(ctx, alert); err != nil {
		m.logger.Error("notify failed", zap.String("position", key), zap.Error(err))
	}
	if m.history != nil {
		if err := m.history.RecordAlert(ctx, alert); err != nil {
			m.logger.Error("record alert failed", zap.String("position", key), zap.Error(err))
		}
	}
	return &alert, nil
}

// Run loops RunCycle on the interval until the context is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	for {
		if _, err := m.RunCycle(ctx, false); err != nil {
			m.logger.Error("monitor cycle failed", zap.Error(err))
		}
		if err := m.clk.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
