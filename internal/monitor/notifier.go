package monitor

import (
	"context"

	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

// Notifier delivers one alert to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, alert model.AlertRecord) error
}

// LogNotifier writes alerts to the structured log. The default channel
// when nothing external is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, alert model.AlertRecord) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("position alert",
		zap.String("position", alert.PositionID),
		zap.String("from", alert.FromStatus),
		zap.String("to", alert.ToStatus),
		zap.Float64("coverage", alert.CoveragePercent),
		zap.Int32("tick", alert.CurrentTick),
		zap.String("message", alert.Message),
	)
	return nil
}
