package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSnapshot is the per-position state persisted by the monitor
// after every cycle, whether or not an alert fired.
type PositionSnapshot struct {
	Status          string    `json:"status"`
	CoveragePercent float64   `json:"coverage_percent"`
	CurrentTick     int32     `json:"current_tick"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
}

// AlertRecord captures one emitted status transition for auditing.
type AlertRecord struct {
	PositionID      string    `json:"position_id"`
	FromStatus      string    `json:"from_status"`
	ToStatus        string    `json:"to_status"`
	CoveragePercent float64   `json:"coverage_percent"`
	CurrentTick     int32     `json:"current_tick"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"created_at"`
}

// CompoundDecision is the derived (never persisted) outcome of one
// auto-compound evaluation.
type CompoundDecision struct {
	ShouldCompound    bool
	EstimatedFeeValue decimal.Decimal
	EstimatedGasCost  decimal.Decimal
	Reason            string
}
