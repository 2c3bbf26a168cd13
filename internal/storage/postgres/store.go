package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rangeKeeper/internal/model"
)

// Store provides Postgres persistence for alert history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the alert table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS position_alerts (
			id bigserial PRIMARY KEY,
			position_id text NOT NULL,
			from_status text NOT NULL,
			to_status text NOT NULL,
			coverage_percent double precision NOT NULL,
			current_tick integer NOT NULL,
			message text NOT NULL,
			created_at timestamptz NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS position_alerts_position_idx
		ON position_alerts (position_id, created_at DESC)
	`)
	return err
}

// RecordAlert inserts a single alert.
func (s *Store) RecordAlert(ctx context.Context, alert model.AlertRecord) error {
	return s.InsertAlerts(ctx, []model.AlertRecord{alert})
}

// InsertAlerts inserts a batch of alerts.
func (s *Store) InsertAlerts(ctx context.Context, alerts []model.AlertRecord) error {
	if len(alerts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(`
			INSERT INTO position_alerts (
				position_id, from_status, to_status, coverage_percent, current_tick, message, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			a.PositionID,
			a.FromStatus,
			a.ToStatus,
			a.CoveragePercent,
			a.CurrentTick,
			a.Message,
			a.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range alerts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentAlerts returns the newest alerts for a position, newest first.
func (s *Store) RecentAlerts(ctx context.Context, positionID string, limit int) ([]model.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT position_id, from_status, to_status, coverage_percent, current_tick, message, created_at
		FROM position_alerts
		WHERE position_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, positionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.AlertRecord
	for rows.Next() {
		var a model.AlertRecord
		if err := rows.Scan(&a.PositionID, &a.FromStatus, &a.ToStatus, &a.CoveragePercent, &a.CurrentTick, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
