package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

// AppendWeightMeasurement records a weigh-in for day. Rows are never updated.
func (s *Store) AppendWeightMeasurement(ctx context.Context, handle string, weight float64, day time.Time) (*model.WeightMeasurement, error) {
	m := &model.WeightMeasurement{
		ID:         xid.New().String(),
		Handle:     handle,
		Weight:     weight,
		MeasuredAt: day.Format(model.DateLayout),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO weight_history (id, handle, weight, measured_at, created_at) VALUES (?, ?, ?, ?, ?)`),
			m.ID, m.Handle, m.Weight, m.MeasuredAt, time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: inserting weight for %s: %w", handle, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// WeightHistory returns measurements newest first. Two weigh-ins on the same
// day are ordered by insertion. limit <= 0 returns everything.
func (s *Store) WeightHistory(ctx context.Context, handle string, limit int) ([]model.WeightMeasurement, error) {
	query := `SELECT id, handle, weight, measured_at FROM weight_history
		WHERE handle = ? ORDER BY measured_at DESC, created_at DESC`
	args := []any{handle}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying weight history for %s: %w", handle, err)
	}
	defer rows.Close()

	history := []model.WeightMeasurement{}
	for rows.Next() {
		var m model.WeightMeasurement
		if err := rows.Scan(&m.ID, &m.Handle, &m.Weight, &m.MeasuredAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning weight: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating weight history: %w", err)
	}
	return history, nil
}
