package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

// UpsertGoals replaces the handle's goals wholesale. No history is kept.
func (s *Store) UpsertGoals(ctx context.Context, handle, goals string, day time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO nutrition_goals (handle, goals, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (handle) DO UPDATE SET goals = excluded.goals, updated_at = excluded.updated_at`),
			handle, goals, day.Format(model.DateLayout),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: upserting goals for %s: %w", handle, err)
		}
		return nil
	})
}

// GetGoals returns apperror.ErrNotFound when the handle never set goals.
func (s *Store) GetGoals(ctx context.Context, handle string) (*model.NutritionGoals, error) {
	g := model.NutritionGoals{Handle: handle}
	err := s.conn.QueryRowContext(ctx, s.rebind(
		`SELECT goals, updated_at FROM nutrition_goals WHERE handle = ?`), handle,
	).Scan(&g.Goals, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("goals", handle)
		}
		return nil, fmt.Errorf("sqlstore: getting goals for %s: %w", handle, err)
	}
	return &g, nil
}

func (s *Store) UpsertWeightGoal(ctx context.Context, handle string, target float64, day time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO weight_goals (handle, target_weight, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (handle) DO UPDATE SET target_weight = excluded.target_weight, updated_at = excluded.updated_at`),
			handle, target, day.Format(model.DateLayout),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: upserting weight goal for %s: %w", handle, err)
		}
		return nil
	})
}

// GetWeightGoal returns apperror.ErrNotFound when no target is set.
func (s *Store) GetWeightGoal(ctx context.Context, handle string) (*model.WeightGoal, error) {
	g := model.WeightGoal{Handle: handle}
	err := s.conn.QueryRowContext(ctx, s.rebind(
		`SELECT target_weight, updated_at FROM weight_goals WHERE handle = ?`), handle,
	).Scan(&g.TargetWeight, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("weight goal", handle)
		}
		return nil, fmt.Errorf("sqlstore: getting weight goal for %s: %w", handle, err)
	}
	return &g, nil
}
