package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/nutrition"
)

// AppendDailyRecord commits a confirmed analysis.
//
// Handle, Narrative, Date and Time must be set by the caller. ID, Calories
// and CreatedAt are filled in here. CommitToken makes the insert idempotent:
// committing the same analysis twice leaves one row, and rec.ID is set to
// the id of that row.
func (s *Store) AppendDailyRecord(ctx context.Context, rec *model.DailyRecord) error {
	rec.ID = xid.New().String()
	if rec.CommitToken == "" {
		rec.CommitToken = rec.ID
	}
	rec.Calories = nutrition.ExtractCalories(rec.Narrative)
	rec.CreatedAt = time.Now()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO daily_data (id, date, time, handle, narrative, calories, commit_token, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (commit_token) DO NOTHING`),
			rec.ID, rec.Date, rec.Time, rec.Handle, rec.Narrative, rec.Calories,
			rec.CommitToken, rec.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: inserting daily record for %s: %w", rec.Handle, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: reading rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}

		// Already committed: report the existing row.
		err = tx.QueryRowContext(ctx, s.rebind(
			`SELECT id FROM daily_data WHERE commit_token = ?`), rec.CommitToken,
		).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("sqlstore: loading committed record %s: %w", rec.CommitToken, err)
		}
		return nil
	})
}

// DailyCalories sums the calories of every record the handle logged on day.
func (s *Store) DailyCalories(ctx context.Context, handle string, day time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.conn.QueryRowContext(ctx, s.rebind(
		`SELECT SUM(calories) FROM daily_data WHERE handle = ? AND date = ?`),
		handle, day.Format(model.DateLayout),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: summing calories for %s: %w", handle, err)
	}
	return total.Float64, nil
}

// DailyRecords returns the day's records in ascending time order.
func (s *Store) DailyRecords(ctx context.Context, handle string, day time.Time) ([]model.DailyRecord, error) {
	d := day.Format(model.DateLayout)
	return s.queryRecords(ctx,
		`WHERE handle = ? AND date = ? ORDER BY time ASC`, handle, d)
}

// WeeklyRecords returns records in [start, start+7 days), oldest first.
func (s *Store) WeeklyRecords(ctx context.Context, handle string, start time.Time) ([]model.DailyRecord, error) {
	from := start.Format(model.DateLayout)
	to := start.AddDate(0, 0, 7).Format(model.DateLayout)
	return s.queryRecords(ctx,
		`WHERE handle = ? AND date >= ? AND date < ? ORDER BY date ASC, time ASC`, handle, from, to)
}

// DistinctActiveHandles lists every handle with at least one committed record.
func (s *Store) DistinctActiveHandles(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT DISTINCT handle FROM daily_data ORDER BY handle`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing active handles: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning handle: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating handles: %w", err)
	}
	return handles, nil
}

func (s *Store) queryRecords(ctx context.Context, where string, args ...any) ([]model.DailyRecord, error) {
	rows, err := s.conn.QueryContext(ctx, s.rebind(
		`SELECT id, date, time, handle, narrative, calories, commit_token, created_at
		 FROM daily_data `+where), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: querying daily records: %w", err)
	}
	defer rows.Close()

	records := []model.DailyRecord{}
	for rows.Next() {
		var (
			r       model.DailyRecord
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Date, &r.Time, &r.Handle, &r.Narrative,
			&r.Calories, &r.CommitToken, &created); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning daily record: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating daily records: %w", err)
	}
	return records, nil
}
