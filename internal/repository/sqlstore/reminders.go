package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

// A claimed reminder that was neither sent nor retried within this window
// belongs to a process that died mid-send and is handed out again.
const staleClaim = 5 * time.Minute

func (s *Store) ScheduleReminder(ctx context.Context, r *model.Reminder) error {
	r.ID = xid.New().String()
	r.Status = model.ReminderPending
	r.Attempts = 0

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO reminders (id, handle, chat_id, run_at, status) VALUES (?, ?, ?, ?, ?)`),
			r.ID, r.Handle, r.ChatID, r.RunAt.Unix(), string(r.Status),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: scheduling reminder for %s: %w", r.Handle, err)
		}
		return nil
	})
}

// ClaimDueReminders moves up to limit due reminders from pending to claimed
// and returns them, oldest first.
func (s *Store) ClaimDueReminders(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	var claimed []model.Reminder

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE reminders SET status = ?, claimed_at = 0
			 WHERE status = ? AND claimed_at < ?`),
			string(model.ReminderPending), string(model.ReminderClaimed), now.Add(-staleClaim).Unix(),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: requeueing stale reminders: %w", err)
		}

		rows, err := tx.QueryContext(ctx, s.rebind(
			`SELECT id, handle, chat_id, run_at, attempts, last_error FROM reminders
			 WHERE status = ? AND run_at <= ? ORDER BY run_at ASC LIMIT ?`),
			string(model.ReminderPending), now.Unix(), limit,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: selecting due reminders: %w", err)
		}
		for rows.Next() {
			var (
				r     model.Reminder
				runAt int64
			)
			if err := rows.Scan(&r.ID, &r.Handle, &r.ChatID, &runAt, &r.Attempts, &r.LastError); err != nil {
				rows.Close()
				return fmt.Errorf("sqlstore: scanning reminder: %w", err)
			}
			r.RunAt = time.Unix(runAt, 0)
			r.Status = model.ReminderClaimed
			claimed = append(claimed, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("sqlstore: iterating reminders: %w", err)
		}
		// Close before issuing updates on the same connection.
		rows.Close()

		for _, r := range claimed {
			_, err := tx.ExecContext(ctx, s.rebind(
				`UPDATE reminders SET status = ?, claimed_at = ? WHERE id = ?`),
				string(model.ReminderClaimed), now.Unix(), r.ID,
			)
			if err != nil {
				return fmt.Errorf("sqlstore: claiming reminder %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE reminders SET status = ? WHERE id = ?`), string(model.ReminderSent), id)
		if err != nil {
			return fmt.Errorf("sqlstore: marking reminder %s sent: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("reminder", id)
		}
		return nil
	})
}

// RetryReminder puts a failed reminder back to pending at nextRun, or marks it
// failed once maxAttempts is reached.
func (s *Store) RetryReminder(ctx context.Context, id string, nextRun time.Time, lastErr string, maxAttempts int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var attempts int
		err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT attempts FROM reminders WHERE id = ?`), id).Scan(&attempts)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("reminder", id)
			}
			return fmt.Errorf("sqlstore: loading reminder %s: %w", id, err)
		}

		attempts++
		status := model.ReminderPending
		if attempts >= maxAttempts {
			status = model.ReminderFailed
		}

		_, err = tx.ExecContext(ctx, s.rebind(
			`UPDATE reminders SET status = ?, attempts = ?, run_at = ?, last_error = ?, claimed_at = 0
			 WHERE id = ?`),
			string(status), attempts, nextRun.Unix(), lastErr, id,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: rescheduling reminder %s: %w", id, err)
		}
		return nil
	})
}
