package notifier

import (
	"context"
	"log/slog"
	"time"
)

// Cadence is one periodic task.
type Cadence struct {
	Name string
	// Next returns the first fire time strictly after now.
	Next func(now time.Time) time.Time
	// Fire runs the task for the instant it was scheduled at. A returned
	// error is a loop-level failure; per-handle failures are handled inside.
	Fire func(ctx context.Context, at time.Time) error
}

// runCadence loops until ctx is cancelled: wait for the next fire time, fire,
// and after a failed run wait the backoff before computing the next time.
func (n *Notifier) runCadence(ctx context.Context, c Cadence) {
	n.logger.Info("cadence started", slog.String("cadence", c.Name))

	for {
		now := n.clock()
		at := c.Next(now)
		if err := n.sleep(ctx, at.Sub(now)); err != nil {
			n.logger.Info("cadence stopped", slog.String("cadence", c.Name))
			return
		}

		if err := c.Fire(ctx, at); err != nil {
			n.logger.Error("cadence run failed",
				slog.String("cadence", c.Name),
				slog.Time("at", at),
				slog.String("error", err.Error()),
			)
			if err := n.sleep(ctx, n.backoff); err != nil {
				n.logger.Info("cadence stopped", slog.String("cadence", c.Name))
				return
			}
		}
	}
}

// NextMidnight returns the next local midnight after now.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// NextWeekly returns the next occurrence of weekday at hour:00 after now, in
// now's location.
func NextWeekly(now time.Time, weekday time.Weekday, hour int) time.Time {
	y, m, d := now.Date()
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	at := time.Date(y, m, d+days, hour, 0, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 7)
	}
	return at
}

// Every returns a Next function firing on multiples of d.
func Every(d time.Duration) func(now time.Time) time.Time {
	return func(now time.Time) time.Time {
		return now.Truncate(d).Add(d)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
