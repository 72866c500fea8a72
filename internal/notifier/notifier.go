// Package notifier runs the bot's periodic messages: the daily summary at
// local midnight, the weekly weigh-in prompt on Sunday morning, and the
// "remind tomorrow" reminders.
//
// The notifier only reads the ledger (reminder bookkeeping aside) and never
// touches conversation state.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/conversation"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

const (
	DefaultBackoff      = 60 * time.Second
	DefaultPollInterval = time.Minute

	WeighInDay  = time.Sunday
	WeighInHour = 9

	reminderBatch       = 50
	reminderMaxAttempts = 5
	reminderMaxDelay    = 600 // seconds
)

type Ledger interface {
	DistinctActiveHandles(ctx context.Context) ([]string, error)
	DailyRecords(ctx context.Context, handle string, day time.Time) ([]model.DailyRecord, error)
	DailyCalories(ctx context.Context, handle string, day time.Time) (float64, error)
	GetGoals(ctx context.Context, handle string) (*model.NutritionGoals, error)
	GetContact(ctx context.Context, handle string) (*model.ChatContact, error)
	ClaimDueReminders(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	MarkReminderSent(ctx context.Context, id string) error
	RetryReminder(ctx context.Context, id string, nextRun time.Time, lastErr string, maxAttempts int) error
}

type Comparer interface {
	CompareToGoals(ctx context.Context, records []model.DailyRecord, goals string) (string, error)
}

type Deps struct {
	Ledger       Ledger
	Comparer     Comparer
	Sender       conversation.Sender
	Location     *time.Location
	Logger       *slog.Logger
	Backoff      time.Duration
	PollInterval time.Duration

	// Now and Sleep replace the wall clock in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

type Notifier struct {
	ledger   Ledger
	comparer Comparer
	sender   conversation.Sender
	loc      *time.Location
	logger   *slog.Logger
	backoff  time.Duration
	poll     time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(d Deps) *Notifier {
	n := &Notifier{
		ledger:   d.Ledger,
		comparer: d.Comparer,
		sender:   d.Sender,
		loc:      d.Location,
		logger:   d.Logger,
		backoff:  d.Backoff,
		poll:     d.PollInterval,
		now:      d.Now,
		sleep:    d.Sleep,
	}
	if n.loc == nil {
		n.loc = time.Local
	}
	if n.backoff <= 0 {
		n.backoff = DefaultBackoff
	}
	if n.poll <= 0 {
		n.poll = DefaultPollInterval
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.sleep == nil {
		n.sleep = sleepContext
	}
	return n
}

// Cadences lists the periodic tasks Run starts.
func (n *Notifier) Cadences() []Cadence {
	return []Cadence{
		{
			Name: "daily_summary",
			Next: NextMidnight,
			Fire: func(ctx context.Context, at time.Time) error {
				return n.DailySummary(ctx, at.AddDate(0, 0, -1))
			},
		},
		{
			Name: "weekly_weigh_in",
			Next: func(now time.Time) time.Time { return NextWeekly(now, WeighInDay, WeighInHour) },
			Fire: func(ctx context.Context, _ time.Time) error {
				return n.WeeklyWeighIn(ctx)
			},
		},
		{
			Name: "reminders",
			Next: Every(n.poll),
			Fire: func(ctx context.Context, at time.Time) error {
				return n.DeliverReminders(ctx, at)
			},
		},
	}
}

// Run starts every cadence and blocks until ctx is cancelled and all of them
// have returned.
func (n *Notifier) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range n.Cadences() {
		wg.Add(1)
		go func(c Cadence) {
			defer wg.Done()
			n.runCadence(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (n *Notifier) clock() time.Time {
	return n.now().In(n.loc)
}

// DailySummary sends every active handle the summary of day. Handles that
// logged nothing that day are skipped.
func (n *Notifier) DailySummary(ctx context.Context, day time.Time) error {
	handles, err := n.ledger.DistinctActiveHandles(ctx)
	if err != nil {
		return fmt.Errorf("notifier: listing active handles: %w", err)
	}

	sent := 0
	for _, handle := range handles {
		ok, err := n.summarize(ctx, handle, day)
		if err != nil {
			n.logger.Error("daily summary failed",
				slog.String("handle", handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			sent++
		}
	}

	n.logger.Info("daily summaries sent",
		slog.String("day", day.Format(model.DateLayout)),
		slog.Int("handles", len(handles)),
		slog.Int("sent", sent),
	)
	return nil
}

func (n *Notifier) summarize(ctx context.Context, handle string, day time.Time) (bool, error) {
	records, err := n.ledger.DailyRecords(ctx, handle, day)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	total, err := n.ledger.DailyCalories(ctx, handle, day)
	if err != nil {
		return false, err
	}
	contact, err := n.ledger.GetContact(ctx, handle)
	if err != nil {
		return false, err
	}

	text := summaryText(day, records, total)

	goals, err := n.ledger.GetGoals(ctx, handle)
	switch {
	case err == nil:
		comparison, err := n.comparer.CompareToGoals(ctx, records, goals.Goals)
		if err != nil {
			// The summary is still worth sending without the comparison.
			n.logger.Warn("goal comparison failed",
				slog.String("handle", handle),
				slog.String("error", err.Error()),
			)
		} else if comparison != "" {
			text += "\n\n" + comparison
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return false, err
	}

	if err := n.sender.Send(ctx, contact.ChatID, conversation.Reply{Text: text, HTML: true}); err != nil {
		return false, err
	}
	return true, nil
}

func summaryText(day time.Time, records []model.DailyRecord, total float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Итоги дня %s\n\nВсего: %.0f ккал", day.Format("02.01.2006"), total)
	for _, r := range records {
		fmt.Fprintf(&b, "\n\n[%s] %s", r.Clock(), r.Narrative)
	}
	return b.String()
}

// WeeklyWeighIn prompts every active handle for their weight.
func (n *Notifier) WeeklyWeighIn(ctx context.Context) error {
	handles, err := n.ledger.DistinctActiveHandles(ctx)
	if err != nil {
		return fmt.Errorf("notifier: listing active handles: %w", err)
	}

	for _, handle := range handles {
		contact, err := n.ledger.GetContact(ctx, handle)
		if err == nil {
			err = n.sender.Send(ctx, contact.ChatID, conversation.WeighInPrompt())
		}
		if err != nil {
			n.logger.Error("weigh-in prompt failed",
				slog.String("handle", handle),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// DeliverReminders sends the weigh-in prompt for every reminder due at now.
// Failed sends are retried later with exponential backoff.
func (n *Notifier) DeliverReminders(ctx context.Context, now time.Time) error {
	due, err := n.ledger.ClaimDueReminders(ctx, now, reminderBatch)
	if err != nil {
		return fmt.Errorf("notifier: claiming reminders: %w", err)
	}

	for _, r := range due {
		if err := n.sender.Send(ctx, r.ChatID, conversation.WeighInPrompt()); err != nil {
			n.retry(ctx, r, now, err)
			continue
		}
		if err := n.ledger.MarkReminderSent(ctx, r.ID); err != nil {
			n.logger.Error("marking reminder sent failed",
				slog.String("reminder_id", r.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (n *Notifier) retry(ctx context.Context, r model.Reminder, now time.Time, cause error) {
	next := now.Add(retryDelay(r.Attempts + 1))
	n.logger.Warn("reminder delivery failed",
		slog.String("reminder_id", r.ID),
		slog.String("handle", r.Handle),
		slog.Int("attempt", r.Attempts+1),
		slog.String("error", cause.Error()),
	)
	if err := n.ledger.RetryReminder(ctx, r.ID, next, cause.Error(), reminderMaxAttempts); err != nil {
		n.logger.Error("rescheduling reminder failed",
			slog.String("reminder_id", r.ID),
			slog.String("error", err.Error()),
		)
	}
}

// retryDelay is 2^attempt seconds, capped at ten minutes.
func retryDelay(attempt int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempt)), reminderMaxDelay)
	return time.Duration(sec) * time.Second
}
