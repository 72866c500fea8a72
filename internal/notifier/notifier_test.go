package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuikova-e/nutritioner-bot/internal/conversation"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/repository/sqlstore"
)

var base = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) // a Sunday

type fakeSender struct {
	mu      sync.Mutex
	failFor map[int64]bool
	sent    map[int64][]conversation.Reply
}

func (f *fakeSender) Send(_ context.Context, chatID int64, r conversation.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return errors.New("chat not found")
	}
	if f.sent == nil {
		f.sent = make(map[int64][]conversation.Reply)
	}
	f.sent[chatID] = append(f.sent[chatID], r)
	return nil
}

type fakeComparer struct {
	calls int
}

func (f *fakeComparer) CompareToGoals(_ context.Context, records []model.DailyRecord, goals string) (string, error) {
	f.calls++
	return "Цели выполнены", nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addRecord(t *testing.T, s *sqlstore.Store, handle, date, clock, narrative string) {
	t.Helper()
	err := s.AppendDailyRecord(context.Background(), &model.DailyRecord{
		Handle: handle, Date: date, Time: clock, Narrative: narrative,
	})
	require.NoError(t, err)
}

func addContact(t *testing.T, s *sqlstore.Store, handle string, chatID int64) {
	t.Helper()
	err := s.RememberContact(context.Background(), &model.ChatContact{Handle: handle, ChatID: chatID})
	require.NoError(t, err)
}

func TestNextMidnight(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"evening", time.Date(2026, 10, 18, 23, 59, 0, 0, msk), time.Date(2026, 10, 19, 0, 0, 0, 0, msk)},
		{"exactly midnight", time.Date(2026, 10, 18, 0, 0, 0, 0, msk), time.Date(2026, 10, 19, 0, 0, 0, 0, msk)},
		{"month end", time.Date(2026, 10, 31, 12, 0, 0, 0, msk), time.Date(2026, 11, 1, 0, 0, 0, 0, msk)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(NextMidnight(tt.now)), "got %v", NextMidnight(tt.now))
		})
	}
}

func TestNextWeekly(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"sunday before nine", time.Date(2026, 10, 18, 8, 59, 0, 0, time.UTC), time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)},
		{"sunday at nine", time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), time.Date(2026, 10, 25, 9, 0, 0, 0, time.UTC)},
		{"monday", time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), time.Date(2026, 10, 25, 9, 0, 0, 0, time.UTC)},
		{"saturday night", time.Date(2026, 10, 24, 23, 0, 0, 0, time.UTC), time.Date(2026, 10, 25, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextWeekly(tt.now, time.Sunday, 9)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestEvery(t *testing.T) {
	next := Every(time.Minute)
	got := next(time.Date(2026, 10, 18, 10, 15, 30, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 18, 10, 16, 0, 0, time.UTC), got)
}

func TestRunCadence_BacksOffAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	n := New(Deps{
		Logger: discard(),
		Now:    func() time.Time { return base },
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	})

	fires := 0
	n.runCadence(ctx, Cadence{
		Name: "test",
		Next: func(now time.Time) time.Time { return now.Add(time.Hour) },
		Fire: func(context.Context, time.Time) error {
			fires++
			return errors.New("boom")
		},
	})

	assert.Equal(t, 1, fires)
	assert.Equal(t, []time.Duration{time.Hour, DefaultBackoff, time.Hour}, sleeps)
}

func TestDailySummary_IsolatesHandles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := "2026-10-17"

	addRecord(t, store, "alice", day, "13:40:00", "Суп 250 ккал")
	addRecord(t, store, "alice", day, "08:05:00", "Овсянка 300 ккал")
	addRecord(t, store, "bob", day, "09:00:00", "Яичница 400 ккал")
	addRecord(t, store, "carol", day, "09:00:00", "Каша 200 ккал") // no contact
	addRecord(t, store, "dave", "2026-10-16", "09:00:00", "Чай 10 ккал")
	addContact(t, store, "alice", 1)
	addContact(t, store, "bob", 2)
	addContact(t, store, "dave", 4)
	require.NoError(t, store.UpsertGoals(ctx, "alice", "2000 ккал", base))

	sender := &fakeSender{failFor: map[int64]bool{2: true}}
	comparer := &fakeComparer{}
	n := New(Deps{Ledger: store, Comparer: comparer, Sender: sender, Logger: discard(), Location: time.UTC})

	require.NoError(t, n.DailySummary(ctx, base.AddDate(0, 0, -1)))

	require.Len(t, sender.sent[1], 1)
	text := sender.sent[1][0].Text
	assert.Contains(t, text, "Итоги дня 17.10.2026")
	assert.Contains(t, text, "Всего: 550 ккал")
	assert.Contains(t, text, "[08:05] Овсянка 300 ккал\n\n[13:40] Суп 250 ккал")
	assert.Contains(t, text, "Цели выполнены")
	assert.Equal(t, 1, comparer.calls, "only alice has goals")
	assert.Empty(t, sender.sent[4], "nothing logged that day")
}

func TestWeeklyWeighIn(t *testing.T) {
	store := newTestStore(t)
	addRecord(t, store, "alice", "2026-10-17", "08:00:00", "x")
	addRecord(t, store, "bob", "2026-10-17", "08:00:00", "x")
	addContact(t, store, "alice", 1)
	addContact(t, store, "bob", 2)

	sender := &fakeSender{failFor: map[int64]bool{1: true}}
	n := New(Deps{Ledger: store, Sender: sender, Logger: discard()})

	require.NoError(t, n.WeeklyWeighIn(context.Background()))

	require.Len(t, sender.sent[2], 1)
	assert.Equal(t, conversation.WeighInPrompt(), sender.sent[2][0])
}

func TestDeliverReminders_RetriesWithBackoff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.ScheduleReminder(ctx, &model.Reminder{Handle: "alice", ChatID: 1, RunAt: base}))

	sender := &fakeSender{failFor: map[int64]bool{1: true}}
	n := New(Deps{Ledger: store, Sender: sender, Logger: discard()})

	require.NoError(t, n.DeliverReminders(ctx, base))

	due, err := store.ClaimDueReminders(ctx, base.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "retry waits 2s after the first failure")

	sender.failFor = nil
	// Re-deliver once the retry is due.
	require.NoError(t, n.DeliverReminders(ctx, base.Add(2*time.Second)))
	require.Len(t, sender.sent[1], 1)
	assert.Equal(t, conversation.WeighInPrompt(), sender.sent[1][0])

	due, err = store.ClaimDueReminders(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "a sent reminder is not delivered again")
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 16*time.Second, retryDelay(4))
	assert.Equal(t, 600*time.Second, retryDelay(12))
}
