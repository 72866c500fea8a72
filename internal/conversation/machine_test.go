package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuikova-e/nutritioner-bot/internal/analysis"
	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/repository"
	"github.com/chuikova-e/nutritioner-bot/internal/repository/sqlstore"
)

const (
	testHandle = "alice"
	testChat   = int64(100)
)

var testNow = time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)

type fakeGate struct {
	mu     sync.Mutex
	denied map[string]bool
}

func (g *fakeGate) Allowed(_ int64, handle string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return handle != "" && !g.denied[handle]
}

func (g *fakeGate) deny(handle string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.denied == nil {
		g.denied = make(map[string]bool)
	}
	g.denied[handle] = true
}

type fakeAnalyzer struct {
	narrative  string
	transcript string
	progress   string
	err        error

	descriptions []string
	photoCounts  []int
	progressIn   []analysis.ProgressInput
}

func (f *fakeAnalyzer) Analyze(_ context.Context, images [][]byte, description string) (string, error) {
	f.descriptions = append(f.descriptions, description)
	f.photoCounts = append(f.photoCounts, len(images))
	if f.err != nil {
		return "", apperror.Gateway("analyze", f.err)
	}
	return f.narrative, nil
}

func (f *fakeAnalyzer) Transcribe(_ context.Context, _ []byte) (string, error) {
	if f.err != nil {
		return "", apperror.Gateway("transcribe", f.err)
	}
	return f.transcript, nil
}

func (f *fakeAnalyzer) Progress(_ context.Context, in analysis.ProgressInput) (string, error) {
	f.progressIn = append(f.progressIn, in)
	if f.err != nil {
		return "", apperror.Gateway("progress", f.err)
	}
	return f.progress, nil
}

type sentReply struct {
	chatID int64
	reply  Reply
}

type fakeSender struct {
	mu      sync.Mutex
	replies []sentReply
}

func (f *fakeSender) Send(_ context.Context, chatID int64, r Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{chatID: chatID, reply: r})
	return nil
}

func (f *fakeSender) last(t *testing.T) Reply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.replies, "no reply was sent")
	return f.replies[len(f.replies)-1].reply
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.replies))
	for _, r := range f.replies {
		out = append(out, r.reply.Text)
	}
	return out
}

// failingLedger breaks the writes of the real store.
type failingLedger struct {
	repository.Ledger
}

func (failingLedger) AppendDailyRecord(context.Context, *model.DailyRecord) error {
	return errors.New("disk full")
}

type fixture struct {
	machine  *Machine
	gate     *fakeGate
	analyzer *fakeAnalyzer
	sender   *fakeSender
	store    *sqlstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		gate:     &fakeGate{},
		analyzer: &fakeAnalyzer{narrative: "Борщ 300 г\nИтого: 450 ккал", progress: "Хороший прогресс"},
		sender:   &fakeSender{},
		store:    store,
	}
	f.machine = New(Deps{
		Gate:     f.gate,
		Analyzer: f.analyzer,
		Ledger:   store,
		Sender:   f.sender,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *fixture) send(ev Event) {
	if ev.Handle == "" {
		ev.Handle = testHandle
	}
	if ev.ChatID == 0 {
		ev.ChatID = testChat
	}
	f.machine.Handle(context.Background(), ev)
}

func (f *fixture) text(s string)      { f.send(Event{Kind: EventText, Text: s}) }
func (f *fixture) button(id string)   { f.send(Event{Kind: EventButton, Button: id}) }
func (f *fixture) command(cmd string) { f.send(Event{Kind: EventCommand, Command: cmd}) }

func (f *fixture) photo(group string) {
	f.send(Event{
		Kind:       EventPhoto,
		GroupToken: group,
		Media:      func(context.Context) ([]byte, error) { return []byte("jpeg"), nil },
	})
}

func TestTransitionTable_IsExhaustive(t *testing.T) {
	table := newTransitionTable()
	for _, st := range allStates {
		for _, tr := range allTriggers {
			assert.NotNil(t, table[st][tr], "missing transition %s/%s", st, tr)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Trigger
		ok   bool
	}{
		{"photo", Event{Kind: EventPhoto}, TriggerPhoto, true},
		{"voice", Event{Kind: EventVoice}, TriggerVoice, true},
		{"plain text", Event{Kind: EventText, Text: "суп"}, TriggerText, true},
		{"enter weight label", Event{Kind: EventText, Text: LabelEnterWeight}, TriggerWeight, true},
		{"remind label", Event{Kind: EventText, Text: LabelRemindTomorrow}, TriggerRemindTomorrow, true},
		{"correct button", Event{Kind: EventButton, Button: ButtonCorrect}, TriggerCorrect, true},
		{"unknown button", Event{Kind: EventButton, Button: "nope"}, 0, false},
		{"analyze command", Event{Kind: EventCommand, Command: "analyze"}, TriggerStartAnalysis, true},
		{"setgoals command", Event{Kind: EventCommand, Command: "setgoals"}, TriggerSetGoals, true},
		{"info command", Event{Kind: EventCommand, Command: "help"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.ev)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHandle_AccessDeniedResetsSession(t *testing.T) {
	f := newFixture(t)

	f.text("овсянка")
	require.Equal(t, Collecting, f.machine.State(testHandle))

	f.gate.deny(testHandle)
	f.text("ещё")

	assert.Equal(t, textAccessDenied, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))
	assert.True(t, f.machine.acc.Snapshot(testHandle).Empty())
}

func TestHandle_UserWithoutHandleIsRefused(t *testing.T) {
	f := newFixture(t)
	f.machine.Handle(context.Background(), Event{Kind: EventText, Text: "hi", ChatID: 7})

	assert.Equal(t, textAccessDenied, f.sender.last(t).Text)
	_, err := f.store.GetContact(context.Background(), "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "refused users are not remembered")
}

func TestHandle_NewMediaGroupReplacesBuffer(t *testing.T) {
	f := newFixture(t)

	f.photo("G")
	f.photo("G")
	assert.Len(t, f.machine.acc.Snapshot(testHandle).Photos, 2)

	f.photo("G2")
	buf := f.machine.acc.Snapshot(testHandle)
	assert.Len(t, buf.Photos, 1)
	assert.Equal(t, "G2", buf.GroupToken)
	assert.Equal(t, Collecting, f.machine.State(testHandle))
	assert.Contains(t, f.sender.last(t).Text, "фото - 1")
}

func TestHandle_FullMediaGroupIsAnalyzed(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.photo("album")
	}

	require.Equal(t, []int{5}, f.analyzer.photoCounts)
	assert.Equal(t, AwaitingFeedback, f.machine.State(testHandle))
	assert.True(t, f.machine.acc.Snapshot(testHandle).Empty())

	last := f.sender.last(t)
	assert.True(t, last.HTML)
	assert.Contains(t, last.Text, "Итого: 450 ккал")
	assert.Len(t, last.Buttons, 3)
}

func TestHandle_LongAlbumKeepsPendingResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		f.photo("album")
	}

	require.Equal(t, []int{5}, f.analyzer.photoCounts, "only the first batch is analyzed")
	assert.Equal(t, AwaitingFeedback, f.machine.State(testHandle))
	assert.Len(t, f.machine.acc.Snapshot(testHandle).Photos, 2)
	assert.Contains(t, f.sender.last(t).Text, "Отложено для следующего анализа: 2")
	assert.Len(t, f.sender.last(t).Buttons, 3)
	for _, text := range f.sender.texts() {
		assert.False(t, strings.Contains(text, textPreviousDropped), "result was dropped: %q", text)
	}

	f.button(ButtonCorrect)

	records, err := f.store.DailyRecords(ctx, testHandle, testNow)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Collecting, f.machine.State(testHandle))
	assert.Contains(t, f.sender.last(t).Text, "фото - 2")

	f.button(ButtonStartAnalysis)
	assert.Equal(t, []int{5, 2}, f.analyzer.photoCounts)
	assert.Equal(t, AwaitingFeedback, f.machine.State(testHandle))
}

func TestHandle_OtherAlbumStillDropsPendingResult(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.photo("first")
	}
	f.photo("second")

	assert.Equal(t, Collecting, f.machine.State(testHandle))
	assert.Contains(t, f.sender.last(t).Text, textPreviousDropped)

	f.button(ButtonCorrect)
	assert.Equal(t, textNoResult, f.sender.last(t).Text)
}

func TestHandle_VoiceIsTranscribedIntoBuffer(t *testing.T) {
	f := newFixture(t)
	f.analyzer.transcript = "гречка с курицей"

	f.send(Event{
		Kind:  EventVoice,
		Media: func(context.Context) ([]byte, error) { return []byte("ogg"), nil },
	})

	buf := f.machine.acc.Snapshot(testHandle)
	assert.True(t, buf.HasVoice)
	assert.Equal(t, []string{"гречка с курицей"}, buf.Texts)
	assert.Contains(t, f.sender.last(t).Text, "🎤 Распознано: гречка с курицей")
	assert.Contains(t, f.sender.last(t).Text, "голос - да")
}

func TestHandle_StartAnalysisWithNothingBuffered(t *testing.T) {
	f := newFixture(t)

	f.button(ButtonStartAnalysis)

	assert.Equal(t, textNothingToDo, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))
	assert.Empty(t, f.analyzer.descriptions)
}

func TestHandle_CorrectTwiceCommitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.text("борщ")
	f.text("со сметаной")
	f.command("analyze")
	require.Equal(t, []string{"борщ\nсо сметаной"}, f.analyzer.descriptions)
	require.Equal(t, AwaitingFeedback, f.machine.State(testHandle))

	f.button(ButtonCorrect)
	assert.Equal(t, Idle, f.machine.State(testHandle))
	assert.Contains(t, f.sender.last(t).Text, "Сегодня: 450 ккал")

	f.button(ButtonCorrect)
	assert.Equal(t, textNoResult, f.sender.last(t).Text)

	records, err := f.store.DailyRecords(ctx, testHandle, testNow)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "12:30:00", records[0].Time)
	assert.Equal(t, 450.0, records[0].Calories)
}

func TestHandle_RefineCombinesContext(t *testing.T) {
	f := newFixture(t)

	f.photo("")
	f.text("борщ")
	f.button(ButtonStartAnalysis)
	f.button(ButtonAddContext)
	require.Equal(t, AwaitingContext, f.machine.State(testHandle))

	f.text("с говядиной")

	require.Len(t, f.analyzer.descriptions, 2)
	assert.Equal(t, "борщ. Additional context: с говядиной", f.analyzer.descriptions[1])
	assert.Equal(t, []int{1, 1}, f.analyzer.photoCounts, "refinement reuses the photos")
	assert.Equal(t, AwaitingFeedback, f.machine.State(testHandle))
}

func TestHandle_RefineWithoutPriorContext(t *testing.T) {
	f := newFixture(t)

	f.photo("")
	f.button(ButtonStartAnalysis)
	f.button(ButtonAddContext)
	f.text("200 грамм")

	require.Len(t, f.analyzer.descriptions, 2)
	assert.Equal(t, "200 грамм", f.analyzer.descriptions[1])
}

func TestHandle_NewInputDropsPendingResult(t *testing.T) {
	f := newFixture(t)

	f.text("суп")
	f.button(ButtonStartAnalysis)
	f.text("котлета")

	assert.Equal(t, Collecting, f.machine.State(testHandle))
	assert.Contains(t, f.sender.last(t).Text, textPreviousDropped)

	f.button(ButtonCorrect)
	assert.Equal(t, textNoResult, f.sender.last(t).Text)
}

func TestHandle_AddMoreKeepsResultInput(t *testing.T) {
	f := newFixture(t)

	f.photo("")
	f.text("салат")
	f.button(ButtonStartAnalysis)
	f.button(ButtonAddMore)

	buf := f.machine.acc.Snapshot(testHandle)
	assert.Len(t, buf.Photos, 1)
	assert.Equal(t, []string{"салат"}, buf.Texts)
	assert.Equal(t, Collecting, f.machine.State(testHandle))
}

func TestHandle_GatewayFailureResets(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = errors.New("timeout")

	f.text("суп")
	f.button(ButtonStartAnalysis)

	assert.Equal(t, textAnalysisFailed, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))
	assert.True(t, f.machine.acc.Snapshot(testHandle).Empty())
}

func TestHandle_LedgerFailureResets(t *testing.T) {
	f := newFixture(t)
	f.machine.ledger = failingLedger{Ledger: f.store}

	f.text("суп")
	f.button(ButtonStartAnalysis)
	f.button(ButtonCorrect)

	assert.Equal(t, textTryLater, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))
}

func TestHandle_CancelClearsEverything(t *testing.T) {
	f := newFixture(t)

	f.photo("G")
	f.text("суп")
	f.button(ButtonCancel)

	assert.Equal(t, textCancelled, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))
	assert.True(t, f.machine.acc.Snapshot(testHandle).Empty())
}

func TestHandle_WeightFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.command("weight")
	require.Equal(t, AwaitingWeight, f.machine.State(testHandle))

	for _, bad := range []string{"abc", "12", "500"} {
		f.text(bad)
		assert.Equal(t, textInvalidWeight, f.sender.last(t).Text, "input %q", bad)
		assert.Equal(t, AwaitingWeight, f.machine.State(testHandle))
	}

	f.text("72,5")

	assert.Equal(t, Idle, f.machine.State(testHandle))
	history, err := f.store.WeightHistory(ctx, testHandle, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 72.5, history[0].Weight)

	require.Len(t, f.analyzer.progressIn, 1)
	assert.Equal(t, 72.5, f.analyzer.progressIn[0].CurrentWeight)
	assert.Nil(t, f.analyzer.progressIn[0].TargetWeight)
	assert.Equal(t, "Хороший прогресс", f.sender.last(t).Text)
	assert.True(t, f.sender.last(t).HTML)
}

func TestHandle_WeightReportIncludesForecast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AppendWeightMeasurement(ctx, testHandle, 73, testNow.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.NoError(t, f.store.UpsertWeightGoal(ctx, testHandle, 65, testNow))

	f.command("weight")
	f.text("72")

	require.Len(t, f.analyzer.progressIn, 1)
	in := f.analyzer.progressIn[0]
	require.NotNil(t, in.TargetWeight)
	assert.Equal(t, 65.0, *in.TargetWeight)
	require.Len(t, in.History, 2)

	// 72 - 73 = -1 kg per week, 7 kg to go.
	assert.Equal(t, "Хороший прогресс\n\n🎯 При текущем темпе до цели примерно 7 нед.", f.sender.last(t).Text)
}

func TestForecast(t *testing.T) {
	w := func(kg ...float64) []model.WeightMeasurement {
		out := make([]model.WeightMeasurement, 0, len(kg))
		for _, v := range kg {
			out = append(out, model.WeightMeasurement{Weight: v})
		}
		return out
	}

	tests := []struct {
		name    string
		history []model.WeightMeasurement
		target  float64
		want    string
	}{
		{"approaching", w(72, 73), 65, "\n\n🎯 При текущем темпе до цели примерно 7 нед."},
		{"moving away", w(74, 73), 65, "\n\n⚠️ Сейчас вес меняется в сторону от цели."},
		{"reached exactly", w(70, 71), 70, "\n\n" + textTargetReached},
		{"within tolerance", w(70.05, 71), 70, "\n\n" + textTargetReached},
		{"reached on first weigh-in", w(65), 65, "\n\n" + textTargetReached},
		{"single measurement", w(72), 65, ""},
		{"flat trend", w(72, 72), 65, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, forecast(tt.history, tt.target))
		})
	}
}

func TestHandle_WeighInLabelStartsWeightFlow(t *testing.T) {
	f := newFixture(t)

	f.text(LabelEnterWeight)

	assert.Equal(t, AwaitingWeight, f.machine.State(testHandle))
	assert.Equal(t, textAskWeight, f.sender.last(t).Text)
}

func TestHandle_TargetWeight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.command("targetweight")
	f.text("65")

	assert.Equal(t, Idle, f.machine.State(testHandle))
	goal, err := f.store.GetWeightGoal(ctx, testHandle)
	require.NoError(t, err)
	assert.Equal(t, 65.0, goal.TargetWeight)
	assert.Equal(t, "Целевой вес сохранён: 65 кг ✅", f.sender.last(t).Text)
}

func TestHandle_GoalsAndCalories(t *testing.T) {
	f := newFixture(t)
	f.analyzer.narrative = "Паста\nИтого: 1500 ккал"

	f.command("calories")
	assert.Contains(t, f.sender.last(t).Text, "Сегодня съедено: 0 ккал")
	assert.Contains(t, f.sender.last(t).Text, textNoGoals)

	f.command("setgoals")
	require.Equal(t, AwaitingGoals, f.machine.State(testHandle))
	f.text("   ")
	assert.Equal(t, textEmptyGoals, f.sender.last(t).Text)

	f.text("калории: 2000")
	assert.Equal(t, Idle, f.machine.State(testHandle))
	assert.Contains(t, f.sender.last(t).Text, "Дневная норма: 2000 ккал")

	f.text("паста")
	f.button(ButtonStartAnalysis)
	f.button(ButtonCorrect)

	f.command("calories")
	reply := f.sender.last(t).Text
	assert.Contains(t, reply, "Сегодня съедено: 1500 ккал")
	assert.Contains(t, reply, "Цель: 2000 ккал")
	assert.Contains(t, reply, "Осталось: 500 ккал")

	f.command("goals")
	assert.Contains(t, f.sender.last(t).Text, "калории: 2000")
	assert.Contains(t, f.sender.last(t).Text, "Целевой вес не задан")
}

func TestHandle_CaloriesOverGoal(t *testing.T) {
	f := newFixture(t)
	f.analyzer.narrative = "Пицца\nИтого: 2300 ккал"

	f.command("setgoals")
	f.text("калории: 2000")
	f.text("пицца")
	f.button(ButtonStartAnalysis)
	f.button(ButtonCorrect)

	f.command("calories")
	reply := f.sender.last(t).Text
	assert.Contains(t, reply, "Сегодня съедено: 2300 ккал")
	assert.Contains(t, reply, "Цель: 2000 ккал")
	assert.Contains(t, reply, "⚠️ Превышение: 300 ккал")
	assert.NotContains(t, reply, "Осталось")
}

func TestHandle_RemindTomorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.text(LabelRemindTomorrow)

	assert.Equal(t, textReminderSet, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))

	due, err := f.store.ClaimDueReminders(ctx, testNow.Add(23*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = f.store.ClaimDueReminders(ctx, testNow.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, testHandle, due[0].Handle)
	assert.Equal(t, testChat, due[0].ChatID)
}

func TestHandle_InfoCommands(t *testing.T) {
	f := newFixture(t)

	f.text("суп")
	f.command("help")
	assert.Equal(t, textHelp, f.sender.last(t).Text)
	assert.Equal(t, Collecting, f.machine.State(testHandle), "/help keeps the collection")

	f.command("start")
	assert.Equal(t, textWelcome, f.sender.last(t).Text)
	assert.Equal(t, Idle, f.machine.State(testHandle))

	f.command("bogus")
	assert.Equal(t, textUnknownCommand, f.sender.last(t).Text)
}

func TestHandle_RemembersContact(t *testing.T) {
	f := newFixture(t)
	f.send(Event{Kind: EventCommand, Command: "help", UserID: 42, ChatID: 555})

	c, err := f.store.GetContact(context.Background(), testHandle)
	require.NoError(t, err)
	assert.Equal(t, int64(555), c.ChatID)
	assert.Equal(t, int64(42), c.UserID)
}

func TestHandle_HandlesAreIndependent(t *testing.T) {
	f := newFixture(t)

	f.text("суп")
	f.send(Event{Kind: EventText, Handle: "bob", ChatID: 200, Text: "каша"})
	f.send(Event{Kind: EventButton, Handle: "bob", ChatID: 200, Button: ButtonCancel})

	assert.Equal(t, Collecting, f.machine.State(testHandle))
	assert.Equal(t, Idle, f.machine.State("bob"))
	assert.Equal(t, []string{"суп"}, f.machine.acc.Snapshot(testHandle).Texts)
}

func TestWeighInPrompt(t *testing.T) {
	r := WeighInPrompt()
	assert.Equal(t, []string{LabelEnterWeight, LabelRemindTomorrow}, r.Keyboard)
	assert.True(t, strings.Contains(r.Text, "взвешивания"))
}
