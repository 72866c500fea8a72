package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chuikova-e/nutritioner-bot/internal/accumulator"
	"github.com/chuikova-e/nutritioner-bot/internal/analysis"
	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/nutrition"
)

const (
	reminderDelay = 24 * time.Hour

	// A weigh-in this close to the target counts as reaching it.
	targetTolerance = 0.1
)

var (
	collectButtons = []Button{
		{ID: ButtonAddMore, Label: "➕ Добавить ещё"},
		{ID: ButtonStartAnalysis, Label: "🔍 Начать анализ"},
		{ID: ButtonCancel, Label: "✖️ Отмена"},
	}
	resultButtons = []Button{
		{ID: ButtonCorrect, Label: "✅ Верно"},
		{ID: ButtonAddContext, Label: "✏️ Уточнить"},
		{ID: ButtonCancel, Label: "✖️ Отмена"},
	}
)

// ===== COLLECTING =====

// collect buffers a photo, text or voice note and shows what has been
// gathered so far. A grouped photo that completes a batch goes straight to
// analysis.
func (m *Machine) collect(ctx context.Context, s *session, ev Event) (State, error) {
	if s.result != nil && ev.Kind == EventPhoto && ev.GroupToken != "" && ev.GroupToken == s.result.GroupToken {
		return m.holdOverflow(ctx, s, ev)
	}

	var notes []string
	if s.result != nil {
		s.result = nil
		notes = append(notes, textPreviousDropped)
	}

	switch ev.Kind {
	case EventPhoto:
		img, err := ev.media(ctx)
		if err != nil {
			return Idle, fmt.Errorf("downloading photo: %w", err)
		}
		batch, complete := m.acc.AddPhoto(s.handle, img, ev.GroupToken)
		if complete {
			if ev.Text != "" {
				batch.Texts = append(batch.Texts, ev.Text)
			}
			m.logger.Info("media group complete",
				slog.String("handle", s.handle),
				slog.String("group", ev.GroupToken),
				slog.Int("photos", len(batch.Photos)),
			)
			return m.runAnalysis(ctx, s, ev, batch)
		}
		if ev.Text != "" {
			m.acc.AddText(s.handle, ev.Text)
		}

	case EventVoice:
		audio, err := ev.media(ctx)
		if err != nil {
			return Idle, fmt.Errorf("downloading voice: %w", err)
		}
		transcript, err := m.analyzer.Transcribe(ctx, audio)
		if err != nil {
			return Idle, err
		}
		m.acc.AddVoiceTranscript(s.handle, transcript)
		notes = append(notes, "🎤 Распознано: "+transcript)

	default:
		m.acc.AddText(s.handle, ev.Text)
	}

	notes = append(notes, statusSummary(m.acc.Snapshot(s.handle)))
	m.send(ctx, ev.ChatID, Reply{Text: strings.Join(notes, "\n\n"), Buttons: collectButtons})
	return Collecting, nil
}

// holdOverflow buffers a photo from the album whose first batch is still
// waiting for a verdict. The buffer carries no group token, so it never
// completes on its own; after the result is committed the user is asked to
// analyze the rest.
func (m *Machine) holdOverflow(ctx context.Context, s *session, ev Event) (State, error) {
	img, err := ev.media(ctx)
	if err != nil {
		return Idle, fmt.Errorf("downloading photo: %w", err)
	}
	m.acc.AddPhoto(s.handle, img, "")
	if ev.Text != "" {
		m.acc.AddText(s.handle, ev.Text)
	}

	held := len(m.acc.Snapshot(s.handle).Photos)
	m.logger.Info("album overflow held",
		slog.String("handle", s.handle),
		slog.String("group", ev.GroupToken),
		slog.Int("held", held),
	)
	m.send(ctx, ev.ChatID, Reply{
		Text:    fmt.Sprintf(textOverflowHeld, accumulator.BatchLimit, held),
		Buttons: resultButtons,
	})
	return s.state, nil
}

func statusSummary(in accumulator.PendingInput) string {
	voice := "нет"
	if in.HasVoice {
		voice = "да"
	}
	return fmt.Sprintf("📥 Получено: фото - %d, текст - %d, голос - %s\nДобавить ещё или начать анализ?",
		len(in.Photos), len(in.Texts), voice)
}

func (m *Machine) addMore(ctx context.Context, s *session, ev Event) (State, error) {
	m.send(ctx, ev.ChatID, Reply{Text: textSendMore})
	return Collecting, nil
}

// extendResult turns a shown result back into a collection: its photos and
// context are buffered again so the next analysis covers old and new input.
func (m *Machine) extendResult(ctx context.Context, s *session, ev Event) (State, error) {
	res := s.result
	s.result = nil
	if res != nil {
		for _, p := range res.Photos {
			m.acc.AddPhoto(s.handle, p, "")
		}
		if res.Context != "" {
			m.acc.AddText(s.handle, res.Context)
		}
	}
	m.send(ctx, ev.ChatID, Reply{Text: textSendMore})
	return Collecting, nil
}

// ===== ANALYSIS =====

func (m *Machine) startAnalysis(ctx context.Context, s *session, ev Event) (State, error) {
	input := m.acc.Take(s.handle)
	if input.Empty() {
		m.send(ctx, ev.ChatID, Reply{Text: textNothingToDo})
		return s.state, nil
	}
	return m.runAnalysis(ctx, s, ev, input)
}

func (m *Machine) runAnalysis(ctx context.Context, s *session, ev Event, input accumulator.PendingInput) (State, error) {
	m.acc.Clear(s.handle)
	m.send(ctx, ev.ChatID, Reply{Text: textAnalyzing})

	description := input.Context()
	narrative, err := m.analyzer.Analyze(ctx, input.Photos, description)
	if err != nil {
		return Idle, err
	}

	s.result = &Result{
		Token:      uuid.NewString(),
		Narrative:  narrative,
		Photos:     input.Photos,
		Context:    description,
		GroupToken: input.GroupToken,
	}
	m.send(ctx, ev.ChatID, resultReply(narrative))
	return AwaitingFeedback, nil
}

func resultReply(narrative string) Reply {
	return Reply{
		Text:    narrative + "\n\n" + textIsCorrect,
		HTML:    true,
		Buttons: resultButtons,
	}
}

func (m *Machine) askContext(ctx context.Context, s *session, ev Event) (State, error) {
	m.send(ctx, ev.ChatID, Reply{Text: textAskContext})
	return AwaitingContext, nil
}

// refine re-runs the analysis on the same photos with the user's extra
// context appended to what was used before.
func (m *Machine) refine(ctx context.Context, s *session, ev Event) (State, error) {
	res := s.result
	if res == nil {
		return m.collect(ctx, s, ev)
	}

	extra := strings.TrimSpace(ev.Text)
	if ev.Kind == EventVoice {
		audio, err := ev.media(ctx)
		if err != nil {
			return Idle, fmt.Errorf("downloading voice: %w", err)
		}
		if extra, err = m.analyzer.Transcribe(ctx, audio); err != nil {
			return Idle, err
		}
	}
	if extra == "" {
		m.send(ctx, ev.ChatID, Reply{Text: textAskContext})
		return AwaitingContext, nil
	}

	combined := extra
	if res.Context != "" {
		combined = res.Context + ". Additional context: " + extra
	}

	m.send(ctx, ev.ChatID, Reply{Text: textAnalyzing})
	narrative, err := m.analyzer.Analyze(ctx, res.Photos, combined)
	if err != nil {
		return Idle, err
	}

	s.result = &Result{
		Token:      uuid.NewString(),
		Narrative:  narrative,
		Photos:     res.Photos,
		Context:    combined,
		GroupToken: res.GroupToken,
	}
	m.send(ctx, ev.ChatID, resultReply(narrative))
	return AwaitingFeedback, nil
}

// commit stores the pending result. The result is taken out of the session
// before the write, so a second "correct" finds nothing to commit.
func (m *Machine) commit(ctx context.Context, s *session, ev Event) (State, error) {
	res := s.result
	s.result = nil
	if res == nil {
		return m.stale(ctx, s, ev)
	}

	now := m.now()
	rec := &model.DailyRecord{
		Handle:      s.handle,
		Date:        now.Format(model.DateLayout),
		Time:        now.Format(model.TimeLayout),
		Narrative:   res.Narrative,
		CommitToken: res.Token,
	}
	if err := m.ledger.AppendDailyRecord(ctx, rec); err != nil {
		return Idle, ledgerErr("append daily record", err)
	}
	m.logger.Info("meal committed",
		slog.String("handle", s.handle),
		slog.String("record_id", rec.ID),
		slog.Float64("calories", rec.Calories),
	)

	if m.archiver != nil && len(res.Photos) > 0 {
		if err := m.archiver.Archive(ctx, rec, res.Photos); err != nil {
			m.logger.Warn("archiving meal photos failed",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	text := textSaved
	if total, err := m.ledger.DailyCalories(ctx, s.handle, now); err == nil {
		text += fmt.Sprintf("\nСегодня: %.0f ккал", total)
	}

	// Photos held back from a long album are still waiting.
	if rest := m.acc.Snapshot(s.handle); !rest.Empty() {
		m.send(ctx, ev.ChatID, Reply{Text: text})
		m.send(ctx, ev.ChatID, Reply{Text: statusSummary(rest), Buttons: collectButtons})
		return Collecting, nil
	}
	m.send(ctx, ev.ChatID, Reply{Text: text})
	return Idle, nil
}

// stale answers a result button pressed when no result is pending, e.g. a
// second tap on "correct".
func (m *Machine) stale(ctx context.Context, s *session, ev Event) (State, error) {
	m.send(ctx, ev.ChatID, Reply{Text: textNoResult})
	return s.state, nil
}

func (m *Machine) cancel(ctx context.Context, s *session, ev Event) (State, error) {
	m.reset(s)
	m.send(ctx, ev.ChatID, Reply{Text: textCancelled, RemoveKeyboard: true})
	return Idle, nil
}

// ===== GOALS =====

func (m *Machine) askGoals(ctx context.Context, s *session, ev Event) (State, error) {
	m.reset(s)
	m.send(ctx, ev.ChatID, Reply{Text: textAskGoals, RemoveKeyboard: true})
	return AwaitingGoals, nil
}

// saveGoals stores the text verbatim.
func (m *Machine) saveGoals(ctx context.Context, s *session, ev Event) (State, error) {
	if strings.TrimSpace(ev.Text) == "" {
		m.send(ctx, ev.ChatID, Reply{Text: textEmptyGoals})
		return AwaitingGoals, nil
	}
	if err := m.ledger.UpsertGoals(ctx, s.handle, ev.Text, m.now()); err != nil {
		return Idle, ledgerErr("upsert goals", err)
	}

	text := textGoalsSaved
	if target, ok := nutrition.CalorieTarget(ev.Text); ok {
		text += fmt.Sprintf("\nДневная норма: %.0f ккал", target)
	}
	m.send(ctx, ev.ChatID, Reply{Text: text})
	return Idle, nil
}

// ===== WEIGHT =====

func (m *Machine) askWeight(ctx context.Context, s *session, ev Event) (State, error) {
	m.reset(s)
	m.send(ctx, ev.ChatID, Reply{Text: textAskWeight, RemoveKeyboard: true})
	return AwaitingWeight, nil
}

func (m *Machine) askTargetWeight(ctx context.Context, s *session, ev Event) (State, error) {
	m.reset(s)
	m.send(ctx, ev.ChatID, Reply{Text: textAskTargetWeight, RemoveKeyboard: true})
	return AwaitingTargetWeight, nil
}

// saveWeight records a weigh-in and replies with the weekly progress report.
// Invalid input re-prompts without limit.
func (m *Machine) saveWeight(ctx context.Context, s *session, ev Event) (State, error) {
	weight, err := nutrition.ParseWeight(ev.Text)
	if err != nil {
		m.send(ctx, ev.ChatID, Reply{Text: textInvalidWeight})
		return AwaitingWeight, nil
	}

	now := m.now()
	if _, err := m.ledger.AppendWeightMeasurement(ctx, s.handle, weight, now); err != nil {
		return Idle, ledgerErr("append weight", err)
	}
	m.send(ctx, ev.ChatID, Reply{Text: textWeightSaved})

	in, err := m.progressInput(ctx, s.handle, weight, now)
	if err != nil {
		return Idle, err
	}
	report, err := m.analyzer.Progress(ctx, in)
	if err != nil {
		return Idle, err
	}
	if in.TargetWeight != nil {
		report += forecast(in.History, *in.TargetWeight)
	}

	m.send(ctx, ev.ChatID, Reply{Text: report, HTML: true})
	return Idle, nil
}

// progressInput gathers the last 7 days of meals (today included), the two
// latest weigh-ins and both goals.
func (m *Machine) progressInput(ctx context.Context, handle string, weight float64, now time.Time) (analysis.ProgressInput, error) {
	in := analysis.ProgressInput{CurrentWeight: weight}

	records, err := m.ledger.WeeklyRecords(ctx, handle, now.AddDate(0, 0, -6))
	if err != nil {
		return in, ledgerErr("weekly records", err)
	}
	in.Records = records

	history, err := m.ledger.WeightHistory(ctx, handle, 2)
	if err != nil {
		return in, ledgerErr("weight history", err)
	}
	in.History = history

	goal, err := m.ledger.GetWeightGoal(ctx, handle)
	switch {
	case err == nil:
		target := goal.TargetWeight
		in.TargetWeight = &target
	case !errors.Is(err, apperror.ErrNotFound):
		return in, ledgerErr("weight goal", err)
	}

	goals, err := m.ledger.GetGoals(ctx, handle)
	switch {
	case err == nil:
		in.Goals = goals.Goals
	case !errors.Is(err, apperror.ErrNotFound):
		return in, ledgerErr("goals", err)
	}

	return in, nil
}

// forecast extrapolates the latest weekly change towards the target.
func forecast(history []model.WeightMeasurement, target float64) string {
	if len(history) > 0 && math.Abs(history[0].Weight-target) <= targetTolerance {
		return "\n\n" + textTargetReached
	}
	weeks, ok := nutrition.WeeksToTarget(history, target)
	if !ok {
		return ""
	}
	if weeks < 0 {
		return "\n\n⚠️ Сейчас вес меняется в сторону от цели."
	}
	return fmt.Sprintf("\n\n🎯 При текущем темпе до цели примерно %d нед.", int(math.Ceil(weeks)))
}

func (m *Machine) saveTargetWeight(ctx context.Context, s *session, ev Event) (State, error) {
	target, err := nutrition.ParseWeight(ev.Text)
	if err != nil {
		m.send(ctx, ev.ChatID, Reply{Text: textInvalidWeight})
		return AwaitingTargetWeight, nil
	}
	if err := m.ledger.UpsertWeightGoal(ctx, s.handle, target, m.now()); err != nil {
		return Idle, ledgerErr("upsert weight goal", err)
	}
	m.send(ctx, ev.ChatID, Reply{Text: fmt.Sprintf("Целевой вес сохранён: %s кг ✅", formatKg(target))})
	return Idle, nil
}

// remindTomorrow schedules the weigh-in prompt again in 24 hours.
func (m *Machine) remindTomorrow(ctx context.Context, s *session, ev Event) (State, error) {
	m.reset(s)
	r := &model.Reminder{
		Handle: s.handle,
		ChatID: ev.ChatID,
		RunAt:  m.clock().Add(reminderDelay),
	}
	if err := m.ledger.ScheduleReminder(ctx, r); err != nil {
		return Idle, ledgerErr("schedule reminder", err)
	}
	m.send(ctx, ev.ChatID, Reply{Text: textReminderSet, RemoveKeyboard: true})
	return Idle, nil
}

func formatKg(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}
