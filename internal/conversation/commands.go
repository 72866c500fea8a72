package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/nutrition"
)

// handleInfoCommand answers the commands that only read data. /start also
// resets the session. It reports false for commands the transition table
// owns.
func (m *Machine) handleInfoCommand(ctx context.Context, s *session, ev Event) bool {
	switch ev.Command {
	case "start":
		m.reset(s)
		m.send(ctx, ev.ChatID, Reply{Text: textWelcome, RemoveKeyboard: true})
	case "help":
		m.send(ctx, ev.ChatID, Reply{Text: textHelp})
	case "goals":
		m.send(ctx, ev.ChatID, m.goalsReply(ctx, s.handle))
	case "calories":
		m.send(ctx, ev.ChatID, m.caloriesReply(ctx, s.handle))
	default:
		return false
	}
	return true
}

func (m *Machine) goalsReply(ctx context.Context, handle string) Reply {
	var lines []string

	goals, err := m.ledger.GetGoals(ctx, handle)
	switch {
	case err == nil:
		lines = append(lines, "🎯 Ваши цели:\n"+goals.Goals)
	case errors.Is(err, apperror.ErrNotFound):
		lines = append(lines, textNoGoals)
	default:
		m.logLedgerRead("goals", handle, err)
		return Reply{Text: textTryLater}
	}

	target, err := m.ledger.GetWeightGoal(ctx, handle)
	switch {
	case err == nil:
		lines = append(lines, fmt.Sprintf("⚖️ Целевой вес: %s кг", formatKg(target.TargetWeight)))
	case errors.Is(err, apperror.ErrNotFound):
		lines = append(lines, "⚖️ Целевой вес не задан. Используйте /targetweight")
	default:
		m.logLedgerRead("weight goal", handle, err)
		return Reply{Text: textTryLater}
	}

	return Reply{Text: strings.Join(lines, "\n\n")}
}

// caloriesReply reports today's intake against the calorie target found in
// the goals text, when there is one.
func (m *Machine) caloriesReply(ctx context.Context, handle string) Reply {
	today := m.now()
	consumed, err := m.ledger.DailyCalories(ctx, handle, today)
	if err != nil {
		m.logLedgerRead("daily calories", handle, err)
		return Reply{Text: textTryLater}
	}

	text := fmt.Sprintf("📊 Сегодня съедено: %.0f ккал", consumed)

	goals, err := m.ledger.GetGoals(ctx, handle)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return Reply{Text: text + "\n\n" + textNoGoals}
	case err != nil:
		m.logLedgerRead("goals", handle, err)
		return Reply{Text: text}
	}

	target, ok := nutrition.CalorieTarget(goals.Goals)
	if !ok {
		return Reply{Text: text + "\n\nВ ваших целях не найдена норма калорий."}
	}
	text += fmt.Sprintf("\n🎯 Цель: %.0f ккал", target)
	if consumed <= target {
		text += fmt.Sprintf("\n✅ Осталось: %.0f ккал", target-consumed)
	} else {
		text += fmt.Sprintf("\n⚠️ Превышение: %.0f ккал", consumed-target)
	}
	return Reply{Text: text}
}

func (m *Machine) logLedgerRead(what, handle string, err error) {
	m.logger.Error("ledger read failed",
		slog.String("what", what),
		slog.String("handle", handle),
		slog.String("error", err.Error()),
	)
}
