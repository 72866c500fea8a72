package analysis

import (
	"fmt"
	"strings"

	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/nutrition"
)

// telegramFormatting is appended to every prompt whose answer is shown in
// chat. The bot sends replies with HTML parse mode.
const telegramFormatting = `Отвечай, используя только HTML-разметку Telegram:
- <b>Жирный</b> для важных выводов и итоговых значений.
- <i>Курсив</i> для пояснений и рекомендаций - используй редко.
- Эмодзи для визуального выделения (📊 для статистики, ⚠️ для предупреждений и т. д.).
- Добавляй переносы строк для удобочитаемости.

Не используй ` + "`*`, `_`" + ` или другие символы Markdown.`

func mealPrompt(hasPhotos bool, description string) string {
	source := "описанию"
	if hasPhotos {
		source = "фотографии"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Определи КБЖУ блюда по %s. ", source)
	b.WriteString("Рассчитай КБЖУ для каждого продукта и суммарные значения. ")
	b.WriteString("Если количество продукта не указано, используй стандартную порцию. ")
	b.WriteString("Отвечай кратко, без вводных фраз и пояснений.\n\n")
	b.WriteString(telegramFormatting)
	if description != "" {
		fmt.Fprintf(&b, "\n\nОписание блюда: %s", description)
	}
	return b.String()
}

// formatDay renders records as "[HH:MM] narrative" blocks separated by a blank line.
func formatDay(records []model.DailyRecord) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = fmt.Sprintf("[%s] %s", r.Clock(), r.Narrative)
	}
	return strings.Join(parts, "\n\n")
}

func goalsPrompt(records []model.DailyRecord, goals string) string {
	return fmt.Sprintf(`Проанализируй, насколько питание человека за день соответствует его целям.

Цели:
%s

Питание за день (время приема пищи указано в квадратных скобках):
%s

Проведи анализ как опытный нутрициолог. Оцени:
1. Соответствие калорийности (если указана цель)
2. Баланс БЖУ (если указаны цели)
3. Соответствие качественным целям (например, количество овощей, процент сладкого и т.д.)
4. Время приема пищи:
   - Распределение калорий в течение дня
   - Интервалы между приемами пищи
   - Соответствие времени приема пищи физиологической норме
5. Общие рекомендации по улучшению

Ответ дай на русском языке в формате:
- Краткий вывод (1-2 предложения)
- Детальный анализ по пунктам
- Рекомендации на следующий день

%s`, goals, formatDay(records), telegramFormatting)
}

func progressPrompt(in ProgressInput) string {
	target := "не указан"
	if in.TargetWeight != nil {
		target = formatKg(*in.TargetWeight)
	}
	goals := in.Goals
	if goals == "" {
		goals = "не указаны"
	}
	meals := make([]string, len(in.Records))
	for i, r := range in.Records {
		meals[i] = r.Narrative
	}

	return fmt.Sprintf(`Проанализируй прогресс в снижении веса и питание за неделю.

Информация о весе:
- Текущий вес: %s кг
- Изменение веса: %s
- Целевой вес: %s кг

Цели по питанию:
%s

Питание за неделю:
%s

Проведи анализ как опытный нутрициолог. Важно:
1. Анализ должен быть доказательным и адекватным
2. Снижение веса на 100-300 грамм в неделю - это нормально и полезно
3. Резкие ограничения и жесткие диеты недопустимы
4. Важно поддерживать здоровое и комфортное питание
5. Все рекомендации должны учитывать цели по питанию пользователя

Оцени:
1. Прогресс в весе (если вес не снижается или растет, укажи возможные причины в питании)
2. Соответствие питания установленным целям (калории, БЖУ, другие качественные цели)
3. Продукты и привычки, которые помогают или мешают достижению целей
4. Позитивные изменения в питании

Ответ дай на русском языке в формате:
- Краткий вывод о прогрессе и соответствии целям
- Детальный анализ питания
- Рекомендации по улучшению (с учетом целей)

%s`, formatKg(in.CurrentWeight), nutrition.WeightChange(in.History), target, goals,
		strings.Join(meals, "\n"), telegramFormatting)
}

// formatKg prints 72 as "72" and 72.5 as "72.5".
func formatKg(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}
