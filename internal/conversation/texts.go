package conversation

const (
	textAccessDenied = "⛔ Извините, у вас нет доступа к этому боту."

	textWelcome = "Привет! Я помогаю считать калории и следить за питанием.\n\n" +
		"Отправьте фото блюда, опишите его текстом или голосом, и я определю КБЖУ. " +
		"Можно отправить несколько фото и добавить описание, а затем нажать «Начать анализ».\n\n" +
		"Подробнее: /help"

	textHelp = "Как пользоваться ботом:\n" +
		"1. Отправьте фото блюда, текст или голосовое сообщение (можно несколько)\n" +
		"2. Нажмите «Начать анализ» или отправьте /analyze\n" +
		"3. Проверьте результат: «Верно» сохранит запись, «Уточнить» позволит добавить детали\n\n" +
		"Команды:\n" +
		"/goals - ваши цели\n" +
		"/setgoals - задать цели по питанию\n" +
		"/calories - калории за сегодня\n" +
		"/weight - записать вес\n" +
		"/targetweight - задать целевой вес\n" +
		"/cancel - отменить текущее действие\n\n" +
		"Для лучшего результата фотографируйте при хорошем освещении и добавляйте описание порции."

	textUnknownCommand = "Неизвестная команда. Список команд: /help"

	textSendMore        = "Отправьте ещё фото, текст или голосовое сообщение."
	textNothingToDo     = "Нечего анализировать. Отправьте фото, текст или голосовое сообщение."
	textAnalyzing       = "🔍 Анализирую..."
	textIsCorrect       = "Результат верный?"
	textAskContext      = "Отправьте дополнительную информацию о блюде (например: размер порции, ингредиенты, способ приготовления)."
	textNoResult        = "Нет результата для подтверждения. Отправьте фото или описание блюда."
	textPreviousDropped = "Предыдущий результат не был сохранён."
	textCancelled       = "Действие отменено. Отправьте новое фото для анализа."
	textSaved           = "Отлично! Запись сохранена ✅"
	textOverflowHeld    = "📎 В альбоме больше %d фото. Отложено для следующего анализа: %d. " +
		"Сначала подтвердите или уточните результат выше."

	textAskGoals   = "Опишите ваши цели по питанию. Например: «калории: 2000, белки: 120 г, больше овощей»."
	textEmptyGoals = "Цели не могут быть пустыми. Опишите их текстом."
	textGoalsSaved = "Цели сохранены ✅"
	textNoGoals    = "Цели не заданы. Используйте /setgoals"

	textAskWeight       = "Введите ваш текущий вес в кг (например, 72,5)."
	textAskTargetWeight = "Введите целевой вес в кг (например, 65)."
	textInvalidWeight   = "Введите число от 30 до 300, например 72,5."
	textWeightSaved     = "Вес сохранён ✅ Анализирую прогресс..."
	textReminderSet     = "Хорошо, напомню завтра ⏰"
	textTargetReached   = "🎉 Целевой вес достигнут!"
	textAnalysisFailed  = "Извините, не удалось выполнить анализ. Попробуйте ещё раз."
	textTryLater        = "Извините, что-то пошло не так. Попробуйте позже."
	textWeighInPrompt   = "⚖️ Время еженедельного взвешивания! Введите ваш текущий вес."
)

// WeighInPrompt is the reply the notifier sends on Sunday mornings and for
// "remind tomorrow" reminders.
func WeighInPrompt() Reply {
	return Reply{
		Text:     textWeighInPrompt,
		Keyboard: []string{LabelEnterWeight, LabelRemindTomorrow},
	}
}
