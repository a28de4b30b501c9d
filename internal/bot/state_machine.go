package bot

import "autotrader/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями позиции
//
// Основной путь: NONE → OPEN → CLOSING → CLOSED.
// OPEN → NONE и CLOSING → OPEN - только откаты после ошибки биржи.
var ValidTransitions = map[string][]string{
	models.StateNone:    {models.StateOpen},
	models.StateOpen:    {models.StateClosing, models.StateNone}, // NONE при откате резерва
	models.StateClosing: {models.StateClosed, models.StateOpen},  // OPEN если закрывающий ордер не прошёл
	models.StateClosed:  {},                                      // терминальное
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case models.StateNone:
		return "Позиции нет"
	case models.StateOpen:
		return "Позиция открыта"
	case models.StateClosing:
		return "Закрытие позиции..."
	case models.StateClosed:
		return "Позиция закрыта"
	default:
		return "Неизвестное состояние"
	}
}

// HasOpenPosition возвращает true если позиция занимает слот лимита
func HasOpenPosition(s string) bool {
	return s == models.StateOpen || s == models.StateClosing
}
