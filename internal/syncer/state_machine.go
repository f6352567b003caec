package syncer

import "mt5bridge/internal/models"

// ValidTransitions определяет допустимые переходы между статусами счёта
var ValidTransitions = map[string][]string{
	models.StatusPending:    {models.StatusConnecting, models.StatusDisabled},
	models.StatusConnecting: {models.StatusConnected, models.StatusConnecting, models.StatusError, models.StatusDisabled},
	models.StatusConnected:  {models.StatusConnecting, models.StatusError, models.StatusDisabled},
	models.StatusError:      {models.StatusPending, models.StatusDisabled}, // только ручной сброс
	models.StatusDisabled:   {models.StatusPending},
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

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.StatusPending:
		return "Счёт ожидает первой синхронизации"
	case models.StatusConnecting:
		return "Подключение к терминалу..."
	case models.StatusConnected:
		return "Счёт подключен и синхронизируется"
	case models.StatusError:
		return "Ошибка! Требуется вмешательство"
	case models.StatusDisabled:
		return "Счёт отключен пользователем"
	default:
		return "Неизвестный статус"
	}
}

// IsSyncable возвращает true, если счёт участвует в фоновой синхронизации.
// ERROR исключён: повторять бессмысленно до ручного сброса.
func IsSyncable(s string) bool {
	return s == models.StatusPending || s == models.StatusConnecting || s == models.StatusConnected
}
