package terminal

import (
	"errors"
	"fmt"
)

// Ошибки терминала делятся на два класса.
//
// Временные (timeout, ipc, занятый терминал) устраняются повтором,
// планировщик синхронизации повторяет их с backoff. Постоянные
// (неверные учётные данные, неизвестный сервер) повтором не лечатся,
// счёт переводится в ERROR до вмешательства пользователя.
var (
	// ErrGatewayBusy - терминал занят другим счётом, слот не освободился
	// за отведённое время ожидания.
	ErrGatewayBusy = errors.New("terminal is busy")

	// ErrTimeout - операция терминала не уложилась в таймаут.
	ErrTimeout = errors.New("terminal operation timed out")

	// ErrIPC - сбой связи с мостом терминала (обрыв соединения,
	// некорректный ответ, недоступный мост).
	ErrIPC = errors.New("terminal ipc failure")

	// ErrInvalidCredentials - брокер отверг логин или пароль.
	ErrInvalidCredentials = errors.New("invalid account credentials")

	// ErrServerUnknown - терминал не знает указанный торговый сервер.
	ErrServerUnknown = errors.New("unknown trade server")
)

// Коды ошибок моста терминала.
const (
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeServerUnknown      = "SERVER_UNKNOWN"
	codeTimeout            = "TIMEOUT"
	codeIPCError           = "IPC_ERROR"
)

// IsTransient сообщает, имеет ли смысл повторять операцию.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGatewayBusy) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrIPC)
}

// IsPermanent сообщает, что ошибка повтором не устраняется.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrServerUnknown)
}

// classifyCode преобразует код ошибки моста в sentinel-ошибку.
// Неизвестные коды трактуются как сбой IPC: безопаснее повторить,
// чем навсегда заморозить счёт из-за нового кода моста.
func classifyCode(code, message string) error {
	switch code {
	case codeInvalidCredentials:
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, message)
	case codeServerUnknown:
		return fmt.Errorf("%w: %s", ErrServerUnknown, message)
	case codeTimeout:
		return fmt.Errorf("%w: %s", ErrTimeout, message)
	case codeIPCError:
		return fmt.Errorf("%w: %s", ErrIPC, message)
	default:
		return fmt.Errorf("%w: %s (%s)", ErrIPC, message, code)
	}
}
