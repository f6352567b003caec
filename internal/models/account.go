package models

import "time"

// Account представляет MT5 счёт, привязанный к пользователю веб-приложения
type Account struct {
	ID                int        `json:"id" db:"id"`
	UserID            int        `json:"user_id" db:"user_id"`
	BrokerName        string     `json:"broker_name" db:"broker_name"`             // XM, Exness, etc
	AccountNumber     string     `json:"account_number" db:"account_number"`       // логин в терминале
	EncryptedPassword string     `json:"-" db:"encrypted_password"`                // зашифрован, не возвращается в JSON
	Server            string     `json:"server" db:"server"`                       // торговый сервер брокера

	// Состояние подключения
	Status        string     `json:"status" db:"status"`                     // PENDING, CONNECTING, CONNECTED, ERROR, DISABLED
	LastConnected *time.Time `json:"last_connected,omitempty" db:"last_connected"`
	LastSync      *time.Time `json:"last_sync,omitempty" db:"last_sync"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`

	// Данные счёта (синхронизированы из терминала)
	AccountName string  `json:"account_name,omitempty" db:"account_name"` // имя владельца счёта из терминала
	Balance     float64 `json:"balance" db:"balance"`
	Equity      float64 `json:"equity" db:"equity"`
	Margin      float64 `json:"margin" db:"margin"`
	FreeMargin  float64 `json:"free_margin" db:"free_margin"`
	MarginLevel float64 `json:"margin_level" db:"margin_level"`
	Leverage    int     `json:"leverage" db:"leverage"`
	Currency    string  `json:"currency" db:"currency"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Состояния подключения счёта (state machine)
const (
	StatusPending    = "PENDING"    // зарегистрирован, первый цикл ещё не выполнялся
	StatusConnecting = "CONNECTING" // цикл синхронизации в процессе или ожидает retry
	StatusConnected  = "CONNECTED"  // последний цикл успешен, snapshot актуален
	StatusError      = "ERROR"      // требуется вмешательство (ключи, сервер, исчерпаны retry)
	StatusDisabled   = "DISABLED"   // явно остановлен, автоматические циклы не планируются
)

// ApplySnapshot переносит скалярные поля снапшота в запись счёта
// (для сохранения в БД той же формой, что делал оригинальный мост)
func (a *Account) ApplySnapshot(s *Snapshot) {
	if s == nil {
		return
	}
	a.AccountName = s.AccountName
	a.Balance = s.Balance
	a.Equity = s.Equity
	a.Margin = s.Margin
	a.FreeMargin = s.FreeMargin
	a.MarginLevel = s.MarginLevel
	a.Leverage = s.Leverage
	a.Currency = s.Currency
}
