// Package terminal инкапсулирует работу с мостом торгового терминала.
//
// Терминал поддерживает ровно одну активную сессию: логин под новым
// счётом разрывает предыдущую. Поэтому весь доступ идёт через Gateway,
// который выдаёт эксклюзивный слот на время операции.
package terminal

import (
	"context"

	"mt5bridge/internal/models"
)

// Credentials - учётные данные торгового счёта в открытом виде.
// Существуют только в памяти на время операции терминала.
type Credentials struct {
	AccountNumber string
	Password      string
	Server        string
}

// Terminal определяет операции моста терминала.
type Terminal interface {
	// Authenticate выполняет логин под указанным счётом.
	// Успешный логин делает счёт активной сессией терминала.
	Authenticate(ctx context.Context, creds Credentials) error

	// FetchSnapshot читает полное состояние активной сессии:
	// сводку счёта, открытые позиции и отложенные ордера.
	FetchSnapshot(ctx context.Context, creds Credentials) (*models.Snapshot, error)
}
