package service

import (
	"context"

	"mt5bridge/internal/models"
)

// AccountRepositoryInterface определяет интерфейс репозитория счетов
type AccountRepositoryInterface interface {
	Create(ctx context.Context, acc *models.Account) error
	GetByID(ctx context.Context, id int) (*models.Account, error)
	ListByUser(ctx context.Context, userID int) ([]models.Account, error)
	ListAll(ctx context.Context) ([]models.Account, error)
	Update(ctx context.Context, acc *models.Account) error
	SaveStatus(ctx context.Context, id int, status, errorMessage string) error
	MigrateUser(ctx context.Context, id, newUserID int) error
	MigrateOwner(ctx context.Context, fromUserID, toUserID int) (int, error)
	Delete(ctx context.Context, id int) error
}

// SyncEngineInterface определяет интерфейс движка синхронизации
type SyncEngineInterface interface {
	// SyncNow немедленно синхронизирует счёт вне расписания
	SyncNow(ctx context.Context, id int) error
	// Reconnect сбрасывает счёт из ERROR и запускает синхронизацию
	Reconnect(ctx context.Context, id int) error
	// Cancel отменяет запланированные retry, результат запущенного
	// цикла будет отброшен
	Cancel(id int)
	// Forget убирает счёт из движка полностью
	Forget(id int)
}

// SubscriptionNotifier сбрасывает состояние подавления событий счёта
type SubscriptionNotifier interface {
	Forget(accountID int)
}
