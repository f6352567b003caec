package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"mt5bridge/internal/models"
)

// Ошибки репозитория счетов
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

const accountColumns = `id, user_id, broker_name, account_number, encrypted_password, server,
		status, error_message, account_name, balance, equity, margin, free_margin,
		margin_level, leverage, currency, last_connected, last_sync, created_at, updated_at`

// AccountRepository - работа с таблицей accounts
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create создает новый торговый счёт
func (r *AccountRepository) Create(ctx context.Context, acc *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, broker_name, account_number, encrypted_password, server, status, error_message, account_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	// Значения по умолчанию
	if acc.Status == "" {
		acc.Status = models.StatusPending
	}

	err := r.db.QueryRowContext(ctx,
		query,
		acc.UserID,
		acc.BrokerName,
		acc.AccountNumber,
		acc.EncryptedPassword,
		acc.Server,
		acc.Status,
		acc.ErrorMessage,
		acc.AccountName,
		acc.CreatedAt,
		acc.UpdatedAt,
	).Scan(&acc.ID)

	if err != nil {
		if isAccountUniqueViolation(err) {
			return ErrAccountExists
		}
		return err
	}

	return nil
}

// GetByID возвращает счёт по ID
func (r *AccountRepository) GetByID(ctx context.Context, id int) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc := &models.Account{}
	err := scanAccount(r.db.QueryRowContext(ctx, query, id), acc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return acc, nil
}

// ListByUser возвращает все счета пользователя
func (r *AccountRepository) ListByUser(ctx context.Context, userID int) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// ListAll возвращает все счета. Используется при старте сервиса
// для восстановления хранилища сессий.
func (r *AccountRepository) ListAll(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// Update обновляет редактируемые поля счёта
func (r *AccountRepository) Update(ctx context.Context, acc *models.Account) error {
	query := `
		UPDATE accounts
		SET broker_name = $1, account_number = $2, encrypted_password = $3, server = $4,
		    status = $5, error_message = $6, updated_at = $7
		WHERE id = $8`

	acc.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		acc.BrokerName,
		acc.AccountNumber,
		acc.EncryptedPassword,
		acc.Server,
		acc.Status,
		acc.ErrorMessage,
		acc.UpdatedAt,
		acc.ID,
	)
	if err != nil {
		if isAccountUniqueViolation(err) {
			return ErrAccountExists
		}
		return err
	}

	return requireRow(result)
}

// SaveSyncResult записывает итог успешной синхронизации:
// скалярные поля снапшота, статус и отметки времени.
// Позиции и ордера в БД не пишутся, они живут в памяти.
func (r *AccountRepository) SaveSyncResult(ctx context.Context, acc models.Account) error {
	query := `
		UPDATE accounts
		SET status = $1, error_message = '', account_name = $2, balance = $3, equity = $4,
		    margin = $5, free_margin = $6, margin_level = $7, leverage = $8, currency = $9,
		    last_connected = $10, last_sync = $11, updated_at = $12
		WHERE id = $13`

	result, err := r.db.ExecContext(ctx, query,
		acc.Status,
		acc.AccountName,
		acc.Balance,
		acc.Equity,
		acc.Margin,
		acc.FreeMargin,
		acc.MarginLevel,
		acc.Leverage,
		acc.Currency,
		acc.LastConnected,
		acc.LastSync,
		time.Now(),
		acc.ID,
	)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// SaveStatus записывает статус счёта и текст ошибки
func (r *AccountRepository) SaveStatus(ctx context.Context, id int, status, errorMessage string) error {
	query := `
		UPDATE accounts
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, status, errorMessage, time.Now(), id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// MigrateUser переносит счёт другому пользователю
func (r *AccountRepository) MigrateUser(ctx context.Context, id, newUserID int) error {
	query := `
		UPDATE accounts
		SET user_id = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, newUserID, time.Now(), id)
	if err != nil {
		if isAccountUniqueViolation(err) {
			return ErrAccountExists
		}
		return err
	}

	return requireRow(result)
}

// MigrateOwner переносит все счета одного пользователя другому.
// Возвращает число перенесённых счетов.
func (r *AccountRepository) MigrateOwner(ctx context.Context, fromUserID, toUserID int) (int, error) {
	query := `
		UPDATE accounts
		SET user_id = $1, updated_at = $2
		WHERE user_id = $3`

	result, err := r.db.ExecContext(ctx, query, toUserID, time.Now(), fromUserID)
	if err != nil {
		if isAccountUniqueViolation(err) {
			return 0, ErrAccountExists
		}
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Delete удаляет счёт
func (r *AccountRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// scanAccount читает строку счёта
func scanAccount(row *sql.Row, acc *models.Account) error {
	return row.Scan(
		&acc.ID,
		&acc.UserID,
		&acc.BrokerName,
		&acc.AccountNumber,
		&acc.EncryptedPassword,
		&acc.Server,
		&acc.Status,
		&acc.ErrorMessage,
		&acc.AccountName,
		&acc.Balance,
		&acc.Equity,
		&acc.Margin,
		&acc.FreeMargin,
		&acc.MarginLevel,
		&acc.Leverage,
		&acc.Currency,
		&acc.LastConnected,
		&acc.LastSync,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
}

// collectAccounts читает все строки результата
func collectAccounts(rows *sql.Rows) ([]models.Account, error) {
	var accounts []models.Account
	for rows.Next() {
		var acc models.Account
		err := rows.Scan(
			&acc.ID,
			&acc.UserID,
			&acc.BrokerName,
			&acc.AccountNumber,
			&acc.EncryptedPassword,
			&acc.Server,
			&acc.Status,
			&acc.ErrorMessage,
			&acc.AccountName,
			&acc.Balance,
			&acc.Equity,
			&acc.Margin,
			&acc.FreeMargin,
			&acc.MarginLevel,
			&acc.Leverage,
			&acc.Currency,
			&acc.LastConnected,
			&acc.LastSync,
			&acc.CreatedAt,
			&acc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// requireRow превращает "ни одна строка не затронута" в ErrAccountNotFound
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// isAccountUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isAccountUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
