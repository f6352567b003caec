package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"mt5bridge/internal/models"
)

// ============================================================
// AccountRepository Tests
// ============================================================

var accountRows = []string{
	"id", "user_id", "broker_name", "account_number", "encrypted_password", "server",
	"status", "error_message", "account_name", "balance", "equity", "margin", "free_margin",
	"margin_level", "leverage", "currency", "last_connected", "last_sync", "created_at", "updated_at",
}

type driverValue = driver.Value

func accountRow(id int) []driverValue {
	now := time.Now()
	return []driverValue{
		id, 10, "Exness", "100234", "enc", "Exness-MT5Real",
		models.StatusConnected, "", "Demo", 10000.5, 10010.0, 150.0, 9860.0,
		6673.5, 500, "USD", now, now, now, now,
	}
}

func TestNewAccountRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewAccountRepository(db)
	if repo == nil {
		t.Fatal("NewAccountRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestAccountRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		acc         *models.Account
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			acc: &models.Account{
				UserID:            10,
				BrokerName:        "Exness",
				AccountNumber:     "100234",
				EncryptedPassword: "enc",
				Server:            "Exness-MT5Real",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO accounts`).
					WithArgs(10, "Exness", "100234", "enc", "Exness-MT5Real",
						models.StatusPending, "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: nil,
		},
		{
			name: "duplicate key error",
			acc: &models.Account{
				UserID:            10,
				BrokerName:        "Exness",
				AccountNumber:     "100234",
				EncryptedPassword: "enc",
				Server:            "Exness-MT5Real",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO accounts`).
					WithArgs(10, "Exness", "100234", "enc", "Exness-MT5Real",
						models.StatusPending, "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnError(errors.New("duplicate key value violates unique constraint"))
			},
			expectError: ErrAccountExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAccountRepository(db)
			err = repo.Create(context.Background(), tt.acc)

			if !errors.Is(err, tt.expectError) {
				t.Errorf("Create() error = %v, want %v", err, tt.expectError)
			}
			if tt.expectError == nil && tt.acc.ID != 1 {
				t.Errorf("ID = %d, want 1", tt.acc.ID)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryGetByID(t *testing.T) {
	tests := []struct {
		name        string
		id          int
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "found",
			id:   1,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
					WithArgs(1).
					WillReturnRows(sqlmock.NewRows(accountRows).AddRow(accountRow(1)...))
			},
			expectError: nil,
		},
		{
			name: "not found",
			id:   99,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
					WithArgs(99).
					WillReturnRows(sqlmock.NewRows(accountRows))
			},
			expectError: ErrAccountNotFound,
		},
		{
			name: "null sync timestamps",
			id:   2,
			mockSetup: func(mock sqlmock.Sqlmock) {
				now := time.Now()
				mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
					WithArgs(2).
					WillReturnRows(sqlmock.NewRows(accountRows).AddRow(
						2, 10, "XM", "200345", "enc", "XMGlobal-MT5",
						models.StatusPending, "", "", 0.0, 0.0, 0.0, 0.0,
						0.0, 0, "", nil, nil, now, now,
					))
			},
			expectError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAccountRepository(db)
			acc, err := repo.GetByID(context.Background(), tt.id)

			if !errors.Is(err, tt.expectError) {
				t.Errorf("GetByID() error = %v, want %v", err, tt.expectError)
			}
			if tt.expectError == nil {
				if acc == nil {
					t.Fatal("GetByID() returned nil account")
				}
				if acc.ID != tt.id {
					t.Errorf("ID = %d, want %d", acc.ID, tt.id)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 ORDER BY id`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(accountRows).
			AddRow(accountRow(1)...).
			AddRow(accountRow(2)...))

	repo := NewAccountRepository(db)
	accounts, err := repo.ListByUser(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("ListByUser() len = %d, want 2", len(accounts))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccountRepositoryListAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM accounts ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(accountRows).AddRow(accountRow(1)...))

	repo := NewAccountRepository(db)
	accounts, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("ListAll() len = %d, want 1", len(accounts))
	}
}

func TestAccountRepositorySaveSyncResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	acc := models.Account{
		ID:            1,
		Status:        models.StatusConnected,
		AccountName:   "Demo",
		Balance:       10000.5,
		Equity:        10010,
		Margin:        150,
		FreeMargin:    9860,
		MarginLevel:   6673.5,
		Leverage:      500,
		Currency:      "USD",
		LastConnected: &now,
		LastSync:      &now,
	}

	mock.ExpectExec(`UPDATE accounts`).
		WithArgs(models.StatusConnected, "Demo", 10000.5, 10010.0, 150.0, 9860.0,
			6673.5, 500, "USD", &now, &now, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewAccountRepository(db)
	if err := repo.SaveSyncResult(context.Background(), acc); err != nil {
		t.Errorf("SaveSyncResult() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccountRepositorySaveStatus(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		expectError error
	}{
		{"success", 1, nil},
		{"missing account", 0, ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE accounts`).
				WithArgs(models.StatusError, "invalid account credentials", sqlmock.AnyArg(), 1).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := NewAccountRepository(db)
			err = repo.SaveStatus(context.Background(), 1, models.StatusError, "invalid account credentials")
			if !errors.Is(err, tt.expectError) {
				t.Errorf("SaveStatus() error = %v, want %v", err, tt.expectError)
			}
		})
	}
}

func TestAccountRepositoryMigrateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE accounts`).
		WithArgs(20, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewAccountRepository(db)
	if err := repo.MigrateUser(context.Background(), 1, 20); err != nil {
		t.Errorf("MigrateUser() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccountRepositoryMigrateOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE accounts`).
		WithArgs(20, sqlmock.AnyArg(), 10).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewAccountRepository(db)
	moved, err := repo.MigrateOwner(context.Background(), 10, 20)
	if err != nil {
		t.Errorf("MigrateOwner() error = %v", err)
	}
	if moved != 3 {
		t.Errorf("moved = %d, want 3", moved)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccountRepositoryDelete(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		expectError error
	}{
		{"success", 1, nil},
		{"not found", 0, ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`DELETE FROM accounts`).
				WithArgs(1).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := NewAccountRepository(db)
			err = repo.Delete(context.Background(), 1)
			if !errors.Is(err, tt.expectError) {
				t.Errorf("Delete() error = %v, want %v", err, tt.expectError)
			}
		})
	}
}

func TestAccountRepositoryUpdateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE accounts`).
		WillReturnError(errors.New("pq: duplicate key value violates unique constraint \"accounts_user_broker_key\""))

	repo := NewAccountRepository(db)
	acc := &models.Account{ID: 1, BrokerName: "Exness", AccountNumber: "100234", Server: "Exness-MT5Real"}
	if err := repo.Update(context.Background(), acc); !errors.Is(err, ErrAccountExists) {
		t.Errorf("Update() error = %v, want ErrAccountExists", err)
	}
}

func TestIsAccountUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate key text", errors.New("duplicate key value violates unique constraint"), true},
		{"sqlstate code", errors.New("ERROR: 23505"), true},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAccountUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isAccountUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
