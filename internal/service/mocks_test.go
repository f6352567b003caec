package service

import (
	"context"
	"sync"

	"mt5bridge/internal/models"
)

// ============================================================
// Моки для тестов сервисов
// ============================================================

// mockAccountRepo - мок репозитория счетов
type mockAccountRepo struct {
	mu sync.Mutex

	createErr  error
	updateErr  error
	deleteErr  error
	statusErr  error
	migrateErr error

	created  []*models.Account
	updated  []*models.Account
	deleted  []int
	statuses []savedStatus
	migrated []migration

	migrateAffected int

	nextID int
}

type savedStatus struct {
	id           int
	status       string
	errorMessage string
}

type migration struct {
	id        int
	newUserID int
}

var _ AccountRepositoryInterface = (*mockAccountRepo)(nil)

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{nextID: 1}
}

func (m *mockAccountRepo) Create(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	acc.ID = m.nextID
	m.nextID++
	cp := *acc
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id int) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.created {
		if acc.ID == id {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepo) ListByUser(_ context.Context, userID int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, acc := range m.created {
		if acc.UserID == userID {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (m *mockAccountRepo) ListAll(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, acc := range m.created {
		out = append(out, *acc)
	}
	return out, nil
}

func (m *mockAccountRepo) Update(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cp := *acc
	m.updated = append(m.updated, &cp)
	return nil
}

func (m *mockAccountRepo) SaveStatus(_ context.Context, id int, status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return m.statusErr
	}
	m.statuses = append(m.statuses, savedStatus{id, status, errorMessage})
	return nil
}

func (m *mockAccountRepo) MigrateUser(_ context.Context, id, newUserID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.migrateErr != nil {
		return m.migrateErr
	}
	m.migrated = append(m.migrated, migration{id, newUserID})
	return nil
}

func (m *mockAccountRepo) MigrateOwner(_ context.Context, fromUserID, toUserID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.migrateErr != nil {
		return 0, m.migrateErr
	}
	m.migrated = append(m.migrated, migration{fromUserID, toUserID})
	return m.migrateAffected, nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockSyncEngine - мок движка синхронизации
type mockSyncEngine struct {
	mu sync.Mutex

	syncErr      error
	reconnectErr error

	synced      []int
	reconnected []int
	cancelled   []int
	forgotten   []int

	syncCalled chan int

	onCancel func(id int)
}

var _ SyncEngineInterface = (*mockSyncEngine)(nil)

func newMockSyncEngine() *mockSyncEngine {
	return &mockSyncEngine{syncCalled: make(chan int, 16)}
}

func (m *mockSyncEngine) SyncNow(_ context.Context, id int) error {
	m.mu.Lock()
	m.synced = append(m.synced, id)
	m.mu.Unlock()
	select {
	case m.syncCalled <- id:
	default:
	}
	return m.syncErr
}

func (m *mockSyncEngine) Reconnect(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnected = append(m.reconnected, id)
	return m.reconnectErr
}

func (m *mockSyncEngine) Cancel(id int) {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, id)
	hook := m.onCancel
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}
}

func (m *mockSyncEngine) Forget(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgotten = append(m.forgotten, id)
}

// mockNotifier - мок нотификатора подписок
type mockNotifier struct {
	mu        sync.Mutex
	forgotten []int
}

var _ SubscriptionNotifier = (*mockNotifier)(nil)

func (m *mockNotifier) Forget(accountID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgotten = append(m.forgotten, accountID)
}
