package handlers

import (
	"context"
	"sync"

	"mt5bridge/internal/models"
	"mt5bridge/internal/repository"
	"mt5bridge/internal/service"
)

// ============================================================
// Моки для тестов handlers
// ============================================================

// fakeAccountRepo - репозиторий счетов в памяти
type fakeAccountRepo struct {
	mu        sync.Mutex
	createErr error
	accounts  map[int]*models.Account
	nextID    int
}

var _ service.AccountRepositoryInterface = (*fakeAccountRepo)(nil)

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[int]*models.Account), nextID: 1}
}

func (f *fakeAccountRepo) Create(_ context.Context, acc *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	acc.ID = f.nextID
	f.nextID++
	cp := *acc
	f.accounts[acc.ID] = &cp
	return nil
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id int) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeAccountRepo) ListByUser(_ context.Context, userID int) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, acc := range f.accounts {
		if acc.UserID == userID {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) ListAll(_ context.Context) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, acc := range f.accounts {
		out = append(out, *acc)
	}
	return out, nil
}

func (f *fakeAccountRepo) Update(_ context.Context, acc *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[acc.ID]; !ok {
		return repository.ErrAccountNotFound
	}
	cp := *acc
	f.accounts[acc.ID] = &cp
	return nil
}

func (f *fakeAccountRepo) SaveStatus(_ context.Context, id int, status, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	acc.Status = status
	acc.ErrorMessage = errorMessage
	return nil
}

func (f *fakeAccountRepo) MigrateUser(_ context.Context, id, newUserID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	acc.UserID = newUserID
	return nil
}

func (f *fakeAccountRepo) MigrateOwner(_ context.Context, fromUserID, toUserID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := 0
	for _, acc := range f.accounts {
		if acc.UserID == fromUserID {
			acc.UserID = toUserID
			moved++
		}
	}
	return moved, nil
}

func (f *fakeAccountRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[id]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(f.accounts, id)
	return nil
}

// fakeSyncEngine - движок синхронизации, возвращающий заданную ошибку
type fakeSyncEngine struct {
	mu      sync.Mutex
	syncErr error
	synced  []int
}

var _ service.SyncEngineInterface = (*fakeSyncEngine)(nil)

func (f *fakeSyncEngine) SyncNow(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, id)
	return f.syncErr
}

func (f *fakeSyncEngine) Reconnect(_ context.Context, id int) error { return nil }
func (f *fakeSyncEngine) Cancel(id int)                             {}
func (f *fakeSyncEngine) Forget(id int)                             {}

// fakeSubNotifier - нотификатор подписок
type fakeSubNotifier struct{}

var _ service.SubscriptionNotifier = (*fakeSubNotifier)(nil)

func (f *fakeSubNotifier) Forget(accountID int) {}
