package service

import (
	"context"
	"errors"
	"fmt"

	"mt5bridge/internal/broker"
	"mt5bridge/internal/models"
	"mt5bridge/internal/repository"
	"mt5bridge/internal/store"
	"mt5bridge/pkg/crypto"
	"mt5bridge/pkg/utils"
)

// Ошибки сервиса счетов
var (
	ErrInvalidInput       = errors.New("invalid account parameters")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account with this number already exists")
	ErrAccessDenied       = errors.New("account belongs to another user")
	ErrUnknownBroker      = errors.New("broker is not in the directory")
	ErrUnknownServer      = errors.New("server is not known for this broker")
	ErrAccountNotDisabled = errors.New("account is not disabled")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// AccountService - бизнес-логика управления MT5 счетами.
// Репозиторий хранит долговременное состояние, Store - живые сессии,
// движок выполняет циклы синхронизации.
type AccountService struct {
	repo   AccountRepositoryInterface
	st     *store.Store
	notify SubscriptionNotifier

	// Движок синхронизации (может быть nil при инициализации)
	engine SyncEngineInterface

	encryptionKey string
	log           *utils.Logger
}

// RegisterParams содержит параметры регистрации счёта
type RegisterParams struct {
	UserID        int    `json:"user_id"`
	BrokerName    string `json:"broker_name"`
	AccountNumber string `json:"account_number"`
	Password      string `json:"password"`
	Server        string `json:"server"`
}

// UpdateParams содержит параметры обновления счёта.
// nil означает "не менять".
type UpdateParams struct {
	BrokerName    *string `json:"broker_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	Password      *string `json:"password,omitempty"`
	Server        *string `json:"server,omitempty"`
}

// NewAccountService создает новый экземпляр сервиса счетов
func NewAccountService(
	repo AccountRepositoryInterface,
	st *store.Store,
	notify SubscriptionNotifier,
	encryptionKey string,
	log *utils.Logger,
) *AccountService {
	return &AccountService{
		repo:          repo,
		st:            st,
		notify:        notify,
		encryptionKey: encryptionKey,
		log:           log.WithComponent("account_service"),
	}
}

// SetEngine устанавливает движок синхронизации
// Вызывается после инициализации Engine
func (s *AccountService) SetEngine(engine SyncEngineInterface) {
	s.engine = engine
}

// Register регистрирует новый MT5 счёт
// Выполняет:
// 1. Валидацию всех параметров
// 2. Проверку брокера и сервера по справочнику
// 3. Шифрование пароля
// 4. Сохранение в БД и в хранилище сессий
// 5. Немедленный запуск первой синхронизации
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*models.Account, error) {
	// 1. Валидация параметров
	if err := s.validateCredentials(params.BrokerName, params.AccountNumber, params.Password, params.Server); err != nil {
		return nil, err
	}
	if err := utils.ValidateUserID(params.UserID); err != nil {
		return nil, invalid(err)
	}

	// 2. Шифрование пароля
	encrypted, err := crypto.EncryptWithKeyString(params.Password, s.encryptionKey)
	if err != nil {
		return nil, err
	}

	acc := &models.Account{
		UserID:            params.UserID,
		BrokerName:        params.BrokerName,
		AccountNumber:     params.AccountNumber,
		EncryptedPassword: encrypted,
		Server:            params.Server,
		Status:            models.StatusPending,
	}

	// 3. Сохраняем в БД
	if err := s.repo.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	// 4. Добавляем в хранилище сессий
	s.st.Put(*acc)

	s.log.Info("Счёт зарегистрирован",
		utils.AccountID(acc.ID),
		utils.UserID(acc.UserID),
		utils.Broker(acc.BrokerName))

	// 5. Первая синхронизация выполняется сразу: ответ уходит уже с
	// реальным статусом подключения. Неудача цикла регистрацию не
	// отменяет, она видна в статусе и error_message счёта.
	if s.engine != nil {
		if err := s.engine.SyncNow(ctx, acc.ID); err != nil {
			s.log.Warn("Первая синхронизация не удалась",
				utils.AccountID(acc.ID), utils.Err(err))
		}
		if sess, ok := s.st.Get(acc.ID); ok {
			refreshed := sess.Account
			return &refreshed, nil
		}
	}

	return acc, nil
}

// Get возвращает сессию счёта с проверкой владельца
func (s *AccountService) Get(userID, id int) (store.Session, error) {
	sess, ok := s.st.Get(id)
	if !ok {
		return store.Session{}, ErrAccountNotFound
	}
	if sess.Account.UserID != userID {
		return store.Session{}, ErrAccessDenied
	}
	return sess, nil
}

// List возвращает все сессии счетов пользователя
func (s *AccountService) List(userID int) []store.Session {
	return s.st.ListByUser(userID)
}

// Update обновляет учётные данные счёта
// Выполняет:
// 1. Проверку владельца
// 2. Валидацию новых параметров
// 3. Перешифрование пароля при его смене
// 4. Сохранение и сброс счёта в PENDING
// 5. Отмену запущенного цикла со старыми данными и новую синхронизацию
func (s *AccountService) Update(ctx context.Context, userID, id int, params UpdateParams) (*models.Account, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	// 1. Применяем изменения к копии для валидации
	updated := sess.Account
	if params.BrokerName != nil {
		updated.BrokerName = *params.BrokerName
	}
	if params.AccountNumber != nil {
		updated.AccountNumber = *params.AccountNumber
	}
	if params.Server != nil {
		updated.Server = *params.Server
	}

	password := ""
	if params.Password != nil {
		password = *params.Password
		if err := utils.ValidatePassword(password); err != nil {
			return nil, invalid(err)
		}
	}

	if err := utils.ValidateBrokerName(updated.BrokerName); err != nil {
		return nil, invalid(err)
	}
	if err := utils.ValidateAccountNumber(updated.AccountNumber); err != nil {
		return nil, invalid(err)
	}
	if err := utils.ValidateServerName(updated.Server); err != nil {
		return nil, invalid(err)
	}
	if !broker.Known(updated.BrokerName) {
		return nil, ErrUnknownBroker
	}
	if !broker.KnownServer(updated.BrokerName, updated.Server) {
		return nil, ErrUnknownServer
	}

	// 2. Перешифрование пароля
	if password != "" {
		encrypted, err := crypto.EncryptWithKeyString(password, s.encryptionKey)
		if err != nil {
			return nil, err
		}
		updated.EncryptedPassword = encrypted
	}

	// 3. Новые учётные данные нужно проверить заново
	updated.Status = models.StatusPending
	updated.ErrorMessage = ""

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	// 4. Цикл со старыми учётными данными отменяется до записи нового
	// состояния: его результат не должен затереть свежий PENDING
	if s.engine != nil {
		s.engine.Cancel(id)
	}

	s.st.Update(id, func(sess *store.Session) {
		sess.Account.BrokerName = updated.BrokerName
		sess.Account.AccountNumber = updated.AccountNumber
		sess.Account.EncryptedPassword = updated.EncryptedPassword
		sess.Account.Server = updated.Server
		sess.Account.Status = updated.Status
		sess.Account.ErrorMessage = ""
		sess.Account.UpdatedAt = updated.UpdatedAt
	})

	s.kickSync(id)

	s.log.Info("Счёт обновлён", utils.AccountID(id), utils.UserID(userID))

	return &updated, nil
}

// Delete удаляет счёт
func (s *AccountService) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	s.st.Delete(id)
	if s.engine != nil {
		s.engine.Forget(id)
	}
	if s.notify != nil {
		s.notify.Forget(id)
	}

	s.log.Info("Счёт удалён", utils.AccountID(id), utils.UserID(userID))

	return nil
}

// ForceSync запускает синхронизацию счёта вне расписания
func (s *AccountService) ForceSync(ctx context.Context, userID, id int) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	if s.engine == nil {
		return nil
	}
	return s.engine.SyncNow(ctx, id)
}

// Reconnect выводит счёт из ERROR и запускает синхронизацию
func (s *AccountService) Reconnect(ctx context.Context, userID, id int) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	if s.engine == nil {
		return nil
	}
	return s.engine.Reconnect(ctx, id)
}

// Disable останавливает автоматическую синхронизацию счёта
func (s *AccountService) Disable(ctx context.Context, userID, id int) error {
	sess, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	if sess.Account.Status == models.StatusDisabled {
		return ErrAccountDisabled
	}

	if err := s.repo.SaveStatus(ctx, id, models.StatusDisabled, ""); err != nil {
		return err
	}
	s.st.SetStatus(id, models.StatusDisabled, "")
	if s.engine != nil {
		s.engine.Cancel(id)
	}

	s.log.Info("Счёт отключён", utils.AccountID(id), utils.UserID(userID))

	return nil
}

// Enable возвращает отключённый счёт в работу
func (s *AccountService) Enable(ctx context.Context, userID, id int) error {
	sess, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	if sess.Account.Status != models.StatusDisabled {
		return ErrAccountNotDisabled
	}

	if err := s.repo.SaveStatus(ctx, id, models.StatusPending, ""); err != nil {
		return err
	}
	s.st.SetStatus(id, models.StatusPending, "")
	s.kickSync(id)

	s.log.Info("Счёт включён", utils.AccountID(id), utils.UserID(userID))

	return nil
}

// Migrate переносит счёт другому пользователю.
// Живая сессия и состояние синхронизации сохраняются.
func (s *AccountService) Migrate(ctx context.Context, id, newUserID int) error {
	if err := utils.ValidateUserID(newUserID); err != nil {
		return invalid(err)
	}
	if _, ok := s.st.Get(id); !ok {
		return ErrAccountNotFound
	}

	if err := s.repo.MigrateUser(ctx, id, newUserID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	s.st.Update(id, func(sess *store.Session) {
		sess.Account.UserID = newUserID
	})

	s.log.Info("Счёт перенесён", utils.AccountID(id), utils.UserID(newUserID))

	return nil
}

// MigrateAll переносит все счета пользователя fromUserID пользователю
// toUserID. Возвращает число перенесённых счетов.
func (s *AccountService) MigrateAll(ctx context.Context, fromUserID, toUserID int) (int, error) {
	if err := utils.ValidateUserID(fromUserID); err != nil {
		return 0, invalid(err)
	}
	if err := utils.ValidateUserID(toUserID); err != nil {
		return 0, invalid(err)
	}
	if fromUserID == toUserID {
		return 0, invalid(errors.New("from_user_id и to_user_id совпадают"))
	}

	moved, err := s.repo.MigrateOwner(ctx, fromUserID, toUserID)
	if err != nil {
		return 0, err
	}

	for _, sess := range s.st.ListByUser(fromUserID) {
		s.st.Update(sess.Account.ID, func(sess *store.Session) {
			sess.Account.UserID = toUserID
		})
	}

	s.log.Info("Счета перенесены",
		utils.UserID(toUserID),
		utils.Int("from_user_id", fromUserID),
		utils.Int("moved", moved))

	return moved, nil
}

// validateCredentials проверяет параметры подключения по валидаторам
// и справочнику брокеров
func (s *AccountService) validateCredentials(brokerName, accountNumber, password, server string) error {
	if err := utils.ValidateBrokerName(brokerName); err != nil {
		return invalid(err)
	}
	if err := utils.ValidateAccountNumber(accountNumber); err != nil {
		return invalid(err)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return invalid(err)
	}
	if err := utils.ValidateServerName(server); err != nil {
		return invalid(err)
	}
	if !broker.Known(brokerName) {
		return ErrUnknownBroker
	}
	if !broker.KnownServer(brokerName, server) {
		return ErrUnknownServer
	}
	return nil
}

// invalid помечает ошибку валидации, чтобы API мог отличить её
// от инфраструктурных ошибок
func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// kickSync запускает синхронизацию в фоне, не блокируя вызов API.
// Ошибка цикла попадёт в статус счёта, здесь её достаточно залогировать.
func (s *AccountService) kickSync(id int) {
	if s.engine == nil {
		return
	}
	go func() {
		if err := s.engine.SyncNow(context.Background(), id); err != nil {
			s.log.Debug("Фоновая синхронизация не выполнена",
				utils.AccountID(id), utils.Err(err))
		}
	}()
}
