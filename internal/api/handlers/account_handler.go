package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"mt5bridge/internal/models"
	"mt5bridge/internal/service"
	"mt5bridge/internal/store"
	"mt5bridge/internal/syncer"
	"mt5bridge/internal/terminal"

	"github.com/gorilla/mux"
)

// AccountHandler отвечает за управление MT5 счетами
//
// Endpoints:
// - POST /api/v1/accounts                  - регистрация счёта
// - GET /api/v1/accounts                   - список счетов пользователя
// - GET /api/v1/accounts/{id}              - счёт с живым снапшотом
// - PATCH /api/v1/accounts/{id}            - обновление учётных данных
// - DELETE /api/v1/accounts/{id}           - удаление счёта
// - POST /api/v1/accounts/{id}/sync        - синхронизация вне расписания
// - POST /api/v1/accounts/{id}/reconnect   - вывод счёта из ERROR
// - POST /api/v1/accounts/{id}/disable     - остановка синхронизации
// - POST /api/v1/accounts/{id}/enable      - возврат счёта в работу
// - POST /api/v1/accounts/{id}/migrate     - перенос другому пользователю
// - POST /api/v1/accounts/migrate          - перенос всех счетов пользователя
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler создает новый AccountHandler с внедрением зависимостей
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// RegisterAccountRequest структура запроса на регистрацию счёта
type RegisterAccountRequest struct {
	BrokerName    string `json:"broker_name"`    // Exness, XM, etc
	AccountNumber string `json:"account_number"` // логин в терминале
	Password      string `json:"password"`       // передаётся один раз, хранится зашифрованным
	Server        string `json:"server"`         // торговый сервер брокера
}

// UpdateAccountRequest структура запроса на обновление счёта
type UpdateAccountRequest struct {
	BrokerName    *string `json:"broker_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	Password      *string `json:"password,omitempty"`
	Server        *string `json:"server,omitempty"`
}

// MigrateAccountRequest структура запроса на перенос счёта
type MigrateAccountRequest struct {
	NewUserID int `json:"new_user_id"`
}

// MigrateUserRequest структура запроса на перенос всех счетов пользователя
type MigrateUserRequest struct {
	FromUserID int `json:"from_user_id"`
	ToUserID   int `json:"to_user_id"`
}

// MigrateUserResponse структура ответа с числом перенесённых счетов
type MigrateUserResponse struct {
	Moved int `json:"moved"`
}

// AccountResponse структура ответа с данными счёта и живым снапшотом
type AccountResponse struct {
	models.Account
	Positions []models.Position     `json:"positions"`
	Orders    []models.PendingOrder `json:"orders"`
}

// accountResponseOf собирает ответ из сессии.
// Позиции и ордера берутся из снапшота, до первой успешной
// синхронизации отдаются пустыми массивами.
func accountResponseOf(sess store.Session) AccountResponse {
	resp := AccountResponse{
		Account:   sess.Account,
		Positions: []models.Position{},
		Orders:    []models.PendingOrder{},
	}
	if sess.Snapshot != nil {
		if sess.Snapshot.Positions != nil {
			resp.Positions = sess.Snapshot.Positions
		}
		if sess.Snapshot.Orders != nil {
			resp.Orders = sess.Snapshot.Orders
		}
	}
	return resp
}

// RegisterAccount регистрирует новый MT5 счёт
// POST /api/v1/accounts
//
// Request Body:
//
//	{
//	  "broker_name": "Exness",
//	  "account_number": "100234",
//	  "password": "secret",
//	  "server": "Exness-MT5Real"
//	}
//
// Response:
// - 201 Created: счёт зарегистрирован, в ответе статус после первой
//   синхронизации
// - 400 Bad Request: невалидные параметры или неизвестный брокер/сервер
// - 409 Conflict: счёт уже зарегистрирован
func (h *AccountHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing_user", "User is not specified", "")
		return
	}

	var req RegisterAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	acc, err := h.accountService.Register(r.Context(), service.RegisterParams{
		UserID:        userID,
		BrokerName:    req.BrokerName,
		AccountNumber: req.AccountNumber,
		Password:      req.Password,
		Server:        req.Server,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, acc)
}

// GetAccounts возвращает все счета пользователя с живыми данными
// GET /api/v1/accounts
func (h *AccountHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing_user", "User is not specified", "")
		return
	}

	sessions := h.accountService.List(userID)
	accounts := make([]AccountResponse, 0, len(sessions))
	for _, sess := range sessions {
		accounts = append(accounts, accountResponseOf(sess))
	}

	respondWithJSON(w, http.StatusOK, accounts)
}

// GetAccount возвращает счёт с живым снапшотом
// GET /api/v1/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	sess, err := h.accountService.Get(userID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, accountResponseOf(sess))
}

// UpdateAccount обновляет учётные данные счёта
// PATCH /api/v1/accounts/{id}
//
// Смена учётных данных сбрасывает счёт в PENDING и запускает
// проверку новых данных у терминала.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	acc, err := h.accountService.Update(r.Context(), userID, id, service.UpdateParams{
		BrokerName:    req.BrokerName,
		AccountNumber: req.AccountNumber,
		Password:      req.Password,
		Server:        req.Server,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, acc)
}

// DeleteAccount удаляет счёт
// DELETE /api/v1/accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.accountService.Delete(r.Context(), userID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Account deleted"})
}

// SyncAccount запускает синхронизацию счёта вне расписания
// POST /api/v1/accounts/{id}/sync
//
// Response:
// - 200 OK: цикл выполнен, счёт обновлён
// - 409 Conflict: цикл уже выполняется
func (h *AccountHandler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.accountService.ForceSync(r.Context(), userID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	sess, err := h.accountService.Get(userID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, accountResponseOf(sess))
}

// ReconnectAccount выводит счёт из ERROR и запускает синхронизацию
// POST /api/v1/accounts/{id}/reconnect
func (h *AccountHandler) ReconnectAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.accountService.Reconnect(r.Context(), userID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Reconnect started"})
}

// DisableAccount останавливает автоматическую синхронизацию
// POST /api/v1/accounts/{id}/disable
func (h *AccountHandler) DisableAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.accountService.Disable(r.Context(), userID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Account disabled"})
}

// EnableAccount возвращает отключённый счёт в работу
// POST /api/v1/accounts/{id}/enable
func (h *AccountHandler) EnableAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.accountService.Enable(r.Context(), userID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Account enabled"})
}

// MigrateAccount переносит счёт другому пользователю
// POST /api/v1/accounts/{id}/migrate
//
// Служебная операция, владельцем может быть любой пользователь.
func (h *AccountHandler) MigrateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid account ID", "")
		return
	}

	var req MigrateAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	if err := h.accountService.Migrate(r.Context(), id, req.NewUserID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Account migrated"})
}

// MigrateAccounts переносит все счета одного пользователя другому
// POST /api/v1/accounts/migrate
//
// Служебная операция для слияния пользователей.
func (h *AccountHandler) MigrateAccounts(w http.ResponseWriter, r *http.Request) {
	var req MigrateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	moved, err := h.accountService.MigrateAll(r.Context(), req.FromUserID, req.ToUserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, MigrateUserResponse{Moved: moved})
}

// requestIDs извлекает пользователя и ID счёта из запроса
func (h *AccountHandler) requestIDs(w http.ResponseWriter, r *http.Request) (userID, id int, ok bool) {
	userID, err := requestUserID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing_user", "User is not specified", "")
		return 0, 0, false
	}

	id, err = pathID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid account ID", "")
		return 0, 0, false
	}

	return userID, id, true
}

// pathID извлекает {id} из пути запроса
func pathID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

// handleServiceError преобразует ошибки сервиса в HTTP ответы
func (h *AccountHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found", "")

	case errors.Is(err, service.ErrAccessDenied):
		respondWithError(w, http.StatusForbidden, "access_denied", "Account belongs to another user", "")

	case errors.Is(err, service.ErrAccountExists):
		respondWithError(w, http.StatusConflict, "account_exists", "Account with this number already exists", "")

	case errors.Is(err, service.ErrUnknownBroker):
		respondWithError(w, http.StatusBadRequest, "unknown_broker", "Broker is not in the directory", "")

	case errors.Is(err, service.ErrUnknownServer):
		respondWithError(w, http.StatusBadRequest, "unknown_server", "Server is not known for this broker", "")

	case errors.Is(err, service.ErrAccountDisabled):
		respondWithError(w, http.StatusConflict, "account_disabled", "Account is disabled", "")

	case errors.Is(err, service.ErrAccountNotDisabled):
		respondWithError(w, http.StatusConflict, "account_not_disabled", "Account is not disabled", "")

	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "invalid_input", "Invalid account parameters", err.Error())

	case errors.Is(err, syncer.ErrAccountNotFound):
		respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found", "")

	case errors.Is(err, syncer.ErrSyncInFlight):
		respondWithError(w, http.StatusConflict, "sync_in_flight", "Sync cycle is already running", "")

	case errors.Is(err, syncer.ErrAccountDisabled):
		respondWithError(w, http.StatusConflict, "account_disabled", "Account is disabled", "")

	// Ошибки терминала долетают сюда из принудительной синхронизации
	// и reconnect. Постоянные требуют действий пользователя, временные
	// движок повторит сам.
	case errors.Is(err, terminal.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnprocessableEntity, "invalid_credentials", "Broker rejected the login or password", "")

	case errors.Is(err, terminal.ErrServerUnknown):
		respondWithError(w, http.StatusUnprocessableEntity, "unknown_server", "Trade server is not recognized by the terminal", "")

	case errors.Is(err, terminal.ErrGatewayBusy):
		respondWithError(w, http.StatusServiceUnavailable, "terminal_busy", "Terminal slot is busy, sync will be retried", "")

	case terminal.IsTransient(err):
		respondWithError(w, http.StatusServiceUnavailable, "terminal_unavailable", "Terminal is unavailable, sync will be retried", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
