package api

import (
	"net/http"

	"mt5bridge/internal/api/handlers"
	"mt5bridge/internal/api/middleware"
	"mt5bridge/internal/notifier"
	"mt5bridge/internal/service"
	"mt5bridge/internal/store"
	"mt5bridge/internal/websocket"
	"mt5bridge/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	AccountService *service.AccountService
	Hub            *websocket.Hub
	Store          *store.Store
	Notifier       *notifier.Notifier
	Logger         *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /accounts/
//	│   ├── GET / - список счетов пользователя
//	│   ├── POST / - регистрация счёта
//	│   ├── GET /{id} - счёт с живым снапшотом
//	│   ├── PATCH /{id} - обновление учётных данных
//	│   ├── DELETE /{id} - удаление счёта
//	│   ├── POST /{id}/sync - синхронизация вне расписания
//	│   ├── POST /{id}/reconnect - вывод из ERROR
//	│   ├── POST /{id}/disable - остановка синхронизации
//	│   ├── POST /{id}/enable - возврат в работу
//	│   ├── POST /{id}/migrate - перенос другому пользователю
//	│   └── POST /migrate - перенос всех счетов пользователя
//	└── /brokers/
//	    └── GET / - справочник брокеров и серверов
//
// /ws/
//
//	└── /stream - WebSocket поток обновлений счетов
//
// Пользователя аутентифицирует веб-приложение перед этим сервисом
// и передаёт его заголовком X-User-ID.
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var accountHandler *handlers.AccountHandler
	if deps != nil && deps.AccountService != nil {
		accountHandler = handlers.NewAccountHandler(deps.AccountService)
	}

	brokerHandler := handlers.NewBrokerHandler()

	var streamHandler *handlers.StreamHandler
	if deps != nil && deps.Hub != nil && deps.Store != nil && deps.Notifier != nil {
		streamHandler = handlers.NewStreamHandler(deps.Hub, deps.Store, deps.Notifier, deps.Logger)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Account routes
	if accountHandler != nil {
		api.HandleFunc("/accounts", accountHandler.GetAccounts).Methods("GET")
		api.HandleFunc("/accounts", accountHandler.RegisterAccount).Methods("POST")
		api.HandleFunc("/accounts/migrate", accountHandler.MigrateAccounts).Methods("POST")
		api.HandleFunc("/accounts/{id}", accountHandler.GetAccount).Methods("GET")
		api.HandleFunc("/accounts/{id}", accountHandler.UpdateAccount).Methods("PATCH")
		api.HandleFunc("/accounts/{id}", accountHandler.DeleteAccount).Methods("DELETE")
		api.HandleFunc("/accounts/{id}/sync", accountHandler.SyncAccount).Methods("POST")
		api.HandleFunc("/accounts/{id}/reconnect", accountHandler.ReconnectAccount).Methods("POST")
		api.HandleFunc("/accounts/{id}/disable", accountHandler.DisableAccount).Methods("POST")
		api.HandleFunc("/accounts/{id}/enable", accountHandler.EnableAccount).Methods("POST")
		api.HandleFunc("/accounts/{id}/migrate", accountHandler.MigrateAccount).Methods("POST")
	}

	// Broker directory
	api.HandleFunc("/brokers", brokerHandler.GetBrokers).Methods("GET")

	// WebSocket route
	if streamHandler != nil {
		router.HandleFunc("/ws/stream", streamHandler.Stream)
	}

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
