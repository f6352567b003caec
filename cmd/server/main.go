package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mt5bridge/internal/api"
	"mt5bridge/internal/config"
	"mt5bridge/internal/notifier"
	"mt5bridge/internal/repository"
	"mt5bridge/internal/service"
	"mt5bridge/internal/store"
	"mt5bridge/internal/syncer"
	"mt5bridge/internal/terminal"
	"mt5bridge/internal/websocket"
	"mt5bridge/pkg/retry"
	"mt5bridge/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Info("Запуск mt5bridge",
		utils.String("db", cfg.Database.DSNWithoutPassword()),
		utils.String("terminal", cfg.Terminal.Addr))

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Error("Не удалось подключиться к базе данных", utils.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	log.Info("Подключение к базе данных установлено")

	// Репозиторий и хранилище живых сессий
	accountRepo := repository.NewAccountRepository(db)
	sessionStore := store.New()

	// Восстановление сессий после рестарта. Снапшоты в БД не хранятся,
	// они придут с первым циклом синхронизации.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	accounts, err := accountRepo.ListAll(bootCtx)
	bootCancel()
	if err != nil {
		log.Error("Не удалось загрузить счета из базы", utils.Err(err))
		os.Exit(1)
	}
	for _, acc := range accounts {
		sessionStore.Restore(acc)
	}
	log.Info("Сессии восстановлены", utils.Int("count", len(accounts)))

	// Терминал за единственным слотом
	termClient := terminal.NewClient(cfg.Terminal, log)
	defer termClient.Close()
	gateway := terminal.NewGateway(termClient, cfg.Terminal.AcquireTimeout)

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Нотификатор изменений поверх hub
	changeNotifier := notifier.New(hub, cfg.Sync.EmitUnchanged, log)

	// Сервис счетов
	accountService := service.NewAccountService(
		accountRepo,
		sessionStore,
		changeNotifier,
		cfg.Security.EncryptionKey,
		log,
	)

	// Движок синхронизации
	vault := service.NewCredentialVault(cfg.Security.EncryptionKey)
	engine := syncer.New(
		cfg.Sync,
		gateway,
		vault,
		sessionStore,
		accountRepo,
		changeNotifier,
		log,
	)
	accountService.SetEngine(engine)

	engineCtx, engineCancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(engineCtx)
	}()

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		AccountService: accountService,
		Hub:            hub,
		Store:          sessionStore,
		Notifier:       changeNotifier,
		Logger:         log,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("HTTP сервер запущен", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP сервер упал", utils.Err(err))
				os.Exit(1)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP сервер упал", utils.Err(err))
				os.Exit(1)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Остановка сервера...")

	// Сначала движок: дожидаемся запущенных циклов синхронизации
	engineCancel()
	select {
	case <-engineDone:
	case <-time.After(30 * time.Second):
		log.Warn("Движок синхронизации не остановился за отведённое время")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Сервер остановлен принудительно", utils.Err(err))
	}

	log.Info("Сервер остановлен")
}

// initDatabase создает подключение к базе данных.
// При старте контейнеров БД может подниматься дольше сервиса,
// поэтому ping выполняется с retry.
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err = retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, retry.NetworkConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
