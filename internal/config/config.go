package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Terminal TerminalConfig
	Sync     SyncConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string
}

// TerminalConfig - настройки доступа к торговому терминалу
type TerminalConfig struct {
	Addr           string        // адрес IPC-моста терминала (host:port)
	Timeout        time.Duration // таймаут одной операции терминала
	AcquireTimeout time.Duration // сколько ждать освобождения терминала
	LoginRate      float64       // темп логинов в секунду
	LoginBurst     float64       // допустимый всплеск логинов
}

// SyncConfig - настройки фоновой синхронизации счетов
type SyncConfig struct {
	Interval             time.Duration // период тикера синхронизации
	Workers              int           // размер пула воркеров
	MaxReconnectAttempts int           // попыток переподключения до ERROR
	BackoffInitial       time.Duration // стартовая задержка backoff
	BackoffMax           time.Duration // потолок задержки backoff
	EmitUnchanged        bool          // слать уведомления даже без изменений
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "mt5bridge"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Terminal: TerminalConfig{
			Addr:           getEnv("TERMINAL_ADDR", "127.0.0.1:18812"),
			Timeout:        getEnvAsDuration("TERMINAL_TIMEOUT", 60*time.Second),
			AcquireTimeout: getEnvAsDuration("GATEWAY_ACQUIRE_TIMEOUT", 30*time.Second),
			LoginRate:      getEnvAsFloat("TERMINAL_LOGIN_RATE", 5),
			LoginBurst:     getEnvAsFloat("TERMINAL_LOGIN_BURST", 5),
		},
		Sync: SyncConfig{
			Interval:             getEnvAsDuration("SYNC_INTERVAL", 2*time.Second),
			Workers:              getEnvAsInt("SYNC_WORKERS", 4),
			MaxReconnectAttempts: getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 5),
			BackoffInitial:       getEnvAsDuration("SYNC_BACKOFF_INITIAL", 1*time.Second),
			BackoffMax:           getEnvAsDuration("SYNC_BACKOFF_MAX", 60*time.Second),
			EmitUnchanged:        getEnvAsBool("SYNC_EMIT_UNCHANGED", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования паролей счетов
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting account passwords")
	}

	// Ключ AES выводится из парольной фразы через PBKDF2,
	// но короткая фраза обесценивает шифрование
	if len(c.Security.EncryptionKey) < 16 {
		return fmt.Errorf("ENCRYPTION_KEY must be at least 16 characters")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация параметров синхронизации
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %v", c.Sync.Interval)
	}

	if c.Sync.Workers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1, got %d", c.Sync.Workers)
	}

	if c.Sync.MaxReconnectAttempts < 1 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must be at least 1, got %d", c.Sync.MaxReconnectAttempts)
	}

	if c.Sync.BackoffInitial <= 0 {
		return fmt.Errorf("SYNC_BACKOFF_INITIAL must be positive, got %v", c.Sync.BackoffInitial)
	}

	if c.Sync.BackoffMax < c.Sync.BackoffInitial {
		return fmt.Errorf("SYNC_BACKOFF_MAX must be >= SYNC_BACKOFF_INITIAL, got %v < %v",
			c.Sync.BackoffMax, c.Sync.BackoffInitial)
	}

	// Валидация таймаутов терминала
	if c.Terminal.Timeout <= 0 {
		return fmt.Errorf("TERMINAL_TIMEOUT must be positive, got %v", c.Terminal.Timeout)
	}

	if c.Terminal.AcquireTimeout <= 0 {
		return fmt.Errorf("GATEWAY_ACQUIRE_TIMEOUT must be positive, got %v", c.Terminal.AcquireTimeout)
	}

	if c.Terminal.Addr == "" {
		return fmt.Errorf("TERMINAL_ADDR is required")
	}

	if c.Terminal.LoginRate <= 0 {
		return fmt.Errorf("TERMINAL_LOGIN_RATE must be positive, got %v", c.Terminal.LoginRate)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
