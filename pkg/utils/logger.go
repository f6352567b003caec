package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ============================================================
// Конфигурация логгера
// ============================================================

// LogConfig описывает настройки логирования.
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или console
	Output      string // stdout, stderr или путь к файлу
	Development bool   // режим разработки (цветной вывод, caller)
}

// Logger оборачивает zap.Logger и его sugared-вариант.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// parseLevel преобразует строковый уровень в zapcore.Level.
// Неизвестные значения трактуются как info.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создаёт логгер по конфигурации.
//
// Если указанный файл недоступен для записи, логгер молча
// откатывается на stderr. Инициализация не должна ронять процесс.
func InitLogger(cfg LogConfig) *Logger {
	// 1. Определяем sink
	var sink zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		sink = zapcore.AddSync(os.Stdout)
	case "stderr":
		sink = zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			sink = zapcore.AddSync(os.Stderr)
		} else {
			sink = zapcore.AddSync(f)
		}
	}

	// 2. Кодировщик
	var encCfg zapcore.EncoderConfig
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		if cfg.Development {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	// 3. Собираем core
	core := zapcore.NewCore(enc, sink, parseLevel(cfg.Level))

	opts := []zap.Option{}
	if cfg.Development {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// ============================================================
// Глобальный логгер
// ============================================================

// InitGlobalLogger инициализирует глобальный логгер.
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger заменяет глобальный логгер.
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger возвращает глобальный логгер.
// Если он не инициализирован, создаётся логгер по умолчанию.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{Level: "info", Format: "json", Output: "stderr"})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger.
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает дочерний логгер с добавленными полями.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{
		Logger: child,
		sugar:  child.Sugar(),
	}
}

// Sugar возвращает sugared-логгер для printf-стиля.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// WithComponent помечает логгер именем компонента.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(zap.String("component", name))
}

// WithBroker помечает логгер именем брокера.
func (l *Logger) WithBroker(broker string) *Logger {
	return l.With(zap.String("broker", broker))
}

// WithAccountID помечает логгер идентификатором счёта.
func (l *Logger) WithAccountID(accountID int) *Logger {
	return l.With(zap.Int("account_id", accountID))
}

// WithUserID помечает логгер идентификатором пользователя.
func (l *Logger) WithUserID(userID int) *Logger {
	return l.With(zap.Int("user_id", userID))
}

// ============================================================
// Глобальные функции логирования
// ============================================================

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

func Debugf(template string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { GetGlobalLogger().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(template, args...) }

// fieldsToInterface разворачивает zap-поля в плоский список key/value.
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		result = append(result, f.Key, f.Interface)
	}
	return result
}

// ============================================================
// Доменные конструкторы полей
// ============================================================

// Broker - поле с именем брокера.
func Broker(name string) zap.Field {
	return zap.String("broker", name)
}

// Server - поле с именем торгового сервера.
func Server(name string) zap.Field {
	return zap.String("server", name)
}

// AccountID - поле с идентификатором счёта.
func AccountID(id int) zap.Field {
	return zap.Int("account_id", id)
}

// AccountNumber - поле с номером счёта у брокера.
func AccountNumber(number string) zap.Field {
	return zap.String("account_number", number)
}

// Balance - поле с балансом счёта.
func Balance(v float64) zap.Field {
	return zap.Float64("balance", v)
}

// Equity - поле со средствами счёта.
func Equity(v float64) zap.Field {
	return zap.Float64("equity", v)
}

// State - поле с состоянием (статус счёта, фаза синхронизации).
func State(state string) zap.Field {
	return zap.String("state", state)
}

// Attempt - поле с номером попытки переподключения.
func Attempt(n int) zap.Field {
	return zap.Int("attempt", n)
}

// Latency - поле с задержкой в миллисекундах.
func Latency(ms float64) zap.Field {
	return zap.Float64("latency_ms", ms)
}

// RequestID - поле с идентификатором запроса.
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// UserID - поле с идентификатором пользователя.
func UserID(id int) zap.Field {
	return zap.Int("user_id", id)
}

// Component - поле с именем компонента.
func Component(name string) zap.Field {
	return zap.String("component", name)
}

// Переэкспорт стандартных конструкторов, чтобы вызывающему коду
// не приходилось импортировать zap напрямую.
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Err     = zap.Error
	Any     = zap.Any
)
