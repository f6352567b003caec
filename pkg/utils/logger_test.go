package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferLogger возвращает логгер, пишущий JSON в буфер
func newBufferLogger(buf *bytes.Buffer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			MessageKey: "message",
			LevelKey:   "level",
		}),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return &Logger{
		Logger: zap.New(core),
		sugar:  zap.New(core).Sugar(),
	}
}

// ============================================================
// Тесты InitLogger
// ============================================================

func TestInitLoggerConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfg  LogConfig
	}{
		{"defaults", LogConfig{}},
		{"json", LogConfig{Level: "info", Format: "json"}},
		{"console", LogConfig{Level: "debug", Format: "console"}},
		{"development", LogConfig{Level: "debug", Format: "console", Development: true}},
		{"unknown level falls back", LogConfig{Level: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := InitLogger(tt.cfg)
			if logger == nil || logger.Logger == nil || logger.sugar == nil {
				t.Fatalf("InitLogger(%+v) returned incomplete logger", tt.cfg)
			}
		})
	}
}

func TestInitLoggerFileOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "logger_test_*.log")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	logger := InitLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: tmpFile.Name(),
	})

	logger.Info("Test message", zap.String("key", "value"))
	logger.Sync()

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(content) == 0 {
		t.Fatal("Log file is empty")
	}

	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Errorf("Log entry is not valid JSON: %v", err)
	}
}

func TestInitLoggerInvalidFileOutput(t *testing.T) {
	// Недоступный путь не должен ронять сервис, ожидаем fallback на stderr
	logger := InitLogger(LogConfig{
		Level:  "info",
		Output: "/nonexistent/directory/log.txt",
	})
	if logger == nil {
		t.Fatal("InitLogger returned nil for invalid output")
	}
}

// ============================================================
// Тесты глобального логгера
// ============================================================

func TestGlobalLogger(t *testing.T) {
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()

	logger := GetGlobalLogger()
	if logger == nil {
		t.Fatal("GetGlobalLogger returned nil")
	}
	if GetGlobalLogger() != logger {
		t.Error("GetGlobalLogger returned different loggers")
	}
	if L() != logger {
		t.Error("L() returned different logger")
	}

	initialized := InitGlobalLogger(LogConfig{Level: "debug", Format: "console"})
	if GetGlobalLogger() != initialized {
		t.Error("InitGlobalLogger did not replace the global logger")
	}

	replaced := InitLogger(LogConfig{Level: "warn"})
	SetGlobalLogger(replaced)
	if GetGlobalLogger() != replaced {
		t.Error("SetGlobalLogger did not set the logger")
	}
}

func TestGlobalLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	testLogger := newBufferLogger(&buf)
	SetGlobalLogger(testLogger)

	Debug("debug message", String("key", "debug"))
	Info("info message", String("key", "info"))
	Warn("warn message", String("key", "warn"))
	Error("error message", String("key", "error"))
	Infof("sync finished in %dms", 42)

	testLogger.Sync()
	output := buf.String()

	for _, want := range []string{
		"debug message", "info message", "warn message", "error message",
		"sync finished in 42ms",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("%q not found in output", want)
		}
	}
}

// ============================================================
// Тесты parseLevel
// ============================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

// ============================================================
// Тесты методов Logger
// ============================================================

func TestLoggerWithHelpers(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info"})

	tests := []struct {
		name   string
		helper func() *Logger
	}{
		{"With", func() *Logger { return logger.With(zap.String("key", "value")) }},
		{"WithComponent", func() *Logger { return logger.WithComponent("syncer") }},
		{"WithBroker", func() *Logger { return logger.WithBroker("XM") }},
		{"WithAccountID", func() *Logger { return logger.WithAccountID(123) }},
		{"WithUserID", func() *Logger { return logger.WithUserID(7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newLogger := tt.helper()
			if newLogger == nil {
				t.Fatalf("%s returned nil", tt.name)
			}
			if newLogger == logger {
				t.Errorf("%s should return a new logger", tt.name)
			}
		})
	}

	if logger.Sugar() == nil {
		t.Error("Sugar returned nil")
	}
}

// ============================================================
// Тесты конструкторов полей
// ============================================================

func TestFieldConstructors(t *testing.T) {
	var buf bytes.Buffer
	testLogger := newBufferLogger(&buf)

	testLogger.Info("test",
		Broker("Exness"),
		Server("Exness-MT5Real"),
		AccountID(123),
		AccountNumber("100234"),
		Balance(25000.50),
		Equity(24980.75),
		State("CONNECTED"),
		Attempt(3),
		Latency(15.5),
		RequestID("req-789"),
		UserID(1),
		Component("syncer"),
	)

	testLogger.Sync()
	output := buf.String()

	expectedFields := []string{
		"broker", "Exness",
		"server", "Exness-MT5Real",
		"account_id", "123",
		"account_number", "100234",
		"balance", "25000.5",
		"equity", "24980.75",
		"state", "CONNECTED",
		"attempt", "3",
		"latency_ms", "15.5",
		"request_id", "req-789",
		"user_id", "1",
		"component", "syncer",
	}

	for _, field := range expectedFields {
		if !strings.Contains(output, field) {
			t.Errorf("Field %q not found in output: %s", field, output)
		}
	}
}

func TestReexportedFieldConstructors(t *testing.T) {
	_ = String("key", "value")
	_ = Int("key", 42)
	_ = Int64("key", 42)
	_ = Float64("key", 3.14)
	_ = Bool("key", true)
	_ = Err(nil)
	_ = Any("key", struct{}{})
}

func TestFieldsToInterface(t *testing.T) {
	fields := []zap.Field{
		zap.String("key1", "value1"),
		zap.Int("key2", 42),
	}

	result := fieldsToInterface(fields)

	if len(result) != 4 {
		t.Fatalf("Expected 4 elements, got %d", len(result))
	}
	if result[0] != "key1" || result[2] != "key2" {
		t.Errorf("keys = %v, %v, want key1, key2", result[0], result[2])
	}
}

// ============================================================
// Бенчмарки
// ============================================================

func BenchmarkLoggerInfo(b *testing.B) {
	logger := InitLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: "/dev/null",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("Benchmark message",
			AccountID(i),
			State("CONNECTED"),
		)
	}
}
