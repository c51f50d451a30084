package logger

import (
	"os"
	"path/filepath"
	"testing"

	"factoryops/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNilLoggerSafety(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	Debug("test debug")
	Info("test info")
	Warn("test warn")
	Error("test error")

	if With(zap.String("key", "value")) == nil {
		t.Error("With() returned nil logger")
	}
	if WithRequestID("test-id") == nil {
		t.Error("WithRequestID() returned nil logger")
	}
	if WithContext(map[string]any{"test": "value"}) == nil {
		t.Error("WithContext() returned nil logger")
	}
	if Get() == nil || Named("engine") == nil {
		t.Error("Get() and Named() must never return nil")
	}
	if err := Sync(); err != nil {
		t.Errorf("Sync on nil logger: %v", err)
	}
}

func TestDevelopmentConfig(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	devConfig := &config.LogConfig{Level: "debug", Output: "stdout"}
	if err := Init(devConfig, "development"); err != nil {
		t.Fatalf("Failed to initialize development logger: %v", err)
	}
	defer Sync()

	if !Get().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug level should be enabled")
	}
	Warn("Warning message with fields", zap.String("component", "test"), zap.Int("value", 42))
}

func TestDynamicLogLevel(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	if err := Init(&config.LogConfig{Level: "debug", Output: "stdout"}, "development"); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	defer Sync()

	UpdateLevel("warn")
	if Get().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled after UpdateLevel(warn)")
	}
	UpdateLevel("debug")
	if !Get().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled again")
	}
}

func TestFileOutput(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	testFile := filepath.Join(t.TempDir(), "logs", "app.log")
	fileConfig := &config.LogConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: testFile,
		MaxSize:  1,
	}

	if err := Init(fileConfig, "production"); err != nil {
		t.Fatalf("Failed to initialize file logger: %v", err)
	}

	Info("File logger initialized")
	for i := 0; i < 10; i++ {
		Info("Log entry for test", zap.Int("entry", i))
	}
	_ = Sync()

	fileInfo, err := os.Stat(testFile)
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}
	if fileInfo.Size() == 0 {
		t.Fatal("Log file is empty")
	}
}

func TestReplaceAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Named("gateway").Warn("evaluator unavailable")
	WithContext(map[string]any{"token": "abc", "attempt": 2, "ok": false}).Info("confirm")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "gateway" {
		t.Errorf("expected logger name gateway, got %q", entries[0].LoggerName)
	}
	if got := entries[1].ContextMap()["token"]; got != "abc" {
		t.Errorf("expected token field, got %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"bogus": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
