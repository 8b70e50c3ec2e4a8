package log

import (
	"log/slog"
	"os"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // 默认值
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	cfg := NewConfigFromEnv()
	if cfg.Level != "warn" {
		t.Errorf("Level = %q, want %q", cfg.Level, "warn")
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want %q", cfg.Format, "json")
	}
}

func TestNewConfigFromEnv_Development(t *testing.T) {
	t.Setenv("ENV", "development")
	os.Unsetenv("LOG_LEVEL")

	cfg := NewConfigFromEnv()
	// 开发环境强制 debug 级别并添加源文件信息
	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want %q", cfg.Level, "debug")
	}
	if !cfg.AddSource {
		t.Error("AddSource should be true in development")
	}
}

func TestNewModuleLogger(t *testing.T) {
	Init(&Config{Level: "debug", Format: "console"})

	logger := NewModuleLogger("history", "aggregator")
	if logger == nil {
		t.Fatal("NewModuleLogger returned nil")
	}
	if !IsDebugMode() {
		t.Error("IsDebugMode should be true after debug init")
	}
}
