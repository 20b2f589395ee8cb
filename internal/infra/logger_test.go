package infra

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewLogger_WritesToRotatingFile(t *testing.T) {
	cfg := &Config{}
	cfg.App.Name = "crypto-dash"
	cfg.Logging.Dir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger := NewLogger(cfg)
	logger.Debug("hello", slog.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, "app.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"hello"`) || !strings.Contains(line, `"app":"crypto-dash"`) {
		t.Errorf("unexpected log line: %s", line)
	}
}
