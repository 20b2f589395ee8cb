package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto_dash/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://api.local:9000\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.BaseURL != "http://api.local:9000" {
		t.Errorf("BaseURL = %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", cfg.API.Timeout)
	}
	if cfg.UI.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.UI.PageSize)
	}
	if len(cfg.UI.PageSizes) != 3 || cfg.UI.PageSizes[0] != 10 || cfg.UI.PageSizes[2] != 100 {
		t.Errorf("PageSizes = %v, want [10 50 100]", cfg.UI.PageSizes)
	}
	if cfg.UI.TopN != 5 || cfg.UI.ForecastLookback != 30 || cfg.UI.SentimentLimit != 30 {
		t.Errorf("unexpected UI defaults: %+v", cfg.UI)
	}
	if cfg.UI.Theme != "dark" || cfg.UI.DefaultRange != "1d" {
		t.Errorf("Theme/Range = %s/%s", cfg.UI.Theme, cfg.UI.DefaultRange)
	}
	if cfg.API.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q", cfg.API.UserAgent)
	}
	if cfg.API.Breaker.FailureThreshold != 5 {
		t.Errorf("Breaker.FailureThreshold = %d", cfg.API.Breaker.FailureThreshold)
	}
}

func TestLoadConfig_FileValuesWin(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://x
  timeout: 3s
ui:
  page_size: 10
  theme: light
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("Timeout = %s, want 3s", cfg.API.Timeout)
	}
	if cfg.UI.PageSize != 10 || cfg.UI.Theme != "light" || cfg.Logging.Level != "debug" {
		t.Errorf("file values not applied: %+v %+v", cfg.UI, cfg.Logging)
	}
}

func TestLoadConfig_ExplicitZeroKept(t *testing.T) {
	path := writeConfig(t, `
api:
  max_retries: 0
ui:
  sparkline_jitter: 0
  page_size: 25
  page_sizes: [25]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.API.MaxRetries)
	}
	if cfg.UI.SparklineJitter != 0 {
		t.Errorf("SparklineJitter = %v, want 0", cfg.UI.SparklineJitter)
	}
	if len(cfg.UI.PageSizes) != 1 || cfg.UI.PageSizes[0] != 25 {
		t.Errorf("PageSizes = %v, want [25]", cfg.UI.PageSizes)
	}
	if cfg.API.Timeout != 10*time.Second || cfg.UI.SparklinePoints != 24 {
		t.Errorf("omitted keys lost their defaults: %s %d", cfg.API.Timeout, cfg.UI.SparklinePoints)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CRYPTO_DASH_API_BASE_URL", "https://override.example")
	t.Setenv("CRYPTO_DASH_THEME", "LIGHT")

	cfg, err := LoadConfig(writeConfig(t, "api:\n  base_url: http://file\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.BaseURL != "https://override.example" {
		t.Errorf("BaseURL = %s", cfg.API.BaseURL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %s", cfg.UI.Theme)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad theme", "ui:\n  theme: blue\n", "ui.theme"},
		{"bad range", "ui:\n  default_range: 5y\n", "ui.default_range"},
		{"page size not allowed", "ui:\n  page_size: 25\n", "ui.page_size"},
		{"bad ws scheme", "stream:\n  ws_url: http://feed\n", "stream.ws_url"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			var cerr *domain.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected ConfigError, got %T: %v", err, err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %s, want %s", cerr.Field, tt.field)
			}
			if domain.IsRetriable(err) {
				t.Error("config errors are never retriable")
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	if cfg.Stream.WSURL != "" {
		t.Error("stream should be disabled by default")
	}
	if cfg.Storage.Path == "" {
		t.Error("storage path should default")
	}
}
