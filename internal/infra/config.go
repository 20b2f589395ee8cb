package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"crypto_dash/internal/domain"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent identifies the dashboard to the backend.
	DefaultUserAgent = "crypto-dash/1.0 (+terminal)"

	envPrefix = "CRYPTO_DASH_"
)

// Config holds every setting of the application.
// LoadConfig starts from the `default` tags, lays the file over them, then applies
// CRYPTO_DASH_* overrides. A key present in the file wins even when its value is zero.
type Config struct {
	App struct {
		Name    string `yaml:"name" default:"crypto-dash"`
		Version string `yaml:"version" default:"dev"`
	} `yaml:"app"`

	API     APIConfig     `yaml:"api"`
	Stream  StreamConfig  `yaml:"stream"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Debug   DebugConfig   `yaml:"debug"`
}

// APIConfig describes the market-data backend.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url" default:"http://localhost:8000" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" default:"2" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" default:"500ms" validate:"gt=0"`
	UserAgent      string        `yaml:"user_agent"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig sets the per-endpoint circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" default:"5" validate:"gt=0"`
	SuccessThreshold int           `yaml:"success_threshold" default:"1" validate:"gt=0"`
	Timeout          time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
}

// StreamConfig configures the live ticker feed. An empty WSURL disables it.
type StreamConfig struct {
	WSURL string `yaml:"ws_url" validate:"omitempty,url"`
}

// UIConfig holds presentation defaults.
type UIConfig struct {
	PageSize         int     `yaml:"page_size" default:"50" validate:"gt=0"`
	PageSizes        []int   `yaml:"page_sizes" default:"[10,50,100]" validate:"required,dive,gt=0"`
	DefaultRange     string  `yaml:"default_range" default:"1d" validate:"oneof=1d 1y 10y"`
	Theme            string  `yaml:"theme" default:"dark" validate:"oneof=light dark"`
	TopN             int     `yaml:"top_n" default:"5" validate:"gt=0"`
	SparklinePoints  int     `yaml:"sparkline_points" default:"24" validate:"gte=2"`
	SparklineJitter  float64 `yaml:"sparkline_jitter" default:"0.6" validate:"gte=0"`
	ForecastLookback int     `yaml:"forecast_lookback" default:"30" validate:"gt=0"`
	SentimentWindow  string  `yaml:"sentiment_window" default:"1d" validate:"required"`
	SentimentLimit   int     `yaml:"sentiment_limit" default:"30" validate:"gt=0"`
	ExportDir        string  `yaml:"export_dir" default:"exports"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	Level   string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Dir     string `yaml:"dir" default:"logs"`
	Console bool   `yaml:"console"`
}

// StorageConfig locates the sqlite preferences database and the icon directory.
// An empty IconDir uses the user config directory.
type StorageConfig struct {
	Path    string `yaml:"path" default:"crypto_dash.db"`
	IconDir string `yaml:"icon_dir"`
}

// DebugConfig configures the pprof and /metrics listener. Empty Addr disables it.
type DebugConfig struct {
	Addr string `yaml:"addr"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml paths (api.base_url) instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DefaultConfig returns a configuration built from defaults and the environment only.
func DefaultConfig() (*Config, error) {
	cfg, err := withDefaults()
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadConfig reads the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigError{Field: "path", Err: fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)}
		}
		return nil, err
	}

	cfg, err := withDefaults()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}
	return finish(cfg)
}

func withDefaults() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, &domain.ConfigError{Field: "defaults", Err: err}
	}
	return &cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	overrideWithEnv(cfg)

	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = DefaultUserAgent
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks tag rules and the cross-field constraints tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return configFieldError(verrs[0])
		}
		return &domain.ConfigError{Field: "config", Err: err}
	}

	if !containsInt(c.UI.PageSizes, c.UI.PageSize) {
		return &domain.ConfigError{
			Field: "ui.page_size",
			Err:   fmt.Errorf("%d is not one of page_sizes %v", c.UI.PageSize, c.UI.PageSizes),
		}
	}

	if u := c.Stream.WSURL; u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		return &domain.ConfigError{Field: "stream.ws_url", Err: fmt.Errorf("invalid websocket url: %s", u)}
	}

	return nil
}

func configFieldError(fe validator.FieldError) error {
	// Namespace is "Config.api.base_url"; drop the root type.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "url":
		msg = "must be a valid URL"
	case "oneof":
		msg = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "gte":
		msg = "must be at least " + fe.Param()
	case "lte":
		msg = "must be at most " + fe.Param()
	default:
		msg = "failed validation: " + fe.Tag()
	}
	return &domain.ConfigError{Field: field, Err: fmt.Errorf("%v %s", fe.Value(), msg)}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// overrideWithEnv applies CRYPTO_DASH_* variables over file values.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "STREAM_WS_URL"); v != "" {
		cfg.Stream.WSURL = v
	}
	if v := os.Getenv(envPrefix + "THEME"); v != "" {
		cfg.UI.Theme = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(envPrefix + "DEBUG_ADDR"); v != "" {
		cfg.Debug.Addr = v
	}
}
