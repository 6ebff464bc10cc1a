package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable, e.g. DASHBOARD_SERVER_PORT.
const EnvPrefix = "DASHBOARD"

const DefaultDatasetSource = "https://raw.githubusercontent.com/selpyra/brazillian-ecommerce/master/dashboard/all_data.csv"

type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Dataset   DatasetConfig   `envconfig:"DATASET"`
	Logger    LoggerConfig    `envconfig:"LOG"`
	Security  SecurityConfig  `envconfig:"SECURITY"`
	Telemetry TelemetryConfig `envconfig:"TELEMETRY"`
	Dashboard DashboardConfig `envconfig:"UI"`
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"8084" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`
}

type DatasetConfig struct {
	Source       string        `envconfig:"SOURCE" validate:"required"`
	CacheDir     string        `envconfig:"CACHE_DIR" default:".cache"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s" validate:"gt=0"`
}

type LoggerConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `envconfig:"RATE_LIMIT_RPS" default:"100" validate:"gt=0"`
	RateLimitBurst  int      `envconfig:"RATE_LIMIT_BURST" default:"20" validate:"gt=0"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
}

type TelemetryConfig struct {
	ServiceName   string  `envconfig:"SERVICE_NAME" default:"olist-dashboard"`
	TraceExporter string  `envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=stdout none"`
	SampleRatio   float64 `envconfig:"SAMPLE_RATIO" default:"1.0" validate:"gte=0,lte=1"`
	EnableMetrics bool    `envconfig:"METRICS_ENABLED" default:"true"`
}

type DashboardConfig struct {
	TopN      int `envconfig:"TOP_N" default:"5" validate:"min=1,max=100"`
	CacheSize int `envconfig:"CACHE_SIZE" default:"128" validate:"min=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.Dataset.Source == "" {
		cfg.Dataset.Source = DefaultDatasetSource
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Dataset.CacheTTL < 0 {
		return fmt.Errorf("dataset cache TTL must not be negative")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
