package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"priceindex/internal/panel"
)

// EnvPrefix is the prefix for every environment variable read by Load
const EnvPrefix = "PINDEX"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Index     IndexConfig     `yaml:"index" envconfig:"INDEX"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	ComputeTimeout  time.Duration `yaml:"compute_timeout" envconfig:"COMPUTE_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`

	// APIKeys maps accepted keys to client names; empty disables key auth
	APIKeys map[string]string `yaml:"api_keys" envconfig:"API_KEYS"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// IndexConfig contains defaults for index computations
type IndexConfig struct {
	DefaultMethod   string   `yaml:"default_method" envconfig:"DEFAULT_METHOD"`
	PriceColumn     string   `yaml:"price_column" envconfig:"PRICE_COLUMN"`
	QuantityColumn  string   `yaml:"quantity_column" envconfig:"QUANTITY_COLUMN"`
	DateColumn      string   `yaml:"date_column" envconfig:"DATE_COLUMN"`
	ProductIDColumn string   `yaml:"product_id_column" envconfig:"PRODUCT_ID_COLUMN"`
	Characteristics []string `yaml:"characteristics" envconfig:"CHARACTERISTICS"`
	MaxConcurrency  int      `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY"`
	MaxObservations int      `yaml:"max_observations" envconfig:"MAX_OBSERVATIONS"`
	ResultRetention int      `yaml:"result_retention" envconfig:"RESULT_RETENTION"`
}

// Columns returns the column mapping used when reading uploaded panels
func (c IndexConfig) Columns() panel.Columns {
	return panel.Columns{
		Price:           c.PriceColumn,
		Quantity:        c.QuantityColumn,
		Date:            c.DateColumn,
		ProductID:       c.ProductIDColumn,
		Characteristics: c.Characteristics,
	}
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ComputeTimeout:  45 * time.Second,
			MaxUploadBytes:  32 << 20, // 32MB
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/priceindex.log",
		},
		Index: IndexConfig{
			DefaultMethod:   "TPD",
			PriceColumn:     "price",
			QuantityColumn:  "quantity",
			DateColumn:      "month",
			ProductIDColumn: "id",
			MaxConcurrency:  4,
			MaxObservations: 500000,
			ResultRetention: 100,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "priceindex",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}

// Load builds configuration from defaults, then the YAML file named by
// PINDEX_CONFIG_FILE (or the first config file found in the usual
// locations), then environment variables. Later layers win.
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if path == "" {
		path = getConfigFilePath()
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config file path; an empty path skips the file layer
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the first config file found in common locations
func getConfigFilePath() string {
	locations := []string{
		"priceindex.yaml",
		"configs/priceindex.yaml",
		"../configs/priceindex.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.ComputeTimeout <= 0 {
		return fmt.Errorf("compute timeout must be positive")
	}

	switch c.Index.DefaultMethod {
	case "TPD", "TDH":
	default:
		return fmt.Errorf("invalid default method: %q", c.Index.DefaultMethod)
	}

	if c.Index.MaxConcurrency <= 0 {
		return fmt.Errorf("index max concurrency must be positive")
	}

	if c.Index.ResultRetention <= 0 {
		return fmt.Errorf("index result retention must be positive")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/priceindex.log"
	}

	return nil
}
