package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds all configuration for the storefront client.
type Config struct {
	APIURL         string   `json:"api_url" yaml:"api_url" validate:"required,http_url"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" validate:"min=1s"`
	RefreshLeeway  Duration `json:"refresh_leeway" yaml:"refresh_leeway" validate:"min=0s"`
	LoginPath      string   `json:"login_path" yaml:"login_path" validate:"required,startswith=/"`
	LogLevel       string   `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	NumWorkers     int      `json:"num_workers" yaml:"num_workers" validate:"min=1,max=64"`
	QueueSize      int      `json:"queue_size" yaml:"queue_size" validate:"min=1"`
	MetricsFile    string   `json:"metrics_file" yaml:"metrics_file"`

	Storage struct {
		Driver string `json:"driver" yaml:"driver" validate:"oneof=sqlite redis"`
		DBPath string `json:"db_path" yaml:"db_path" validate:"required_if=Driver sqlite,excludesall=?#"`
		// EncryptionKey seals stored values when set. Exactly 32 bytes.
		EncryptionKey string `json:"encryption_key" yaml:"encryption_key" validate:"omitempty,len=32"`
		RedisAddr     string `json:"redis_addr" yaml:"redis_addr" validate:"required_if=Driver redis"`
		RedisKey      string `json:"redis_key" yaml:"redis_key"`
		RedisDB       int    `json:"redis_db" yaml:"redis_db" validate:"gte=0"`
	} `json:"storage" yaml:"storage"`
}

// Duration is a wrapper around time.Duration that accepts strings ("30s")
// or integer nanoseconds in JSON and YAML.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	var err error
	d.Duration, err = time.ParseDuration(s)
	return err
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Default returns a configuration that works without a config file: a local
// API, an unencrypted SQLite session file and info logging.
func Default() *Config {
	cfg := &Config{
		APIURL:         "http://localhost:8000",
		RequestTimeout: Duration{30 * time.Second},
		RefreshLeeway:  Duration{time.Minute},
		LoginPath:      "/login",
		LogLevel:       "info",
		NumWorkers:     4,
		QueueSize:      32,
	}
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.DBPath = "storefront.db"
	cfg.Storage.RedisKey = "storefront:client_state"
	return cfg
}

// LoadFromFile reads configuration from a JSON or YAML file on top of the
// defaults, then applies environment overrides and validates the result.
// An empty path skips the file.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides overrides config fields with STOREFRONT_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("STOREFRONT_API_URL"); v != "" {
		c.APIURL = v
	}

	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv("STOREFRONT_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing STOREFRONT_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = Duration{d}
	}

	if v := os.Getenv("STOREFRONT_REFRESH_LEEWAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing STOREFRONT_REFRESH_LEEWAY: %w", err)
		}
		c.RefreshLeeway = Duration{d}
	}

	if v := os.Getenv("STOREFRONT_NUM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing STOREFRONT_NUM_WORKERS: %w", err)
		}
		c.NumWorkers = n
	}

	// Storage overrides
	if v := os.Getenv("STOREFRONT_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("STOREFRONT_ENCRYPTION_KEY"); v != "" {
		c.Storage.EncryptionKey = v
	}
	if v := os.Getenv("STOREFRONT_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
		c.Storage.Driver = DriverRedis
	}

	if v := os.Getenv("STOREFRONT_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
