package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// MaxRetriesLimit bounds max_retries; the backoff doubles per attempt.
const MaxRetriesLimit = 20

// Resolver kinds.
const (
	ResolverMLflow  = "mlflow"
	ResolverCatalog = "catalog"
	ResolverSQLite  = "sqlite"
)

// Config holds runtime parameters for the daemon. Durations are whole seconds
// unless the field name says otherwise.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Host model processes bind to.
	Host    string `json:"host" yaml:"host" toml:"host"`
	MinPort int    `json:"min_port" yaml:"min_port" toml:"min_port"`
	MaxPort int    `json:"max_port" yaml:"max_port" toml:"max_port"`
	TTL     int    `json:"ttl" yaml:"ttl" toml:"ttl"`
	// MaxConcurrentModels caps live processes; 0 disables the cap.
	MaxConcurrentModels int `json:"max_concurrent_models" yaml:"max_concurrent_models" toml:"max_concurrent_models"`
	// MaxRetries is the invocation budget per prediction, 1..MaxRetriesLimit.
	MaxRetries    int `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	SweepInterval int `json:"sweep_interval" yaml:"sweep_interval" toml:"sweep_interval"`
	BackoffBaseMS int `json:"backoff_base_ms" yaml:"backoff_base_ms" toml:"backoff_base_ms"`
	InvokeTimeout int `json:"invoke_timeout" yaml:"invoke_timeout" toml:"invoke_timeout"`
	KillGrace     int `json:"kill_grace" yaml:"kill_grace" toml:"kill_grace"`

	// PredictTimeout bounds a whole prediction request, spawn and retries
	// included; 0 leaves it to the client.
	PredictTimeout int `json:"predict_timeout" yaml:"predict_timeout" toml:"predict_timeout"`

	// MaxBatchSize bounds rows per prediction; 0 disables the check.
	MaxBatchSize int   `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	Resolver    string       `json:"resolver" yaml:"resolver" toml:"resolver"`
	MLflow      MLflowConfig `json:"mlflow" yaml:"mlflow" toml:"mlflow"`
	CatalogPath string       `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	SQLitePath  string       `json:"sqlite_path" yaml:"sqlite_path" toml:"sqlite_path"`

	CORS CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
	// AuthTokenHashes are bcrypt hashes of accepted bearer tokens. Empty
	// leaves the control surface open.
	AuthTokenHashes []string `json:"auth_token_hashes" yaml:"auth_token_hashes" toml:"auth_token_hashes"`
}

type MLflowConfig struct {
	Bin         string   `json:"bin" yaml:"bin" toml:"bin"`
	EnvManager  string   `json:"env_manager" yaml:"env_manager" toml:"env_manager"`
	TrackingURI string   `json:"tracking_uri" yaml:"tracking_uri" toml:"tracking_uri"`
	Workers     int      `json:"workers" yaml:"workers" toml:"workers"`
	ExtraArgs   []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() Config {
	return Config{
		Addr:                ":8000",
		LogLevel:            "info",
		LogFormat:           "console",
		Host:                "127.0.0.1",
		MinPort:             5001,
		MaxPort:             5999,
		TTL:                 300,
		MaxConcurrentModels: 5,
		MaxRetries:          6,
		SweepInterval:       60,
		BackoffBaseMS:       1000,
		InvokeTimeout:       60,
		KillGrace:           5,
		MaxBodyBytes:        10 << 20,
		Resolver:            ResolverMLflow,
		MLflow:              MLflowConfig{Bin: "mlflow", EnvManager: "local"},
	}
}

// Load reads a configuration file based on its extension, on top of Defaults.
// Keys absent from the file keep their default value.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.MinPort < 1 || c.MinPort > 65535 || c.MaxPort < 1 || c.MaxPort > 65535 {
		errs = append(errs, fmt.Errorf("ports must be in 1..65535 (got %d-%d)", c.MinPort, c.MaxPort))
	} else if c.MinPort >= c.MaxPort {
		errs = append(errs, fmt.Errorf("min_port (%d) must be below max_port (%d)", c.MinPort, c.MaxPort))
	}
	if c.TTL <= 0 {
		errs = append(errs, errors.New("ttl must be > 0"))
	}
	if c.MaxRetries < 1 || c.MaxRetries > MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("max_retries must be in 1..%d (got %d)", MaxRetriesLimit, c.MaxRetries))
	}
	if c.MaxConcurrentModels < 0 {
		errs = append(errs, errors.New("max_concurrent_models must be >= 0"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be > 0"))
	}
	if c.BackoffBaseMS < 0 || c.InvokeTimeout < 0 || c.KillGrace < 0 || c.PredictTimeout < 0 {
		errs = append(errs, errors.New("backoff_base_ms, invoke_timeout, kill_grace and predict_timeout must be >= 0"))
	}
	if c.MaxBatchSize < 0 {
		errs = append(errs, errors.New("max_batch_size must be >= 0"))
	}
	switch c.Resolver {
	case ResolverMLflow:
	case ResolverCatalog:
		if strings.TrimSpace(c.CatalogPath) == "" {
			errs = append(errs, errors.New("catalog resolver requires catalog_path"))
		}
	case ResolverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite resolver requires sqlite_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown resolver %q", c.Resolver))
	}
	return errors.Join(errs...)
}

func (c Config) TTLDuration() time.Duration { return time.Duration(c.TTL) * time.Second }

func (c Config) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

func (c Config) BackoffBase() time.Duration { return time.Duration(c.BackoffBaseMS) * time.Millisecond }

func (c Config) InvokeTimeoutDuration() time.Duration {
	return time.Duration(c.InvokeTimeout) * time.Second
}

func (c Config) PredictTimeoutDuration() time.Duration {
	return time.Duration(c.PredictTimeout) * time.Second
}

func (c Config) KillGraceDuration() time.Duration { return time.Duration(c.KillGrace) * time.Second }
