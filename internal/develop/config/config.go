// Package config loads server settings. Later sources override earlier
// ones: built-in defaults, the YAML file, the environment (a .env file is
// read first when present), then explicitly set command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DEVSIM_"

// Config is the complete server configuration.
type Config struct {
	DBPath   string `yaml:"db_path" env:"DB_PATH"`
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
	Verbose  bool   `yaml:"verbose" env:"VERBOSE"`
	Seed     bool   `yaml:"seed" env:"SEED"`

	Engine    EngineConfig    `yaml:"engine" envPrefix:"ENGINE_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
}

// EngineConfig tunes the query engine.
type EngineConfig struct {
	CacheSize       int    `yaml:"cache_size" env:"CACHE_SIZE"`
	SearchWorkers   int    `yaml:"search_workers" env:"SEARCH_WORKERS"`
	MaxResource     int    `yaml:"max_resource" env:"MAX_RESOURCE"`
	DefaultLanguage string `yaml:"default_language" env:"DEFAULT_LANGUAGE"`
}

// TelemetryConfig controls trace export. A blank endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: "data/develop/develop.db",
		Engine: EngineConfig{
			CacheSize:       1024,
			MaxResource:     develop.MaxResource,
			DefaultLanguage: "zh-CN",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "kc-development-server",
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// fs, when non-nil, must already be parsed; only flags the user set are
// applied.
func Load(path string, fs *flag.FlagSet) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if fs != nil {
		if err := applyFlags(&cfg, fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyFlags copies the flags set on the command line into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		value := f.Value.String()
		switch f.Name {
		case "db":
			cfg.DBPath = value
		case "http":
			cfg.HTTPAddr = value
		case "verbose":
			cfg.Verbose, err = strconv.ParseBool(value)
		case "seed":
			cfg.Seed, err = strconv.ParseBool(value)
		case "otel-endpoint":
			cfg.Telemetry.Endpoint = value
		case "lang":
			cfg.Engine.DefaultLanguage = value
		}
		if err != nil {
			err = fmt.Errorf("flag -%s: %w", f.Name, err)
		}
	})
	return err
}

// Validate checks the settings that have a restricted range.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.Engine.SearchWorkers < 0 {
		errs = append(errs, fmt.Errorf("engine.search_workers = %d, must not be negative", c.Engine.SearchWorkers))
	}
	if m := c.Engine.MaxResource; m != 0 && (m < develop.MinResource || m > develop.MaxResource) {
		errs = append(errs, fmt.Errorf("engine.max_resource = %d, want %d..%d", m, develop.MinResource, develop.MaxResource))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
