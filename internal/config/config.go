// Package config loads the server configuration from an optional YAML
// file and the environment. Environment variables override YAML values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete configuration of a bandmap process.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Query    QueryConfig    `yaml:"query"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"BANDMAP_ADDR" env-default:":8080"`

	// BaseURL prefixes every link in responses. Derived from Addr if empty.
	BaseURL     string        `yaml:"base_url" env:"BANDMAP_BASE_URL" env-default:""`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"BANDMAP_READ_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig selects and configures the storage engine.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"BANDMAP_DB_DRIVER" env-default:"sqlite"`

	// Path is the SQLite database file.
	Path string `yaml:"path" env:"BANDMAP_DB_PATH" env-default:"bandmap.db"`

	// URL is the PostgreSQL connection string. Secret, so never in YAML.
	URL      string `yaml:"-" env:"BANDMAP_DB_URL"`
	MaxConns int32  `yaml:"max_conns" env:"BANDMAP_DB_MAX_CONNS" env-default:"10"`
}

// QueryConfig bounds query execution.
type QueryConfig struct {
	DefaultLimit       int  `yaml:"default_limit" env:"BANDMAP_DEFAULT_LIMIT" env-default:"10000"`
	MaxLeafConcurrency int  `yaml:"max_leaf_concurrency" env:"BANDMAP_MAX_LEAF_CONCURRENCY" env-default:"8"`
	StrictContracts    bool `yaml:"strict_contracts" env:"BANDMAP_STRICT_CONTRACTS" env-default:"false"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"BANDMAP_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"BANDMAP_LOG_FORMAT" env-default:"json"`
}

// CacheConfig sizes the resource field set cache.
type CacheConfig struct {
	Size int           `yaml:"size" env:"BANDMAP_CACHE_SIZE" env-default:"128"`
	TTL  time.Duration `yaml:"ttl" env:"BANDMAP_CACHE_TTL" env-default:"10m"`
}

// Load reads path (optional) with environment overrides. A .env file in
// the working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = baseURLFor(cfg.Server.Addr)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads file if it exists. Variables already set are kept.
func loadDotEnv(file string) error {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("config: loading %s: %w", file, err)
	}
	return nil
}

func baseURLFor(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("config: BANDMAP_DB_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown database driver %q (want %s or %s)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if c.Query.MaxLeafConcurrency < 1 {
		return fmt.Errorf("config: query.max_leaf_concurrency must be positive, got %d", c.Query.MaxLeafConcurrency)
	}
	if c.Query.DefaultLimit < 0 {
		return fmt.Errorf("config: query.default_limit must not be negative, got %d", c.Query.DefaultLimit)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("config: cache.size must be positive, got %d", c.Cache.Size)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q (want json or console)", c.Log.Format)
	}
	return nil
}
