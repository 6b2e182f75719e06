package config

import (
	"errors"
	"fmt"
	"time"

	"view-analytics-service/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

const (
	defaultServiceName = "view-analytics-service"
	defaultServicePort = 8080

	defaultDBDriver        = DriverPostgres
	defaultDBMaxOpenConns  = 20
	defaultDBMaxIdleConns  = 10
	defaultDBConnLifetime  = 30 * time.Minute
	defaultCacheDriver     = DriverRedis
	defaultCacheAddr       = "localhost:6379"
	defaultCacheMemorySize = 1024

	defaultMaxFilterDepth = 10
	defaultMaxFilterNodes = 256
	defaultTopLimit       = 10
	defaultMaxTopLimit    = 100

	defaultPrecalcSchedule = "0 1 * * *"
	defaultPrecalcWorkers  = 4
	defaultPrecalcDays     = 7

	defaultLogLevel  = "info"
	defaultLogFormat = "json"
)

// Storage and cache drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverNone     = "none"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Query    QueryConfig    `yaml:"query"`
	Precalc  PrecalcConfig  `yaml:"precalc"`
	Logging  logger.Config  `yaml:"logging"`
}

type ServiceConfig struct {
	Name  string `yaml:"name"`
	Port  int    `env:"PORT"      yaml:"port"`
	Debug bool   `env:"APP_DEBUG" yaml:"debug"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DATABASE_DRIVER" yaml:"driver"` // postgres | memory
	DSN             string        `env:"POSTGRES_DSN"    yaml:"dsn"`
	Fixtures        string        `env:"MEMORY_FIXTURES" yaml:"fixtures"` // YAML reference rows for the memory driver
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type CacheConfig struct {
	Driver     string `env:"CACHE_DRIVER"   yaml:"driver"` // redis | memory | none
	Addr       string `env:"REDIS_ADDR"     yaml:"addr"`
	Password   string `env:"REDIS_PASSWORD" yaml:"password"`
	DB         int    `env:"REDIS_DB"       yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MemorySize int    `yaml:"memory_size"`
}

type QueryConfig struct {
	MaxFilterDepth  int `yaml:"max_filter_depth"`
	MaxFilterNodes  int `yaml:"max_filter_nodes"`
	DefaultTopLimit int `yaml:"default_top_limit"`
	MaxTopLimit     int `yaml:"max_top_limit"`
}

type PrecalcConfig struct {
	Schedule string `env:"PRECALC_SCHEDULE" yaml:"schedule"`
	Workers  int    `env:"PRECALC_WORKERS"  yaml:"workers"`
	Days     int    `env:"PRECALC_DAYS"     yaml:"days"` // trailing window recomputed by scheduled runs
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: defaultServiceName,
			Port: defaultServicePort,
		},
		Database: DatabaseConfig{
			Driver:          defaultDBDriver,
			MaxOpenConns:    defaultDBMaxOpenConns,
			MaxIdleConns:    defaultDBMaxIdleConns,
			ConnMaxLifetime: defaultDBConnLifetime,
		},
		Cache: CacheConfig{
			Driver:     defaultCacheDriver,
			Addr:       defaultCacheAddr,
			MemorySize: defaultCacheMemorySize,
		},
		Query: QueryConfig{
			MaxFilterDepth:  defaultMaxFilterDepth,
			MaxFilterNodes:  defaultMaxFilterNodes,
			DefaultTopLimit: defaultTopLimit,
			MaxTopLimit:     defaultMaxTopLimit,
		},
		Precalc: PrecalcConfig{
			Schedule: defaultPrecalcSchedule,
			Workers:  defaultPrecalcWorkers,
			Days:     defaultPrecalcDays,
		},
		Logging: logger.Config{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// ValidationError reports an unusable configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Service.Port < 1 || c.Service.Port > 65535 {
		invalid("service.port", "must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			invalid("database.dsn", "is required for the postgres driver (POSTGRES_DSN)")
		}
	case DriverMemory:
	default:
		invalid("database.driver", "must be one of: postgres, memory")
	}

	switch c.Cache.Driver {
	case DriverRedis:
		if c.Cache.Addr == "" {
			invalid("cache.addr", "is required for the redis driver")
		}
	case DriverMemory:
		if c.Cache.MemorySize < 1 {
			invalid("cache.memory_size", "must be positive")
		}
	case DriverNone:
	default:
		invalid("cache.driver", "must be one of: redis, memory, none")
	}

	if c.Query.MaxFilterDepth < 1 {
		invalid("query.max_filter_depth", "must be positive")
	}
	if c.Query.MaxFilterNodes < 1 {
		invalid("query.max_filter_nodes", "must be positive")
	}
	if c.Query.MaxTopLimit < 1 {
		invalid("query.max_top_limit", "must be positive")
	}
	if c.Query.DefaultTopLimit < 1 || c.Query.DefaultTopLimit > c.Query.MaxTopLimit {
		invalid("query.default_top_limit", "must be between 1 and max_top_limit")
	}

	if _, err := cron.ParseStandard(c.Precalc.Schedule); err != nil {
		invalid("precalc.schedule", "invalid cron expression: %v", err)
	}
	if c.Precalc.Workers < 1 {
		invalid("precalc.workers", "must be positive")
	}
	if c.Precalc.Days < 1 {
		invalid("precalc.days", "must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid("logging.level", "must be one of: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		invalid("logging.format", "must be one of: json, console")
	}

	return errors.Join(errs...)
}
