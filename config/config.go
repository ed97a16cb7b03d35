package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers understood by the server.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	App AppConfig `mapstructure:"app"`

	// Link allocation and expiry
	Links LinksConfig `mapstructure:"links"`

	// Which LinkStore backs the engine
	Store StoreConfig `mapstructure:"store"`

	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Stats    StatsConfig    `mapstructure:"stats"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type AppConfig struct {
	Env        string `mapstructure:"env"`
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
}

// Development reports whether the process runs outside production.
func (a AppConfig) Development() bool {
	return a.Env != "production"
}

type LinksConfig struct {
	DefaultValidityMinutes int    `mapstructure:"default_validity_minutes"`
	CodeLength             int    `mapstructure:"code_length"`
	MaxAllocationAttempts  int    `mapstructure:"max_allocation_attempts"`
	LocationHeader         string `mapstructure:"location_header"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type SnapshotConfig struct {
	Path           string `mapstructure:"path"`
	Schedule       string `mapstructure:"schedule"`
	RestoreOnStart bool   `mapstructure:"restore_on_start"`
}

type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

// Configured reports whether enough settings exist to dial Postgres.
func (p PostgresConfig) Configured() bool {
	return p.Host != "" && p.Database != ""
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Configured reports whether a Redis host has been set.
func (r RedisConfig) Configured() bool {
	return r.Host != ""
}

type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverPostgres, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("config: unknown store driver %q", c.Store.Driver))
	}
	if c.Links.DefaultValidityMinutes <= 0 {
		errs = append(errs, errors.New("config: links.default_validity_minutes must be positive"))
	}
	if c.Links.CodeLength < 4 || c.Links.CodeLength > 10 {
		errs = append(errs, errors.New("config: links.code_length must be between 4 and 10"))
	}
	if c.Links.MaxAllocationAttempts <= 0 {
		errs = append(errs, errors.New("config: links.max_allocation_attempts must be positive"))
	}
	if c.Store.Driver == DriverPostgres && !c.Postgres.Configured() {
		errs = append(errs, errors.New("config: postgres driver selected but postgres.host/database are empty"))
	}
	if c.Store.Driver == DriverRedis && !c.Redis.Configured() {
		errs = append(errs, errors.New("config: redis driver selected but redis.host is empty"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.listen_addr", ":8080")

	v.SetDefault("links.default_validity_minutes", 30)
	v.SetDefault("links.code_length", 6)
	v.SetDefault("links.max_allocation_attempts", 1000)
	v.SetDefault("links.location_header", "X-Client-Location")

	v.SetDefault("store.driver", DriverMemory)

	v.SetDefault("snapshot.schedule", "@every 5m")
	v.SetDefault("stats.cache_ttl", 2*time.Second)

	v.SetDefault("redis.key_prefix", "snaplink")
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.listen_addr", "LISTEN_ADDR")
	v.BindEnv("store.driver", "STORE_DRIVER")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")
}
