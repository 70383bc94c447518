// Package config loads application configuration from environment variables
// and an optional config file. Environment variables win: every key maps to
// STEVEDORE_<SECTION>_<KEY>, e.g. database.dsn -> STEVEDORE_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CrossDock   CrossDockConfig   `mapstructure:"crossdock"`
	Features    map[string]bool   `mapstructure:"features"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Log         LogConfig         `mapstructure:"log"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds connection pool settings.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AuthConfig holds bearer token validation settings. The engine never issues
// tokens, so there is nothing here beyond what validation needs.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// CrossDockConfig holds the allocation policy expression. The expression is
// compiled at startup; see the allocation package for the available
// variables.
type CrossDockConfig struct {
	Policy string `mapstructure:"policy"`
}

// WorkerConfig holds outbox relay settings.
type WorkerConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	Interval  time.Duration `mapstructure:"interval"`
}

// IdempotencyConfig holds idempotency key retention settings.
type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the environment and, when present, a
// config.yaml in the working directory or /etc/stevedore. A missing config
// file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/stevedore")

	v.SetEnvPrefix("STEVEDORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required (STEVEDORE_DATABASE_DSN)")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required (STEVEDORE_AUTH_JWT_SECRET)")
	}
	return nil
}

// Defaults are registered for every key so AutomaticEnv can see them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")

	v.SetDefault("crossdock.policy", "true")

	v.SetDefault("features", map[string]bool{})

	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.interval", 5*time.Second)

	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
