// Package config loads the service configuration from YAML files and CATALOGUE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment override, e.g. CATALOGUE_SERVER_PORT.
const EnvPrefix = "CATALOGUE"

// Config represents the application configuration
type Config struct {
	Environment string          `mapstructure:"environment" validate:"required,oneof=development staging production test"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Session     SessionConfig   `mapstructure:"session"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the gorm dialect and pool settings.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	DSN             string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" validate:"min=0"` // seconds
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	LogQueries      bool   `mapstructure:"log_queries"`
}

// RedisConfig is optional; an empty address keeps session selections in memory.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// AuthConfig configures bearer tokens.
type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret" validate:"required,min=16"`
	ExpirationHours int    `mapstructure:"expiration_hours" validate:"min=1"`
	Issuer          string `mapstructure:"issuer"`
	// LoginRate limits login attempts per client IP, in limiter notation such as "20-M".
	LoginRate string `mapstructure:"login_rate" validate:"required"`
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name" validate:"required"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	Secure     bool          `mapstructure:"secure"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// TelemetryConfig toggles the OpenTelemetry stdout exporters.
type TelemetryConfig struct {
	Tracing     bool   `mapstructure:"tracing"`
	Metrics     bool   `mapstructure:"metrics"`
	ServiceName string `mapstructure:"service_name"`
}

// DefaultPaths are searched when Load is called without explicit paths.
var DefaultPaths = []string{
	"./config.yaml",
	"./configs/config.yaml",
	"/etc/catalogue/config.yaml",
}

// Load reads configuration from the given YAML files (missing files are skipped),
// applies CATALOGUE_* environment overrides and validates the result.
func Load(logger *zap.Logger, paths ...string) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Debug("Config file not found, skipping", zap.String("path", path))
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	if len(loaded) == 0 {
		logger.Warn("No configuration files found, using defaults and environment variables")
	} else {
		logger.Info("Loaded configuration files", zap.Strings("files", loaded))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "catalogue.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_queries", false)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "change-this-development-secret")
	v.SetDefault("auth.expiration_hours", 24)
	v.SetDefault("auth.issuer", "catalogue")
	v.SetDefault("auth.login_rate", "20-M")

	v.SetDefault("session.cookie_name", "sessionid")
	v.SetDefault("session.max_age", 14*24*time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.metrics", false)
	v.SetDefault("telemetry.service_name", "catalogue")
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if cfg.Environment == "production" {
		if strings.Contains(cfg.Auth.JWTSecret, "change-this") {
			return fmt.Errorf("production environment requires a secure JWT secret")
		}
		if !cfg.Session.Secure {
			return fmt.Errorf("production environment requires secure session cookies")
		}
	}

	return nil
}
