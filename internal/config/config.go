// Package config loads process configuration from the environment and an
// optional .env file using Viper, and maps it onto the Engine configuration.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/store/sqlstore"
	"github.com/nemoserver/authcore/token"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read by Load when present.
const DefaultEnvFile = ".env"

// Config holds process configuration loaded from the environment.
type Config struct {
	// SecretKey is the hex encoded 32-byte token key. Empty generates an
	// ephemeral key at startup.
	SecretKey string `mapstructure:"SECRET_KEY"`
	// SessionDurationHours is the lifetime of a new session token.
	SessionDurationHours int `mapstructure:"SESSION_DURATION_HOURS"`
	// TokenRefreshIntervalHours is the minimum token age before refresh rotates it.
	TokenRefreshIntervalHours int `mapstructure:"TOKEN_REFRESH_INTERVAL_HOURS"`

	// UsersDBDriver is "sqlite" (default) or "postgres".
	UsersDBDriver string `mapstructure:"USERS_DB_DRIVER"`
	// UsersDBPath is the sqlite database file.
	UsersDBPath string `mapstructure:"USERS_DB_PATH"`
	// UsersDBDSN is the postgres connection URL.
	UsersDBDSN string `mapstructure:"USERS_DB_DSN"`

	// RedisAddr enables login throttling and the shared revocation list.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	PasswordAlgorithm string `mapstructure:"PASSWORD_ALGORITHM"`
	BcryptCost        int    `mapstructure:"BCRYPT_COST"`
	PasswordMinLength int    `mapstructure:"PASSWORD_MIN_LENGTH"`

	CleanupSchedule   string        `mapstructure:"CLEANUP_SCHEDULE"`
	RevocationEnabled bool          `mapstructure:"REVOCATION_ENABLED"`
	LoginMaxAttempts  int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginWindow       time.Duration `mapstructure:"LOGIN_WINDOW"`
	AuditEnabled      bool          `mapstructure:"AUDIT_ENABLED"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
}

// Load reads DefaultEnvFile (if present) and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultEnvFile)
}

// LoadFile reads envFile (if present), then builds and validates Config from
// the environment. Environment variables override the file.
func LoadFile(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", envFile, err)
			}
		}
	}

	v.AutomaticEnv()

	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("SESSION_DURATION_HOURS", 24)
	v.SetDefault("TOKEN_REFRESH_INTERVAL_HOURS", 1)
	v.SetDefault("USERS_DB_DRIVER", "sqlite")
	v.SetDefault("USERS_DB_PATH", "instance/users.db")
	v.SetDefault("USERS_DB_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PASSWORD_ALGORITHM", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 0)
	v.SetDefault("CLEANUP_SCHEDULE", "@every 10m")
	v.SetDefault("REVOCATION_ENABLED", true)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_WINDOW", "5m")
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Key(); err != nil {
		return err
	}
	if c.SessionDurationHours <= 0 {
		return errors.New("config: SESSION_DURATION_HOURS must be positive")
	}
	if c.TokenRefreshIntervalHours < 0 {
		return errors.New("config: TOKEN_REFRESH_INTERVAL_HOURS must not be negative")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.LoginMaxAttempts <= 0 {
		return errors.New("config: LOGIN_MAX_ATTEMPTS must be positive")
	}
	if c.LoginWindow <= 0 {
		return errors.New("config: LOGIN_WINDOW must be positive")
	}
	if _, err := c.Dialect(); err != nil {
		return fmt.Errorf("config: USERS_DB_DRIVER: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return nil
}

// Key decodes SecretKey. It returns nil for an empty key.
func (c *Config) Key() ([]byte, error) {
	if c.SecretKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("config: SECRET_KEY is not hex: %w", err)
	}
	if len(key) != token.KeySize {
		return nil, fmt.Errorf("config: SECRET_KEY must decode to %d bytes, got %d", token.KeySize, len(key))
	}
	return key, nil
}

// Dialect parses UsersDBDriver.
func (c *Config) Dialect() (sqlstore.Dialect, error) {
	return sqlstore.ParseDialect(c.UsersDBDriver)
}

// DSN returns the sqlite path or the postgres URL, depending on the driver.
func (c *Config) DSN() string {
	if d, _ := c.Dialect(); d == sqlstore.DialectPostgres {
		return c.UsersDBDSN
	}
	return c.UsersDBPath
}

// Level returns the parsed LOG_LEVEL, Info when it is invalid.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// RedisOptions returns nil when REDIS_ADDR is unset.
func (c *Config) RedisOptions() *redis.Options {
	if c.RedisAddr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Engine maps the process configuration onto authcore.DefaultConfig.
func (c *Config) Engine() (authcore.Config, error) {
	key, err := c.Key()
	if err != nil {
		return authcore.Config{}, err
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.Key = key
	cfg.Session.Duration = time.Duration(c.SessionDurationHours) * time.Hour
	cfg.Session.RefreshInterval = time.Duration(c.TokenRefreshIntervalHours) * time.Hour
	cfg.Password.Algorithm = c.PasswordAlgorithm
	cfg.Password.BcryptCost = c.BcryptCost
	cfg.Password.MinLength = c.PasswordMinLength
	cfg.Revocation.Enabled = c.RevocationEnabled
	cfg.RateLimit.MaxAttempts = c.LoginMaxAttempts
	cfg.RateLimit.Window = c.LoginWindow
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Janitor.Schedule = c.CleanupSchedule
	cfg.Janitor.Enabled = c.CleanupSchedule != ""
	return cfg, nil
}
