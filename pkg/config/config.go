package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the server and the process CLIs.
type Config struct {
	DBDriver           string
	DBDSN              string
	DBAutoMigrate      bool
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBStatementTimeout time.Duration

	HTTPAddr   string
	JWTSecret  string
	LogLevel   string
	LogFormat  string
	UploadBase string

	MustahiqCodePrefix string
	Timezone           string
	OCRMinConfidence   float64
}

const devJWTSecret = "dev-insecure-secret-change"

var defaults = map[string]any{
	"DB_DRIVER":            "postgres",
	"DB_AUTO_MIGRATE":      true,
	"DB_MAX_OPEN_CONNS":    10,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_STATEMENT_TIMEOUT": "15s",
	"HTTP_ADDR":            ":8081",
	"JWT_SECRET":           devJWTSecret,
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"UPLOAD_BASE":          "uploads",
	"MUSTAHIQ_CODE_PREFIX": "MST",
	"TIMEZONE":             "Asia/Jakarta",
	"OCR_MIN_CONFIDENCE":   0.15,
}

// Load reads ./.env (never overriding variables already set), an optional
// config.yaml and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:              v.GetString("DB_DSN"),
		DBAutoMigrate:      v.GetBool("DB_AUTO_MIGRATE"),
		DBMaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
		DBStatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		UploadBase:         v.GetString("UPLOAD_BASE"),
		MustahiqCodePrefix: v.GetString("MUSTAHIQ_CODE_PREFIX"),
		Timezone:           v.GetString("TIMEZONE"),
		OCRMinConfidence:   v.GetFloat64("OCR_MIN_CONFIDENCE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is not set")
	}
	if c.DBStatementTimeout <= 0 {
		return fmt.Errorf("DB_STATEMENT_TIMEOUT must be positive")
	}
	if c.MustahiqCodePrefix == "" {
		return fmt.Errorf("MUSTAHIQ_CODE_PREFIX must not be empty")
	}
	return nil
}

// UsingDevSecret reports whether the JWT secret is the development fallback.
func (c *Config) UsingDevSecret() bool { return c.JWTSecret == devJWTSecret }

// Location resolves Timezone, the zone that decides what "today" is.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
