// Package config loads server settings from the environment, after reading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartgifter/giftledger/generic"
)

// Config holds all configuration for the server.
type Config struct {
	Port        int
	DBPath      string
	Environment string // "development" or "production"
	LogLevel    string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Money
	Currency     generic.Currency
	WelcomeBonus generic.Amount

	// Contribution engine
	LockTimeout      time.Duration
	ConflictAttempts uint64
	AllowOverfunding bool

	// Sandbox payment provider
	SandboxTopUpLimit generic.Amount
	SandboxLatency    time.Duration

	// Background ledger audit; zero disables it
	AuditInterval time.Duration
}

// devSecret signs tokens when no JWT_SECRET is set in development.
const devSecret = "giftledger-development-secret"

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := lookup(getenv)

	cfg := &Config{
		DBPath:      env.str("DB_PATH", "giftledger.db"),
		Environment: env.str("ENVIRONMENT", "development"),
		LogLevel:    env.str("LOG_LEVEL", "info"),
		JWTSecret:   getenv("JWT_SECRET"),
		Currency:    generic.Currency(strings.ToUpper(env.str("CURRENCY", string(generic.USD)))),
	}

	cfg.Port = env.integer("PORT", 8080)
	cfg.TokenTTL = env.duration("TOKEN_TTL", 24*time.Hour)
	cfg.LockTimeout = env.duration("LOCK_TIMEOUT", 2*time.Second)
	if attempts := env.integer("CONFLICT_RETRIES", 3); attempts > 0 {
		cfg.ConflictAttempts = uint64(attempts)
	}
	cfg.AllowOverfunding = env.boolean("ALLOW_OVERFUNDING", false)
	cfg.SandboxLatency = env.duration("SANDBOX_LATENCY", 0)
	cfg.AuditInterval = env.duration("AUDIT_INTERVAL", 15*time.Minute)
	cfg.WelcomeBonus = env.amount("WELCOME_BONUS", "100.00", cfg.Currency)
	cfg.SandboxTopUpLimit = env.amount("SANDBOX_TOPUP_LIMIT", "1000.00", cfg.Currency)

	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = devSecret
	}
	return cfg, nil
}

// validate checks if all required configuration is present
func (c *Config) validate() error {
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.ConflictAttempts == 0 {
		return fmt.Errorf("CONFLICT_RETRIES must be at least 1")
	}
	if c.AuditInterval < 0 {
		return fmt.Errorf("AUDIT_INTERVAL must not be negative")
	}
	if c.WelcomeBonus.IsNegative() {
		return fmt.Errorf("WELCOME_BONUS must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// RetryPolicy is the engine's conflict retry policy.
func (c *Config) RetryPolicy() generic.RetryPolicy {
	p := generic.DefaultRetryPolicy()
	p.MaxAttempts = c.ConflictAttempts
	return p
}

// =============================================================================
// ENV PARSING
// =============================================================================

type envReader struct {
	getenv func(string) string
	errs   []error
}

func lookup(getenv func(string) string) *envReader {
	return &envReader{getenv: getenv}
}

func (e *envReader) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) amount(key, def string, currency generic.Currency) generic.Amount {
	a, err := generic.ParseAmount(e.str(key, def), currency)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return generic.ZeroAmount(currency)
	}
	return a
}
