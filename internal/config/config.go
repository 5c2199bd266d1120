// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"tokenvault/internal/token"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim set on minted tokens and checked on verify.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime as integer+unit, e.g. "15m".
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime, e.g. "7d".
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// CleanupInterval is how often the worker deletes expired sessions, e.g. "1h".
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// MigrateOnBoot makes the server apply pending migrations before listening.
	MigrateOnBoot bool `mapstructure:"MIGRATE_ON_BOOT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. A TTL that does not parse fails Load; the TTL format is a
// startup concern, never a per-request one.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "tokenvault")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "7d")
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("MIGRATE_ON_BOOT", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := token.ParseTTL(cfg.JWTAccessTTL); err != nil {
		return nil, fmt.Errorf("config: JWT_ACCESS_TTL %q: %w", cfg.JWTAccessTTL, err)
	}
	if _, err := token.ParseTTL(cfg.JWTRefreshTTL); err != nil {
		return nil, fmt.Errorf("config: JWT_REFRESH_TTL %q: %w", cfg.JWTRefreshTTL, err)
	}
	if _, err := token.ParseTTL(cfg.CleanupInterval); err != nil {
		return nil, fmt.Errorf("config: CLEANUP_INTERVAL %q: %w", cfg.CleanupInterval, err)
	}

	return &cfg, nil
}

// AccessTTL returns the parsed access token lifetime. Load already validated
// the format.
func (c *Config) AccessTTL() time.Duration {
	d, _ := token.ParseTTL(c.JWTAccessTTL)
	return d
}

// RefreshTTL returns the parsed refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	d, _ := token.ParseTTL(c.JWTRefreshTTL)
	return d
}

// CleanupEvery returns the parsed worker cleanup interval.
func (c *Config) CleanupEvery() time.Duration {
	d, _ := token.ParseTTL(c.CleanupInterval)
	return d
}
