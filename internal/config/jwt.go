package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// DefaultJWTExpirationHours is the lifetime of development tokens
	DefaultJWTExpirationHours = 24
	minJWTSecretLength        = 16
)

// JWTConfig holds configuration for validating bearer tokens.
// ExpirationHours only applies to development tokens minted by the CLI.
type JWTConfig struct {
	Secret          string
	Issuer          string
	ExpirationHours int
}

// NewJWTConfig reads JWT_SECRET (required), JWT_ISSUER (optional; when set, tokens must
// carry it) and JWT_EXPIRATION_HOURS.
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	hours, err := envInt("JWT_EXPIRATION_HOURS", DefaultJWTExpirationHours)
	if err != nil {
		return nil, err
	}

	cfg := &JWTConfig{
		Secret:          secret,
		Issuer:          envString("JWT_ISSUER", ""),
		ExpirationHours: hours,
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TTL is the lifetime of minted tokens
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if len(c.Secret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
