package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-0123456789"

func TestNewJWTConfig_DefaultValues(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	t.Setenv("JWT_ISSUER", "")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Secret)
	assert.Equal(t, 24, cfg.ExpirationHours, "should use default expiration of 24 hours")
	assert.Empty(t, cfg.Issuer)
}

func TestNewJWTConfig_CustomValues(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_HOURS", "168")
	t.Setenv("JWT_ISSUER", "auth.example.com")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, 168, cfg.ExpirationHours)
	assert.Equal(t, 7*24*time.Hour, cfg.TTL())
	assert.Equal(t, "auth.example.com", cfg.Issuer)
}

func TestNewJWTConfig_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		expiration string
		wantErr    string
	}{
		{name: "secret not set", secret: "", wantErr: "JWT_SECRET"},
		{name: "short secret", secret: "short", wantErr: "at least 16 characters"},
		{name: "non-numeric expiration", secret: testSecret, expiration: "invalid", wantErr: "JWT_EXPIRATION_HOURS"},
		{name: "zero expiration", secret: testSecret, expiration: "0", wantErr: "JWT_EXPIRATION_HOURS"},
		{name: "negative expiration", secret: testSecret, expiration: "-1", wantErr: "JWT_EXPIRATION_HOURS"},
		{name: "float expiration", secret: testSecret, expiration: "12.5", wantErr: "JWT_EXPIRATION_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)

			cfg, err := NewJWTConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
