// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TrackerBackend selects where in-flight generation jobs are recorded
type TrackerBackend string

const (
	TrackerMemory TrackerBackend = "memory"
	TrackerRedis  TrackerBackend = "redis"
)

const (
	DefaultPort         = 8080
	DefaultLLMTimeout   = 90 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultTrackerTTL   = 30 * time.Minute
)

// ServerConfig holds everything the serve command needs
type ServerConfig struct {
	Port        int
	DatabaseURL string
	LogMode     string

	LLMProvider   string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMTimeout    time.Duration
	// LLMModels maps a model tier name to a model that replaces the provider default
	LLMModels map[string]string

	TrackerBackend TrackerBackend
	RedisAddr      string
	TrackerTTL     time.Duration

	PollInterval time.Duration
	JWT          *JWTConfig
}

// LoadServerConfig reads the server configuration from environment variables
// and validates it. A .env file, if any, must already be loaded.
func LoadServerConfig() (*ServerConfig, error) {
	port, err := envInt("PORT", DefaultPort)
	if err != nil {
		return nil, err
	}
	llmTimeout, err := envDuration("LLM_TIMEOUT", DefaultLLMTimeout)
	if err != nil {
		return nil, err
	}
	pollInterval, err := envDuration("POLL_INTERVAL", DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	trackerTTL, err := envDuration("TRACKER_TTL", DefaultTrackerTTL)
	if err != nil {
		return nil, err
	}
	jwtConfig, err := NewJWTConfig()
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Port:           port,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogMode:        envString("LOG_MODE", "dev"),
		LLMProvider:    strings.ToLower(envString("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		LLMTimeout:     llmTimeout,
		LLMModels:      modelOverrides(),
		TrackerBackend: TrackerBackend(strings.ToLower(envString("TRACKER_BACKEND", string(TrackerMemory)))),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		TrackerTTL:     trackerTTL,
		PollInterval:   pollInterval,
		JWT:            jwtConfig,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// modelOverrides collects LLM_MODEL_LITE, LLM_MODEL_STANDARD and LLM_MODEL_ADVANCED
func modelOverrides() map[string]string {
	models := make(map[string]string)
	for _, tier := range []string{"lite", "standard", "advanced"} {
		if model := strings.TrimSpace(os.Getenv("LLM_MODEL_" + strings.ToUpper(tier))); model != "" {
			models[tier] = model
		}
	}
	return models
}

// TrackerHeartbeat is how often a running job refreshes its tracker entry: a third of
// TRACKER_TTL for the redis backend, 0 when entries do not expire.
func (c *ServerConfig) TrackerHeartbeat() time.Duration {
	if c.TrackerBackend != TrackerRedis || c.TrackerTTL <= 0 {
		return 0
	}
	return c.TrackerTTL / 3
}

// APIKey returns the key for the configured provider
func (c *ServerConfig) APIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// Validate checks required values for the selected provider and tracker backend
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required")
	}

	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("config error: GEMINI_API_KEY is required for provider gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("config error: OPENAI_API_KEY is required for provider openai")
		}
	default:
		return fmt.Errorf("config error: unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.TrackerBackend {
	case TrackerMemory:
	case TrackerRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config error: REDIS_ADDR is required for tracker backend redis")
		}
	default:
		return fmt.Errorf("config error: unsupported TRACKER_BACKEND %q", c.TrackerBackend)
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("config error: LLM_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config error: POLL_INTERVAL must be positive")
	}
	if c.JWT == nil {
		return fmt.Errorf("config error: JWT configuration is missing")
	}
	return c.JWT.normalize()
}

func envString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
