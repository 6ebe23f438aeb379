package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the bucket shape for one route.
type EndpointConfig struct {
	Name    string        // Env prefix for overrides, e.g. GENERATE reads RATE_LIMIT_GENERATE_LIMIT
	Pattern string        // "METHOD /path/{wildcard}"
	Limit   int           // Requests per window (refill rate)
	Window  time.Duration // Refill window
	Burst   int           // Bucket capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
//
// Global: RATE_LIMIT_ENABLED, RATE_LIMIT_DEFAULT_LIMIT, RATE_LIMIT_DEFAULT_WINDOW,
// RATE_LIMIT_CLEANUP_INTERVAL, RATE_LIMIT_WHITELIST, RATE_LIMIT_BLACKLIST.
// Per endpoint: RATE_LIMIT_<NAME>_LIMIT, _WINDOW and _BURST.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	endpoints := DefaultEndpointConfigs()
	for i := range endpoints {
		ec := &endpoints[i]
		prefix := "RATE_LIMIT_" + ec.Name + "_"
		ec.Limit = getEnvInt(prefix+"LIMIT", ec.Limit)
		ec.Window = getEnvDuration(prefix+"WINDOW", ec.Window)
		ec.Burst = getEnvInt(prefix+"BURST", ec.Burst)
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 300),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: endpoints,
	}
}

// DefaultEndpointConfigs returns the per-route limits.
// Generation routes call the language model and get the strictest limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Name: "GENERATE", Pattern: "POST /experiences/{id}/generate", Limit: 20, Window: time.Hour, Burst: 3},
		{Name: "REGENERATE", Pattern: "POST /topics/{id}/regenerate", Limit: 60, Window: time.Hour, Burst: 5},

		// Clients poll the snapshot while jobs run; streams are long-lived so few are opened
		{Name: "STATUS", Pattern: "GET /generations/active", Limit: 600, Window: time.Minute, Burst: 60},
		{Name: "STATUS_STREAM", Pattern: "GET /generations/active/stream", Limit: 30, Window: time.Minute, Burst: 5},
	}
}

func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of client addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
