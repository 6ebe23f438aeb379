package ratelimit

import "strings"

// unlimited is returned for probe and scrape routes
var unlimited = &EndpointConfig{Name: "unlimited"}

// MatchEndpoint returns the configuration whose pattern matches method and path, or nil.
// Patterns use ServeMux syntax: "POST /experiences/{id}/generate". A {name} segment
// matches any single non-empty segment. GET /health and GET /metrics are never limited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && (path == "/health" || path == "/metrics") {
		return unlimited
	}

	segments := splitPath(path)
	for i := range configs {
		if configs[i].matches(method, segments) {
			return &configs[i]
		}
	}
	return nil
}

func (c *EndpointConfig) matches(method string, segments []string) bool {
	wantMethod, pattern, ok := strings.Cut(c.Pattern, " ")
	if !ok || wantMethod != method {
		return false
	}
	want := splitPath(pattern)
	if len(want) != len(segments) {
		return false
	}
	for i, w := range want {
		if strings.HasPrefix(w, "{") && strings.HasSuffix(w, "}") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if w != segments[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}
