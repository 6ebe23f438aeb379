// Package server provides the HTTP API for topic generation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/generation"
	"github.com/jonathan/resume-topics/internal/logger"
	"github.com/jonathan/resume-topics/internal/server/middleware"
	"github.com/jonathan/resume-topics/internal/server/ratelimit"
	"github.com/jonathan/resume-topics/internal/types"
)

// DefaultPollInterval is how often the SSE stream re-reads the tracker
const DefaultPollInterval = 2 * time.Second

// Generations is the job orchestration surface the handlers drive
type Generations interface {
	GenerateAll(ctx context.Context, userID uuid.UUID, req types.GenerateAllRequest) ([]types.Topic, error)
	StartGenerateAll(ctx context.Context, userID uuid.UUID, req types.GenerateAllRequest) (*generation.Job, error)
	RegenerateOne(ctx context.Context, userID uuid.UUID, req types.RegenerateRequest) (*types.Topic, error)
	StartRegenerate(ctx context.Context, userID uuid.UUID, req types.RegenerateRequest) (*generation.Job, error)
	ActiveGenerations(ctx context.Context, userID uuid.UUID) (types.ActiveGenerations, error)
	ListTopics(ctx context.Context, userID uuid.UUID, expID, careerPathID int64) ([]types.Topic, error)
}

// Pinger reports backing-store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	handler      http.Handler
	generations  Generations
	jwt          *JWTService
	health       Pinger
	metrics      *Metrics
	rateLimiter  *ratelimit.Limiter
	log          *logger.Logger
	pollInterval time.Duration
}

// Config holds server configuration
type Config struct {
	Port         int
	Generations  Generations
	JWT          *JWTService
	Health       Pinger
	Metrics      *Metrics
	RateLimit    *ratelimit.Config
	Logger       *logger.Logger
	PollInterval time.Duration
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Generations == nil {
		return nil, fmt.Errorf("server requires a generation service")
	}
	if cfg.JWT == nil {
		return nil, fmt.Errorf("server requires a JWT service")
	}

	s := &Server{
		generations:  cfg.Generations,
		jwt:          cfg.JWT,
		health:       cfg.Health,
		metrics:      cfg.Metrics,
		log:          logger.OrNop(cfg.Logger),
		pollInterval: cfg.PollInterval,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	rl := cfg.RateLimit
	if rl == nil {
		rl = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rl)
	s.handler = s.routes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no deadline: status streams and ?wait=true responses are long-lived
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware-wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	auth := middleware.AuthMiddleware(s.jwt.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.Handle("POST /experiences/{id}/generate", protected(s.handleGenerateAll))
	mux.Handle("GET /experiences/{id}/topics", protected(s.handleListTopics))
	mux.Handle("POST /topics/{id}/regenerate", protected(s.handleRegenerate))
	mux.Handle("GET /generations/active", protected(s.handleActiveGenerations))
	mux.Handle("GET /generations/active/stream", protected(s.handleActiveGenerationsStream))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.metrics.withMetrics(s.withRateLimit(s.withLogging(s.withCORS(mux))))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer s.rateLimiter.Stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// Close releases background resources without serving
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"elapsed", time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("health check failed", "error", err)
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("error encoding JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// clientID extracts the client identifier (IP address) from the request.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.log.Info("rate limit exceeded", "limit", info.Limit, "reset", info.ResetTime.Format(time.RFC3339))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
