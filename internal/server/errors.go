package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/resume-topics/internal/generation"
	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error.
// Errors are matched through their wrap chains, so a stage failure
// wrapped by the graph executor still maps by its cause.
func HTTPStatus(err error) int {
	var (
		validationErr *types.ValidationError
		notFoundErr   *types.NotFoundError
		conflictErr   *generation.ConflictError
		timeoutErr    *llm.TimeoutError
		invocationErr *llm.InvocationError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr):
		return http.StatusConflict
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &invocationErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes it as a JSON error body.
// Internal errors are logged with their cause and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	s.errorResponse(w, status, message)
}
