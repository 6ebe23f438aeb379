package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/resume-topics/internal/types"
)

// ActivePath is the server route that reports in-flight jobs
const ActivePath = "/generations/active"

// DefaultHTTPTimeout bounds a single status query
const DefaultHTTPTimeout = 10 * time.Second

// FetchError is a failed status query
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("status query %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("status query %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// HTTPFetcher queries the server's active-generations endpoint with a bearer token
type HTTPFetcher struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the server at baseURL.
// A nil client gets one with DefaultHTTPTimeout.
func NewHTTPFetcher(baseURL, token string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{
		url:    strings.TrimRight(baseURL, "/") + ActivePath,
		token:  token,
		client: client,
	}
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context) (types.ActiveGenerations, error) {
	var snap types.ActiveGenerations

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return snap, &FetchError{URL: f.url, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return snap, &FetchError{URL: f.url, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return snap, &FetchError{URL: f.url, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("HTTP status %d", resp.StatusCode)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg += ": " + apiErr.Error
		}
		return snap, &FetchError{URL: f.url, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, &FetchError{URL: f.url, StatusCode: resp.StatusCode, Message: "invalid response body", Cause: err}
	}
	return snap, nil
}
