package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-topics/internal/config"
	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/server"
	"github.com/jonathan/resume-topics/internal/types"
)

const testSecret = "test-secret-key-0123456789"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "watch", "token"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestServeFlags(t *testing.T) {
	for _, name := range []string{"port", "migrate", "drain-timeout", "writer-concurrency"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), "missing flag --%s", name)
	}
}

func TestLLMConfig(t *testing.T) {
	c, err := llmConfig(&config.ServerConfig{
		LLMProvider:   "openai",
		OpenAIBaseURL: "http://localhost:11434/v1",
		LLMModels:     map[string]string{"advanced": "llama3.1:70b"},
	})
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, c.Provider)
	assert.Equal(t, "http://localhost:11434/v1", c.BaseURL)
	assert.Equal(t, "llama3.1:70b", c.GetModel(llm.TierAdvanced))
	assert.Equal(t, "gpt-4o-mini", c.GetModel(llm.TierLite))

	_, err = llmConfig(&config.ServerConfig{LLMProvider: "gemini", LLMModels: map[string]string{"mega": "x"}})
	assert.ErrorContains(t, err, "unknown model tier")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	userID := uuid.New()

	out, err := execute(t, "token", "--user", userID.String())
	require.NoError(t, err)

	jwtCfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtCfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestTokenCommand_InvalidUser(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	_, err := execute(t, "token", "--user", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid --user")

	_, err = execute(t, "token", "--user", uuid.Nil.String())
	assert.ErrorContains(t, err, "nil uuid")
}

func TestWatchCommand_FollowsUntilSettled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generations/active" || r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		snap := types.ActiveGenerations{GeneratingAllExperienceIDs: []int64{}, RegeneratingTopicIDs: []int64{}}
		if calls.Add(1) <= 2 {
			snap.GeneratingAllExperienceIDs = []int64{10}
		}
		_ = json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	out, err := execute(t, "watch", "--server", srv.URL, "--token", "tok", "--interval", "5ms")
	require.NoError(t, err)
	assert.Contains(t, out, "generating: experiences=[10] topics=[]")
	assert.Contains(t, out, "all generations settled")
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWatchCommand_NothingRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(types.ActiveGenerations{})
	}))
	defer srv.Close()

	out, err := execute(t, "watch", "--server", srv.URL, "--token", "tok", "--interval", "5ms")
	require.NoError(t, err)
	assert.Contains(t, out, "no generations in progress")
	assert.NotContains(t, out, "settled")
}

func TestWatchCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "watch", "--server", srv.URL, "--token", "bad", "--interval", "5ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
