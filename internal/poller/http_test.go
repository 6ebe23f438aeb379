package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_SendsTokenAndDecodes(t *testing.T) {
	type seen struct{ auth, path string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{auth: r.Header.Get("Authorization"), path: r.URL.Path}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generatingAllExperienceIds":[10,12],"regeneratingTopicIds":[77]}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", "tok", nil)
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)

	req := <-got
	assert.Equal(t, "Bearer tok", req.auth)
	assert.Equal(t, ActivePath, req.path)
	assert.Equal(t, []int64{10, 12}, snap.GeneratingAllExperienceIDs)
	assert.Equal(t, []int64{77}, snap.RegeneratingTopicIDs)
}

func TestHTTPFetcher_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, "bad", srv.Client()).Fetch(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusUnauthorized, fe.StatusCode)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestHTTPFetcher_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, "", nil).Fetch(context.Background())
	assert.ErrorContains(t, err, "invalid response body")
}

func TestHTTPFetcher_DrivesPoller(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"generatingAllExperienceIds":[10],"regeneratingTopicIds":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"generatingAllExperienceIds":[],"regeneratingTopicIds":[]}`))
	}))
	defer srv.Close()

	p := New(NewHTTPFetcher(srv.URL, "tok", nil), WithInterval(1))
	var settled atomic.Bool
	p.Subscribe(func() { settled.Store(true) })

	require.NoError(t, p.Resume(context.Background()))
	assert.True(t, settled.Load())
	assert.Equal(t, int32(3), calls.Load())
}
