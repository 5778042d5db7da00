package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticFetchReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>cap 1</body></html>"))
	}))
	defer srv.Close()

	s := NewStatic(StaticConfig{UserAgent: "lexharvest-test"})
	defer s.Close()

	resp, err := s.Fetch(context.Background(), Request{URL: srv.URL + "/hk/cap1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "cap 1")
}

// HTTP error statuses must come back as responses, not errors, so the
// caller can record them as soft failures and feed 429/503 into the
// adaptive limiter.
func TestStaticFetchSurfacesErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStatic(StaticConfig{})
	defer s.Close()

	resp, err := s.Fetch(context.Background(), Request{URL: srv.URL + "/hk/cap999"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticFetchSurfacesRateLimitStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewStatic(StaticConfig{})
	defer s.Close()

	resp, err := s.Fetch(context.Background(), Request{URL: srv.URL + "/hk/cap1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.True(t, IsRateLimitStatus(resp.StatusCode))
}

func TestStaticFetchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStatic(StaticConfig{})
	defer s.Close()

	_, err := s.Fetch(ctx, Request{URL: "http://127.0.0.1:1/never"})
	assert.ErrorIs(t, err, context.Canceled)
}
