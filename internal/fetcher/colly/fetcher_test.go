package collyfetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorreltree/datalocker/internal/fetcher"
	collyfetcher "github.com/sorreltree/datalocker/internal/fetcher/colly"
)

func TestFetchUnconditional(t *testing.T) {
	t.Parallel()

	var sawHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader = r.Header.Get("If-Modified-Since")
		_, _ = w.Write([]byte("fresh content"))
	}))
	defer srv.Close()

	f := collyfetcher.New(collyfetcher.Config{UserAgent: "datalocker-test"})
	resp, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL + "/feed"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, []byte("fresh content"), resp.Body)
	assert.Empty(t, sawHeader, "no marker means no precondition header")
}

func TestFetchConditionalNotModified(t *testing.T) {
	t.Parallel()

	marker := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ims := r.Header.Get("If-Modified-Since")
		if ims == marker.Format(http.TimeFormat) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("should not be sent"))
	}))
	defer srv.Close()

	f := collyfetcher.New(collyfetcher.Config{})
	resp, err := f.Fetch(context.Background(), fetcher.Request{
		URL:             srv.URL + "/feed",
		IfModifiedSince: marker,
	})
	require.NoError(t, err)
	assert.True(t, resp.NotModified())
	assert.False(t, resp.OK())
	assert.Empty(t, resp.Body)
}

func TestFetchServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := collyfetcher.New(collyfetcher.Config{})
	resp, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL + "/feed"})
	require.NoError(t, err, "an HTTP error status is an outcome, not a fetch error")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestFetchUnreachableHost(t *testing.T) {
	t.Parallel()

	f := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), fetcher.Request{URL: "http://127.0.0.1:1/feed"})
	assert.Error(t, err)
}
