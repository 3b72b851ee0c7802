package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Atwood Monitor/test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	data, err := NewFetcher(server.Client(), "Atwood Monitor/test", time.Second).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(data))
}

func TestFetcherFetchNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewFetcher(server.Client(), "ua", time.Second).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetcherFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := NewFetcher(server.Client(), "ua", 50*time.Millisecond).Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}
