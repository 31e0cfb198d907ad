package fetch

import (
	"context"
	"net/http"
	"sync/atomic"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/data.geojson":
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(Config{RetryDelay: time.Millisecond})

	t.Run("ok", func(t *testing.T) {
		body, err := client.Get(context.Background(), server.URL+"/data.geojson", Options{})
		require.NoError(t, err)
		assert.Contains(t, string(body), "FeatureCollection")
	})

	t.Run("status error", func(t *testing.T) {
		_, err := client.Get(context.Background(), server.URL+"/missing", Options{})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := client.Get(context.Background(), "file:///etc/passwd", Options{})
		assert.Error(t, err)
	})
}

func TestClient_GetTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	client := NewClient(Config{MaxBytes: 16})

	_, err := client.Get(context.Background(), server.URL, Options{})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestClient_GetThroughProxy(t *testing.T) {
	var gotURL, gotTTL string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		gotTTL = r.URL.Query().Get("ttl")
		_, _ = w.Write([]byte("<gpx/>"))
	}))
	defer proxy.Close()

	client := NewClient(Config{ProxyURL: proxy.URL + "/ajax-proxy/?url={url}&ttl={ttl}"})

	body, err := client.Get(context.Background(), "https://example.org/track.gpx?x=1&y=2", Options{Proxied: true, TTL: 5 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "<gpx/>", string(body))
	assert.Equal(t, "https://example.org/track.gpx?x=1&y=2", gotURL)
	assert.Equal(t, "300", gotTTL)
}

func TestClient_ProxyNotConfigured(t *testing.T) {
	client := NewClient(Config{})

	_, err := client.Get(context.Background(), "https://example.org/a.csv", Options{Proxied: true})
	assert.ErrorIs(t, err, ErrProxyNotConfigured)
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(Config{}).Get(ctx, server.URL, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProxyURL(t *testing.T) {
	got := ProxyURL("/proxy/?url={url}&ttl={ttl}", "https://a.example/x y", 90*time.Second)
	assert.Equal(t, "/proxy/?url=https%3A%2F%2Fa.example%2Fx+y&ttl=90", got)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("lat,lon\n1,2\n"))
	}))
	defer server.Close()

	client := NewClient(Config{RetryDelay: time.Millisecond})

	body, err := client.Get(context.Background(), server.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "lat,lon\n1,2\n", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{MaxRetries: 2, RetryDelay: time.Millisecond})

	_, err := client.Get(context.Background(), server.URL, Options{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(Config{RetryDelay: time.Millisecond}).Get(context.Background(), server.URL, Options{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCalculateRetryDelay(t *testing.T) {
	c := NewClient(Config{RetryDelay: time.Second})
	assert.Equal(t, time.Second, c.calculateRetryDelay(1))
	assert.Equal(t, 2*time.Second, c.calculateRetryDelay(2))
	assert.Equal(t, 4*time.Second, c.calculateRetryDelay(3))
	assert.Equal(t, maxRetryDelay, c.calculateRetryDelay(10))
}
