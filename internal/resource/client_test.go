package resource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://backend/", 30*time.Second)

	assert.NotNil(t, client)
	assert.Equal(t, "http://backend", client.BaseURL())
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_Do(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectedBody   string
		expectedRef    string
	}{
		{
			name: "success",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				assert.Equal(t, http.MethodGet, r.Method)
				w.Write([]byte(`[]`))
			},
			expectedBody: `[]`,
		},
		{
			name: "created counts as success",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{}`))
			},
			expectedBody: `{}`,
		},
		{
			name: "not found",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expectedRef: "RESOURCE_NOT_FOUND",
		},
		{
			name: "unexpected status",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			expectedRef: "BACKEND_STATUS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			client := NewClient(server.URL, time.Second)
			body, err := client.Do(context.Background(), http.MethodGet, "/users")

			if tt.expectedRef != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedRef, errors.Reference(err))
				assert.Nil(t, body)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedBody, string(body))
		})
	}
}

func TestClient_Context_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, http.MethodGet, "/users")

	require.Error(t, err)
	assert.Equal(t, "BACKEND_UNREACHABLE", errors.Reference(err))
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestRateLimiter_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	body, err := client.Do(context.Background(), http.MethodGet, "/users")

	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimiter_RetryUpdatesState(t *testing.T) {
	reset := time.Now().Add(time.Hour).Unix()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("X-RateLimit-Remaining", "50")
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	rl := NewRateLimiter()
	client := &http.Client{Transport: rl.Middleware(http.DefaultTransport)}

	resp, err := client.Get(server.URL + "/users")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, rl.remaining)
	assert.Equal(t, reset, rl.reset.Unix())
	assert.Greater(t, rl.pause(), time.Duration(0))
}

func TestRateLimiter_UpdateFromHeaders(t *testing.T) {
	rl := NewRateLimiter()
	reset := time.Now().Add(time.Hour).Unix()

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("X-RateLimit-Reset", "1700000000")
	headers.Set("Retry-After", "3")
	rl.updateFromHeaders(headers)

	assert.Equal(t, 0, rl.remaining)
	assert.Equal(t, int64(1700000000), rl.reset.Unix())
	assert.Equal(t, 3*time.Second, rl.retryDelay())
	assert.Equal(t, time.Duration(0), rl.pause(), "reset already passed")

	headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
	rl.updateFromHeaders(headers)
	assert.Greater(t, rl.pause(), time.Duration(0))
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter()
	rl.remaining = 0
	rl.reset = time.Now().Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, rl.waitIfNeeded(ctx), context.Canceled)
}
