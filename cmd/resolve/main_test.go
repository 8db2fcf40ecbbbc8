package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/users":      `[{"id":1},{"id":2}]`,
		"/users/7":    `{"id":7,"login":"ann"}`,
		"/users/jake": `[{"name":"stldevs"}]`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func runRoot(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	return decoded, nil
}

func TestResolve(t *testing.T) {
	backend := newBackend(t)

	t.Run("user list", func(t *testing.T) {
		out, err := runRoot(t, "/", "--backend", backend.URL)
		require.NoError(t, err)

		assert.Equal(t, "user-list", out["view"])
		assert.Len(t, out["users"].(map[string]any)["data"], 2)
	})

	t.Run("user detail", func(t *testing.T) {
		out, err := runRoot(t, "/users/7", "--backend", backend.URL)
		require.NoError(t, err)

		assert.Equal(t, "user", out["view"])
		assert.Equal(t, "ann", out["repos"].(map[string]any)["data"].(map[string]any)["login"])
	})

	t.Run("array shape", func(t *testing.T) {
		out, err := runRoot(t, "/users/jake", "--backend", backend.URL, "--shape", "array")
		require.NoError(t, err)

		assert.Len(t, out["repos"].(map[string]any)["data"], 1)
	})

	t.Run("redirect", func(t *testing.T) {
		out, err := runRoot(t, "/settings", "--backend", backend.URL)
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"redirect": "/"}, out)
	})
}

func TestResolve_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts options
	}{
		{name: "missing backend", opts: options{shape: "object", timeout: time.Second}},
		{name: "bad shape", opts: options{backend: "http://directory.local", shape: "tree", timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := resolve(context.Background(), &out, "/", tt.opts)

			assert.Error(t, err)
			assert.Empty(t, out.String())
		})
	}
}

func TestResolve_RequiresPath(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
