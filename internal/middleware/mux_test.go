package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestTrimSlash(t *testing.T) {
	tests := []struct {
		name             string
		path             string
		expectedStatus   int
		expectedLocation string
	}{
		{name: "root untouched", path: "/", expectedStatus: http.StatusOK},
		{name: "no slash untouched", path: "/users/7", expectedStatus: http.StatusOK},
		{name: "trailing slash", path: "/users/7/", expectedStatus: http.StatusMovedPermanently, expectedLocation: "/users/7"},
		{name: "keeps query", path: "/users/7/?tab=repos", expectedStatus: http.StatusMovedPermanently, expectedLocation: "/users/7?tab=repos"},
		{name: "swagger untouched", path: "/v1/swagger/", expectedStatus: http.StatusOK},
		{name: "protocol-relative host stays local", path: "//evil.example/", expectedStatus: http.StatusMovedPermanently, expectedLocation: "/evil.example"},
		{name: "many leading slashes", path: "///evil.example/users/", expectedStatus: http.StatusMovedPermanently, expectedLocation: "/evil.example/users"},
		{name: "only slashes", path: "//", expectedStatus: http.StatusMovedPermanently, expectedLocation: "/"},
	}

	h := TrimSlash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// * Set the URL directly, the way the server parses "//host/" request lines
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			path, query, _ := strings.Cut(tt.path, "?")
			req.URL = &url.URL{Path: path, RawQuery: query}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedLocation, rec.Header().Get("Location"))
		})
	}
}
