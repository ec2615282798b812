package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"denguespot-chat/internal/testutil"
)

func corsHandler(origins []string) http.Handler {
	return CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		shouldAllow    bool
	}{
		{
			name:           "allowed origin",
			allowedOrigins: []string{"http://localhost:3000", "https://denguespot.in"},
			requestOrigin:  "http://localhost:3000",
			shouldAllow:    true,
		},
		{
			name:           "allowed second origin",
			allowedOrigins: []string{"http://localhost:3000", "https://denguespot.in"},
			requestOrigin:  "https://denguespot.in",
			shouldAllow:    true,
		},
		{
			name:           "disallowed origin",
			allowedOrigins: []string{"http://localhost:3000"},
			requestOrigin:  "http://malicious.example",
			shouldAllow:    false,
		},
		{
			name:           "no origin header",
			allowedOrigins: []string{"http://localhost:3000"},
			requestOrigin:  "",
			shouldAllow:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := corsHandler(tt.allowedOrigins)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/community/rooms", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Header().Get("Access-Control-Allow-Origin")
			if tt.shouldAllow {
				testutil.AssertEqual(t, got, tt.requestOrigin)
			} else {
				testutil.AssertEqual(t, got, "")
			}
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	handler := corsHandler([]string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/community/rooms", nil)
	req.Header.Set("Origin", "https://any-origin.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertEqual(t, w.Header().Get("Access-Control-Allow-Origin"), "https://any-origin.example")
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	nextCalled := false
	handler := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/community/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
	testutil.AssertFalse(t, nextCalled, "preflight should not reach the handler")
}

func TestParseOrigins(t *testing.T) {
	origins := ParseOrigins("http://localhost:3000, https://denguespot.in ,")
	testutil.AssertLen(t, origins, 2)
	testutil.AssertEqual(t, origins[0], "http://localhost:3000")
	testutil.AssertEqual(t, origins[1], "https://denguespot.in")
}
