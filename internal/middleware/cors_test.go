package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name            string
		origins         []string
		origin          string
		method          string
		wantCode        int
		wantOrigin      string
		wantCredentials string
	}{
		{
			name:            "explicit origin",
			origins:         []string{"https://argocd.example.com"},
			origin:          "https://argocd.example.com",
			method:          http.MethodGet,
			wantCode:        http.StatusTeapot,
			wantOrigin:      "https://argocd.example.com",
			wantCredentials: "true",
		},
		{
			name:       "wildcard has no credentials",
			origins:    []string{"*"},
			origin:     "https://evil.example.com",
			method:     http.MethodGet,
			wantCode:   http.StatusTeapot,
			wantOrigin: "https://evil.example.com",
		},
		{
			name:     "unknown origin",
			origins:  []string{"https://argocd.example.com"},
			origin:   "https://evil.example.com",
			method:   http.MethodGet,
			wantCode: http.StatusTeapot,
		},
		{
			name:            "preflight short-circuits",
			origins:         []string{"https://argocd.example.com"},
			origin:          "https://argocd.example.com",
			method:          http.MethodOptions,
			wantCode:        http.StatusOK,
			wantOrigin:      "https://argocd.example.com",
			wantCredentials: "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/chat/panel", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.origins)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected allow-origin %q, got %q", tt.wantOrigin, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("expected allow-credentials %q, got %q", tt.wantCredentials, got)
			}
		})
	}
}

func TestCORSAllowedHeaders(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://argocd.example.com")

	rec := httptest.NewRecorder()
	CORS([]string{"*"})(next).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-Chat-Panel-ID" {
		t.Errorf("unexpected default headers %q", got)
	}

	rec = httptest.NewRecorder()
	CORS([]string{"*"}, "Content-Type")(next).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("unexpected custom headers %q", got)
	}
}
