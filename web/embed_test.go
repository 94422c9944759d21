package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPanelHandler(t *testing.T) {
	h := PanelHandler()

	for _, target := range []string{"/", "/?app=guestbook", "/applications/guestbook", "/index.html"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "/api/chat/panel") {
			t.Fatalf("%s: expected the panel page", target)
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
			t.Fatalf("%s: expected no-cache, got %q", target, got)
		}
	}
}
