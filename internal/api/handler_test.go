//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: assistant.ErrInvalidBackendURL, want: http.StatusBadRequest},
		{err: assistant.ErrNoApplication, want: http.StatusBadRequest},
		{err: assistant.ErrNoSession, want: http.StatusConflict},
		{err: assistant.ErrNoAction, want: http.StatusConflict},
		{err: assistant.ErrActionAlreadyRun, want: http.StatusConflict},
		{err: fmt.Errorf("run: %w", assistant.ErrNoOutcome), want: http.StatusConflict},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDecodeBody(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{body: `{"application":"guestbook"}`, want: 0},
		{body: `{"application":""}`, want: http.StatusBadRequest},
		{body: `not json`, want: http.StatusBadRequest},
		{body: `{"application":"` + strings.Repeat("a", 2048) + `"}`, want: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

		var req selectRequest
		err := decodeBody(w, r, 1024, &req)
		if tc.want == 0 {
			if err != nil {
				t.Errorf("decodeBody(%.20q) unexpected error: %v", tc.body, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("decodeBody(%.20q) expected error", tc.body)
			continue
		}
		writeDecodeError(w, err)
		if w.Code != tc.want {
			t.Errorf("decodeBody(%.20q) status = %d, want %d", tc.body, w.Code, tc.want)
		}
	}
}
