package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/argocd"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDashboard(t *testing.T, handler http.HandlerFunc) (*HTTPExecutor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	origin, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewHTTPExecutor(srv.Client(), origin, nil, 0, nil), srv
}

func TestExecuteResolvesRelativeURLAndForwardsToken(t *testing.T) {
	t.Parallel()
	exec, _ := newDashboard(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/applications/guestbook/sync", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"prune":true}`, string(body))
		_, _ = w.Write([]byte(`{"metadata":{"name":"guestbook"},"status":{"phase":"Running"}}`))
	})

	ctx := argocd.WithToken(context.Background(), "tok-1")
	outcome := exec.Execute(ctx, domain.SuggestedAction{
		Method: "POST",
		URL:    "/api/v1/applications/guestbook/sync",
		Body:   json.RawMessage(`{"prune":true}`),
	})

	require.True(t, outcome.Succeeded)
	want := "{\n  \"metadata\": {\n    \"name\": \"guestbook\"\n  },\n  \"status\": {\n    \"phase\": \"Running\"\n  }\n}"
	assert.Equal(t, want, outcome.Payload)
}

func TestExecuteOmitsFalsyBody(t *testing.T) {
	t.Parallel()
	exec, _ := newDashboard(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		_, _ = w.Write([]byte(`[]`))
	})

	for _, raw := range []string{"", "null", "false", "0", "-0", "0.0", `""`} {
		outcome := exec.Execute(context.Background(), domain.SuggestedAction{
			Method: "POST",
			URL:    "/api/v1/x",
			Body:   json.RawMessage(raw),
		})
		assert.True(t, outcome.Succeeded, raw)
	}
}

func TestExecuteIgnoresResponseStatus(t *testing.T) {
	t.Parallel()
	exec, _ := newDashboard(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"permission denied","code":7}`))
	})

	outcome := exec.Execute(context.Background(), domain.SuggestedAction{Method: "DELETE", URL: "/api/v1/applications/guestbook"})
	require.True(t, outcome.Succeeded)
	assert.Equal(t, "{\n  \"error\": \"permission denied\",\n  \"code\": 7\n}", outcome.Payload)
}

func TestExecuteNonJSONResponseFails(t *testing.T) {
	t.Parallel()
	exec, _ := newDashboard(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})

	outcome := exec.Execute(context.Background(), domain.SuggestedAction{Method: "GET", URL: "/applications"})
	assert.Equal(t, domain.ActionOutcome{Succeeded: false, Payload: MsgActionFailed}, outcome)
}

func TestExecuteEmptyResponseFails(t *testing.T) {
	t.Parallel()
	exec, _ := newDashboard(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	outcome := exec.Execute(context.Background(), domain.SuggestedAction{Method: "DELETE", URL: "/api/v1/x"})
	assert.False(t, outcome.Succeeded)
}

func TestExecuteNetworkErrorFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	origin, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	exec := NewHTTPExecutor(nil, origin, nil, 0, nil)
	outcome := exec.Execute(context.Background(), domain.SuggestedAction{Method: "GET", URL: "/api/v1/applications"})
	assert.Equal(t, domain.ActionOutcome{Succeeded: false, Payload: MsgActionFailed}, outcome)
}

func TestExecuteDoesNotForwardTokenOffOrigin(t *testing.T) {
	t.Parallel()
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(foreign.Close)

	origin, err := url.Parse("https://argocd.example.com")
	require.NoError(t, err)
	exec := NewHTTPExecutor(nil, origin, nil, 0, nil)

	ctx := argocd.WithToken(context.Background(), "tok-1")
	outcome := exec.Execute(ctx, domain.SuggestedAction{Method: "GET", URL: foreign.URL + "/status"})
	assert.True(t, outcome.Succeeded)
}

func TestExecuteRefusesHostOutsideAllowlist(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(foreign.Close)

	exec, dashboard := newDashboardWithHosts(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	outcome := exec.Execute(context.Background(), domain.SuggestedAction{Method: "GET", URL: foreign.URL + "/status"})
	assert.Equal(t, domain.ActionOutcome{Succeeded: false, Payload: MsgActionFailed}, outcome)
	assert.Zero(t, hits.Load())

	outcome = exec.Execute(context.Background(), domain.SuggestedAction{Method: "GET", URL: dashboard.URL + "/api/v1/applications"})
	assert.True(t, outcome.Succeeded)
	outcome = exec.Execute(context.Background(), domain.SuggestedAction{Method: "GET", URL: "/api/v1/applications"})
	assert.True(t, outcome.Succeeded)
}

func newDashboardWithHosts(t *testing.T, handler http.HandlerFunc) (*HTTPExecutor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	origin, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewHTTPExecutor(srv.Client(), origin, NewHostAllowlist(srv.URL), 0, nil), srv
}

func TestHostAllowlist(t *testing.T) {
	t.Parallel()
	l := NewHostAllowlist("https://argocd.example.com", "agent.internal:9000", " ", "Metrics.Local")

	cases := map[string]bool{
		"https://argocd.example.com/api/v1/applications": true,
		"http://agent.internal:9000/chat":                true,
		"http://agent.internal:9001/chat":                false,
		"http://metrics.local:8080/x":                    true,
		"http://169.254.169.254/latest/meta-data":        false,
		"/relative":                                      false,
		"%zz":                                            false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, l.AllowsURL(raw), raw)
	}

	assert.Equal(t, []string{"agent.internal:9000", "argocd.example.com", "metrics.local"}, l.Hosts())
	assert.True(t, NewHostAllowlist("*").AllowsURL("http://anything.example/x"))

	var open *HostAllowlist
	assert.True(t, open.AllowsURL("http://anything.example/x"))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	origin, err := url.Parse("https://argocd.example.com")
	require.NoError(t, err)
	exec := NewHTTPExecutor(nil, origin, nil, 0, nil)

	cases := map[string]string{
		"/api/v1/applications":              "https://argocd.example.com/api/v1/applications",
		"api/v1/applications?refresh=hard":  "https://argocd.example.com/api/v1/applications?refresh=hard",
		"http://other.local/api/v1/session": "http://other.local/api/v1/session",
	}
	for raw, want := range cases {
		got, err := exec.Resolve(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.String(), raw)
	}
}
