// Package argocd is a minimal client for the Argo CD API endpoints the chat
// panel depends on: application listing, user info and application snapshots.
package argocd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"golang.org/x/sync/singleflight"
)

// maxResponseBytes caps how much of an Argo CD response is read.
const maxResponseBytes = 16 << 20

var errEmptyApplicationName = errors.New("application name is required")

// StatusError is returned when Argo CD answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("argocd returned status %d: %s", e.Code, e.Body)
}

type tokenKey struct{}

// WithToken returns a context carrying the caller's Argo CD bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each request. Zero means no deadline.
	Timeout time.Duration
	// Insecure skips TLS verification for self-signed dashboards.
	Insecure bool
	// Token is used when the request context carries none.
	Token string
}

// Client talks to a single Argo CD API server.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	flight singleflight.Group
}

// NewClient creates a client for the dashboard at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse argocd url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("argocd url must be http or https, got %q", baseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Opt-in for self-signed dashboards.
	}

	return &Client{
		base:  u,
		http:  &http.Client{Transport: transport, Timeout: opts.Timeout},
		token: opts.Token,
	}, nil
}

// Origin returns the scheme and host of the dashboard. Host-relative
// suggested actions resolve against it.
func (c *Client) Origin() *url.URL {
	return &url.URL{Scheme: c.base.Scheme, Host: c.base.Host}
}

// HTTPClient exposes the configured transport for callers that execute
// arbitrary requests against the dashboard.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

type applicationList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	} `json:"items"`
}

// ListApplications returns the names of all applications visible to the caller.
func (c *Client) ListApplications(ctx context.Context) ([]string, error) {
	var list applicationList
	if err := c.getJSON(ctx, "/api/v1/applications", &list); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Metadata.Name)
	}
	return names, nil
}

// UserInfo resolves the signed-in user. An empty username maps to "unknown".
func (c *Client) UserInfo(ctx context.Context) (*domain.User, error) {
	var info struct {
		Username string `json:"username"`
	}
	if err := c.getJSON(ctx, "/api/v1/session/userinfo", &info); err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}

	user := &domain.User{Username: info.Username, Token: c.tokenFor(ctx)}
	user.Username = user.DisplayName()
	return user, nil
}

// GetApplication fetches the status/spec snapshot of one application.
// Concurrent fetches for the same application and token share one request.
func (c *Client) GetApplication(ctx context.Context, name string) (*domain.ApplicationSnapshot, error) {
	if name == "" {
		return nil, errEmptyApplicationName
	}

	key := c.tokenFor(ctx) + "\x00" + name
	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		var snap domain.ApplicationSnapshot
		if err := c.getJSON(ctx, "/api/v1/applications/"+url.PathEscape(name), &snap); err != nil {
			return nil, err
		}
		return &snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", name, err)
	}
	if shared {
		slog.Debug("argocd: shared in-flight application fetch", "application", name)
	}
	return v.(*domain.ApplicationSnapshot), nil
}

func (c *Client) tokenFor(ctx context.Context) string {
	if tok := TokenFromContext(ctx); tok != "" {
		return tok
	}
	return c.token
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.tokenFor(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("argocd: failed to close response body", "path", path, "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
