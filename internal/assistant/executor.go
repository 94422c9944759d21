package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/argocd"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// maxActionResponseBytes caps how much of an executed action's response is read.
const maxActionResponseBytes = 16 << 20

// Executor performs a suggested action and captures its result.
type Executor interface {
	Execute(ctx context.Context, action domain.SuggestedAction) domain.ActionOutcome
}

// HTTPExecutor runs suggested actions against the dashboard. Host-relative
// URLs resolve against origin, and the caller's Argo CD token is attached
// only to requests that stay on that origin. Targets outside hosts are
// refused without a request being sent.
type HTTPExecutor struct {
	client  *http.Client
	origin  *url.URL
	hosts   *HostAllowlist
	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPExecutor creates an executor. A nil client uses http.DefaultClient;
// a nil hosts permits any target; a zero timeout means no deadline beyond
// the client's own.
func NewHTTPExecutor(client *http.Client, origin *url.URL, hosts *HostAllowlist, timeout time.Duration, logger *slog.Logger) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExecutor{client: client, origin: origin, hosts: hosts, timeout: timeout, logger: logger}
}

// Resolve returns the absolute target of raw. A URL with a scheme is used
// as-is; anything else is relative to the dashboard origin.
func (e *HTTPExecutor) Resolve(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse action url: %w", err)
	}
	if u.Scheme != "" {
		return u, nil
	}
	if e.origin == nil {
		return nil, fmt.Errorf("relative action url %q without dashboard origin", raw)
	}
	return e.origin.ResolveReference(u), nil
}

// Execute sends the request. The response status is not inspected: any
// JSON body counts as success and is pretty-printed with two-space indent.
// Transport errors and non-JSON bodies yield MsgActionFailed.
func (e *HTTPExecutor) Execute(ctx context.Context, action domain.SuggestedAction) domain.ActionOutcome {
	payload, err := e.do(ctx, action)
	if err != nil {
		e.logger.Warn("Suggested action failed",
			"method", action.Method,
			"url", action.URL,
			"error", err,
		)
		return domain.ActionOutcome{Succeeded: false, Payload: MsgActionFailed}
	}
	return domain.ActionOutcome{Succeeded: true, Payload: payload}
}

func (e *HTTPExecutor) do(ctx context.Context, action domain.SuggestedAction) (string, error) {
	target, err := e.Resolve(action.URL)
	if err != nil {
		return "", err
	}
	if !e.hosts.Allows(target) {
		return "", fmt.Errorf("action host %q is not allowed", target.Host)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var body io.Reader
	if action.HasBody() {
		body = bytes.NewReader(action.Body)
	}
	req, err := http.NewRequestWithContext(ctx, action.Method, target.String(), body)
	if err != nil {
		return "", fmt.Errorf("build action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.sameOrigin(target) {
		if tok := argocd.TokenFromContext(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send action request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.Debug("failed to close action response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxActionResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read action response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", fmt.Errorf("action response is not JSON (status %d): %w", resp.StatusCode, err)
	}
	return pretty.String(), nil
}

func (e *HTTPExecutor) sameOrigin(u *url.URL) bool {
	return e.origin != nil && u.Scheme == e.origin.Scheme && u.Host == e.origin.Host
}
