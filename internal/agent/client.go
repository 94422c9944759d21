package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxReplyBytes caps how much of an agent reply is read.
const maxReplyBytes = 4 << 20

// HTTPClient posts turns to a user-configured agent backend.
type HTTPClient struct {
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a new agent client. A zero timeout means no deadline.
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send posts req as JSON to backendURL and parses the reply.
// The response status is not inspected: any body that decodes as a reply is
// accepted, anything else is an error.
func (c *HTTPClient) Send(ctx context.Context, backendURL string, req TurnRequest) (*Turn, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode turn: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, backendURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post turn: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close agent response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read agent reply: %w", err)
	}

	c.logger.Debug("Agent turn completed",
		"session_id", req.SessionID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"reply_bytes", len(body),
	)

	return ParseReply(body)
}
