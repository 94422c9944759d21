package agent

import (
	"context"
)

// Processor defines the interface for exchanging turns with the agent.
// This interface is implemented by the HTTP client.
type Processor interface {
	// Send posts one turn to the backend at backendURL and decodes the reply.
	Send(ctx context.Context, backendURL string, req TurnRequest) (*Turn, error)
}

// Ensure HTTPClient implements Processor.
var _ Processor = (*HTTPClient)(nil)
