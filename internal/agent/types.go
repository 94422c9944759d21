// Package agent implements the wire contract with the remote chat agent.
package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/shared"
)

// ErrMalformedReply is returned when the agent answers with a body that does
// not fit the reply schema.
var ErrMalformedReply = errors.New("malformed agent reply")

// TurnRequest is the body POSTed to the agent backend for every turn.
type TurnRequest struct {
	Message     string  `json:"message"`
	SessionID   string  `json:"sessionId"`
	Application string  `json:"application"`
	AppData     AppData `json:"appData"`
}

// AppData is the per-turn context. User turns carry the application
// snapshot; feedback turns carry only the executed action's result.
type AppData struct {
	Status    json.RawMessage `json:"status,omitempty"`
	Spec      json.RawMessage `json:"spec,omitempty"`
	APIResult *string         `json:"apiResult,omitempty"`
}

// SnapshotData builds the context for a user-typed turn. A nil snapshot
// (fetch still in flight or failed) yields an empty object.
func SnapshotData(snap *domain.ApplicationSnapshot) AppData {
	if snap == nil {
		return AppData{}
	}
	return AppData{Status: snap.Status, Spec: snap.Spec}
}

// ResultData builds the context for a feedback turn.
func ResultData(payload string) AppData {
	return AppData{APIResult: &payload}
}

// Flag decodes a JSON value using loose truthiness: false, null, 0 and ""
// are false; everything else is true.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	switch raw {
	case "", "null", "false", `""`:
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = n != 0
		return nil
	}
	*f = true
	return nil
}

// Output is the closed schema of the agent's "output" object.
type Output struct {
	Comment   string          `json:"comment,omitempty"`
	ShouldRun Flag            `json:"shouldRun,omitempty"`
	URL       string          `json:"url,omitempty"`
	Method    string          `json:"method,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Turn is a decoded agent reply.
type Turn struct {
	Output Output
	// Raw is the compact JSON of the output object, used when no comment is given.
	Raw string
}

// ParseReply decodes an agent response body of the form {"output": {...}}.
// A missing or null output is treated as an empty object.
func ParseReply(body []byte) (*Turn, error) {
	var envelope struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	raw := bytes.TrimSpace(envelope.Output)
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}

	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: output: %v", ErrMalformedReply, err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("%w: output: %v", ErrMalformedReply, err)
	}

	return &Turn{Output: out, Raw: compact.String()}, nil
}

// Text returns the display text for the agent message: the comment when
// present, otherwise the JSON rendering of the whole output.
func (t *Turn) Text() string {
	if t.Output.Comment != "" {
		return t.Output.Comment
	}
	return t.Raw
}

// SuggestedAction returns the action proposed by the reply, if any. A
// proposal needs shouldRun plus both url and method, and must validate.
func (t *Turn) SuggestedAction() (*domain.SuggestedAction, error) {
	out := t.Output
	if !bool(out.ShouldRun) || out.URL == "" || out.Method == "" {
		return nil, nil
	}

	action := &domain.SuggestedAction{
		Method: strings.ToUpper(strings.TrimSpace(out.Method)),
		URL:    strings.TrimSpace(out.URL),
		Body:   out.Body,
	}
	if err := shared.Validator().Struct(action); err != nil {
		return nil, fmt.Errorf("invalid suggested action: %w", err)
	}
	return action, nil
}
