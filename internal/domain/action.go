package domain

import (
	"bytes"
	"encoding/json"
)

// SuggestedAction is an HTTP call proposed by the agent for the user to execute.
type SuggestedAction struct {
	Method string          `json:"method" validate:"required,httpverb"`
	URL    string          `json:"url" validate:"required"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// HasBody reports whether the action carries a payload worth sending. A
// falsy JSON value (null, false, "" or any spelling of zero) is no body.
func (a SuggestedAction) HasBody() bool {
	raw := bytes.TrimSpace(a.Body)
	switch string(raw) {
	case "", "null", "false", `""`:
		return false
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return n != 0
		}
	}
	return true
}

// ActionOutcome is the captured result of executing a suggested action.
type ActionOutcome struct {
	Succeeded bool   `json:"succeeded"`
	Payload   string `json:"payload"`
}
