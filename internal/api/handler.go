// Package api provides HTTP handlers for the chat panel API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/shared"
)

const defaultMaxRequestBodySize = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a size-limited JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := shared.Validator().Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %s", fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return err
	}
	return nil
}

var errBodyTooLarge = errors.New("request body too large")

// writeDecodeError maps a decodeBody failure to a response.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	Error(w, http.StatusBadRequest, err.Error())
}

// statusFor maps a panel operation error to an HTTP status. Precondition
// failures are notices the panel shows to the user.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrInvalidBackendURL),
		errors.Is(err, assistant.ErrNoApplication):
		return http.StatusBadRequest
	case errors.Is(err, assistant.ErrNoSession),
		errors.Is(err, assistant.ErrNoAction),
		errors.Is(err, assistant.ErrActionAlreadyRun),
		errors.Is(err, assistant.ErrNoOutcome):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
