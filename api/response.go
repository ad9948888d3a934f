package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// OpenAI-wire error types.
const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeServer         = "server_error"
)

// apiError is the error payload of the OpenAI wire format.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// errorResponse is the OpenAI-wire error envelope.
type errorResponse struct {
	Error apiError `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
// Note: If encoding fails after WriteHeader is called, there's no way to
// notify the client since the status code is already sent. The error is
// logged for debugging but doesn't affect the response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes an error in the OpenAI wire shape.
func writeError(w http.ResponseWriter, status int, message, errType, code string) {
	writeJSON(w, status, errorResponse{Error: apiError{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
}
