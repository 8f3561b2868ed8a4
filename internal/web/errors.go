package web

// errors.go provides unified error response handling for the web layer.
//
// Every failure leaves the client with the same JSON shape:
//
//	{"error": "<user-safe message>", "code": "<stable code>"}
//
// Engine failures arrive as ERROR responses carrying one of the engine's
// error codes; statusForCode translates those into HTTP statuses so clients
// can branch without parsing messages. Technical detail is logged server-side
// with the chi request ID for correlation.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/griddle/griddle/internal/engine"
	"github.com/griddle/griddle/internal/logging"
)

// ErrorResponse is the JSON body for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError writes a JSON error envelope and logs it with request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	logging.FromContext(r.Context()).Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"error", message,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// writeEngineError translates an engine ERROR response into HTTP terms.
func writeEngineError(w http.ResponseWriter, r *http.Request, resp engine.Response) {
	writeError(w, r, statusForCode(resp.Code), resp.Code, resp.Error)
}

// statusForCode maps engine error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case engine.CodeNoDataset:
		return http.StatusConflict
	case engine.CodeBadCommand, engine.CodeUnknownCommand, engine.CodeUnknownFormat, engine.CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeSubmitError reports a failure to get a request into the engine at
// all: shutdown or a wait cut short by the request context.
func writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrClosed):
		writeError(w, r, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "engine did not respond in time")
	default:
		writeError(w, r, http.StatusInternalServerError, engine.CodeInternal, err.Error())
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode failed", "error", err)
	}
}
