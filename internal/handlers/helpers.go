// Package handlers implements the HTTP endpoints: transform, upload, and
// the usage dashboard.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	mcerr "github.com/musefactory/mediacache/internal/errors"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a pipeline error onto an HTTP response. Client-fault
// messages pass through; server-fault details stay in the logs and the
// caller sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	if pe := mcerr.AsError(err); pe != nil {
		status = pe.HTTPStatus()
		if !pe.ServerFault() {
			message = pe.Message
		}
	}

	if status >= 500 {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, errorBody{Error: message})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Writing response body failed", "error", err)
	}
}
