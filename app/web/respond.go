// Package web holds the JSON response helpers and middleware shared by the
// HTTP handlers.
package web

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error body tagged with the request id.
func Error(w http.ResponseWriter, r *http.Request, status int, msg, detail string) {
	JSON(w, status, ErrorResponse{
		Error:     msg,
		Message:   detail,
		RequestID: RequestIDFrom(r.Context()),
	})
}
