package middleware

import (
	"encoding/json"
	"net/http"
)

// Message bodies. Clients see nothing more specific than these.
const (
	MessageUnauthorized = "Authentication failed"
	MessageForbidden    = "Forbidden"
	MessageRateLimited  = "Rate limit exceeded. Try again later."
	MessageUnavailable  = "Service temporarily unavailable"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteError writes an ErrorBody with status.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Status: status, Message: message})
}
