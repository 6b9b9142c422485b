package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON marshals v and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeFailure reports an operation failure the admin-API way: HTTP 200
// with success:false and a human-readable message.
func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// decodeJSON reads the request body into v. A failure here is a client
// error, reported the same way operation failures are.
func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
