package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	errInvalidRequestBody = "invalid request body"

	// maxImageBytes caps uploaded frames and fugitive images.
	maxImageBytes = 16 << 20
	maxJSONBytes  = 1 << 20
)

// sanitizeForLog strips line breaks from client-supplied values before they are logged.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// decodeJSON reads a size-limited JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck reports that the HTTP surface is up; pipeline readiness is in /status.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
