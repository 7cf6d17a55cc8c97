package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeCachedJSON writes a successful API read that browsers may keep for ttl.
func writeCachedJSON(w http.ResponseWriter, ttl time.Duration, payload any) {
	if ttl > 0 {
		w.Header().Set("Cache-Control", privateCache(ttl))
	}
	writeJSON(w, http.StatusOK, payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, map[string]string{"error": msg})
}
