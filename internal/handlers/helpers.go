package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/discoverlab/insight-map/internal/session"
	"github.com/gorilla/mux"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	sanitized := message
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// workspaceFromRequest resolves the {id} route variable against the session
// store, writing a 404 when the session is unknown.
func workspaceFromRequest(store *session.Store, w http.ResponseWriter, r *http.Request) *session.Workspace {
	id := mux.Vars(r)["id"]
	ws, ok := store.Get(id)
	if !ok {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Session not found")
		return nil
	}
	return ws
}
