// handlers/admin_handler.go
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// ForcedPoster is the slice of the monitor the admin surface needs.
type ForcedPoster interface {
	RunForced(ctx context.Context, stationID string) error
}

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON response: %v", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	log.Printf("API Error %d: %s", code, message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

// HealthHandler reports process and database liveness.
func HealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			log.Printf("Health check failed: DB ping error: %v", err)
			respondWithError(w, http.StatusInternalServerError, "database connection error")
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "divvymon is healthy"})
	}
}

// ForcePostHandler triggers a forced post about one persisted station,
// bypassing classification. Expects POST requests to
// /api/admin/force-post/{stationID} where {stationID} may be "random".
func ForcePostHandler(monitor ForcedPoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
			return
		}

		pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// Expected path: api/admin/force-post/{stationID}
		if len(pathParts) < 4 || pathParts[3] == "" {
			respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/force-post/{stationID|random}")
			return
		}

		stationID := pathParts[3]
		if strings.EqualFold(stationID, "random") {
			stationID = ""
		}

		if err := monitor.RunForced(r.Context(), stationID); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Forced post failed: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "Forced post completed successfully."})
	}
}
