package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse reports process and database liveness.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	DB    bool   `json:"db"`
	Error string `json:"error,omitempty"`
}

// Health returns a handler that pings the database on every call.
func Health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, HealthResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{OK: true, DB: true})
	}
}
