package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const pingTimeout = 5 * time.Second

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the root greeting and the database probe
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse is the body of the database probe
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Hello World!"})
}

// CheckDB handles GET /check-db
func (h *HealthHandler) CheckDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Database probe failed")
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "Connection failed",
			Error:  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "DB Connection successful!"})
}
