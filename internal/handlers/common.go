package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"luna-backend/internal/services"
	"luna-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// DetailResponse acknowledges a request with a message
type DetailResponse struct {
	Detail string `json:"detail"`
}

// respondJSON writes payload with the given status
func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Detail: message})
}

// statusFor maps an error kind onto an HTTP status, 0 for unknown errors
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotAccessible), errors.Is(err, storage.ErrInvalidPath):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrCredentials), errors.Is(err, storage.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrLocalFile):
		return http.StatusBadRequest
	}
	return 0
}

// storageMessage returns the client-facing text for a storage error kind.
// The wrapped provider or filesystem detail stays in the log.
func storageMessage(err error) (string, bool) {
	for _, kind := range []error{
		storage.ErrCredentials,
		storage.ErrObjectNotFound,
		storage.ErrTransport,
		storage.ErrInvalidPath,
		storage.ErrLocalFile,
	} {
		if errors.Is(err, kind) {
			return kind.Error(), true
		}
	}
	return "", false
}

// respondServiceError writes err with its mapped status. Unknown errors are
// logged and hidden behind a generic 500.
func respondServiceError(w http.ResponseWriter, err error, action string) {
	if status := statusFor(err); status != 0 {
		if msg, ok := storageMessage(err); ok {
			log.Warn().Err(err).Msg(action)
			respondError(w, msg, status)
			return
		}
		respondError(w, err.Error(), status)
		return
	}
	log.Error().Err(err).Msg(action)
	respondError(w, "Internal server error", http.StatusInternalServerError)
}

// decodeJSON reads a JSON body into dst, rejecting unknown trailing data
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: unexpected data after JSON object")
	}
	return nil
}

// parseID reads a positive integer path parameter
func parseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}
