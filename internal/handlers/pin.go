package handlers

import (
	"net/http"

	"luna-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PinHandler handles pin-related HTTP requests
type PinHandler struct {
	pinService         *services.PinService
	partnershipService *services.PartnershipService
	wsHub              *services.WSHub
}

// NewPinHandler creates a new pin handler
func NewPinHandler(
	pinService *services.PinService,
	partnershipService *services.PartnershipService,
	wsHub *services.WSHub,
) *PinHandler {
	return &PinHandler{
		pinService:         pinService,
		partnershipService: partnershipService,
		wsHub:              wsHub,
	}
}

// CreatePinRequest represents the request body for creating a pin.
// Coordinates are pointers so a missing value is not read as 0.
type CreatePinRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Title     string   `json:"title"`
	Details   string   `json:"details"`
}

// GetPin handles GET /get_pin/{user_id}/{pin_id}
func (h *PinHandler) GetPin(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	pinID, err := parseID(r, "pin_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	access, err := h.pinService.GetPin(r.Context(), userID, pinID)
	if err != nil {
		respondServiceError(w, err, "Failed to get pin")
		return
	}
	respondJSON(w, http.StatusOK, access)
}

// ListPins handles GET /get_all_pins/{user_id}
func (h *PinHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pins, err := h.pinService.ListPins(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to list pins")
		return
	}
	respondJSON(w, http.StatusOK, pins)
}

// CreatePin handles POST /create_pin/{user_id}
func (h *PinHandler) CreatePin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := parseID(r, "user_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req CreatePinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, "latitude and longitude are required", http.StatusUnprocessableEntity)
		return
	}

	pin, err := h.pinService.CreatePin(ctx, userID, services.CreatePinRequest{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Title:     req.Title,
		Details:   req.Details,
	})
	if err != nil {
		respondServiceError(w, err, "Failed to create pin")
		return
	}

	log.Info().
		Int64("user_id", userID).
		Int64("pin_id", pin.ID).
		Msg("Pin created")

	partnerID, err := h.partnershipService.PartnerOf(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to look up partner for pin notification")
	} else if partnerID != 0 {
		h.wsHub.NotifyPinCreated(partnerID, pin)
	}

	respondJSON(w, http.StatusCreated, pin)
}
