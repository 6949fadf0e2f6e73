package handlers

import (
	"fmt"
	"net/http"

	"luna-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PartnershipHandler handles partnership-related HTTP requests
type PartnershipHandler struct {
	partnershipService *services.PartnershipService
	wsHub              *services.WSHub
}

// NewPartnershipHandler creates a new partnership handler
func NewPartnershipHandler(partnershipService *services.PartnershipService, wsHub *services.WSHub) *PartnershipHandler {
	return &PartnershipHandler{
		partnershipService: partnershipService,
		wsHub:              wsHub,
	}
}

// CreatePartnership handles POST /create_partnership/{user_id_1}/{user_id_2}
func (h *PartnershipHandler) CreatePartnership(w http.ResponseWriter, r *http.Request) {
	userID1, err := parseID(r, "user_id_1")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID2, err := parseID(r, "user_id_2")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	partnership, err := h.partnershipService.CreatePartnership(r.Context(), userID1, userID2)
	if err != nil {
		respondServiceError(w, err, "Failed to create partnership")
		return
	}

	log.Info().
		Int64("partnership_id", partnership.ID).
		Int64("user_id_1", userID1).
		Int64("user_id_2", userID2).
		Msg("Partnership created")

	// Notification failures are logged by the hub; the partnership already exists.
	h.wsHub.NotifyPartnershipCreated(partnership)

	respondJSON(w, http.StatusCreated, partnership)
}

// GetPartnership handles GET /get_partnership/{partnership_id}
func (h *PartnershipHandler) GetPartnership(w http.ResponseWriter, r *http.Request) {
	partnershipID, err := parseID(r, "partnership_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	partnership, err := h.partnershipService.GetPartnership(r.Context(), partnershipID)
	if err != nil {
		respondServiceError(w, err, "Failed to get partnership")
		return
	}
	respondJSON(w, http.StatusOK, partnership)
}

// DeletePartnership handles DELETE /delete_partnership/{partnership_id}
func (h *PartnershipHandler) DeletePartnership(w http.ResponseWriter, r *http.Request) {
	partnershipID, err := parseID(r, "partnership_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	partnership, err := h.partnershipService.DeletePartnership(r.Context(), partnershipID)
	if err != nil {
		respondServiceError(w, err, "Failed to delete partnership")
		return
	}

	log.Info().Int64("partnership_id", partnershipID).Msg("Partnership deleted")

	h.wsHub.NotifyPartnershipDeleted(partnership)

	respondJSON(w, http.StatusOK, DetailResponse{Detail: fmt.Sprintf("Partnership %d deleted", partnershipID)})
}
