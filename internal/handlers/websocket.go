package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"luna-backend/internal/middleware"
	"luna-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS layer
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub                *services.WSHub
	userService        *services.UserService
	partnershipService *services.PartnershipService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	partnershipService *services.PartnershipService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                hub,
		userService:        userService,
		partnershipService: partnershipService,
	}
}

// HandleWebSocket handles GET /ws?token=<jwt>
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	if _, err := h.userService.GetUser(ctx, userID); err != nil {
		respondServiceError(w, err, "Failed to load WebSocket user")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	h.sendPartnershipStatus(ctx, userID)
	h.announce(ctx, userID, true)
	defer h.announce(context.WithoutCancel(ctx), userID, false)

	log.Info().Int64("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Int64("user_id", userID).Msg("WebSocket error")
			}
			return
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(userID, "Invalid message format")
			continue
		}

		h.handleMessage(ctx, userID, msg)
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, userID int64, msg services.WSMessage) {
	switch msg.Type {
	case services.MessagePartnershipStatus:
		h.sendPartnershipStatus(ctx, userID)
	case services.MessagePartnerStatus:
		partnerID, err := h.partnershipService.PartnerOf(ctx, userID)
		if err != nil || partnerID == 0 {
			h.sendError(userID, "You are not in a partnership")
			return
		}
		online := h.hub.IsOnline(partnerID)
		h.send(userID, services.WSMessage{Type: services.MessagePartnerStatus, Online: &online})
	default:
		h.sendError(userID, "Unknown message type")
	}
}

// sendPartnershipStatus tells the user whether they are partnered
func (h *WebSocketHandler) sendPartnershipStatus(ctx context.Context, userID int64) {
	data := map[string]any{"has_partnership": false}

	user, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to load partnership status")
		h.sendError(userID, "Failed to load partnership status")
		return
	}
	if user.PartnershipID != nil {
		partnership, err := h.partnershipService.GetPartnership(ctx, *user.PartnershipID)
		if err == nil {
			partnerID := partnership.PartnerOf(userID)
			data = map[string]any{
				"has_partnership": true,
				"partnership_id":  partnership.ID,
				"partner_id":      partnerID,
				"partner_online":  h.hub.IsOnline(partnerID),
			}
		}
	}

	h.send(userID, services.WSMessage{Type: services.MessagePartnershipStatus, Data: data})
}

// announce tells the user's partner that the user came online or went offline
func (h *WebSocketHandler) announce(ctx context.Context, userID int64, online bool) {
	partnerID, err := h.partnershipService.PartnerOf(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Int64("user_id", userID).Msg("Skipping partner status announcement")
		return
	}
	if partnerID != 0 {
		h.hub.NotifyPartnerStatus(partnerID, online)
	}
}

func (h *WebSocketHandler) send(userID int64, msg services.WSMessage) {
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Error().
			Err(err).
			Int64("user_id", userID).
			Str("type", msg.Type).
			Msg("Failed to send WebSocket message")
	}
}

// sendError sends an error message to a user
func (h *WebSocketHandler) sendError(userID int64, message string) {
	h.send(userID, services.WSMessage{Type: services.MessageError, Message: message})
}
