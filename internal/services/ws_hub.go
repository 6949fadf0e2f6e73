package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"luna-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocket message types
const (
	MessagePartnershipCreated = "partnership_created"
	MessagePartnershipDeleted = "partnership_deleted"
	MessagePinCreated         = "pin_created"
	MessagePartnerStatus      = "partner_status"
	MessagePartnershipStatus  = "partnership_status"
	MessageError              = "error"
)

const writeWait = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Online    *bool       `json:"online,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// wsClient serializes writes; a websocket.Conn supports one concurrent writer
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per user
type WSHub struct {
	mu      sync.RWMutex
	clients map[int64]*wsClient
	now     func() time.Time
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[int64]*wsClient),
		now:     time.Now,
	}
}

// Register registers a connection for a user, closing any previous one
func (h *WSHub) Register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[userID]; ok {
		existing.conn.Close()
	}
	h.clients[userID] = &wsClient{conn: conn}

	log.Info().Int64("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the user's current connection
func (h *WSHub) Unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[userID]; ok && client.conn == conn {
		client.conn.Close()
		delete(h.clients, userID)
		log.Info().Int64("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if a user is connected
func (h *WSHub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID int64, message WSMessage) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %d is not connected", userID)
	}

	if message.Timestamp == 0 {
		message.Timestamp = h.now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(userID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// notify sends to each online user and logs failures; offline users are skipped
func (h *WSHub) notify(message WSMessage, userIDs ...int64) {
	for _, userID := range userIDs {
		if userID == 0 || !h.IsOnline(userID) {
			continue
		}
		if err := h.SendToUser(userID, message); err != nil {
			log.Error().
				Err(err).
				Int64("user_id", userID).
				Str("type", message.Type).
				Msg("Failed to deliver notification")
		}
	}
}

// NotifyPartnershipCreated tells both members about a new partnership
func (h *WSHub) NotifyPartnershipCreated(partnership *models.Partnership) {
	h.notify(WSMessage{Type: MessagePartnershipCreated, Data: partnership},
		partnership.UserID1, partnership.UserID2)
}

// NotifyPartnershipDeleted tells both former members that the partnership is gone
func (h *WSHub) NotifyPartnershipDeleted(partnership *models.Partnership) {
	h.notify(WSMessage{
		Type: MessagePartnershipDeleted,
		Data: map[string]int64{"partnership_id": partnership.ID},
	}, partnership.UserID1, partnership.UserID2)
}

// NotifyPinCreated tells the owner's partner about a new pin
func (h *WSHub) NotifyPinCreated(partnerID int64, pin *models.Pin) {
	h.notify(WSMessage{Type: MessagePinCreated, Data: pin}, partnerID)
}

// NotifyPartnerStatus tells partnerID whether their partner is online
func (h *WSHub) NotifyPartnerStatus(partnerID int64, online bool) {
	h.notify(WSMessage{Type: MessagePartnerStatus, Online: &online}, partnerID)
}

// Close closes every connection
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, client := range h.clients {
		client.conn.Close()
		delete(h.clients, userID)
	}
}
