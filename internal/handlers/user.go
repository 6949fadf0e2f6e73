package handlers

import (
	"fmt"
	"net/http"

	"luna-backend/internal/middleware"
	"luna-backend/internal/models"
	"luna-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
	wsHub       *services.WSHub
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, wsHub *services.WSHub) *UserHandler {
	return &UserHandler{
		userService: userService,
		wsHub:       wsHub,
	}
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ListUsers handles GET /get_all_users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// GetUser handles GET /get_user/{user_id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /create_user
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Failed to create user")
		return
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("User created")

	respondJSON(w, http.StatusCreated, user)
}

// UpdateUser handles PUT /update_user/{user_id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var update models.UserUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), userID, update)
	if err != nil {
		respondServiceError(w, err, "Failed to update user")
		return
	}

	log.Info().Int64("user_id", userID).Msg("User updated")
	respondJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /delete_user/{user_id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dissolved, err := h.userService.DeleteUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to delete user")
		return
	}

	log.Info().Int64("user_id", userID).Msg("User deleted")

	if dissolved != nil {
		log.Info().
			Int64("partnership_id", dissolved.ID).
			Int64("user_id", userID).
			Msg("Partnership dissolved with user")
		h.wsHub.NotifyPartnershipDeleted(dissolved)
	}

	respondJSON(w, http.StatusOK, DetailResponse{Detail: fmt.Sprintf("User %d deleted", userID)})
}

// Login handles POST /login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, "username and password are required", http.StatusUnprocessableEntity)
		return
	}

	token, user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, err, "Failed to authenticate user")
		return
	}

	log.Info().Int64("user_id", user.ID).Msg("User logged in")
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Me handles GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		respondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to get current user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
