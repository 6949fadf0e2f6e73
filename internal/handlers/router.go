package handlers

import (
	"net/http"

	"luna-backend/internal/middleware"
	"luna-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDeps collects everything the HTTP surface needs
type RouterDeps struct {
	DB                 Pinger
	UserService        *services.UserService
	PinService         *services.PinService
	PartnershipService *services.PartnershipService
	Hub                *services.WSHub
	Storage            *StorageHandler // nil disables the object storage routes
	AllowedOrigins     []string
	RequestLogging     bool
}

// NewRouter wires handlers and middleware into a chi router
func NewRouter(deps RouterDeps) http.Handler {
	healthHandler := NewHealthHandler(deps.DB)
	userHandler := NewUserHandler(deps.UserService, deps.Hub)
	pinHandler := NewPinHandler(deps.PinService, deps.PartnershipService, deps.Hub)
	partnershipHandler := NewPartnershipHandler(deps.PartnershipService, deps.Hub)
	wsHandler := NewWebSocketHandler(deps.Hub, deps.UserService, deps.PartnershipService)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if deps.RequestLogging {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", healthHandler.Root)
	r.Get("/check-db", healthHandler.CheckDB)

	// Users
	r.Get("/get_all_users", userHandler.ListUsers)
	r.Get("/get_user/{user_id}", userHandler.GetUser)
	r.Post("/create_user", userHandler.CreateUser)
	r.Put("/update_user/{user_id}", userHandler.UpdateUser)
	r.Delete("/delete_user/{user_id}", userHandler.DeleteUser)
	r.Post("/login", userHandler.Login)
	r.With(middleware.AuthMiddleware(deps.UserService)).Get("/me", userHandler.Me)

	// Partnerships
	r.Post("/create_partnership/{user_id_1}/{user_id_2}", partnershipHandler.CreatePartnership)
	r.Get("/get_partnership/{partnership_id}", partnershipHandler.GetPartnership)
	r.Delete("/delete_partnership/{partnership_id}", partnershipHandler.DeletePartnership)

	// Pins
	r.Get("/get_pin/{user_id}/{pin_id}", pinHandler.GetPin)
	r.Get("/get_all_pins/{user_id}", pinHandler.ListPins)
	r.Post("/create_pin/{user_id}", pinHandler.CreatePin)

	if deps.Storage != nil {
		r.Get("/test-s3", deps.Storage.Check)
		r.Post("/upload", deps.Storage.Upload)
		r.Post("/download", deps.Storage.Download)
	}

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
