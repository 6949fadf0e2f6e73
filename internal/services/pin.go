package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"luna-backend/internal/models"
	"luna-backend/internal/repository"
)

// coordinateScale matches the NUMERIC(9,6) columns
const coordinateScale = 1e6

// PinService handles pin-related business logic
type PinService struct {
	store repository.Store
}

// NewPinService creates a new pin service
func NewPinService(store repository.Store) *PinService {
	return &PinService{store: store}
}

// CreatePinRequest represents a request to drop a pin
type CreatePinRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Title     string  `json:"title"`
	Details   string  `json:"details"`
}

// PinAccess is a pin as seen by one of its users
type PinAccess struct {
	Pin           *models.Pin          `json:"pin"`
	OwnershipType models.OwnershipType `json:"ownership_type"`
}

// RoundCoordinate rounds to the stored precision of six fractional digits
func RoundCoordinate(v float64) float64 {
	return math.Round(v*coordinateScale) / coordinateScale
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}

// GetPin returns a pin if userID holds an active primary ownership row for it
func (s *PinService) GetPin(ctx context.Context, userID, pinID int64) (*PinAccess, error) {
	pin, err := s.store.Pins().GetByID(ctx, pinID)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("pin %d", pinID))
	}

	ownership, err := s.store.Pins().GetActiveOwnership(ctx, userID, pinID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: pin %d is not accessible to user %d", ErrNotAccessible, pinID, userID)
		}
		return nil, translate(err, "get pin ownership")
	}
	if ownership.OwnershipType != models.OwnershipPrimary {
		return nil, fmt.Errorf("%w: pin %d is not accessible to user %d", ErrNotAccessible, pinID, userID)
	}

	return &PinAccess{Pin: pin, OwnershipType: ownership.OwnershipType}, nil
}

// ListPins returns every pin owned by a user
func (s *PinService) ListPins(ctx context.Context, userID int64) ([]*models.Pin, error) {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, translate(err, fmt.Sprintf("user %d", userID))
	}

	pins, err := s.store.Pins().ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "list pins")
	}
	return pins, nil
}

// CreatePin stores a pin and its primary ownership row as one unit.
// Two pins may not share the exact same coordinates.
func (s *PinService) CreatePin(ctx context.Context, userID int64, req CreatePinRequest) (*models.Pin, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalidArgument("title is required")
	}
	if !validCoordinate(req.Latitude, 90) {
		return nil, invalidArgument("latitude must be between -90 and 90")
	}
	if !validCoordinate(req.Longitude, 180) {
		return nil, invalidArgument("longitude must be between -180 and 180")
	}

	pin := &models.Pin{
		UserID:    userID,
		Title:     title,
		Latitude:  RoundCoordinate(req.Latitude),
		Longitude: RoundCoordinate(req.Longitude),
		Details:   req.Details,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return translate(err, fmt.Sprintf("user %d", userID))
		}

		taken, err := tx.Pins().LocationExists(ctx, pin.Latitude, pin.Longitude)
		if err != nil {
			return translate(err, "check pin location")
		}
		if taken {
			return fmt.Errorf("%w: pin location already exists", ErrConflict)
		}

		if err := tx.Pins().Create(ctx, pin); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: pin location already exists", ErrConflict)
			}
			return translate(err, "create pin")
		}

		ownership := &models.UserPin{
			UserID:        userID,
			PinID:         pin.ID,
			OwnershipType: models.OwnershipPrimary,
		}
		if err := tx.Pins().CreateOwnership(ctx, ownership); err != nil {
			return translate(err, "create pin ownership")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pin, nil
}
