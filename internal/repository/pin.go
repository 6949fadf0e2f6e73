package repository

import (
	"context"
	"fmt"

	"luna-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const pinColumns = `id, user_id, title, latitude, longitude, details, created_at`

// PinRepository handles database operations for pins and user_pins
type PinRepository struct {
	db DBTX
}

// NewPinRepository creates a new pin repository
func NewPinRepository(db DBTX) *PinRepository {
	return &PinRepository{db: db}
}

func scanPin(row pgx.Row) (*models.Pin, error) {
	var pin models.Pin
	err := row.Scan(
		&pin.ID, &pin.UserID, &pin.Title, &pin.Latitude, &pin.Longitude,
		&pin.Details, &pin.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pin, nil
}

// Create inserts a pin and fills in the database-assigned ID and timestamp
func (r *PinRepository) Create(ctx context.Context, pin *models.Pin) error {
	query := `
		INSERT INTO pins (user_id, title, latitude, longitude, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		pin.UserID, pin.Title, pin.Latitude, pin.Longitude, pin.Details,
	).Scan(&pin.ID, &pin.CreatedAt)
	if err != nil {
		return mapError(err, "create pin")
	}
	return nil
}

// GetByID retrieves a pin by ID
func (r *PinRepository) GetByID(ctx context.Context, id int64) (*models.Pin, error) {
	pin, err := scanPin(r.db.QueryRow(ctx, `SELECT `+pinColumns+` FROM pins WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get pin")
	}
	return pin, nil
}

// ListByUser retrieves every pin owned by a user
func (r *PinRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Pin, error) {
	rows, err := r.db.Query(ctx, `SELECT `+pinColumns+` FROM pins WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, mapError(err, "list pins")
	}
	defer rows.Close()

	pins := make([]*models.Pin, 0)
	for rows.Next() {
		pin, err := scanPin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		pins = append(pins, pin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pins: %w", err)
	}
	return pins, nil
}

// LocationExists checks if a pin already sits at the exact coordinates
func (r *PinRepository) LocationExists(ctx context.Context, latitude, longitude float64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM pins WHERE latitude = $1 AND longitude = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, latitude, longitude).Scan(&exists); err != nil {
		return false, mapError(err, "check pin location")
	}
	return exists, nil
}

// CreateOwnership inserts a user_pins row
func (r *PinRepository) CreateOwnership(ctx context.Context, userPin *models.UserPin) error {
	query := `
		INSERT INTO user_pins (user_id, pin_id, ownership_type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		userPin.UserID, userPin.PinID, string(userPin.OwnershipType),
	).Scan(&userPin.ID, &userPin.CreatedAt)
	if err != nil {
		return mapError(err, "create pin ownership")
	}
	return nil
}

// GetActiveOwnership retrieves the non-removed ownership row for a (user, pin) pair
func (r *PinRepository) GetActiveOwnership(ctx context.Context, userID, pinID int64) (*models.UserPin, error) {
	query := `
		SELECT id, user_id, pin_id, ownership_type, created_at, removed_at
		FROM user_pins
		WHERE user_id = $1 AND pin_id = $2 AND removed_at IS NULL
	`
	var (
		userPin       models.UserPin
		ownershipType string
	)
	err := r.db.QueryRow(ctx, query, userID, pinID).Scan(
		&userPin.ID, &userPin.UserID, &userPin.PinID, &ownershipType,
		&userPin.CreatedAt, &userPin.RemovedAt,
	)
	if err != nil {
		return nil, mapError(err, "get pin ownership")
	}
	userPin.OwnershipType = models.OwnershipType(ownershipType)
	return &userPin, nil
}
