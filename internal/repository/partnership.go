package repository

import (
	"context"
	"fmt"

	"luna-backend/internal/models"
)

// PartnershipRepository handles database operations for user partnerships
type PartnershipRepository struct {
	db DBTX
}

// NewPartnershipRepository creates a new partnership repository
func NewPartnershipRepository(db DBTX) *PartnershipRepository {
	return &PartnershipRepository{db: db}
}

// Create inserts a partnership and fills in the database-assigned ID and timestamp
func (r *PartnershipRepository) Create(ctx context.Context, partnership *models.Partnership) error {
	query := `
		INSERT INTO user_partnerships (user_id_1, user_id_2)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, partnership.UserID1, partnership.UserID2).
		Scan(&partnership.ID, &partnership.CreatedAt)
	if err != nil {
		return mapError(err, "create partnership")
	}
	return nil
}

// GetByID retrieves a partnership by ID
func (r *PartnershipRepository) GetByID(ctx context.Context, id int64) (*models.Partnership, error) {
	query := `
		SELECT id, user_id_1, user_id_2, created_at
		FROM user_partnerships
		WHERE id = $1
	`
	var partnership models.Partnership
	err := r.db.QueryRow(ctx, query, id).Scan(
		&partnership.ID, &partnership.UserID1, &partnership.UserID2, &partnership.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get partnership")
	}
	return &partnership, nil
}

// Delete deletes a partnership by ID
func (r *PartnershipRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_partnerships WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete partnership")
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete partnership %d: %w", id, ErrNotFound)
	}
	return nil
}
