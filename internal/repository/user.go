package repository

import (
	"context"
	"fmt"

	"luna-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, first_name, last_name, username, email, password_hash, created_at, partnership_id`

// UserRepository handles database operations for users
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Username, &user.Email,
		&user.PasswordHash, &user.CreatedAt, &user.PartnershipID,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List retrieves all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list users")
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user by ID and locks the row
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err, "lock user")
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, mapError(err, "get user by username")
	}
	return user, nil
}

// UsernameOrEmailExists checks if either value is already taken
func (r *UserRepository) UsernameOrEmailExists(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, mapError(err, "check username and email")
	}
	return exists, nil
}

// Create inserts a user and fills in the database-assigned ID and timestamp
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (first_name, last_name, username, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		user.FirstName, user.LastName, user.Username, user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return mapError(err, "create user")
	}
	return nil
}

// Update applies the non-nil fields of update
func (r *UserRepository) Update(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	query := `
		UPDATE users SET
			username   = COALESCE($2, username),
			first_name = COALESCE($3, first_name),
			last_name  = COALESCE($4, last_name)
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, id, update.Username, update.FirstName, update.LastName))
	if err != nil {
		return nil, mapError(err, "update user")
	}
	return user, nil
}

// Delete deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete user")
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete user %d: %w", id, ErrNotFound)
	}
	return nil
}

// AttachPartnership links a user that is not yet in a partnership
func (r *UserRepository) AttachPartnership(ctx context.Context, userID, partnershipID int64) error {
	query := `UPDATE users SET partnership_id = $1 WHERE id = $2 AND partnership_id IS NULL`
	result, err := r.db.Exec(ctx, query, partnershipID, userID)
	if err != nil {
		return mapError(err, "attach partnership")
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("attach partnership to user %d: %w", userID, ErrConflict)
	}
	return nil
}

// DetachPartnership clears the partnership reference on its members
func (r *UserRepository) DetachPartnership(ctx context.Context, partnershipID int64) (int64, error) {
	result, err := r.db.Exec(ctx, `UPDATE users SET partnership_id = NULL WHERE partnership_id = $1`, partnershipID)
	if err != nil {
		return 0, mapError(err, "detach partnership")
	}
	return result.RowsAffected(), nil
}
