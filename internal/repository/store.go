package repository

import (
	"context"
	"errors"
	"fmt"

	"luna-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on unique violations and failed conditional updates
	ErrConflict = errors.New("record conflict")
	// ErrForeignKey is returned when a referenced row does not exist
	ErrForeignKey = errors.New("referenced record missing")
	// ErrCheck is returned when a CHECK constraint rejects the row
	ErrCheck = errors.New("check constraint violated")
)

// PostgreSQL error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// UserStore persists users
type UserStore interface {
	List(ctx context.Context) ([]*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameOrEmailExists(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	// AttachPartnership sets the reference only if it is currently null
	AttachPartnership(ctx context.Context, userID, partnershipID int64) error
	// DetachPartnership clears the reference on every user pointing at partnershipID
	DetachPartnership(ctx context.Context, partnershipID int64) (int64, error)
}

// PinStore persists pins and their ownership records
type PinStore interface {
	Create(ctx context.Context, pin *models.Pin) error
	GetByID(ctx context.Context, id int64) (*models.Pin, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Pin, error)
	LocationExists(ctx context.Context, latitude, longitude float64) (bool, error)
	CreateOwnership(ctx context.Context, userPin *models.UserPin) error
	// GetActiveOwnership ignores soft-deleted rows
	GetActiveOwnership(ctx context.Context, userID, pinID int64) (*models.UserPin, error)
}

// PartnershipStore persists partnerships
type PartnershipStore interface {
	Create(ctx context.Context, partnership *models.Partnership) error
	GetByID(ctx context.Context, id int64) (*models.Partnership, error)
	Delete(ctx context.Context, id int64) error
}

// Store groups the stores and runs units of work atomically
type Store interface {
	Users() UserStore
	Pins() PinStore
	Partnerships() PartnershipStore
	// WithinTx runs fn in a transaction; any error rolls every write back
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on top of a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPostgresStore creates a store backed by pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// Users returns the user repository bound to this store's connection
func (s *PostgresStore) Users() UserStore {
	return NewUserRepository(s.db)
}

// Pins returns the pin repository bound to this store's connection
func (s *PostgresStore) Pins() PinStore {
	return NewPinRepository(s.db)
}

// Partnerships returns the partnership repository bound to this store's connection
func (s *PostgresStore) Partnerships() PartnershipStore {
	return NewPartnershipRepository(s.db)
}

// WithinTx runs fn inside a transaction. Nested calls join the outer transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, db: tx, inTx: true})
	})
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// mapError translates driver errors into repository sentinels
func mapError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", action, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", action, ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", action, ErrForeignKey, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%s: %w (%s)", action, ErrCheck, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
