package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"luna-backend/internal/models"
	"luna-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user-related business logic
type UserService struct {
	store     repository.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	hashCost  int
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(store repository.Store, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// CreateUserRequest represents a registration request
type CreateUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Claims are the JWT claims issued on login
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

func (r *CreateUserRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *CreateUserRequest) validate() error {
	switch {
	case r.Username == "":
		return invalidArgument("username is required")
	case r.Email == "":
		return invalidArgument("email is required")
	case r.FirstName == "":
		return invalidArgument("first_name is required")
	case r.LastName == "":
		return invalidArgument("last_name is required")
	case r.Password == "":
		return invalidArgument("password is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return invalidArgument("email %q is not a valid address", r.Email)
	}
	return nil
}

// ListUsers returns every user
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, translate(err, "list users")
	}
	return users, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

// CreateUser registers a user with a bcrypt-hashed password. The ID is assigned by the store.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	taken, err := s.store.Users().UsernameOrEmailExists(ctx, req.Username, req.Email)
	if err != nil {
		return nil, translate(err, "check username and email")
	}
	if taken {
		return nil, fmt.Errorf("%w: username or email already exists", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	// The unique constraints settle races the pre-check cannot see.
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: username or email already exists", ErrConflict)
		}
		return nil, translate(err, "create user")
	}
	return user, nil
}

// UpdateUser applies the fields present in update and leaves the rest untouched
func (s *UserService) UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	var normalized models.UserUpdate
	fields := []struct {
		name string
		in   *string
		out  **string
	}{
		{"username", update.Username, &normalized.Username},
		{"first_name", update.FirstName, &normalized.FirstName},
		{"last_name", update.LastName, &normalized.LastName},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		trimmed := strings.TrimSpace(*f.in)
		if trimmed == "" {
			return nil, invalidArgument("%s must not be empty", f.name)
		}
		*f.out = &trimmed
	}

	if normalized.Empty() {
		return s.GetUser(ctx, id)
	}

	user, err := s.store.Users().Update(ctx, id, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: username already exists", ErrConflict)
		}
		return nil, translate(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

// DeleteUser removes a user. A partnership the user belonged to is dissolved in the
// same transaction and returned so the former partner can be told; owned pins and
// ownership rows go with the user row through ON DELETE CASCADE.
func (s *UserService) DeleteUser(ctx context.Context, id int64) (*models.Partnership, error) {
	var dissolved *models.Partnership
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			return translate(err, fmt.Sprintf("user %d", id))
		}

		if user.PartnershipID != nil {
			partnership, err := tx.Partnerships().GetByID(ctx, *user.PartnershipID)
			if err != nil {
				return translate(err, fmt.Sprintf("partnership %d", *user.PartnershipID))
			}
			if _, err := tx.Users().DetachPartnership(ctx, partnership.ID); err != nil {
				return translate(err, "detach partnership")
			}
			if err := tx.Partnerships().Delete(ctx, partnership.ID); err != nil {
				return translate(err, fmt.Sprintf("partnership %d", partnership.ID))
			}
			dissolved = partnership
		}

		if err := tx.Users().Delete(ctx, id); err != nil {
			return translate(err, fmt.Sprintf("user %d", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dissolved, nil
}

// Authenticate checks a username/password pair and issues a token
func (s *UserService) Authenticate(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
		}
		return "", nil, translate(err, "get user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID int64) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (int64, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	if claims.UserID == 0 {
		return 0, fmt.Errorf("%w: user_id not found in token", ErrUnauthenticated)
	}
	return claims.UserID, nil
}
