package services

import (
	"context"
	"errors"
	"fmt"

	"luna-backend/internal/models"
	"luna-backend/internal/repository"
)

// PartnershipService handles partnership-related business logic
type PartnershipService struct {
	store repository.Store
}

// NewPartnershipService creates a new partnership service
func NewPartnershipService(store repository.Store) *PartnershipService {
	return &PartnershipService{store: store}
}

// CreatePartnership links two users that are both currently unpartnered.
// The partnership row and both user references are written in one transaction.
func (s *PartnershipService) CreatePartnership(ctx context.Context, userID1, userID2 int64) (*models.Partnership, error) {
	if userID1 == userID2 {
		return nil, invalidArgument("cannot create partnership with yourself")
	}

	partnership := &models.Partnership{UserID1: userID1, UserID2: userID2}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		// Lock in ID order so concurrent requests over the same users cannot deadlock.
		first, second := userID1, userID2
		if first > second {
			first, second = second, first
		}
		locked := make([]*models.User, 0, 2)
		for _, id := range []int64{first, second} {
			user, err := tx.Users().GetByIDForUpdate(ctx, id)
			if err != nil {
				return translate(err, fmt.Sprintf("user %d", id))
			}
			locked = append(locked, user)
		}
		// Existence is checked for both users before either one's partnership.
		for _, user := range locked {
			if user.PartnershipID != nil {
				return fmt.Errorf("%w: user %d is already in a partnership", ErrConflict, user.ID)
			}
		}

		if err := tx.Partnerships().Create(ctx, partnership); err != nil {
			return translate(err, "create partnership")
		}

		for _, id := range []int64{userID1, userID2} {
			if err := tx.Users().AttachPartnership(ctx, id, partnership.ID); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return fmt.Errorf("%w: user %d is already in a partnership", ErrConflict, id)
				}
				return translate(err, "attach partnership")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return partnership, nil
}

// GetPartnership returns a partnership by ID
func (s *PartnershipService) GetPartnership(ctx context.Context, id int64) (*models.Partnership, error) {
	partnership, err := s.store.Partnerships().GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("partnership %d", id))
	}
	return partnership, nil
}

// PartnerOf returns the ID of the user's partner, or 0 if the user is unpartnered
func (s *PartnershipService) PartnerOf(ctx context.Context, userID int64) (int64, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return 0, translate(err, fmt.Sprintf("user %d", userID))
	}
	if user.PartnershipID == nil {
		return 0, nil
	}
	partnership, err := s.GetPartnership(ctx, *user.PartnershipID)
	if err != nil {
		return 0, err
	}
	return partnership.PartnerOf(userID), nil
}

// DeletePartnership removes a partnership and clears both members' references
// in one transaction. The removed partnership is returned.
func (s *PartnershipService) DeletePartnership(ctx context.Context, id int64) (*models.Partnership, error) {
	var deleted *models.Partnership
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		partnership, err := tx.Partnerships().GetByID(ctx, id)
		if err != nil {
			return translate(err, fmt.Sprintf("partnership %d", id))
		}
		if _, err := tx.Users().DetachPartnership(ctx, id); err != nil {
			return translate(err, "detach partnership")
		}
		if err := tx.Partnerships().Delete(ctx, id); err != nil {
			return translate(err, fmt.Sprintf("partnership %d", id))
		}
		deleted = partnership
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
