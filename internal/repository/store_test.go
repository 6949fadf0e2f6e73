package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"luna-backend/internal/models"
)

// storeFactory returns an empty store for one subtest
type storeFactory func(t *testing.T) Store

func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Run("UserUniqueness", func(t *testing.T) { testUserUniqueness(t, newStore(t)) })
	t.Run("UserUpdate", func(t *testing.T) { testUserUpdate(t, newStore(t)) })
	t.Run("PinConstraints", func(t *testing.T) { testPinConstraints(t, newStore(t)) })
	t.Run("PartnershipLifecycle", func(t *testing.T) { testPartnershipLifecycle(t, newStore(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, newStore(t)) })
	t.Run("WithinTxRollback", func(t *testing.T) { testWithinTxRollback(t, newStore(t)) })
}

func mustCreateUser(t *testing.T, store Store, username string) *models.User {
	t.Helper()
	user := &models.User{
		FirstName:    "First",
		LastName:     "Last",
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	if user.ID == 0 {
		t.Fatalf("expected store-assigned id for %s", username)
	}
	return user
}

func mustCreatePin(t *testing.T, store Store, userID int64, lat, lon float64) *models.Pin {
	t.Helper()
	pin := &models.Pin{UserID: userID, Title: "pin", Latitude: lat, Longitude: lon}
	if err := store.Pins().Create(context.Background(), pin); err != nil {
		t.Fatalf("create pin: %v", err)
	}
	return pin
}

func testUserUniqueness(t *testing.T, store Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	if bob.ID == alice.ID {
		t.Fatalf("expected distinct ids, both got %d", alice.ID)
	}

	dupUsername := &models.User{FirstName: "A", LastName: "B", Username: "alice", Email: "other@example.com", PasswordHash: "h"}
	if err := store.Users().Create(ctx, dupUsername); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}
	dupEmail := &models.User{FirstName: "A", LastName: "B", Username: "carol", Email: "alice@example.com", PasswordHash: "h"}
	if err := store.Users().Create(ctx, dupEmail); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	exists, err := store.Users().UsernameOrEmailExists(ctx, "nobody", "bob@example.com")
	if err != nil || !exists {
		t.Fatalf("expected email to be reported taken, got %v err=%v", exists, err)
	}

	found, err := store.Users().GetByUsername(ctx, "alice")
	if err != nil || found.ID != alice.ID {
		t.Fatalf("expected alice by username, got %+v err=%v", found, err)
	}
	if _, err := store.Users().GetByID(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	users, err := store.Users().List(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0].ID != alice.ID || users[1].ID != bob.ID {
		t.Fatalf("expected [alice bob] ordered by id, got %d users", len(users))
	}
}

func testUserUpdate(t *testing.T, store Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "bob")

	first := "Alicia"
	updated, err := store.Users().Update(ctx, alice.ID, models.UserUpdate{FirstName: &first})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != "Alicia" || updated.LastName != "Last" || updated.Username != "alice" {
		t.Fatalf("expected only first_name to change, got %+v", updated)
	}

	taken := "bob"
	if _, err := store.Users().Update(ctx, alice.ID, models.UserUpdate{Username: &taken}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for taken username, got %v", err)
	}
	if _, err := store.Users().Update(ctx, 999999, models.UserUpdate{FirstName: &first}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Users().Delete(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting missing user, got %v", err)
	}
}

func testPinConstraints(t *testing.T, store Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice")

	pin := mustCreatePin(t, store, alice.ID, 40.7128, -74.006)

	if err := store.Pins().Create(ctx, &models.Pin{UserID: alice.ID, Title: "dup", Latitude: 40.7128, Longitude: -74.006}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate location, got %v", err)
	}
	if err := store.Pins().Create(ctx, &models.Pin{UserID: 999999, Title: "orphan", Latitude: 1, Longitude: 1}); !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey for unknown owner, got %v", err)
	}

	exists, err := store.Pins().LocationExists(ctx, 40.7128, -74.006)
	if err != nil || !exists {
		t.Fatalf("expected location to exist, got %v err=%v", exists, err)
	}

	if err := store.Pins().CreateOwnership(ctx, &models.UserPin{UserID: alice.ID, PinID: pin.ID, OwnershipType: "owner"}); !errors.Is(err, ErrCheck) {
		t.Fatalf("expected ErrCheck for unknown ownership type, got %v", err)
	}
	primary := &models.UserPin{UserID: alice.ID, PinID: pin.ID, OwnershipType: models.OwnershipPrimary}
	if err := store.Pins().CreateOwnership(ctx, primary); err != nil {
		t.Fatalf("create ownership: %v", err)
	}
	again := &models.UserPin{UserID: alice.ID, PinID: pin.ID, OwnershipType: models.OwnershipSecondary}
	if err := store.Pins().CreateOwnership(ctx, again); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate ownership, got %v", err)
	}

	ownership, err := store.Pins().GetActiveOwnership(ctx, alice.ID, pin.ID)
	if err != nil || ownership.OwnershipType != models.OwnershipPrimary {
		t.Fatalf("expected primary ownership, got %+v err=%v", ownership, err)
	}

	second := mustCreatePin(t, store, alice.ID, 51.5074, -0.1278)
	pins, err := store.Pins().ListByUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list pins: %v", err)
	}
	if len(pins) != 2 || pins[0].ID != pin.ID || pins[1].ID != second.ID {
		t.Fatalf("expected both pins ordered by id, got %d", len(pins))
	}
	if pins[0].Latitude != 40.7128 || pins[0].Longitude != -74.006 {
		t.Fatalf("unexpected stored coordinates %f,%f", pins[0].Latitude, pins[0].Longitude)
	}
}

func testPartnershipLifecycle(t *testing.T, store Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	if err := store.Partnerships().Create(ctx, &models.Partnership{UserID1: alice.ID, UserID2: alice.ID}); !errors.Is(err, ErrCheck) {
		t.Fatalf("expected ErrCheck for self partnership, got %v", err)
	}

	partnership := &models.Partnership{UserID1: alice.ID, UserID2: bob.ID}
	if err := store.Partnerships().Create(ctx, partnership); err != nil {
		t.Fatalf("create partnership: %v", err)
	}
	for _, id := range []int64{alice.ID, bob.ID} {
		if err := store.Users().AttachPartnership(ctx, id, partnership.ID); err != nil {
			t.Fatalf("attach user %d: %v", id, err)
		}
	}

	other := &models.Partnership{UserID1: alice.ID, UserID2: carol.ID}
	if err := store.Partnerships().Create(ctx, other); err != nil {
		t.Fatalf("create second partnership row: %v", err)
	}
	if err := store.Users().AttachPartnership(ctx, alice.ID, other.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict attaching an already partnered user, got %v", err)
	}
	if err := store.Partnerships().Delete(ctx, other.ID); err != nil {
		t.Fatalf("delete stray partnership: %v", err)
	}

	got, err := store.Users().GetByID(ctx, bob.ID)
	if err != nil || got.PartnershipID == nil || *got.PartnershipID != partnership.ID {
		t.Fatalf("expected bob to reference partnership %d, got %+v err=%v", partnership.ID, got, err)
	}

	cleared, err := store.Users().DetachPartnership(ctx, partnership.ID)
	if err != nil || cleared != 2 {
		t.Fatalf("expected 2 users detached, got %d err=%v", cleared, err)
	}
	if err := store.Partnerships().Delete(ctx, partnership.ID); err != nil {
		t.Fatalf("delete partnership: %v", err)
	}
	if _, err := store.Partnerships().GetByID(ctx, partnership.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Partnerships().Delete(ctx, partnership.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func testDeleteUserCascades(t *testing.T, store Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	pin := mustCreatePin(t, store, alice.ID, 10, 20)
	if err := store.Pins().CreateOwnership(ctx, &models.UserPin{UserID: alice.ID, PinID: pin.ID, OwnershipType: models.OwnershipPrimary}); err != nil {
		t.Fatalf("create ownership: %v", err)
	}
	if err := store.Pins().CreateOwnership(ctx, &models.UserPin{UserID: bob.ID, PinID: pin.ID, OwnershipType: models.OwnershipSecondary}); err != nil {
		t.Fatalf("create secondary ownership: %v", err)
	}

	partnership := &models.Partnership{UserID1: alice.ID, UserID2: bob.ID}
	if err := store.Partnerships().Create(ctx, partnership); err != nil {
		t.Fatalf("create partnership: %v", err)
	}
	for _, id := range []int64{alice.ID, bob.ID} {
		if err := store.Users().AttachPartnership(ctx, id, partnership.ID); err != nil {
			t.Fatalf("attach user %d: %v", id, err)
		}
	}

	if err := store.Users().Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete alice: %v", err)
	}

	if _, err := store.Pins().GetByID(ctx, pin.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected alice's pin to cascade, got %v", err)
	}
	if _, err := store.Pins().GetActiveOwnership(ctx, bob.ID, pin.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ownership rows on the deleted pin to cascade, got %v", err)
	}
	if _, err := store.Partnerships().GetByID(ctx, partnership.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected partnership to cascade, got %v", err)
	}
	got, err := store.Users().GetByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if got.PartnershipID != nil {
		t.Fatalf("expected bob's partnership reference to be cleared, got %d", *got.PartnershipID)
	}
}

func testWithinTxRollback(t *testing.T, store Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx Store) error {
		user := &models.User{FirstName: "T", LastName: "X", Username: "ghost", Email: "ghost@example.com", PasswordHash: "h"}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		if _, err := tx.Users().GetByID(ctx, user.ID); err != nil {
			return fmt.Errorf("row not visible inside its transaction: %w", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	if _, err := store.Users().GetByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rolled back user to be absent, got %v", err)
	}

	err = store.WithinTx(ctx, func(tx Store) error {
		return tx.WithinTx(ctx, func(inner Store) error {
			user := &models.User{FirstName: "T", LastName: "X", Username: "kept", Email: "kept@example.com", PasswordHash: "h"}
			return inner.Users().Create(ctx, user)
		})
	})
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}
	if _, err := store.Users().GetByUsername(ctx, "kept"); err != nil {
		t.Fatalf("expected committed user, got %v", err)
	}
}
