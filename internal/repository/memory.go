package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"luna-backend/internal/models"
)

// MemoryStore is an in-process Store that enforces the same constraints as
// the PostgreSQL schema: unique keys, foreign keys with their ON DELETE
// actions, and CHECK constraints. Transactions are serialized.
type MemoryStore struct {
	db *memoryDB
	tx *memoryState
}

type memoryDB struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

type memoryState struct {
	users        map[int64]*models.User
	pins         map[int64]*models.Pin
	userPins     map[int64]*models.UserPin
	partnerships map[int64]*models.Partnership
	seq          map[string]int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		db: &memoryDB{
			state: newMemoryState(),
			now:   time.Now,
		},
	}
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:        make(map[int64]*models.User),
		pins:         make(map[int64]*models.Pin),
		userPins:     make(map[int64]*models.UserPin),
		partnerships: make(map[int64]*models.Partnership),
		seq:          make(map[string]int64),
	}
}

func (st *memoryState) clone() *memoryState {
	c := newMemoryState()
	for id, u := range st.users {
		c.users[id] = copyUser(u)
	}
	for id, p := range st.pins {
		pin := *p
		c.pins[id] = &pin
	}
	for id, up := range st.userPins {
		userPin := *up
		c.userPins[id] = &userPin
	}
	for id, p := range st.partnerships {
		partnership := *p
		c.partnerships[id] = &partnership
	}
	for k, v := range st.seq {
		c.seq[k] = v
	}
	return c
}

func (st *memoryState) next(table string) int64 {
	st.seq[table]++
	return st.seq[table]
}

func copyUser(u *models.User) *models.User {
	user := *u
	if u.PartnershipID != nil {
		id := *u.PartnershipID
		user.PartnershipID = &id
	}
	return &user
}

func (s *MemoryStore) with(fn func(st *memoryState) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.state)
}

// Users returns the user store
func (s *MemoryStore) Users() UserStore { return memoryUsers{s} }

// Pins returns the pin store
func (s *MemoryStore) Pins() PinStore { return memoryPins{s} }

// Partnerships returns the partnership store
func (s *MemoryStore) Partnerships() PartnershipStore { return memoryPartnerships{s} }

// WithinTx runs fn against a private copy of the data and publishes it only on success
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	working := s.db.state.clone()
	if err := fn(&MemoryStore{db: s.db, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.state = working
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) List(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0)
	err := m.s.with(func(st *memoryState) error {
		for _, u := range st.users {
			users = append(users, copyUser(u))
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, err
}

func (m memoryUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user *models.User
	err := m.s.with(func(st *memoryState) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("get user: %w", ErrNotFound)
		}
		user = copyUser(u)
		return nil
	})
	return user, err
}

func (m memoryUsers) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return m.GetByID(ctx, id)
}

func (m memoryUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user *models.User
	err := m.s.with(func(st *memoryState) error {
		for _, u := range st.users {
			if u.Username == username {
				user = copyUser(u)
				return nil
			}
		}
		return fmt.Errorf("get user by username: %w", ErrNotFound)
	})
	return user, err
}

func (m memoryUsers) UsernameOrEmailExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := m.s.with(func(st *memoryState) error {
		for _, u := range st.users {
			if u.Username == username || u.Email == email {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (m memoryUsers) Create(ctx context.Context, user *models.User) error {
	return m.s.with(func(st *memoryState) error {
		for _, u := range st.users {
			if u.Username == user.Username {
				return fmt.Errorf("create user: %w (users_username_key)", ErrConflict)
			}
			if u.Email == user.Email {
				return fmt.Errorf("create user: %w (users_email_key)", ErrConflict)
			}
		}
		user.ID = st.next("users")
		user.CreatedAt = m.s.db.now()
		user.PartnershipID = nil
		st.users[user.ID] = copyUser(user)
		return nil
	})
}

func (m memoryUsers) Update(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	var updated *models.User
	err := m.s.with(func(st *memoryState) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("update user: %w", ErrNotFound)
		}
		if update.Username != nil {
			for otherID, other := range st.users {
				if otherID != id && other.Username == *update.Username {
					return fmt.Errorf("update user: %w (users_username_key)", ErrConflict)
				}
			}
			u.Username = *update.Username
		}
		if update.FirstName != nil {
			u.FirstName = *update.FirstName
		}
		if update.LastName != nil {
			u.LastName = *update.LastName
		}
		updated = copyUser(u)
		return nil
	})
	return updated, err
}

func (m memoryUsers) Delete(ctx context.Context, id int64) error {
	return m.s.with(func(st *memoryState) error {
		if _, ok := st.users[id]; !ok {
			return fmt.Errorf("delete user %d: %w", id, ErrNotFound)
		}
		delete(st.users, id)

		// ON DELETE CASCADE: pins, user_pins, user_partnerships
		for pinID, pin := range st.pins {
			if pin.UserID == id {
				delete(st.pins, pinID)
			}
		}
		for upID, up := range st.userPins {
			if _, pinAlive := st.pins[up.PinID]; up.UserID == id || !pinAlive {
				delete(st.userPins, upID)
			}
		}
		for pID, p := range st.partnerships {
			if p.UserID1 == id || p.UserID2 == id {
				delete(st.partnerships, pID)
				st.clearPartnership(pID)
			}
		}
		return nil
	})
}

// clearPartnership mirrors ON DELETE SET NULL on users.partnership_id
func (st *memoryState) clearPartnership(partnershipID int64) int64 {
	var cleared int64
	for _, u := range st.users {
		if u.PartnershipID != nil && *u.PartnershipID == partnershipID {
			u.PartnershipID = nil
			cleared++
		}
	}
	return cleared
}

func (m memoryUsers) AttachPartnership(ctx context.Context, userID, partnershipID int64) error {
	return m.s.with(func(st *memoryState) error {
		if _, ok := st.partnerships[partnershipID]; !ok {
			return fmt.Errorf("attach partnership: %w (users_partnership_id_fkey)", ErrForeignKey)
		}
		u, ok := st.users[userID]
		if !ok || u.PartnershipID != nil {
			return fmt.Errorf("attach partnership to user %d: %w", userID, ErrConflict)
		}
		id := partnershipID
		u.PartnershipID = &id
		return nil
	})
}

func (m memoryUsers) DetachPartnership(ctx context.Context, partnershipID int64) (int64, error) {
	var cleared int64
	err := m.s.with(func(st *memoryState) error {
		cleared = st.clearPartnership(partnershipID)
		return nil
	})
	return cleared, err
}

type memoryPins struct{ s *MemoryStore }

func (m memoryPins) Create(ctx context.Context, pin *models.Pin) error {
	return m.s.with(func(st *memoryState) error {
		if _, ok := st.users[pin.UserID]; !ok {
			return fmt.Errorf("create pin: %w (pins_user_id_fkey)", ErrForeignKey)
		}
		for _, p := range st.pins {
			if p.Latitude == pin.Latitude && p.Longitude == pin.Longitude {
				return fmt.Errorf("create pin: %w (pins_location_key)", ErrConflict)
			}
		}
		pin.ID = st.next("pins")
		pin.CreatedAt = m.s.db.now()
		stored := *pin
		st.pins[pin.ID] = &stored
		return nil
	})
}

func (m memoryPins) GetByID(ctx context.Context, id int64) (*models.Pin, error) {
	var pin *models.Pin
	err := m.s.with(func(st *memoryState) error {
		p, ok := st.pins[id]
		if !ok {
			return fmt.Errorf("get pin: %w", ErrNotFound)
		}
		found := *p
		pin = &found
		return nil
	})
	return pin, err
}

func (m memoryPins) ListByUser(ctx context.Context, userID int64) ([]*models.Pin, error) {
	pins := make([]*models.Pin, 0)
	err := m.s.with(func(st *memoryState) error {
		for _, p := range st.pins {
			if p.UserID == userID {
				found := *p
				pins = append(pins, &found)
			}
		}
		return nil
	})
	sort.Slice(pins, func(i, j int) bool { return pins[i].ID < pins[j].ID })
	return pins, err
}

func (m memoryPins) LocationExists(ctx context.Context, latitude, longitude float64) (bool, error) {
	var exists bool
	err := m.s.with(func(st *memoryState) error {
		for _, p := range st.pins {
			if p.Latitude == latitude && p.Longitude == longitude {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (m memoryPins) CreateOwnership(ctx context.Context, userPin *models.UserPin) error {
	return m.s.with(func(st *memoryState) error {
		if !userPin.OwnershipType.Valid() {
			return fmt.Errorf("create pin ownership: %w (user_pins_ownership_type_check)", ErrCheck)
		}
		if _, ok := st.users[userPin.UserID]; !ok {
			return fmt.Errorf("create pin ownership: %w (user_pins_user_id_fkey)", ErrForeignKey)
		}
		if _, ok := st.pins[userPin.PinID]; !ok {
			return fmt.Errorf("create pin ownership: %w (user_pins_pin_id_fkey)", ErrForeignKey)
		}
		for _, up := range st.userPins {
			if up.UserID == userPin.UserID && up.PinID == userPin.PinID {
				return fmt.Errorf("create pin ownership: %w (user_pins_user_id_pin_id_key)", ErrConflict)
			}
		}
		userPin.ID = st.next("user_pins")
		userPin.CreatedAt = m.s.db.now()
		stored := *userPin
		st.userPins[userPin.ID] = &stored
		return nil
	})
}

func (m memoryPins) GetActiveOwnership(ctx context.Context, userID, pinID int64) (*models.UserPin, error) {
	var userPin *models.UserPin
	err := m.s.with(func(st *memoryState) error {
		for _, up := range st.userPins {
			if up.UserID == userID && up.PinID == pinID && up.RemovedAt == nil {
				found := *up
				userPin = &found
				return nil
			}
		}
		return fmt.Errorf("get pin ownership: %w", ErrNotFound)
	})
	return userPin, err
}

type memoryPartnerships struct{ s *MemoryStore }

func (m memoryPartnerships) Create(ctx context.Context, partnership *models.Partnership) error {
	return m.s.with(func(st *memoryState) error {
		if partnership.UserID1 == partnership.UserID2 {
			return fmt.Errorf("create partnership: %w (user_partnerships_distinct_users)", ErrCheck)
		}
		for _, id := range []int64{partnership.UserID1, partnership.UserID2} {
			if _, ok := st.users[id]; !ok {
				return fmt.Errorf("create partnership: %w (user_partnerships_user_fkey)", ErrForeignKey)
			}
		}
		partnership.ID = st.next("user_partnerships")
		partnership.CreatedAt = m.s.db.now()
		stored := *partnership
		st.partnerships[partnership.ID] = &stored
		return nil
	})
}

func (m memoryPartnerships) GetByID(ctx context.Context, id int64) (*models.Partnership, error) {
	var partnership *models.Partnership
	err := m.s.with(func(st *memoryState) error {
		p, ok := st.partnerships[id]
		if !ok {
			return fmt.Errorf("get partnership: %w", ErrNotFound)
		}
		found := *p
		partnership = &found
		return nil
	})
	return partnership, err
}

func (m memoryPartnerships) Delete(ctx context.Context, id int64) error {
	return m.s.with(func(st *memoryState) error {
		if _, ok := st.partnerships[id]; !ok {
			return fmt.Errorf("delete partnership %d: %w", id, ErrNotFound)
		}
		delete(st.partnerships, id)
		st.clearPartnership(id)
		return nil
	})
}
