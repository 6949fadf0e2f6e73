package models

import "time"

// OwnershipType classifies a user's relationship to a pin
type OwnershipType string

const (
	OwnershipPrimary   OwnershipType = "primary"
	OwnershipSecondary OwnershipType = "secondary"
)

// Valid reports whether t is a known ownership type
func (t OwnershipType) Valid() bool {
	return t == OwnershipPrimary || t == OwnershipSecondary
}

// User represents a registered account
type User struct {
	ID            int64     `json:"user_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"creation_date"`
	PartnershipID *int64    `json:"partnership_id"`
}

// UserUpdate carries the basic profile fields that may change; nil means untouched
type UserUpdate struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Empty reports whether no field is set
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.FirstName == nil && u.LastName == nil
}

// Pin represents a geolocated note
type Pin struct {
	ID        int64     `json:"pin_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"creation_date"`
}

// UserPin links a user to a pin with an ownership role
type UserPin struct {
	ID            int64         `json:"user_pin_id"`
	UserID        int64         `json:"user_id"`
	PinID         int64         `json:"pin_id"`
	OwnershipType OwnershipType `json:"ownership_type"`
	CreatedAt     time.Time     `json:"creation_date"`
	RemovedAt     *time.Time    `json:"removed_at,omitempty"`
}

// Partnership represents an exclusive link between two users
type Partnership struct {
	ID        int64     `json:"partnership_id"`
	UserID1   int64     `json:"user_id_1"`
	UserID2   int64     `json:"user_id_2"`
	CreatedAt time.Time `json:"creation_date"`
}

// PartnerOf returns the other member of the partnership, or 0 if userID is not a member
func (p *Partnership) PartnerOf(userID int64) int64 {
	switch userID {
	case p.UserID1:
		return p.UserID2
	case p.UserID2:
		return p.UserID1
	}
	return 0
}
