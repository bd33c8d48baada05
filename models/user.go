package models

import "time"

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleCustomer        UserRole = "customer"
	RoleStoreOwner      UserRole = "store_owner"
	RoleDeliveryPartner UserRole = "delivery_partner"
	RoleAdmin           UserRole = "admin"
)

// ValidRole reports whether r is one of the four marketplace roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleCustomer, RoleStoreOwner, RoleDeliveryPartner, RoleAdmin:
		return true
	}
	return false
}

// Coordinates is a lat/lng pair embedded in JSON columns.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the pair was never set.
func (c Coordinates) Zero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Address is stored as a JSON column. The coordinates inside it are what
// delivery routing works from.
type Address struct {
	Street      string      `json:"street"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Pincode     string      `json:"pincode"`
	Landmark    string      `json:"landmark,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

type User struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	Name         string   `json:"name" gorm:"not null"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null"`
	Phone        string   `json:"phone" gorm:"uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"not null"`
	Role         UserRole `json:"role" gorm:"not null;default:'customer'"`
	Address      Address  `json:"address" gorm:"serializer:json"`
	AvatarURL    string   `json:"avatar_url"`

	// Accounts are soft-deactivated, never hard-deleted.
	IsActive bool `json:"is_active" gorm:"default:true"`

	// Delivery partners only: last reported position and when.
	CurrentLocation   Coordinates `json:"current_location,omitempty" gorm:"serializer:json"`
	LocationUpdatedAt *time.Time  `json:"location_updated_at,omitempty"`

	ResetToken       string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
