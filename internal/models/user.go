package models

import (
	"github.com/google/uuid"
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an authenticated customer or back-office admin.
type User struct {
	BaseModel
	Name         string        `json:"name"`
	Email        string        `gorm:"uniqueIndex" json:"email"`
	PasswordHash string        `json:"-"`
	Role         string        `gorm:"default:customer" json:"role"`
	Addresses    []UserAddress `json:"addresses,omitempty"`
	Orders       []Order       `json:"orders,omitempty"`
}

// UserAddress is a saved shipping address with resolved coordinates.
type UserAddress struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Label         string    `json:"label"`
	RecipientName string    `json:"recipient_name"`
	AddressLine   string    `json:"address_line"`
	City          string    `json:"city"`
	Province      string    `json:"province"`
	PostalCode    string    `json:"postal_code"`
	PhoneNumber   string    `json:"phone_number"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	IsDefault     bool      `json:"is_default"`
}
