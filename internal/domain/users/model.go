package users

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleCustomer  = "customer"
	RoleShopOwner = "shop_owner"
	RoleAdmin     = "admin"
)

// Profile mirrors the auth backend's user. ID is the token subject.
type Profile struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `gorm:"not null;uniqueIndex:idx_profiles_email" json:"email"`
	Phone    string    `json:"phone"`
	Role     string    `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
