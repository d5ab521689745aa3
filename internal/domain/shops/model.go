package shops

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Shop struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	VATNumber string    `gorm:"column:vat_number" json:"vat_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ShopCustomer is the denormalised spend aggregate for one customer at one shop.
type ShopCustomer struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	ShopID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_shop_customers_pair,priority:1" json:"shop_id"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_shop_customers_pair,priority:2" json:"customer_id"`
	TotalSpentCents int64      `gorm:"not null;default:0" json:"total_spent_cents"`
	OrderCount      int        `gorm:"not null;default:0" json:"order_count"`
	LoyaltyTier     string     `gorm:"type:varchar(20);not null;default:'none'" json:"loyalty_tier"`
	LastOrderAt     *time.Time `json:"last_order_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
