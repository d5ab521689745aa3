package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypePaymentReceived = "payment_received"
	TypePaymentFailed   = "payment_failed"
	TypePaymentRefunded = "payment_refunded"
)

// Notification is a display-feed row for a shop. There is no delivery state
// beyond ReadAt.
type Notification struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"shop_id"`
	Type     string         `gorm:"type:varchar(40);not null;index" json:"type"`
	Title    string         `gorm:"not null" json:"title"`
	Message  string         `json:"message"`
	Data     datatypes.JSON `json:"data"`
	DedupKey *string        `gorm:"uniqueIndex:idx_notifications_dedup_key" json:"-"`
	ReadAt   *time.Time     `json:"read_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
