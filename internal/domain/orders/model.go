package orders

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Order struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"shop_id"`
	CustomerID *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	RequestID  *uuid.UUID `gorm:"type:uuid;index" json:"request_id,omitempty"`

	TotalCents int64  `gorm:"not null" json:"total_cents"`
	Currency   string `gorm:"type:varchar(3);not null;default:'ZAR'" json:"currency"`

	PaymentStatus     PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PaymentReference  *string       `gorm:"column:payment_reference;uniqueIndex:idx_orders_payment_reference" json:"payment_reference,omitempty"`
	PaymentAccessCode *string       `gorm:"column:payment_access_code" json:"-"`
	PaymentProvider   *string       `gorm:"column:payment_provider;type:varchar(20)" json:"payment_provider,omitempty"`
	InvoiceNumber     *string       `gorm:"column:invoice_number;uniqueIndex:idx_orders_invoice_number" json:"invoice_number,omitempty"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ShortID is the first eight characters of the order id, used in payment references.
func (o *Order) ShortID() string {
	return o.ID.String()[:8]
}
