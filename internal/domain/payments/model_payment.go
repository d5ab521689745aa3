package payments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LedgerSuccess  = "success"
	LedgerFailed   = "failed"
	LedgerRefunded = "refunded"
)

// Payment is an append-only ledger row.
type Payment struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID               uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	AmountCents           int64     `gorm:"not null" json:"amount_cents"`
	Currency              string    `gorm:"type:varchar(3);not null" json:"currency"`
	Provider              string    `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderTransactionID string    `gorm:"index" json:"provider_transaction_id"`
	Reference             string    `gorm:"index" json:"reference"`
	Status                string    `gorm:"type:varchar(20);not null" json:"status"`
	Channel               string    `json:"channel,omitempty"`

	CardType string `json:"card_type,omitempty"`
	Last4    string `gorm:"type:varchar(4)" json:"last4,omitempty"`
	Bank     string `json:"bank,omitempty"`
	ExpMonth string `json:"exp_month,omitempty"`
	ExpYear  string `json:"exp_year,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
