package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusDead    Status = "dead"
)

const KindInvoiceSend = "invoice.send"

type Message struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind          string         `gorm:"type:varchar(60);not null;index" json:"kind"`
	DedupKey      string         `gorm:"not null;uniqueIndex:idx_outbox_messages_dedup_key" json:"dedup_key"`
	Payload       datatypes.JSON `json:"payload"`
	Status        Status         `gorm:"type:varchar(20);not null;default:'pending';index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time      `gorm:"not null;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LockedUntil   *time.Time     `json:"locked_until,omitempty"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Message) TableName() string { return "outbox_messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Backoff is base * 2^(attempts-1), capped at max.
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
