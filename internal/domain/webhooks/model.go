package webhooks

import (
	"time"

	"gorm.io/datatypes"
)

// Event stores inbound provider callbacks with deduplication metadata.
// (Provider, EventID) is unique; a second insert for the same pair means replay.
type Event struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_provider_event,priority:1" json:"provider"`
	EventID         string         `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_provider_event,priority:2" json:"event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string { return "webhook_events" }
