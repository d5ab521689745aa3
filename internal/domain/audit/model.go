package audit

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Entry struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	Action   string         `gorm:"type:varchar(60);not null;index" json:"action"`
	Entity   string         `gorm:"type:varchar(40);not null" json:"entity"`
	EntityID string         `gorm:"index" json:"entity_id"`
	Actor    string         `json:"actor"`
	Details  datatypes.JSON `json:"details"`

	CreatedAt time.Time `json:"created_at"`
}

func (Entry) TableName() string { return "audit_log" }

// Record appends an audit entry using db, which may be a transaction.
func Record(db *gorm.DB, action, entity, entityID, actor string, details any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return db.Create(&Entry{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Actor:    actor,
		Details:  datatypes.JSON(raw),
	}).Error
}
