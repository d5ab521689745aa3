package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"partsmarket/internal/apperr"
	"partsmarket/internal/domain/outbox"
)

// Enqueue stores a message for later dispatch using tx, normally the caller's
// transaction. A second message with the same dedupKey is dropped; the
// returned bool reports whether a row was written.
func Enqueue(tx *gorm.DB, kind, dedupKey string, payload any) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	msg := outbox.Message{
		Kind:          kind,
		DedupKey:      dedupKey,
		Payload:       datatypes.JSON(raw),
		Status:        outbox.StatusPending,
		NextAttemptAt: time.Now().UTC(),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns messages newest first, optionally filtered by status.
func List(db *gorm.DB, status outbox.Status, limit int) ([]outbox.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := db.Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var msgs []outbox.Message
	return msgs, q.Find(&msgs).Error
}

// Requeue moves a dead message back to pending with a fresh attempt budget.
func Requeue(db *gorm.DB, id uuid.UUID) error {
	var msg outbox.Message
	if err := db.First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("outbox message")
		}
		return err
	}
	if msg.Status != outbox.StatusDead {
		return apperr.Validation("outbox message is %s, only dead messages can be requeued", msg.Status)
	}

	res := db.Model(&outbox.Message{}).
		Where("id = ? AND status = ?", id, outbox.StatusDead).
		Updates(map[string]any{
			"status":          outbox.StatusPending,
			"attempts":        0,
			"next_attempt_at": time.Now().UTC(),
			"locked_until":    nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Validation("outbox message changed while requeueing")
	}
	return nil
}
