package requests

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartRequest is what a customer asked a shop to source. Orders point at it.
type PartRequest struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	PartName     string     `gorm:"not null" json:"part_name"`
	PartNumber   string     `json:"part_number,omitempty"`
	VehicleMake  string     `json:"vehicle_make"`
	VehicleModel string     `json:"vehicle_model"`
	VehicleYear  int        `json:"vehicle_year"`
	Quantity     int        `gorm:"not null;default:1" json:"quantity"`
	Notes        string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *PartRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Vehicle renders "2015 Toyota Corolla", skipping empty parts.
func (r *PartRequest) Vehicle() string {
	parts := make([]string, 0, 3)
	if r.VehicleYear > 0 {
		parts = append(parts, fmt.Sprint(r.VehicleYear))
	}
	for _, s := range []string{r.VehicleMake, r.VehicleModel} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
