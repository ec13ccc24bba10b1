package models

import (
	"context"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
)

const (
	MaintenanceStatusOpen       = "open"
	MaintenanceStatusInProgress = "in_progress"
	MaintenanceStatusWaiting    = "waiting_parts"
	MaintenanceStatusFinalized  = "finalized"
)

type MaintenanceOrder struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	OrderNumber string     `gorm:"uniqueIndex;size:30;not null" json:"order_number"`
	VehicleCode string     `gorm:"index;size:50;not null" json:"vehicle_code"`
	Description string     `gorm:"type:text" json:"description"`
	Workshop    string     `gorm:"size:255" json:"workshop"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	EnteredAt   *time.Time `json:"entered_at"`
	FinalizedAt *time.Time `json:"finalized_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListMaintenanceOrdersPage reads one page ordered by id so the batch engine
// can concatenate pages without a total count up front.
func ListMaintenanceOrdersPage(ctx context.Context, offset int, limit int) ([]MaintenanceOrder, error) {
	db := config.GetDB().WithContext(ctx)
	var orders []MaintenanceOrder
	err := db.Order("id ASC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, err
}
