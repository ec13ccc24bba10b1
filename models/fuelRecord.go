package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	FuelRecordOriginApp    = "app"
	FuelRecordOriginImport = "import"
)

type FuelRecord struct {
	ID          uint            `gorm:"primary_key" json:"id"`
	VehicleCode string          `gorm:"index;size:50;not null" json:"vehicle_code"`
	RecordDate  time.Time       `gorm:"index;not null" json:"record_date"`
	RecordTime  string          `gorm:"size:5" json:"record_time"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	Horimeter   decimal.Decimal `gorm:"type:decimal(12,2)" json:"horimeter"`
	Operator    string          `gorm:"size:255" json:"operator"`
	Origin      string          `gorm:"size:20;default:'app'" json:"origin"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateFuelRecord(ctx context.Context, record *FuelRecord) error {
	db := config.GetDB().WithContext(ctx)
	record.VehicleCode = NormalizeVehicleCode(record.VehicleCode)
	return db.Create(record).Error
}

func GetFuelRecordById(ctx context.Context, id uint) (*FuelRecord, error) {
	db := config.GetDB().WithContext(ctx)
	var record FuelRecord
	err := db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListFuelRecordsPage reads one page ordered by a stable key so callers can
// paginate deterministically.
func ListFuelRecordsPage(ctx context.Context, offset int, limit int) ([]FuelRecord, error) {
	db := config.GetDB().WithContext(ctx)
	var records []FuelRecord
	err := db.Order("id ASC").Offset(offset).Limit(limit).Find(&records).Error
	return records, err
}

func DeleteFuelRecord(ctx context.Context, tx *gorm.DB, id uint) error {
	return tx.Where("id = ?", id).Delete(&FuelRecord{}).Error
}

// fuelRecordEditableFields is the whitelist for propagation edits. Anything
// outside it in a proposal is ignored.
var fuelRecordEditableFields = map[string]bool{
	"vehicle_code": true,
	"record_date":  true,
	"record_time":  true,
	"quantity":     true,
	"horimeter":    true,
	"operator":     true,
}

func UpdateFuelRecordFields(ctx context.Context, tx *gorm.DB, id uint, changes map[string]interface{}) error {
	filtered := map[string]interface{}{}
	for field, value := range changes {
		if fuelRecordEditableFields[field] {
			filtered[field] = value
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return tx.Model(&FuelRecord{}).Where("id = ?", id).Updates(filtered).Error
}
