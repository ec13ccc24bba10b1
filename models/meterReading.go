package models

import (
	"context"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"github.com/shopspring/decimal"
)

const (
	MeterReadingSourceManual = "manual"
	MeterReadingSourcePhoto  = "photo"
	MeterReadingSourceImport = "import"
)

type MeterReading struct {
	ID          uint            `gorm:"primary_key" json:"id"`
	VehicleCode string          `gorm:"index;size:50;not null" json:"vehicle_code"`
	ReadingDate time.Time       `gorm:"index;not null" json:"reading_date"`
	Value       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	Source      string          `gorm:"size:20;default:'manual'" json:"source"`
	ImageURL    string          `gorm:"size:512" json:"image_url"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateMeterReading(ctx context.Context, reading *MeterReading) error {
	db := config.GetDB().WithContext(ctx)
	reading.VehicleCode = NormalizeVehicleCode(reading.VehicleCode)
	return db.Create(reading).Error
}

func ListMeterReadingsPage(ctx context.Context, offset int, limit int) ([]MeterReading, error) {
	db := config.GetDB().WithContext(ctx)
	var readings []MeterReading
	err := db.Order("id ASC").Offset(offset).Limit(limit).Find(&readings).Error
	return readings, err
}
