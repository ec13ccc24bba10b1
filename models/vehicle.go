package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"gorm.io/gorm"
)

type Vehicle struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	Code        string    `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Plate       string    `gorm:"size:20" json:"plate"`
	Description string    `gorm:"size:255" json:"description"`
	Company     string    `gorm:"size:255" json:"company"`
	Operator    string    `gorm:"size:255" json:"operator"`
	Active      bool      `gorm:"default:true" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NormalizeVehicleCode collapses the spellings seen in the field
// ("eq 01", " EQ01 ") into one comparable key.
func NormalizeVehicleCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

func GetVehicleByCode(ctx context.Context, code string) (*Vehicle, error) {
	db := config.GetDB().WithContext(ctx)
	var vehicle Vehicle
	err := db.Where("code = ?", NormalizeVehicleCode(code)).First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

func ListVehicles(ctx context.Context) ([]Vehicle, error) {
	db := config.GetDB().WithContext(ctx)
	var vehicles []Vehicle
	err := db.Where("active = ?", true).Order("code ASC").Find(&vehicles).Error
	return vehicles, err
}
