package models

import (
	"bitbucket.org/frotaworks/fleet_backend/config"
)

// MigrateTable runs AutoMigrate for every model owned by this service.
func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&Vehicle{},
		&FuelRecord{},
		&MeterReading{},
		&MaintenanceOrder{},
		&SheetSyncRun{},
		&SyncRequest{},
	)
	if err != nil {
		panic(err)
	}
}
