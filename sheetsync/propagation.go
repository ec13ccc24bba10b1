package sheetsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/models"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// quantityTolerance absorbs float/formatting drift when matching a fuel
// record against its sheet row by field equality.
var quantityTolerance = decimal.NewFromFloat(0.01)

// ApproveSyncRequest resolves a pending request. For deletes the
// authoritative record is removed first, then the matching sheet row is
// removed best-effort; an unmatched row is informational, not an error,
// because the authoritative deletion is the source of truth. For edits only
// the proposed fields are applied and the sheet is left for the next batch
// sync. The delete/edit asymmetry is deliberate.
func ApproveSyncRequest(ctx context.Context, requestId uint, resolvedBy string, notes string) (*models.SyncRequest, string, error) {
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	request, err := models.GetSyncRequestById(ctx, requestId)
	if err != nil {
		return nil, "", err
	}
	if request.IsResolved() {
		return nil, "", models.ErrSyncRequestResolved
	}

	switch request.RequestType {
	case models.SyncRequestTypeDelete:
		record, err := models.GetFuelRecordById(ctx, request.RecordId)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			err = db.Transaction(func(tx *gorm.DB) error {
				return models.ResolveSyncRequest(tx, request, models.SyncRequestStatusApproved, resolvedBy, notes)
			})
			return request, "record already removed on authoritative side", err
		}
		if err != nil {
			return nil, "", err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := models.DeleteFuelRecord(ctx, tx, record.ID); err != nil {
				return err
			}
			return models.ResolveSyncRequest(tx, request, models.SyncRequestStatusApproved, resolvedBy, notes)
		})
		if err != nil {
			return nil, "", err
		}
		return request, propagateFuelDeletion(ctx, logger, record), nil

	case models.SyncRequestTypeEdit:
		changes := map[string]interface{}{}
		if len(request.ChangesJSON) > 0 {
			if err := json.Unmarshal(request.ChangesJSON, &changes); err != nil {
				return nil, "", fmt.Errorf("invalid proposed changes: %w", err)
			}
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := models.UpdateFuelRecordFields(ctx, tx, request.RecordId, changes); err != nil {
				return err
			}
			return models.ResolveSyncRequest(tx, request, models.SyncRequestStatusApproved, resolvedBy, notes)
		})
		if err != nil {
			return nil, "", err
		}
		return request, "changes applied; sheet reconciles on next batch sync", nil

	default:
		return nil, "", fmt.Errorf("unknown request type %q", request.RequestType)
	}
}

func RejectSyncRequest(ctx context.Context, requestId uint, resolvedBy string, notes string) (*models.SyncRequest, error) {
	db := config.GetDB().WithContext(ctx)
	request, err := models.GetSyncRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if request.IsResolved() {
		return nil, models.ErrSyncRequestResolved
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return models.ResolveSyncRequest(tx, request, models.SyncRequestStatusRejected, resolvedBy, notes)
	})
	return request, err
}

// propagateFuelDeletion attempts to drop the just-deleted record's row from
// the fuel tab. Every failure path here degrades to a log plus an
// informational message; the authoritative deletion already happened.
func propagateFuelDeletion(ctx context.Context, logger *logrus.Logger, record *models.FuelRecord) string {
	store, err := storeFromEnv(ctx)
	if err != nil {
		config.LogError(logger, "propagation.go", "propagateFuelDeletion", "building sheets store", map[string]interface{}{"record_id": record.ID}, err)
		return "record deleted; external store unavailable, row left for next batch sync"
	}
	sheet := envDefault("SHEETS_FUEL_TAB", "Abastecimentos")

	removed, err := RemoveExternalFuelRow(ctx, store, sheet, record)
	if err != nil {
		config.LogError(logger, "propagation.go", "propagateFuelDeletion", "removing external row", map[string]interface{}{"record_id": record.ID}, err)
		return "record deleted; external row lookup failed, row left for next batch sync"
	}
	if !removed {
		return "record deleted; matching row already absent on external side"
	}
	return "record deleted; matching sheet row removed"
}

// RemoveExternalFuelRow locates the sheet row matching the record's key
// fields and removes it. Returns false when nothing matched.
func RemoveExternalFuelRow(ctx context.Context, store ValueStore, sheetTitle string, record *models.FuelRecord) (bool, error) {
	rows, err := store.ReadRange(ctx, RangeRef(sheetTitle, "A1:Z"))
	if err != nil {
		return false, err
	}
	if len(rows) < 2 {
		return false, nil
	}
	cols := ResolveHeaders(rows[0], FuelFieldSpecs())
	rowIdx := MatchFuelRow(rows, cols, record)
	if rowIdx < 0 {
		return false, nil
	}
	if err := store.DeleteRow(ctx, sheetTitle, int64(rowIdx+1)); err != nil {
		return false, err
	}
	return true, nil
}

// MatchFuelRow scans data rows for the record's composite key: normalized
// vehicle code, record date, time (when both sides carry one) and quantity
// within tolerance. Returns the 0-based row index, or -1.
func MatchFuelRow(rows [][]string, cols map[string]int, record *models.FuelRecord) int {
	codeCol, dateCol, qtyCol := cols["vehicle_code"], cols["date"], cols["quantity"]
	if codeCol < 0 || dateCol < 0 || qtyCol < 0 {
		return -1
	}
	timeCol := cols["time"]
	wantCode := models.NormalizeVehicleCode(record.VehicleCode)
	wantTime := record.RecordTime

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if models.NormalizeVehicleCode(cellAt(row, codeCol)) != wantCode {
			continue
		}
		date, ok := ParseSheetDate(cellAt(row, dateCol))
		if !ok || !sameDay(date, record.RecordDate) {
			continue
		}
		if timeCol >= 0 && wantTime != "" {
			cell := cellAt(row, timeCol)
			if len(cell) >= 5 && cell[:5] != wantTime {
				continue
			}
		}
		qty, ok := ParseDecimalCell(cellAt(row, qtyCol))
		if !ok || qty.Sub(record.Quantity).Abs().GreaterThan(quantityTolerance) {
			continue
		}
		return i
	}
	return -1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
