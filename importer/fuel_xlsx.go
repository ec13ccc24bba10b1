package importer

import (
	"errors"
	"io"
	"strings"

	"bitbucket.org/frotaworks/fleet_backend/sheetsync"
	"github.com/xuri/excelize/v2"
)

var ErrMissingColumns = errors.New("workbook is missing vehicle, date or quantity columns")

// ParseFuelWorkbook reads the first sheet of an uploaded workbook into
// secondary-source fuel entries. Columns are located from the header row by
// the same resolver the sync engine uses, so column order and accents in the
// upload do not matter. Rows whose date or quantity cannot be parsed are
// counted as skipped rather than guessed at.
func ParseFuelWorkbook(r io.Reader) ([]sheetsync.FuelEntry, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) < 2 {
		return nil, 0, nil
	}

	cols := sheetsync.ResolveHeaders(rows[0], sheetsync.FuelFieldSpecs())
	codeCol, dateCol, qtyCol := cols["vehicle_code"], cols["date"], cols["quantity"]
	if codeCol < 0 || dateCol < 0 || qtyCol < 0 {
		return nil, 0, ErrMissingColumns
	}
	timeCol, horimeterCol, operatorCol := cols["time"], cols["horimeter"], cols["operator"]

	var entries []sheetsync.FuelEntry
	skipped := 0
	for _, row := range rows[1:] {
		code := strings.TrimSpace(cell(row, codeCol))
		if code == "" {
			skipped++
			continue
		}
		date, ok := sheetsync.ParseSheetDate(cell(row, dateCol))
		if !ok {
			skipped++
			continue
		}
		qty, ok := sheetsync.ParseDecimalCell(cell(row, qtyCol))
		if !ok {
			skipped++
			continue
		}

		entry := sheetsync.FuelEntry{
			VehicleCode: code,
			Date:        date,
			Quantity:    qty,
			Operator:    strings.TrimSpace(cell(row, operatorCol)),
			Source:      sheetsync.SourceSecondary,
		}
		if hhmm := strings.TrimSpace(cell(row, timeCol)); len(hhmm) >= 5 {
			entry.Time = hhmm[:5]
		}
		if horimeter, ok := sheetsync.ParseDecimalCell(cell(row, horimeterCol)); ok {
			entry.Horimeter = horimeter
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
