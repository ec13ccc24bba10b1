package sheetsync

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/models"
	"github.com/shopspring/decimal"
)

func fuelSheetRows() [][]string {
	return [][]string{
		{"Veículo", "Data", "Hora", "Quantidade", "Operador"},
		{"EQ01", "14/03/2024", "08:30", "100,0", "João"},
		{"eq 02", "15/03/2024", "08:30", "150,50", "Maria"},
		{"EQ02", "15/03/2024", "14:00", "150,50", "Maria"},
	}
}

func fuelRecord(code string, day time.Time, hhmm string, qty float64) *models.FuelRecord {
	return &models.FuelRecord{
		VehicleCode: code,
		RecordDate:  day,
		RecordTime:  hhmm,
		Quantity:    decimal.NewFromFloat(qty),
	}
}

func TestMatchFuelRow(t *testing.T) {
	rows := fuelSheetRows()
	cols := ResolveHeaders(rows[0], FuelFieldSpecs())
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		record *models.FuelRecord
		want   int
	}{
		{"exact match with normalized code", fuelRecord("EQ02", day, "08:30", 150.50), 2},
		{"time disambiguates same-day rows", fuelRecord("EQ02", day, "14:00", 150.50), 3},
		{"quantity within tolerance", fuelRecord("EQ02", day, "08:30", 150.505), 2},
		{"quantity outside tolerance", fuelRecord("EQ02", day, "08:30", 150.70), -1},
		{"wrong date", fuelRecord("EQ02", day.AddDate(0, 0, 1), "08:30", 150.50), -1},
		{"unknown vehicle", fuelRecord("EQ99", day, "08:30", 150.50), -1},
	}
	for _, c := range cases {
		if got := MatchFuelRow(rows, cols, c.record); got != c.want {
			t.Fatalf("%s: MatchFuelRow = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestMatchFuelRowWithoutTimeColumn(t *testing.T) {
	rows := [][]string{
		{"Veículo", "Data", "Quantidade"},
		{"EQ01", "15/03/2024", "100"},
	}
	cols := ResolveHeaders(rows[0], FuelFieldSpecs())
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	// Record carries a time but the sheet has no time column: key fields that
	// exist on both sides still match.
	if got := MatchFuelRow(rows, cols, fuelRecord("EQ01", day, "08:30", 100)); got != 1 {
		t.Fatalf("MatchFuelRow = %d, want 1", got)
	}
}

func TestMatchFuelRowMissingKeyColumns(t *testing.T) {
	rows := [][]string{
		{"Data", "Operador"},
		{"15/03/2024", "João"},
	}
	cols := ResolveHeaders(rows[0], FuelFieldSpecs())
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := MatchFuelRow(rows, cols, fuelRecord("EQ01", day, "", 100)); got != -1 {
		t.Fatalf("MatchFuelRow = %d, want -1 when key columns are absent", got)
	}
}

func TestRemoveExternalFuelRow(t *testing.T) {
	store := newFakeStore(nil)
	store.vehicleRows = fuelSheetRows()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	removed, err := RemoveExternalFuelRow(context.Background(), store, "Abastecimentos", fuelRecord("EQ02", day, "14:00", 150.50))
	if err != nil {
		t.Fatalf("RemoveExternalFuelRow failed: %v", err)
	}
	if !removed {
		t.Fatal("expected a matching row to be removed")
	}
	// Row index 3 in the 0-based read is sheet row 4.
	want := "deleterow:Abastecimentos:4"
	found := false
	for _, op := range store.ops {
		if op == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("ops %v do not contain %q", store.ops, want)
	}
}

func TestRemoveExternalFuelRowNoMatch(t *testing.T) {
	store := newFakeStore(nil)
	store.vehicleRows = fuelSheetRows()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	removed, err := RemoveExternalFuelRow(context.Background(), store, "Abastecimentos", fuelRecord("EQ99", day, "08:30", 10))
	if err != nil {
		t.Fatalf("RemoveExternalFuelRow failed: %v", err)
	}
	if removed {
		t.Fatal("no row should match an unknown vehicle")
	}
	for _, op := range store.ops {
		if op == "deleterow:Abastecimentos:1" || op == "deleterow:Abastecimentos:2" {
			t.Fatalf("unexpected delete op %q", op)
		}
	}
}

func TestRemoveExternalFuelRowEmptySheet(t *testing.T) {
	store := newFakeStore(nil)
	store.vehicleRows = [][]string{{"Veículo", "Data", "Quantidade"}}
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	removed, err := RemoveExternalFuelRow(context.Background(), store, "Abastecimentos", fuelRecord("EQ01", day, "", 10))
	if err != nil || removed {
		t.Fatalf("header-only sheet: removed=%v err=%v, want false/nil", removed, err)
	}
}
