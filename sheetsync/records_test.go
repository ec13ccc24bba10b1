package sheetsync

import (
	"testing"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/models"
	"github.com/shopspring/decimal"
)

func TestNormalizeVehicleCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"eq 01", "EQ01"},
		{"EQ01", "EQ01"},
		{" EQ01 ", "EQ01"},
		{"eq\t01", "EQ01"},
		{"", ""},
	}
	for _, c := range cases {
		if got := models.NormalizeVehicleCode(c.in); got != c.want {
			t.Fatalf("NormalizeVehicleCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseSheetDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/03/2024 08:30", time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), true},
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-15 08:30:00", time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), true},
		{"45366", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"45366.5", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), true},
		{"0.5", time.Time{}, false},
		{"400000", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := ParseSheetDate(c.in)
		if ok != c.ok {
			t.Fatalf("ParseSheetDate(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && !got.Equal(c.want) {
			t.Fatalf("ParseSheetDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDecimalCell(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10,5", "10.5", true},
		{"1.234,56", "1234.56", true},
		{"1234.56", "1234.56", true},
		{"150", "150", true},
		{" 42 ", "42", true},
		{"abc", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseDecimalCell(c.in)
		if ok != c.ok {
			t.Fatalf("ParseDecimalCell(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && got.String() != c.want {
			t.Fatalf("ParseDecimalCell(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestMergeFuelEntriesAuthoritativeWins(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	authoritative := []FuelEntry{
		{VehicleCode: "EQ01", Date: day, Time: "08:30", Quantity: decimal.NewFromFloat(150.5), Operator: "João", Source: SourceAuthoritative},
	}
	secondary := []FuelEntry{
		// Same key, different operator: must lose to the authoritative row.
		{VehicleCode: "eq 01", Date: day, Time: "08:30", Quantity: decimal.NewFromFloat(150.5), Operator: "Planilha", Source: SourceSecondary},
		// New key: survives.
		{VehicleCode: "EQ02", Date: day, Time: "14:00", Quantity: decimal.NewFromFloat(80), Operator: "Maria", Source: SourceSecondary},
	}

	// Secondary list first: order of the input lists must not matter.
	merged := MergeFuelEntries(secondary, authoritative)
	if len(merged) != 2 {
		t.Fatalf("merged %d entries, want 2", len(merged))
	}
	for _, entry := range merged {
		if entry.Time == "08:30" && entry.Operator != "João" {
			t.Fatalf("duplicate key resolved to %q, want authoritative entry", entry.Operator)
		}
	}
}

func TestMergeFuelEntriesMostRecentFirst(t *testing.T) {
	older := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	merged := MergeFuelEntries([]FuelEntry{
		{VehicleCode: "EQ01", Date: older, Time: "08:00", Quantity: decimal.NewFromInt(10), Source: SourceAuthoritative},
		{VehicleCode: "EQ01", Date: newer, Time: "09:00", Quantity: decimal.NewFromInt(20), Source: SourceAuthoritative},
		{VehicleCode: "EQ01", Date: newer, Time: "07:00", Quantity: decimal.NewFromInt(30), Source: SourceAuthoritative},
	})
	if len(merged) != 3 {
		t.Fatalf("merged %d entries, want 3", len(merged))
	}
	if !merged[0].Date.Equal(newer) || merged[0].Time != "09:00" {
		t.Fatalf("first entry is %v %s, want newest timestamp first", merged[0].Date, merged[0].Time)
	}
	if !merged[2].Date.Equal(older) {
		t.Fatalf("last entry is %v, want oldest last", merged[2].Date)
	}
}

func TestMergeFuelEntriesQuantityTruncation(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	merged := MergeFuelEntries([]FuelEntry{
		{VehicleCode: "EQ01", Date: day, Time: "08:30", Quantity: decimal.NewFromFloat(150.559), Source: SourceAuthoritative},
	}, []FuelEntry{
		// Differs only beyond two decimal places: same key.
		{VehicleCode: "EQ01", Date: day, Time: "08:30", Quantity: decimal.NewFromFloat(150.551), Source: SourceSecondary},
	})
	if len(merged) != 1 {
		t.Fatalf("merged %d entries, want 1 (keys equal after truncation)", len(merged))
	}
	if merged[0].Source != SourceAuthoritative {
		t.Fatalf("surviving entry source = %v, want authoritative", merged[0].Source)
	}
}

func TestMergeMeterEntriesAuthoritativeWins(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	merged := MergeMeterEntries([]MeterEntry{
		{VehicleCode: "eq 01", Date: day, Value: decimal.NewFromInt(999), Source: SourceSecondary},
	}, []MeterEntry{
		{VehicleCode: "EQ01", Date: day, Value: decimal.NewFromInt(1000), Source: SourceAuthoritative},
	})
	if len(merged) != 1 {
		t.Fatalf("merged %d entries, want 1", len(merged))
	}
	if !merged[0].Value.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("surviving value = %s, want authoritative 1000", merged[0].Value)
	}
}

func TestMeterEntriesFromFuel(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	readings := MeterEntriesFromFuel([]FuelEntry{
		{VehicleCode: "EQ01", Date: day, Quantity: decimal.NewFromInt(100), Horimeter: decimal.NewFromInt(1200), Source: SourceSecondary},
		{VehicleCode: "EQ02", Date: day, Quantity: decimal.NewFromInt(80), Source: SourceSecondary}, // no horimeter
		{VehicleCode: "EQ03", Date: day, Quantity: decimal.NewFromInt(50), Horimeter: decimal.NewFromInt(-1), Source: SourceSecondary},
	})
	if len(readings) != 1 {
		t.Fatalf("derived %d readings, want 1 (only positive horimeters)", len(readings))
	}
	r := readings[0]
	if r.VehicleCode != "EQ01" || !r.Value.Equal(decimal.NewFromInt(1200)) || r.Source != SourceSecondary {
		t.Fatalf("unexpected derived reading: %+v", r)
	}
}

func TestMergeMeterEntriesFromImport(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	known := []MeterEntry{
		MeterEntryFromModel(models.MeterReading{
			VehicleCode: "EQ01",
			ReadingDate: day,
			Value:       decimal.NewFromInt(1195),
		}),
	}
	derived := MeterEntriesFromFuel([]FuelEntry{
		// Same vehicle+day as the known reading: loses the merge.
		{VehicleCode: "eq 01", Date: day, Horimeter: decimal.NewFromInt(1200), Source: SourceSecondary},
		// New vehicle: survives as a secondary reading.
		{VehicleCode: "EQ02", Date: day, Horimeter: decimal.NewFromInt(300), Source: SourceSecondary},
	})

	merged := MergeMeterEntries(known, derived)
	if len(merged) != 2 {
		t.Fatalf("merged %d entries, want 2", len(merged))
	}
	survivors := 0
	for _, entry := range merged {
		if entry.VehicleCode == "EQ01" && !entry.Value.Equal(decimal.NewFromInt(1195)) {
			t.Fatalf("authoritative reading lost: %+v", entry)
		}
		if entry.Source == SourceSecondary {
			survivors++
			if entry.VehicleCode != "EQ02" {
				t.Fatalf("unexpected secondary survivor: %+v", entry)
			}
		}
	}
	if survivors != 1 {
		t.Fatalf("%d secondary survivors, want 1", survivors)
	}
}

func TestFuelEntryFromModel(t *testing.T) {
	record := models.FuelRecord{
		VehicleCode: "EQ01",
		RecordDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		RecordTime:  "08:30",
		Quantity:    decimal.NewFromFloat(150.5),
		Operator:    "João",
	}
	entry := FuelEntryFromModel(record)
	if entry.Source != SourceAuthoritative {
		t.Fatalf("entry source = %v, want authoritative", entry.Source)
	}
	if entry.VehicleCode != "EQ01" || entry.Time != "08:30" || !entry.Quantity.Equal(record.Quantity) {
		t.Fatalf("entry fields do not mirror the record: %+v", entry)
	}
}
