package sheetsync

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/models"
	"github.com/shopspring/decimal"
)

// Source tags where a record came from. On composite-key collision the
// authoritative side always wins.
type Source int

const (
	SourceAuthoritative Source = iota
	SourceSecondary
)

type FuelEntry struct {
	VehicleCode string
	Date        time.Time
	Time        string
	Quantity    decimal.Decimal
	Horimeter   decimal.Decimal
	Operator    string
	Source      Source
}

type MeterEntry struct {
	VehicleCode string
	Date        time.Time
	Value       decimal.Decimal
	Source      Source
}

// sheetSerialEpoch is the spreadsheet day-zero (1899-12-30); serial values
// count days since it, with the fractional part as time of day.
var sheetSerialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var sheetDateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseSheetDate accepts dd/mm/yyyy, yyyy-mm-dd (both with optional time)
// and spreadsheet serial numbers. Anything else is rejected rather than
// guessed at.
func ParseSheetDate(cell string) (time.Time, bool) {
	value := strings.TrimSpace(cell)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial < 1 || serial > 300000 {
			return time.Time{}, false
		}
		days := int(serial)
		frac := serial - float64(days)
		t := sheetSerialEpoch.AddDate(0, 0, days)
		t = t.Add(time.Duration(frac*24*float64(time.Hour)) / time.Second * time.Second)
		return t, true
	}
	return time.Time{}, false
}

func FormatSheetDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// ParseDecimalCell reads a spreadsheet quantity cell, accepting both comma
// and dot decimal separators ("1.234,56", "1234.56", "10,5").
func ParseDecimalCell(cell string) (decimal.Decimal, bool) {
	value := strings.Join(strings.Fields(cell), "")
	if value == "" {
		return decimal.Zero, false
	}
	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// fuelKey is the composite natural key for a fuel movement: record date,
// time and quantity truncated to two places so formatting differences on the
// two sides cannot break a match.
func fuelKey(e FuelEntry) string {
	return e.Date.Format("2006-01-02") + "|" + strings.TrimSpace(e.Time) + "|" + e.Quantity.Truncate(2).String()
}

func meterKey(e MeterEntry) string {
	return models.NormalizeVehicleCode(e.VehicleCode) + "|" + e.Date.Format("2006-01-02")
}

func fuelSortStamp(e FuelEntry) time.Time {
	stamp := e.Date
	if hhmm := strings.TrimSpace(e.Time); len(hhmm) >= 5 {
		if t, err := time.Parse("15:04", hhmm[:5]); err == nil {
			stamp = stamp.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		}
	}
	return stamp
}

// MeterEntryFromModel tags an authoritative reading for merging.
func MeterEntryFromModel(reading models.MeterReading) MeterEntry {
	return MeterEntry{
		VehicleCode: reading.VehicleCode,
		Date:        reading.ReadingDate,
		Value:       reading.Value,
		Source:      SourceAuthoritative,
	}
}

// MeterEntriesFromFuel derives horimeter readings from fuel movements that
// carry one; the horimeter snapshot taken at fueling time is a reading in
// its own right. Entries keep their source tag so merges stay
// authoritative-wins.
func MeterEntriesFromFuel(entries []FuelEntry) []MeterEntry {
	var readings []MeterEntry
	for _, entry := range entries {
		if !entry.Horimeter.IsPositive() {
			continue
		}
		readings = append(readings, MeterEntry{
			VehicleCode: entry.VehicleCode,
			Date:        entry.Date,
			Value:       entry.Horimeter,
			Source:      entry.Source,
		})
	}
	return readings
}

// FuelEntryFromModel tags an authoritative row for merging.
func FuelEntryFromModel(record models.FuelRecord) FuelEntry {
	return FuelEntry{
		VehicleCode: record.VehicleCode,
		Date:        record.RecordDate,
		Time:        record.RecordTime,
		Quantity:    record.Quantity,
		Horimeter:   record.Horimeter,
		Operator:    record.Operator,
		Source:      SourceAuthoritative,
	}
}

// MergeFuelEntries deduplicates fuel movements from heterogeneous sources.
// Authoritative entries claim their key first regardless of list order;
// secondary entries fill only keys nobody claimed. Output is most-recent
// first, ties keeping authoritative insertion order (sort is stable).
func MergeFuelEntries(lists ...[]FuelEntry) []FuelEntry {
	seen := make(map[string]bool)
	var merged []FuelEntry

	for _, list := range lists {
		for _, entry := range list {
			if entry.Source != SourceAuthoritative {
				continue
			}
			entry.VehicleCode = models.NormalizeVehicleCode(entry.VehicleCode)
			key := fuelKey(entry)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}
	for _, list := range lists {
		for _, entry := range list {
			if entry.Source == SourceAuthoritative {
				continue
			}
			entry.VehicleCode = models.NormalizeVehicleCode(entry.VehicleCode)
			key := fuelKey(entry)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return fuelSortStamp(merged[i]).After(fuelSortStamp(merged[j]))
	})
	return merged
}

// MergeMeterEntries deduplicates horimeter readings by vehicle code + date,
// authoritative wins.
func MergeMeterEntries(lists ...[]MeterEntry) []MeterEntry {
	seen := make(map[string]bool)
	var merged []MeterEntry

	for _, list := range lists {
		for _, entry := range list {
			if entry.Source != SourceAuthoritative {
				continue
			}
			entry.VehicleCode = models.NormalizeVehicleCode(entry.VehicleCode)
			key := meterKey(entry)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}
	for _, list := range lists {
		for _, entry := range list {
			if entry.Source == SourceAuthoritative {
				continue
			}
			entry.VehicleCode = models.NormalizeVehicleCode(entry.VehicleCode)
			key := meterKey(entry)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})
	return merged
}
