package importer

import (
	"errors"
	"net/http"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/models"
	"bitbucket.org/frotaworks/fleet_backend/sheetsync"
	"github.com/gin-gonic/gin"
)

const importPageSize = 1000

// ImportFuelHandler ingests an uploaded fuel workbook. Parsed rows are
// merged against the authoritative store by composite key; only rows the
// store does not already have are created, tagged with the import origin.
// Rows carrying a horimeter snapshot additionally yield meter readings,
// merged by vehicle code + date the same way.
func ImportFuelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		parsed, skippedRows, err := ParseFuelWorkbook(file)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrMissingColumns) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		var authoritative []sheetsync.FuelEntry
		offset := 0
		for {
			page, err := models.ListFuelRecordsPage(ctx, offset, importPageSize)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			for _, record := range page {
				authoritative = append(authoritative, sheetsync.FuelEntryFromModel(record))
			}
			if len(page) < importPageSize {
				break
			}
			offset += importPageSize
		}

		merged := sheetsync.MergeFuelEntries(authoritative, parsed)

		imported := 0
		logger := config.GetLogger()
		for _, entry := range merged {
			if entry.Source != sheetsync.SourceSecondary {
				continue
			}
			record := &models.FuelRecord{
				VehicleCode: entry.VehicleCode,
				RecordDate:  entry.Date,
				RecordTime:  entry.Time,
				Quantity:    entry.Quantity,
				Horimeter:   entry.Horimeter,
				Operator:    entry.Operator,
				Origin:      models.FuelRecordOriginImport,
			}
			if err := models.CreateFuelRecord(ctx, record); err != nil {
				config.LogError(logger, "handler.go", "ImportFuelHandler", "creating imported fuel record", record, err)
				continue
			}
			imported++
		}

		var knownReadings []sheetsync.MeterEntry
		offset = 0
		for {
			page, err := models.ListMeterReadingsPage(ctx, offset, importPageSize)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			for _, reading := range page {
				knownReadings = append(knownReadings, sheetsync.MeterEntryFromModel(reading))
			}
			if len(page) < importPageSize {
				break
			}
			offset += importPageSize
		}

		importedReadings := 0
		for _, entry := range sheetsync.MergeMeterEntries(knownReadings, sheetsync.MeterEntriesFromFuel(parsed)) {
			if entry.Source != sheetsync.SourceSecondary {
				continue
			}
			reading := &models.MeterReading{
				VehicleCode: entry.VehicleCode,
				ReadingDate: entry.Date,
				Value:       entry.Value,
				Source:      models.MeterReadingSourceImport,
			}
			if err := models.CreateMeterReading(ctx, reading); err != nil {
				config.LogError(logger, "handler.go", "ImportFuelHandler", "creating imported meter reading", reading, err)
				continue
			}
			importedReadings++
		}

		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"imported":      imported,
			"duplicates":    len(parsed) - imported,
			"skipped":       skippedRows,
			"meterReadings": importedReadings,
		})
	}
}
