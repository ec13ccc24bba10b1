package fleet

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/models"
	"bitbucket.org/frotaworks/fleet_backend/sheetsync"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const listPageSize = 100

type createFuelRecordInput struct {
	VehicleCode string  `json:"vehicleCode" binding:"required"`
	Date        string  `json:"date" binding:"required"`
	Time        string  `json:"time"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	Horimeter   float64 `json:"horimeter"`
	Operator    string  `json:"operator"`
}

type createMeterReadingInput struct {
	VehicleCode string  `json:"vehicleCode" binding:"required"`
	Date        string  `json:"date" binding:"required"`
	Value       float64 `json:"value" binding:"required,gt=0"`
	Source      string  `json:"source" binding:"omitempty,oneof=manual photo import"`
	ImageURL    string  `json:"imageUrl"`
}

func ListVehiclesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := models.ListVehicles(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": vehicles})
	}
}

// CreateFuelRecordHandler records one fueling against a registered vehicle.
// Dates arrive in the same formats the sheet side uses.
func CreateFuelRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input createFuelRecordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()

		if _, err := models.GetVehicleByCode(ctx, input.VehicleCode); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		date, ok := sheetsync.ParseSheetDate(input.Date)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable date"})
			return
		}
		hhmm := input.Time
		if len(hhmm) > 5 {
			hhmm = hhmm[:5]
		}

		record := &models.FuelRecord{
			VehicleCode: input.VehicleCode,
			RecordDate:  date,
			RecordTime:  hhmm,
			Quantity:    decimal.NewFromFloat(input.Quantity),
			Horimeter:   decimal.NewFromFloat(input.Horimeter),
			Operator:    input.Operator,
			Origin:      models.FuelRecordOriginApp,
		}
		if err := models.CreateFuelRecord(ctx, record); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "CreateFuelRecordHandler", "creating fuel record", record, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func ListFuelRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := models.ListFuelRecordsPage(c.Request.Context(), pageOffset(c), listPageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": records})
	}
}

// CreateMeterReadingHandler persists a horimeter reading, typically after a
// recognize call returned a value the operator confirmed.
func CreateMeterReadingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input createMeterReadingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()

		if _, err := models.GetVehicleByCode(ctx, input.VehicleCode); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		date, ok := sheetsync.ParseSheetDate(input.Date)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable date"})
			return
		}
		source := input.Source
		if source == "" {
			source = models.MeterReadingSourceManual
		}

		reading := &models.MeterReading{
			VehicleCode: input.VehicleCode,
			ReadingDate: date,
			Value:       decimal.NewFromFloat(input.Value),
			Source:      source,
			ImageURL:    input.ImageURL,
		}
		if err := models.CreateMeterReading(ctx, reading); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "CreateMeterReadingHandler", "creating meter reading", reading, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, reading)
	}
}

func ListMeterReadingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		readings, err := models.ListMeterReadingsPage(c.Request.Context(), pageOffset(c), listPageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": readings})
	}
}

func pageOffset(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page * listPageSize
}
