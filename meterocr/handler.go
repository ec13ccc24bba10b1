package meterocr

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type recognizeInput struct {
	Image       string `json:"image" binding:"required"`
	Type        string `json:"type" binding:"required,oneof=horimeter quantity"`
	VehicleCode string `json:"vehicleCode"`
}

// RecognizeHandler downsizes the submitted photo, forwards it to the
// classification service and optionally archives it. The caller decides what
// to do with the value; persisting a reading is a separate step.
func RecognizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input recognizeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		prepared, err := PrepareImage(input.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		client, err := NewClientFromEnv()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		result, err := client.Recognize(ctx, prepared, input.Type)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		logger := config.GetLogger()
		objectName := fmt.Sprintf("meter/%s/%s-%s.jpg", time.Now().Format("2006-01-02"), input.VehicleCode, uuid.NewString())
		if err := ArchiveImage(ctx, objectName, prepared); err != nil {
			config.LogError(logger, "handler.go", "RecognizeHandler", "archiving meter image", map[string]interface{}{"object": objectName}, err)
		}

		c.JSON(http.StatusOK, gin.H{
			"success": result.Success,
			"value":   result.Value,
			"rawText": result.RawText,
		})
	}
}
