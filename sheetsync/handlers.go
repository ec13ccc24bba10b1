package sheetsync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/models"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"github.com/gin-gonic/gin"
)

// TriggerSyncHandler starts one batch sync. With SHEET_SYNC_ASYNC the run is
// queued through Pub/Sub and picked up by the push endpoint; otherwise it
// executes inline and the summary comes back in the response.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		db := config.GetDB().WithContext(ctx)

		run := &models.SheetSyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredManual,
		}
		if err := db.Create(run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if envBoolDefault("SHEET_SYNC_ASYNC", false) {
			if err := PublishSyncRun(ctx, run.ID); err != nil {
				finishRun(ctx, run, nil, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, TriggerSyncResponse{Success: true, Message: "sync queued", RunId: run.ID})
			return
		}

		summary, err := RunBatchSync(ctx, run.ID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrSyncInProgress) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		resp := TriggerSyncResponse{Success: true, Message: "sync completed", RunId: run.ID}
		if summary != nil {
			resp.TotalOrders = summary.TotalOrders
			resp.RowsWritten = summary.RowsWritten
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		var runs []models.SheetSyncRun
		if err := db.Order("id DESC").Limit(20).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, runResponse(run))
		}

		resp := gin.H{"items": items}
		var last Summary
		if ok, err := config.GetRedisObject(lastRunCacheKey, &last); err == nil && ok {
			resp["lastRun"] = last
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		db := config.GetDB().WithContext(c.Request.Context())
		var run models.SheetSyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusOK, runResponse(run))
	}
}

func CreateSyncRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateSyncRequestInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		var changesJSON []byte
		if len(input.Changes) > 0 {
			changesJSON, _ = json.Marshal(input.Changes)
		}
		request := &models.SyncRequest{
			RecordId:    input.RecordId,
			RequestType: input.RequestType,
			ChangesJSON: changesJSON,
			Reason:      input.Reason,
			RequestedBy: resolverIdentity(c),
		}
		if err := models.CreateSyncRequest(c.Request.Context(), request); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "target record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, request)
	}
}

func ListSyncRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requests, err := models.ListSyncRequests(c.Request.Context(), c.Query("status"), 0, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": requests})
	}
}

func ApproveSyncRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}
		var input ResolveSyncRequestInput
		_ = c.ShouldBindJSON(&input)

		request, message, err := ApproveSyncRequest(c.Request.Context(), uint(id), resolverIdentity(c), input.Notes)
		if err != nil {
			c.JSON(resolveErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "request": request})
	}
}

func RejectSyncRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}
		var input ResolveSyncRequestInput
		_ = c.ShouldBindJSON(&input)

		request, err := RejectSyncRequest(c.Request.Context(), uint(id), resolverIdentity(c), input.Notes)
		if err != nil {
			c.JSON(resolveErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "request": request})
	}
}

func resolveErrorStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSyncRequestResolved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func resolverIdentity(c *gin.Context) string {
	if name, ok := utils.GetUserNameFromContext(c.Request.Context()); ok && name != "" {
		return name
	}
	if name := c.GetHeader("x-user"); name != "" {
		return name
	}
	return "system"
}

func runResponse(run models.SheetSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:          run.ID,
		Status:      run.Status,
		TriggeredBy: run.TriggeredBy,
		TotalOrders: run.TotalOrders,
		RowsWritten: run.RowsWritten,
		Message:     run.Message,
		StartedAt:   formatTime(run.StartedAt),
		FinishedAt:  formatTime(run.FinishedAt),
		DurationMs:  run.DurationMs,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
