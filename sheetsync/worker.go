package sheetsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/models"
	"github.com/bsm/redislock"
)

const (
	runLockKey      = "sheetsync:run-lock"
	lastRunCacheKey = "sheetsync:last-run"
)

var ErrSyncInProgress = errors.New("another sheet sync run is in progress")

// RunBatchSync executes one queued SheetSyncRun end to end: it takes the
// run lock, marks the run running, executes the batch and records the
// outcome. The lock is the only defense against concurrent batch runs; the
// external store has no locking primitive of its own.
func RunBatchSync(ctx context.Context, runId uint) (*Summary, error) {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	var run models.SheetSyncRun
	if err := db.Where("id = ?", runId).Take(&run).Error; err != nil {
		return nil, err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil, nil
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, runLockKey, 10*time.Minute, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			finishRun(ctx, &run, nil, ErrSyncInProgress)
			return nil, ErrSyncInProgress
		}
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Release(context.Background()) }()
	}

	startedAt := time.Now()
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return nil, err
	}
	run.StartedAt = &startedAt

	summary, runErr := executeBatch(ctx)
	if runErr != nil {
		config.LogError(logger, "worker.go", "RunBatchSync", "executing batch sync", map[string]interface{}{"run_id": runId}, runErr)
	}
	finishRun(ctx, &run, summary, runErr)
	return summary, runErr
}

func finishRun(ctx context.Context, run *models.SheetSyncRun, summary *Summary, runErr error) {
	db := config.GetDB().WithContext(ctx)

	finishedAt := time.Now()
	var durationMs int64
	if run.StartedAt != nil {
		durationMs = finishedAt.Sub(*run.StartedAt).Milliseconds()
	}

	status, message := runOutcome(summary, runErr)
	totalOrders, rowsWritten := 0, 0
	if summary != nil {
		totalOrders = summary.TotalOrders
		rowsWritten = summary.RowsWritten
	}

	var statsJSON []byte
	if summary != nil {
		statsJSON, _ = json.Marshal(summary)
		_ = config.SetRedisObject(lastRunCacheKey, summary, time.Hour)
	} else {
		_ = config.RemoveRedisKey(lastRunCacheKey)
	}
	_ = db.Model(run).Updates(map[string]interface{}{
		"status":       status,
		"finished_at":  finishedAt,
		"duration_ms":  durationMs,
		"total_orders": totalOrders,
		"rows_written": rowsWritten,
		"stats_json":   statsJSON,
		"message":      message,
	}).Error
}

// runOutcome classifies a finished batch. The engine only hands back a
// summary once the clear has run, so an error carrying one means the
// destination no longer holds the previous data even when zero chunks
// landed; that is partial, not failed.
func runOutcome(summary *Summary, runErr error) (string, string) {
	if runErr == nil {
		return models.SyncRunStatusSuccess, "sync completed"
	}
	if summary != nil {
		return models.SyncRunStatusPartial, runErr.Error()
	}
	return models.SyncRunStatusFailed, runErr.Error()
}

// executeBatch wires a fresh token, store and engine from ambient
// configuration and runs the batch. Everything is rebuilt per run; there are
// no long-lived clients to go stale.
func executeBatch(ctx context.Context) (*Summary, error) {
	store, err := storeFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	engine := &Engine{
		Store:         store,
		Orders:        models.ListMaintenanceOrdersPage,
		Logger:        config.GetLogger(),
		OrdersSheet:   envDefault("SHEETS_ORDERS_TAB", "Ordens de Serviço"),
		VehiclesSheet: envDefault("SHEETS_VEHICLES_TAB", "Veículos"),
		ChunkDelay:    time.Duration(intFromEnv("SHEET_SYNC_CHUNK_DELAY_MS", 500)) * time.Millisecond,
	}
	return engine.Run(ctx)
}

func storeFromEnv(ctx context.Context) (ValueStore, error) {
	spreadsheetId := strings.TrimSpace(os.Getenv("SHEETS_SPREADSHEET_ID"))
	if spreadsheetId == "" {
		return nil, errors.New("SHEETS_SPREADSHEET_ID is required")
	}
	provider, err := NewTokenProviderFromEnv()
	if err != nil {
		return nil, err
	}
	token, err := provider.FetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain sheets token: %w", err)
	}
	return NewSheetsStore(ctx, token, spreadsheetId)
}

func envDefault(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
