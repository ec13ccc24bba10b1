package models

import "time"

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredSystem = "system"
)

type SheetSyncRun struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	Status      string     `gorm:"index;size:20;not null" json:"status"`
	TriggeredBy string     `gorm:"size:20" json:"triggered_by"`
	TotalOrders int        `json:"total_orders"`
	RowsWritten int        `json:"rows_written"`
	StatsJSON   []byte     `gorm:"type:json" json:"stats"`
	Message     string     `gorm:"type:text" json:"message"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
