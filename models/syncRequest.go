package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/frotaworks/fleet_backend/config"
	"bitbucket.org/frotaworks/fleet_backend/utils"
	"gorm.io/gorm"
)

const (
	SyncRequestTypeDelete = "delete"
	SyncRequestTypeEdit   = "edit"
)

const (
	SyncRequestStatusPending  = "pending"
	SyncRequestStatusApproved = "approved"
	SyncRequestStatusRejected = "rejected"
)

var ErrSyncRequestResolved = errors.New("sync request already resolved")

// SyncRequest is a human request to delete or edit one fuel record, gated by
// approval. Resolved requests are immutable apart from the audit fields.
type SyncRequest struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	RecordType      string     `gorm:"size:30;not null;default:'fuel_record'" json:"record_type"`
	RecordId        uint       `gorm:"index;not null" json:"record_id"`
	RequestType     string     `gorm:"size:10;not null" json:"request_type"`
	ChangesJSON     []byte     `gorm:"type:json" json:"changes"`
	Reason          string     `gorm:"type:text" json:"reason"`
	RequestedBy     string     `gorm:"size:255" json:"requested_by"`
	Status          string     `gorm:"index;size:10;not null;default:'pending'" json:"status"`
	ResolvedBy      string     `gorm:"size:255" json:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes string     `gorm:"type:text" json:"resolution_notes"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *SyncRequest) IsResolved() bool {
	return r.Status == SyncRequestStatusApproved || r.Status == SyncRequestStatusRejected
}

func CreateSyncRequest(ctx context.Context, request *SyncRequest) error {
	db := config.GetDB().WithContext(ctx)
	if request.RequestType != SyncRequestTypeDelete && request.RequestType != SyncRequestTypeEdit {
		return errors.New("request type must be delete or edit")
	}
	if request.RecordType == "" {
		request.RecordType = "fuel_record"
	}
	// The target must exist at request time.
	if _, err := GetFuelRecordById(ctx, request.RecordId); err != nil {
		return err
	}
	request.Status = SyncRequestStatusPending
	return db.Create(request).Error
}

func GetSyncRequestById(ctx context.Context, id uint) (*SyncRequest, error) {
	db := config.GetDB().WithContext(ctx)
	var request SyncRequest
	err := db.Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &request, nil
}

func ListSyncRequests(ctx context.Context, status string, offset int, limit int) ([]SyncRequest, error) {
	db := config.GetDB().WithContext(ctx)
	query := db.Order("id DESC").Offset(offset).Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var requests []SyncRequest
	err := query.Find(&requests).Error
	return requests, err
}

// ResolveSyncRequest moves a pending request into a terminal state inside the
// caller's transaction. Terminal states are final.
func ResolveSyncRequest(tx *gorm.DB, request *SyncRequest, status string, resolvedBy string, notes string) error {
	if request.IsResolved() {
		return ErrSyncRequestResolved
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":           status,
		"resolved_by":      resolvedBy,
		"resolved_at":      now,
		"resolution_notes": notes,
	}
	result := tx.Model(&SyncRequest{}).
		Where("id = ? AND status = ?", request.ID, SyncRequestStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSyncRequestResolved
	}
	request.Status = status
	request.ResolvedBy = resolvedBy
	request.ResolvedAt = &now
	request.ResolutionNotes = notes
	return nil
}
