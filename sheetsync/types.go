package sheetsync

import "encoding/json"

type TriggerSyncResponse struct {
	Success     bool   `json:"success"`
	TotalOrders int    `json:"totalOrders"`
	RowsWritten int    `json:"rowsWritten"`
	Message     string `json:"message"`
	RunId       uint   `json:"runId"`
}

type SyncRunResponse struct {
	ID          uint    `json:"id"`
	Status      string  `json:"status"`
	TriggeredBy string  `json:"triggeredBy"`
	TotalOrders int     `json:"totalOrders"`
	RowsWritten int     `json:"rowsWritten"`
	Message     string  `json:"message"`
	StartedAt   *string `json:"startedAt"`
	FinishedAt  *string `json:"finishedAt"`
	DurationMs  int64   `json:"durationMs"`
}

type CreateSyncRequestInput struct {
	RecordId    uint                   `json:"recordId" binding:"required"`
	RequestType string                 `json:"requestType" binding:"required,oneof=delete edit"`
	Changes     map[string]interface{} `json:"changes"`
	Reason      string                 `json:"reason"`
}

type ResolveSyncRequestInput struct {
	Notes string `json:"notes"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId uint `json:"run_id"`
}

func EncodeSyncPayload(runId uint) []byte {
	b, _ := json.Marshal(SyncPubSubPayload{RunId: runId})
	return b
}
