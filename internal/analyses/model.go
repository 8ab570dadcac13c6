package analyses

import (
	"encoding/json"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRejected   = "rejected"
)

// Record is the ledger entry for one run of an analysis. An analysis id that is
// submitted twice gets two records with distinct run ids.
type Record struct {
	RunID          string          `json:"runId"`
	AnalysisID     string          `json:"analysisId"`
	SourcePath     string          `json:"-"`
	RequestID      string          `json:"requestId,omitempty"`
	Status         string          `json:"status"`
	Stage          string          `json:"stage"`
	Result         json.RawMessage `json:"result,omitempty"`
	ErrorCode      string          `json:"errorCode,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	Delivered      bool            `json:"delivered"`
	DeliveryStatus int             `json:"deliveryStatus,omitempty"`
	DeliveryError  string          `json:"deliveryError,omitempty"`
	EnqueuedAt     time.Time       `json:"enqueuedAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Finish holds the terminal fields written when a run ends.
type Finish struct {
	Status         string
	Stage          string
	Result         json.RawMessage
	ErrorCode      string
	ErrorMessage   string
	Delivered      bool
	DeliveryStatus int
	DeliveryError  string
	CompletedAt    time.Time
}
