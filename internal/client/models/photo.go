// Package models defines client-side data types for the capture queue and
// the reveal feed.
package models

import "time"

// UploadStatus is the lifecycle state of a queued upload.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusCompleted UploadStatus = "completed"
	StatusFailed    UploadStatus = "failed"
)

// QueuedUpload is one durable record in the offline upload queue.
//
// Records are created by the capture path and mutated only by the queue
// store on behalf of the worker pool. A record is pruned once completed;
// the store holds only non-terminal and recently-failed items.
type QueuedUpload struct {
	// ID is assigned at enqueue time and never reused.
	ID string `json:"id"`

	// EventID identifies the owning event; opaque to this subsystem.
	EventID string `json:"event_id"`

	// LocalPath points at the locally persisted, already-processed image.
	LocalPath string `json:"local_path"`

	Status UploadStatus `json:"status"`

	// RetryCount is incremented only after an attempt transitions from
	// uploading back to failed, never retroactively.
	RetryCount int `json:"retry_count"`

	QueuedAt      time.Time `json:"queued_at"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// PhotoItem is one row of reveal metadata. URL stays empty until a
// time-limited fetch URL has been attached.
type PhotoItem struct {
	PhotoID    string    `json:"photo_id"`
	CapturedAt time.Time `json:"captured_at"`
	OwnerLabel string    `json:"owner_label"`
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url,omitempty"`
}

// Page is one fetched page of reveal items, in capture-time order.
type Page struct {
	Items   []PhotoItem
	Offset  int
	Limit   int
	HasMore bool
}
