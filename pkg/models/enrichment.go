package models

import "time"

// TaskStatus is the enrichment task state machine:
// pending -> processing -> {completed | pending (retry) | failed}
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// EnrichmentTask is one entry in the re-fetch work queue. At most one row
// exists per public id.
type EnrichmentTask struct {
	ID          string     `json:"id" db:"id"`
	PublicID    string     `json:"public_id" db:"public_id"`
	Status      TaskStatus `json:"status" db:"status"`
	Attempts    int        `json:"attempts" db:"attempts"`
	QueuedAt    time.Time  `json:"queued_at" db:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	LastError   *string    `json:"last_error,omitempty" db:"last_error"`
}

// QueueStatus is the queue-status summary exposed to callers.
type QueueStatus struct {
	Pending    int `json:"pending" db:"pending"`
	Processing int `json:"processing" db:"processing"`
	Completed  int `json:"completed" db:"completed"`
	Failed     int `json:"failed" db:"failed"`
	Total      int `json:"total" db:"total"`
}
