package models

import "time"

// SyncItemError reports one failed item from a batch. PublicID is "unknown"
// when the item never carried an identity.
type SyncItemError struct {
	PublicID string `json:"public_id"`
	Error    string `json:"error"`
}

// SyncResult is the per-item outcome report for a batch. Callers always get
// the exact set of keys that succeeded and failed, never a bare boolean.
type SyncResult struct {
	Saved     int             `json:"saved"`
	Failed    []SyncItemError `json:"failed"`
	SyncedIDs []string        `json:"synced_ids"`
}

// SyncLogEntry is one append-only audit row per processed batch.
type SyncLogEntry struct {
	ID       string    `json:"id" db:"id"`
	Type     string    `json:"type" db:"type"`
	Count    int       `json:"count" db:"count"`
	SyncedAt time.Time `json:"synced_at" db:"synced_at"`
}

// SyncBatchRequest is the request body for the bulk sync endpoint.
type SyncBatchRequest struct {
	Items []ProfileObservation `json:"items" validate:"required"`
}
