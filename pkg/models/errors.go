package models

import "errors"

// Error kinds reported in SyncResult.Failed entries.
const (
	ErrorKindMissingKey    = "MissingKey"
	ErrorKindMergeConflict = "MergeConflict"
	ErrorKindPersistence   = "PersistenceError"
	ErrorKindBatchLimit    = "BatchLimitExceeded"
)

// ErrMissingPublicID rejects an observation with no identity to upsert
// against. It is reported per item and never touches the store.
var ErrMissingPublicID = errors.New("observation is missing a public id")

// ErrMergeConflict indicates a schema mismatch between an observation and
// the stored profile. Fatal to that item only.
var ErrMergeConflict = errors.New("observation conflicts with stored profile schema")

// ErrorKind classifies an error for per-item failure reporting.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingPublicID):
		return ErrorKindMissingKey
	case errors.Is(err, ErrMergeConflict):
		return ErrorKindMergeConflict
	default:
		return ErrorKindPersistence
	}
}
