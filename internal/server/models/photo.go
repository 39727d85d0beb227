// Package models defines server-side rows persisted in the metadata
// database.
package models

import "time"

// Photo is one photo's metadata row. A row starts unconfirmed when the
// upload is presigned and only becomes visible in listings after the client
// commits the upload; this is what keeps pagination stable under concurrent
// writers (late commits append after already-served pages, never inside
// them).
type Photo struct {
	ID         string
	EventID    string
	OwnerLabel string
	StorageKey string
	CapturedAt time.Time
	Confirmed  bool
	CreatedAt  time.Time
}
