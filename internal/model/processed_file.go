package model

import (
	"time"
)

// ProcessedFile is the append-only record of files that completed the pipeline.
// Presence of a row for a file_id is the durable idempotence marker.
type ProcessedFile struct {
	ID          int64     `db:"id"`
	FileID      string    `db:"file_id"` // Drive-assigned file identity, unique
	FileName    string    `db:"file_name"`
	ProcessedAt time.Time `db:"processed_at"`
}
