package model

import (
	"time"
)

// NotificationChannel is an active Drive push subscription for one folder.
// Renewal replaces channel_id and expiration together; folder_id is stable.
type NotificationChannel struct {
	ID         int64     `db:"id"`
	ChannelID  string    `db:"channel_id"` // Drive-assigned per registration, unique
	FolderID   string    `db:"folder_id"`
	Expiration time.Time `db:"expiration"`
}
