package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/drivesink/drivesink/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrChannelNotFound = errors.New("notification channel not found")
)

type ChannelRepository interface {
	Create(channel *model.NotificationChannel) error
	ByChannelID(channelID string) (*model.NotificationChannel, error)
	FolderByChannelID(channelID string) (string, error)
	ExpiringBefore(threshold time.Time) ([]*model.NotificationChannel, error)
	Replace(oldChannelID, newChannelID string, expiration time.Time) error
}

type channelRepository struct {
	db *sqlx.DB
}

func NewChannelRepository(db *sqlx.DB) *channelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(channel *model.NotificationChannel) error {
	query := `INSERT INTO notification_channels (channel_id, folder_id, expiration)
	          VALUES ($1, $2, $3)`

	_, err := r.db.Exec(query,
		channel.ChannelID,
		channel.FolderID,
		channel.Expiration,
	)

	return err
}

func (r *channelRepository) ByChannelID(channelID string) (*model.NotificationChannel, error) {
	channel := &model.NotificationChannel{}
	query := `SELECT * FROM notification_channels WHERE channel_id = $1`

	err := r.db.Get(channel, query, channelID)
	if err == sql.ErrNoRows {
		return nil, ErrChannelNotFound
	}

	return channel, err
}

func (r *channelRepository) FolderByChannelID(channelID string) (string, error) {
	var folderID string
	query := `SELECT folder_id FROM notification_channels WHERE channel_id = $1`

	err := r.db.Get(&folderID, query, channelID)
	if err == sql.ErrNoRows {
		return "", ErrChannelNotFound
	}

	return folderID, err
}

func (r *channelRepository) ExpiringBefore(threshold time.Time) ([]*model.NotificationChannel, error) {
	var channels []*model.NotificationChannel
	query := `SELECT * FROM notification_channels WHERE expiration <= $1`

	err := r.db.Select(&channels, query, threshold)
	if err != nil {
		return nil, err
	}

	return channels, nil
}

// Replace swaps a renewed channel's identity and expiration in one statement,
// so a reader never observes the new channel_id with the old expiration.
func (r *channelRepository) Replace(oldChannelID, newChannelID string, expiration time.Time) error {
	query := `UPDATE notification_channels SET channel_id = $1, expiration = $2 WHERE channel_id = $3`

	res, err := r.db.Exec(query, newChannelID, expiration, oldChannelID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrChannelNotFound
	}

	return nil
}
