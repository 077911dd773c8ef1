package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
)

type ProcessedFileRepository interface {
	MarkProcessed(fileID, fileName string) (bool, error)
	Exists(fileID string) (bool, error)
	FilterNew(fileIDs []string) ([]string, error)
}

type processedFileRepository struct {
	db *sqlx.DB
}

func NewProcessedFileRepository(db *sqlx.DB) *processedFileRepository {
	return &processedFileRepository{db: db}
}

// MarkProcessed records a completed file. The unique index on file_id is the
// idempotence authority: if another run already recorded this file the insert
// is a no-op and MarkProcessed reports false.
func (r *processedFileRepository) MarkProcessed(fileID, fileName string) (bool, error) {
	query := `INSERT INTO processed_files (file_id, file_name, processed_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (file_id) DO NOTHING`

	res, err := r.db.Exec(query, fileID, fileName, time.Now().UTC())
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *processedFileRepository) Exists(fileID string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM processed_files WHERE file_id = $1`

	err := r.db.Get(&count, query, fileID)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// FilterNew returns the subset of fileIDs with no processed_files row, in the
// order they were given.
func (r *processedFileRepository) FilterNew(fileIDs []string) ([]string, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT file_id FROM processed_files WHERE file_id IN (?)`, fileIDs)
	if err != nil {
		return nil, err
	}

	var processed []string
	err = r.db.Select(&processed, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(processed))
	for _, id := range processed {
		seen[id] = true
	}

	var fresh []string
	for _, id := range fileIDs {
		if !seen[id] {
			fresh = append(fresh, id)
		}
	}

	return fresh, nil
}
