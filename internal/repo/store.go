package repo

import (
	"database/sql"
	"errors"

	"ShareDrop/model"

	"gorm.io/gorm"
)

// Store is the long-lived persistence handle. Per-request and per-batch
// work goes through a Txn obtained from it; the Store itself keeps no
// transaction state and is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Txn returns a fresh unit-of-work context.
func (s *Store) Txn() *Txn {
	return &Txn{base: s.db}
}

// IsNotFound reports whether err is the store's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// expiredCondition matches uploads whose age in days exceeds their
// lifetime. TO_DAYS mirrors the calendar-day comparison of
// model.Upload.IsExpired.
const expiredCondition = "(TO_DAYS(NOW()) - TO_DAYS(created_at)) > lifetime AND is_deleted = ?"

// ExpiredUploads runs the expiry query once and returns a cursor over the
// result. The query intentionally runs on the pooled connection, outside
// any open transaction, so the sweep can issue writes while iterating.
func (s *Store) ExpiredUploads() (*UploadCursor, error) {
	rows, err := s.db.Model(&model.Upload{}).Where(expiredCondition, false).Rows()
	if err != nil {
		return nil, err
	}
	return &UploadCursor{db: s.db, rows: rows}, nil
}

// UploadCursor iterates expired uploads without materializing them.
type UploadCursor struct {
	db   *gorm.DB
	rows *sql.Rows
}

// Next scans the next upload. The second return value is false once the
// cursor is exhausted; check the error afterwards.
func (c *UploadCursor) Next() (*model.Upload, bool, error) {
	if !c.rows.Next() {
		return nil, false, c.rows.Err()
	}
	var upload model.Upload
	if err := c.db.ScanRows(c.rows, &upload); err != nil {
		return nil, false, err
	}
	return &upload, true, nil
}

// Close releases the underlying rows.
func (c *UploadCursor) Close() error {
	return c.rows.Close()
}
