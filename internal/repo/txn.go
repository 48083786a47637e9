package repo

import (
	"errors"

	"ShareDrop/model"

	"gorm.io/gorm"
)

// Txn is a per-unit-of-work persistence context with depth-counted
// transaction handling: only the outermost Begin opens the underlying
// transaction and only the outermost Commit or Rollback closes it. This
// lets helper operations that manage their own transaction compose inside
// a caller-owned one without double-committing.
//
// A Txn must not be shared between goroutines.
type Txn struct {
	base  *gorm.DB
	tx    *gorm.DB
	depth int
}

// conn returns the active transaction, or the pooled handle when no
// transaction is open.
func (t *Txn) conn() *gorm.DB {
	if t.tx != nil {
		return t.tx
	}
	return t.base
}

// Begin opens the underlying transaction at depth zero and counts
// nesting above it.
func (t *Txn) Begin() error {
	if t.depth == 0 {
		tx := t.base.Begin()
		if tx.Error != nil {
			return tx.Error
		}
		t.tx = tx
	}
	t.depth++
	return nil
}

// Commit decrements the depth; the underlying COMMIT fires only when the
// outermost level commits.
func (t *Txn) Commit() error {
	if t.depth == 0 {
		return errors.New("commit without matching begin")
	}
	t.depth--
	if t.depth > 0 {
		return nil
	}
	err := t.tx.Commit().Error
	t.tx = nil
	return err
}

// Rollback decrements the depth; the underlying ROLLBACK fires only when
// the depth returns to zero.
func (t *Txn) Rollback() error {
	if t.depth == 0 {
		return errors.New("rollback without matching begin")
	}
	t.depth--
	if t.depth > 0 {
		return nil
	}
	err := t.tx.Rollback().Error
	t.tx = nil
	return err
}

// GetUploadBySlug loads a live upload by slug.
func (t *Txn) GetUploadBySlug(slug string) (*model.Upload, error) {
	var upload model.Upload
	err := t.conn().Where("slug = ? AND is_deleted = ?", slug, false).First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// GetUploadByID loads a live upload by id.
func (t *Txn) GetUploadByID(id uint64) (*model.Upload, error) {
	var upload model.Upload
	err := t.conn().Where("id = ? AND is_deleted = ?", id, false).First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// GetFileBySlug loads a live file by slug.
func (t *Txn) GetFileBySlug(slug string) (*model.File, error) {
	var file model.File
	err := t.conn().Where("slug = ? AND is_deleted = ?", slug, false).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// GetFilesForUpload returns the live files owned by an upload.
func (t *Txn) GetFilesForUpload(uploadID uint64) ([]model.File, error) {
	var files []model.File
	err := t.conn().Where("upload_id = ? AND is_deleted = ?", uploadID, false).Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// SaveUpload inserts the upload and assigns its generated id.
func (t *Txn) SaveUpload(upload *model.Upload) error {
	return t.conn().Create(upload).Error
}

// SaveFile inserts the file and assigns its generated id.
func (t *Txn) SaveFile(file *model.File) error {
	return t.conn().Create(file).Error
}

// MarkUploadDeleted soft-deletes the upload row; other fields stay intact.
func (t *Txn) MarkUploadDeleted(id uint64) error {
	if id == 0 {
		return errors.New("cannot mark an unsaved upload as deleted")
	}
	return t.conn().Model(&model.Upload{}).Where("id = ?", id).Update("is_deleted", true).Error
}

// MarkFileDeleted soft-deletes the file row; other fields stay intact.
func (t *Txn) MarkFileDeleted(id uint64) error {
	if id == 0 {
		return errors.New("cannot mark an unsaved file as deleted")
	}
	return t.conn().Model(&model.File{}).Where("id = ?", id).Update("is_deleted", true).Error
}
