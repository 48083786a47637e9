package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// File is one stored artifact belonging to an Upload. The on-disk artifact
// lives at the sharded relative path in File and is managed separately from
// the row itself.
type File struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	UploadID uint64 `gorm:"column:upload_id;index;not null" json:"upload_id"`
	Upload   Upload `gorm:"foreignKey:UploadID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	Slug string `gorm:"column:slug;size:64;uniqueIndex;not null" json:"slug"`

	// File is the sharded relative storage path derived from the slug.
	File string `gorm:"column:file;size:512;not null" json:"-"`

	// Filename is the client-supplied name, used only for the
	// Content-Disposition header.
	Filename string `gorm:"column:filename;size:255;not null" json:"filename"`

	// Filesize is the size reported at upload time; it is not re-verified
	// against disk.
	Filesize int64 `gorm:"column:filesize;not null" json:"filesize"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`

	IsDeleted bool `gorm:"column:is_deleted;not null;default:false" json:"-"`
}

// TableName returns the database table name.
func (File) TableName() string {
	return "file"
}

// Validate enforces the model invariants before the row is written.
func (f *File) Validate() error {
	if f.UploadID == 0 {
		return errors.New("file must belong to a saved upload")
	}
	if f.Slug == "" {
		return errors.New("file slug must not be empty")
	}
	if f.File == "" {
		return errors.New("file storage path must not be empty")
	}
	if f.Filename == "" {
		return errors.New("file name must not be empty")
	}
	return nil
}

// BeforeCreate runs Validate so an invalid file never reaches the store.
func (f *File) BeforeCreate(tx *gorm.DB) error {
	return f.Validate()
}
