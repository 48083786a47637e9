package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrCryptWithoutPassword is returned when an upload asks for at-rest
// encryption without carrying a password hash.
var ErrCryptWithoutPassword = errors.New("crypt requires a non-empty password")

// Upload is a bundle of files sharing one slug, password, lifetime and
// encryption setting.
type Upload struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Slug string `gorm:"column:slug;size:64;uniqueIndex;not null" json:"slug"`

	// Lifetime is the number of days after creation before the upload
	// becomes eligible for expiry.
	Lifetime int `gorm:"column:lifetime;not null" json:"lifetime"`

	// Passwd holds the bcrypt hash; empty means no password.
	Passwd string `gorm:"column:passwd;size:255;not null;default:''" json:"-"`

	Crypt bool `gorm:"column:crypt;not null;default:false" json:"crypt"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`

	IsDeleted bool `gorm:"column:is_deleted;not null;default:false" json:"-"`
}

// TableName returns the database table name.
func (Upload) TableName() string {
	return "upload"
}

// Validate enforces the model invariants before the row is written.
func (u *Upload) Validate() error {
	if u.Slug == "" {
		return errors.New("upload slug must not be empty")
	}
	if u.Lifetime <= 0 {
		return errors.New("upload lifetime must be positive")
	}
	if u.Crypt && u.Passwd == "" {
		return ErrCryptWithoutPassword
	}
	return nil
}

// BeforeCreate runs Validate so an invalid upload never reaches the store.
func (u *Upload) BeforeCreate(tx *gorm.DB) error {
	return u.Validate()
}

// HasPassword reports whether downloads need to be unlocked first.
func (u *Upload) HasPassword() bool {
	return u.Passwd != ""
}

// IsExpired reports whether the upload's age in whole calendar days exceeds
// its lifetime. The comparison mirrors the TO_DAYS predicate used by the
// expiry query.
func (u *Upload) IsExpired(now time.Time) bool {
	created := truncateToDay(u.CreatedAt)
	today := truncateToDay(now)
	days := int(today.Sub(created).Hours() / 24)
	return days > u.Lifetime
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
