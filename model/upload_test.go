package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadValidate(t *testing.T) {
	upload := Upload{Slug: "abc123", Lifetime: 7}
	require.NoError(t, upload.Validate())

	t.Run("empty slug", func(t *testing.T) {
		bad := upload
		bad.Slug = ""
		assert.Error(t, bad.Validate())
	})

	t.Run("non-positive lifetime", func(t *testing.T) {
		bad := upload
		bad.Lifetime = 0
		assert.Error(t, bad.Validate())
	})

	t.Run("crypt without password", func(t *testing.T) {
		bad := upload
		bad.Crypt = true
		assert.ErrorIs(t, bad.Validate(), ErrCryptWithoutPassword)
	})

	t.Run("crypt with password", func(t *testing.T) {
		ok := upload
		ok.Crypt = true
		ok.Passwd = "$2a$10$hash"
		assert.NoError(t, ok.Validate())
	})
}

func TestUploadIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	upload := Upload{Slug: "abc", Lifetime: 7}

	// Exactly lifetime days old: still alive, expiry needs strictly more.
	upload.CreatedAt = now.AddDate(0, 0, -7)
	assert.False(t, upload.IsExpired(now))

	upload.CreatedAt = now.AddDate(0, 0, -8)
	assert.True(t, upload.IsExpired(now))

	// The comparison counts calendar days, not elapsed hours: a file
	// created late on day N ages a full day at the next midnight.
	upload.CreatedAt = time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	assert.True(t, upload.IsExpired(now))

	upload.CreatedAt = time.Date(2026, 3, 3, 0, 1, 0, 0, time.UTC)
	assert.False(t, upload.IsExpired(now))
}

func TestFileValidate(t *testing.T) {
	file := File{UploadID: 1, Slug: "f1", File: "a/b/c/rest", Filename: "x.txt"}
	require.NoError(t, file.Validate())

	bad := file
	bad.UploadID = 0
	assert.Error(t, bad.Validate())

	bad = file
	bad.File = ""
	assert.Error(t, bad.Validate())

	bad = file
	bad.Filename = ""
	assert.Error(t, bad.Validate())
}
