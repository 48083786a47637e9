package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"ShareDrop/config"
	"ShareDrop/internal/apperr"
	"ShareDrop/internal/session"
	"ShareDrop/internal/storage"
	"ShareDrop/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCache is an in-memory stand-in for the Redis cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

// fakeGateway deciphers by upper-casing, enough to observe the stream.
type fakeGateway struct{}

func (fakeGateway) Encrypt(src, passphrase, dst string) error { return nil }

func (fakeGateway) Decrypt(src, passphrase string, w io.Writer) error {
	_, err := io.WriteString(w, "DECIPHERED:"+passphrase)
	return err
}

func testDownloadService(t *testing.T) (*DownloadService, *storage.Layout, *session.Manager) {
	t.Helper()
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		DirectoryMode: 0o755,
		FileMode:      0o644,
		CryptSuffix:   ".gpg",
		AllowZip:      true,
		SessionTTL:    time.Hour,
	}
	layout := storage.NewLayout(cfg)
	sessions := session.NewManager(newMemCache(), "test-secret", time.Hour)
	svc := &DownloadService{
		cfg:      cfg,
		layout:   layout,
		cipher:   fakeGateway{},
		sessions: sessions,
	}
	return svc, layout, sessions
}

func placeTestFile(t *testing.T, layout *storage.Layout, slug string, content []byte) *model.File {
	t.Helper()
	rel, err := layout.Place(slug, bytes.NewReader(content))
	require.NoError(t, err)
	return &model.File{
		ID:       1,
		UploadID: 1,
		Slug:     slug,
		File:     rel,
		Filename: "payload.bin",
		Filesize: int64(len(content)),
	}
}

func TestSendPlainFullFile(t *testing.T) {
	svc, layout, _ := testDownloadService(t)
	content := bytes.Repeat([]byte("x"), 1000)
	file := placeTestFile(t, layout, "aaaa1111", content)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, svc.sendPlain(w, r, file))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", w.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, `attachment; filename="payload.bin"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, content, w.Body.Bytes())
}

func TestSendPlainRange(t *testing.T) {
	svc, layout, _ := testDownloadService(t)
	content := []byte(strings.Repeat("0123456789", 100))
	file := placeTestFile(t, layout, "bbbb2222", content)

	t.Run("first hundred bytes", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Range", "bytes=0-99")
		require.NoError(t, svc.sendPlain(w, r, file))

		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "0-99/1000", w.Header().Get("Content-Range"))
		assert.Equal(t, "100", w.Header().Get("Content-Length"))
		assert.Equal(t, content[:100], w.Body.Bytes())
	})

	t.Run("tail", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Range", "bytes=900-999")
		require.NoError(t, svc.sendPlain(w, r, file))

		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "900-999/1000", w.Header().Get("Content-Range"))
		assert.Equal(t, content[900:], w.Body.Bytes())
	})

	t.Run("suffix", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Range", "bytes=-50")
		require.NoError(t, svc.sendPlain(w, r, file))

		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "950-999/1000", w.Header().Get("Content-Range"))
		assert.Equal(t, content[950:], w.Body.Bytes())
	})

	for _, header := range []string{"bytes=1000-", "bytes=500-100", "bytes=0-1000", "garbage"} {
		t.Run("unsatisfiable "+header, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Range", header)
			require.NoError(t, svc.sendPlain(w, r, file))

			assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
			assert.Equal(t, "*/1000", w.Header().Get("Content-Range"))
			assert.Empty(t, w.Body.Bytes())
		})
	}
}

func TestSendPlainMissingArtifact(t *testing.T) {
	svc, _, _ := testDownloadService(t)
	file := &model.File{Slug: "gone", File: "g/o/n/e", Filename: "gone.txt"}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	err := svc.sendPlain(w, r, file)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSendEncrypted(t *testing.T) {
	svc, layout, sessions := testDownloadService(t)
	ctx := context.Background()

	upload := &model.Upload{ID: 1, Slug: "crypted1", Passwd: "$2a$10$hash", Crypt: true}
	rel, err := layout.Place("cccc3333", bytes.NewReader([]byte("ciphertext")))
	require.NoError(t, err)
	// The cipher artifact carries the suffix; the row stores the base path.
	require.NoError(t, os.Rename(layout.Resolve(rel), layout.Resolve(rel+".gpg")))
	file := &model.File{ID: 2, UploadID: 1, Slug: "cccc3333", File: rel, Filename: "secret.txt", Filesize: 21}

	t.Run("no retained passphrase", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := svc.sendEncrypted(ctx, "sid-1", w, upload, file)
		assert.True(t, apperr.IsSecurity(err))
	})

	t.Run("deciphered stream", func(t *testing.T) {
		require.NoError(t, sessions.Unlock(ctx, "sid-2", upload.Slug, "hunter2", true))

		w := httptest.NewRecorder()
		require.NoError(t, svc.sendEncrypted(ctx, "sid-2", w, upload, file))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "DECIPHERED:hunter2", w.Body.String())
	})
}

func TestAuthorize(t *testing.T) {
	svc, _, sessions := testDownloadService(t)
	ctx := context.Background()

	open := &model.Upload{Slug: "open1"}
	assert.NoError(t, svc.authorize(ctx, "sid", open))

	locked := &model.Upload{Slug: "locked1", Passwd: "$2a$10$hash"}
	err := svc.authorize(ctx, "sid", locked)
	assert.True(t, apperr.IsSecurity(err))

	require.NoError(t, sessions.Unlock(ctx, "sid", "locked1", "", false))
	assert.NoError(t, svc.authorize(ctx, "sid", locked))

	// Unlocking one upload does not open another.
	other := &model.Upload{Slug: "other1", Passwd: "$2a$10$hash"}
	assert.True(t, apperr.IsSecurity(svc.authorize(ctx, "sid", other)))
}
