package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"ShareDrop/config"
	"ShareDrop/internal/repo"
	"ShareDrop/internal/service"
	"ShareDrop/internal/session"
	"ShareDrop/internal/storage"
	"ShareDrop/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

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

func testRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(gormMysql.New(gormMysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		DataDir:       t.TempDir(),
		DirectoryMode: 0o755,
		FileMode:      0o644,
		CryptSuffix:   ".gpg",
		AllowZip:      true,
		SessionTTL:    time.Hour,
		SessionSecret: "test-secret",
	}
	store := repo.NewStore(gdb)
	layout := storage.NewLayout(cfg)
	sessions := session.NewManager(newMemCache(), cfg.SessionSecret, cfg.SessionTTL)
	downloads := service.NewDownloadService(cfg, store, layout, nil, sessions)

	r := gin.New()
	r.Use(sessions.Middleware())
	h := NewDownloadHandler(cfg, downloads)
	r.GET("/api/download/:slug", h.Confirm)
	r.POST("/api/download/:slug", h.Unlock)
	return r, mock
}

func uploadRows(passwd string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "slug", "lifetime", "passwd", "crypt", "created_at", "is_deleted"}).
		AddRow(1, "share123", 7, passwd, false, time.Now(), false)
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestConfirmUnknownSlug(t *testing.T) {
	r, mock := testRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM `upload`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/nosuch", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestConfirmProtectedUpload(t *testing.T) {
	r, mock := testRouter(t)

	hash, err := utils.GetPwd("letmein")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT (.+) FROM `upload`").
		WillReturnRows(uploadRows(hash))
	mock.ExpectQuery("SELECT (.+) FROM `file`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "upload_id", "slug", "file", "filename", "filesize", "created_at", "is_deleted"}).
			AddRow(1, 1, "f1", "f/1/x/y", "doc.pdf", 123, time.Now(), false))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/share123", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"protected":true`)
	assert.Contains(t, w.Body.String(), `"unlocked":false`)
	assert.Contains(t, w.Body.String(), "doc.pdf")
	// Password material never leaves the server.
	assert.NotContains(t, w.Body.String(), hash)
}

func TestUnlockWrongPassword(t *testing.T) {
	r, mock := testRouter(t)

	hash, err := utils.GetPwd("letmein")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT (.+) FROM `upload`").
		WillReturnRows(uploadRows(hash))

	w := postForm(r, "/api/download/share123", url.Values{"password": {"wrong"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnlockRedirects(t *testing.T) {
	r, mock := testRouter(t)

	hash, err := utils.GetPwd("letmein")
	require.NoError(t, err)

	t.Run("to confirmation page", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM `upload`").
			WillReturnRows(uploadRows(hash))
		w := postForm(r, "/api/download/share123", url.Values{"password": {"letmein"}})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/api/download/share123", w.Header().Get("Location"))
	})

	t.Run("to single file", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM `upload`").
			WillReturnRows(uploadRows(hash))
		w := postForm(r, "/api/download/share123", url.Values{
			"password": {"letmein"},
			"target":   {"fileslug1"},
		})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/api/download/file/fileslug1", w.Header().Get("Location"))
	})

	t.Run("to archive", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM `upload`").
			WillReturnRows(uploadRows(hash))
		w := postForm(r, "/api/download/share123", url.Values{
			"password": {"letmein"},
			"target":   {"zip"},
		})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/api/download/zip/share123", w.Header().Get("Location"))
	})
}
